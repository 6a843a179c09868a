package reports

import (
	"testing"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		ok       bool
	}{
		{name: "plain", input: "42", expected: 42, ok: true},
		{name: "thousands separators", input: "1,234,567", expected: 1234567, ok: true},
		{name: "embedded whitespace", input: " 1, 234 ", expected: 1234, ok: true},
		{name: "scientific notation", input: "1.05728e+006", expected: 1057280, ok: true},
		{name: "scientific uppercase", input: "2.5E+003", expected: 2500, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "whitespace only", input: "   ", ok: false},
		{name: "garbage", input: "lots", ok: false},
		{name: "trailing text", input: "500 gold", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ParseInt(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseInt(%q) ok=%t, want %t", tt.input, ok, tt.ok)
			}
			if ok && n != tt.expected {
				t.Errorf("ParseInt(%q) = %d, want %d", tt.input, n, tt.expected)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	f, ok := ParseFloat("1,234.5")
	if !ok || f != 1234.5 {
		t.Errorf("ParseFloat(\"1,234.5\") = %v, %t; want 1234.5, true", f, ok)
	}
	if _, ok := ParseFloat(""); ok {
		t.Error("ParseFloat(\"\") should not parse")
	}
}

func TestLineValue(t *testing.T) {
	text := "Some preamble\n  Target : Avalon  \nRanking: 12\n"

	v, ok := LineValue(text, "Target")
	if !ok || v != "Avalon" {
		t.Errorf("LineValue(Target) = %q, %t; want \"Avalon\", true", v, ok)
	}

	v, ok = LineValue(text, "target")
	if !ok || v != "Avalon" {
		t.Errorf("LineValue should be case-insensitive, got %q, %t", v, ok)
	}

	if _, ok := LineValue(text, "Alliance"); ok {
		t.Error("LineValue should report absence of a missing label")
	}
}

func TestSection(t *testing.T) {
	text := "Header\nResources\nGold: 100\nWood: 50\nTroops\nFootmen: 500\n"

	got := Section(text, "Resources", []string{"Troops"})
	want := "Gold: 100\nWood: 50"
	if got != want {
		t.Errorf("Section = %q, want %q", got, want)
	}

	// Runs to end of document when no stop header appears.
	got = Section(text, "Troops", []string{"Market"})
	if got != "Footmen: 500\n" {
		t.Errorf("Section to EOF = %q", got)
	}

	if got := Section(text, "Technology", []string{"Troops"}); got != "" {
		t.Errorf("Section with absent header = %q, want empty", got)
	}
}

func TestKVLines(t *testing.T) {
	chunk := "Gold: 1,200\nnot a count line\nWood : 50\nName with colon: but no number\n"
	got := KVLines(chunk)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(got), got)
	}
	if got["Gold"] != 1200 {
		t.Errorf("Gold = %d, want 1200", got["Gold"])
	}
	if got["Wood"] != 50 {
		t.Errorf("Wood = %d, want 50", got["Wood"])
	}
}
