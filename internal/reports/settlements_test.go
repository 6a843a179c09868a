package reports

import (
	"testing"
)

func TestExtractSettlementMentions(t *testing.T) {
	text := `Our spies learned about the small town of Riverholt (level 4 settlement).
Later the large city Kingsport (level 9 settlement) was sighted.
The medium town Oakvale: garrison unknown.`

	mentions := ExtractSettlementMentions(text)
	if len(mentions) != 3 {
		t.Fatalf("expected 3 mentions, got %d: %v", len(mentions), mentions)
	}

	byName := map[string]int{}
	for i, m := range mentions {
		byName[m.Name] = i
	}

	river := mentions[byName["Riverholt"]]
	if river.Tier != "small" || river.Level == nil || *river.Level != 4 {
		t.Errorf("Riverholt mention = %+v", river)
	}

	kings := mentions[byName["Kingsport"]]
	if kings.Tier != "large" || kings.Level == nil || *kings.Level != 9 {
		t.Errorf("Kingsport mention = %+v", kings)
	}

	oak := mentions[byName["Oakvale"]]
	if oak.Tier != "medium" || oak.Level != nil {
		t.Errorf("Oakvale mention = %+v (colon form carries no level)", oak)
	}
}

func TestExtractSettlementMentionsDedupByCase(t *testing.T) {
	text := `We saw the small town of Riverholt (level 4 settlement).
Reports mention the small town of RIVERHOLT (level 4 settlement) again.`

	mentions := ExtractSettlementMentions(text)
	if len(mentions) != 1 {
		t.Fatalf("expected case-insensitive dedup to 1 mention, got %d: %v", len(mentions), mentions)
	}
}

func TestExtractSettlementMentionsLevelDistinguishes(t *testing.T) {
	text := `We saw the small town of Riverholt (level 4 settlement).
Now it is the small town of Riverholt (level 5 settlement).`

	mentions := ExtractSettlementMentions(text)
	if len(mentions) != 2 {
		t.Fatalf("different levels are distinct mentions, got %d: %v", len(mentions), mentions)
	}
}

func TestExtractSettlementMentionsFallbackLineScan(t *testing.T) {
	text := `No tier wording here at all.
The scouts noted Stonegate (level 7 settlement) on the map.
And later Ironhold (level 2 settlement) too.`

	mentions := ExtractSettlementMentions(text)
	// The fallback scan stops at the first matching line.
	if len(mentions) != 1 {
		t.Fatalf("expected fallback to yield 1 mention, got %d: %v", len(mentions), mentions)
	}
	m := mentions[0]
	if m.Level == nil || *m.Level != 7 || m.Tier != "" {
		t.Errorf("fallback mention = %+v", m)
	}
}

func TestExtractSettlementMentionsEmpty(t *testing.T) {
	mentions := ExtractSettlementMentions("Nothing relevant in this text.")
	if len(mentions) != 0 {
		t.Errorf("expected no mentions, got %v", mentions)
	}
	if mentions == nil {
		t.Error("expected empty slice, not nil")
	}
}
