package reports

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Report text is semi-structured: a stable vocabulary of labels and section
// headers in variable order, with optional sections. These helpers implement
// the line/section scanning the parsers are built on. Every helper reports
// "no match" through its ok/empty return instead of an error.

var (
	kvLineRe      = regexp.MustCompile(`^\s*([^:]{1,80}?)\s*:\s*([0-9][0-9,\s]*)\s*$`)
	sciNotationRe = regexp.MustCompile(`^[+-]?[0-9]+(?:\.[0-9]+)?[eE][+-]?[0-9]+$`)
)

// LineValue finds a line of the form "label: value" (case-insensitive,
// anywhere in the document) and returns the trimmed value.
func LineValue(text, label string) (string, bool) {
	re, err := regexp.Compile(`(?im)^\s*` + regexp.QuoteMeta(label) + `\s*:\s*(.+)$`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return "", false
	}
	return v, true
}

// ParseInt parses an integer that may carry thousands separators, stray
// whitespace, or a scientific-notation exponent (the game renders large
// defensive-power figures like "1.05728e+006").
func ParseInt(s string) (int64, bool) {
	cleaned := cleanNumber(s)
	if cleaned == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return n, true
	}
	if sciNotationRe.MatchString(cleaned) {
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f)), true
	}
	return 0, false
}

// ParseFloat parses a float with the same tolerance as ParseInt.
func ParseFloat(s string) (float64, bool) {
	cleaned := cleanNumber(s)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func cleanNumber(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return strings.Join(strings.Fields(s), "")
}

// Section returns the text after a header line up to (but not including)
// the first line matching any stop header, or to end of document if none
// appears. Header matching is a case-insensitive comparison of the whole
// trimmed line; a trailing colon on the line is tolerated. Returns "" when
// the header is absent.
func Section(text, header string, stopHeaders []string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if headerLineMatches(line, header) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		for _, stop := range stopHeaders {
			if headerLineMatches(lines[i], stop) {
				end = i
				break
			}
		}
		if end != len(lines) {
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

func headerLineMatches(line, header string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimSuffix(trimmed, ":")
	return strings.EqualFold(trimmed, strings.TrimSpace(header))
}

// KVLines parses a section chunk of "name: number" lines into a map.
// Lines that do not match are skipped, not errors: sections routinely mix
// count lines with prose.
func KVLines(chunk string) map[string]int64 {
	out := make(map[string]int64)
	for _, line := range strings.Split(chunk, "\n") {
		m := kvLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		n, ok := ParseInt(m[2])
		if !ok || name == "" {
			continue
		}
		out[name] = n
	}
	return out
}
