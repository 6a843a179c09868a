package reports

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// The settlement-mention format has drifted across report template versions,
// so extraction layers several patterns from most to least specific and only
// falls back to a raw line scan when none of them hit. Precedence matters:
// the specific patterns anchor on the tier word and town/city noun so they
// do not swallow leading prose into the captured name.
var (
	// "... the small town of Riverholt (level 4 settlement) ..."
	// The tier/noun keywords match case-insensitively but the name itself
	// must be a run of capitalized words, which keeps surrounding prose
	// out of the capture.
	mentionPlainRe = regexp.MustCompile(`\b(?i:(small|medium|large)\s+(?:town|city)\s+(?:of\s+)?)([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)\s*\((?i:level)\s*(\d+)\s+(?i:settlement)\)`)
	// "... about the large city Kingsport (level 9 settlement) ..."
	mentionAboutRe = regexp.MustCompile(`(?i:\babout\s+the\s+(small|medium|large)\s+(?:town|city)\s+(?:of\s+)?)([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)\s*\((?i:level)\s*(\d+)\s+(?i:settlement)\)`)
	// "... medium town Oakvale: ..." (no explicit level in this variant)
	mentionColonRe = regexp.MustCompile(`\b(?i:(small|medium|large)\s+(?:town|city)\s+(?:of\s+)?)([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*):`)
	// last-resort bare form: "Riverholt (level 4 settlement)". Unlike the
	// anchored patterns above, nothing bounds the left edge of the name
	// here, so capitalization does: the name is the run of capitalized
	// words immediately before the parenthetical.
	mentionBareRe = regexp.MustCompile(`([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)\s*\((?i:level)\s*(\d+)\s+(?i:settlement)\)`)
)

// ExtractSettlementMentions scans free text for named settlements with an
// associated tier and level. Never fails; returns an empty slice when
// nothing matches. Mentions are deduplicated by (lowercased name,
// level-or-sentinel, tier).
func ExtractSettlementMentions(text string) []models.SettlementMention {
	var found []models.SettlementMention

	for _, re := range []*regexp.Regexp{mentionAboutRe, mentionPlainRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			tier := strings.ToLower(m[1])
			name := strings.TrimSpace(m[2])
			level, ok := ParseInt(m[3])
			if name == "" || !ok {
				continue
			}
			found = append(found, models.SettlementMention{Name: name, Level: &level, Tier: tier})
		}
	}

	for _, m := range mentionColonRe.FindAllStringSubmatch(text, -1) {
		tier := strings.ToLower(m[1])
		name := strings.TrimSpace(m[2])
		if name == "" {
			continue
		}
		found = append(found, models.SettlementMention{Name: name, Tier: tier})
	}

	if len(found) == 0 {
		found = scanSettlementLines(text)
	}

	return dedupeMentions(found)
}

// scanSettlementLines is the last-resort pass: any line carrying both
// "level" and "settlement" is tried against the bare name pattern, stopping
// at the first hit so boilerplate further down cannot add noise.
func scanSettlementLines(text string) []models.SettlementMention {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "level") || !strings.Contains(lower, "settlement") {
			continue
		}
		m := mentionBareRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		level, ok := ParseInt(m[2])
		if name == "" || !ok {
			continue
		}
		return []models.SettlementMention{{Name: name, Level: &level}}
	}
	return nil
}

func dedupeMentions(mentions []models.SettlementMention) []models.SettlementMention {
	if len(mentions) == 0 {
		return []models.SettlementMention{}
	}
	seen := make(map[string]bool, len(mentions))
	out := make([]models.SettlementMention, 0, len(mentions))
	for _, m := range mentions {
		level := int64(-1)
		if m.Level != nil {
			level = *m.Level
		}
		key := fmt.Sprintf("%s|%d|%s", strings.ToLower(m.Name), level, m.Tier)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
