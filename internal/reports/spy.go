package reports

import (
	"regexp"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// Section header vocabulary for spy reports. The sections appear in variable
// order and any of them may be missing, so each extraction is bounded by the
// set of headers that can follow it rather than a fixed layout.
const (
	resourcesHeader = "Resources"
	troopsHeader    = "Troops"
	researchHeader  = "Technology"
)

var (
	troopsStopHeaders   = []string{"Movement history", "Market", researchHeader, "Town details", "Settlements"}
	researchStopHeaders = []string{"Movement history", "Market", "Town details", "Settlements"}

	defensePowerRe = regexp.MustCompile(`(?im)^\s*approximate defensive power\*?\s*:\s*([0-9.,eE+\s]+)$`)
	researchLvRe   = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:lv|lvl|level)\.?\s*(\d+)\s*$`)
	researchKVRe   = regexp.MustCompile(`^\s*(.+?)\s*:\s*(\d+)\s*$`)
)

// ParseSpyReport extracts a best-effort snapshot from one raw spy report.
// The parse itself always succeeds; callers enforce the one hard invariant
// (non-empty Target) at the ingestion boundary.
func ParseSpyReport(rawText string) models.SpyReport {
	r := models.SpyReport{
		Troops:    map[string]int64{},
		Resources: map[string]int64{},
		Research:  map[string]int64{},
	}

	if v, ok := LineValue(rawText, "Target"); ok {
		r.Target = v
	}
	if v, ok := LineValue(rawText, "Alliance"); ok {
		r.Alliance = v
	}
	if v, ok := LineValue(rawText, "Result"); ok {
		r.Result = v
	}
	r.Honour = floatField(rawText, "Honour")
	r.Ranking = intField(rawText, "Ranking")
	r.Networth = intField(rawText, "Networth")
	r.SpiesSent = intField(rawText, "Spies sent")
	r.SpiesLost = intField(rawText, "Spies lost")
	r.Castles = intField(rawText, "Castles")

	// Defensive power gets its own pattern: the value often renders in
	// scientific notation and the label carries a footnote asterisk.
	if m := defensePowerRe.FindStringSubmatch(rawText); m != nil {
		if n, ok := ParseInt(m[1]); ok {
			r.DefensePower = &n
		}
	}

	r.Resources = KVLines(Section(rawText, resourcesHeader, []string{troopsHeader}))
	r.Troops = filterPseudoTroops(KVLines(Section(rawText, troopsHeader, troopsStopHeaders)))
	r.Research = parseResearch(Section(rawText, researchHeader, researchStopHeaders))
	r.Settlements = ExtractSettlementMentions(rawText)

	return r
}

func intField(text, label string) *int64 {
	v, ok := LineValue(text, label)
	if !ok {
		return nil
	}
	n, ok := ParseInt(v)
	if !ok {
		return nil
	}
	return &n
}

func floatField(text, label string) *float64 {
	v, ok := LineValue(text, label)
	if !ok {
		return nil
	}
	f, ok := ParseFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// filterPseudoTroops drops the two synthetic rows the game appends to the
// troops section: a "Population" total and a "Defensive power" figure.
// Neither is a troop type and both would poison downstream unit counts.
func filterPseudoTroops(troops map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(troops))
	for name, count := range troops {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "population") {
			continue
		}
		if strings.Contains(lower, "defensive power") {
			continue
		}
		out[name] = count
	}
	return out
}

// parseResearch accepts both "Horse Breeding Lv 5" and "Horse Breeding: 5"
// line shapes. The same research can appear more than once in one document
// (current level plus an in-progress line); the maximum level wins.
func parseResearch(chunk string) map[string]int64 {
	out := make(map[string]int64)
	record := func(name string, level int64) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if existing, ok := out[name]; !ok || level > existing {
			out[name] = level
		}
	}

	for _, line := range strings.Split(chunk, "\n") {
		if m := researchLvRe.FindStringSubmatch(line); m != nil {
			if n, ok := ParseInt(m[2]); ok {
				record(m[1], n)
			}
			continue
		}
		if m := researchKVRe.FindStringSubmatch(line); m != nil {
			if n, ok := ParseInt(m[2]); ok {
				record(m[1], n)
			}
		}
	}
	return out
}
