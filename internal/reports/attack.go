package reports

import (
	"regexp"
	"strings"
	"time"

	"github.com/reconhub/reconhub/internal/models"
)

var (
	attackTargetRe  = regexp.MustCompile(`(?im)^\s*attack report:\s*(.+?)\s*\(\s*NW:\s*\+?\s*([0-9][0-9,]*)\s*\)\s*$`)
	attackSubjectRe = regexp.MustCompile(`(?im)^\s*subject:\s*attack report:\s*(.+)$`)

	gainsSentenceRe      = regexp.MustCompile(`(?is)you have gained the following during the attack:\s*(.+?)(?:\.\s|\.$|\n\n|$)`)
	casualtiesSentenceRe = regexp.MustCompile(`(?is)we regret to inform you of the following casualties during the attack:\s*(.+?)(?:\.\s|\.$|\n\n|$)`)

	gainItemRe     = regexp.MustCompile(`^\s*([0-9][0-9,]*)\s+(.+?)\s*$`)
	casualtyItemRe = regexp.MustCompile(`^\s*([0-9][0-9,]*)\s*/\s*([0-9][0-9,]*)\s+(.+?)\s*$`)

	// List items are comma-separated, but the numbers themselves carry
	// thousands separators ("1,200 gold"). Splitting only on a comma
	// followed by whitespace keeps those numbers intact.
	listSplitRe = regexp.MustCompile(`,\s`)
)

// Month-name layouts the game has used for "Received:" lines; both are
// tried since either can appear depending on the report template version.
var receivedLayouts = []string{
	"Jan 2, 2006 3:04:05 PM",
	"2 January 2006 15:04:05",
}

// ParseAttackReport extracts a best-effort snapshot from one raw attack
// report. Like the spy parser it never fails outright; the caller enforces
// the non-empty Target invariant.
func ParseAttackReport(rawText string) models.AttackReport {
	r := models.AttackReport{
		Gains:           map[string]int64{},
		Casualties:      map[string]models.Casualty{},
		SettlementEvent: models.SettlementEventSeen,
	}

	if v, ok := LineValue(rawText, "Received"); ok {
		for _, layout := range receivedLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				utc := ts.UTC()
				r.ReceivedAt = &utc
				break
			}
		}
	}

	if m := attackTargetRe.FindStringSubmatch(rawText); m != nil {
		r.Target = strings.TrimSpace(m[1])
		if nw, ok := ParseInt(m[2]); ok {
			r.TargetNetworth = &nw
		}
	} else if m := attackSubjectRe.FindStringSubmatch(rawText); m != nil {
		r.Target = strings.TrimSpace(m[1])
	}

	if v, ok := LineValue(rawText, "Result"); ok {
		r.Result = v
	}

	if m := gainsSentenceRe.FindStringSubmatch(rawText); m != nil {
		r.Gains = parseGainsList(m[1])
	}
	if m := casualtiesSentenceRe.FindStringSubmatch(rawText); m != nil {
		r.Casualties = parseCasualtyList(m[1])
	}

	r.Settlements = ExtractSettlementMentions(rawText)
	r.SettlementEvent = classifySettlementEvent(rawText)

	return r
}

// parseGainsList splits "1,200 gold, 340 land, 3 trophies" into a map.
func parseGainsList(list string) map[string]int64 {
	out := make(map[string]int64)
	for _, item := range listSplitRe.Split(list, -1) {
		m := gainItemRe.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		n, ok := ParseInt(m[1])
		if !ok {
			continue
		}
		name := strings.TrimSpace(m[2])
		if name == "" {
			continue
		}
		out[name] += n
	}
	return out
}

// parseCasualtyList splits "50/60 Footmen, 3/20 Knights" into lost/sent
// pairs per unit name.
func parseCasualtyList(list string) map[string]models.Casualty {
	out := make(map[string]models.Casualty)
	for _, item := range listSplitRe.Split(list, -1) {
		m := casualtyItemRe.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		lost, okLost := ParseInt(m[1])
		sent, okSent := ParseInt(m[2])
		if !okLost || !okSent {
			continue
		}
		name := strings.TrimSpace(m[3])
		if name == "" {
			continue
		}
		c := out[name]
		c.Lost += lost
		c.Sent += sent
		out[name] = c
	}
	return out
}

// classifySettlementEvent scans lines mentioning a settlement battle for
// outcome phrase markers. Priority order matters: a capture narrative can
// also contain the word "breach", and a failed take can mention the town
// being fought over, so the most specific phrases are checked first.
func classifySettlementEvent(text string) models.SettlementEvent {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "settlement") {
			continue
		}
		if !strings.Contains(lower, "battle") && !strings.Contains(lower, "take the town") {
			continue
		}
		switch {
		case strings.Contains(lower, "unable to take"):
			return models.SettlementEventTakeFailed
		case strings.Contains(lower, "captured"), strings.Contains(lower, "took the town"):
			return models.SettlementEventCaptured
		case strings.Contains(lower, "breach"):
			return models.SettlementEventBreached
		}
	}
	return models.SettlementEventSeen
}
