package effects

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

var (
	// "+[LEVELx5]% Food generation": delta is sign * level * factor.
	formulaPctRe = regexp.MustCompile(`(?i)([+-]?)\s*\[\s*LEVEL\s*x\s*([0-9]+(?:\.[0-9]+)?)\s*\]\s*%`)
	barePctRe    = regexp.MustCompile(`([+-]?[0-9]+(?:\.[0-9]+)?)\s*%`)

	capPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)max effect amount\s*([+-]?[0-9]+(?:\.[0-9]+)?)\s*%`),
		regexp.MustCompile(`(?i)max effect\s*([+-]?[0-9]+(?:\.[0-9]+)?)\s*%`),
	}
)

// ExtractPct pulls the signed percentage effect out of a building's effect
// text. A [LEVELxF] formula takes precedence over a bare percentage, but
// only when the building level is known; buildings with no percentage at
// all contribute nothing.
func ExtractPct(text string, level int64) (float64, bool) {
	if m := formulaPctRe.FindStringSubmatch(text); m != nil && level > 0 {
		factor, err := strconv.ParseFloat(m[2], 64)
		if err == nil {
			sign := 1.0
			if m[1] == "-" {
				sign = -1.0
			}
			return sign * float64(level) * factor, true
		}
	}

	m := barePctRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractCap pulls an optional "max effect amount N%" cap out of effect text.
func ExtractCap(text string) (float64, bool) {
	for _, re := range capPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// EffectKey classifies a building into one of the known effect buckets by
// keyword, falling back to a per-building-type catch-all key.
func EffectKey(buildingType, effectText string) (string, string) {
	bt := strings.ToLower(strings.TrimSpace(buildingType))
	et := strings.ToLower(effectText)
	switch {
	case strings.Contains(et, "food generation") || bt == "granary":
		return "food_generation_pct", "Food generation"
	case strings.Contains(et, "wood maintenance") || bt == "carpenter":
		return "wood_maintenance_pct", "Wood maintenance"
	case strings.Contains(et, "stone maintenance") || bt == "mason":
		return "stone_maintenance_pct", "Stone maintenance"
	case strings.Contains(et, "houses") || bt == "housing":
		return "house_population_pct", "House population"
	case strings.Contains(et, "stables"):
		return "stables_population_pct", "Stables population"
	case strings.Contains(et, "soldiers per barracks"):
		return "barracks_soldiers_pct", "Barracks soldier count"
	default:
		return "other:" + strings.TrimSpace(buildingType), strings.TrimSpace(buildingType) + " effect"
	}
}

// Aggregate sums same-kind building effects across all of a player's
// settlements into one normalized total per effect key, with the stricter
// of any caps seen applied. Output is sorted by label.
func Aggregate(settlements []models.Settlement) []models.EffectTotal {
	type accumulator struct {
		total   float64
		cap     *float64
		count   int
		label   string
		sources []models.EffectSource
	}
	totals := make(map[string]*accumulator)

	for _, s := range settlements {
		name := s.Name
		if name == "" {
			name = "Settlement " + strconv.FormatInt(s.SettlementID, 10)
		}
		for _, b := range s.Buildings {
			bt := strings.TrimSpace(b.BuildingType)
			if bt == "" {
				continue
			}
			delta, ok := ExtractPct(b.EffectText, b.Level)
			if !ok {
				continue
			}
			key, label := EffectKey(bt, b.EffectText)

			acc := totals[key]
			if acc == nil {
				acc = &accumulator{label: label}
				totals[key] = acc
			}
			acc.total += delta
			acc.count++
			acc.sources = append(acc.sources, models.EffectSource{
				Settlement:   name,
				BuildingType: bt,
				Level:        b.Level,
				DeltaPct:     delta,
			})
			if cap, ok := ExtractCap(b.EffectText); ok {
				acc.cap = mergeCap(acc.cap, cap)
			}
		}
	}

	out := make([]models.EffectTotal, 0, len(totals))
	for key, acc := range totals {
		applied := acc.total
		capReached := false
		var capOut *float64
		if acc.cap != nil {
			capVal := round3(*acc.cap)
			capOut = &capVal
			if *acc.cap >= 0 {
				applied = math.Min(acc.total, *acc.cap)
				capReached = acc.total > *acc.cap
			} else {
				applied = math.Max(acc.total, *acc.cap)
				capReached = acc.total < *acc.cap
			}
		}
		out = append(out, models.EffectTotal{
			EffectKey:     key,
			Label:         acc.label,
			TotalPct:      round3(acc.total),
			CapPct:        capOut,
			AppliedPct:    round3(applied),
			CapReached:    capReached,
			BuildingCount: acc.count,
			Sources:       acc.sources,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// mergeCap keeps the stricter bound when mixed cap data appears: the
// minimum of non-negative caps ("effect cannot exceed X%"), the maximum of
// negative caps ("penalty cannot exceed -X%").
func mergeCap(existing *float64, cap float64) *float64 {
	if existing == nil {
		return &cap
	}
	merged := *existing
	if cap >= 0 {
		merged = math.Min(merged, cap)
	} else {
		merged = math.Max(merged, cap)
	}
	return &merged
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// IsSummaryOnlyBuildings reports whether a settlement's building list looks
// like a one/two-row town-tier summary ("Large Town") instead of real
// per-building data. Live settlement-list responses sometimes include only
// that summary row; callers use this to trigger a detail re-fetch rather
// than aggregating garbage.
func IsSummaryOnlyBuildings(buildings []models.Building) bool {
	if len(buildings) == 0 {
		return true
	}
	if len(buildings) > 2 {
		return false
	}
	for _, b := range buildings {
		if strings.TrimSpace(b.EffectText) != "" {
			return false
		}
		bt := strings.ToLower(strings.TrimSpace(b.BuildingType))
		if !strings.Contains(bt, "town") && !strings.Contains(bt, "city") && !strings.Contains(bt, "settlement") {
			return false
		}
	}
	return true
}
