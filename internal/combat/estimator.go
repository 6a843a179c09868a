package combat

import (
	"math"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// Unit is one of the canonical unit buckets compositions are normalized
// into before any power math runs. Report text names units loosely
// ("Veteran Footmen", "Light Cavalry", "Elite guard"), so classification is
// substring-based.
type Unit string

const (
	UnitFootmen     Unit = "footmen"
	UnitPikemen     Unit = "pikemen"
	UnitElites      Unit = "elites"
	UnitArchers     Unit = "archers"
	UnitCrossbowmen Unit = "crossbowmen"
	UnitLightCav    Unit = "lightCav"
	UnitHeavyCav    Unit = "heavyCav"
	UnitKnights     Unit = "knights"
	UnitPeasants    Unit = "peasants"
)

// Weight tables and counter constants are empirically tuned game-balance
// heuristics calibrated against historical known-hit data. Preserve the
// literal values; any change shifts every prediction the calibration table
// was built on.
var attackWeights = map[Unit]float64{
	UnitFootmen:     1,
	UnitPikemen:     2,
	UnitElites:      10,
	UnitArchers:     1,
	UnitCrossbowmen: 3,
	UnitLightCav:    5,
	UnitHeavyCav:    7,
	UnitKnights:     15,
}

var defenseWeights = map[Unit]float64{
	UnitFootmen:     1,
	UnitPikemen:     3,
	UnitElites:      10,
	UnitArchers:     2,
	UnitCrossbowmen: 4,
	UnitLightCav:    4,
	UnitHeavyCav:    8,
	UnitKnights:     15,
}

// Peasants defend with a small flat weight and take part in no counter
// interaction.
const peasantDefenseWeight = 0.1

const (
	counterScale        = 0.25
	counterMaxReduction = 0.40
	pikeVsCavNeedRatio  = 0.25
)

// Composition is a unit-bucket -> count map.
type Composition map[Unit]int64

// ClassifyUnit maps a free-text unit name onto a canonical bucket.
// Order matters: "light cavalry" must hit the light test before the bare
// "cav" fallback, and "crossbowmen" before "archers" would misfire the
// other way around.
func ClassifyUnit(name string) (Unit, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "foot"):
		return UnitFootmen, true
	case strings.Contains(n, "pike"):
		return UnitPikemen, true
	case strings.Contains(n, "elite"):
		return UnitElites, true
	case strings.Contains(n, "crossbow"):
		return UnitCrossbowmen, true
	case strings.Contains(n, "archer"):
		return UnitArchers, true
	case strings.Contains(n, "light") && strings.Contains(n, "cav"):
		return UnitLightCav, true
	case strings.Contains(n, "heavy") && strings.Contains(n, "cav"):
		return UnitHeavyCav, true
	case strings.Contains(n, "knight"):
		return UnitKnights, true
	case strings.Contains(n, "peasant"):
		return UnitPeasants, true
	case strings.Contains(n, "cav"):
		return UnitLightCav, true
	default:
		return "", false
	}
}

// AttackerComposition normalizes an attack report's casualty list into unit
// buckets using the sent counts, which reflect the full committed force.
func AttackerComposition(casualties map[string]models.Casualty) Composition {
	comp := Composition{}
	for name, c := range casualties {
		if unit, ok := ClassifyUnit(name); ok {
			comp[unit] += c.Sent
		}
	}
	return comp
}

// DefenderComposition normalizes a spy report's troop map the same way.
func DefenderComposition(troops map[string]int64) Composition {
	comp := Composition{}
	for name, count := range troops {
		if unit, ok := ClassifyUnit(name); ok {
			comp[unit] += count
		}
	}
	return comp
}

func (c Composition) infantryCount() int64 {
	return c[UnitFootmen] + c[UnitPikemen] + c[UnitElites]
}

func (c Composition) archerCount() int64 {
	return c[UnitArchers] + c[UnitCrossbowmen]
}

func (c Composition) cavalryCount() int64 {
	return c[UnitLightCav] + c[UnitHeavyCav] + c[UnitKnights]
}

func weightedSum(c Composition, weights map[Unit]float64, units ...Unit) float64 {
	var sum float64
	for _, u := range units {
		sum += float64(c[u]) * weights[u]
	}
	return sum
}

// counterReduction computes the damage discount a counter unit imposes on
// its target class: it scales linearly with how close the counter count is
// to the "needed" proportional count and saturates at a 40% reduction.
func counterReduction(counterCount, targetCount int64, needRatio float64) float64 {
	if counterCount <= 0 || targetCount <= 0 {
		return 0
	}
	needed := float64(targetCount) * needRatio
	if needed <= 0 {
		return 0
	}
	reduction := counterScale * (float64(counterCount) / needed)
	if reduction < 0 {
		return 0
	}
	if reduction > counterMaxReduction {
		return counterMaxReduction
	}
	return reduction
}

// AttackPower computes the attacker's weighted power with the defender's
// counters applied: pikemen blunt cavalry, cavalry run down archers,
// archers thin infantry.
func AttackPower(attacker, defender Composition) float64 {
	infantry := weightedSum(attacker, attackWeights, UnitFootmen, UnitPikemen, UnitElites)
	archers := weightedSum(attacker, attackWeights, UnitArchers, UnitCrossbowmen)
	cavalry := weightedSum(attacker, attackWeights, UnitLightCav, UnitHeavyCav, UnitKnights)

	cavalry *= 1 - counterReduction(defender[UnitPikemen], attacker.cavalryCount(), pikeVsCavNeedRatio)
	archers *= 1 - counterReduction(defender.cavalryCount(), attacker.archerCount(), 1.0)
	infantry *= 1 - counterReduction(defender.archerCount(), attacker.infantryCount(), 1.0)

	return infantry + archers + cavalry
}

// DefenseTroopPower computes the defender's weighted power symmetrically,
// with the attacker's counters applied in the opposite direction plus the
// flat peasant contribution.
func DefenseTroopPower(defender, attacker Composition) float64 {
	infantry := weightedSum(defender, defenseWeights, UnitFootmen, UnitPikemen, UnitElites)
	archers := weightedSum(defender, defenseWeights, UnitArchers, UnitCrossbowmen)
	cavalry := weightedSum(defender, defenseWeights, UnitLightCav, UnitHeavyCav, UnitKnights)

	cavalry *= 1 - counterReduction(attacker[UnitPikemen], defender.cavalryCount(), pikeVsCavNeedRatio)
	archers *= 1 - counterReduction(attacker.cavalryCount(), defender.archerCount(), 1.0)
	infantry *= 1 - counterReduction(attacker.archerCount(), defender.infantryCount(), 1.0)

	return infantry + archers + cavalry + float64(defender[UnitPeasants])*peasantDefenseWeight
}

// CastleMultiplier scales defender power by fortification:
// 1 + sqrt(castles)/100.
func CastleMultiplier(castles int64) float64 {
	if castles <= 0 {
		return 1
	}
	return 1 + math.Sqrt(float64(castles))/100
}

// ComputeKnownHit derives a calibration row from an attack report and the
// most recent prior spy report on the same target. Returns nil when
// defender power resolves to nothing measurable; that is an expected
// "insufficient data" outcome, not an error. The caller persists the result
// idempotently keyed on the attack report id.
func ComputeKnownHit(attack models.AttackReport, spy models.SpyReport, castles int64) *models.KnownHit {
	attacker := AttackerComposition(attack.Casualties)
	defender := DefenderComposition(spy.Troops)

	attackPower := AttackPower(attacker, defender)

	// Prefer the directly observed defensive-power figure over the
	// troop-weight model when the spy report carries one.
	var defensePower float64
	if spy.DefensePower != nil && *spy.DefensePower > 0 {
		defensePower = float64(*spy.DefensePower)
	} else {
		defensePower = DefenseTroopPower(defender, attacker)
	}
	defensePower *= CastleMultiplier(castles)

	if defensePower <= 0 {
		return nil
	}

	hit := &models.KnownHit{
		Target:         attack.Target,
		RawRatio:       attackPower / math.Max(1, defensePower),
		ActualOutcome:  attack.Result,
		AttackPower:    attackPower,
		DefensePower:   defensePower,
		AttackReportID: attack.ID,
		ObservedAt:     attack.ReceivedAt,
	}

	for name, amount := range attack.Gains {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "land") || strings.Contains(lower, "acre") {
			taken := amount
			hit.LandTaken = &taken
			break
		}
	}

	return hit
}
