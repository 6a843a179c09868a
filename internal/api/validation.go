package api

import (
	"fmt"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateKnownHit validates a manually submitted calibration row.
func ValidateKnownHit(hit *models.KnownHit) error {
	hit.Target = strings.TrimSpace(hit.Target)
	if hit.Target == "" {
		return ValidationError{Field: "target", Message: "target is required"}
	}
	if hit.AttackPower <= 0 {
		return ValidationError{Field: "attack_power", Message: "attack power must be positive"}
	}
	if hit.DefensePower <= 0 {
		return ValidationError{Field: "defense_power", Message: "defense power must be positive"}
	}

	hit.ActualOutcome = strings.TrimSpace(hit.ActualOutcome)

	if hit.LandTaken != nil && *hit.LandTaken < 0 {
		return ValidationError{Field: "land_taken", Message: "land taken cannot be negative"}
	}

	return nil
}

// ValidateAllianceName validates an alliance create/update request.
func ValidateAllianceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) > 100 {
		return "", ValidationError{Field: "name", Message: "name too long (max 100 characters)"}
	}
	return name, nil
}

// Slugify lowercases a name and collapses non-alphanumerics to hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
