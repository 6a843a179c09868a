package reports

import (
	"regexp"

	"github.com/reconhub/reconhub/internal/models"
)

var attackHeaderRe = regexp.MustCompile(`(?im)^\s*(?:subject:\s*)?attack report:`)

// Classify decides which parser handles a raw report. Anything without an
// "Attack Report:" header line (bare or as a mail subject) is treated as a
// spy report.
func Classify(rawText string) models.ReportKind {
	if attackHeaderRe.MatchString(rawText) {
		return models.ReportKindAttack
	}
	return models.ReportKindSpy
}
