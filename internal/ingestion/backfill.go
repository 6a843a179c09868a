package ingestion

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/reconhub/reconhub/internal/database"
	"github.com/reconhub/reconhub/internal/models"
	"github.com/reconhub/reconhub/internal/reports"
)

// BackfillResult summarizes one backfill batch. LastSeq is the cursor to
// pass to the next call; Scanned == 0 means the scan is complete.
type BackfillResult struct {
	Kind      models.ReportKind `json:"kind"`
	Scanned   int               `json:"scanned"`
	KnownHits int               `json:"known_hits"`
	LastSeq   int64             `json:"last_seq"`
}

// Backfill re-runs extraction over one batch of stored raw reports, starting
// after the lastSeq cursor. Settlement mentions are re-extracted for both
// kinds; attack reports additionally re-attempt known-hit derivation.
// Unique constraints make re-processing a row a no-op, so interrupted scans
// can safely restart from any earlier cursor.
func (s *Service) Backfill(ctx context.Context, kind models.ReportKind, lastSeq int64, batchSize int) (*BackfillResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var rows []database.RawReportRow
	var err error
	switch kind {
	case models.ReportKindAttack:
		rows, err = s.attackReports.ListRawAfter(ctx, lastSeq, batchSize)
	case models.ReportKindSpy:
		rows, err = s.spyReports.ListRawAfter(ctx, lastSeq, batchSize)
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list raw reports: %w", err)
	}

	result := &BackfillResult{Kind: kind, LastSeq: lastSeq}
	for _, row := range rows {
		result.Scanned++
		result.LastSeq = row.Seq

		rawText, err := decompress(row.RawGzip)
		if err != nil {
			s.logger.Warn("backfill decompress failed", "id", row.ID, "error", err)
			continue
		}

		mentions := reports.ExtractSettlementMentions(rawText)
		s.storeObservations(ctx, row.Target, row.ID, mentions, row.CreatedAt)

		if kind == models.ReportKindAttack {
			attack := reports.ParseAttackReport(rawText)
			attack.ID = row.ID
			attack.CreatedAt = row.CreatedAt
			if attack.Target == "" {
				attack.Target = row.Target
			}
			if s.deriveKnownHit(ctx, attack) != nil {
				result.KnownHits++
			}
		}
	}

	s.logger.Info("backfill batch complete",
		"kind", kind,
		"scanned", result.Scanned,
		"known_hits", result.KnownHits,
		"last_seq", result.LastSeq,
	)
	return result, nil
}

func decompress(rawGzip []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(rawGzip))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
