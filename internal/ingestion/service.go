package ingestion

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reconhub/reconhub/internal/combat"
	"github.com/reconhub/reconhub/internal/database"
	"github.com/reconhub/reconhub/internal/metrics"
	"github.com/reconhub/reconhub/internal/models"
	"github.com/reconhub/reconhub/internal/reports"
)

// ErrEmptyReport is returned when the submission contains no text.
var ErrEmptyReport = errors.New("report text is empty")

// ErrMissingTarget is returned when no target kingdom could be extracted.
// The submission is not stored; the caller should treat this as a client
// error.
var ErrMissingTarget = errors.New("no target kingdom found in report")

// Service turns raw report submissions into stored snapshots, settlement
// observations, and derived known hits.
type Service struct {
	spyReports    SpyReportStore
	attackReports AttackReportStore
	knownHits     KnownHitStore
	observations  ObservationStore
	collector     *metrics.Collector
	logger        *slog.Logger
}

// NewService creates an ingestion service. The collector may be nil.
func NewService(
	spyReports SpyReportStore,
	attackReports AttackReportStore,
	knownHits KnownHitStore,
	observations ObservationStore,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	return &Service{
		spyReports:    spyReports,
		attackReports: attackReports,
		knownHits:     knownHits,
		observations:  observations,
		collector:     collector,
		logger:        logger,
	}
}

// Result describes what one ingestion produced.
type Result struct {
	ID        string            `json:"id"`
	Kind      models.ReportKind `json:"kind"`
	Target    string            `json:"target"`
	Duplicate bool              `json:"duplicate"`
	KnownHit  *models.KnownHit  `json:"known_hit,omitempty"`
}

// Ingest classifies, parses, and persists one raw report submission. The
// raw text is hashed for dedup and stored gzip-compressed for audit and
// backfill. Attack reports additionally attempt known-hit derivation
// against the nearest preceding spy report on the same target.
func (s *Service) Ingest(ctx context.Context, rawText, submittedBy string) (*Result, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, ErrEmptyReport
	}

	kind := reports.Classify(rawText)
	hash := contentHash(rawText)
	rawGzip, err := compress(rawText)
	if err != nil {
		s.collector.ReportIngested(string(kind), "error")
		return nil, fmt.Errorf("compress raw report: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	var result *Result
	switch kind {
	case models.ReportKindAttack:
		result, err = s.ingestAttack(ctx, rawText, submittedBy, id, hash, rawGzip, now)
	default:
		result, err = s.ingestSpy(ctx, rawText, submittedBy, id, hash, rawGzip, now)
	}
	if err != nil {
		status := "error"
		if errors.Is(err, ErrMissingTarget) {
			status = "rejected"
		}
		s.collector.ReportIngested(string(kind), status)
		return nil, err
	}

	status := "stored"
	if result.Duplicate {
		status = "duplicate"
	}
	s.collector.ReportIngested(string(kind), status)
	return result, nil
}

func (s *Service) ingestSpy(ctx context.Context, rawText, submittedBy, id, hash string, rawGzip []byte, now time.Time) (*Result, error) {
	report := reports.ParseSpyReport(rawText)
	if report.Target == "" {
		return nil, ErrMissingTarget
	}
	report.ID = id
	report.SubmittedBy = submittedBy
	report.CreatedAt = now

	err := s.spyReports.Insert(ctx, report, hash, rawGzip)
	if errors.Is(err, database.ErrDuplicate) {
		s.logger.Info("duplicate spy report ignored", "target", report.Target)
		return &Result{ID: id, Kind: models.ReportKindSpy, Target: report.Target, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store spy report: %w", err)
	}

	s.storeObservations(ctx, report.Target, id, report.Settlements, now)

	s.logger.Info("spy report ingested",
		"id", id,
		"target", report.Target,
		"troops", len(report.Troops),
		"settlements", len(report.Settlements),
	)
	return &Result{ID: id, Kind: models.ReportKindSpy, Target: report.Target}, nil
}

func (s *Service) ingestAttack(ctx context.Context, rawText, submittedBy, id, hash string, rawGzip []byte, now time.Time) (*Result, error) {
	report := reports.ParseAttackReport(rawText)
	if report.Target == "" {
		return nil, ErrMissingTarget
	}
	report.ID = id
	report.SubmittedBy = submittedBy
	report.CreatedAt = now

	err := s.attackReports.Insert(ctx, report, hash, rawGzip)
	if errors.Is(err, database.ErrDuplicate) {
		s.logger.Info("duplicate attack report ignored", "target", report.Target)
		return &Result{ID: id, Kind: models.ReportKindAttack, Target: report.Target, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store attack report: %w", err)
	}

	s.storeObservations(ctx, report.Target, id, report.Settlements, now)

	hit := s.deriveKnownHit(ctx, report)

	s.logger.Info("attack report ingested",
		"id", id,
		"target", report.Target,
		"event", report.SettlementEvent,
		"known_hit", hit != nil,
	)
	return &Result{ID: id, Kind: models.ReportKindAttack, Target: report.Target, KnownHit: hit}, nil
}

// deriveKnownHit joins an attack report to the nearest preceding spy report
// on the same target and stores the resulting calibration row. Failures are
// logged, never surfaced: derivation is a best-effort enrichment.
func (s *Service) deriveKnownHit(ctx context.Context, attack models.AttackReport) *models.KnownHit {
	at := attack.CreatedAt
	if attack.ReceivedAt != nil {
		at = *attack.ReceivedAt
	}

	spy, err := s.spyReports.FindPrior(ctx, attack.Target, at)
	if err != nil {
		s.logger.Warn("prior spy report lookup failed", "target", attack.Target, "error", err)
		return nil
	}
	if spy == nil {
		return nil
	}

	var castles int64
	if spy.Castles != nil {
		castles = *spy.Castles
	}

	hit := combat.ComputeKnownHit(attack, *spy, castles)
	if hit == nil {
		return nil
	}
	hit.CreatedAt = time.Now().UTC()

	inserted, err := s.knownHits.Insert(ctx, *hit)
	if err != nil {
		s.logger.Warn("known hit insert failed", "target", attack.Target, "error", err)
		return nil
	}
	if !inserted {
		return nil
	}

	s.collector.KnownHitDerived()
	s.logger.Info("known hit derived",
		"target", attack.Target,
		"raw_ratio", hit.RawRatio,
		"outcome", hit.ActualOutcome,
	)
	return hit
}

func (s *Service) storeObservations(ctx context.Context, kingdom, reportID string, mentions []models.SettlementMention, now time.Time) {
	if len(mentions) == 0 {
		return
	}

	observations := make([]models.SettlementObservation, 0, len(mentions))
	for _, m := range mentions {
		observations = append(observations, models.SettlementObservation{
			Kingdom:        kingdom,
			SettlementName: m.Name,
			Level:          m.Level,
			Tier:           m.Tier,
			SourceReportID: reportID,
			ObservedAt:     now,
		})
	}

	if err := s.observations.InsertObservations(ctx, observations); err != nil {
		s.logger.Warn("settlement observation insert failed", "kingdom", kingdom, "error", err)
	}
}

func contentHash(rawText string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawText)))
	return hex.EncodeToString(sum[:])
}

func compress(rawText string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(rawText)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
