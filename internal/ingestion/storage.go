package ingestion

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reconhub/reconhub/internal/database"
	"github.com/reconhub/reconhub/internal/models"
)

// SpyReportStore is the persistence surface the ingestion service needs for
// spy reports. Implemented by database.PostgresSpyReportRepository.
type SpyReportStore interface {
	// Insert stores a parsed report with its raw audit blob. Returns
	// database.ErrDuplicate when the content hash is already stored.
	Insert(ctx context.Context, report models.SpyReport, contentHash string, rawGzip []byte) error

	// FindPrior returns the latest report on the target at or before the
	// given time, or (nil, nil).
	FindPrior(ctx context.Context, target string, at time.Time) (*models.SpyReport, error)

	// ListRawAfter returns raw rows with seq greater than lastSeq, in order.
	ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]database.RawReportRow, error)
}

// AttackReportStore is the persistence surface for attack reports.
type AttackReportStore interface {
	Insert(ctx context.Context, report models.AttackReport, contentHash string, rawGzip []byte) error
	ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]database.RawReportRow, error)
}

// KnownHitStore persists calibration rows. Insert reports whether a row was
// actually written; re-deriving the same attack is a no-op.
type KnownHitStore interface {
	Insert(ctx context.Context, hit models.KnownHit) (bool, error)
}

// ObservationStore persists settlement sightings, duplicate-safe.
type ObservationStore interface {
	InsertObservations(ctx context.Context, observations []models.SettlementObservation) error
}

// MemorySpyReportStore implements an in-memory spy report store for testing.
type MemorySpyReportStore struct {
	mu      sync.Mutex
	hashes  map[string]bool
	Reports []models.SpyReport
}

// NewMemorySpyReportStore creates an empty in-memory spy report store.
func NewMemorySpyReportStore() *MemorySpyReportStore {
	return &MemorySpyReportStore{hashes: make(map[string]bool)}
}

func (s *MemorySpyReportStore) Insert(ctx context.Context, report models.SpyReport, contentHash string, rawGzip []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[contentHash] {
		return database.ErrDuplicate
	}
	s.hashes[contentHash] = true
	s.Reports = append(s.Reports, report)
	return nil
}

func (s *MemorySpyReportStore) FindPrior(ctx context.Context, target string, at time.Time) (*models.SpyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.SpyReport
	for i := range s.Reports {
		r := &s.Reports[i]
		if !strings.EqualFold(r.Target, target) || r.CreatedAt.After(at) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *MemorySpyReportStore) ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]database.RawReportRow, error) {
	return nil, nil
}

// MemoryAttackReportStore implements an in-memory attack report store for
// testing.
type MemoryAttackReportStore struct {
	mu      sync.Mutex
	hashes  map[string]bool
	Reports []models.AttackReport
	Raw     []database.RawReportRow
}

// NewMemoryAttackReportStore creates an empty in-memory attack report store.
func NewMemoryAttackReportStore() *MemoryAttackReportStore {
	return &MemoryAttackReportStore{hashes: make(map[string]bool)}
}

func (s *MemoryAttackReportStore) Insert(ctx context.Context, report models.AttackReport, contentHash string, rawGzip []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[contentHash] {
		return database.ErrDuplicate
	}
	s.hashes[contentHash] = true
	s.Reports = append(s.Reports, report)
	s.Raw = append(s.Raw, database.RawReportRow{
		Seq:       int64(len(s.Raw) + 1),
		ID:        report.ID,
		Target:    report.Target,
		RawGzip:   rawGzip,
		CreatedAt: report.CreatedAt,
	})
	return nil
}

func (s *MemoryAttackReportStore) ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]database.RawReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.RawReportRow
	for _, row := range s.Raw {
		if row.Seq > lastSeq {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryKnownHitStore implements an in-memory known hit store for testing.
type MemoryKnownHitStore struct {
	mu       sync.Mutex
	byAttack map[string]bool
	Hits     []models.KnownHit
}

// NewMemoryKnownHitStore creates an empty in-memory known hit store.
func NewMemoryKnownHitStore() *MemoryKnownHitStore {
	return &MemoryKnownHitStore{byAttack: make(map[string]bool)}
}

func (s *MemoryKnownHitStore) Insert(ctx context.Context, hit models.KnownHit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit.AttackReportID != "" {
		if s.byAttack[hit.AttackReportID] {
			return false, nil
		}
		s.byAttack[hit.AttackReportID] = true
	}
	s.Hits = append(s.Hits, hit)
	return true, nil
}

// MemoryObservationStore implements an in-memory observation store for
// testing.
type MemoryObservationStore struct {
	mu           sync.Mutex
	seen         map[string]bool
	Observations []models.SettlementObservation
}

// NewMemoryObservationStore creates an empty in-memory observation store.
func NewMemoryObservationStore() *MemoryObservationStore {
	return &MemoryObservationStore{seen: make(map[string]bool)}
}

func (s *MemoryObservationStore) InsertObservations(ctx context.Context, observations []models.SettlementObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obs := range observations {
		level := int64(-1)
		if obs.Level != nil {
			level = *obs.Level
		}
		key := strings.Join([]string{
			obs.SourceReportID,
			strings.ToLower(obs.SettlementName),
			strconv.FormatInt(level, 10),
			strings.ToLower(obs.Tier),
		}, "|")
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.Observations = append(s.Observations, obs)
	}
	return nil
}
