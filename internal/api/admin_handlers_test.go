package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/models"
)

type fixedCounter int

func (c fixedCounter) Count(ctx context.Context) (int, error) { return int(c), nil }

type fakeConnCounter int

func (c fakeConnCounter) CountConnections(ctx context.Context) (int, error) { return int(c), nil }

type fakeFreshness struct {
	snapshot time.Time
	tick     time.Time
}

func (f *fakeFreshness) LatestSnapshotTime(ctx context.Context) (time.Time, error) {
	return f.snapshot, nil
}

func (f *fakeFreshness) LatestTickTime(ctx context.Context) (time.Time, error) {
	return f.tick, nil
}

type fakeAllianceStore struct {
	alliances   []models.Alliance
	memberships []models.AllianceMembership
	users       []models.AppUser
	removed     []string
}

func (f *fakeAllianceStore) Upsert(ctx context.Context, name, slug string) (*models.Alliance, error) {
	alliance := models.Alliance{ID: int64(len(f.alliances) + 1), Name: name, Slug: slug}
	f.alliances = append(f.alliances, alliance)
	return &alliance, nil
}

func (f *fakeAllianceStore) List(ctx context.Context) ([]models.Alliance, error) {
	return f.alliances, nil
}

func (f *fakeAllianceStore) AssignMembership(ctx context.Context, allianceID int64, userID, username, role string) (*models.AllianceMembership, error) {
	m := models.AllianceMembership{ID: int64(len(f.memberships) + 1), AllianceID: allianceID, UserID: userID, Role: role, Status: "active"}
	f.memberships = append(f.memberships, m)
	return &m, nil
}

func (f *fakeAllianceStore) RemoveMembership(ctx context.Context, allianceID int64, userID string) error {
	f.removed = append(f.removed, userID)
	return nil
}

func (f *fakeAllianceStore) ListUsers(ctx context.Context, search string, limit int) ([]models.AppUser, error) {
	return f.users, nil
}

type fakeBackfiller struct {
	result *ingestion.BackfillResult
	kind   models.ReportKind
}

func (f *fakeBackfiller) Backfill(ctx context.Context, kind models.ReportKind, lastSeq int64, batchSize int) (*ingestion.BackfillResult, error) {
	f.kind = kind
	return f.result, nil
}

type fakeNoteStore struct {
	notes []models.AdminNote
}

func (f *fakeNoteStore) InsertNote(ctx context.Context, note, createdBy, createdByName string) (*models.AdminNote, error) {
	n := models.AdminNote{ID: int64(len(f.notes) + 1), Note: note, CreatedBy: createdBy, CreatedByName: createdByName, CreatedAt: time.Now().UTC()}
	f.notes = append(f.notes, n)
	return &n, nil
}

func (f *fakeNoteStore) ListNotes(ctx context.Context, limit int) ([]models.AdminNote, error) {
	if limit < len(f.notes) {
		return f.notes[:limit], nil
	}
	return f.notes, nil
}

func newTestAdminHandler(alliances *fakeAllianceStore, backfiller *fakeBackfiller, freshness *fakeFreshness) *AdminHandler {
	if alliances == nil {
		alliances = &fakeAllianceStore{}
	}
	if backfiller == nil {
		backfiller = &fakeBackfiller{result: &ingestion.BackfillResult{}}
	}
	if freshness == nil {
		freshness = &fakeFreshness{}
	}
	return NewAdminHandler(fixedCounter(3), fixedCounter(2), fixedCounter(1), fixedCounter(5), fakeConnCounter(4), freshness, alliances, backfiller, &fakeNoteStore{}, testLogger())
}

func TestAdminOverview(t *testing.T) {
	now := time.Now().UTC()
	freshness := &fakeFreshness{snapshot: now.Add(-90 * time.Second)}
	h := newTestAdminHandler(nil, nil, freshness)

	rec := httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp OverviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Counts["spy_reports"] != 3 || resp.Counts["game_connections"] != 4 {
		t.Errorf("unexpected counts: %+v", resp.Counts)
	}
	if resp.RankingsAgeSeconds == nil || *resp.RankingsAgeSeconds < 89 {
		t.Errorf("expected rankings age around 90s, got %v", resp.RankingsAgeSeconds)
	}
	// Networth poller has never run.
	if resp.NetworthAgeSeconds != nil {
		t.Errorf("expected nil networth age, got %v", *resp.NetworthAgeSeconds)
	}
}

func TestCreateAlliance(t *testing.T) {
	store := &fakeAllianceStore{}
	h := newTestAdminHandler(store, nil, nil)

	body, _ := json.Marshal(map[string]string{"name": "Knights of Avalon"})
	rec := httptest.NewRecorder()
	h.AlliancesHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/alliances", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.alliances) != 1 || store.alliances[0].Slug != "knights-of-avalon" {
		t.Errorf("unexpected stored alliance: %+v", store.alliances)
	}

	// Empty name rejected.
	body, _ = json.Marshal(map[string]string{"name": "   "})
	rec = httptest.NewRecorder()
	h.AlliancesHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/alliances", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rec.Code)
	}
}

func TestAllianceMembership(t *testing.T) {
	store := &fakeAllianceStore{}
	h := newTestAdminHandler(store, nil, nil)

	body, _ := json.Marshal(MembershipRequest{UserID: "42", Username: "galileo"})
	rec := httptest.NewRecorder()
	h.AllianceMembersHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/alliances/7/members", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.memberships) != 1 || store.memberships[0].AllianceID != 7 || store.memberships[0].Role != "member" {
		t.Errorf("unexpected membership: %+v", store.memberships)
	}

	rec = httptest.NewRecorder()
	h.AllianceMembersHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/alliances/7/members/42", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.removed) != 1 || store.removed[0] != "42" {
		t.Errorf("expected user 42 removed, got %v", store.removed)
	}

	// Bad alliance id.
	rec = httptest.NewRecorder()
	h.AllianceMembersHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/alliances/abc/members", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad alliance id, got %d", rec.Code)
	}
}

func TestAdminNotes(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour, AdminUserIDs: []string{"42"}}
	store := &fakeNoteStore{}
	h := NewAdminHandler(fixedCounter(0), fixedCounter(0), fixedCounter(0), fixedCounter(0), fakeConnCounter(0), &fakeFreshness{}, &fakeAllianceStore{}, &fakeBackfiller{}, store, testLogger())
	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.NotesHandler))

	body, _ := json.Marshal(map[string]string{"note": "  rankings poller needs a new token  "})
	req := sessionRequest(t, cfg, http.MethodPost, "/api/admin/notes", "42")
	req.Body = io.NopCloser(bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.notes) != 1 {
		t.Fatalf("expected 1 stored note, got %d", len(store.notes))
	}
	// Trimmed, and stamped with the session identity.
	if store.notes[0].Note != "rankings poller needs a new token" || store.notes[0].CreatedBy != "42" {
		t.Errorf("unexpected stored note: %+v", store.notes[0])
	}

	// Blank note rejected.
	body, _ = json.Marshal(map[string]string{"note": "   "})
	req = sessionRequest(t, cfg, http.MethodPost, "/api/admin/notes", "42")
	req.Body = io.NopCloser(bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank note, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/admin/notes", "42"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Notes []models.AdminNote `json:"notes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Notes) != 1 {
		t.Errorf("expected 1 note listed, got %d", len(resp.Notes))
	}
}

func TestBackfillHandler(t *testing.T) {
	backfiller := &fakeBackfiller{result: &ingestion.BackfillResult{Kind: models.ReportKindAttack, Scanned: 10, KnownHits: 2, LastSeq: 10}}
	h := newTestAdminHandler(nil, backfiller, nil)

	body, _ := json.Marshal(BackfillRequest{Kind: "attack", BatchSize: 10})
	rec := httptest.NewRecorder()
	h.BackfillHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/backfill", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if backfiller.kind != models.ReportKindAttack {
		t.Errorf("expected attack kind, got %q", backfiller.kind)
	}

	var result ingestion.BackfillResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Scanned != 10 || result.KnownHits != 2 {
		t.Errorf("unexpected result: %+v", result)
	}

	// Unknown kind rejected.
	body, _ = json.Marshal(BackfillRequest{Kind: "rss"})
	rec = httptest.NewRecorder()
	h.BackfillHandler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/backfill", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdminSession(t *testing.T) {
	mux := http.NewServeMux()
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour, AdminUserIDs: []string{"42"}}
	SetupRoutes(mux, Deps{
		Ingestor:      &fakeIngestor{result: &ingestion.Result{ID: "r1"}},
		SpyReports:    &fakeSpyReader{},
		AttackReports: &fakeAttackReader{},
		KnownHits:     &fakeKnownHitStore{},
		Observations:  &fakeObservationReader{},
		Rankings:      &fakeRankingReader{},
		SpyCounter:    fixedCounter(0),
		AttackCounter: fixedCounter(0),
		HitCounter:    fixedCounter(0),
		ObsCounter:    fixedCounter(0),
		ConnCounter:   fakeConnCounter(0),
		Freshness:     &fakeFreshness{},
		Alliances:     &fakeAllianceStore{},
		Backfiller:    &fakeBackfiller{result: &ingestion.BackfillResult{}},
		Notes:         &fakeNoteStore{},
		AuthConfig:    cfg,
		Logger:        testLogger(),
	})

	// No session.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", rec.Code)
	}

	// Non-admin session.
	userToken, _ := auth.GenerateToken("7", "kepler", cfg.JWTSecret, cfg.SessionTTL)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: userToken})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", rec.Code)
	}

	// Admin session.
	adminToken, _ := auth.GenerateToken("42", "galileo", cfg.JWTSecret, cfg.SessionTTL)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: adminToken})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	// Public reads stay open.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for public report list, got %d", rec.Code)
	}

	// CORS preflight succeeds without a session.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/admin/overview", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS headers on preflight")
	}
}
