package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/kgclient"
	"github.com/reconhub/reconhub/internal/models"
)

type fakeSettlementFetcher struct {
	gotSession  kgclient.Session
	settlements []models.Settlement
	err         error
}

func (f *fakeSettlementFetcher) FetchSettlements(ctx context.Context, session kgclient.Session) ([]models.Settlement, error) {
	f.gotSession = session
	return f.settlements, f.err
}

func TestSettlementEffects(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	cipher := testCipher(t)
	tokenEnc, err := cipher.Encrypt("game-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	store := &fakeConnectionStore{
		conn:     &models.GameConnection{UserID: "7", AccountID: 7, KingdomID: 3334},
		tokenEnc: tokenEnc,
	}
	fetcher := &fakeSettlementFetcher{
		settlements: []models.Settlement{{
			SettlementID: 1,
			Name:         "Riverholt",
			Buildings: []models.Building{
				{BuildingType: "Farm", Level: 4, EffectText: "+[LEVELx5]% Food generation, max effect amount 50%"},
				{BuildingType: "Farm", Level: 8, EffectText: "+[LEVELx5]% Food generation, max effect amount 50%"},
			},
		}},
	}
	h := NewEffectsHandler(fetcher, store, cipher, testLogger())
	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.SettlementEffects))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/settlement-effects", "7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The stored token is decrypted before reaching the game client.
	if fetcher.gotSession.Token != "game-token" || fetcher.gotSession.KingdomID != 3334 {
		t.Errorf("unexpected game session: %+v", fetcher.gotSession)
	}

	var resp SettlementEffectsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Settlements) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(resp.Settlements))
	}
	if len(resp.Effects) != 1 {
		t.Fatalf("expected 1 aggregated effect, got %d", len(resp.Effects))
	}
	effect := resp.Effects[0]
	if effect.TotalPct != 60 || effect.AppliedPct != 50 || !effect.CapReached {
		t.Errorf("unexpected aggregation: %+v", effect)
	}
}

func TestSettlementEffectsWithoutConnection(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	h := NewEffectsHandler(&fakeSettlementFetcher{}, &fakeConnectionStore{}, testCipher(t), testLogger())
	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.SettlementEffects))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/settlement-effects", "7"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 without linked account, got %d", rec.Code)
	}
}

func TestSettlementEffectsWithoutCipher(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	store := &fakeConnectionStore{conn: &models.GameConnection{UserID: "7"}, tokenEnc: "enc"}
	h := NewEffectsHandler(&fakeSettlementFetcher{}, store, nil, testLogger())
	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.SettlementEffects))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/settlement-effects", "7"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when no encryption key is configured, got %d", rec.Code)
	}
}

func TestSettlementEffectsGameFailure(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	cipher := testCipher(t)
	tokenEnc, _ := cipher.Encrypt("game-token")
	store := &fakeConnectionStore{conn: &models.GameConnection{UserID: "7"}, tokenEnc: tokenEnc}
	h := NewEffectsHandler(&fakeSettlementFetcher{err: errors.New("game down")}, store, cipher, testLogger())
	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.SettlementEffects))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/settlement-effects", "7"))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on game failure, got %d", rec.Code)
	}
}
