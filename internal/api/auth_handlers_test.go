package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
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

type fakeGame struct {
	loginErr  error
	accountID int64
	token     string
	kingdomID int64
}

func (f *fakeGame) Login(ctx context.Context, email, password string) (kgclient.LoginResult, error) {
	if f.loginErr != nil {
		return kgclient.LoginResult{}, f.loginErr
	}
	return kgclient.LoginResult{AccountID: f.accountID, Token: f.token}, nil
}

func (f *fakeGame) DiscoverKingdomID(ctx context.Context, accountID int64, token string) (int64, bool) {
	return f.kingdomID, f.kingdomID != 0
}

type fakeConnectionStore struct {
	conn      *models.GameConnection
	tokenEnc  string
	deleted   bool
	upsertErr error
}

func (f *fakeConnectionStore) UpsertConnection(ctx context.Context, conn models.GameConnection, tokenEnc string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	c := conn
	f.conn = &c
	f.tokenEnc = tokenEnc
	return nil
}

func (f *fakeConnectionStore) GetConnection(ctx context.Context, userID string) (*models.GameConnection, string, error) {
	if f.conn == nil || f.conn.UserID != userID {
		return nil, "", nil
	}
	return f.conn, f.tokenEnc, nil
}

func (f *fakeConnectionStore) DeleteConnection(ctx context.Context, userID string) error {
	f.conn = nil
	f.deleted = true
	return nil
}

func testCipher(t *testing.T) *auth.TokenCipher {
	t.Helper()
	key := make([]byte, 32)
	rand.Read(key)
	cipher, err := auth.NewTokenCipher(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	return cipher
}

func TestLoginIssuesSessionAndStoresConnection(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour, AdminUserIDs: []string{"99"}}
	game := &fakeGame{accountID: 99, token: "game-token", kingdomID: 3334}
	store := &fakeConnectionStore{}
	cipher := testCipher(t)
	h := NewAuthHandler(cfg, game, store, cipher, testLogger())

	body, _ := json.Marshal(LoginRequest{Email: "spy@example.com", Password: "hunter2"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.UserID != "99" || resp.KingdomID != 3334 || !resp.IsAdmin {
		t.Errorf("unexpected response: %+v", resp)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	session, err := cfg.SessionFromToken(sessionCookie.Value)
	if err != nil {
		t.Fatalf("cookie token invalid: %v", err)
	}
	if session.UserID != "99" {
		t.Errorf("expected session user 99, got %q", session.UserID)
	}

	// The game token is stored encrypted, never in the clear.
	if store.conn == nil || store.conn.AccountID != 99 {
		t.Fatalf("expected stored connection, got %+v", store.conn)
	}
	if store.tokenEnc == "game-token" || store.tokenEnc == "" {
		t.Errorf("token stored unencrypted: %q", store.tokenEnc)
	}
	if got, err := cipher.Decrypt(store.tokenEnc); err != nil || got != "game-token" {
		t.Errorf("stored token does not round-trip: %q, %v", got, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	game := &fakeGame{loginErr: errors.New("login rejected")}
	h := NewAuthHandler(cfg, game, nil, nil, testLogger())

	body, _ := json.Marshal(LoginRequest{Email: "spy@example.com", Password: "wrong"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	// Missing fields never reach the game.
	body, _ = json.Marshal(LoginRequest{Email: "spy@example.com"})
	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	game := &fakeGame{loginErr: errors.New("login rejected")}
	h := NewAuthHandler(cfg, game, nil, nil, testLogger())

	body, _ := json.Marshal(LoginRequest{Email: "spy@example.com", Password: "wrong"})
	for i := 0; i < 12; i++ {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	// The 13th attempt from the same IP inside the window is throttled
	// before it reaches the game.
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestLoginSurvivesConnectionStoreFailure(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	game := &fakeGame{accountID: 7, token: "tok"}
	store := &fakeConnectionStore{upsertErr: errors.New("db down")}
	h := NewAuthHandler(cfg, game, store, testCipher(t), testLogger())

	body, _ := json.Marshal(LoginRequest{Email: "spy@example.com", Password: "hunter2"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Errorf("expected login to succeed despite store failure, got %d", rec.Code)
	}
}

func sessionRequest(t *testing.T, cfg auth.Config, method, target, userID string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(userID, "spy@example.com", cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	return req
}

func TestMeIncludesConnection(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	store := &fakeConnectionStore{
		conn:     &models.GameConnection{UserID: "7", AccountID: 7, KingdomID: 3334},
		tokenEnc: "enc",
	}
	h := NewAuthHandler(cfg, &fakeGame{}, store, nil, testLogger())

	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.Me))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodGet, "/api/auth/me", "7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["user_id"] != "7" {
		t.Errorf("expected user_id 7, got %v", resp["user_id"])
	}
	if resp["kingdom_id"] != float64(3334) {
		t.Errorf("expected kingdom_id 3334, got %v", resp["kingdom_id"])
	}
}

func TestDisconnectRemovesConnection(t *testing.T) {
	cfg := auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	store := &fakeConnectionStore{conn: &models.GameConnection{UserID: "7"}}
	h := NewAuthHandler(cfg, &fakeGame{}, store, nil, testLogger())

	handler := auth.SessionMiddleware(cfg)(http.HandlerFunc(h.Disconnect))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, cfg, http.MethodPost, "/api/auth/disconnect", "7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.deleted {
		t.Error("expected connection to be deleted")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h := NewAuthHandler(auth.Config{JWTSecret: "secret", SessionTTL: time.Hour}, &fakeGame{}, nil, nil, testLogger())
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected expiring session cookie, got %+v", cookies)
	}
}
