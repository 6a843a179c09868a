package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/kgclient"
	"github.com/reconhub/reconhub/internal/models"
	"log/slog"
)

// GameAuthenticator covers the parts of the game client the login flow uses.
type GameAuthenticator interface {
	Login(ctx context.Context, email, password string) (kgclient.LoginResult, error)
	DiscoverKingdomID(ctx context.Context, accountID int64, token string) (int64, bool)
}

// ConnectionStore persists linked game accounts with encrypted tokens.
type ConnectionStore interface {
	UpsertConnection(ctx context.Context, conn models.GameConnection, tokenEnc string) error
	GetConnection(ctx context.Context, userID string) (*models.GameConnection, string, error)
	DeleteConnection(ctx context.Context, userID string) error
}

// Login attempts allowed per IP over the rate-limit window.
const (
	loginAttemptLimit  = 12
	loginAttemptWindow = 300 * time.Second
)

// AuthHandler handles session issuance and game-account linking. Logging in
// authenticates against the game itself: a successful game login both issues
// the session cookie and stores the game connection for later live fetches.
type AuthHandler struct {
	config      auth.Config
	game        GameAuthenticator
	connections ConnectionStore
	cipher      *auth.TokenCipher
	limiter     *auth.LoginLimiter
	logger      *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(config auth.Config, game GameAuthenticator, connections ConnectionStore, cipher *auth.TokenCipher, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config:      config,
		game:        game,
		connections: connections,
		cipher:      cipher,
		limiter:     auth.NewLoginLimiter(loginAttemptLimit, loginAttemptWindow),
		logger:      logger,
	}
}

// clientIP strips the port from RemoteAddr; the bare address is kept when
// there is no port, e.g. behind some proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	UserID    string    `json:"user_id"`
	KingdomID int64     `json:"kingdom_id,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// sessionUser returns the user id attached by the session middleware.
func sessionUser(r *http.Request) (string, bool) {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		return "", false
	}
	return session.UserID, true
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		h.logger.Warn("login rate limit hit", "ip", ip)
		writeError(w, http.StatusTooManyRequests, "Too many login attempts, please wait")
		return
	}

	ctx := r.Context()
	result, err := h.game.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Warn("failed game login attempt", "ip", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	userID := strconv.FormatInt(result.AccountID, 10)
	kingdomID, _ := h.game.DiscoverKingdomID(ctx, result.AccountID, result.Token)

	// Store the connection so pollers and live fetches can reuse the game
	// session. Failure here is logged but does not block the login.
	if h.cipher != nil && h.connections != nil {
		tokenEnc, err := h.cipher.Encrypt(result.Token)
		if err != nil {
			h.logger.Error("failed to encrypt game token", "error", err)
		} else {
			conn := models.GameConnection{
				UserID:    userID,
				Username:  req.Email,
				AccountID: result.AccountID,
				KingdomID: kingdomID,
			}
			if err := h.connections.UpsertConnection(ctx, conn, tokenEnc); err != nil {
				h.logger.Error("failed to store game connection", "user_id", userID, "error", err)
			}
		}
	}

	token, err := auth.GenerateToken(userID, req.Email, h.config.JWTSecret, h.config.SessionTTL)
	if err != nil {
		h.logger.Error("failed to generate session token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	auth.SetSessionCookie(w, h.config, token)

	h.logger.Info("successful login", "user_id", userID, "ip", r.RemoteAddr)

	session, _ := h.config.SessionFromToken(token)
	writeJSON(w, http.StatusOK, LoginResponse{
		UserID:    userID,
		KingdomID: kingdomID,
		IsAdmin:   session != nil && session.IsAdmin,
		ExpiresAt: time.Now().Add(h.config.SessionTTL),
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/auth/me; runs inside the session middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	resp := map[string]any{
		"user_id":  session.UserID,
		"username": session.Username,
		"is_admin": session.IsAdmin,
	}

	if h.connections != nil {
		conn, _, err := h.connections.GetConnection(r.Context(), session.UserID)
		if err != nil {
			h.logger.Error("failed to load game connection", "user_id", session.UserID, "error", err)
		} else if conn != nil {
			resp["kingdom_id"] = conn.KingdomID
			resp["account_id"] = conn.AccountID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Disconnect handles POST /api/auth/disconnect; removes the stored game
// connection for the current user.
func (h *AuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := h.connections.DeleteConnection(r.Context(), session.UserID); err != nil {
		h.logger.Error("failed to delete game connection", "user_id", session.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
