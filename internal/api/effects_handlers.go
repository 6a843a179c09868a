package api

import (
	"context"
	"net/http"

	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/effects"
	"github.com/reconhub/reconhub/internal/kgclient"
	"github.com/reconhub/reconhub/internal/models"
	"log/slog"
)

// SettlementFetcher covers the live settlement fetch on the game client.
type SettlementFetcher interface {
	FetchSettlements(ctx context.Context, session kgclient.Session) ([]models.Settlement, error)
}

// EffectsHandler serves live building-effects aggregation for the current
// user's linked game account.
type EffectsHandler struct {
	game        SettlementFetcher
	connections ConnectionStore
	cipher      *auth.TokenCipher
	logger      *slog.Logger
}

func NewEffectsHandler(game SettlementFetcher, connections ConnectionStore, cipher *auth.TokenCipher, logger *slog.Logger) *EffectsHandler {
	return &EffectsHandler{
		game:        game,
		connections: connections,
		cipher:      cipher,
		logger:      logger,
	}
}

// SettlementEffectsResponse is the body of GET /api/settlement-effects.
type SettlementEffectsResponse struct {
	Settlements []models.Settlement  `json:"settlements"`
	Effects     []models.EffectTotal `json:"effects"`
}

// SettlementEffects handles GET /api/settlement-effects; runs inside the
// session middleware.
func (h *EffectsHandler) SettlementEffects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conn, tokenEnc, err := h.connections.GetConnection(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load game connection", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if conn == nil {
		writeError(w, http.StatusConflict, "No linked game account; log in again to connect")
		return
	}

	// A connection row can outlive the encryption key configuration.
	if h.cipher == nil {
		writeError(w, http.StatusInternalServerError, "Token encryption is not configured")
		return
	}

	token, err := h.cipher.Decrypt(tokenEnc)
	if err != nil {
		h.logger.Error("failed to decrypt game token", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Stored game token is unreadable; log in again")
		return
	}

	settlements, err := h.game.FetchSettlements(r.Context(), kgclient.Session{
		AccountID: conn.AccountID,
		Token:     token,
		KingdomID: conn.KingdomID,
	})
	if err != nil {
		h.logger.Error("failed to fetch settlements", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch settlements from the game")
		return
	}

	writeJSON(w, http.StatusOK, SettlementEffectsResponse{
		Settlements: settlements,
		Effects:     effects.Aggregate(settlements),
	})
}
