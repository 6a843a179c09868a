package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/models"
	"log/slog"
)

// Counter reports a table row count.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// ConnectionCounter reports how many game accounts are linked.
type ConnectionCounter interface {
	CountConnections(ctx context.Context) (int, error)
}

// PollFreshness reports when the pollers last landed data.
type PollFreshness interface {
	LatestSnapshotTime(ctx context.Context) (time.Time, error)
	LatestTickTime(ctx context.Context) (time.Time, error)
}

// AllianceStore manages alliances, memberships, and the app-user directory.
type AllianceStore interface {
	Upsert(ctx context.Context, name, slug string) (*models.Alliance, error)
	List(ctx context.Context) ([]models.Alliance, error)
	AssignMembership(ctx context.Context, allianceID int64, userID, username, role string) (*models.AllianceMembership, error)
	RemoveMembership(ctx context.Context, allianceID int64, userID string) error
	ListUsers(ctx context.Context, search string, limit int) ([]models.AppUser, error)
}

// Backfiller re-runs extraction over stored raw reports.
type Backfiller interface {
	Backfill(ctx context.Context, kind models.ReportKind, lastSeq int64, batchSize int) (*ingestion.BackfillResult, error)
}

// NoteStore persists the admin note board.
type NoteStore interface {
	InsertNote(ctx context.Context, note, createdBy, createdByName string) (*models.AdminNote, error)
	ListNotes(ctx context.Context, limit int) ([]models.AdminNote, error)
}

// AdminHandler handles admin-only operations
type AdminHandler struct {
	spyReports    Counter
	attackReports Counter
	knownHits     Counter
	observations  Counter
	connections   ConnectionCounter
	freshness     PollFreshness
	alliances     AllianceStore
	backfiller    Backfiller
	notes         NoteStore
	logger        *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(spyReports, attackReports, knownHits, observations Counter, connections ConnectionCounter, freshness PollFreshness, alliances AllianceStore, backfiller Backfiller, notes NoteStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		spyReports:    spyReports,
		attackReports: attackReports,
		knownHits:     knownHits,
		observations:  observations,
		connections:   connections,
		freshness:     freshness,
		alliances:     alliances,
		backfiller:    backfiller,
		notes:         notes,
		logger:        logger,
	}
}

// OverviewResponse is the body of GET /api/admin/overview. Age fields are
// nil until the corresponding poller has landed at least one row.
type OverviewResponse struct {
	Counts             map[string]int `json:"counts"`
	RankingsAgeSeconds *int64         `json:"rankings_age_seconds"`
	NetworthAgeSeconds *int64         `json:"networth_age_seconds"`
}

// Overview handles GET /api/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	counts := map[string]int{}
	for name, counter := range map[string]Counter{
		"spy_reports":    h.spyReports,
		"attack_reports": h.attackReports,
		"known_hits":     h.knownHits,
		"settlements":    h.observations,
	} {
		n, err := counter.Count(ctx)
		if err != nil {
			h.logger.Error("failed to count table", "table", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		counts[name] = n
	}

	connections, err := h.connections.CountConnections(ctx)
	if err != nil {
		h.logger.Error("failed to count game connections", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	counts["game_connections"] = connections

	resp := OverviewResponse{Counts: counts}

	now := time.Now().UTC()
	if snapshot, err := h.freshness.LatestSnapshotTime(ctx); err != nil {
		h.logger.Error("failed to query rankings freshness", "error", err)
	} else if !snapshot.IsZero() {
		age := int64(now.Sub(snapshot) / time.Second)
		resp.RankingsAgeSeconds = &age
	}
	if tick, err := h.freshness.LatestTickTime(ctx); err != nil {
		h.logger.Error("failed to query networth freshness", "error", err)
	} else if !tick.IsZero() {
		age := int64(now.Sub(tick) / time.Second)
		resp.NetworthAgeSeconds = &age
	}

	writeJSON(w, http.StatusOK, resp)
}

// AlliancesHandler handles GET and POST /api/admin/alliances
func (h *AdminHandler) AlliancesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		alliances, err := h.alliances.List(r.Context())
		if err != nil {
			h.logger.Error("failed to list alliances", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if alliances == nil {
			alliances = []models.Alliance{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"alliances": alliances})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		name, err := ValidateAllianceName(req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		alliance, err := h.alliances.Upsert(r.Context(), name, Slugify(name))
		if err != nil {
			h.logger.Error("failed to upsert alliance", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to store alliance")
			return
		}
		writeJSON(w, http.StatusCreated, alliance)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// MembershipRequest is the body of POST /api/admin/alliances/:id/members.
type MembershipRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AllianceMembersHandler handles POST and DELETE under
// /api/admin/alliances/:id/members.
func (h *AdminHandler) AllianceMembersHandler(w http.ResponseWriter, r *http.Request) {
	// Path shapes:
	//   POST   /api/admin/alliances/:id/members
	//   DELETE /api/admin/alliances/:id/members/:userID
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 5 || parts[4] != "members" {
		http.NotFound(w, r)
		return
	}
	allianceID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alliance ID")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req MembershipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if req.Role == "" {
			req.Role = "member"
		}
		membership, err := h.alliances.AssignMembership(r.Context(), allianceID, req.UserID, req.Username, req.Role)
		if err != nil {
			h.logger.Error("failed to assign membership", "alliance_id", allianceID, "user_id", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to assign membership")
			return
		}
		writeJSON(w, http.StatusCreated, membership)
	case http.MethodDelete:
		if len(parts) < 6 || parts[5] == "" {
			writeError(w, http.StatusBadRequest, "User ID required")
			return
		}
		if err := h.alliances.RemoveMembership(r.Context(), allianceID, parts[5]); err != nil {
			h.logger.Error("failed to remove membership", "alliance_id", allianceID, "user_id", parts[5], "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to remove membership")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// NotesHandler handles GET and POST /api/admin/notes; a shared free-text
// board for operational notes, newest first.
func (h *AdminHandler) NotesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 200
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		if limit < 1 {
			limit = 1
		}
		if limit > 500 {
			limit = 500
		}

		notes, err := h.notes.ListNotes(r.Context(), limit)
		if err != nil {
			h.logger.Error("failed to list admin notes", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if notes == nil {
			notes = []models.AdminNote{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
	case http.MethodPost:
		var req struct {
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		text := strings.TrimSpace(req.Note)
		if text == "" {
			writeError(w, http.StatusBadRequest, "Note cannot be empty")
			return
		}

		session, _ := auth.GetSessionFromContext(r.Context())
		var createdBy, createdByName string
		if session != nil {
			createdBy = session.UserID
			createdByName = session.Username
		}

		note, err := h.notes.InsertNote(r.Context(), text, createdBy, createdByName)
		if err != nil {
			h.logger.Error("failed to insert admin note", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to store note")
			return
		}
		writeJSON(w, http.StatusCreated, note)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ListUsersHandler handles GET /api/admin/users
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := h.alliances.ListUsers(r.Context(), r.URL.Query().Get("search"), queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if users == nil {
		users = []models.AppUser{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// BackfillRequest is the body of POST /api/admin/backfill.
type BackfillRequest struct {
	Kind      string `json:"kind"`
	LastSeq   int64  `json:"last_seq"`
	BatchSize int    `json:"batch_size"`
}

// BackfillHandler handles POST /api/admin/backfill; re-runs extraction over
// one batch of stored raw reports and returns the cursor for the next call.
func (h *AdminHandler) BackfillHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind := models.ReportKind(req.Kind)
	if kind != models.ReportKindSpy && kind != models.ReportKindAttack {
		writeError(w, http.StatusBadRequest, "kind must be \"spy\" or \"attack\"")
		return
	}

	result, err := h.backfiller.Backfill(r.Context(), kind, req.LastSeq, req.BatchSize)
	if err != nil {
		h.logger.Error("backfill failed", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "Backfill failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
