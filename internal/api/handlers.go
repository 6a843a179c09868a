package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/models"
	"log/slog"
)

const defaultListLimit = 100

// Ingestor accepts raw report text and stores what it extracts.
type Ingestor interface {
	Ingest(ctx context.Context, rawText, submittedBy string) (*ingestion.Result, error)
}

// SpyReportReader reads stored spy reports.
type SpyReportReader interface {
	GetByID(ctx context.Context, id string) (*models.SpyReport, error)
	List(ctx context.Context, target string, limit int) ([]models.SpyReport, error)
}

// AttackReportReader reads stored attack reports.
type AttackReportReader interface {
	GetByID(ctx context.Context, id string) (*models.AttackReport, error)
	List(ctx context.Context, target string, limit int) ([]models.AttackReport, error)
}

// KnownHitStore reads and writes calibration rows.
type KnownHitStore interface {
	Insert(ctx context.Context, hit models.KnownHit) (bool, error)
	List(ctx context.Context, target string, limit int) ([]models.KnownHit, error)
}

// ObservationReader reads stored settlement observations.
type ObservationReader interface {
	ListByKingdom(ctx context.Context, kingdom string, limit int) ([]models.SettlementObservation, error)
	ListRecent(ctx context.Context, limit int) ([]models.SettlementObservation, error)
}

// RankingReader reads rankings snapshots and networth history.
type RankingReader interface {
	ListTopKingdoms(ctx context.Context, limit int) ([]models.KingdomRank, error)
	ListNetworth(ctx context.Context, kingdom string, since time.Time) ([]models.NetworthPoint, error)
}

type Handler struct {
	ingestor      Ingestor
	spyReports    SpyReportReader
	attackReports AttackReportReader
	knownHits     KnownHitStore
	observations  ObservationReader
	rankings      RankingReader
	logger        *slog.Logger
}

func NewHandler(ingestor Ingestor, spyReports SpyReportReader, attackReports AttackReportReader, knownHits KnownHitStore, observations ObservationReader, rankings RankingReader, logger *slog.Logger) *Handler {
	return &Handler{
		ingestor:      ingestor,
		spyReports:    spyReports,
		attackReports: attackReports,
		knownHits:     knownHits,
		observations:  observations,
		rankings:      rankings,
		logger:        logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// queryLimit reads the limit query param, capped to keep responses bounded.
func queryLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}

// IngestRequest is the body of POST /api/reports.
type IngestRequest struct {
	Text string `json:"text"`
}

// IngestReportHandler handles POST /api/reports
func (h *Handler) IngestReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	submittedBy := ""
	if session, ok := sessionUser(r); ok {
		submittedBy = session
	}

	result, err := h.ingestor.Ingest(r.Context(), req.Text, submittedBy)
	if err != nil {
		if errors.Is(err, ingestion.ErrEmptyReport) || errors.Is(err, ingestion.ErrMissingTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to ingest report", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store report")
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// ReportsResponse is the body of GET /api/reports.
type ReportsResponse struct {
	SpyReports    []models.SpyReport    `json:"spy_reports"`
	AttackReports []models.AttackReport `json:"attack_reports"`
}

// ListReportsHandler handles GET /api/reports
func (h *Handler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("target")
	kind := r.URL.Query().Get("kind")
	limit := queryLimit(r)

	resp := ReportsResponse{
		SpyReports:    []models.SpyReport{},
		AttackReports: []models.AttackReport{},
	}

	if kind == "" || kind == string(models.ReportKindSpy) {
		spy, err := h.spyReports.List(r.Context(), target, limit)
		if err != nil {
			h.logger.Error("failed to list spy reports", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.SpyReports = spy
	}

	if kind == "" || kind == string(models.ReportKindAttack) {
		attack, err := h.attackReports.List(r.Context(), target, limit)
		if err != nil {
			h.logger.Error("failed to list attack reports", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.AttackReports = attack
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReportByIDHandler handles GET /api/reports/:id
func (h *Handler) GetReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		writeError(w, http.StatusBadRequest, "Report ID required")
		return
	}
	reportID := parts[3]

	spy, err := h.spyReports.GetByID(r.Context(), reportID)
	if err != nil {
		h.logger.Error("failed to get spy report", "id", reportID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if spy != nil {
		writeJSON(w, http.StatusOK, map[string]any{"kind": models.ReportKindSpy, "report": spy})
		return
	}

	attack, err := h.attackReports.GetByID(r.Context(), reportID)
	if err != nil {
		h.logger.Error("failed to get attack report", "id", reportID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if attack != nil {
		writeJSON(w, http.StatusOK, map[string]any{"kind": models.ReportKindAttack, "report": attack})
		return
	}

	writeError(w, http.StatusNotFound, "Report not found")
}

// KnownHitsHandler handles GET and POST /api/known-hits
func (h *Handler) KnownHitsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listKnownHits(w, r)
	case http.MethodPost:
		h.createKnownHit(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listKnownHits(w http.ResponseWriter, r *http.Request) {
	hits, err := h.knownHits.List(r.Context(), r.URL.Query().Get("target"), queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list known hits", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if hits == nil {
		hits = []models.KnownHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"known_hits": hits, "count": len(hits)})
}

// createKnownHit stores a manually observed calibration row.
func (h *Handler) createKnownHit(w http.ResponseWriter, r *http.Request) {
	var hit models.KnownHit
	if err := json.NewDecoder(r.Body).Decode(&hit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ValidateKnownHit(&hit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hit.RawRatio = hit.AttackPower / hit.DefensePower
	hit.CreatedAt = time.Now().UTC()

	inserted, err := h.knownHits.Insert(r.Context(), hit)
	if err != nil {
		h.logger.Error("failed to insert known hit", "target", hit.Target, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store known hit")
		return
	}
	if !inserted {
		writeError(w, http.StatusConflict, "Known hit already recorded for this attack report")
		return
	}

	writeJSON(w, http.StatusCreated, hit)
}

// ListSettlementsHandler handles GET /api/settlements
func (h *Handler) ListSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kingdom := r.URL.Query().Get("kingdom")
	limit := queryLimit(r)

	var (
		observations []models.SettlementObservation
		err          error
	)
	if kingdom != "" {
		observations, err = h.observations.ListByKingdom(r.Context(), kingdom, limit)
	} else {
		observations, err = h.observations.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to list settlement observations", "kingdom", kingdom, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if observations == nil {
		observations = []models.SettlementObservation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"settlements": observations, "count": len(observations)})
}

// ListRankingsHandler handles GET /api/rankings
func (h *Handler) ListRankingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rows, err := h.rankings.ListTopKingdoms(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list rankings", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rows == nil {
		rows = []models.KingdomRank{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"kingdoms": rows, "count": len(rows)})
}

// NetworthHistoryHandler handles GET /api/nw/:kingdom
func (h *Handler) NetworthHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kingdom := strings.TrimPrefix(r.URL.Path, "/api/nw/")
	if kingdom == "" || strings.Contains(kingdom, "/") {
		writeError(w, http.StatusBadRequest, "Kingdom name required")
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	points, err := h.rankings.ListNetworth(r.Context(), kingdom, since)
	if err != nil {
		h.logger.Error("failed to list networth history", "kingdom", kingdom, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if points == nil {
		points = []models.NetworthPoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"kingdom": kingdom, "points": points, "count": len(points)})
}
