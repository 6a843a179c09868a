package api

import (
	"net/http"

	"github.com/reconhub/reconhub/internal/auth"
	"log/slog"
)

// Deps collects everything the routes need. Fields mirror the handler
// constructor arguments; optional ones may be nil and disable their routes.
type Deps struct {
	Ingestor      Ingestor
	SpyReports    SpyReportReader
	AttackReports AttackReportReader
	KnownHits     KnownHitStore
	Observations  ObservationReader
	Rankings      RankingReader

	SpyCounter    Counter
	AttackCounter Counter
	HitCounter    Counter
	ObsCounter    Counter
	Connections   ConnectionStore
	ConnCounter   ConnectionCounter
	Freshness     PollFreshness
	Alliances     AllianceStore
	Backfiller    Backfiller
	Notes         NoteStore

	Game        GameAuthenticator
	Settlements SettlementFetcher
	TokenCipher *auth.TokenCipher
	AuthConfig  auth.Config
	Logger      *slog.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, deps Deps) {
	logger := deps.Logger
	handler := NewHandler(deps.Ingestor, deps.SpyReports, deps.AttackReports, deps.KnownHits, deps.Observations, deps.Rankings, logger)
	authHandler := NewAuthHandler(deps.AuthConfig, deps.Game, deps.Connections, deps.TokenCipher, logger)
	effectsHandler := NewEffectsHandler(deps.Settlements, deps.Connections, deps.TokenCipher, logger)
	adminHandler := NewAdminHandler(deps.SpyCounter, deps.AttackCounter, deps.HitCounter, deps.ObsCounter, deps.ConnCounter, deps.Freshness, deps.Alliances, deps.Backfiller, deps.Notes, logger)

	sessionMiddleware := auth.SessionMiddleware(deps.AuthConfig)
	adminMiddleware := auth.AdminMiddleware()

	requireSession := func(h http.HandlerFunc) http.Handler {
		return sessionMiddleware(h)
	}
	requireAdmin := func(h http.HandlerFunc) http.Handler {
		return sessionMiddleware(adminMiddleware(h))
	}

	// route stamps CORS headers and answers preflight before the handler
	// (and any auth middleware) runs.
	route := func(path string, h http.Handler) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			h.ServeHTTP(w, r)
		})
	}

	// Authentication routes
	route("/api/auth/login", http.HandlerFunc(authHandler.Login))
	route("/api/auth/logout", http.HandlerFunc(authHandler.Logout))
	route("/api/auth/me", requireSession(authHandler.Me))
	route("/api/auth/disconnect", requireSession(authHandler.Disconnect))

	// Report routes; submitting requires a session so reports carry a
	// submitter, reading is open.
	route("/api/reports", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			requireSession(handler.IngestReportHandler).ServeHTTP(w, r)
			return
		}
		handler.ListReportsHandler(w, r)
	}))
	route("/api/reports/", http.HandlerFunc(handler.GetReportByIDHandler))

	// Known-hit calibration routes
	route("/api/known-hits", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			requireSession(handler.KnownHitsHandler).ServeHTTP(w, r)
			return
		}
		handler.KnownHitsHandler(w, r)
	}))

	// Settlement routes
	route("/api/settlements", http.HandlerFunc(handler.ListSettlementsHandler))
	route("/api/settlement-effects", requireSession(effectsHandler.SettlementEffects))

	// Rankings and networth history
	route("/api/rankings", http.HandlerFunc(handler.ListRankingsHandler))
	route("/api/nw/", http.HandlerFunc(handler.NetworthHistoryHandler))

	// Admin routes
	route("/api/admin/overview", requireAdmin(adminHandler.Overview))
	route("/api/admin/alliances", requireAdmin(adminHandler.AlliancesHandler))
	route("/api/admin/alliances/", requireAdmin(adminHandler.AllianceMembersHandler))
	route("/api/admin/notes", requireAdmin(adminHandler.NotesHandler))
	route("/api/admin/users", requireAdmin(adminHandler.ListUsersHandler))
	route("/api/admin/backfill", requireAdmin(adminHandler.BackfillHandler))

	// Catch-all under /api/
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
