// Package api serves the leaderboard read API and the admin config API.
// Caller identity arrives in the X-Employee-Id header from the auth proxy;
// admin routes are additionally gated by the process-config allow-list.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/config"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// employeeHeader carries the authenticated caller's employee id, injected by
// the upstream proxy. Auth itself is out of scope here.
const employeeHeader = "X-Employee-Id"

// Rows is the slice of the store the read handlers need.
type Rows interface {
	PublicMonth(ctx context.Context, month model.Month) ([]model.PublicRow, error)
	PublicRow(ctx context.Context, employeeID string, month model.Month) (*model.PublicRow, error)
	LumpsumRow(ctx context.Context, employeeID string, month model.Month) (*model.LumpsumRow, error)
	LumpsumMonth(ctx context.Context, month model.Month) ([]model.LumpsumRow, error)
	SIPRow(ctx context.Context, employeeID string, month model.Month) (*model.SIPRow, error)
	InsuranceRow(ctx context.Context, employeeID string, month model.Month) (*model.InsuranceRow, error)
	InsuranceMonth(ctx context.Context, month model.Month) ([]model.InsuranceRow, error)
	ReferralMonth(ctx context.Context, month model.Month) ([]model.ReferralRow, error)
}

// ConfigStore is the slice of the runtime-config store the admin handlers need.
type ConfigStore interface {
	Get(ctx context.Context, metric scoreconfig.Metric) (*scoreconfig.Document, error)
	Put(ctx context.Context, metric scoreconfig.Metric, payload json.RawMessage, actor, reason string) (int, error)
	Reset(ctx context.Context, metric scoreconfig.Metric, actor string) error
	History(ctx context.Context, metric scoreconfig.Metric, limit int) ([]scoreconfig.ArchivedDocument, error)
	FetchLumpsum(ctx context.Context) (scoreconfig.Effective[scoreconfig.LumpsumConfig], error)
	FetchSIP(ctx context.Context) (scoreconfig.Effective[scoreconfig.SIPConfig], error)
	FetchInsurance(ctx context.Context) (scoreconfig.Effective[scoreconfig.InsuranceConfig], error)
	FetchReferral(ctx context.Context) (scoreconfig.Effective[scoreconfig.ReferralConfig], error)
}

// Reaggregator rebuilds a metric's history from a start month.
type Reaggregator interface {
	Reaggregate(ctx context.Context, metric scoreconfig.Metric, from model.Month) error
}

// Server holds the handler dependencies.
type Server struct {
	Rows    Rows
	Configs ConfigStore
	Reagg   Reaggregator

	// PenaltyStrategy is the deployment-time lumpsum penalty knob, surfaced
	// read-only alongside the lumpsum config.
	PenaltyStrategy string

	allowedOrigins []string
	admins         map[string]bool

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewServer(cfg config.ServerConfig, scorer config.ScorerConfig, rows Rows, configs ConfigStore, reagg Reaggregator) *Server {
	admins := make(map[string]bool, len(cfg.AdminEmployees))
	for _, id := range cfg.AdminEmployees {
		admins[id] = true
	}
	return &Server{
		Rows:            rows,
		Configs:         configs,
		Reagg:           reagg,
		PenaltyStrategy: scorer.PenaltyStrategy,
		allowedOrigins:  cfg.AllowedOrigins,
		admins:          admins,
		Now:             time.Now,
	}
}

// Router builds the chi mux with middleware and all routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", employeeHeader},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", s.handleLeaderboard)
		r.Get("/me", s.handleMe)
		r.Get("/me/breakdown", s.handleMeBreakdown)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/user/{id}", s.handleUser)
			r.Get("/user/{id}/breakdown", s.handleUserBreakdown)
			r.Get("/team-view", s.handleTeamView)
			r.Get("/team-view/members", s.handleTeamMembers)
			r.Get("/breakdown", s.handleExport)
		})
	})

	r.Route("/admin/scorer/{module}", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/", s.handleGetConfig)
		r.Put("/", s.handlePutConfig)
		r.Post("/reset", s.handleResetConfig)
		r.Post("/reaggregate", s.handleReaggregate)
		r.Get("/audit", s.handleConfigAudit)
	})

	return r
}

// requireAdmin rejects callers not on the admin allow-list. Full RBAC is
// delegated to the upstream gateway.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(employeeHeader)
		if id == "" || !s.admins[id] {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerID returns the employee id the proxy asserted, or "".
func callerID(r *http.Request) string {
	return r.Header.Get(employeeHeader)
}

// monthParam parses ?month=YYYY-MM, defaulting to the current month.
func (s *Server) monthParam(r *http.Request) (model.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return model.MonthOf(s.Now().UTC()), nil
	}
	return model.ParseMonth(raw)
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	zap.L().Error("api: store read failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
