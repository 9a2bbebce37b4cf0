package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mercator-hq/trafficdump/pkg/catalog"
	"mercator-hq/trafficdump/pkg/limits/diskbudget"
	"mercator-hq/trafficdump/pkg/telemetry/health"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
)

// AdminConfig configures the admin listener.
type AdminConfig struct {
	Address         string
	ShutdownTimeout time.Duration

	Metrics *metrics.Collector
	Health  *health.Checker
	Budget  *diskbudget.Budget

	// Catalog is optional; /captures answers 404 without it.
	Catalog catalog.Catalog

	Version health.VersionInfo
	Logger  *slog.Logger
}

// NewAdminRouter returns the admin routes:
//
//	GET /metrics          Prometheus exposition
//	GET /healthz          liveness
//	GET /readyz           readiness (503 when a check fails)
//	GET /version          build information
//	GET /budget           disk budget status
//	GET /captures         catalog entries (?client=&since=&limit=)
func NewAdminRouter(cfg AdminConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)

	r.Handle("/metrics", cfg.Metrics.Handler())
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.LivenessHandler())
		r.Get("/readyz", cfg.Health.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(cfg.Version.Version, cfg.Version.Commit, cfg.Version.BuildTime))
	if cfg.Budget != nil {
		r.Get("/budget", budgetHandler(cfg.Budget))
	}
	if cfg.Catalog != nil {
		r.Get("/captures", capturesHandler(cfg.Catalog))
	}
	return r
}

type budgetResponse struct {
	Limit          int64   `json:"limit"`
	Used           int64   `json:"used"`
	Remaining      int64   `json:"remaining"`
	Percentage     float64 `json:"percentage"`
	Exhausted      bool    `json:"exhausted"`
	AlertTriggered bool    `json:"alert_triggered"`
	Reservations   uint64  `json:"reservations"`
	Rejections     uint64  `json:"rejections"`
}

func budgetHandler(b *diskbudget.Budget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := b.Status()
		writeJSON(w, r, http.StatusOK, budgetResponse{
			Limit:          st.Limit,
			Used:           st.Used,
			Remaining:      st.Remaining,
			Percentage:     st.Percentage,
			Exhausted:      st.Exhausted,
			AlertTriggered: st.AlertTriggered,
			Reservations:   st.Reservations,
			Rejections:     st.Rejections,
		})
	}
}

type captureEntry struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	ClientAddr   string    `json:"client_addr"`
	Protocol     string    `json:"protocol"`
	Path         string    `json:"path"`
	Bytes        int64     `json:"bytes"`
	Transactions int       `json:"transactions"`
	WrittenAt    time.Time `json:"written_at"`
}

func capturesHandler(cat catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := catalog.Query{ClientAddr: r.URL.Query().Get("client")}

		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			q.Limit = n
		}
		if v := r.URL.Query().Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
				return
			}
			q.Since = since
		}

		entries, err := cat.List(r.Context(), q)
		if err != nil {
			writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		out := make([]captureEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, captureEntry{
				ID:           e.ID,
				SessionID:    e.SessionID,
				ClientAddr:   e.ClientAddr,
				Protocol:     e.Protocol,
				Path:         e.Path,
				Bytes:        e.Bytes,
				Transactions: e.Transactions,
				WrittenAt:    e.WrittenAt,
			})
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// AdminServer serves the admin router.
type AdminServer struct {
	config     AdminConfig
	httpServer *http.Server
	logger     *slog.Logger
}

// NewAdminServer creates an admin server for cfg.
func NewAdminServer(cfg AdminConfig) *AdminServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminServer{
		config: cfg,
		httpServer: &http.Server{
			Handler:           NewAdminRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "admin"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled.
func (a *AdminServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Address, err)
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("starting admin server", "address", ln.Addr().String())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
