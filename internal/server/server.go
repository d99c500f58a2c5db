// Package server exposes dashboard loads and the contact write path over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/contact"
	"driver-engagement-audit/internal/dashboard"
	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/registry"
	"driver-engagement-audit/internal/report"
)

// Dashboard is the part of *dashboard.Dashboard the handlers use.
type Dashboard interface {
	Last() (*dashboard.Result, bool)
	Load(ctx context.Context) (*dashboard.Result, error)
	Reload(ctx context.Context) (*dashboard.Result, error)
	MarkContact(ctx context.Context, driverID string, status contact.Status) (registry.Snapshot, error)
}

type Config struct {
	Logger    *slog.Logger
	Dashboard Dashboard
	// DefaultTopN caps /api/ranking when the request has no top parameter.
	DefaultTopN int
}

func (c *Config) Validate() error {
	if c.Dashboard == nil {
		return errors.New("dashboard is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.DefaultTopN <= 0 {
		c.DefaultTopN = 20
	}
	return nil
}

type Server struct {
	log       *slog.Logger
	dashboard Dashboard
	topN      int
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{log: cfg.Logger, dashboard: cfg.Dashboard, topN: cfg.DefaultTopN}, nil
}

func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/api/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", s.HandleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/availability", s.HandleAvailability).Methods(http.MethodGet)
	r.HandleFunc("/api/kpis", s.HandleKPIs).Methods(http.MethodGet)
	r.HandleFunc("/api/distribution", s.HandleDistribution).Methods(http.MethodGet)
	r.HandleFunc("/api/ranking", s.HandleRanking).Methods(http.MethodGet)
	r.HandleFunc("/api/daily", s.HandleDaily).Methods(http.MethodGet)
	r.HandleFunc("/api/clusters", s.HandleClusters).Methods(http.MethodGet)
	r.HandleFunc("/api/registry/diff", s.HandleRegistryDiff).Methods(http.MethodGet)
	r.HandleFunc("/api/contacts", s.HandleContacts).Methods(http.MethodGet)
	r.HandleFunc("/api/contacts/{driver_id}", s.HandleMarkContact).Methods(http.MethodPost)
	r.HandleFunc("/api/reload", s.HandleReload).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// current returns the last load, loading once if nothing has been loaded yet.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*dashboard.Result, bool) {
	if result, ok := s.dashboard.Last(); ok {
		return result, true
	}
	result, err := s.dashboard.Load(r.Context())
	if err != nil {
		s.log.Error("dashboard load failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}
	return result, true
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if result, ok := s.dashboard.Last(); ok {
		resp["loaded_at"] = result.LoadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleSummary(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, _ := filter.Apply(result.Summary, result.Availability)

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="engagement_summary.csv"`)
		if err := report.WriteSummaryCSV(w, rows); err != nil {
			s.log.Error("write summary csv", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, log := filter.Apply(result.Summary, result.Availability)
	writeJSON(w, http.StatusOK, log)
}

func (s *Server) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, func(view report.View) any { return view.KPIs })
}

func (s *Server) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, func(view report.View) any { return view.Distribution })
}

func (s *Server) HandleRanking(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, func(view report.View) any { return view.Ranking })
}

func (s *Server) HandleDaily(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, func(view report.View) any { return view.Daily })
}

func (s *Server) serveView(w http.ResponseWriter, r *http.Request, pick func(report.View) any) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	opts, err := s.parseOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pick(report.Build(result, opts)))
}

func (s *Server) HandleClusters(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, append([]string{engagement.AllClusters}, result.Clusters...))
}

func (s *Server) HandleRegistryDiff(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result.Diff)
}

func (s *Server) HandleContacts(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result.Queue)
}

func (s *Server) HandleMarkContact(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stable, err := s.dashboard.MarkContact(r.Context(), driverID, contact.Status(req.Status))
	if err != nil {
		var writeErr *contact.WriteError
		switch {
		case errors.Is(err, contact.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, contact.ErrNotQueued):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, dashboard.ErrNotLoaded):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &writeErr):
			s.log.Error("contact write failed", "driver_id", driverID, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			s.log.Error("contact write failed", "driver_id", driverID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, stable.Entries())
}

func (s *Server) HandleReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.dashboard.Reload(r.Context())
	if err != nil {
		s.log.Error("dashboard reload failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at": result.LoadedAt,
		"drivers":   len(result.Summary),
		"queue":     len(result.Queue),
	})
}

func (s *Server) parseOptions(r *http.Request) (report.Options, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return report.Options{}, err
	}
	opts := report.Options{Filter: filter, TopN: s.topN, MinRatio: filter.MinRatio}
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top < 0 {
			return report.Options{}, errors.New("invalid top value")
		}
		opts.TopN = top
	}
	return opts, nil
}

// parseFilter reads category, cluster, shift, vehicle_type and min_ratio.
// List parameters may repeat or hold comma-separated values.
func parseFilter(r *http.Request) (engagement.Filter, error) {
	q := r.URL.Query()
	var filter engagement.Filter

	for _, raw := range listParam(q["category"]) {
		category, ok := engagement.ParseCategory(raw)
		if !ok {
			return engagement.Filter{}, errors.New("invalid category: " + raw)
		}
		filter.Categories = append(filter.Categories, category)
	}
	for _, raw := range listParam(q["shift"]) {
		shift, ok := availability.ParseShift(raw)
		if !ok {
			return engagement.Filter{}, errors.New("invalid shift: " + raw)
		}
		filter.Shifts = append(filter.Shifts, shift)
	}
	filter.VehicleTypes = listParam(q["vehicle_type"])
	filter.Cluster = strings.TrimSpace(q.Get("cluster"))

	if raw := q.Get("min_ratio"); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return engagement.Filter{}, errors.New("invalid min_ratio: " + raw)
		}
		filter.MinRatio = ratio
	}
	return filter, nil
}

func listParam(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
