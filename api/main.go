package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/headline-radar/internal/analytics"
	"github.com/DeafMist/headline-radar/internal/backends"
	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/DeafMist/headline-radar/internal/logger"
	"github.com/DeafMist/headline-radar/internal/metrics"
	"github.com/DeafMist/headline-radar/internal/store"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := backends.OpenStore(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	srv := &server{log: log, cfg: cfg, store: st, metrics: metrics.New()}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	store   store.Store
	metrics *metrics.Metrics
}

type errorResponse struct {
	Error string `json:"error"`
}

type entityResponse struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type headlinesResponse struct {
	Entity    string   `json:"entity"`
	Headlines []string `json:"headlines"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/entities/top", s.handleTopEntities)
	r.Get("/entities/{text}/headlines", s.handleHeadlines)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func (s *server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTopEntities(w http.ResponseWriter, r *http.Request) {
	k := clampInt(r.URL.Query().Get("k"), s.cfg.DefaultTopLimit, s.cfg.MaxTopLimit)

	top, err := analytics.TopEntities(r.Context(), s.store, k)
	if err != nil {
		s.log.Error("top entities", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	out := make([]entityResponse, 0, len(top))
	for _, ec := range top {
		out = append(out, entityResponse{Text: ec.Entity.Text, Type: string(ec.Entity.Type), Count: ec.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "text")
	// chi matches on the escaped path when the request carries one.
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(entity)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entity text"})
			return
		}
		entity = decoded
	}
	if strings.TrimSpace(entity) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "entity text is required"})
		return
	}

	resp := headlinesResponse{Entity: entity, Headlines: []string{}}
	for text, err := range analytics.Headlines(r.Context(), s.store, entity) {
		if err != nil {
			s.log.Error("entity headlines", slog.String("entity", entity), slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		resp.Headlines = append(resp.Headlines, text)
	}
	writeJSON(w, http.StatusOK, resp)
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
