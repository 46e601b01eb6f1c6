// Package server exposes the Newton tool dispatcher over HTTP.
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
// Chart endpoint:     GET  /plot.png?session=<id>&f=<expr>&df=<expr>
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/internal/config"
	"github.com/njchilds90/gonewton/internal/render"
	"github.com/njchilds90/gonewton/internal/store"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Server wires the dispatcher, the session store and the chart renderer.
type Server struct {
	cfg        *config.Config
	store      store.Store
	dispatcher *gonewton.Dispatcher
	logger     *zap.Logger
	started    time.Time
}

func New(cfg *config.Config, st store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		dispatcher: gonewton.NewDispatcher(st, cfg.Newton, cfg.Plot),
		logger:     logger.Named("server"),
		started:    time.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tool", s.handleTool)
	mux.HandleFunc("/schema", s.handleSchema)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/plot.png", s.handlePlot)
	return s.recoverer(s.accessLog(mux))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /tool: handle a tool call
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.cfg.Server.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req gonewton.ToolRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Ensure there's no trailing junk.
	if dec.More() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: trailing data"})
		return
	}

	resp := s.dispatcher.Handle(r.Context(), req)
	if resp.Error != "" {
		s.logger.Debug("tool call reported an error", zap.String("tool", req.Tool), zap.String("error", resp.Error))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /schema: return tool schema for agent registration
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, gonewton.MCPToolSpec())
}

// GET /health: liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Len(r.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
		s.logger.Warn("store health check failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"sessions": n,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /plot.png: render the session's trajectory as a chart
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	params := map[string]interface{}{}
	for _, key := range []string{"session", "f", "df"} {
		if q.Has(key) {
			params[key] = q.Get(key)
		}
	}
	resp, err := s.dispatcher.Call(r.Context(), gonewton.ToolRequest{Tool: "newton_plot", Params: params})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gonewton.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		resp.Error = err.Error()
		writeJSON(w, status, resp)
		return
	}
	data := resp.Result.(*gonewton.PlotData)

	var buf bytes.Buffer
	opts := render.Options{Width: s.cfg.Render.Width, Height: s.cfg.Render.Height}
	if err := render.PNG(&buf, data, opts); err != nil {
		s.logger.Error("chart render failed", zap.Error(err))
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Run serves HTTP and evicts idle sessions until ctx is cancelled, then
// shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.GetReadHeaderTimeout(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("newton tool server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		j := &store.Janitor{
			Store:    s.store,
			TTL:      s.cfg.GetSessionTTL(),
			Interval: s.cfg.GetSweepInterval(),
			Logger:   s.logger,
		}
		return j.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
