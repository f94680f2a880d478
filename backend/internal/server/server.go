// Package server provides the HTTP server serving the code execution API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fuxialexander/codesherpa/backend/internal/config"
	"github.com/fuxialexander/codesherpa/backend/internal/events"
	"github.com/fuxialexander/codesherpa/backend/internal/executor"
	"github.com/fuxialexander/codesherpa/backend/internal/metrics"
	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
	v1 "github.com/fuxialexander/codesherpa/backend/internal/server/dto/v1"
	"github.com/fuxialexander/codesherpa/backend/internal/workspace"
)

// Server is the HTTP server for the codesherpa API.
type Server struct {
	cfg     *config.Config
	ws      *workspace.Workspace
	exec    executor.Ops
	metrics *metrics.Metrics
	events  *events.Publisher
	geo     *geoIP // nil when no database is configured
}

// New creates a Server from cfg. The workspace directory is created if
// missing.
func New(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ws, err := workspace.Open(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg: cfg,
		ws:  ws,
		exec: &executor.Local{
			Interpreter:    cfg.Interpreter,
			Shell:          cfg.Shell,
			Timeout:        cfg.Timeout,
			MaxOutputBytes: cfg.MaxOutputBytes,
		},
		metrics: metrics.New(),
	}
	s.events = events.New(&events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	s.events.OnPublish = s.metrics.RecordEventPublish
	if cfg.GeoIPDB != "" {
		if s.geo, err = openGeoIP(cfg.GeoIPDB); err != nil {
			_ = s.events.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the event publisher and the GeoIP database.
func (s *Server) Close() error {
	err := s.events.Close()
	if s.geo != nil {
		err = errors.Join(err, s.geo.Close())
	}
	return err
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	api := map[string]http.Handler{
		"getConfig":  handle(s, s.getConfig),
		"runCode":    handle(s, s.runCode),
		"runCommand": handle(s, s.runCommand),
		"listFiles":  handle(s, s.listFiles),
		"listRoutes": handle(s, s.listRoutes),
	}
	if len(api) != len(v1.Routes) {
		panic("route table and handlers disagree")
	}
	mux := http.NewServeMux()
	for name, h := range api {
		rt := v1.RouteByName(name)
		if rt == nil {
			panic("no route for handler " + name)
		}
		mux.Handle(rt.Pattern(), compressMiddleware(h))
	}
	upload := compressMiddleware(http.HandlerFunc(s.handleUpload))
	mux.Handle("POST /api/v1/upload", upload)
	// Path used by the chat frontend's upload button.
	mux.Handle("POST /upload", upload)
	// Raw downloads keep Content-Length and range support.
	mux.HandleFunc("GET /api/v1/files/{name}", s.handleGetFile)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, dto.NotFound(r.URL.Path))
	})
	return withRequestID(s.accessLog(mux))
}

// ListenAndServe watches the workspace and serves HTTP/1.1 and cleartext
// HTTP/2 on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.ws.Watch(ctx); err != nil {
		// Listing still works, it just won't notice files written by code.
		slog.Warn("workspace watch disabled", "err", err)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "err", err)
			_ = srv.Close()
		}
	}()
	slog.Info("listening", "addr", addr, "workspace", s.ws.Root())
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getConfig(_ context.Context, _ *dto.EmptyReq) (*v1.Config, error) {
	return &v1.Config{
		Interpreter:    s.cfg.Interpreter,
		Shell:          s.cfg.Shell,
		TimeoutMs:      s.cfg.Timeout.Milliseconds(),
		MaxBodyBytes:   s.cfg.MaxBodyBytes,
		MaxOutputBytes: s.cfg.MaxOutputBytes,
	}, nil
}

func (s *Server) listRoutes(_ context.Context, _ *dto.EmptyReq) (*[]v1.RouteInfo, error) {
	out := make([]v1.RouteInfo, len(v1.Routes))
	for i := range v1.Routes {
		out[i] = v1.Routes[i].Info()
	}
	return &out, nil
}
