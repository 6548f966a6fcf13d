// Package server exposes ingested batches over HTTP: upload, sorted and
// filtered rows, the column layout, and workbook download.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/termsheet-cli/internal/export"
	"github.com/sells-group/termsheet-cli/internal/fetcher"
	"github.com/sells-group/termsheet-cli/internal/ingest"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	CORSOrigins      []string
	SessionTTL       time.Duration
	MaxUploadBytes   int64
	UploadsPerMinute int
	// Extensions selects the members read from uploaded .zip archives.
	Extensions []string
	// ExportFileName is the attachment name of downloaded workbooks.
	ExportFileName string
}

func (o Options) withDefaults() Options {
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = time.Hour
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 32 << 20
	}
	if o.UploadsPerMinute <= 0 {
		o.UploadsPerMinute = 30
	}
	if len(o.Extensions) == 0 {
		o.Extensions = fetcher.DefaultExtensions
	}
	if o.ExportFileName == "" {
		o.ExportFileName = export.DefaultFileName
	}
	return o
}

// Server holds ingested batches in a TTL cache and serves the grid API.
type Server struct {
	runner   *ingest.Runner
	exporter *export.Exporter
	sessions *cache.Cache
	uploads  *rate.Limiter
	opts     Options
}

// New creates a Server.
func New(runner *ingest.Runner, exporter *export.Exporter, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		runner:   runner,
		exporter: exporter,
		sessions: cache.New(opts.SessionTTL, opts.SessionTTL/2),
		uploads:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.UploadsPerMinute)), opts.UploadsPerMinute),
		opts:     opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/batches", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/rows", s.handleRows)
			r.Get("/columns", s.handleColumns)
			r.Get("/export", s.handleExport)
			r.Delete("/", s.handleDelete)
		})
	})
	return r
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return eris.Wrap(err, "server: listen")
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("server: listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	})
	return g.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
