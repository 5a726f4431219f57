// Package api serves the pipe map: the viewer page, the dataset as GeoJSON,
// attribute updates and the archive download.
package api

import (
	"context"
	_ "embed"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/dataset"
)

//go:embed web/index.html
var indexHTML []byte

// Dataset is the storage the handlers work against. *dataset.Service
// implements it.
type Dataset interface {
	GeoJSON(ctx context.Context) ([]byte, error)
	Update(ctx context.Context, req dataset.UpdateRequest) (int, error)
	Archive(ctx context.Context, w io.Writer) error
	ArchiveName() string
}

// Options configures the HTTP surface.
type Options struct {
	// CORSOrigins lists allowed origins. Empty allows any.
	CORSOrigins []string
	// UpdateRateLimit is the per-IP update budget per minute; 0 disables it.
	UpdateRateLimit int
	// MaxBodyBytes caps update request bodies. 0 uses 1 MiB.
	MaxBodyBytes int64
	// IDField and YearField are the attribute names the viewer edits.
	IDField   string
	YearField string
}

// Server holds the handlers.
type Server struct {
	ds   Dataset
	opts Options
	log  *zap.Logger
}

// New returns a Server backed by ds.
func New(ds Dataset, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.IDField == "" {
		opts.IDField = dataset.DefaultIDField
	}
	if opts.YearField == "" {
		opts.YearField = dataset.DefaultYearField
	}
	return &Server{
		ds:   ds,
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.opts.CORSOrigins))

	r.Get("/", s.handleIndex)
	r.Get("/config", s.handleConfig)
	r.Get("/data", s.handleData)
	r.With(updateLimiter(s.opts.UpdateRateLimit)).Post("/update", s.handleUpdate)
	r.Get("/download", s.handleDownload)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
