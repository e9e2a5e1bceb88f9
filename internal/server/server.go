package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"filedrop/internal/catalog"
	"filedrop/internal/storage"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultAddr        = ":7000"
	DefaultUploadDir   = "uploads"
	DefaultStaticRoot  = "."
	DefaultIndexPath   = "index.html"
	DefaultReadTimeout = 2 * time.Minute
)

// DefaultStaticPrefixes are the directories the static responder may serve.
var DefaultStaticPrefixes = []string{"assets/", "pkg/", "static/"}

type BuildInfo struct {
	Version string
	Commit  string
}

// ObjectMirror receives a copy of every stored upload. *storage.Mirror
// satisfies it.
type ObjectMirror interface {
	Put(ctx context.Context, name, path, contentType string) error
	Ping(ctx context.Context) error
	Bucket() string
}

type Config struct {
	Addr string // e.g. ":7000"

	UploadDir      string
	StaticRoot     string
	IndexPath      string   // relative to StaticRoot
	StaticPrefixes []string // e.g. "assets/"

	MaxUploadBytes int64 // 0 disables the limit
	ReadTimeout    time.Duration
	StoreMode      StoreMode
	UploadRate     int // uploads per minute per client IP, 0 disables

	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool

	Build BuildInfo

	// Optional collaborators. Nil disables them.
	Catalog catalog.Catalog
	Mirror  ObjectMirror

	// Clock returns the time used to name stored uploads. Defaults to time.Now.
	Clock func() time.Time
}

type Server struct {
	cfg        Config
	httpServer *http.Server

	store         *storage.DiskStore
	mirrorBreaker *CircuitBreaker
	limiter       *rateLimiter
	metrics       *Metrics
	started       time.Time
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.UploadDir == "" {
		c.UploadDir = DefaultUploadDir
	}
	if c.StaticRoot == "" {
		c.StaticRoot = DefaultStaticRoot
	}
	if c.IndexPath == "" {
		c.IndexPath = DefaultIndexPath
	}
	if c.StaticPrefixes == nil {
		c.StaticPrefixes = DefaultStaticPrefixes
	}
	c.StaticPrefixes = normalizePrefixes(c.StaticPrefixes)
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.StoreMode == "" {
		c.StoreMode = StoreModePayload
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Build.Version == "" {
		c.Build.Version = "dev"
	}
	if c.Build.Commit == "" {
		c.Build.Commit = "unknown"
	}
	return c
}

// normalizePrefixes turns "/assets", "assets" and "assets/" into "assets/".
func normalizePrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" || p == "." {
			continue
		}
		out = append(out, path.Clean(p)+"/")
	}
	return out
}

func New(cfg Config) *Server {
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:           cfg,
		store:         storage.NewDiskStore(cfg.UploadDir),
		mirrorBreaker: NewCircuitBreaker("mirror", 5, 30*time.Second),
		metrics:       newMetrics(),
		started:       time.Now(),
	}
	if cfg.UploadRate > 0 {
		s.limiter = newRateLimiter(cfg.UploadRate, time.Minute)
		s.limiter.trustProxy = cfg.TrustProxyHeaders
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
	}
	return s
}

// routes builds the router. Anything that does not match, including a known
// path with the wrong method, gets 404 "Not Found".
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Wrap middleware: requestID -> logging -> recover -> security headers
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	r.With(corsMiddleware).Options("/upload", handlePreflight)

	upload := r.With(corsMiddleware)
	if s.limiter != nil {
		upload = upload.With(s.limiter.middleware)
	}
	upload.Post("/upload", s.handleUpload)

	r.Group(func(r chi.Router) {
		r.Use(newCompressor().Handler)
		r.Get("/", s.handleIndex)
		for _, prefix := range s.cfg.StaticPrefixes {
			r.Handle("/"+prefix+"*", s.staticHandler(prefix))
		}
	})

	r.Get("/health", s.HandleHealth)
	r.Get("/health/live", s.HandleLive)
	r.Get("/metrics", s.handleMetrics)

	return r
}

// Handler exposes the full middleware chain, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// writeText writes body verbatim as text/plain. http.Error would append a
// newline to the body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, "Not Found")
}
