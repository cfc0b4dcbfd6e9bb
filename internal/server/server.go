package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/JairVaz13/api2-estadia/internal/news"
	"github.com/JairVaz13/api2-estadia/internal/videos"
)

// BuildInfo identifies the running binary in /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr    string // e.g. ":8000"
	BaseURL string // prefix of the URLs returned for uploads
	Build   BuildInfo

	News    news.Store
	Videos  videos.Catalog
	Objects ObjectStore

	// MaxUploadBytes caps multipart uploads; 0 means no limit.
	MaxUploadBytes int64
	// AuditLog receives the audit trail; nil uses DefaultLogger.
	AuditLog *Logger

	// RateLimit is requests per minute per client IP; 0 disables limiting.
	// Uploads and writes get tighter budgets on top of it.
	RateLimit int
}

type Server struct {
	httpServer *http.Server

	baseURL   string
	build     BuildInfo
	maxUpload int64

	news    news.Store
	videos  videos.Catalog
	objects ObjectStore

	limiter  *EndpointRateLimiter
	auditLog *Logger
}

func New(cfg Config) *Server {
	s := &Server{
		baseURL:   trimTrailingSlash(cfg.BaseURL),
		build:     cfg.Build,
		maxUpload: cfg.MaxUploadBytes,
		news:      cfg.News,
		videos:    cfg.Videos,
		objects:   cfg.Objects,
		auditLog:  cfg.AuditLog,
	}
	if s.auditLog == nil {
		s.auditLog = DefaultLogger
	}

	mux := http.NewServeMux()

	// News feed
	mux.HandleFunc("/news", s.handleNewsCollection)
	mux.HandleFunc("/news/", s.handleNewsItem)

	// Videos
	mux.HandleFunc("/upload_video", s.handleUploadVideo)
	mux.HandleFunc("/videos", s.handleListVideos)
	mux.HandleFunc("/videos/", s.handleVideoFile)
	mux.HandleFunc("/delete_video/", s.handleDeleteVideo)

	// Images
	mux.HandleFunc("/upload_image", s.handleUploadImage)
	mux.HandleFunc("/images", s.handleListImages)
	mux.HandleFunc("/images/", s.handleImageItem)

	// Public URLs handed out by uploads
	mux.HandleFunc("/static/", s.handleStatic)

	// Operational
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/ready", s.HandleReady)
	mux.HandleFunc("/live", s.HandleLive)
	mux.HandleFunc("/metrics", NewPrometheusExporter(GetMetrics(), cfg.Build.Version).Handler())

	// Wrap middleware, outermost last:
	// requestID -> logging -> security -> CORS -> compression -> rate limit -> mux
	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		s.limiter = NewEndpointRateLimiter(DefaultEndpointRateLimitConfig(cfg.RateLimit))
		handler = s.limiter.Middleware(handler)
	}
	handler = CompressionMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func trimTrailingSlash(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
