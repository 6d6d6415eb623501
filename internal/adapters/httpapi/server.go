// Package httpapi exposes the protocol service over a gin REST API.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"protocoldesk/internal/editor"
	"protocoldesk/internal/export"
	"protocoldesk/internal/observability"
	"protocoldesk/pkg/domain"
)

// ProtocolService is the service surface the API needs.
type ProtocolService interface {
	ListProtocols(ctx context.Context) ([]domain.Protocol, error)
	GetProtocol(ctx context.Context, id int64) (domain.Protocol, error)
	CreateProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error)
	UpdateProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error)
	DeleteProtocol(ctx context.Context, id int64) error
	EditRows(ctx context.Context, id int64, edit func(*editor.Session) error) (domain.Protocol, error)
	ListReference(ctx context.Context, kind domain.RefKind) ([]string, error)
	AddReference(ctx context.Context, kind domain.RefKind, name string) error
	DeleteReference(ctx context.Context, kind domain.RefKind, name string) error
}

// Exports queues and serves stored workbooks.
type Exports interface {
	Enqueue(ctx context.Context, protocolID int64, requestedBy string) (export.Job, error)
	Get(id string) (export.Job, bool)
	Open(ctx context.Context, id string) (export.Job, io.ReadCloser, error)
}

// Options tune the router.
type Options struct {
	CORSOrigins []string
	Logger      zerolog.Logger
}

// Server owns the gin engine.
type Server struct {
	svc     ProtocolService
	exports Exports
	logger  zerolog.Logger
	router  *gin.Engine
	started time.Time
}

// NewServer builds the router with logging, metrics and CORS middleware and
// registers every route. exports may be nil, which disables /api/exports.
func NewServer(svc ProtocolService, exports Exports, opts Options) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(opts.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Disposition"},
			MaxAge:        12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{svc: svc, exports: exports, logger: opts.Logger, router: r, started: time.Now()}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info().Str("addr", addr).Msg("http server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("http server stopped")
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	protocols := api.Group("/protocols")
	protocols.GET("", s.listProtocols)
	protocols.POST("", s.createProtocol)
	protocols.GET("/:id", s.getProtocol)
	protocols.PUT("/:id", s.updateProtocol)
	protocols.DELETE("/:id", s.deleteProtocol)
	protocols.GET("/:id/export", s.exportProtocol)

	protocols.POST("/:id/rows", s.addRow)
	protocols.PATCH("/:id/rows/:rowID", s.updateField)
	protocols.POST("/:id/rows/merge", s.structural(mergeOp))
	protocols.POST("/:id/rows/split", s.structural(splitOp))
	protocols.POST("/:id/rows/delete", s.structural(deleteOp))

	for _, kind := range []domain.RefKind{domain.RefRegions, domain.RefExecutors} {
		group := api.Group("/" + string(kind))
		group.GET("", s.listReference(kind))
		group.POST("", s.addReference(kind))
		group.DELETE("/:name", s.deleteReference(kind))
	}

	if s.exports != nil {
		api.POST("/exports", s.enqueueExport)
		api.GET("/exports/:id", s.getExport)
		api.GET("/exports/:id/download", s.downloadExport)
	}
}
