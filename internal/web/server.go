// Package web serves impact queries and index control over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/impact"
	"github.com/felipestanzani/beyondsight/internal/indexer"
)

// Server is the REST surface over the impact engine and the indexer
type Server struct {
	engine  *impact.Engine
	indexer *indexer.Indexer
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer creates a new web server
func NewServer(engine *impact.Engine, ix *indexer.Indexer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, indexer: ix, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes registers:
//
//	GET  /api/v1/impact/field/full?fieldName=&className=
//	GET  /api/v1/impact/method/full?methodSignature=&className=
//	GET  /api/v1/impact/class/full?className=
//	GET  /api/v1/impact/field/writers?fieldName=
//	GET  /api/v1/impact/field/readers?fieldName=
//	GET  /api/v1/impact/method/upstream?methodName=
//	GET  /api/v1/impact/method/downstream?methodSignature=
//	POST /api/v1/index/rescan?path=
//	GET  /api/v1/index/status
//	GET  /metrics
//	GET  /healthz
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	v1 := r.Group("/api/v1")

	im := v1.Group("/impact")
	im.GET("/field/full", s.handleFieldImpact)
	im.GET("/method/full", s.handleMethodImpact)
	im.GET("/class/full", s.handleClassImpact)
	im.GET("/field/writers", s.handleFieldWriters)
	im.GET("/field/readers", s.handleFieldReaders)
	im.GET("/method/upstream", s.handleUpstream)
	im.GET("/method/downstream", s.handleDownstream)

	idx := v1.Group("/index")
	idx.POST("/rescan", s.handleRescan)
	idx.GET("/status", s.handleStatus)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleFieldImpact(c *gin.Context) {
	report, err := s.engine.FieldImpact(c.Request.Context(), c.Query("fieldName"), c.Query("className"))
	s.respond(c, report, err)
}

func (s *Server) handleMethodImpact(c *gin.Context) {
	report, err := s.engine.MethodImpact(c.Request.Context(), c.Query("methodSignature"), c.Query("className"))
	s.respond(c, report, err)
}

func (s *Server) handleClassImpact(c *gin.Context) {
	report, err := s.engine.ClassImpact(c.Request.Context(), c.Query("className"))
	s.respond(c, report, err)
}

func (s *Server) handleFieldWriters(c *gin.Context) {
	list, err := s.engine.FieldWriters(c.Request.Context(), c.Query("fieldName"))
	s.respond(c, list, err)
}

func (s *Server) handleFieldReaders(c *gin.Context) {
	list, err := s.engine.FieldReaders(c.Request.Context(), c.Query("fieldName"))
	s.respond(c, list, err)
}

func (s *Server) handleUpstream(c *gin.Context) {
	list, err := s.engine.UpstreamCallers(c.Request.Context(), c.Query("methodName"))
	s.respond(c, list, err)
}

func (s *Server) handleDownstream(c *gin.Context) {
	list, err := s.engine.DownstreamCallees(c.Request.Context(), c.Query("methodSignature"))
	s.respond(c, list, err)
}

func (s *Server) handleRescan(c *gin.Context) {
	status, err := s.indexer.Rescan(c.Request.Context(), c.Query("path"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, status)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.indexer.Status())
}

func (s *Server) respond(c *gin.Context, body any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// fail writes a coded error body. Uncoded errors are reported as
// INTERNAL_ERROR without leaking their text.
func (s *Server) fail(c *gin.Context, err error) {
	var coded *bserrors.Error
	if !errors.As(err, &coded) {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
		coded = bserrors.New(bserrors.Internal, "internal error")
	}
	c.JSON(statusFor(coded.Code), coded)
}

func statusFor(code bserrors.ErrorCode) int {
	switch code {
	case bserrors.NotFound:
		return http.StatusNotFound
	case bserrors.Conflict:
		return http.StatusConflict
	case bserrors.InvalidParameter:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
