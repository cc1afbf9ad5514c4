// Package api exposes the RAG engine and document service over a JSON REST
// API built on gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ports aggregates the driving ports the API serves.
type Ports struct {
	RAG      driving.RAGService
	Document driving.DocumentService

	// DefaultK is used when a query omits k. Zero means domain.DefaultK.
	DefaultK int

	// MaxUploadBytes bounds multipart uploads. Zero means domain.DefaultMaxFileBytes.
	MaxUploadBytes int64

	// Version is reported by the health endpoint.
	Version string
}

// Server is the REST API server.
type Server struct {
	ports  *Ports
	router *gin.Engine
}

// NewServer creates a server with all routes registered.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil || ports.RAG == nil || ports.Document == nil {
		return nil, ErrMissingService
	}

	gin.SetMode(gin.ReleaseMode)
	if err := registerValidations(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	s := &Server{ports: ports, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/documents", s.handleUpload)
		v1.GET("/documents", s.handleListDocuments)
		v1.DELETE("/documents", s.handleReset)
		v1.GET("/documents/:id", s.handleGetDocument)
		v1.PUT("/documents/:id", s.handleReplace)
		v1.PATCH("/documents/:id", s.handleUpdateDocument)
		v1.DELETE("/documents/:id", s.handleDeleteDocument)
		v1.GET("/documents/:id/content", s.handleDocumentContent)
		v1.POST("/documents/:id/summary", s.handleSummarize)

		v1.POST("/query", s.handleQuery)
		v1.POST("/search", s.handleSearch)
		v1.GET("/stats", s.handleStats)
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("REST API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) defaultK() int {
	if s.ports.DefaultK > 0 {
		return s.ports.DefaultK
	}
	return domain.DefaultK
}

// resolveK returns k, or the default when the request omitted it.
// An explicit k is passed through for the engine to validate.
func (s *Server) resolveK(k *int) int {
	if k == nil {
		return s.defaultK()
	}
	return *k
}

func (s *Server) maxUploadBytes() int64 {
	if s.ports.MaxUploadBytes > 0 {
		return s.ports.MaxUploadBytes
	}
	return domain.DefaultMaxFileBytes
}
