// Package server exposes the answering pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/logger"
)

type Answerer interface {
	Answer(ctx context.Context, q model.Question) (*model.Answer, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Pipeline Answerer
	Graph    Pinger

	cfg config.Config
}

func NewServer(cfg config.Config, pipeline Answerer, graph Pinger) *Server {
	return &Server{Pipeline: pipeline, Graph: graph, cfg: cfg}
}

func (s *Server) SetupRouter() *gin.Engine {
	if s.cfg.Server.Mode != "" {
		gin.SetMode(s.cfg.Server.Mode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	// The span must exist before RequestID copies its trace id into the
	// logging context.
	if s.cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	r.Use(RequestID())
	r.Use(CORS(s.cfg.Server.AllowedOrigins))
	if s.cfg.Metrics.Enabled {
		r.Use(Metrics())
	}
	r.Use(AccessLog())

	r.POST("/answer", s.Answer)
	r.GET("/health", s.Health)
	r.GET("/ready", s.Ready)
	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	return r
}

type AnswerRequest struct {
	Question      string `json:"question"`
	ReturnContext bool   `json:"return_context"`
}

func (s *Server) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if d := s.cfg.Server.RequestTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	ans, err := s.Pipeline.Answer(ctx, model.Question{Text: req.Question, ReturnContext: req.ReturnContext})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ans)
	case errors.Is(err, model.ErrMalformedRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn(ctx, "answer timed out", "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		c.Status(499)
	default:
		logger.Error(ctx, "failed to answer", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer"})
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Ready(c *gin.Context) {
	if s.Graph == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := s.Graph.Ping(ctx); err != nil {
		logger.Warn(ctx, "readiness probe failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "graph unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
