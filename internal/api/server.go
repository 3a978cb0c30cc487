// Package api is the thin HTTP/WebSocket application layer over the engine.
// It handles transport, request validation, and per-voter rate limiting; all
// consensus rules live in the engine.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/engine"
	"github.com/truthgraph/veracity/internal/events"
	"github.com/truthgraph/veracity/internal/model"
	"github.com/truthgraph/veracity/internal/store"
)

// Server exposes the engine over HTTP and streams events over WebSocket
type Server struct {
	engine  *engine.Engine
	bus     *events.Bus
	logger  *zap.Logger
	limiter *voterLimiter
	router  *gin.Engine
	http    *http.Server
}

// Options configures the server
type Options struct {
	Addr              string
	VoteRatePerSecond float64
	VoteBurst         int
}

// NewServer builds the router and all routes. bus may be the same bus the
// engine publishes on; the server only subscribes.
func NewServer(e *engine.Engine, bus *events.Bus, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.VoteRatePerSecond <= 0 {
		opts.VoteRatePerSecond = 2
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerValidations(v)
	}

	s := &Server{
		engine:  e,
		bus:     bus,
		logger:  logger,
		limiter: newVoterLimiter(opts.VoteRatePerSecond, opts.VoteBurst),
		router:  router,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/events", s.streamEvents)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/claims", s.createClaim)
		v1.GET("/claims/:id", s.getClaim)
		v1.GET("/claims/:id/history", s.getHistory)
		v1.PUT("/claims/:id/evidence", s.setEvidence)
		v1.POST("/edges", s.createEdge)

		v1.POST("/challenges", s.createChallenge)
		v1.GET("/challenges/:id", s.getChallenge)
		v1.POST("/challenges/:id/votes", s.castVote)
		v1.POST("/challenges/:id/resolution", s.resolveChallenge)
		v1.POST("/challenges/:id/withdrawal", s.withdrawChallenge)
		v1.POST("/challenges/:id/evaluation", s.autoResolve)
	}
}

// Handler returns the underlying HTTP handler, used directly in tests
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// registerValidations adds the domain enums to the binding validator
func registerValidations(v *validator.Validate) {
	_ = v.RegisterValidation("challengetype", func(fl validator.FieldLevel) bool {
		_, err := model.ParseChallengeType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("votetype", func(fl validator.FieldLevel) bool {
		val := model.VoteType(fl.Field().String())
		return val == model.VoteUphold || val == model.VoteDismiss
	})
	_ = v.RegisterValidation("outcome", func(fl validator.FieldLevel) bool {
		_, err := model.ParseResolutionOutcome(fl.Field().String())
		return err == nil
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// writeError maps engine error kinds onto HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidScore),
		errors.Is(err, model.ErrInvalidChallengeType):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrSelfVoteForbidden),
		errors.Is(err, engine.ErrWithdrawForbidden):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrChallengeClosed),
		errors.Is(err, engine.ErrAlreadyResolved),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrVerifiedClaimImmutable):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrPropagationBudgetExceeded):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
