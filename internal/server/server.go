package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/internal/service/session"
	"github.com/kapu/adgenius-go/internal/util"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Importer pre-fills a product form from a page URL.
type Importer interface {
	Import(ctx context.Context, pageURL string) (domain.ProductInput, error)
}

// CircuitReporter exposes the AI circuit breaker state for /health.
type CircuitReporter interface {
	CircuitStatus() util.CircuitBreakerStatus
}

// Config holds server settings. A zero VideoTimeout leaves video jobs
// unbounded, matching an unlimited poll wait.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	AnalysisTimeout time.Duration
	VideoTimeout    time.Duration
}

type Dependencies struct {
	Sessions    *session.Manager
	Media       media.Store
	Credentials credential.Provider
	Importer    Importer
	Circuit     CircuitReporter
}

// Server exposes the session API over HTTP and runs analysis and video jobs
// in the background.
type Server struct {
	cfg      Config
	deps     Dependencies
	logger   *zap.Logger
	engine   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader

	rootCtx context.Context
	cancel  context.CancelFunc
	jobs    conc.WaitGroup
}

func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Server, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Media == nil {
		return nil, fmt.Errorf("media store is required")
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = constants.SessionConfig.AnalysisTimeout
	}
	if cfg.VideoTimeout < 0 {
		cfg.VideoTimeout = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		rootCtx: ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.newRouter()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels running jobs and waits for them
// to settle or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if recovered := s.jobs.WaitAndRecover(); recovered != nil {
			s.logger.Error("Background job panicked", zap.String("panic", recovered.String()))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for background jobs")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// runJob executes the remote half of a session transition outside the
// request. The session settles its own phase; errors are logged only.
func (s *Server) runJob(sess *session.Session, kind string, timeout time.Duration, job session.Job) {
	s.jobs.Go(func() {
		ctx, cancel := s.jobContext(timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Warn("Session job failed",
				zap.String("session", sess.ID()),
				zap.String("job", kind),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("Session job completed",
			zap.String("session", sess.ID()),
			zap.String("job", kind),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// jobContext derives a job context from the server root. A zero timeout
// leaves the job bounded only by shutdown.
func (s *Server) jobContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(s.rootCtx)
	}
	return context.WithTimeout(s.rootCtx, timeout)
}

// waitJobs blocks until every background job has returned.
func (s *Server) waitJobs() {
	s.jobs.Wait()
}
