package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kapu/adgenius-go/internal/config"
	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/server"
	"github.com/kapu/adgenius-go/internal/service/ai"
	"github.com/kapu/adgenius-go/internal/service/analysis"
	"github.com/kapu/adgenius-go/internal/service/cache"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/importer"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/internal/service/session"
	"github.com/kapu/adgenius-go/internal/service/video"
	"go.uber.org/zap"
)

// Container holds the assembled services for the lifetime of the process.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Server   *server.Server
	Sessions *session.Manager

	closers []func()
}

// Build assembles all services. Anything opened before a failure is closed
// again before returning.
func Build(_ context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	creds := credential.NewStore(cfg.Gemini.APIKey, logger)
	if !creds.HasKey() {
		logger.Warn("No Gemini API key configured, clients will be asked to select one")
	}

	// Media storage
	var mediaStore media.Store
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		cacheSvc, cacheErr := cache.NewCacheService(cache.CacheConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: constants.RedisConfig.KeyPrefix,
		}, logger)
		if cacheErr != nil {
			return nil, fmt.Errorf("failed to create cache service: %w", cacheErr)
		}
		closers = append(closers, func() {
			_ = cacheSvc.Close()
		})
		mediaStore = media.NewRedisStore(cacheSvc)
	default:
		mediaStore = media.NewMemoryStore()
	}
	logger.Info("Media store ready", zap.String("backend", cfg.Store.Backend))

	// AI stack
	pool := ai.NewClientPool(creds, cfg.Gemini.BaseURL, logger)
	modelManager, err := ai.NewModelManager(ai.ModelManagerConfig{
		Pool:               pool,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: cfg.Gemini.AnalysisModel,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		EnableFallback:     cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	creds.OnSelect(func(string) {
		modelManager.ResetCircuit()
	})

	// Clips are refreshed on each session access and deleted with their
	// session, so this only bounds media orphaned by a restart.
	mediaTTL := 2 * cfg.Session.TTL

	analyzer := analysis.NewAnalyzer(modelManager, cfg.Gemini.AnalysisModel, logger)

	generator := video.NewGenerator(
		video.NewGenaiBackend(pool, logger),
		video.NewFetcher(&http.Client{Timeout: cfg.Video.FetchTimeout}),
		mediaStore,
		creds,
		video.GeneratorConfig{
			Model:         cfg.Gemini.VideoModel,
			Resolution:    cfg.Video.Resolution,
			PollInterval:  cfg.Video.PollInterval,
			MaxWait:       cfg.Video.MaxWait,
			MediaTTL:      mediaTTL,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		},
		logger,
	)

	// Sessions
	sessions := session.NewManager(analyzer, generator, creds, mediaStore, session.ManagerConfig{
		TTL:           cfg.Session.TTL,
		SweepSchedule: cfg.Session.SweepSchedule,
		MediaTTL:      mediaTTL,
	}, logger)
	if err := sessions.Start(); err != nil {
		return nil, fmt.Errorf("failed to start session sweeper: %w", err)
	}
	closers = append(closers, func() {
		sessions.Stop(context.Background())
	})

	srv, err := server.New(server.Dependencies{
		Sessions:    sessions,
		Media:       mediaStore,
		Credentials: creds,
		Importer:    importer.NewProductImporter(nil, logger),
		Circuit:     modelManager,
	}, server.Config{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		AnalysisTimeout: constants.SessionConfig.AnalysisTimeout,
		VideoTimeout:    cfg.Video.JobTimeout(constants.SessionConfig.VideoJobMargin),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info("Application services assembled",
		zap.String("analysis_model", cfg.Gemini.AnalysisModel),
		zap.String("video_model", cfg.Gemini.VideoModel),
		zap.Duration("poll_interval", cfg.Video.PollInterval),
		zap.Duration("session_ttl", cfg.Session.TTL),
	)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Server:   srv,
		Sessions: sessions,
		closers:  closers,
	}, nil
}

// Shutdown stops the HTTP server and background jobs, then releases
// infrastructure in reverse order of creation.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Server.Shutdown(ctx)
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	return err
}
