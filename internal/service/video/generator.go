package video

import (
	"context"
	"time"

	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

const stageVideo = "video"

type GeneratorConfig struct {
	Model        string
	Resolution   string
	PollInterval time.Duration
	MaxWait      time.Duration
	MediaTTL     time.Duration
	// PublicBaseURL prefixes returned media URLs; empty yields relative URLs.
	PublicBaseURL string
}

// Generator turns a video prompt into a locally served clip.
type Generator struct {
	backend Backend
	poller  *Poller
	fetcher *Fetcher
	store   media.Store
	creds   credential.Provider
	cfg     GeneratorConfig
	logger  *zap.Logger
}

func NewGenerator(backend Backend, fetcher *Fetcher, store media.Store, creds credential.Provider, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.Resolution == "" {
		cfg.Resolution = constants.VideoDefaults.Resolution
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.VideoDefaults.PollInterval
	}
	return &Generator{
		backend: backend,
		poller:  NewPoller(cfg.PollInterval, cfg.MaxWait, logger),
		fetcher: fetcher,
		store:   store,
		creds:   creds,
		cfg:     cfg,
		logger:  logger,
	}
}

// Generate submits prompt, waits for the job, downloads the clip and
// returns its local URL.
func (g *Generator) Generate(ctx context.Context, prompt string, aspect domain.AspectRatio) (*domain.Video, error) {
	aspect = aspect.OrDefault()
	if !aspect.IsValid() {
		return nil, errors.NewValidationError("aspect ratio must be 16:9 or 9:16", "aspect_ratio", string(aspect))
	}
	if prompt == "" {
		return nil, errors.NewValidationError("video prompt must not be empty", "prompt", "")
	}

	started := time.Now()

	job, err := g.backend.Submit(ctx, SubmitRequest{
		Model:          g.cfg.Model,
		Prompt:         prompt,
		AspectRatio:    aspect,
		Resolution:     g.cfg.Resolution,
		NumberOfVideos: constants.VideoDefaults.NumberOfVideos,
	})
	if err != nil {
		return nil, g.fail(errors.CodeVideoFailed, "submit", err)
	}

	job, checks, err := g.poller.Wait(ctx, job, g.backend.Poll)
	if err != nil {
		return nil, g.fail(errors.CodeVideoFailed, "poll", err)
	}
	if job.Err != nil {
		return nil, g.fail(errors.CodeVideoFailed, "operation", job.Err)
	}

	data, mimeType, err := g.download(ctx, job)
	if err != nil {
		return nil, err
	}

	obj := domain.MediaObject{
		ID:        media.NewID(),
		MIMEType:  mimeType,
		Data:      data,
		CreatedAt: time.Now(),
	}
	if err := g.store.Put(ctx, obj, g.cfg.MediaTTL); err != nil {
		return nil, g.fail(errors.CodeVideoFailed, "store", err)
	}

	g.logger.Info("Video generated",
		zap.String("operation", job.Name),
		zap.String("media_id", obj.ID),
		zap.Int("status_checks", checks),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &domain.Video{
		ID:        obj.ID,
		URL:       media.URLFor(g.cfg.PublicBaseURL, obj.ID),
		MIMEType:  obj.MIMEType,
		Size:      int64(len(data)),
		CreatedAt: obj.CreatedAt,
	}, nil
}

func (g *Generator) download(ctx context.Context, job *Job) ([]byte, string, error) {
	if len(job.VideoBytes) > 0 {
		mimeType := job.MIMEType
		if mimeType == "" {
			mimeType = constants.VideoDefaults.MIMEType
		}
		return job.VideoBytes, mimeType, nil
	}
	if job.VideoURI == "" {
		return nil, "", g.fail(errors.CodeUnusableResult, "extract", nil)
	}

	data, mimeType, err := g.fetcher.Fetch(ctx, job.VideoURI, g.creds.APIKey())
	if err != nil {
		return nil, "", g.fail(errors.CodeVideoFailed, "fetch", err)
	}
	return data, mimeType, nil
}

func (g *Generator) fail(code, step string, cause error) error {
	genErr := errors.NewGenerationError(constants.Messages.VideoFailed, code, stageVideo, cause)
	genErr.Context["step"] = step
	g.logger.Error("Video generation failed",
		zap.String("step", step),
		zap.String("code", code),
		zap.Bool("credential", genErr.Credential),
		zap.Error(cause),
	)
	return genErr
}
