package video

import (
	"context"
	"fmt"

	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/ai"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// SubmitRequest is one text-to-video job.
type SubmitRequest struct {
	Model          string
	Prompt         string
	AspectRatio    domain.AspectRatio
	Resolution     string
	NumberOfVideos int32
}

// Job is a snapshot of a remote video job.
type Job struct {
	Name       string
	Done       bool
	Err        error
	VideoURI   string
	VideoBytes []byte
	MIMEType   string

	// handle carries the backend-specific operation between polls.
	handle any
}

// Backend submits video jobs and re-checks their status.
type Backend interface {
	Submit(ctx context.Context, req SubmitRequest) (*Job, error)
	Poll(ctx context.Context, job *Job) (*Job, error)
}

// GenaiBackend runs jobs against the Veo models through the Gemini API.
type GenaiBackend struct {
	pool   *ai.ClientPool
	logger *zap.Logger
}

func NewGenaiBackend(pool *ai.ClientPool, logger *zap.Logger) *GenaiBackend {
	return &GenaiBackend{pool: pool, logger: logger}
}

func (b *GenaiBackend) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	client, _, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}

	op, err := client.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: req.NumberOfVideos,
		AspectRatio:    string(req.AspectRatio),
		Resolution:     req.Resolution,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("Video job submitted",
		zap.String("operation", op.Name),
		zap.String("model", req.Model),
		zap.String("aspect_ratio", string(req.AspectRatio)),
	)
	return jobFromOperation(op), nil
}

func (b *GenaiBackend) Poll(ctx context.Context, job *Job) (*Job, error) {
	op, ok := job.handle.(*genai.GenerateVideosOperation)
	if !ok || op == nil {
		return nil, fmt.Errorf("job %q has no operation handle", job.Name)
	}

	client, _, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}

	next, err := client.Operations.GetVideosOperation(ctx, op, nil)
	if err != nil {
		return nil, err
	}
	return jobFromOperation(next), nil
}

func jobFromOperation(op *genai.GenerateVideosOperation) *Job {
	job := &Job{
		Name:   op.Name,
		Done:   op.Done,
		handle: op,
	}
	if len(op.Error) > 0 {
		job.Err = operationError(op.Error)
	}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0]; v != nil && v.Video != nil {
			job.VideoURI = v.Video.URI
			job.VideoBytes = v.Video.VideoBytes
			job.MIMEType = v.Video.MIMEType
		}
	}
	return job
}

func operationError(status map[string]any) error {
	message, _ := status["message"].(string)
	if code, ok := status["code"].(float64); ok {
		return fmt.Errorf("video operation failed (code %d): %s", int(code), message)
	}
	if message == "" {
		message = fmt.Sprintf("%v", status)
	}
	return fmt.Errorf("video operation failed: %s", message)
}
