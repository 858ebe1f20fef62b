package video

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrPollTimeout is returned when a job does not finish within MaxWait.
var ErrPollTimeout = stderrors.New("video job did not finish in time")

// Poller re-checks a job at a fixed interval until it reports done.
type Poller struct {
	Interval time.Duration
	// MaxWait bounds the whole wait; zero waits until the context ends.
	MaxWait time.Duration

	wait   func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

func NewPoller(interval, maxWait time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		Interval: interval,
		MaxWait:  maxWait,
		wait:     sleepContext,
		logger:   logger,
	}
}

// Wait polls job until Done. It returns the final job and the number of
// status checks issued.
func (p *Poller) Wait(ctx context.Context, job *Job, poll func(context.Context, *Job) (*Job, error)) (*Job, int, error) {
	parent := ctx
	if p.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxWait)
		defer cancel()
	}

	checks := 0
	for !job.Done {
		if err := p.wait(ctx, p.Interval); err != nil {
			return nil, checks, p.waitError(parent, err)
		}

		next, err := poll(ctx, job)
		checks++
		if err != nil {
			if ctx.Err() != nil {
				return nil, checks, p.waitError(parent, ctx.Err())
			}
			return nil, checks, fmt.Errorf("poll %s: %w", job.Name, err)
		}
		job = next

		p.logger.Debug("Video job status",
			zap.String("operation", job.Name),
			zap.Bool("done", job.Done),
			zap.Int("checks", checks),
		)
	}

	return job, checks, nil
}

func (p *Poller) waitError(parent context.Context, err error) error {
	if parent.Err() == nil && stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrPollTimeout, p.MaxWait)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
