package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

// ErrBusy is returned when an operation is requested while a remote call
// is already in flight for the session.
var ErrBusy = errors.NewAppError("session is busy", errors.CodeBusy, http.StatusConflict, nil)

type Analyzer interface {
	Analyze(ctx context.Context, input domain.ProductInput) (*domain.AnalysisResult, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, prompt string, aspect domain.AspectRatio) (*domain.Video, error)
}

// Job is the remote half of a transition, run after the phase has changed.
type Job func(ctx context.Context) error

// Session holds one user's form and drives the phase machine
// IDLE -> ANALYZING -> COMPLETED|ERROR, COMPLETED -> GENERATING_VIDEO -> COMPLETED.
type Session struct {
	id       string
	analyzer Analyzer
	videos   VideoGenerator
	creds    credential.Provider
	media    media.Store
	logger   *zap.Logger
	now      func() time.Time

	mu            sync.Mutex
	phase         domain.Phase
	product       domain.ProductInput
	result        *domain.AnalysisResult
	video         *domain.Video
	errMessage    string
	errCode       string
	showKeyDialog bool
	updatedAt     time.Time
	lastActive    time.Time

	subscribers map[int]chan domain.SessionSnapshot
	nextSubID   int
}

func newSession(id string, analyzer Analyzer, videos VideoGenerator, creds credential.Provider, store media.Store, logger *zap.Logger, now func() time.Time) *Session {
	ts := now()
	return &Session{
		id:            id,
		analyzer:      analyzer,
		videos:        videos,
		creds:         creds,
		media:         store,
		logger:        logger.With(zap.String("session", id)),
		now:           now,
		phase:         domain.PhaseIdle,
		product:       domain.NewProductInput(),
		showKeyDialog: !creds.HasKey(),
		updatedAt:     ts,
		lastActive:    ts,
		subscribers:   make(map[int]chan domain.SessionSnapshot),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:            s.id,
		Phase:         s.phase,
		Product:       s.product.Clone(),
		Result:        s.result.Clone(),
		ErrorMessage:  s.errMessage,
		ErrorCode:     s.errCode,
		ShowKeyDialog: s.showKeyDialog,
		UpdatedAt:     s.updatedAt,
	}
	if s.video != nil {
		snap.VideoURL = s.video.URL
	}
	return snap
}

// UpdateProduct replaces the form fields. An empty benefits list keeps one
// blank row.
func (s *Session) UpdateProduct(p domain.ProductInput) domain.SessionSnapshot {
	p = p.Clone()
	p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.product = p
	return s.changedLocked()
}

// AddBenefit appends a blank benefit row.
func (s *Session) AddBenefit() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.product.KeyBenefits = append(s.product.KeyBenefits, "")
	return s.changedLocked()
}

// UpdateBenefit sets the benefit at index.
func (s *Session) UpdateBenefit(index int, value string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.product.KeyBenefits) {
		return s.snapshotLocked(), errors.NewValidationError("benefit index out of range", "index", index)
	}
	benefits := append([]string(nil), s.product.KeyBenefits...)
	benefits[index] = value
	s.product.KeyBenefits = benefits
	return s.changedLocked(), nil
}

// StartAnalyze validates the form and moves to ANALYZING. The returned Job
// performs the model call and settles the phase. On validation failure the
// error message is set and the phase is left unchanged.
func (s *Session) StartAnalyze() (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.IsBusy() {
		return nil, ErrBusy
	}

	if !s.product.HasRequiredFields() {
		s.errMessage = constants.Messages.ValidationMissingFields
		s.errCode = errors.CodeValidation
		s.changedLocked()
		field := "name"
		if s.product.Name != "" {
			field = "description"
		}
		return nil, errors.NewValidationError(constants.Messages.ValidationMissingFields, field, "")
	}

	input := s.product.Clone()
	s.phase = domain.PhaseAnalyzing
	s.errMessage = ""
	s.errCode = ""
	s.changedLocked()

	return func(ctx context.Context) (err error) {
		defer s.settleOnPanic(&err, domain.PhaseError, constants.Messages.AnalysisFailed, errors.CodeAnalysisFailed)
		return s.finishAnalyze(ctx, input)
	}, nil
}

func (s *Session) finishAnalyze(ctx context.Context, input domain.ProductInput) error {
	result, err := s.analyzer.Analyze(ctx, input)

	var stale string
	defer func() {
		if stale != "" {
			s.discardMedia(context.WithoutCancel(ctx), stale)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Analysis failed", zap.Error(err))
		s.phase = domain.PhaseError
		s.errMessage = constants.Messages.AnalysisFailed
		s.errCode = codeOr(err, errors.CodeAnalysisFailed)
		if errors.IsCredentialError(err) {
			s.showKeyDialog = true
		}
		s.changedLocked()
		return err
	}

	if s.video != nil {
		stale = s.video.ID
	}
	s.result = result
	s.video = nil
	s.phase = domain.PhaseCompleted
	s.changedLocked()
	return nil
}

// settleOnPanic recovers a panicking job and moves the session out of its
// busy phase so later requests are not rejected forever.
func (s *Session) settleOnPanic(errp *error, phase domain.Phase, message, code string) {
	rec := recover()
	if rec == nil {
		return
	}
	s.logger.Error("Session job panicked", zap.Any("panic", rec), zap.Stack("stack"))

	s.mu.Lock()
	s.phase = phase
	s.errMessage = message
	s.errCode = code
	s.changedLocked()
	s.mu.Unlock()

	*errp = errors.NewGenerationError(message, code, "job", fmt.Errorf("panic: %v", rec))
}

// discardMedia removes a clip the session no longer links to.
func (s *Session) discardMedia(ctx context.Context, id string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to delete stale media", zap.String("media", id), zap.Error(err))
	}
}

// Analyze runs StartAnalyze and its Job synchronously.
func (s *Session) Analyze(ctx context.Context) error {
	job, err := s.StartAnalyze()
	if err != nil {
		return err
	}
	return job(ctx)
}

// StartVideo moves to GENERATING_VIDEO when an analysis result exists and no
// video has been generated yet. It returns a nil Job (and no error) when the
// request is a no-op.
func (s *Session) StartVideo(aspect domain.AspectRatio) (Job, error) {
	aspect = aspect.OrDefault()
	if !aspect.IsValid() {
		return nil, errors.NewValidationError("aspect ratio must be 16:9 or 9:16", "aspect_ratio", string(aspect))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.IsBusy() {
		return nil, ErrBusy
	}
	if s.result == nil || s.video != nil {
		return nil, nil
	}

	prompt := s.result.Strategy.VideoPrompt
	s.phase = domain.PhaseGeneratingVideo
	s.errMessage = ""
	s.errCode = ""
	s.changedLocked()

	return func(ctx context.Context) (err error) {
		defer s.settleOnPanic(&err, domain.PhaseCompleted, constants.Messages.VideoFailed, errors.CodeVideoFailed)
		return s.finishVideo(ctx, prompt, aspect)
	}, nil
}

func (s *Session) finishVideo(ctx context.Context, prompt string, aspect domain.AspectRatio) error {
	video, err := s.videos.Generate(ctx, prompt, aspect)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = domain.PhaseCompleted
	if err != nil {
		s.logger.Warn("Video generation failed", zap.Error(err))
		s.errMessage = constants.Messages.VideoFailed
		s.errCode = codeOr(err, errors.CodeVideoFailed)
		if errors.IsCredentialError(err) {
			s.showKeyDialog = true
		}
		s.changedLocked()
		return err
	}

	s.video = video
	s.changedLocked()
	return nil
}

// GenerateVideo runs StartVideo and its Job synchronously.
func (s *Session) GenerateVideo(ctx context.Context, aspect domain.AspectRatio) error {
	job, err := s.StartVideo(aspect)
	if err != nil || job == nil {
		return err
	}
	return job(ctx)
}

// SelectKey stores a new API key and hides the key dialog.
func (s *Session) SelectKey(key string) (domain.SessionSnapshot, error) {
	if err := s.creds.Select(key); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.showKeyDialog = false
	return s.changedLocked(), nil
}

// CheckCredential shows the key dialog when no key is configured.
func (s *Session) CheckCredential() domain.SessionSnapshot {
	hasKey := s.creds.HasKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasKey && !s.showKeyDialog {
		s.showKeyDialog = true
		return s.changedLocked()
	}
	return s.snapshotLocked()
}

// DismissError clears the error message. An ERROR phase returns to IDLE.
func (s *Session) DismissError() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMessage = ""
	s.errCode = ""
	if s.phase == domain.PhaseError {
		s.phase = domain.PhaseIdle
	}
	return s.changedLocked()
}

// VideoID returns the media id of the generated clip, if any.
func (s *Session) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return ""
	}
	return s.video.ID
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Slow readers miss intermediate snapshots but always get the latest.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, constants.SessionConfig.SubscriberBuffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) isBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.IsBusy()
}

// must be called with mu held
func (s *Session) changedLocked() domain.SessionSnapshot {
	ts := s.now()
	s.updatedAt = ts
	s.lastActive = ts
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		publish(ch, snap)
	}
	return snap
}

func publish(ch chan domain.SessionSnapshot, snap domain.SessionSnapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func codeOr(err error, fallback string) string {
	if errors.IsCredentialError(err) {
		return errors.CodeCredential
	}
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return fallback
}
