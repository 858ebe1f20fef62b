package session

import (
	"context"
	stderrors "errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

type fakeAnalyzer struct {
	mu        sync.Mutex
	result    *domain.AnalysisResult
	err       error
	inputs    []domain.ProductInput
	block     chan struct{}
	panicWith any
}

func (f *fakeAnalyzer) Analyze(_ context.Context, input domain.ProductInput) (*domain.AnalysisResult, error) {
	if f.block != nil {
		<-f.block
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return f.result.Clone(), f.err
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeVideos struct {
	mu        sync.Mutex
	video     *domain.Video
	err       error
	prompts   []string
	aspects   []domain.AspectRatio
	panicWith any
}

func (f *fakeVideos) Generate(_ context.Context, prompt string, aspect domain.AspectRatio) (*domain.Video, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.aspects = append(f.aspects, aspect)
	if f.err != nil {
		return nil, f.err
	}
	return f.video, nil
}

func luminifyResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		JTBD: domain.JTBDAnalysis{
			FunctionalJob: "Học tập hiệu quả",
			EmotionalJob:  "Yên tâm",
			SocialJob:     "Phụ huynh tận tâm",
			MainInsight:   "Ánh sáng tốt là đầu tư cho tương lai",
		},
		Strategy: domain.ContentStrategy{
			ThreeSecondHook: "Con bạn có đang nheo mắt?",
			Caption:         "Luminify - đèn học thông minh",
			VideoPrompt:     "A child studying under a warm smart lamp",
			VisualKeywords:  []string{"lamp", "study", "warm light"},
		},
	}
}

func luminifyProduct() domain.ProductInput {
	return domain.ProductInput{
		Name:           "Đèn học thông minh Luminify",
		Description:    "Đèn học chống cận",
		TargetAudience: "Phụ huynh",
		KeyBenefits:    []string{"Bảo vệ mắt"},
	}
}

func newTestManager(analyzer Analyzer, videos VideoGenerator, key string) *Manager {
	return NewManager(analyzer, videos, credential.NewStore(key, zap.NewNop()), media.NewMemoryStore(), ManagerConfig{TTL: time.Hour}, zap.NewNop())
}

func TestNewSessionDefaults(t *testing.T) {
	m := newTestManager(&fakeAnalyzer{}, &fakeVideos{}, "")
	snap := m.Create().Snapshot()

	if snap.Phase != domain.PhaseIdle {
		t.Fatalf("unexpected phase %s", snap.Phase)
	}
	if !reflect.DeepEqual(snap.Product.KeyBenefits, []string{""}) {
		t.Fatalf("new form should have one blank benefit, got %#v", snap.Product.KeyBenefits)
	}
	if !snap.ShowKeyDialog {
		t.Fatalf("key dialog should be shown when no key is configured")
	}

	withKey := newTestManager(&fakeAnalyzer{}, &fakeVideos{}, "k").Create().Snapshot()
	if withKey.ShowKeyDialog {
		t.Fatalf("key dialog should be hidden when a key exists")
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	analyzer := &fakeAnalyzer{result: luminifyResult()}
	m := newTestManager(analyzer, &fakeVideos{}, "k")
	sess := m.Create()

	events, cancel := sess.Subscribe()
	defer cancel()
	if first := <-events; first.Phase != domain.PhaseIdle {
		t.Fatalf("first event should be the current snapshot")
	}

	sess.UpdateProduct(luminifyProduct())
	<-events

	if err := sess.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var phases []domain.Phase
	for len(events) > 0 {
		phases = append(phases, (<-events).Phase)
	}
	if !reflect.DeepEqual(phases, []domain.Phase{domain.PhaseAnalyzing, domain.PhaseCompleted}) {
		t.Fatalf("unexpected phase sequence %v", phases)
	}

	snap := sess.Snapshot()
	if !reflect.DeepEqual(snap.Result, luminifyResult()) {
		t.Fatalf("displayed result differs from analysis: %+v", snap.Result)
	}
	if snap.ErrorMessage != "" {
		t.Fatalf("unexpected error %q", snap.ErrorMessage)
	}
	if !reflect.DeepEqual(analyzer.inputs[0], luminifyProduct()) {
		t.Fatalf("analyzer received %+v", analyzer.inputs[0])
	}
}

func TestAnalyzeValidationKeepsPhase(t *testing.T) {
	analyzer := &fakeAnalyzer{result: luminifyResult()}
	sess := newTestManager(analyzer, &fakeVideos{}, "k").Create()
	sess.UpdateProduct(domain.ProductInput{Name: "Only name"})

	err := sess.Analyze(context.Background())
	var val *errors.ValidationError
	if !stderrors.As(err, &val) {
		t.Fatalf("expected validation error, got %v", err)
	}

	snap := sess.Snapshot()
	if snap.Phase != domain.PhaseIdle {
		t.Fatalf("phase should stay idle, got %s", snap.Phase)
	}
	if snap.ErrorMessage != "Vui lòng điền tên và mô tả sản phẩm." {
		t.Fatalf("unexpected message %q", snap.ErrorMessage)
	}
	if analyzer.calls() != 0 {
		t.Fatalf("validation failure must not call the analyzer")
	}
}

func TestAnalyzeFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		keyDialog bool
		code      string
	}{
		{name: "network", err: stderrors.New("connection refused"), code: errors.CodeAnalysisFailed},
		{name: "credential marker", err: stderrors.New("Requested entity was not found."), keyDialog: true, code: errors.CodeCredential},
		{name: "unusable", err: errors.NewGenerationError(constants.Messages.UnusableResponse, errors.CodeUnusableResponse, "analysis", stderrors.New("bad json")), code: errors.CodeUnusableResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestManager(&fakeAnalyzer{err: tt.err}, &fakeVideos{}, "k").Create()
			sess.UpdateProduct(luminifyProduct())

			if err := sess.Analyze(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			snap := sess.Snapshot()
			if snap.Phase != domain.PhaseError {
				t.Fatalf("expected ERROR phase, got %s", snap.Phase)
			}
			if snap.ErrorMessage != constants.Messages.AnalysisFailed {
				t.Fatalf("unexpected message %q", snap.ErrorMessage)
			}
			if snap.ShowKeyDialog != tt.keyDialog {
				t.Fatalf("key dialog = %v, want %v", snap.ShowKeyDialog, tt.keyDialog)
			}
			if snap.ErrorCode != tt.code {
				t.Fatalf("error code = %q, want %q", snap.ErrorCode, tt.code)
			}
		})
	}
}

func TestResubmitAfterError(t *testing.T) {
	analyzer := &fakeAnalyzer{err: stderrors.New("boom")}
	sess := newTestManager(analyzer, &fakeVideos{}, "k").Create()
	sess.UpdateProduct(luminifyProduct())
	_ = sess.Analyze(context.Background())

	analyzer.err = nil
	analyzer.result = luminifyResult()
	if err := sess.Analyze(context.Background()); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	snap := sess.Snapshot()
	if snap.Phase != domain.PhaseCompleted || snap.ErrorMessage != "" {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestGenerateVideo(t *testing.T) {
	videos := &fakeVideos{video: &domain.Video{ID: "vid", URL: "/media/vid"}}
	sess := newTestManager(&fakeAnalyzer{result: luminifyResult()}, videos, "k").Create()

	if err := sess.GenerateVideo(context.Background(), ""); err != nil {
		t.Fatalf("no-op without result should not fail: %v", err)
	}
	if len(videos.prompts) != 0 {
		t.Fatalf("video must not be requested before analysis")
	}

	sess.UpdateProduct(luminifyProduct())
	if err := sess.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := sess.GenerateVideo(context.Background(), ""); err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Phase != domain.PhaseCompleted || snap.VideoURL != "/media/vid" {
		t.Fatalf("unexpected state %+v", snap)
	}
	if videos.prompts[0] != luminifyResult().Strategy.VideoPrompt || videos.aspects[0] != domain.AspectRatioPortrait {
		t.Fatalf("unexpected video request %v %v", videos.prompts, videos.aspects)
	}

	job, err := sess.StartVideo("")
	if err != nil || job != nil {
		t.Fatalf("second request should be a no-op, job=%v err=%v", job != nil, err)
	}
	if len(videos.prompts) != 1 {
		t.Fatalf("video should be generated once")
	}
}

func TestGenerateVideoFailureReturnsToCompleted(t *testing.T) {
	videos := &fakeVideos{err: stderrors.New("rpc: Requested entity was not found")}
	sess := newTestManager(&fakeAnalyzer{result: luminifyResult()}, videos, "k").Create()
	sess.UpdateProduct(luminifyProduct())
	_ = sess.Analyze(context.Background())

	if err := sess.GenerateVideo(context.Background(), domain.AspectRatioLandscape); err == nil {
		t.Fatalf("expected error")
	}

	snap := sess.Snapshot()
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("video failure should return to COMPLETED, got %s", snap.Phase)
	}
	if snap.ErrorMessage != "Tạo video thất bại. Đảm bảo API Key của bạn có quyền truy cập mô hình Veo." {
		t.Fatalf("unexpected message %q", snap.ErrorMessage)
	}
	if !snap.ShowKeyDialog {
		t.Fatalf("credential failures should show the key dialog")
	}
	if snap.Result == nil {
		t.Fatalf("analysis result should be kept")
	}
}

func TestBusySessionRejectsOverlappingCalls(t *testing.T) {
	analyzer := &fakeAnalyzer{result: luminifyResult(), block: make(chan struct{})}
	sess := newTestManager(analyzer, &fakeVideos{}, "k").Create()
	sess.UpdateProduct(luminifyProduct())

	job, err := sess.StartAnalyze()
	if err != nil {
		t.Fatalf("StartAnalyze: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- job(context.Background()) }()

	if _, err := sess.StartAnalyze(); !stderrors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := sess.StartVideo(""); !stderrors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for video, got %v", err)
	}

	close(analyzer.block)
	if err := <-done; err != nil {
		t.Fatalf("job: %v", err)
	}
}

func TestReanalysisClearsVideo(t *testing.T) {
	store := media.NewMemoryStore()
	videos := &fakeVideos{video: &domain.Video{ID: "v1", URL: "/media/v1"}}
	m := NewManager(&fakeAnalyzer{result: luminifyResult()}, videos, credential.NewStore("k", zap.NewNop()), store, ManagerConfig{TTL: time.Hour}, zap.NewNop())
	sess := m.Create()
	sess.UpdateProduct(luminifyProduct())
	_ = sess.Analyze(context.Background())
	_ = store.Put(context.Background(), domain.MediaObject{ID: "v1"}, time.Hour)
	_ = sess.GenerateVideo(context.Background(), "")

	if err := sess.Analyze(context.Background()); err != nil {
		t.Fatalf("re-analysis: %v", err)
	}
	if sess.Snapshot().VideoURL != "" {
		t.Fatalf("new analysis should drop the old video")
	}
	if store.Len() != 0 {
		t.Fatalf("previous clip should be deleted from the media store")
	}
}

func TestPanickingJobSettlesSession(t *testing.T) {
	t.Run("analysis", func(t *testing.T) {
		analyzer := &fakeAnalyzer{panicWith: "boom"}
		sess := newTestManager(analyzer, &fakeVideos{}, "k").Create()
		sess.UpdateProduct(luminifyProduct())

		err := sess.Analyze(context.Background())
		if errors.CodeOf(err) != errors.CodeAnalysisFailed {
			t.Fatalf("expected analysis failure, got %v", err)
		}
		snap := sess.Snapshot()
		if snap.Phase != domain.PhaseError || snap.ErrorMessage != constants.Messages.AnalysisFailed {
			t.Fatalf("unexpected snapshot %+v", snap)
		}

		analyzer.panicWith = nil
		analyzer.result = luminifyResult()
		if err := sess.Analyze(context.Background()); err != nil {
			t.Fatalf("session should accept a new analysis: %v", err)
		}
	})

	t.Run("video", func(t *testing.T) {
		videos := &fakeVideos{panicWith: "boom"}
		sess := newTestManager(&fakeAnalyzer{result: luminifyResult()}, videos, "k").Create()
		sess.UpdateProduct(luminifyProduct())
		_ = sess.Analyze(context.Background())

		err := sess.GenerateVideo(context.Background(), "")
		if errors.CodeOf(err) != errors.CodeVideoFailed {
			t.Fatalf("expected video failure, got %v", err)
		}
		snap := sess.Snapshot()
		if snap.Phase != domain.PhaseCompleted || snap.ErrorMessage != constants.Messages.VideoFailed {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if _, err := sess.StartVideo(""); stderrors.Is(err, ErrBusy) {
			t.Fatalf("session must not stay busy after a panic")
		}
	})
}

func TestBenefitEditing(t *testing.T) {
	sess := newTestManager(&fakeAnalyzer{}, &fakeVideos{}, "k").Create()

	sess.AddBenefit()
	snap, err := sess.UpdateBenefit(1, "Tiết kiệm điện")
	if err != nil {
		t.Fatalf("UpdateBenefit: %v", err)
	}
	if !reflect.DeepEqual(snap.Product.KeyBenefits, []string{"", "Tiết kiệm điện"}) {
		t.Fatalf("unexpected benefits %#v", snap.Product.KeyBenefits)
	}
	if _, err := sess.UpdateBenefit(5, "x"); errors.CodeOf(err) != errors.CodeValidation {
		t.Fatalf("out of range index should be rejected, got %v", err)
	}

	snap = sess.UpdateProduct(domain.ProductInput{Name: "n"})
	if !reflect.DeepEqual(snap.Product.KeyBenefits, []string{""}) {
		t.Fatalf("empty benefit list should be normalized, got %#v", snap.Product.KeyBenefits)
	}
}

func TestSelectKeyHidesDialog(t *testing.T) {
	creds := credential.NewStore("", zap.NewNop())
	m := NewManager(&fakeAnalyzer{}, &fakeVideos{}, creds, media.NewMemoryStore(), ManagerConfig{TTL: time.Hour}, zap.NewNop())
	sess := m.Create()

	if _, err := sess.SelectKey(""); err == nil {
		t.Fatalf("empty key should be rejected")
	}
	snap, err := sess.SelectKey("new-key")
	if err != nil {
		t.Fatalf("SelectKey: %v", err)
	}
	if snap.ShowKeyDialog || creds.APIKey() != "new-key" {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestDismissError(t *testing.T) {
	sess := newTestManager(&fakeAnalyzer{err: stderrors.New("x")}, &fakeVideos{}, "k").Create()
	sess.UpdateProduct(luminifyProduct())
	_ = sess.Analyze(context.Background())

	snap := sess.DismissError()
	if snap.Phase != domain.PhaseIdle || snap.ErrorMessage != "" {
		t.Fatalf("unexpected state %+v", snap)
	}
}
