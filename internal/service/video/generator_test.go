package video

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

type fakeBackend struct {
	mu         sync.Mutex
	pendingFor int
	final      Job
	submitErr  error
	pollErr    error
	submitted  []SubmitRequest
	polls      int
}

func (f *fakeBackend) Submit(_ context.Context, req SubmitRequest) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &Job{Name: "operations/test"}, nil
}

func (f *fakeBackend) Poll(_ context.Context, job *Job) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.polls <= f.pendingFor {
		return &Job{Name: job.Name}, nil
	}
	final := f.final
	final.Name = job.Name
	final.Done = true
	return &final, nil
}

type recordedWaits struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordedWaits) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestGenerator(t *testing.T, backend Backend, store media.Store, key string) (*Generator, *recordedWaits) {
	t.Helper()
	g := NewGenerator(backend, NewFetcher(nil), store, credential.NewStore(key, zap.NewNop()), GeneratorConfig{
		Model:        "veo-3.1-fast-generate-preview",
		PollInterval: 5 * time.Second,
		MediaTTL:     time.Hour,
	}, zap.NewNop())
	rec := &recordedWaits{}
	g.poller.wait = rec.wait
	return g, rec
}

func TestGeneratePollsUntilDoneAndFetchesWithKey(t *testing.T) {
	var gotKey, gotAlt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAlt = r.URL.Query().Get("alt")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4-data"))
	}))
	defer srv.Close()

	const pending = 3
	backend := &fakeBackend{pendingFor: pending, final: Job{VideoURI: srv.URL + "/files/abc:download?alt=media"}}
	store := media.NewMemoryStore()
	g, rec := newTestGenerator(t, backend, store, "secret-key")

	video, err := g.Generate(context.Background(), "glowing skin close-up", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if backend.polls != pending+1 {
		t.Fatalf("expected %d status checks, got %d", pending+1, backend.polls)
	}
	if len(rec.waits) != pending+1 {
		t.Fatalf("expected %d waits, got %d", pending+1, len(rec.waits))
	}
	for _, d := range rec.waits {
		if d != 5*time.Second {
			t.Fatalf("poll interval should be fixed at 5s, got %s", d)
		}
	}

	req := backend.submitted[0]
	if req.AspectRatio != domain.AspectRatioPortrait || req.Resolution != "720p" || req.NumberOfVideos != 1 {
		t.Fatalf("unexpected submit request %+v", req)
	}

	if gotKey != "secret-key" || gotAlt != "media" {
		t.Fatalf("media fetch should keep existing params and add key; key=%q alt=%q", gotKey, gotAlt)
	}

	if video.URL != "/media/"+video.ID {
		t.Fatalf("unexpected url %q", video.URL)
	}
	obj, err := store.Get(context.Background(), video.ID)
	if err != nil || string(obj.Data) != "mp4-data" {
		t.Fatalf("media not stored: %v", err)
	}
}

func TestGenerateUsesInlineBytes(t *testing.T) {
	backend := &fakeBackend{final: Job{VideoBytes: []byte("inline"), MIMEType: "video/mp4"}}
	store := media.NewMemoryStore()
	g, _ := newTestGenerator(t, backend, store, "k")

	video, err := g.Generate(context.Background(), "p", domain.AspectRatioLandscape)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if video.Size != int64(len("inline")) {
		t.Fatalf("unexpected size %d", video.Size)
	}
	if backend.submitted[0].AspectRatio != domain.AspectRatioLandscape {
		t.Fatalf("aspect ratio not forwarded")
	}
}

func TestGenerateMissingURIIsUnusable(t *testing.T) {
	backend := &fakeBackend{final: Job{}}
	g, _ := newTestGenerator(t, backend, media.NewMemoryStore(), "k")

	_, err := g.Generate(context.Background(), "p", "")
	if errors.CodeOf(err) != errors.CodeUnusableResult {
		t.Fatalf("expected unusable result, got %v", err)
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name       string
		backend    *fakeBackend
		credential bool
	}{
		{name: "submit credential", backend: &fakeBackend{submitErr: stderrors.New("Requested entity was not found.")}, credential: true},
		{name: "poll error", backend: &fakeBackend{pendingFor: 1, pollErr: stderrors.New("503 unavailable")}},
		{name: "job error", backend: &fakeBackend{final: Job{Err: stderrors.New("safety filter")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGenerator(t, tt.backend, media.NewMemoryStore(), "k")
			_, err := g.Generate(context.Background(), "p", "")
			if errors.CodeOf(err) != errors.CodeVideoFailed {
				t.Fatalf("expected video failed, got %v", err)
			}
			if errors.IsCredentialError(err) != tt.credential {
				t.Fatalf("credential classification = %v, want %v", errors.IsCredentialError(err), tt.credential)
			}
		})
	}
}

func TestGenerateFetchNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	backend := &fakeBackend{final: Job{VideoURI: srv.URL + "/v.mp4"}}
	g, _ := newTestGenerator(t, backend, media.NewMemoryStore(), "k")

	_, err := g.Generate(context.Background(), "p", "")
	if errors.CodeOf(err) != errors.CodeVideoFailed {
		t.Fatalf("expected video failed, got %v", err)
	}
}

func TestGenerateRejectsBadAspectRatio(t *testing.T) {
	backend := &fakeBackend{}
	g, _ := newTestGenerator(t, backend, media.NewMemoryStore(), "k")

	_, err := g.Generate(context.Background(), "p", "4:3")
	if errors.CodeOf(err) != errors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.submitted) != 0 {
		t.Fatalf("invalid aspect ratio must not submit")
	}
}
