package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/internal/service/media"
	"github.com/kapu/adgenius-go/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ManagerConfig sets session expiry. MediaTTL is restarted on every session
// access and defaults to twice TTL.
type ManagerConfig struct {
	TTL           time.Duration
	SweepSchedule string
	MediaTTL      time.Duration
}

// Manager owns all live sessions and expires idle ones.
type Manager struct {
	analyzer Analyzer
	videos   VideoGenerator
	creds    credential.Provider
	media    media.Store
	cfg      ManagerConfig
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

func NewManager(analyzer Analyzer, videos VideoGenerator, creds credential.Provider, store media.Store, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.MediaTTL <= 0 {
		cfg.MediaTTL = 2 * cfg.TTL
	}
	return &Manager{
		analyzer: analyzer,
		videos:   videos,
		creds:    creds,
		media:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create() *Session {
	sess := newSession(uuid.NewString(), m.analyzer, m.videos, m.creds, m.media, m.logger, m.now)

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("Session created",
		zap.String("session", sess.ID()),
		zap.Bool("key_dialog", sess.Snapshot().ShowKeyDialog),
		zap.Int("active", total),
	)
	return sess
}

// Get returns a live session and marks it active. A session idle past the
// TTL is released here rather than waiting for the next sweep. The clip of
// a returned session has its expiry restarted so it never outlives the
// session that links to it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok && m.expired(sess) {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.release(ctx, sess)
		return nil, errors.NewNotFoundError("session not found", "session", id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, errors.NewNotFoundError("session not found", "session", id)
	}
	sess.touch()

	if videoID := sess.VideoID(); videoID != "" && m.media != nil {
		if err := m.media.Touch(ctx, videoID, m.cfg.MediaTTL); err != nil {
			m.logger.Warn("Failed to refresh session media",
				zap.String("session", id),
				zap.String("media", videoID),
				zap.Error(err),
			)
		}
	}
	return sess, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("session not found", "session", id)
	}
	m.release(ctx, sess)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL. Sessions with a
// remote call in flight are kept.
func (m *Manager) Sweep(ctx context.Context) int {
	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if m.expired(sess) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, sess := range expired {
		m.release(ctx, sess)
	}

	if sweeper, ok := m.media.(interface{ Sweep() int }); ok {
		if n := sweeper.Sweep(); n > 0 {
			m.logger.Debug("Expired media swept", zap.Int("count", n))
		}
	}

	if len(expired) > 0 {
		m.logger.Info("Idle sessions expired",
			zap.Int("expired", len(expired)),
			zap.Int("remaining", remaining),
		)
	}
	return len(expired)
}

func (m *Manager) expired(sess *Session) bool {
	return sess.idleSince().Before(m.now().Add(-m.cfg.TTL)) && !sess.isBusy()
}

func (m *Manager) release(ctx context.Context, sess *Session) {
	sess.closeSubscribers()
	if videoID := sess.VideoID(); videoID != "" && m.media != nil {
		if err := m.media.Delete(ctx, videoID); err != nil {
			m.logger.Warn("Failed to delete session media",
				zap.String("session", sess.ID()),
				zap.String("media", videoID),
				zap.Error(err),
			)
		}
	}
}

// Start schedules the periodic sweep.
func (m *Manager) Start() error {
	schedule := m.cfg.SweepSchedule
	if schedule == "" {
		schedule = "@every 5m"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.Sweep(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	m.cron = c

	m.logger.Info("Session sweeper started",
		zap.String("schedule", schedule),
		zap.Duration("ttl", m.cfg.TTL),
	)
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (m *Manager) Stop(ctx context.Context) {
	if m.cron == nil {
		return
	}
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
	}
}
