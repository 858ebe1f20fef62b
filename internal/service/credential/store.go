package credential

import (
	"strings"
	"sync"

	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

// Provider supplies the API key used for every hosted model call.
type Provider interface {
	HasKey() bool
	APIKey() string
	Select(key string) error
}

// Listener is notified after a new key has been selected.
type Listener func(key string)

// Store is an in-process Provider seeded from configuration and replaceable
// at runtime through the key-selection endpoint.
type Store struct {
	mu        sync.RWMutex
	key       string
	listeners []Listener
	logger    *zap.Logger
}

func NewStore(initial string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		key:    strings.TrimSpace(initial),
		logger: logger,
	}
}

func (s *Store) HasKey() bool {
	return s.APIKey() != ""
}

func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *Store) Select(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.NewValidationError("api key must not be empty", "api_key", "")
	}

	s.mu.Lock()
	changed := s.key != key
	s.key = key
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if changed {
		s.logger.Info("API key selected", zap.String("key", Mask(key)))
		for _, l := range listeners {
			l(key)
		}
	}
	return nil
}

// OnSelect registers a listener for key changes.
func (s *Store) OnSelect(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Mask keeps the last four characters of a key for logging.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
