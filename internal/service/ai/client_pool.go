package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/kapu/adgenius-go/internal/service/credential"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ClientPool hands out a Gemini client bound to the currently selected key.
// The client is rebuilt when the key changes.
type ClientPool struct {
	creds   credential.Provider
	baseURL string
	logger  *zap.Logger

	mu     sync.Mutex
	key    string
	client *genai.Client
}

func NewClientPool(creds credential.Provider, baseURL string, logger *zap.Logger) *ClientPool {
	return &ClientPool{
		creds:   creds,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Client returns the client for the current key along with that key.
func (p *ClientPool) Client(ctx context.Context) (*genai.Client, string, error) {
	key := p.creds.APIKey()
	if key == "" {
		return nil, "", errors.ErrMissingCredential
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.key == key {
		return p.client, key, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p.logger.Info("Gemini client initialized", zap.String("key", credential.Mask(key)))
	p.client = client
	p.key = key
	return client, key, nil
}
