package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/util"
	"github.com/kapu/adgenius-go/pkg/errors"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrInvalidJSON marks a provider answer that could not be decoded into the
// requested type.
var ErrInvalidJSON = stderrors.New("invalid JSON response")

// ErrCircuitOpen is returned while the circuit breaker blocks calls.
var ErrCircuitOpen = stderrors.New("AI service temporarily unavailable")

type ModelManager struct {
	primary        JSONProvider
	fallback       JSONProvider
	logger         *zap.Logger
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	Pool               *ClientPool
	OpenAIAPIKey       string
	DefaultGeminiModel string
	DefaultOpenAIModel string
	EnableFallback     bool
}

func NewModelManager(cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("gemini client pool is required")
	}

	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-3-pro-preview"
	}

	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-4.1-mini"
	}

	geminiProvider := NewGeminiProvider(cfg.Pool, defaultGemini, logger)

	var fallback JSONProvider
	if cfg.EnableFallback {
		if openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger); openaiProvider != nil {
			fallback = openaiProvider
			logger.Info("OpenAI fallback enabled", zap.String("model", defaultOpenAI))
		}
	}
	if fallback == nil {
		logger.Info("OpenAI fallback disabled")
	}

	return NewModelManagerWithProviders(geminiProvider, fallback, logger), nil
}

// NewModelManagerWithProviders wires explicit providers. fallback may be nil.
func NewModelManagerWithProviders(primary, fallback JSONProvider, logger *zap.Logger) *ModelManager {
	mm := &ModelManager{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
	mm.circuitBreaker = util.NewCircuitBreaker(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		mm.healthCheckPing,
		logger,
	)
	return mm
}

// GenerateJSON runs req against the primary provider, falling back to the
// secondary one on non-credential failures, and decodes the answer into dest.
func (mm *ModelManager) GenerateJSON(ctx context.Context, req JSONRequest, dest any) (*GenerateMetadata, error) {
	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = util.FormatICT(*status.NextRetryTime, "15:04")
		}

		mm.logger.Error("AI service unavailable (Circuit OPEN)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
			zap.String("next_retry", nextRetry),
		)
		return nil, fmt.Errorf("%w (retry after %s)", ErrCircuitOpen, nextRetry)
	}

	primaryResult, primaryErr := mm.primary.Generate(ctx, req)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return mm.decodeJSON(primaryResult.Text, &GenerateMetadata{
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
		}, dest)
	}

	mm.recordFailure(primaryErr)

	if mm.fallback == nil || errors.IsCredentialError(primaryErr) || ctx.Err() != nil {
		return nil, primaryErr
	}

	mm.logger.Warn("Primary provider failed, trying fallback",
		zap.String("primary", mm.primary.Name()),
		zap.String("fallback", mm.fallback.Name()),
		zap.Error(primaryErr),
	)

	fallbackResult, fallbackErr := mm.fallback.Generate(ctx, req)
	if fallbackErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return mm.decodeJSON(fallbackResult.Text, &GenerateMetadata{
			Provider:     mm.fallback.Name(),
			Model:        fallbackResult.Model,
			UsedFallback: true,
		}, dest)
	}

	mm.recordFailure(fallbackErr)
	return nil, fmt.Errorf("%s failed: %w; %s failed: %v", mm.primary.Name(), primaryErr, mm.fallback.Name(), fallbackErr)
}

func (mm *ModelManager) decodeJSON(text string, metadata *GenerateMetadata, dest any) (*GenerateMetadata, error) {
	cleaned := util.StripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: %s returned empty response", ErrInvalidJSON, metadata.Provider)
	}

	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, 200)),
		)
		return nil, fmt.Errorf("%w from %s: %v", ErrInvalidJSON, metadata.Provider, err)
	}

	return metadata, nil
}

func (mm *ModelManager) recordFailure(err error) {
	if !isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

func (mm *ModelManager) healthCheckPing() bool {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	primaryOK := mm.primary.Ping(ctx)
	fallbackOK := mm.fallback != nil && mm.fallback.Ping(ctx)

	mm.logger.Info("Health Check: Result",
		zap.Bool("primary", primaryOK),
		zap.Bool("fallback", fallbackOK),
	)

	return primaryOK || fallbackOK
}

func (mm *ModelManager) CircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.Status()
}

func (mm *ModelManager) ResetCircuit() {
	mm.circuitBreaker.Reset()
}

var statusCodePattern = regexp.MustCompile(`"code":\s*(\d{3})|^(\d{3})\s`)

// statusCodeOf extracts an HTTP status from provider errors.
func statusCodeOf(err error) int {
	var gErr genai.APIError
	if stderrors.As(err, &gErr) {
		return gErr.Code
	}
	var gPtr *genai.APIError
	if stderrors.As(err, &gPtr) && gPtr != nil {
		return gPtr.Code
	}
	var oErr *openai.Error
	if stderrors.As(err, &oErr) && oErr != nil {
		return oErr.StatusCode
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if code, convErr := strconv.Atoi(raw); convErr == nil {
			return code
		}
	}
	return 0
}

func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "ETIMEDOUT") {
		return true
	}
	if isRateLimitError(err) {
		return true
	}
	code := statusCodeOf(err)
	return code >= http.StatusInternalServerError && code < 600
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if statusCodeOf(err) == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "Rate limit")
}
