package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/util"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrServiceUnavailable marks upstream outages (5xx, rate limit, timeout, open circuit).
var ErrServiceUnavailable = errors.New("ai service temporarily unavailable")

// ModelInvoker is what analysis code needs from the model layer.
type ModelInvoker interface {
	GenerateJSON(ctx context.Context, prompt string, dest any, opts *GenerateOptions) (*GenerateMetadata, error)
}

type ModelManager struct {
	gemini         *GeminiProvider
	primary        JSONProvider
	fallback       JSONProvider
	logger         *zap.Logger
	enableFallback bool
	circuitBreaker *util.CircuitBreaker
	recorder       *metrics.Recorder
}

type ModelManagerConfig struct {
	GeminiAPIKey       string
	OpenAIAPIKey       string
	DefaultGeminiModel string
	DefaultOpenAIModel string
	EnableFallback     bool
	Recorder           *metrics.Recorder
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-2.5-flash"
	}

	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-5-mini"
	}

	geminiProvider := NewGeminiProvider(geminiClient, defaultGemini, logger)

	var fallback JSONProvider
	if cfg.EnableFallback {
		if openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger); openaiProvider != nil {
			logger.Info("OpenAI fallback enabled", zap.String("model", defaultOpenAI))
			fallback = openaiProvider
		}
	}
	if fallback == nil {
		logger.Info("OpenAI fallback disabled")
	}

	mm := newModelManager(geminiProvider, fallback, cfg.Recorder, logger)
	mm.gemini = geminiProvider
	return mm, nil
}

func newModelManager(primary, fallback JSONProvider, recorder *metrics.Recorder, logger *zap.Logger) *ModelManager {
	mm := &ModelManager{
		primary:        primary,
		fallback:       fallback,
		enableFallback: fallback != nil,
		logger:         logger,
		recorder:       recorder,
	}
	mm.circuitBreaker = util.NewCircuitBreaker(util.CircuitBreakerOptions{
		Name:                "analysis",
		FailureThreshold:    constants.CircuitBreakerConfig.FailureThreshold,
		ResetTimeout:        constants.CircuitBreakerConfig.ResetTimeout,
		HealthCheckInterval: constants.CircuitBreakerConfig.HealthCheckInterval,
		HealthCheckTimeout:  constants.CircuitBreakerConfig.HealthCheckTimeout,
		HealthCheck:         mm.healthCheckPing,
		OnStateChange: func(name string, _, to util.CircuitState) {
			recorder.SetCircuitOpen(name, to != util.CircuitStateClosed)
		},
	}, logger)
	return mm
}

func (mm *ModelManager) DefaultGeminiModel() string {
	if mm.gemini == nil {
		return ""
	}
	return mm.gemini.DefaultModel()
}

// GenerateJSON asks the primary provider (then the fallback, when enabled) for a JSON document
// and decodes it into dest. A nil opts uses DiaryAnalysisSampling.
func (mm *ModelManager) GenerateJSON(ctx context.Context, prompt string, dest any, opts *GenerateOptions) (*GenerateMetadata, error) {
	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = util.FormatJST(*status.NextRetryTime, "15:04:05")
		}

		mm.logger.Error("AI service unavailable (Circuit OPEN)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
			zap.String("next_retry", nextRetry),
		)

		return nil, fmt.Errorf("%w: circuit open until %s", ErrServiceUnavailable, nextRetry)
	}

	options := GenerateOptions{Sampling: DiaryAnalysisSampling}
	if opts != nil {
		options = *opts
	}

	primaryResult, primaryErr := mm.invokeProvider(ctx, mm.primary, prompt, options)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		metadata := &GenerateMetadata{
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
		}
		return mm.decodeJSON(primaryResult.Text, metadata, dest)
	}

	if mm.enableFallback && mm.fallback != nil {
		mm.logger.Warn("Primary model failed, trying fallback",
			zap.String("primary", mm.primary.Name()),
			zap.Error(primaryErr),
		)

		fallbackResult, fallbackErr := mm.invokeProvider(ctx, mm.fallback, prompt, options)
		if fallbackErr == nil {
			mm.circuitBreaker.RecordSuccess()
			metadata := &GenerateMetadata{
				Provider:     mm.fallback.Name(),
				Model:        fallbackResult.Model,
				UsedFallback: true,
			}
			return mm.decodeJSON(fallbackResult.Text, metadata, dest)
		}

		mm.recordFailure(primaryErr)
		mm.recordFailure(fallbackErr)

		if mm.isServiceFailure(primaryErr) || mm.isServiceFailure(fallbackErr) {
			return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, fallbackErr)
		}

		return nil, fallbackErr
	}

	mm.recordFailure(primaryErr)

	if mm.isServiceFailure(primaryErr) {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, primaryErr)
	}

	return nil, primaryErr
}

func (mm *ModelManager) invokeProvider(ctx context.Context, provider JSONProvider, prompt string, opts GenerateOptions) (ProviderResult, error) {
	if provider == nil {
		return ProviderResult{}, fmt.Errorf("model provider is not configured")
	}

	start := time.Now()
	result, err := provider.Generate(ctx, prompt, opts)

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeFailure
	}
	mm.recorder.ObserveAnalysis(provider.Name(), outcome, time.Since(start))

	return result, err
}

func (mm *ModelManager) decodeJSON(text string, metadata *GenerateMetadata, dest any) (*GenerateMetadata, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%s API returned empty response", metadata.Provider)
	}

	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, 200)),
		)
		return nil, fmt.Errorf("invalid JSON from %s: %w", metadata.Provider, err)
	}

	return metadata, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}

func (mm *ModelManager) recordFailure(err error) {
	if err == nil || !mm.isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if mm.isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

func (mm *ModelManager) healthCheckPing(ctx context.Context) error {
	mm.logger.Info("Health Check: Testing AI services...")

	primaryErr := mm.primary.Ping(ctx)
	if primaryErr == nil {
		return nil
	}

	if mm.enableFallback && mm.fallback != nil {
		if err := mm.fallback.Ping(ctx); err == nil {
			return nil
		}
	}

	return primaryErr
}

// isServiceFailure reports outages that should count against the circuit: deadlines, network
// timeouts, rate limits and 5xx responses. Other API errors are the request's own fault.
func (mm *ModelManager) isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if mm.isRateLimitError(err) {
		return true
	}

	if code, ok := apiStatusCode(err); ok {
		return code >= 500 && code < 600
	}

	return false
}

func (mm *ModelManager) isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Status == "RESOURCE_EXHAUSTED" {
		return true
	}

	code, ok := apiStatusCode(err)
	return ok && code == http.StatusTooManyRequests
}

// apiStatusCode extracts the HTTP status from a Gemini or OpenAI SDK error.
func apiStatusCode(err error) (int, bool) {
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code != 0 {
		return geminiErr.Code, true
	}

	var geminiPtr *genai.APIError
	if errors.As(err, &geminiPtr) && geminiPtr != nil && geminiPtr.Code != 0 {
		return geminiPtr.Code, true
	}

	var openAIErr *openai.Error
	if errors.As(err, &openAIErr) && openAIErr != nil && openAIErr.StatusCode != 0 {
		return openAIErr.StatusCode, true
	}

	return 0, false
}

func (mm *ModelManager) CircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.Status()
}

func (mm *ModelManager) ResetCircuit() {
	mm.circuitBreaker.Reset()
}
