package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/resilience"
)

const maxResponseBytes = 8 << 20

type remoteRequest struct {
	Text string       `json:"text"`
	Lang lexicon.Lang `json:"lang"`
}

// Remote calls an external analysis service. Every failure, including an
// open circuit, is reported as ErrAnalysisUnavailable; callers decide
// whether to retry.
type Remote struct {
	url     string
	timeout time.Duration
	client  *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// RemoteConfig configures the HTTP client and its circuit breaker.
type RemoteConfig struct {
	URL              string
	Timeout          time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

func NewRemote(cfg RemoteConfig, met *metrics.Metrics) *Remote {
	r := &Remote{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		client:  &http.Client{},
		metrics: met,
		logger:  slog.Default().With("component", "remote-analyzer"),
	}
	r.breaker = resilience.NewCircuitBreaker("analysis", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			if met != nil {
				met.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return r
}

// Breaker exposes the circuit breaker for health reporting.
func (r *Remote) Breaker() *resilience.CircuitBreaker {
	return r.breaker
}

func (r *Remote) Analyze(ctx context.Context, text string, lang lexicon.Lang) ([]TextToken, error) {
	start := time.Now()
	var tokens []TextToken
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.timeout, "analyzeText", func(ctx context.Context) error {
			var err error
			tokens, err = r.call(ctx, text, lang)
			return err
		})
	})
	if r.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		r.metrics.AnalysisCallsTotal.WithLabelValues("remote", result).Inc()
		r.metrics.AnalysisLatency.WithLabelValues("remote").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.logger.Warn("remote analysis failed", "lang", lang, "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAnalysisUnavailable, err)
	}
	return tokens, nil
}

func (r *Remote) call(ctx context.Context, text string, lang lexicon.Lang) ([]TextToken, error) {
	body, err := json.Marshal(remoteRequest{Text: text, Lang: lang})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var tokens []TextToken
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}
	return tokens, nil
}
