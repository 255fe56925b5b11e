package embeddings

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxBatchSize = 100
	defaultMaxRetries   = 4
	defaultBaseDelay    = time.Second
	defaultRequestRate  = 5 // requests per second
)

// Gateway wraps an Embedder with batch splitting, a proactive request-rate
// throttle, and exponential-backoff retries for transient failures. A batch
// that still fails after the retry budget is reported as one error covering
// every text in it; callers attribute the failure per item.
type Gateway struct {
	embedder   Embedder
	maxBatch   int
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithMaxBatchSize bounds how many texts go into one provider call.
func WithMaxBatchSize(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBatch = n
		}
	}
}

// WithMaxRetries bounds retry attempts per batch (not counting the first try).
func WithMaxRetries(n int) GatewayOption {
	return func(g *Gateway) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; each retry doubles it.
func WithBaseDelay(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// WithRequestRate sets the proactive requests-per-second throttle.
func WithRequestRate(rps float64) GatewayOption {
	return func(g *Gateway) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewGateway wraps the given embedder.
func NewGateway(e Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		embedder:   e,
		maxBatch:   defaultMaxBatchSize,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestRate), 1),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimensions reports the wrapped embedder's output dimensionality.
func (g *Gateway) Dimensions() int { return g.embedder.Dimensions() }

// Name reports the wrapped embedder's model identifier.
func (g *Gateway) Name() string { return g.embedder.Name() }

// EmbedBatch embeds all texts, splitting into provider calls of at most
// the configured batch size. The result preserves input order and has the
// same length as the input.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.maxBatch {
		end := start + g.maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := g.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		all = append(all, vecs...)
	}
	return all, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

func (g *Gateway) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	delay := g.baseDelay

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := g.embedder.Embed(ctx, batch)
		if err == nil {
			if len(vecs) != len(batch) {
				return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch))
			}
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after %d attempts: %w", g.maxRetries+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
