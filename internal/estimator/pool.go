package estimator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// DefaultScoreTimeout bounds a single estimator call.
const DefaultScoreTimeout = 250 * time.Millisecond

// neutralProbability is returned when both the requested estimator and
// the fallback policy fail. It matches the fallback's base rate so a
// fully degraded pool still biases toward low risk.
const neutralProbability = 0.15

// Pool routes scoring calls to registered estimators and degrades to
// the fallback policy when one is missing, mis-shaped, or failing.
// Pool.Score never returns an error: a degraded call is reported via
// Available=false on the result.
type Pool struct {
	mu         sync.RWMutex
	estimators map[string]Estimator
	fallback   Estimator
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPool creates a pool with the given fallback policy.
func NewPool(fallback Estimator, timeout time.Duration, logger *slog.Logger) *Pool {
	if timeout <= 0 {
		timeout = DefaultScoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		estimators: make(map[string]Estimator),
		fallback:   fallback,
		timeout:    timeout,
		logger:     logger,
	}
}

// DefaultPool wires the shipped local and global models over the
// shipped heuristic fallback.
func DefaultPool(logger *slog.Logger) *Pool {
	p := NewPool(DefaultHeuristic(), DefaultScoreTimeout, logger)
	p.Register(DefaultLocalModel())
	p.Register(DefaultGlobalModel())
	return p
}

// Register adds or replaces an estimator. Replacement is how retrained
// models are hot-swapped.
func (p *Pool) Register(e Estimator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.estimators[e.ID()] = e
}

// Get returns the registered estimator for an id.
func (p *Pool) Get(id string) (Estimator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.estimators[id]
	return e, ok
}

// Score runs the named estimator over the feature vector. Any failure
// path (unknown estimator, shape mismatch, timeout, scoring error)
// degrades to the fallback policy and marks the result unavailable.
func (p *Pool) Score(ctx context.Context, estimatorID string, vec FeatureVector) domain.EstimatorResult {
	est, ok := p.Get(estimatorID)
	if !ok {
		p.logger.Warn("estimator not registered, using fallback", "estimator", estimatorID)
		return p.degraded(ctx, estimatorID, vec)
	}

	if est.Dimensions() != len(vec) {
		p.logger.Warn("feature shape mismatch, using fallback",
			"estimator", estimatorID,
			"want_dims", est.Dimensions(),
			"got_dims", len(vec))
		return p.degraded(ctx, estimatorID, vec)
	}

	prob, err := p.scoreWithTimeout(ctx, est, vec)
	if err != nil {
		p.logger.Warn("estimator failed, using fallback",
			"estimator", estimatorID,
			"error", err)
		return p.degraded(ctx, estimatorID, vec)
	}

	return domain.EstimatorResult{
		EstimatorID: estimatorID,
		Probability: clampProb(prob),
		Available:   true,
	}
}

func (p *Pool) scoreWithTimeout(ctx context.Context, est Estimator, vec FeatureVector) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		prob float64
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		prob, err := est.Score(ctx, vec)
		done <- outcome{prob: prob, err: err}
	}()

	select {
	case out := <-done:
		return out.prob, out.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *Pool) degraded(ctx context.Context, estimatorID string, vec FeatureVector) domain.EstimatorResult {
	prob := neutralProbability
	if p.fallback != nil {
		if fp, err := p.fallback.Score(ctx, vec); err == nil {
			prob = fp
		} else {
			p.logger.Error("fallback policy failed", "estimator", estimatorID, "error", err)
		}
	}
	return domain.EstimatorResult{
		EstimatorID: estimatorID,
		Probability: clampProb(prob),
		Available:   false,
	}
}
