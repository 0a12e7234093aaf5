package estimator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func sampleVector(amount float64) FeatureVector {
	vec := make(FeatureVector, NumFeatures)
	vec[FeatAmount] = amount
	vec[FeatAmountLog] = math.Log1p(amount)
	vec[FeatHourOfDay] = 14
	return vec
}

func TestExtract(t *testing.T) {
	tx := &domain.Transaction{
		Amount:    250.0,
		Timestamp: time.Date(2026, 3, 7, 22, 15, 0, 0, time.UTC), // Saturday
	}
	geo := domain.GeoContext{
		UserInRegion:     true,
		MerchantInRegion: false,
		DistanceDeg:      1.25,
	}

	vec := Extract(tx, geo)

	if len(vec) != NumFeatures {
		t.Fatalf("Extract() returned %d features, want %d", len(vec), NumFeatures)
	}
	if vec[FeatAmount] != 250.0 {
		t.Errorf("amount feature = %v, want 250", vec[FeatAmount])
	}
	if vec[FeatHourOfDay] != 22 {
		t.Errorf("hour feature = %v, want 22", vec[FeatHourOfDay])
	}
	if vec[FeatWeekend] != 1 {
		t.Errorf("weekend feature = %v, want 1", vec[FeatWeekend])
	}
	if vec[FeatUserInRegion] != 1 || vec[FeatMerchantInRegion] != 0 {
		t.Errorf("region features = %v/%v, want 1/0", vec[FeatUserInRegion], vec[FeatMerchantInRegion])
	}
	if vec[FeatDistanceDeg] != 1.25 {
		t.Errorf("distance feature = %v, want 1.25", vec[FeatDistanceDeg])
	}
}

func TestExtractMissingDistance(t *testing.T) {
	tx := &domain.Transaction{Amount: 10, Timestamp: time.Now()}
	geo := domain.GeoContext{DistanceDeg: math.NaN()}

	vec := Extract(tx, geo)
	if vec[FeatDistanceDeg] != 0 {
		t.Errorf("NaN distance should encode as 0, got %v", vec[FeatDistanceDeg])
	}
}

func TestLinearScore(t *testing.T) {
	model, err := NewLinear(ModelSpec{
		ID:      "test",
		Bias:    0,
		Weights: []float64{0, 0, 0, 0, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("NewLinear() error: %v", err)
	}

	prob, err := model.Score(context.Background(), sampleVector(100))
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if math.Abs(prob-0.5) > 1e-9 {
		t.Errorf("zero-weight model probability = %v, want 0.5", prob)
	}
}

func TestLinearShapeMismatch(t *testing.T) {
	model := DefaultLocalModel()

	_, err := model.Score(context.Background(), FeatureVector{1, 2})
	if !errors.Is(err, ErrFeatureShapeMismatch) {
		t.Errorf("Score() with short vector error = %v, want ErrFeatureShapeMismatch", err)
	}
}

func TestLinearMonotonicInAmount(t *testing.T) {
	model := DefaultLocalModel()
	ctx := context.Background()

	small, err := model.Score(ctx, sampleVector(20))
	if err != nil {
		t.Fatalf("Score(small) error: %v", err)
	}
	large, err := model.Score(ctx, sampleVector(5000))
	if err != nil {
		t.Fatalf("Score(large) error: %v", err)
	}
	if large <= small {
		t.Errorf("probability should grow with amount: small=%v large=%v", small, large)
	}
}

func TestHeuristicDefaultExpression(t *testing.T) {
	h := DefaultHeuristic()
	ctx := context.Background()

	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"very large amount", 2500, 0.85},
		{"large amount", 1500, 0.65},
		{"card testing micro amount", 1.50, 0.80},
		{"ordinary amount", 150, 0.15},
		{"boundary 2000 falls to large band", 2000, 0.65},
		{"boundary 10 is ordinary", 10, 0.15},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.Score(ctx, sampleVector(tc.amount))
			if err != nil {
				t.Fatalf("Score() error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Score(amount=%v) = %v, want %v", tc.amount, got, tc.want)
			}
		})
	}
}

func TestHeuristicCustomExpression(t *testing.T) {
	h, err := NewHeuristic("weekend-policy", `weekend && amount > 100.0 ? 0.9 : 0.1`)
	if err != nil {
		t.Fatalf("NewHeuristic() error: %v", err)
	}

	vec := sampleVector(500)
	vec[FeatWeekend] = 1

	got, err := h.Score(context.Background(), vec)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if got != 0.9 {
		t.Errorf("Score() = %v, want 0.9", got)
	}
}

func TestHeuristicRejectsInvalidExpression(t *testing.T) {
	if _, err := NewHeuristic("bad", `amount +`); err == nil {
		t.Error("NewHeuristic() should reject a malformed expression")
	}
	if _, err := NewHeuristic("bad-type", `"not a score"`); err == nil {
		t.Error("NewHeuristic() should reject a string-typed expression")
	}
}

func TestPoolScore(t *testing.T) {
	pool := DefaultPool(testLogger())
	ctx := context.Background()

	t.Run("RegisteredEstimator", func(t *testing.T) {
		res := pool.Score(ctx, LocalModelID, sampleVector(100))
		if !res.Available {
			t.Error("registered estimator should report Available=true")
		}
		if res.EstimatorID != LocalModelID {
			t.Errorf("EstimatorID = %q, want %q", res.EstimatorID, LocalModelID)
		}
		if res.Probability < 0 || res.Probability > 1 {
			t.Errorf("probability %v outside [0,1]", res.Probability)
		}
	})

	t.Run("UnknownEstimatorFallsBack", func(t *testing.T) {
		res := pool.Score(ctx, "missing", sampleVector(2500))
		if res.Available {
			t.Error("unknown estimator should report Available=false")
		}
		// Fallback policy scores large amounts at 0.85.
		if math.Abs(res.Probability-0.85) > 1e-9 {
			t.Errorf("fallback probability = %v, want 0.85", res.Probability)
		}
	})

	t.Run("ShapeMismatchFallsBack", func(t *testing.T) {
		res := pool.Score(ctx, LocalModelID, FeatureVector{1})
		if res.Available {
			t.Error("mis-shaped vector should report Available=false")
		}
	})
}

type failingEstimator struct{}

func (failingEstimator) ID() string      { return "failing" }
func (failingEstimator) Dimensions() int { return NumFeatures }
func (failingEstimator) Score(ctx context.Context, vec FeatureVector) (float64, error) {
	return 0, errors.New("model backend offline")
}

type slowEstimator struct{ delay time.Duration }

func (s slowEstimator) ID() string      { return "slow" }
func (s slowEstimator) Dimensions() int { return NumFeatures }
func (s slowEstimator) Score(ctx context.Context, vec FeatureVector) (float64, error) {
	select {
	case <-time.After(s.delay):
		return 0.99, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestPoolDegradesOnError(t *testing.T) {
	pool := NewPool(DefaultHeuristic(), DefaultScoreTimeout, testLogger())
	pool.Register(failingEstimator{})

	res := pool.Score(context.Background(), "failing", sampleVector(5))
	if res.Available {
		t.Error("failing estimator should report Available=false")
	}
	// Fallback flags micro amounts as card testing.
	if math.Abs(res.Probability-0.80) > 1e-9 {
		t.Errorf("fallback probability = %v, want 0.80", res.Probability)
	}
}

func TestPoolTimesOutSlowEstimator(t *testing.T) {
	pool := NewPool(DefaultHeuristic(), 10*time.Millisecond, testLogger())
	pool.Register(slowEstimator{delay: time.Second})

	start := time.Now()
	res := pool.Score(context.Background(), "slow", sampleVector(100))
	elapsed := time.Since(start)

	if res.Available {
		t.Error("timed-out estimator should report Available=false")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Score() took %v, timeout did not bound the call", elapsed)
	}
}

func TestPoolNoFallback(t *testing.T) {
	pool := NewPool(nil, DefaultScoreTimeout, testLogger())

	res := pool.Score(context.Background(), "missing", sampleVector(100))
	if res.Available {
		t.Error("result should be unavailable")
	}
	if res.Probability != neutralProbability {
		t.Errorf("probability = %v, want neutral %v", res.Probability, neutralProbability)
	}
}
