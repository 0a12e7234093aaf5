// Package estimator provides the dual probability estimator pool: a
// local (in-region) and a global model behind one interface, with a
// rule-based fallback policy when a model is unavailable.
package estimator

import (
	"context"
	"errors"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Sentinel errors returned by estimators and the pool.
var (
	ErrFeatureShapeMismatch = errors.New("estimator: feature vector dimensions do not match model")
	ErrEstimatorNotFound    = errors.New("estimator: no estimator registered under that id")
)

// Canonical estimator IDs.
const (
	LocalModelID  = "local"
	GlobalModelID = "global"
)

// Feature vector layout. Every estimator scores the same ordered vector.
const (
	FeatAmount = iota
	FeatAmountLog
	FeatHourOfDay
	FeatWeekend
	FeatUserInRegion
	FeatMerchantInRegion
	FeatDistanceDeg
	NumFeatures
)

// FeatureVector is an ordered numeric encoding of one transaction.
type FeatureVector []float64

// Estimator scores a feature vector to a fraud probability in [0, 1].
type Estimator interface {
	ID() string
	Dimensions() int
	Score(ctx context.Context, vec FeatureVector) (float64, error)
}

// Extract builds the canonical feature vector for a transaction and
// its geo context.
func Extract(tx *domain.Transaction, geo domain.GeoContext) FeatureVector {
	vec := make(FeatureVector, NumFeatures)
	vec[FeatAmount] = tx.Amount
	vec[FeatAmountLog] = math.Log1p(math.Max(tx.Amount, 0))
	vec[FeatHourOfDay] = float64(tx.Timestamp.Hour())
	if wd := tx.Timestamp.Weekday(); wd == 0 || wd == 6 {
		vec[FeatWeekend] = 1
	}
	if geo.UserInRegion {
		vec[FeatUserInRegion] = 1
	}
	if geo.MerchantInRegion {
		vec[FeatMerchantInRegion] = 1
	}
	if !math.IsNaN(geo.DistanceDeg) {
		vec[FeatDistanceDeg] = geo.DistanceDeg
	}
	return vec
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
