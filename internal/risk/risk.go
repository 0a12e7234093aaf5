// Package risk turns a blended fraud probability and anomaly flags into
// a discrete verdict and, when warranted, a fraud alert.
package risk

import (
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/anomaly"
	"github.com/opensource-finance/harrier/internal/domain"
)

// ClassifierConfig holds the classification thresholds.
type ClassifierConfig struct {
	// LowBelow and HighAtOrAbove bound the three risk bands:
	// p < LowBelow is LOW, p >= HighAtOrAbove is HIGH, MEDIUM between.
	LowBelow      float64
	HighAtOrAbove float64

	// ConfidenceIncrement is the percentage added per anomaly flag on
	// top of the blended probability.
	ConfidenceIncrement float64

	// AlertFlagMinimum is the flag count at which a MEDIUM verdict
	// still produces an alert.
	AlertFlagMinimum int
}

// DefaultClassifierConfig returns the production thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		LowBelow:            0.10,
		HighAtOrAbove:       0.50,
		ConfidenceIncrement: 15.0,
		AlertFlagMinimum:    2,
	}
}

// Classifier assigns risk levels and builds verdicts.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Level maps a blended probability and anomaly flags to a risk level.
// Burst and geographic-jump signals escalate MEDIUM to HIGH: either one
// is strong independent evidence regardless of the model score.
func (c *Classifier) Level(probability float64, flags domain.AnomalyFlags) domain.RiskLevel {
	level := domain.RiskLow
	switch {
	case probability >= c.cfg.HighAtOrAbove:
		level = domain.RiskHigh
	case probability >= c.cfg.LowBelow:
		level = domain.RiskMedium
	}

	if level == domain.RiskMedium && (flags.BurstPattern || flags.GeographicJump) {
		level = domain.RiskHigh
	}
	return level
}

// Confidence computes the compound confidence percentage: the blended
// probability as a percentage plus a fixed increment per anomaly flag.
// It is intentionally uncapped; values over 100 mean multiple
// independent signals agree.
func (c *Classifier) Confidence(probability float64, flags domain.AnomalyFlags) float64 {
	return probability*100 + float64(flags.Count())*c.cfg.ConfidenceIncrement
}

// Classify assembles the full verdict for a scored transaction.
func (c *Classifier) Classify(tx *domain.Transaction, blended domain.BlendedScore, geoCtx domain.GeoContext, flags domain.AnomalyFlags, local, global domain.EstimatorResult) *domain.RiskVerdict {
	return &domain.RiskVerdict{
		ID:          uuid.NewString(),
		TenantID:    tx.TenantID,
		TxID:        tx.ID,
		UserID:      tx.UserID,
		Level:       c.Level(blended.Probability, flags),
		Blended:     blended,
		Geo:         geoCtx,
		Anomalies:   flags,
		LocalModel:  local,
		GlobalModel: global,
		Confidence:  c.Confidence(blended.Probability, flags),
		Flags:       anomaly.Describe(flags),
		Timestamp:   time.Now().UTC(),
	}
}

// ShouldAlert reports whether a verdict warrants a fraud alert: any
// HIGH verdict, or a MEDIUM verdict with enough independent flags.
func (c *Classifier) ShouldAlert(v *domain.RiskVerdict) bool {
	switch v.Level {
	case domain.RiskHigh:
		return true
	case domain.RiskMedium:
		return v.Anomalies.Count() >= c.cfg.AlertFlagMinimum
	default:
		return false
	}
}

// BuildAlert creates an OPEN fraud alert carrying the verdict snapshot.
func BuildAlert(v *domain.RiskVerdict) *domain.FraudAlert {
	return &domain.FraudAlert{
		ID:        uuid.NewString(),
		TenantID:  v.TenantID,
		TxID:      v.TxID,
		UserID:    v.UserID,
		Status:    domain.AlertOpen,
		Verdict:   *v,
		CreatedAt: time.Now().UTC(),
	}
}
