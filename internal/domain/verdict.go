package domain

import (
	"time"
)

// RiskLevel is the discretized fraud risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank orders risk levels for monotonicity comparisons.
func (l RiskLevel) rank() int {
	switch l {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether l is the same or a more severe level than other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

// EstimatorResult is the outcome of one probability estimator call.
// Available=false means the estimator could not be used and the
// probability came from the rule-based fallback policy.
type EstimatorResult struct {
	EstimatorID string  `json:"estimatorId"`
	Probability float64 `json:"probability"`
	Available   bool    `json:"available"`
}

// GeoContext classifies where a transaction's parties sit relative to
// the designated local region.
type GeoContext struct {
	UserInRegion     bool `json:"userInRegion"`
	MerchantInRegion bool `json:"merchantInRegion"`
	LocalTransaction bool `json:"localTransaction"`

	// DistanceDeg is the Euclidean degree distance between the two
	// coordinates, kept for explainability.
	DistanceDeg float64 `json:"distanceDeg"`
}

// BlendCase names which branch of the weighting table fired.
type BlendCase string

const (
	BlendBothInRegion     BlendCase = "both_in_region"
	BlendUserInRegion     BlendCase = "user_in_region"
	BlendMerchantInRegion BlendCase = "merchant_in_region"
	BlendInternational    BlendCase = "international"
)

// BlendedScore is the canonical fraud probability for a transaction,
// with the weights that produced it.
type BlendedScore struct {
	Probability  float64   `json:"probability"`
	LocalWeight  float64   `json:"localWeight"`
	GlobalWeight float64   `json:"globalWeight"`
	Case         BlendCase `json:"case"`
}

// AnomalyFlags are the independent statistical signals. Each flag
// carries its triggering metric so verdicts stay explainable.
type AnomalyFlags struct {
	AmountOutlier  bool    `json:"amountOutlier"`
	AmountZScore   float64 `json:"amountZScore"`
	GeographicJump bool    `json:"geographicJump"`
	ImpliedSpeed   float64 `json:"impliedSpeedKmh"`
	BurstPattern   bool    `json:"burstPattern"`
	BurstCount     int     `json:"burstCount"`
}

// Count returns how many flags are set.
func (f AnomalyFlags) Count() int {
	n := 0
	if f.AmountOutlier {
		n++
	}
	if f.GeographicJump {
		n++
	}
	if f.BurstPattern {
		n++
	}
	return n
}

// RiskVerdict is the output contract of the decision engine.
type RiskVerdict struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	TxID     string `json:"txId"`
	UserID   string `json:"userId"`

	Level       RiskLevel    `json:"level"`
	Blended     BlendedScore `json:"blended"`
	Geo         GeoContext   `json:"geo"`
	Anomalies   AnomalyFlags `json:"anomalies"`
	LocalModel  EstimatorResult `json:"localModel"`
	GlobalModel EstimatorResult `json:"globalModel"`

	// Confidence is a compound percentage: blended probability plus a
	// fixed increment per independent anomaly signal. It is deliberately
	// uncapped and may exceed 100 when signals compound.
	Confidence float64 `json:"confidence"`

	// Flags holds human-readable descriptions of every fired signal.
	Flags []string `json:"flags,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Processing metadata
	Metadata VerdictMetadata `json:"metadata"`
}

// VerdictMetadata contains processing information.
type VerdictMetadata struct {
	TraceID       string `json:"traceId"`
	EstimateMs    int64  `json:"estimateMs"`
	DetectMs      int64  `json:"detectMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// ScoreResponse is the API response for a scoring call.
type ScoreResponse struct {
	VerdictID   string          `json:"verdictId"`
	TxID        string          `json:"txId"`
	Level       RiskLevel       `json:"level"`
	Probability float64         `json:"probability"`
	Confidence  float64         `json:"confidence"`
	Flags       []string        `json:"flags,omitempty"`
	AlertID     string          `json:"alertId,omitempty"`
	Metadata    VerdictMetadata `json:"metadata"`
}

// ToResponse converts a verdict to its API form.
func (v *RiskVerdict) ToResponse(alertID string) *ScoreResponse {
	return &ScoreResponse{
		VerdictID:   v.ID,
		TxID:        v.TxID,
		Level:       v.Level,
		Probability: v.Blended.Probability,
		Confidence:  v.Confidence,
		Flags:       v.Flags,
		AlertID:     alertID,
		Metadata:    v.Metadata,
	}
}
