// Package anomaly implements the statistical anomaly detector: per-user
// rolling profiles checked for amount outliers, impossible travel, and
// burst activity.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/geo"
)

// DetectorConfig holds the detection thresholds. Every value is
// injectable so tests can tighten or relax a single signal.
type DetectorConfig struct {
	// ZScoreThreshold flags an amount when |Z| exceeds it.
	ZScoreThreshold float64

	// MinSamples is the minimum prior window size before the Z-score
	// signal is considered meaningful.
	MinSamples int

	// MaxSpeedKmh flags consecutive merchant locations whose implied
	// travel speed exceeds it.
	MaxSpeedKmh float64

	// BurstWindow and BurstThreshold flag more than BurstThreshold
	// transactions inside the trailing window.
	BurstWindow    time.Duration
	BurstThreshold int
}

// DefaultDetectorConfig returns the production thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ZScoreThreshold: 3.0,
		MinSamples:      3,
		MaxSpeedKmh:     900.0,
		BurstWindow:     5 * time.Minute,
		BurstThreshold:  5,
	}
}

// BurstCounter reports a live transaction count for a user inside a
// trailing window, typically backed by cache counters. It supplements
// the profile window when scoring traffic outpaces profile persistence.
type BurstCounter func(ctx context.Context, tenantID, userID string, window time.Duration) (int64, error)

// Detector evaluates a transaction against a user's rolling profile.
type Detector struct {
	cfg     DetectorConfig
	counter BurstCounter
	logger  *slog.Logger
}

// NewDetector creates a detector. counter may be nil, in which case the
// burst signal relies on the profile window alone.
func NewDetector(cfg DetectorConfig, counter BurstCounter, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, counter: counter, logger: logger}
}

// Detect computes the anomaly flags for a transaction given the user's
// profile as it stood BEFORE this transaction. It never fails: signals
// that cannot be computed (empty profile, zero variance, zero elapsed
// time, counter errors) degrade to false.
func (d *Detector) Detect(ctx context.Context, tx *domain.Transaction, profile *domain.UserProfile) domain.AnomalyFlags {
	var flags domain.AnomalyFlags
	if profile == nil {
		profile = domain.NewUserProfile(tx.UserID)
	}

	d.detectAmountOutlier(tx, profile, &flags)
	d.detectGeographicJump(tx, profile, &flags)
	d.detectBurst(ctx, tx, profile, &flags)

	return flags
}

// detectAmountOutlier flags amounts more than the Z threshold away from
// the user's rolling mean. A window below MinSamples or with zero
// standard deviation yields no signal.
func (d *Detector) detectAmountOutlier(tx *domain.Transaction, profile *domain.UserProfile, flags *domain.AnomalyFlags) {
	if profile.Size() < d.cfg.MinSamples {
		return
	}

	stddev := profile.StdDev()
	if stddev == 0 {
		return
	}

	z := (tx.Amount - profile.Mean()) / stddev
	flags.AmountZScore = z
	flags.AmountOutlier = math.Abs(z) > d.cfg.ZScoreThreshold
}

// detectGeographicJump flags merchant-to-merchant travel faster than
// MaxSpeedKmh between the previous sample and this transaction.
func (d *Detector) detectGeographicJump(tx *domain.Transaction, profile *domain.UserProfile, flags *domain.AnomalyFlags) {
	last := profile.Last()
	if last == nil {
		return
	}
	if last.Merchant.IsZero() || tx.MerchantLocation.IsZero() {
		return
	}

	elapsed := tx.Timestamp.Sub(last.Timestamp)
	if elapsed <= 0 {
		return
	}

	distanceKm := geo.HaversineKm(last.Merchant, tx.MerchantLocation)
	speed := distanceKm / elapsed.Hours()
	flags.ImpliedSpeed = speed
	flags.GeographicJump = speed > d.cfg.MaxSpeedKmh
}

// detectBurst flags more than BurstThreshold transactions in the
// trailing window. The count is the larger of the profile window count
// and the live cache counter, so rapid-fire traffic is caught even when
// profile writes lag.
func (d *Detector) detectBurst(ctx context.Context, tx *domain.Transaction, profile *domain.UserProfile, flags *domain.AnomalyFlags) {
	cutoff := tx.Timestamp.Add(-d.cfg.BurstWindow)
	count := profile.CountSince(cutoff) + 1 // include this transaction

	if d.counter != nil {
		live, err := d.counter(ctx, tx.TenantID, tx.UserID, d.cfg.BurstWindow)
		if err != nil {
			d.logger.Warn("burst counter unavailable, using profile window only",
				"user_id", tx.UserID, "error", err)
		} else if int(live) > count {
			count = int(live)
		}
	}

	flags.BurstCount = count
	flags.BurstPattern = count > d.cfg.BurstThreshold
}

// Describe renders human-readable descriptions for the fired flags, in
// a stable order.
func Describe(flags domain.AnomalyFlags) []string {
	var out []string
	if flags.AmountOutlier {
		out = append(out, fmt.Sprintf("amount deviates %.1f standard deviations from user baseline", math.Abs(flags.AmountZScore)))
	}
	if flags.GeographicJump {
		out = append(out, fmt.Sprintf("implied travel speed %.0f km/h exceeds plausible maximum", flags.ImpliedSpeed))
	}
	if flags.BurstPattern {
		out = append(out, fmt.Sprintf("%d transactions inside burst window", flags.BurstCount))
	}
	return out
}
