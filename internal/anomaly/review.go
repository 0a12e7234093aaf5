package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/geo"
)

// Review thresholds for cross-transaction behavioral red flags.
const (
	rapidAttemptWindow    = 10 * time.Minute
	rapidAttemptCount     = 3
	cumulativeRiskLimit   = 2.0
	dispersionSpanDeg     = 5.0
	amountSpikeMultiplier = 10.0
	highVerdictLimit      = 2
)

// UserReview summarizes a user's recent behavior across transactions.
type UserReview struct {
	UserID       string    `json:"userId"`
	VerdictCount int       `json:"verdictCount"`
	HighCount    int       `json:"highCount"`
	MediumCount  int       `json:"mediumCount"`
	RiskSum      float64   `json:"riskSum"`
	Suspicious   bool      `json:"suspicious"`
	RedFlags     []string  `json:"redFlags,omitempty"`
	ReviewedAt   time.Time `json:"reviewedAt"`
}

// ReviewUser evaluates a user's recent verdicts and profile window for
// behavioral red flags that only show up across transactions. Any flag
// marks the user suspicious.
func ReviewUser(userID string, verdicts []*domain.RiskVerdict, profile *domain.UserProfile, now time.Time) *UserReview {
	review := &UserReview{UserID: userID, ReviewedAt: now}
	if profile == nil {
		profile = domain.NewUserProfile(userID)
	}

	for _, v := range verdicts {
		review.VerdictCount++
		review.RiskSum += v.Blended.Probability
		switch v.Level {
		case domain.RiskHigh:
			review.HighCount++
		case domain.RiskMedium:
			review.MediumCount++
		}
	}

	if n := countRecentVerdicts(verdicts, now.Add(-rapidAttemptWindow)); n >= rapidAttemptCount {
		review.RedFlags = append(review.RedFlags,
			fmt.Sprintf("%d scoring attempts within %s", n, rapidAttemptWindow))
	}
	if review.RiskSum > cumulativeRiskLimit {
		review.RedFlags = append(review.RedFlags,
			fmt.Sprintf("cumulative risk %.2f across recent transactions", review.RiskSum))
	}
	if span := coordinateSpan(profile); span > dispersionSpanDeg {
		review.RedFlags = append(review.RedFlags,
			fmt.Sprintf("merchant locations span %.1f degrees", span))
	}
	if flag, ratio := amountSpike(profile); flag {
		review.RedFlags = append(review.RedFlags,
			fmt.Sprintf("latest amount is %.0fx the user average", ratio))
	}
	if review.HighCount >= highVerdictLimit {
		review.RedFlags = append(review.RedFlags,
			fmt.Sprintf("%d HIGH risk verdicts in recent history", review.HighCount))
	}

	review.Suspicious = len(review.RedFlags) > 0
	return review
}

func countRecentVerdicts(verdicts []*domain.RiskVerdict, cutoff time.Time) int {
	n := 0
	for _, v := range verdicts {
		if !v.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

// coordinateSpan returns the largest degree distance between any two
// merchant coordinates in the window. Windows are small (≤50) so the
// quadratic scan is fine.
func coordinateSpan(profile *domain.UserProfile) float64 {
	span := 0.0
	for i, a := range profile.Window {
		if a.Merchant.IsZero() {
			continue
		}
		for _, b := range profile.Window[i+1:] {
			if b.Merchant.IsZero() {
				continue
			}
			if d := geo.DegreeDistance(a.Merchant, b.Merchant); d > span {
				span = d
			}
		}
	}
	return span
}

// amountSpike reports whether the latest amount is a large multiple of
// the average of the samples before it.
func amountSpike(profile *domain.UserProfile) (bool, float64) {
	n := profile.Size()
	if n < 2 {
		return false, 0
	}

	latest := profile.Window[n-1].Amount
	sum := 0.0
	for _, s := range profile.Window[:n-1] {
		sum += s.Amount
	}
	avg := sum / float64(n-1)
	if avg <= 0 {
		return false, 0
	}

	ratio := latest / avg
	return ratio > amountSpikeMultiplier && !math.IsInf(ratio, 0), ratio
}
