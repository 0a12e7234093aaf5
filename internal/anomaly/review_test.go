package anomaly

import (
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func verdictAt(ts time.Time, level domain.RiskLevel, prob float64) *domain.RiskVerdict {
	return &domain.RiskVerdict{
		Level:     level,
		Blended:   domain.BlendedScore{Probability: prob},
		Timestamp: ts,
	}
}

func TestReviewUserCleanHistory(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	verdicts := []*domain.RiskVerdict{
		verdictAt(now.Add(-2*time.Hour), domain.RiskLow, 0.02),
		verdictAt(now.Add(-1*time.Hour), domain.RiskLow, 0.05),
	}
	profile := profileWith("u1", steadySamples(5, 100, now.Add(-5*time.Hour), time.Hour))

	review := ReviewUser("u1", verdicts, profile, now)
	if review.Suspicious {
		t.Errorf("clean history should not be suspicious, flags=%v", review.RedFlags)
	}
	if review.VerdictCount != 2 || review.HighCount != 0 {
		t.Errorf("counts = %d/%d, want 2/0", review.VerdictCount, review.HighCount)
	}
}

func TestReviewUserRedFlags(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RapidAttempts", func(t *testing.T) {
		verdicts := []*domain.RiskVerdict{
			verdictAt(now.Add(-8*time.Minute), domain.RiskLow, 0.01),
			verdictAt(now.Add(-5*time.Minute), domain.RiskLow, 0.01),
			verdictAt(now.Add(-1*time.Minute), domain.RiskLow, 0.01),
		}
		review := ReviewUser("u1", verdicts, nil, now)
		if !review.Suspicious {
			t.Fatal("3 attempts in 10 minutes should be suspicious")
		}
		if !hasFlagContaining(review, "attempts within") {
			t.Errorf("missing rapid-attempt flag, got %v", review.RedFlags)
		}
	})

	t.Run("CumulativeRisk", func(t *testing.T) {
		verdicts := []*domain.RiskVerdict{
			verdictAt(now.Add(-3*time.Hour), domain.RiskMedium, 0.45),
			verdictAt(now.Add(-2*time.Hour), domain.RiskMedium, 0.49),
			verdictAt(now.Add(-70*time.Minute), domain.RiskMedium, 0.48),
			verdictAt(now.Add(-40*time.Minute), domain.RiskMedium, 0.47),
			verdictAt(now.Add(-30*time.Minute), domain.RiskMedium, 0.46),
		}
		review := ReviewUser("u1", verdicts, nil, now)
		if !hasFlagContaining(review, "cumulative risk") {
			t.Errorf("risk sum %.2f should flag, got %v", review.RiskSum, review.RedFlags)
		}
	})

	t.Run("GeographicDispersion", func(t *testing.T) {
		profile := profileWith("u1", []domain.ProfileSample{
			{Amount: 50, Merchant: colombo, Timestamp: now.Add(-2 * time.Hour)},
			{Amount: 50, Merchant: newYork, Timestamp: now.Add(-1 * time.Hour)},
		})
		review := ReviewUser("u1", nil, profile, now)
		if !hasFlagContaining(review, "span") {
			t.Errorf("Colombo+New York window should flag dispersion, got %v", review.RedFlags)
		}
	})

	t.Run("AmountSpike", func(t *testing.T) {
		profile := profileWith("u1", []domain.ProfileSample{
			{Amount: 40, Timestamp: now.Add(-3 * time.Hour)},
			{Amount: 60, Timestamp: now.Add(-2 * time.Hour)},
			{Amount: 2000, Timestamp: now.Add(-1 * time.Hour)},
		})
		review := ReviewUser("u1", nil, profile, now)
		if !hasFlagContaining(review, "user average") {
			t.Errorf("2000 after 40/60 should flag a spike, got %v", review.RedFlags)
		}
	})

	t.Run("RepeatedHighVerdicts", func(t *testing.T) {
		verdicts := []*domain.RiskVerdict{
			verdictAt(now.Add(-3*time.Hour), domain.RiskHigh, 0.7),
			verdictAt(now.Add(-2*time.Hour), domain.RiskHigh, 0.8),
		}
		review := ReviewUser("u1", verdicts, nil, now)
		if !hasFlagContaining(review, "HIGH risk verdicts") {
			t.Errorf("2 HIGH verdicts should flag, got %v", review.RedFlags)
		}
	})
}

func hasFlagContaining(review *UserReview, substr string) bool {
	for _, f := range review.RedFlags {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}
