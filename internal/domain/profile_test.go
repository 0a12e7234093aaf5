package domain

import (
	"math"
	"testing"
	"time"
)

func profileTx(amount float64, ts time.Time) *Transaction {
	return &Transaction{
		UserID:           "user-1",
		Amount:           amount,
		MerchantLocation: Coordinate{Lat: 6.9271, Lon: 79.8612},
		Timestamp:        ts,
	}
}

func TestUserProfileObserve(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AppendsAndVersions", func(t *testing.T) {
		p := NewUserProfile("user-1")
		if p.Size() != 0 || p.Version != 0 {
			t.Fatalf("fresh profile should be empty, got size=%d version=%d", p.Size(), p.Version)
		}

		p1 := p.Observe(profileTx(100, base))
		p2 := p1.Observe(profileTx(200, base.Add(time.Minute)))

		if p.Size() != 0 {
			t.Error("Observe mutated the original profile")
		}
		if p2.Size() != 2 {
			t.Errorf("expected 2 samples, got %d", p2.Size())
		}
		if p1.Version != 1 || p2.Version != 2 {
			t.Errorf("expected versions 1,2, got %d,%d", p1.Version, p2.Version)
		}
		if !p2.UpdatedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("UpdatedAt should track the last transaction, got %v", p2.UpdatedAt)
		}
	})

	t.Run("EvictsOldestAtCapacity", func(t *testing.T) {
		p := NewUserProfile("user-1")
		for i := 0; i < DefaultProfileWindow+10; i++ {
			p = p.Observe(profileTx(float64(i), base.Add(time.Duration(i)*time.Minute)))
		}

		if p.Size() != DefaultProfileWindow {
			t.Fatalf("window should cap at %d, got %d", DefaultProfileWindow, p.Size())
		}
		// The first 10 observations were evicted, so the oldest survivor is #10.
		if got := p.Window[0].Amount; got != 10 {
			t.Errorf("expected oldest surviving amount 10, got %v", got)
		}
		if last := p.Last(); last == nil || last.Amount != float64(DefaultProfileWindow+9) {
			t.Errorf("unexpected newest sample: %+v", last)
		}
		if p.Version != int64(DefaultProfileWindow+10) {
			t.Errorf("version should count every observation, got %d", p.Version)
		}
	})

	t.Run("CustomWindowSize", func(t *testing.T) {
		p := &UserProfile{UserID: "user-1", MaxWindow: 3}
		for i := 1; i <= 5; i++ {
			p = p.Observe(profileTx(float64(i), base.Add(time.Duration(i)*time.Minute)))
		}
		if p.Size() != 3 {
			t.Fatalf("expected window of 3, got %d", p.Size())
		}
		if p.Window[0].Amount != 3 || p.Window[2].Amount != 5 {
			t.Errorf("expected amounts [3 4 5], got %+v", p.Window)
		}
	})

	t.Run("ZeroMaxWindowDefaults", func(t *testing.T) {
		p := (&UserProfile{UserID: "user-1"}).Observe(profileTx(10, base))
		if p.MaxWindow != DefaultProfileWindow {
			t.Errorf("expected MaxWindow %d, got %d", DefaultProfileWindow, p.MaxWindow)
		}
	})
}

func TestUserProfileStats(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("EmptyProfile", func(t *testing.T) {
		p := NewUserProfile("user-1")
		if p.Mean() != 0 || p.StdDev() != 0 {
			t.Errorf("empty profile stats should be zero, got mean=%v stddev=%v", p.Mean(), p.StdDev())
		}
		if p.Last() != nil {
			t.Error("empty profile should have no last sample")
		}
	})

	t.Run("MeanAndStdDev", func(t *testing.T) {
		p := NewUserProfile("user-1")
		for i, amt := range []float64{40, 50, 60} {
			p = p.Observe(profileTx(amt, base.Add(time.Duration(i)*time.Minute)))
		}
		if got := p.Mean(); got != 50 {
			t.Errorf("expected mean 50, got %v", got)
		}
		// Population std dev of {40,50,60} is sqrt(200/3).
		want := math.Sqrt(200.0 / 3.0)
		if got := p.StdDev(); math.Abs(got-want) > 1e-9 {
			t.Errorf("expected stddev %v, got %v", want, got)
		}
	})

	t.Run("CountSince", func(t *testing.T) {
		p := NewUserProfile("user-1")
		for i := 0; i < 6; i++ {
			p = p.Observe(profileTx(25, base.Add(time.Duration(i)*time.Minute)))
		}
		if got := p.CountSince(base.Add(3 * time.Minute)); got != 3 {
			t.Errorf("expected 3 samples at or after cutoff, got %d", got)
		}
		if got := p.CountSince(base.Add(time.Hour)); got != 0 {
			t.Errorf("expected 0 samples after the window, got %d", got)
		}
	})
}
