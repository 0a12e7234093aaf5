package domain

import (
	"math"
	"time"
)

// DefaultProfileWindow is the maximum number of recent transactions a
// user profile retains. Eviction is FIFO by count, not by time.
const DefaultProfileWindow = 50

// ProfileSample is one observed transaction in a user's rolling window.
type ProfileSample struct {
	Amount    float64    `json:"amount"`
	Merchant  Coordinate `json:"merchant"`
	Timestamp time.Time  `json:"timestamp"`
}

// UserProfile holds the bounded rolling statistics window for one user.
// It is owned per user and versioned: Observe returns a new value rather
// than mutating, so a caller can score against a stable snapshot and
// persist the update separately.
type UserProfile struct {
	UserID    string          `json:"userId"`
	Window    []ProfileSample `json:"window"`
	MaxWindow int             `json:"maxWindow"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewUserProfile creates an empty profile with the default window size.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:    userID,
		MaxWindow: DefaultProfileWindow,
	}
}

// Observe returns a copy of the profile with the transaction appended,
// evicting the oldest sample when the window is full.
func (p *UserProfile) Observe(tx *Transaction) *UserProfile {
	maxWindow := p.MaxWindow
	if maxWindow <= 0 {
		maxWindow = DefaultProfileWindow
	}

	window := make([]ProfileSample, 0, len(p.Window)+1)
	window = append(window, p.Window...)
	window = append(window, ProfileSample{
		Amount:    tx.Amount,
		Merchant:  tx.MerchantLocation,
		Timestamp: tx.Timestamp,
	})
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}

	return &UserProfile{
		UserID:    p.UserID,
		Window:    window,
		MaxWindow: maxWindow,
		Version:   p.Version + 1,
		UpdatedAt: tx.Timestamp,
	}
}

// Size returns the number of samples in the window.
func (p *UserProfile) Size() int {
	return len(p.Window)
}

// Mean returns the rolling mean of observed amounts.
func (p *UserProfile) Mean() float64 {
	if len(p.Window) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range p.Window {
		sum += s.Amount
	}
	return sum / float64(len(p.Window))
}

// StdDev returns the population standard deviation of observed amounts.
func (p *UserProfile) StdDev() float64 {
	n := len(p.Window)
	if n == 0 {
		return 0
	}
	mean := p.Mean()
	variance := 0.0
	for _, s := range p.Window {
		d := s.Amount - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n))
}

// Last returns the most recent sample, or nil for an empty window.
func (p *UserProfile) Last() *ProfileSample {
	if len(p.Window) == 0 {
		return nil
	}
	return &p.Window[len(p.Window)-1]
}

// CountSince returns how many samples fall at or after the cutoff.
func (p *UserProfile) CountSince(cutoff time.Time) int {
	n := 0
	for _, s := range p.Window {
		if !s.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}
