// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"math"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair.
// The zero value means "unknown location" and is treated conservatively
// (not in-region) by the geo classifier.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the coordinate carries no usable location.
func (c Coordinate) IsZero() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return true
	}
	return c.Lat == 0 && c.Lon == 0
}

// Transaction represents an incoming transaction to be scored.
// Immutable once scored; archival is the caller's concern.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Parties involved
	UserID     string `json:"userId"`
	MerchantID string `json:"merchantId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Merchant category code, e.g. "grocery_pos", "shopping_net"
	Category string `json:"category"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Locations (geocoded upstream; zero value = unknown)
	UserLocation     Coordinate `json:"userLocation"`
	MerchantLocation Coordinate `json:"merchantLocation"`

	// Raw feature payload handed to the feature adapter
	Features map[string]interface{} `json:"features,omitempty"`
}

// ScoreRequest is the API request payload for transaction scoring.
type ScoreRequest struct {
	UserID     string                 `json:"userId"`
	MerchantID string                 `json:"merchantId"`
	Amount     Amount                 `json:"amount"`
	Category   string                 `json:"category,omitempty"`
	User       Location               `json:"userLocation"`
	Merchant   Location               `json:"merchantLocation"`
	Features   map[string]interface{} `json:"features,omitempty"`
}

// Amount represents a monetary value.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Location is the request form of a coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *ScoreRequest) ToTransaction() *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		UserID:           r.UserID,
		MerchantID:       r.MerchantID,
		Amount:           r.Amount.Value,
		Currency:         r.Amount.Currency,
		Category:         r.Category,
		Timestamp:        now,
		CreatedAt:        now,
		UserLocation:     Coordinate{Lat: r.User.Lat, Lon: r.User.Lon},
		MerchantLocation: Coordinate{Lat: r.Merchant.Lat, Lon: r.Merchant.Lon},
		Features:         r.Features,
	}
}
