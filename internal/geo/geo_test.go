package geo

import (
	"math"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	colombo = domain.Coordinate{Lat: 6.9271, Lon: 79.8612}
	kandy   = domain.Coordinate{Lat: 7.2906, Lon: 80.6337}
	newYork = domain.Coordinate{Lat: 40.7128, Lon: -74.0060}
	dubai   = domain.Coordinate{Lat: 25.2048, Lon: 55.2708}
)

func TestRegionContains(t *testing.T) {
	tests := []struct {
		name  string
		coord domain.Coordinate
		want  bool
	}{
		{"Colombo", colombo, true},
		{"Kandy", kandy, true},
		{"NewYork", newYork, false},
		{"Dubai", dubai, false},
		{"SouthBoundary", domain.Coordinate{Lat: 5.5, Lon: 80.0}, true},
		{"NorthBoundary", domain.Coordinate{Lat: 10.0, Lon: 80.0}, true},
		{"JustOutsideWest", domain.Coordinate{Lat: 7.0, Lon: 78.9}, false},
		{"Unknown", domain.Coordinate{}, false},
		{"NaN", domain.Coordinate{Lat: math.NaN(), Lon: 80.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HomeRegion.Contains(tt.coord); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.coord, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	c := DefaultClassifier()

	t.Run("LocalTransaction", func(t *testing.T) {
		near := domain.Coordinate{Lat: colombo.Lat + 0.01, Lon: colombo.Lon + 0.01}
		ctx := c.Classify(colombo, near)
		if !ctx.UserInRegion || !ctx.MerchantInRegion {
			t.Fatal("expected both parties in region")
		}
		if !ctx.LocalTransaction {
			t.Errorf("expected local transaction, distance %.4f", ctx.DistanceDeg)
		}
	})

	t.Run("InRegionButDistant", func(t *testing.T) {
		// Colombo to Kandy is well beyond the proximity threshold.
		ctx := c.Classify(colombo, kandy)
		if !ctx.UserInRegion || !ctx.MerchantInRegion {
			t.Fatal("expected both parties in region")
		}
		if ctx.LocalTransaction {
			t.Error("expected non-local despite both in region")
		}
	})

	t.Run("CrossBorder", func(t *testing.T) {
		ctx := c.Classify(colombo, dubai)
		if !ctx.UserInRegion {
			t.Error("expected user in region")
		}
		if ctx.MerchantInRegion {
			t.Error("expected merchant outside region")
		}
		if ctx.LocalTransaction {
			t.Error("cross-border transaction cannot be local")
		}
	})

	t.Run("MissingCoordinates", func(t *testing.T) {
		ctx := c.Classify(domain.Coordinate{}, colombo)
		if ctx.UserInRegion {
			t.Error("missing user coordinate must classify as not in-region")
		}
		if ctx.LocalTransaction {
			t.Error("missing coordinate cannot produce a local transaction")
		}
	})
}

func TestDegreeDistance(t *testing.T) {
	d := DegreeDistance(domain.Coordinate{Lat: 1, Lon: 1}, domain.Coordinate{Lat: 4, Lon: 5})
	if math.Abs(d-5.0) > 1e-9 {
		t.Errorf("expected 5.0, got %f", d)
	}
}

func TestHaversineKm(t *testing.T) {
	// Colombo to Kandy is roughly 94 km.
	d := HaversineKm(colombo, kandy)
	if d < 85 || d > 105 {
		t.Errorf("Colombo-Kandy distance out of range: %.1f km", d)
	}

	if d := HaversineKm(colombo, colombo); d != 0 {
		t.Errorf("zero distance expected, got %f", d)
	}

	// Colombo to New York is roughly 14,800 km.
	d = HaversineKm(colombo, newYork)
	if d < 14000 || d > 15500 {
		t.Errorf("Colombo-NewYork distance out of range: %.0f km", d)
	}
}
