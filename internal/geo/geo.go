// Package geo classifies transaction coordinates against the designated
// local region and provides the distance math used by the anomaly detector.
package geo

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Region is a latitude/longitude bounding box.
type Region struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the coordinate falls inside the box.
// Unknown coordinates are conservatively outside.
func (r Region) Contains(c domain.Coordinate) bool {
	if c.IsZero() {
		return false
	}
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat &&
		c.Lon >= r.MinLon && c.Lon <= r.MaxLon
}

// HomeRegion is the designated local region: Sri Lanka's bounding box.
var HomeRegion = Region{
	MinLat: 5.5,
	MaxLat: 10.0,
	MinLon: 79.0,
	MaxLon: 82.0,
}

// LocalProximityDeg is the degree-distance threshold below which an
// in-region user/merchant pair counts as a local transaction (~11 km).
const LocalProximityDeg = 0.1

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371.0

// Classifier determines the geo context of a transaction. The region
// and proximity threshold are injectable so tests can substitute
// alternate policies; production uses DefaultClassifier.
type Classifier struct {
	Region       Region
	ProximityDeg float64
}

// DefaultClassifier returns a classifier for the home region.
func DefaultClassifier() *Classifier {
	return &Classifier{
		Region:       HomeRegion,
		ProximityDeg: LocalProximityDeg,
	}
}

// Classify computes the geo context for a user/merchant coordinate pair.
// Missing coordinates classify as not in-region; Classify never fails.
func (c *Classifier) Classify(user, merchant domain.Coordinate) domain.GeoContext {
	ctx := domain.GeoContext{
		UserInRegion:     c.Region.Contains(user),
		MerchantInRegion: c.Region.Contains(merchant),
	}

	if user.IsZero() || merchant.IsZero() {
		return ctx
	}

	ctx.DistanceDeg = DegreeDistance(user, merchant)
	ctx.LocalTransaction = ctx.UserInRegion && ctx.MerchantInRegion &&
		ctx.DistanceDeg < c.ProximityDeg

	return ctx
}

// DegreeDistance is the Euclidean distance in coordinate degrees.
// It is the proximity metric the local-transaction test uses; for
// physical distances use HaversineKm.
func DegreeDistance(a, b domain.Coordinate) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// HaversineKm is the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
