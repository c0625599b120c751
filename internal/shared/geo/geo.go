package geo

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is the geographic rectangle visible on the map. Longitudes are not
// wrapped at the antimeridian: a box with West > East contains nothing.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

func (b Bounds) Valid() bool {
	return b.North >= b.South
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	lats := r1.Interval{Lo: b.South, Hi: b.North}
	lons := r1.Interval{Lo: b.West, Hi: b.East}
	return lats.Contains(lat) && lons.Contains(lon)
}

func (b Bounds) Center() Point {
	return Point{Lat: (b.North + b.South) / 2, Lon: (b.East + b.West) / 2}
}

// BoundsOf returns the smallest box holding every point. ok is false for an
// empty input.
func BoundsOf(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	lats := r1.EmptyInterval()
	lons := r1.EmptyInterval()
	for _, p := range points {
		lats = lats.AddPoint(p.Lat)
		lons = lons.AddPoint(p.Lon)
	}
	return Bounds{North: lats.Hi, South: lats.Lo, East: lons.Hi, West: lons.Lo}, true
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * earthRadiusKm
}
