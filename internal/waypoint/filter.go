package waypoint

import "github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"

// Filter returns the renderable records inside bounds, in input order. A nil
// bounds keeps every renderable record. When selected is in the result it is
// moved to the front.
func Filter(records []Record, bounds *geo.Bounds, selected string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if !rec.Renderable() {
			continue
		}
		if bounds != nil && !bounds.Contains(rec.Lat, rec.Lon) {
			continue
		}
		out = append(out, rec)
	}
	return Promote(out, selected)
}

// Promote moves the record with the given identity to index 0, keeping the
// relative order of the rest. The slice is modified in place.
func Promote(records []Record, identity string) []Record {
	if identity == "" {
		return records
	}
	for i, rec := range records {
		if rec.Identity != identity {
			continue
		}
		if i > 0 {
			copy(records[1:i+1], records[0:i])
			records[0] = rec
		}
		break
	}
	return records
}

// Points returns the coordinates of the renderable records.
func Points(records []Record) []geo.Point {
	out := make([]geo.Point, 0, len(records))
	for _, rec := range records {
		if rec.Renderable() {
			out = append(out, rec.Point())
		}
	}
	return out
}

// PathKm is the length of the route through the renderable records, in the
// order given.
func PathKm(records []Record) float64 {
	points := Points(records)
	var km float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		km += geo.HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return km
}
