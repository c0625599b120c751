package waypoint

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// coordinateShape is one place a server record may carry its coordinates.
// Shapes are tried in table order and the first usable pair wins.
type coordinateShape struct {
	scope string // nested object key, "" for top level
	lat   []string
	lon   []string
}

var (
	latAliases = []string{"lat", "latitude"}
	lonAliases = []string{"lon", "lng", "longitude"}

	coordinateShapes = []coordinateShape{
		{scope: "", lat: latAliases, lon: lonAliases},
		{scope: "waypoint", lat: latAliases, lon: lonAliases},
		{scope: "location", lat: latAliases, lon: lonAliases},
		{scope: "coordinates", lat: latAliases, lon: lonAliases},
	}
)

// identityPrecision is the number of decimals kept when a coordinate pair
// stands in for a missing post id.
const identityPrecision = 6

// Normalize turns a raw server record into a Record. It never fails: records
// without usable coordinates come back at (0,0) and are dropped later by
// Renderable.
func Normalize(raw Raw, fetchedAt time.Time) Record {
	rec := Record{FetchedAt: fetchedAt, Raw: raw}
	rec.Lat, rec.Lon = Coordinates(raw)
	rec.Post = postSummary(raw)
	rec.Date = firstTime(raw, "date", "createdAt", "created_at")
	if rec.Date.IsZero() {
		if wp := object(raw, "waypoint"); wp != nil {
			rec.Date = firstTime(wp, "date", "createdAt", "created_at")
		}
	}
	rec.TripID = firstString(raw, "tripId", "trip_id")
	if rec.TripID == "" {
		if p := object(raw, "post"); p != nil {
			rec.TripID = firstString(p, "tripId", "trip_id")
		}
	}
	rec.Identity = Identity(rec)
	return rec
}

// NormalizeAll normalizes a page in server order.
func NormalizeAll(raws []Raw, fetchedAt time.Time) []Record {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw, fetchedAt))
	}
	return out
}

// Coordinates walks coordinateShapes and returns the first pair that is
// present and not (0,0). It returns (0,0) when none is found.
func Coordinates(raw Raw) (float64, float64) {
	for _, shape := range coordinateShapes {
		src := map[string]any(raw)
		if shape.scope != "" {
			src = object(raw, shape.scope)
			if src == nil {
				continue
			}
		}
		lat, okLat := firstNumber(src, shape.lat...)
		lon, okLon := firstNumber(src, shape.lon...)
		if !okLat || !okLon {
			continue
		}
		if lat == 0 && lon == 0 {
			continue
		}
		return lat, lon
	}
	return 0, 0
}

// Identity is the post id when the record has one, else the rounded
// coordinate pair.
func Identity(rec Record) string {
	if rec.HasPost() {
		return rec.Post.ID
	}
	return formatCoord(rec.Lat) + "_" + formatCoord(rec.Lon)
}

func formatCoord(v float64) string {
	scale := math.Pow(10, identityPrecision)
	rounded := math.Round(v*scale) / scale
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', identityPrecision, 64)
}

func postSummary(raw Raw) *PostSummary {
	p := object(raw, "post")
	if p == nil {
		return nil
	}
	id := firstString(p, "id")
	if id == "" {
		return nil
	}
	summary := &PostSummary{
		ID:      id,
		Title:   firstString(p, "title"),
		Excerpt: firstString(p, "excerpt", "content"),
		Date:    firstTime(p, "date", "createdAt", "created_at"),
	}
	if author := object(p, "author"); author != nil {
		summary.Author = firstString(author, "username", "name")
	} else {
		summary.Author = firstString(p, "author", "username")
	}
	summary.LikesCount = firstCount(p, raw, "likesCount", "likes_count")
	summary.BookmarksCount = firstCount(p, raw, "bookmarksCount", "bookmarks_count")
	summary.Liked = firstBool(p, "liked", "isLiked")
	summary.Bookmarked = firstBool(p, "bookmarked", "isBookmarked")
	return summary
}

// firstCount prefers the post's own counter and falls back to the wrapper
// record, where list endpoints put engagement counts.
func firstCount(post, wrapper map[string]any, keys ...string) int {
	if v, ok := firstNumber(post, keys...); ok {
		return int(v)
	}
	if v, ok := firstNumber(wrapper, keys...); ok {
		return int(v)
	}
	return 0
}

func object(m map[string]any, key string) map[string]any {
	switch v := m[key].(type) {
	case map[string]any:
		return v
	case Raw:
		return v
	default:
		return nil
	}
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := number(m[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// number reads a numeric field. NaN and infinities are rejected whatever the
// encoding, so they never reach coordinates or identities.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int, int64:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

func firstTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case time.Time:
			if !v.IsZero() {
				return v
			}
		case *time.Time:
			if v != nil && !v.IsZero() {
				return *v
			}
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t
			}
		default:
			// numeric timestamps are unix milliseconds
			if ms, ok := number(v); ok && ms > 0 {
				return time.UnixMilli(int64(ms)).UTC()
			}
		}
	}
	return time.Time{}
}
