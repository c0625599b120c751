package waypoint

import (
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"
)

// Raw is a waypoint record as the server sent it. Field names vary between
// endpoints, see Normalize.
type Raw map[string]any

// PostSummary is the preview of the journal entry backing a waypoint.
type PostSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title,omitempty"`
	Excerpt        string    `json:"excerpt,omitempty"`
	Author         string    `json:"author,omitempty"`
	Date           time.Time `json:"date,omitempty"`
	LikesCount     int       `json:"likes_count"`
	BookmarksCount int       `json:"bookmarks_count"`
	Liked          bool      `json:"liked"`
	Bookmarked     bool      `json:"bookmarked"`
}

// Record is a normalized point of interest. Two records with the same
// Identity are the same entity.
type Record struct {
	Identity  string       `json:"identity"`
	Lat       float64      `json:"lat"`
	Lon       float64      `json:"lon"`
	Date      time.Time    `json:"date,omitempty"`
	FetchedAt time.Time    `json:"fetched_at,omitempty"`
	Post      *PostSummary `json:"post,omitempty"`
	TripID    string       `json:"trip_id,omitempty"`
	Raw       Raw          `json:"-"`
}

// Renderable is false for records whose coordinates were missing. A (0,0)
// coordinate is treated as missing.
func (r Record) Renderable() bool {
	return r.Lat != 0 || r.Lon != 0
}

func (r Record) HasPost() bool {
	return r.Post != nil && r.Post.ID != ""
}

func (r Record) Point() geo.Point {
	return geo.Point{Lat: r.Lat, Lon: r.Lon}
}

// EffectiveDate orders journey waypoints: post date, then waypoint date, then
// fetch time, then the unix epoch.
func (r Record) EffectiveDate() time.Time {
	switch {
	case r.Post != nil && !r.Post.Date.IsZero():
		return r.Post.Date
	case !r.Date.IsZero():
		return r.Date
	case !r.FetchedAt.IsZero():
		return r.FetchedAt
	default:
		return time.Unix(0, 0).UTC()
	}
}

// Query selects a page of waypoints. A nil Bounds means no viewport filter;
// a non-empty UserID scopes the page to that user's journal.
type Query struct {
	Bounds *geo.Bounds
	UserID string
	Search string
	Limit  int
}
