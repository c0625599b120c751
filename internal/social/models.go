package social

import (
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

const excerptRunes = 280

// Post is the full journal entry shown in the expanded drawer.
type Post struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Author         string      `json:"author"`
	Title          string      `json:"title"`
	Content        string      `json:"content"`
	Place          string      `json:"place,omitempty"`
	Lat            float64     `json:"lat"`
	Lon            float64     `json:"lon"`
	TripID         string      `json:"trip_id,omitempty"`
	Photos         []PostPhoto `json:"photos,omitempty"`
	LikesCount     int         `json:"likes_count"`
	BookmarksCount int         `json:"bookmarks_count"`
	CommentsCount  int         `json:"comments_count"`
	Liked          bool        `json:"liked"`
	Bookmarked     bool        `json:"bookmarked"`
	Date           time.Time   `json:"date"`
	// Preview is set when the post was built from already-known preview data
	// instead of a detail fetch.
	Preview bool `json:"preview,omitempty"`
}

type PostPhoto struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	URL       string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Follow struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

// Summary is the preview form stored on a waypoint record.
func (p Post) Summary() *waypoint.PostSummary {
	excerpt := p.Content
	if r := []rune(excerpt); len(r) > excerptRunes {
		excerpt = string(r[:excerptRunes])
	}
	return &waypoint.PostSummary{
		ID:             p.ID,
		Title:          p.Title,
		Excerpt:        excerpt,
		Author:         p.Author,
		Date:           p.Date,
		LikesCount:     p.LikesCount,
		BookmarksCount: p.BookmarksCount,
		Liked:          p.Liked,
		Bookmarked:     p.Bookmarked,
	}
}

// PostFromRecord builds the detail view from what the waypoint record already
// holds. It is the fallback when a detail fetch fails.
func PostFromRecord(rec waypoint.Record) Post {
	p := Post{
		Lat:     rec.Lat,
		Lon:     rec.Lon,
		TripID:  rec.TripID,
		Date:    rec.EffectiveDate(),
		Preview: true,
	}
	if s := rec.Post; s != nil {
		p.ID = s.ID
		p.Author = s.Author
		p.Title = s.Title
		p.Content = s.Excerpt
		p.LikesCount = s.LikesCount
		p.BookmarksCount = s.BookmarksCount
		p.Liked = s.Liked
		p.Bookmarked = s.Bookmarked
	}
	return p
}
