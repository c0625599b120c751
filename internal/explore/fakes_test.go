package explore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/geocode"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/trip"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

var errUpstream = errors.New("upstream unavailable")

type fakeSource struct {
	mu sync.Mutex

	queryWaypoints func(ctx context.Context, q waypoint.Query) ([]waypoint.Raw, error)
	getTrip        func(ctx context.Context, id string) (trip.Trip, error)
	getPost        func(ctx context.Context, id string) (social.Post, error)
	toggleBookmark func(ctx context.Context, userID, postID string) (bool, error)
	toggleFollow   func(ctx context.Context, followerID, followingID string) (bool, error)
	search         func(ctx context.Context, q string, limit int) ([]geocode.Suggestion, error)

	queries []waypoint.Query
}

func (f *fakeSource) QueryWaypoints(ctx context.Context, q waypoint.Query) ([]waypoint.Raw, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.queryWaypoints
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, q)
}

func (f *fakeSource) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeSource) lastQuery() waypoint.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeSource) GetTrip(ctx context.Context, id string) (trip.Trip, error) {
	if f.getTrip == nil {
		return trip.Trip{}, errUpstream
	}
	return f.getTrip(ctx, id)
}

func (f *fakeSource) GetPost(ctx context.Context, id string) (social.Post, error) {
	if f.getPost == nil {
		return social.Post{}, errUpstream
	}
	return f.getPost(ctx, id)
}

func (f *fakeSource) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	return f.toggleBookmark(ctx, userID, postID)
}

func (f *fakeSource) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return f.toggleFollow(ctx, followerID, followingID)
}

func (f *fakeSource) Search(ctx context.Context, q string, limit int) ([]geocode.Suggestion, error) {
	return f.search(ctx, q, limit)
}

func (f *fakeSource) sources() Sources {
	return Sources{Pages: f, Trips: f, Posts: f, Mutations: f, Suggestions: f}
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func rawPost(id string, lat, lon float64) waypoint.Raw {
	return waypoint.Raw{"lat": lat, "lon": lon, "post": map[string]any{"id": id, "title": "entry " + id}}
}

func newTestView(f *fakeSource, clk *clock) *View {
	return NewView("view-1", "user-1", f.sources(), Options{
		CenteringGuard:  1500 * time.Millisecond,
		SuggestDebounce: 20 * time.Millisecond,
		Now:             clk.Now,
	})
}

func identities(recs []waypoint.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Identity)
	}
	return out
}
