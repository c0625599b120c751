package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, staticToken("tok"))
}

func TestQueryWaypointsSendsBoundsAndToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/waypoints" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		q := r.URL.Query()
		if q.Get("north") != "10" || q.Get("west") != "-5.5" || q.Get("user_id") != "u1" || q.Get("limit") != "50" {
			t.Errorf("unexpected query %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"post": map[string]any{"id": "p1", "title": "Camp"}, "lat": 1.5, "lon": 2.5},
			{"waypoint": map[string]any{"latitude": 3.0, "longitude": 4.0}},
		}})
	})

	page, err := c.QueryWaypoints(context.Background(), waypoint.Query{
		Bounds: &geo.Bounds{North: 10, South: -10, East: 5, West: -5.5},
		UserID: "u1",
		Limit:  50,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 raws, got %d", len(page))
	}
	recs := waypoint.NormalizeAll(page, time.Now())
	if recs[0].Identity != "p1" || recs[1].Lat != 3 || recs[1].Lon != 4 {
		t.Fatalf("unexpected normalized records %+v", recs)
	}
}

func TestGetTripAndPost(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trips/t1":
			_, _ = w.Write([]byte(`{"id":"t1","title":"Alps","waypoints":[{"lat":46.1,"lon":7.2}]}`))
		case "/posts/p1":
			_, _ = w.Write([]byte(`{"id":"p1","title":"Day one","content":"long text","likes_count":3}`))
		default:
			http.NotFound(w, r)
		}
	})

	tr, err := c.GetTrip(context.Background(), "t1")
	if err != nil {
		t.Fatalf("trip: %v", err)
	}
	if tr.Title != "Alps" || len(tr.Waypoints) != 1 {
		t.Fatalf("unexpected trip %+v", tr)
	}

	p, err := c.GetPost(context.Background(), "p1")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if p.Content != "long text" || p.LikesCount != 3 {
		t.Fatalf("unexpected post %+v", p)
	}

	if _, err := c.GetPost(context.Background(), "missing"); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestMutations(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/posts/p1/bookmark":
			_, _ = w.Write([]byte(`{"bookmarked":true}`))
		case "/users/u2/follow":
			_, _ = w.Write([]byte(`{"following":false}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	ok, err := c.ToggleBookmark(context.Background(), "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("bookmark: %v %v", ok, err)
	}
	ok, err = c.ToggleFollow(context.Background(), "u1", "u2")
	if err != nil || ok {
		t.Fatalf("follow: %v %v", ok, err)
	}
	if _, err := c.ToggleFollow(context.Background(), "u1", "u3"); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.QueryWaypoints(ctx, waypoint.Query{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNoTokenSendsNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected auth header")
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, staticToken(""))
	if _, err := c.QueryWaypoints(context.Background(), waypoint.Query{}); err != nil {
		t.Fatalf("query: %v", err)
	}
}
