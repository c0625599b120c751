package explore

import (
	"encoding/json"
	"slices"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/drawer"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/geocode"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/journey"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

const (
	ModeExplore = "explore"
	ModeJourney = "journey"
)

type JourneyInfo struct {
	Active bool   `json:"active"`
	TripID string `json:"trip_id,omitempty"`
	Title  string `json:"title,omitempty"`
	// DistanceKm is the great-circle length of the route in date order.
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// Snapshot is everything a renderer needs to draw the view. Records feeds
// both the map markers and the list; in journey mode it holds the journey's
// waypoints by date, otherwise the collection filtered by Bounds. The
// selected record is always first.
type Snapshot struct {
	ViewID      string               `json:"view_id"`
	Revision    uint64               `json:"revision"`
	Mode        string               `json:"mode"`
	Tab         journey.Tab          `json:"tab"`
	Scope       Scope                `json:"scope"`
	Bounds      *geo.Bounds          `json:"bounds,omitempty"`
	Selected    string               `json:"selected,omitempty"`
	Records     []waypoint.Record    `json:"records"`
	Collected   int                  `json:"collected"`
	Journey     JourneyInfo          `json:"journey"`
	Drawer      drawer.State         `json:"drawer"`
	Animation   []drawer.Stage       `json:"animation,omitempty"`
	Camera      *Camera              `json:"camera,omitempty"`
	Suggestions []geocode.Suggestion `json:"suggestions,omitempty"`
	Alerts      []Alert              `json:"alerts,omitempty"`
	Following   map[string]bool      `json:"following,omitempty"`
}

// Snapshot renders the current state. The result shares nothing mutable
// with the view.
func (v *View) Snapshot() Snapshot {
	js := v.journey.State()
	tab := v.journey.Tab()
	ds := v.drawer.State()

	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{
		ViewID:      v.id,
		Revision:    v.revision,
		Mode:        ModeExplore,
		Tab:         tab,
		Scope:       v.scope,
		Selected:    v.selected,
		Collected:   v.collection.Len(),
		Drawer:      ds,
		Animation:   slices.Clone(v.animation),
		Suggestions: slices.Clone(v.suggestions),
		Alerts:      slices.Clone(v.alerts),
	}
	if v.bounds != nil {
		b := *v.bounds
		snap.Bounds = &b
	}
	if v.camera != nil {
		c := *v.camera
		snap.Camera = &c
	}
	if len(v.following) > 0 {
		snap.Following = make(map[string]bool, len(v.following))
		for id, f := range v.following {
			snap.Following[id] = f
		}
	}

	if js.Active {
		snap.Mode = ModeJourney
		snap.Journey = JourneyInfo{
			Active:     true,
			TripID:     js.TripID,
			Title:      js.Title,
			DistanceKm: waypoint.PathKm(js.Waypoints),
		}
		snap.Records = waypoint.Filter(js.Waypoints, nil, v.selected)
	} else {
		snap.Records = waypoint.Filter(v.collection.Records(), v.bounds, v.selected)
	}
	return snap
}

func (v *View) SnapshotJSON() ([]byte, error) {
	return jsonSnapshot(v.Snapshot())
}

func jsonSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
