package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/db"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

var ErrNotFound = errors.New("trip not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// GetTrip loads a trip and its waypoints. Waypoint posts carry only their id
// and date; callers enrich them with a post fetch.
func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, COALESCE(description, ''), start_date, end_date, created_by, created_at
		FROM trips WHERE id=$1
	`, id)
	var trip Trip
	var start, end *time.Time
	if err := row.Scan(&trip.ID, &trip.Title, &trip.Description, &start, &end, &trip.AuthorID, &trip.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trip{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Trip{}, err
	}
	if start != nil {
		trip.StartDate = *start
	}
	if end != nil {
		trip.EndDate = *end
	}

	waypoints, err := s.waypoints(ctx, id)
	if err != nil {
		return Trip{}, fmt.Errorf("trip %s waypoints: %w", id, err)
	}
	trip.Waypoints = waypoints
	return trip, nil
}

func (s *Service) waypoints(ctx context.Context, tripID string) ([]waypoint.Raw, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.id, ST_Y(w.location::geometry), ST_X(w.location::geometry), w.created_at,
		       COALESCE(p.id::text, ''), COALESCE(p.title, '')
		FROM waypoints w
		LEFT JOIN posts p ON p.waypoint_id = w.id
		WHERE w.trip_id=$1
		ORDER BY w.created_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	waypoints := []waypoint.Raw{}
	for rows.Next() {
		var (
			id, postID, title string
			lat, lon          float64
			date              time.Time
		)
		if err := rows.Scan(&id, &lat, &lon, &date, &postID, &title); err != nil {
			return nil, err
		}
		raw := waypoint.Raw{
			"id":       id,
			"waypoint": waypoint.Raw{"lat": lat, "lon": lon, "date": date},
			"tripId":   tripID,
		}
		if postID != "" {
			raw["post"] = waypoint.Raw{"id": postID, "title": title}
		}
		waypoints = append(waypoints, raw)
	}
	return waypoints, rows.Err()
}
