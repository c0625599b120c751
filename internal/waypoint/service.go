package waypoint

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/db"
)

const defaultPageLimit = 200

// Service reads waypoint pages straight from the journal database.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// QueryWaypoints returns one page shaped like the REST API's waypoint list,
// so both sources feed the same Normalize path.
func (s *Service) QueryWaypoints(ctx context.Context, q Query) ([]Raw, error) {
	sql, args := buildPageQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []Raw
	for rows.Next() {
		var (
			id, tripID, postID, title, content, author string
			lat, lon                                   float64
			date, postDate                             time.Time
			likes, bookmarks                           int
		)
		if err := rows.Scan(&id, &lat, &lon, &date, &tripID, &postID, &title, &content, &author, &postDate, &likes, &bookmarks); err != nil {
			return nil, err
		}
		raw := Raw{"id": id, "lat": lat, "lon": lon, "date": date}
		if tripID != "" {
			raw["tripId"] = tripID
		}
		if postID != "" {
			post := Raw{
				"id":             postID,
				"title":          title,
				"content":        content,
				"author":         author,
				"likesCount":     likes,
				"bookmarksCount": bookmarks,
			}
			post["date"] = postDate
			raw["post"] = post
		}
		page = append(page, raw)
	}
	return page, rows.Err()
}

func buildPageQuery(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.Bounds != nil {
		b := q.Bounds
		where = append(where, "ST_Intersects(w.location::geometry, ST_MakeEnvelope("+
			arg(b.West)+","+arg(b.South)+","+arg(b.East)+","+arg(b.North)+", 4326))")
	}
	if q.UserID != "" {
		where = append(where, "w.created_by = "+arg(q.UserID))
	}
	if q.Search != "" {
		where = append(where, "p.title ILIKE '%' || "+arg(q.Search)+" || '%'")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	var b strings.Builder
	b.WriteString(`
		SELECT w.id, ST_Y(w.location::geometry), ST_X(w.location::geometry), w.created_at,
		       COALESCE(w.trip_id::text, ''), COALESCE(p.id::text, ''), COALESCE(p.title, ''),
		       COALESCE(p.content, ''), COALESCE(u.username, ''), COALESCE(p.created_at, w.created_at),
		       COALESCE(p.likes_count, 0), COALESCE(p.bookmarks_count, 0)
		FROM waypoints w
		LEFT JOIN posts p ON p.waypoint_id = w.id
		LEFT JOIN users u ON u.id = p.user_id`)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY w.created_at DESC\n\t\tLIMIT " + arg(limit))
	return b.String(), args
}
