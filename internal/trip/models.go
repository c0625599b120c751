package trip

import (
	"time"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

// Trip is a journey with its waypoints in the server's raw shape.
type Trip struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
	AuthorID    string         `json:"author_id"`
	Waypoints   []waypoint.Raw `json:"waypoints"`
	CreatedAt   time.Time      `json:"created_at"`
}
