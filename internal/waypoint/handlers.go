package waypoint

import (
	"strconv"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes the page source as the REST waypoint list consumed by
// remote.Client.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		q, err := QueryFromRequest(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		page, err := svc.QueryWaypoints(c.Context(), q)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if page == nil {
			page = []Raw{}
		}
		return c.JSON(fiber.Map{"data": page})
	})
}

// QueryFromRequest reads north/south/east/west, user_id, q and limit. Bounds
// are only applied when all four edges are present.
func QueryFromRequest(c *fiber.Ctx) (Query, error) {
	q := Query{
		UserID: c.Query("user_id"),
		Search: c.Query("q"),
		Limit:  c.QueryInt("limit", 0),
	}
	edges := []string{"north", "south", "east", "west"}
	values := make([]float64, len(edges))
	present := 0
	for i, name := range edges {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Query{}, fiber.NewError(fiber.StatusBadRequest, name+" must be a number")
		}
		values[i] = v
		present++
	}
	if present == len(edges) {
		b := geo.Bounds{North: values[0], South: values[1], East: values[2], West: values[3]}
		if !b.Valid() {
			return Query{}, fiber.NewError(fiber.StatusBadRequest, "north must be >= south")
		}
		q.Bounds = &b
	}
	return q, nil
}
