package explore

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/drawer"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/journey"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"
)

type openRequest struct {
	Search        string `json:"search"`
	JournalUserID string `json:"journal_user_id"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type journeyRequest struct {
	TripID string `json:"trip_id"`
}

type selectRequest struct {
	Identity string `json:"identity"`
	FromList bool   `json:"from_list"`
}

type closeRequest struct {
	Smooth bool `json:"smooth"`
}

type bookmarkRequest struct {
	Identity string `json:"identity"`
}

// centerRequest moves the map to a point, or to one of the current place
// suggestions when Suggestion is set.
type centerRequest struct {
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Zoom       float64  `json:"zoom"`
	Suggestion *int     `json:"suggestion"`
}

type followRequest struct {
	UserID string `json:"user_id"`
}

// RegisterRoutes mounts the view API. Every route needs a bearer token.
func RegisterRoutes(r fiber.Router, reg *Registry, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var req openRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid body")
			}
		}
		token, _ := c.Locals("access_token").(string)
		v, err := reg.Open(c.UserContext(), userID(c), token, Scope(req))
		if err != nil && v == nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": v.ID(), "snapshot": v.Snapshot()})
	})

	r.Get("/:id", withView(reg, func(c *fiber.Ctx, v *View) error {
		return c.JSON(v.Snapshot())
	}))

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := reg.Close(c.UserContext(), c.Params("id"), userID(c), c.QueryBool("logout")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Put("/:id/bounds", withView(reg, func(c *fiber.Ctx, v *View) error {
		var b geo.Bounds
		if err := c.BodyParser(&b); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		if err := v.SetBounds(c.UserContext(), b); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/reset", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req openRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid body")
			}
		}
		if err := v.ResetContext(c.UserContext(), Scope(req)); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Put("/:id/tab", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req tabRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		tab, err := journey.ParseTab(req.Tab)
		if err != nil {
			return httpError(err)
		}
		if err := v.SetTab(c.UserContext(), tab); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/journey", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req journeyRequest
		if err := c.BodyParser(&req); err != nil || req.TripID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "trip_id required")
		}
		if err := v.EnterJourney(c.UserContext(), req.TripID); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Delete("/:id/journey", withView(reg, func(c *fiber.Ctx, v *View) error {
		if err := v.ExitJourney(c.UserContext()); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/select", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil || req.Identity == "" {
			return fiber.NewError(fiber.StatusBadRequest, "identity required")
		}
		if err := v.Select(c.UserContext(), req.Identity, req.FromList); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/center", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req centerRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		var err error
		switch {
		case req.Suggestion != nil:
			err = v.CenterOnSuggestion(*req.Suggestion, req.Zoom)
		case req.Lat != nil && req.Lon != nil:
			err = v.CenterOn(*req.Lat, *req.Lon, req.Zoom)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon or suggestion required")
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/drawer/expand", withView(reg, func(c *fiber.Ctx, v *View) error {
		if err := v.Expand(c.UserContext()); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/drawer/collapse", withView(reg, func(c *fiber.Ctx, v *View) error {
		v.Collapse()
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/drawer/close", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req closeRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid body")
			}
		}
		v.CloseDrawer(req.Smooth)
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/drawer/gesture", withView(reg, func(c *fiber.Ctx, v *View) error {
		var g drawer.Gesture
		if err := c.BodyParser(&g); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		outcome, err := v.Gesture(c.UserContext(), g)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"outcome": outcome, "snapshot": v.Snapshot()})
	}))

	r.Post("/:id/bookmark", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req bookmarkRequest
		if err := c.BodyParser(&req); err != nil || req.Identity == "" {
			return fiber.NewError(fiber.StatusBadRequest, "identity required")
		}
		if err := v.ToggleBookmark(c.UserContext(), req.Identity); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Post("/:id/follow", withView(reg, func(c *fiber.Ctx, v *View) error {
		var req followRequest
		if err := c.BodyParser(&req); err != nil || req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}
		if req.UserID == v.UserID() {
			return fiber.NewError(fiber.StatusBadRequest, "cannot follow yourself")
		}
		if err := v.ToggleFollow(c.UserContext(), req.UserID); err != nil {
			return httpError(err)
		}
		return c.JSON(v.Snapshot())
	}))

	r.Delete("/:id/alerts/:alertID", withView(reg, func(c *fiber.Ctx, v *View) error {
		if !v.DismissAlert(c.Params("alertID")) {
			return fiber.NewError(fiber.StatusNotFound, "alert not found")
		}
		return c.JSON(v.Snapshot())
	}))

	r.Get("/:id/suggest", withView(reg, func(c *fiber.Ctx, v *View) error {
		// the query outlives the request in the debounce timer
		v.Suggest(utils.CopyString(c.Query("q")))
		return c.Status(fiber.StatusAccepted).JSON(v.Snapshot())
	}))
}

func withView(reg *Registry, fn func(*fiber.Ctx, *View) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := reg.Get(c.Params("id"), userID(c))
		if err != nil {
			return httpError(err)
		}
		return fn(c, v)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrViewNotFound), errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrSuggestionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidBounds), errors.Is(err, ErrInvalidCoordinates), errors.Is(err, journey.ErrUnknownTab):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, journey.ErrTabUnavailable), errors.Is(err, drawer.ErrNoSelection):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoPost):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
