package social

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes post detail and the bookmark/follow mutations as
// the REST endpoints consumed by remote.Client.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/posts/:id", authMiddleware, func(c *fiber.Ctx) error {
		ctx := WithViewer(c.Context(), userID(c))
		post, err := svc.GetPost(ctx, c.Params("id"))
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(post)
	})

	r.Post("/posts/:id/bookmark", authMiddleware, func(c *fiber.Ctx) error {
		uid := userID(c)
		if uid == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		bookmarked, err := svc.ToggleBookmark(c.Context(), uid, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"bookmarked": bookmarked})
	})

	r.Post("/users/:id/follow", authMiddleware, func(c *fiber.Ctx) error {
		uid := userID(c)
		if uid == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		if uid == c.Params("id") {
			return fiber.NewError(fiber.StatusBadRequest, "cannot follow yourself")
		}
		following, err := svc.ToggleFollow(c.Context(), uid, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"following": following})
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
