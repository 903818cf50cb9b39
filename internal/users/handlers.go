package users

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:name/profile", func(c *fiber.Ctx) error {
		profile, err := svc.Profile(c.Context(), c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(profile)
	})

	r.Delete("/:name/leaderboard/:entryID", authMiddleware, func(c *fiber.Ctx) error {
		name, super, err := callerFor(c)
		if err != nil {
			return err
		}
		entryID, err := strconv.Atoi(c.Params("entryID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid entry id")
		}
		if err := svc.DeleteEntry(c.Context(), entryID, name, super); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:name/courses/:courseID", authMiddleware, func(c *fiber.Ctx) error {
		name, super, err := callerFor(c)
		if err != nil {
			return err
		}
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}
		if err := svc.DeleteCourse(c.Context(), courseID, name, super); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// callerFor checks that the authenticated rider either owns the :name
// path or is the super user.
func callerFor(c *fiber.Ctx) (string, bool, error) {
	caller, _ := c.Locals("username").(string)
	super, _ := c.Locals("is_super").(bool)
	if caller == "" {
		return "", false, fiber.NewError(fiber.StatusUnauthorized, "missing identity")
	}
	if caller != c.Params("name") && !super {
		return "", false, fiber.NewError(fiber.StatusForbidden, "not allowed")
	}
	return c.Params("name"), super, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
