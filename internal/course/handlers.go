package course

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		if len(req.Gates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "at least one gate pair required")
		}
		for _, gate := range req.Gates {
			if gate.PairID <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "each gate needs a positive pairId")
			}
		}
		created, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		courses, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(courses)
	})

	r.Get("/summary", SummaryHandler(svc))

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}
		found, err := svc.Get(c.Context(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "course not found")
		}
		return c.JSON(found)
	})

	r.Delete("/:id", authMiddleware, deleteHandler(svc))
}

// SummaryHandler serves the aggregated course list. The server mounts it
// both under the course group and at the top-level /courses_summary path.
func SummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summaries, err := svc.Summary(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summaries)
	}
}

func deleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}
		if err := svc.Delete(c.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "course not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
