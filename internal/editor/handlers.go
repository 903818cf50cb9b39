package editor

import (
	"errors"
	"strconv"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, reg *Registry) {
	r.Post("/sessions", func(c *fiber.Ctx) error {
		s := reg.Create()
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": s.ID})
	})

	r.Delete("/sessions/:id", func(c *fiber.Ctx) error {
		if !reg.Delete(c.Params("id")) {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/sessions/:id/state", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		return c.JSON(s.State())
	}))

	r.Post("/sessions/:id/new-course", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		s.StartNewCourse()
		return c.JSON(s.State())
	}))

	r.Post("/sessions/:id/deselect", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		s.DeselectCourse()
		return c.JSON(s.State())
	}))

	r.Post("/sessions/:id/buffer", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		var body struct {
			BufferM float64 `json:"buffer_m"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := s.SetBuffer(body.BufferM); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"buffer_m": body.BufferM})
	}))

	r.Post("/sessions/:id/pairs", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		var body struct {
			Start wire.LatLon `json:"start"`
			End   wire.LatLon `json:"end"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(s.AddPair(body.Start, body.End))
	}))

	r.Patch("/sessions/:id/gates/:gateID", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		var body struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := s.MoveGate(c.Params("gateID"), body.Lat, body.Lon); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	r.Post("/sessions/:id/pairs/:pairID/checkpoints", withPair(reg, func(c *fiber.Ctx, s *Session, pairID int) error {
		var body wire.LatLon
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := s.AddCheckpoint(pairID, body); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	r.Post("/sessions/:id/pairs/:pairID/edit", withPair(reg, func(c *fiber.Ctx, s *Session, pairID int) error {
		if err := s.StartEditing(pairID); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.State())
	}))

	r.Post("/sessions/:id/pairs/:pairID/confirm", withPair(reg, func(c *fiber.Ctx, s *Session, pairID int) error {
		var body struct {
			Name string `json:"name"`
		}
		_ = c.BodyParser(&body) // empty body confirms without a custom name
		if err := s.SaveAndConfirmPair(pairID, body.Name); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(s.State())
	}))

	r.Delete("/sessions/:id/pairs/:pairID", withPair(reg, func(c *fiber.Ctx, s *Session, pairID int) error {
		s.RemovePair(pairID)
		return c.SendStatus(fiber.StatusNoContent)
	}))

	r.Post("/sessions/:id/load-course/:courseID", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}
		if err := s.LoadCourse(c.Context(), courseID); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(s.State())
	}))

	r.Post("/sessions/:id/save-course", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			CreatedBy   string `json:"created_by"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		course, err := s.SaveCourse(c.Context(), body.Name, body.Description, body.CreatedBy)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(course)
	}))

	r.Post("/sessions/:id/tracks", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		var body wire.Track
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "track name required")
		}
		return c.Status(fiber.StatusCreated).JSON(s.AddTrack(body.Name, body.Points))
	}))

	r.Post("/sessions/:id/tracks/:trackID/toggle", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		if err := s.ToggleTrack(c.Params("trackID")); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	r.Delete("/sessions/:id/tracks/:trackID", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		if err := s.RemoveTrack(c.Params("trackID")); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	r.Get("/sessions/:id/courses", withSession(reg, func(c *fiber.Ctx, s *Session) error {
		started := s.RefreshCoursesGrid(c.Context())
		return c.JSON(fiber.Map{
			"refreshed": started,
			"courses":   s.CoursesGrid(),
		})
	}))
}

func withSession(reg *Registry, handler func(*fiber.Ctx, *Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := reg.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return handler(c, s)
	}
}

func withPair(reg *Registry, handler func(*fiber.Ctx, *Session, int) error) fiber.Handler {
	return withSession(reg, func(c *fiber.Ctx, s *Session) error {
		pairID, err := strconv.Atoi(c.Params("pairID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid pair id")
		}
		return handler(c, s, pairID)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrPairNotFound), errors.Is(err, ErrGateNotFound), errors.Is(err, ErrTrackNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrGateLocked):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
}
