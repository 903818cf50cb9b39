package leaderboard

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Evan-Ewald-Richardson/TREES/internal/gpx"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/gofiber/fiber/v2"
)

const maxUploadBytes = 10 << 20

// SubmitRequest is the JSON submission body: a run as raw track points.
type SubmitRequest struct {
	Username string       `json:"username"`
	Points   []wire.Point `json:"points"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:courseID/submit", authMiddleware, func(c *fiber.Ctx) error {
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}

		var req SubmitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if strings.TrimSpace(req.Username) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username required")
		}
		if len(req.Points) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "points required")
		}

		result, err := svc.Submit(c.Context(), courseID, req.Username, req.Points)
		if err != nil {
			return toHTTPError(err)
		}
		status := fiber.StatusOK
		if result.Improved {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(result)
	})

	// GPX-file variant: the server parses the file and submits every point.
	r.Post("/:courseID", authMiddleware, func(c *fiber.Ctx) error {
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}

		username := strings.TrimSpace(c.FormValue("username"))
		if username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username required")
		}

		header, err := c.FormFile("gpxfile")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "gpxfile required")
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".gpx") {
			return fiber.NewError(fiber.StatusBadRequest, "only .gpx files are accepted")
		}
		if header.Size > maxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "gpx file too large")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer file.Close()

		tracks, err := gpx.ParseTracks(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var points []wire.Point
		for _, track := range tracks {
			points = append(points, track.Points...)
		}

		result, err := svc.Submit(c.Context(), courseID, username, points)
		if err != nil {
			return toHTTPError(err)
		}
		status := fiber.StatusOK
		if result.Improved {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(result)
	})

	r.Get("/:courseID", func(c *fiber.Ctx) error {
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid course id")
		}
		board, err := svc.Board(c.Context(), courseID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(board)
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrCourseNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoGates), errors.Is(err, ErrIncompleteRun):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
