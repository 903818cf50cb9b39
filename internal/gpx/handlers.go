package gpx

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/gofiber/fiber/v2"
)

const maxUploadBytes = 10 * 1024 * 1024

var allowedContentTypes = map[string]bool{
	"application/gpx+xml": true,
	"application/xml":     true,
	"text/xml":            true,
}

type segmentTimesRequest struct {
	Points  []wire.Point       `json:"points"`
	Gates   []wire.GatePayload `json:"gates"`
	BufferM float64            `json:"buffer_m"`
}

func RegisterRoutes(r fiber.Router) {
	r.Post("/upload-gpx", func(c *fiber.Ctx) error {
		header, err := c.FormFile("gpxfile")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "gpxfile is required")
		}

		name := strings.ToLower(header.Filename)
		if !strings.HasSuffix(name, ".gpx") && !allowedContentTypes[header.Header.Get("Content-Type")] {
			return fiber.NewError(fiber.StatusBadRequest, "Only GPX files are allowed")
		}
		if header.Size > maxUploadBytes {
			return fiber.NewError(fiber.StatusBadRequest, "File too large. Maximum size is 10MB.")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(bytes.TrimSpace(content)) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "File is empty")
		}
		if len(content) > maxUploadBytes {
			return fiber.NewError(fiber.StatusBadRequest, "File too large. Maximum size is 10MB.")
		}

		tracks, err := ParseTracks(bytes.NewReader(content))
		if err != nil {
			if errors.Is(err, errNoTracks) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusBadRequest, "Failed to process GPX file: "+err.Error())
		}
		return c.JSON(fiber.Map{"tracks": tracks})
	})

	r.Post("/segment-times", func(c *fiber.Ctx) error {
		var req segmentTimesRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.BufferM <= 0 {
			req.BufferM = 10
		}
		segments := []wire.SegmentResult{}
		if len(req.Gates) > 0 {
			segments = ComputeSegmentTimes(req.Points, req.Gates, req.BufferM)
		}
		return c.JSON(fiber.Map{"segments": segments})
	})
}
