package strava

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/auth-url", func(c *fiber.Ctx) error {
		redirectURI := c.Query("redirect_uri")
		if redirectURI == "" {
			return fiber.NewError(fiber.StatusBadRequest, "redirect_uri required")
		}
		return c.JSON(fiber.Map{"auth_url": svc.AuthURL(redirectURI)})
	})

	r.Post("/exchange", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&body); err != nil || body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "code required")
		}
		token, err := svc.Exchange(c.Context(), body.Code)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"athlete_id": token.AthleteID})
	})

	r.Get("/activities", authMiddleware, func(c *fiber.Ctx) error {
		athleteID, err := athleteFromQuery(c)
		if err != nil {
			return err
		}
		page, _ := strconv.Atoi(c.Query("page"))
		perPage, _ := strconv.Atoi(c.Query("per_page"))

		activities, err := svc.Activities(c.Context(), athleteID, page, perPage)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(activities)
	})

	r.Get("/activities/:id/points", authMiddleware, func(c *fiber.Ctx) error {
		athleteID, err := athleteFromQuery(c)
		if err != nil {
			return err
		}
		activityID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid activity id")
		}

		track, err := svc.ActivityPoints(c.Context(), athleteID, activityID)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(track)
	})
}

func athleteFromQuery(c *fiber.Ctx) (int64, error) {
	athleteID, err := strconv.ParseInt(c.Query("athlete_id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "athlete_id required")
	}
	return athleteID, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotConnected):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
