package strava

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newStravaApp(svc *Service) *fiber.App {
	app := fiber.New()
	passthrough := func(c *fiber.Ctx) error { return c.Next() }
	RegisterRoutes(app.Group("/strava"), svc, passthrough)
	return app
}

func TestAuthURLHandler(t *testing.T) {
	app := newStravaApp(NewService(nil, "client", "secret", ""))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/strava/auth-url?redirect_uri=http%3A%2F%2Flocalhost%2Fcb", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("auth-url status: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/strava/auth-url", nil))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without redirect_uri")
	}
}

func TestExchangeHandlerRequiresCode(t *testing.T) {
	app := newStravaApp(NewService(nil, "client", "secret", ""))

	req := httptest.NewRequest(http.MethodPost, "/strava/exchange", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without code")
	}
}

func TestActivitiesHandlerNotConnected(t *testing.T) {
	rc := newRedis(t)
	app := newStravaApp(NewService(rc, "client", "secret", "http://127.0.0.1:0"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/strava/activities?athlete_id=42", nil))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unconnected athlete, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/strava/activities", nil))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without athlete_id")
	}
}

func TestActivityPointsHandlerBadID(t *testing.T) {
	rc := newRedis(t)
	seedToken(t, rc, Token{AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour).Unix(), AthleteID: 42})
	app := newStravaApp(NewService(rc, "client", "secret", "http://127.0.0.1:0"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/strava/activities/abc/points?athlete_id=42", nil))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad activity id")
	}
}
