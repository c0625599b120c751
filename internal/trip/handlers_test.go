package trip

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestTripHandlersGet(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	expectTrip(mock, "trip-1")

	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), NewService(mock), func(c *fiber.Ctx) error { return c.Next() })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/trips/trip-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %v", err)
	}
	var trip Trip
	if err := json.NewDecoder(resp.Body).Decode(&trip); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trip.ID != "trip-1" || len(trip.Waypoints) != 2 {
		t.Fatalf("unexpected trip %+v", trip)
	}
}

func TestTripHandlersNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	mock.ExpectQuery(`FROM trips`).WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), NewService(mock), func(c *fiber.Ctx) error { return c.Next() })
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/trips/nope", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}

func TestTripHandlersQueryFailure(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	mock.ExpectQuery(`FROM trips`).WillReturnError(errTest)

	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), NewService(mock), func(c *fiber.Ctx) error { return c.Next() })
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/trips/trip-1", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

var errTest = errors.New("connection reset")
