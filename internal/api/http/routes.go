package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. Handlers only
// read from the cache; they never trigger upstream fetches.
func RegisterRoutes(app *fiber.App, service *wind.Service) {
	app.Get("/data", func(c *fiber.Ctx) error {
		at, err := parseTimestampQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rc, artifact, err := service.QueryNearest(at)
		if err != nil {
			if errors.Is(err, wind.ErrNotAvailable) {
				return fiber.NewError(fiber.StatusNotFound, "no cycle data for requested instant")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle data")
		}

		return c.JSON(fiber.Map{
			"data":      json.RawMessage(artifact),
			"timestamp": rc.Cycle.Stamp(),
		})
	})

	app.Get("/timestamp", func(c *fiber.Ctx) error {
		at, err := parseTimestampQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rc, err := service.QueryTimestamp(at)
		if err != nil {
			if errors.Is(err, wind.ErrNotAvailable) {
				return fiber.NewError(fiber.StatusNotFound, "no cycle data for requested instant")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to resolve cycle")
		}

		return c.JSON(fiber.Map{
			"timestamp": rc.Cycle.Stamp(),
		})
	})

	app.Get("/latest", func(c *fiber.Ctx) error {
		cycle, artifact, err := service.Latest()
		if err != nil {
			if errors.Is(err, wind.ErrNotAvailable) {
				return fiber.NewError(fiber.StatusNotFound, "no cycle data cached yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle data")
		}

		return c.JSON(fiber.Map{
			"data":      json.RawMessage(artifact),
			"timestamp": cycle.Stamp(),
		})
	})
}

// timestampQuery holds the single query parameter shared by the data and
// timestamp endpoints.
type timestampQuery struct {
	ISOTimestamp string `validate:"required"`
}

func parseTimestampQuery(c *fiber.Ctx) (time.Time, error) {
	var q timestampQuery
	q.ISOTimestamp = c.Query("isoTimestamp")

	if err := validate.Struct(q); err != nil {
		return time.Time{}, err
	}

	at, err := time.Parse(time.RFC3339, q.ISOTimestamp)
	if err != nil {
		return time.Time{}, errors.New("invalid isoTimestamp; use an RFC3339 instant")
	}
	return at, nil
}
