package httpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/weather-proxy/internal/store"
	"github.com/i474232898/weather-proxy/internal/weather"
)

var validate = validator.New()

// CacheStatus is the subset of the cache store the health endpoints need.
type CacheStatus interface {
	Backend(ctx context.Context) string
	Stats(ctx context.Context) store.Stats
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, cache CacheStatus) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-proxy",
			"cache":   cache.Backend(c.UserContext()),
		})
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(cache.Stats(c.UserContext()))
	})

	app.Get("/weather/:city", func(c *fiber.Ctx) error {
		var req weatherQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx := c.UserContext()
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			ctx = weather.WithRequestID(ctx, id)
		}

		resp, err := service.GetWeather(ctx, req.toQuery())
		if err != nil {
			return mapError(err)
		}

		if resp.Hit {
			c.Set("X-Cache", "HIT")
		} else {
			c.Set("X-Cache", "MISS")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(resp.Body)
	})
}

// mapError translates service errors into HTTP errors.
func mapError(err error) error {
	var upErr *weather.UpstreamError
	switch {
	case errors.Is(err, weather.ErrInvalidDate), errors.Is(err, weather.ErrInvalidQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, weather.ErrNotFound.Error())
	case errors.As(err, &upErr):
		if upErr.ClientError() {
			// Propagated verbatim: upstream status and body.
			return fiber.NewError(upErr.StatusCode, upErr.Detail)
		}
		return fiber.NewError(upErr.StatusCode, upErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusServiceUnavailable, "request canceled")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

// weatherQuery holds path and query parameters for the weather endpoint.
type weatherQuery struct {
	City string `validate:"required"`
	Date string `validate:"required"`
	Days int    `validate:"gte=1,lte=10"`
	Unit string `validate:"oneof=C F"`
	Agg  string `validate:"omitempty,oneof=daily rolling7"`
}

func (q *weatherQuery) bind(c *fiber.Ctx) error {
	city, err := url.PathUnescape(utils.CopyString(c.Params("city")))
	if err != nil {
		return errors.New("invalid city")
	}
	q.City = city
	q.Date = utils.CopyString(c.Query("date"))
	if q.Date == "" {
		return errors.New("date query parameter is required")
	}

	q.Days = 5
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("days must be an integer between 1 and 10")
		}
		q.Days = n
	}

	q.Unit = strings.ToUpper(c.Query("unit", "C"))
	q.Agg = utils.CopyString(c.Query("agg"))
	return nil
}

func (q weatherQuery) toQuery() weather.Query {
	unit, _ := weather.ParseUnit(q.Unit)
	return weather.Query{
		City: q.City,
		Date: q.Date,
		Days: q.Days,
		Unit: unit,
		Agg:  weather.AggMode(q.Agg),
	}
}
