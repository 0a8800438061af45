package dashboard

import (
	"errors"

	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	home := func(c *fiber.Ctx) error {
		return ok(c, MsgConnected)
	}
	r.Get("/", home)
	r.Post("/", home)

	api := r.Group("/api")

	api.Get("/vehicles", func(c *fiber.Ctx) error {
		ids, err := svc.Vehicles(c.UserContext())
		if err != nil {
			return storeError(c, err)
		}
		return ok(c, ids)
	})

	api.Get("/fields", func(c *fiber.Ctx) error {
		return ok(c, telemetry.FieldLabels())
	})

	api.Post("/daily-distance", func(c *fiber.Ctx) error {
		q, err := parseQuery(c)
		if err != nil {
			return respondErr(c, err)
		}
		img, err := svc.DailyDistancePlot(c.UserContext(), q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, img)
	})

	api.Post("/average-speed-distance", func(c *fiber.Ctx) error {
		q, err := parseQuery(c)
		if err != nil {
			return respondErr(c, err)
		}
		img, err := svc.AverageSpeedDistancePlot(c.UserContext(), q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, img)
	})

	api.Post("/daily-distance/table", func(c *fiber.Ctx) error {
		q, err := parseQuery(c)
		if err != nil {
			return respondErr(c, err)
		}
		rows, err := svc.DailyDistanceTable(c.UserContext(), q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, rows)
	})

	api.Post("/average-speed-distance/table", func(c *fiber.Ctx) error {
		q, err := parseQuery(c)
		if err != nil {
			return respondErr(c, err)
		}
		rows, err := svc.DailyAverageTable(c.UserContext(), q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, rows)
	})

	api.Post("/speed-over-time", func(c *fiber.Ctx) error {
		q, err := parseQuery(c)
		if err != nil {
			return respondErr(c, err)
		}
		q.Field = telemetry.FieldVehicleSpeed
		img, err := svc.FieldPlot(c.UserContext(), KindTimeSeries, q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, img)
	})

	api.Post("/time-series", fieldPlot(svc, KindTimeSeries))
	api.Post("/distribution", fieldPlot(svc, KindDistribution))
	api.Post("/box-plot", fieldPlot(svc, KindBoxPlot))
}

func fieldPlot(svc *Service, kind ChartKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseRequest(c)
		if err != nil {
			return respondErr(c, err)
		}
		q, err := req.FieldQuery()
		if err != nil {
			return respondErr(c, err)
		}
		img, err := svc.FieldPlot(c.UserContext(), kind, q)
		if err != nil {
			return respondErr(c, err)
		}
		return ok(c, img)
	}
}

func parseRequest(c *fiber.Ctx) (Request, error) {
	var req Request
	if len(c.Body()) == 0 {
		return req, nil
	}
	if err := c.BodyParser(&req); err != nil {
		return Request{}, errInvalidBody
	}
	return req, nil
}

func parseQuery(c *fiber.Ctx) (Query, error) {
	req, err := parseRequest(c)
	if err != nil {
		return Query{}, err
	}
	return req.Query()
}

var errInvalidBody = errors.New("invalid request body")

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Status: StatusOK, Data: data})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.JSON(Envelope{Status: StatusBadRequest, Data: msg})
}

// respondErr maps recoverable conditions onto the envelope. Anything else
// is a store failure and surfaces as a 500.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNoData):
		return badRequest(c, MsgNoData)
	case errors.Is(err, ErrMissingField):
		return badRequest(c, MsgMissingField)
	case errors.Is(err, ErrInvalidTime):
		return badRequest(c, MsgInvalidTime)
	case errors.Is(err, errInvalidBody):
		return badRequest(c, MsgInvalidBody)
	default:
		return storeError(c, err)
	}
}

func storeError(c *fiber.Ctx, err error) error {
	metrics.StoreErrors.Add(1)
	log.WithError(err).WithField("path", c.Path()).Error("dashboard query failed")
	return fiber.NewError(fiber.StatusInternalServerError, "store unavailable")
}
