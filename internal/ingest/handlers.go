package ingest

import (
	"errors"

	"github.com/IoTeC-ecosystems/backend-app/internal/auth"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/samples", authMiddleware, func(c *fiber.Ctx) error {
		var batch Batch
		if err := c.BodyParser(&batch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.Ingest(c.UserContext(), batch)
		if errors.Is(err, ErrInvalidSample) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			log.WithError(err).Error("ingest failed")
			return fiber.NewError(fiber.StatusInternalServerError, "store unavailable")
		}

		log.WithFields(log.Fields{
			"producer_id": c.Locals(auth.LocalProducerID),
			"inserted":    res.Inserted,
		}).Debug("samples ingested")
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}
