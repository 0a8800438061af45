package stream

import (
	"context"

	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
)

func RegisterRoutes(r fiber.Router, hub *Hub, dir UnitDirectory) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		metrics.StreamClients.Add(1)
		defer metrics.StreamClients.Add(-1)

		ctx, cancel := context.WithCancel(context.Background())
		session := NewSession(hub, dir)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case frame := <-session.Out():
					if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		if err := session.Open(ctx); err != nil {
			log.WithError(err).Warn("listing units for new stream client failed")
			metrics.StoreErrors.Add(1)
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			session.Handle(ctx, msg)
		}

		cancel()
		<-done
		session.Close()
	}))
}
