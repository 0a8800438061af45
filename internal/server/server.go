package server

import (
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/auth"
	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/IoTeC-ecosystems/backend-app/internal/dashboard"
	"github.com/IoTeC-ecosystems/backend-app/internal/ingest"
	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"
	"github.com/IoTeC-ecosystems/backend-app/internal/stream"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Backend is a sample store that also accepts writes.
type Backend interface {
	telemetry.SampleStore
	telemetry.SampleWriter
}

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	Store     Backend
	Stream    *stream.Hub
	Dashboard *dashboard.Service
	Issuer    *auth.Issuer
}

func NewServer(cfg config.Config, backend Backend, broker stream.Broker) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	s := &Server{
		App:       app,
		Cfg:       cfg,
		Store:     backend,
		Stream:    stream.NewHub(broker),
		Dashboard: dashboard.NewService(backend, telemetry.NewAggregator(backend), cfg.RequestTimeout),
		Issuer:    auth.NewIssuer(cfg.JWTSecret),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
	})
	s.App.Get("/metrics", metrics.HandleMetrics)

	jwtMiddleware := auth.JWTMiddleware(s.Issuer)

	dashboard.RegisterRoutes(s.App, s.Dashboard)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Dashboard)
	ingest.RegisterRoutes(s.App.Group("/ingest"), ingest.NewService(s.Store, s.Stream), jwtMiddleware)
}

// Close releases the hub's broker subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}
