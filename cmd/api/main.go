package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/IoTeC-ecosystems/backend-app/internal/logging"
	"github.com/IoTeC-ecosystems/backend-app/internal/server"
	"github.com/IoTeC-ecosystems/backend-app/internal/stream"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig       func() config.Config
	configureLogging func(config.Config) error
	openBackend      func(config.Config) (server.Backend, func(), error)
	openBroker       func(config.Config) (stream.Broker, func(), error)
	notify           func(chan<- os.Signal, ...os.Signal)
	run              func(context.Context, config.Config, server.Backend, stream.Broker, <-chan os.Signal, ListenFunc) error
	exit             func(int)
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:       config.Load,
		configureLogging: logging.Configure,
		openBackend:      server.OpenBackend,
		openBroker:       server.OpenBroker,
		notify:           signal.Notify,
		run:              Run,
		exit:             os.Exit,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	if err := deps.configureLogging(cfg); err != nil {
		log.WithError(err).Warn("file logging disabled")
	}

	backend, closeBackend, err := deps.openBackend(cfg)
	if err != nil {
		log.WithError(err).Error("sample store unavailable")
		deps.exit(1)
		return
	}
	defer closeBackend()

	broker, closeBroker, err := deps.openBroker(cfg)
	if err != nil {
		log.WithError(err).Warn("broker unavailable, live updates limited to this instance")
		broker, closeBroker = nil, func() {}
	}
	defer closeBroker()

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, backend, broker, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, backend server.Backend, broker stream.Broker, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, backend, broker)
	defer srv.Close()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()
	log.WithFields(log.Fields{"addr": cfg.ServerPort, "store": cfg.StoreDriver, "broker": cfg.Broker}).Info("dashboard server starting")

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	log.Info("dashboard server stopped")
	return nil
}
