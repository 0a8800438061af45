package db

import (
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/nats-io/nats.go"
)

func ConnectNATS(cfg config.Config) (*nats.Conn, error) {
	return nats.Connect(cfg.NATSURL,
		nats.Name("fleet-dashboard"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
}
