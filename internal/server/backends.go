package server

import (
	"context"
	"fmt"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/IoTeC-ecosystems/backend-app/internal/db"
	"github.com/IoTeC-ecosystems/backend-app/internal/store"
	"github.com/IoTeC-ecosystems/backend-app/internal/stream"

	log "github.com/sirupsen/logrus"
)

// OpenBackend connects the sample store selected by STORE_DRIVER. The
// returned func releases the connection.
func OpenBackend(cfg config.Config) (Backend, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := db.ApplyMigrations(cfg); err != nil {
			return nil, nil, err
		}
		pool, err := db.ConnectPostgres(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.WithField("driver", cfg.StoreDriver).Info("sample store connected")
		return store.NewPostgresStore(pool), pool.Close, nil

	case config.StoreMongo, "":
		client, err := db.ConnectMongo(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		log.WithFields(log.Fields{
			"driver":     config.StoreMongo,
			"database":   cfg.MongoDatabase,
			"collection": cfg.MongoCollection,
		}).Info("sample store connected")
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return store.NewMongoStore(db.SamplesCollection(client, cfg)), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenBroker connects the live-update broker selected by BROKER. A nil
// broker means the hub fans out within this process only.
func OpenBroker(cfg config.Config) (stream.Broker, func(), error) {
	noop := func() {}

	switch cfg.Broker {
	case config.BrokerNone, "":
		return nil, noop, nil

	case config.BrokerRedis:
		client := db.ConnectRedis(cfg)
		if client == nil {
			return nil, noop, nil
		}
		return stream.NewRedisBroker(client), func() { _ = client.Close() }, nil

	case config.BrokerNATS:
		nc, err := db.ConnectNATS(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		return stream.NewNATSBroker(nc), nc.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}
