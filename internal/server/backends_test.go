package server

import (
	"testing"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
	"github.com/IoTeC-ecosystems/backend-app/internal/stream"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/test"
)

func TestOpenBackendUnknownDriver(t *testing.T) {
	if _, _, err := OpenBackend(config.Config{StoreDriver: "cassandra"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenBackendMongoInvalidURI(t *testing.T) {
	if _, _, err := OpenBackend(config.Config{StoreDriver: config.StoreMongo, MongoURI: "not-a-uri"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenBackendPostgresInvalidURL(t *testing.T) {
	if _, _, err := OpenBackend(config.Config{StoreDriver: config.StorePostgres, PostgresURL: "://bad"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenBrokerNone(t *testing.T) {
	for _, name := range []string{"", config.BrokerNone} {
		broker, closeFn, err := OpenBroker(config.Config{Broker: name})
		if err != nil || broker != nil {
			t.Fatalf("%q: expected no broker, got %v %v", name, broker, err)
		}
		closeFn()
	}
}

func TestOpenBrokerRedis(t *testing.T) {
	s := miniredis.RunT(t)
	broker, closeFn, err := OpenBroker(config.Config{Broker: config.BrokerRedis, RedisAddr: s.Addr()})
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	defer closeFn()
	if _, ok := broker.(*stream.RedisBroker); !ok {
		t.Fatalf("expected redis broker, got %T", broker)
	}
}

func TestOpenBrokerRedisWithoutAddr(t *testing.T) {
	broker, closeFn, err := OpenBroker(config.Config{Broker: config.BrokerRedis})
	if err != nil || broker != nil {
		t.Fatalf("expected local-only hub, got %v %v", broker, err)
	}
	closeFn()
}

func TestOpenBrokerNATS(t *testing.T) {
	s := natsserver.RunRandClientPortServer()
	defer s.Shutdown()

	broker, closeFn, err := OpenBroker(config.Config{Broker: config.BrokerNATS, NATSURL: s.ClientURL()})
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	defer closeFn()
	if _, ok := broker.(*stream.NATSBroker); !ok {
		t.Fatalf("expected nats broker, got %T", broker)
	}
}

func TestOpenBrokerUnknown(t *testing.T) {
	if _, _, err := OpenBroker(config.Config{Broker: "kafka"}); err == nil {
		t.Fatalf("expected error")
	}
}
