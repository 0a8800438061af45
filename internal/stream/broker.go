package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Broker carries encoded samples between server instances.
type Broker interface {
	Publish(ctx context.Context, unitID string, payload []byte) error
	// Subscribe registers deliver for every unit's messages and returns once
	// the subscription is active. stop releases it.
	Subscribe(ctx context.Context, deliver func(unitID string, payload []byte)) (stop func() error, err error)
}

type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, unitID string, payload []byte) error {
	return b.client.Publish(ctx, redisChannel(unitID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(string, []byte)) (func() error, error) {
	pubsub := b.client.PSubscribe(ctx, redisPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for msg := range pubsub.Channel() {
			unitID := unitIDFromChannel(msg.Channel)
			if unitID == "" {
				continue
			}
			deliver(unitID, []byte(msg.Payload))
		}
	}()
	return pubsub.Close, nil
}

const redisPattern = "telemetry:*:gps"

func redisChannel(unitID string) string {
	return "telemetry:" + unitID + ":gps"
}

func unitIDFromChannel(ch string) string {
	// telemetry:{unit}:gps
	const prefix = "telemetry:"
	const suffix = ":gps"
	if len(ch) <= len(prefix)+len(suffix) || !strings.HasPrefix(ch, prefix) || !strings.HasSuffix(ch, suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}

type NATSBroker struct {
	conn *nats.Conn
}

func NewNATSBroker(conn *nats.Conn) *NATSBroker {
	return &NATSBroker{conn: conn}
}

func (b *NATSBroker) Publish(_ context.Context, unitID string, payload []byte) error {
	return b.conn.Publish(natsSubject(unitID), payload)
}

func (b *NATSBroker) Subscribe(_ context.Context, deliver func(string, []byte)) (func() error, error) {
	sub, err := b.conn.Subscribe("telemetry.*.gps", func(msg *nats.Msg) {
		unitID := unitIDFromSubject(msg.Subject)
		if unitID == "" {
			return
		}
		deliver(unitID, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Subject tokens cannot hold separators or wildcards, so those bytes are
// percent-encoded in the unit id.
func natsSubject(unitID string) string {
	var b strings.Builder
	for i := 0; i < len(unitID); i++ {
		c := unitID[i]
		switch c {
		case '.', '%', '*', '>', ' ', '\t', '\r', '\n':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return "telemetry." + b.String() + ".gps"
}

func unitIDFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 || parts[0] != "telemetry" || parts[2] != "gps" {
		return ""
	}
	unitID, err := url.PathUnescape(parts[1])
	if err != nil {
		return ""
	}
	return unitID
}
