package stream

import (
	"context"
	"sync"

	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Hub fans sample payloads out to the clients subscribed to each unit. With a
// broker attached, publishes travel through it so every instance sees them.
type Hub struct {
	broker  Broker
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	stop    func() error
}

type Client struct {
	ID    string
	Units []string
	Send  chan []byte
}

func NewHub(broker Broker) *Hub {
	h := &Hub{
		broker:  broker,
		clients: map[string]map[*Client]struct{}{},
	}

	if broker != nil {
		stop, err := broker.Subscribe(context.Background(), h.fanOut)
		if err != nil {
			log.WithError(err).Error("broker subscribe failed, live updates limited to this instance")
			h.broker = nil
		} else {
			h.stop = stop
		}
	}
	return h
}

func (h *Hub) Register(units []string) *Client {
	client := &Client{
		ID:    uuid.NewString(),
		Units: append([]string(nil), units...),
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, unit := range client.Units {
		if h.clients[unit] == nil {
			h.clients[unit] = map[*Client]struct{}{}
		}
		h.clients[unit][client] = struct{}{}
	}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, unit := range client.Units {
		if unitClients, ok := h.clients[unit]; ok {
			delete(unitClients, client)
			if len(unitClients) == 0 {
				delete(h.clients, unit)
			}
		}
	}
	close(client.Send)
}

// Publish hands a payload to the broker, or straight to local subscribers
// when there is none.
func (h *Hub) Publish(ctx context.Context, unitID string, payload []byte) error {
	if h.broker == nil {
		h.fanOut(unitID, payload)
		return nil
	}
	if err := h.broker.Publish(ctx, unitID, payload); err != nil {
		metrics.BrokerPublishErr.Add(1)
		return err
	}
	return nil
}

func (h *Hub) fanOut(unitID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[unitID] {
		select {
		case client.Send <- payload:
		default:
			metrics.StreamDrops.Add(1)
		}
	}
}

func (h *Hub) Close() error {
	if h.stop == nil {
		return nil
	}
	return h.stop()
}
