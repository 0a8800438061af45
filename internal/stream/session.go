package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"

	log "github.com/sirupsen/logrus"
)

const maxBatch = 64

// UnitDirectory lists the vehicles a client may subscribe to.
type UnitDirectory interface {
	UnitIDs(ctx context.Context) ([]string, error)
}

// Session holds one connected client's subscription. Frames for the client
// are queued on Out; the forwarding task lives until the next subscribe or
// Close.
type Session struct {
	hub *Hub
	dir UnitDirectory
	out chan []byte

	mu     sync.Mutex
	client *Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(hub *Hub, dir UnitDirectory) *Session {
	return &Session{
		hub: hub,
		dir: dir,
		out: make(chan []byte, 16),
	}
}

func (s *Session) Out() <-chan []byte {
	return s.out
}

// Open greets the client with the list of known units.
func (s *Session) Open(ctx context.Context) error {
	ids, err := s.dir.UnitIDs(ctx)
	if err != nil {
		return err
	}
	s.send(ctx, availableUnits(ids))
	return nil
}

// Handle processes one client frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.send(ctx, ServerMessage{Status: 400, Code: CodeBadMessage})
		return
	}

	switch msg.Event {
	case "", EventSubscribe:
		s.subscribe(ctx, msg.Units)
	default:
		s.send(ctx, ServerMessage{Status: 400, Code: CodeUnknownEvent})
	}
}

func (s *Session) subscribe(ctx context.Context, units []string) {
	if len(units) == 0 {
		s.send(ctx, ServerMessage{Status: 400, Code: CodeEmptyUnits})
		return
	}

	ids, err := s.dir.UnitIDs(ctx)
	if err != nil {
		log.WithError(err).Warn("listing units for subscription failed")
		metrics.StoreErrors.Add(1)
		s.send(ctx, ServerMessage{Status: 400, Code: CodeNonExistingUnits, Units: units})
		return
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	var invalid []string
	for _, u := range units {
		if !known[u] {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		s.send(ctx, ServerMessage{Status: 400, Code: CodeNonExistingUnits, Units: invalid})
		return
	}

	s.stopForwarding()

	client := s.hub.Register(units)
	taskCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.client = client
	s.cancel = cancel
	s.mu.Unlock()

	s.send(ctx, ServerMessage{Status: 200, Code: CodeSubscribed})

	s.wg.Add(1)
	go s.forward(taskCtx, client)
}

// forward batches whatever payloads are queued for the client into one
// "new data" frame at a time.
func (s *Session) forward(ctx context.Context, client *Client) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-client.Send:
			if !ok {
				return
			}
			batch := appendValid(nil, payload)
		drain:
			for len(batch) < maxBatch {
				select {
				case p, ok := <-client.Send:
					if !ok {
						break drain
					}
					batch = appendValid(batch, p)
				default:
					break drain
				}
			}
			if len(batch) == 0 {
				continue
			}
			if s.send(ctx, newData(batch)) {
				metrics.StreamFrames.Add(1)
			}
		}
	}
}

func appendValid(batch []json.RawMessage, payload []byte) []json.RawMessage {
	if !json.Valid(payload) {
		log.WithField("payload", string(payload)).Debug("dropping undecodable broker payload")
		return batch
	}
	return append(batch, json.RawMessage(payload))
}

func (s *Session) send(ctx context.Context, msg ServerMessage) bool {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("encode stream frame")
		return false
	}
	select {
	case s.out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) stopForwarding() {
	s.mu.Lock()
	client, cancel := s.client, s.cancel
	s.client, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if client != nil {
		s.hub.Unregister(client)
	}
}

// Close cancels the forwarding task and releases the hub subscription.
func (s *Session) Close() {
	s.stopForwarding()
}
