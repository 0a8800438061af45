package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/store"
	"github.com/IoTeC-ecosystems/backend-app/internal/stream"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

type recordingWriter struct {
	got []telemetry.Sample
	err error
}

func (w *recordingWriter) InsertSamples(_ context.Context, samples []telemetry.Sample) error {
	if w.err != nil {
		return w.err
	}
	w.got = append(w.got, samples...)
	return nil
}

type published struct {
	unit    string
	payload []byte
}

type recordingPublisher struct {
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, unitID string, payload []byte) error {
	p.msgs = append(p.msgs, published{unit: unitID, payload: payload})
	return p.err
}

func doc(unit, ts string) map[string]any {
	return map[string]any{
		store.KeyUnitID:    unit,
		store.KeyTimestamp: ts,
		store.KeyLatitude:  -6.2,
		store.KeyLongitude: 106.8,
		"vehicle-speed":    40.0,
	}
}

func TestIngestStoresAndPublishes(t *testing.T) {
	writer := &recordingWriter{}
	pub := &recordingPublisher{}
	svc := NewService(writer, pub)

	res, err := svc.Ingest(context.Background(), Batch{
		doc("V1", "2023-01-01T00:00:00Z"),
		doc("V2", "2023-01-01T00:30:00Z"),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Inserted != 2 || len(writer.got) != 2 {
		t.Fatalf("unexpected result %+v, stored %d", res, len(writer.got))
	}
	if len(pub.msgs) != 2 || pub.msgs[1].unit != "V2" {
		t.Fatalf("unexpected publishes %+v", pub.msgs)
	}

	var payload map[string]any
	if err := json.Unmarshal(pub.msgs[0].payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["unit-id"] != "V1" || payload["vehicle-speed"] != 40.0 {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestIngestRejectsInvalidSamples(t *testing.T) {
	writer := &recordingWriter{}
	svc := NewService(writer, nil)

	cases := map[string]Batch{
		"empty":        nil,
		"no unit":      {doc("", "2023-01-01T00:00:00Z")},
		"no timestamp": {doc("V1", "")},
		"bad time":     {doc("V1", "2023-01-01T00:00:00Z"), doc("V1", "yesterday")},
	}
	for name, batch := range cases {
		if _, err := svc.Ingest(context.Background(), batch); !errors.Is(err, ErrInvalidSample) {
			t.Fatalf("%s: expected invalid sample, got %v", name, err)
		}
	}
	if len(writer.got) != 0 {
		t.Fatalf("nothing should be stored on rejection")
	}
}

func TestIngestStoreError(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(&recordingWriter{err: errors.New("down")}, pub)

	_, err := svc.Ingest(context.Background(), Batch{doc("V1", "2023-01-01T00:00:00Z")})
	if err == nil || errors.Is(err, ErrInvalidSample) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("failed writes must not be published")
	}
}

func TestIngestPublishErrorIsNotFatal(t *testing.T) {
	svc := NewService(&recordingWriter{}, &recordingPublisher{err: errors.New("broker down")})
	res, err := svc.Ingest(context.Background(), Batch{doc("V1", "2023-01-01T00:00:00Z")})
	if err != nil || res.Inserted != 1 {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
}

func TestIngestPostgresAndHub(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_samples"},
		[]string{"unit_id", "recorded_at", "latitude", "longitude", "metrics"}).WillReturnResult(1)

	hub := stream.NewHub(nil)
	client := hub.Register([]string{"V1"})
	defer hub.Unregister(client)

	svc := NewService(store.NewPostgresStore(mock), hub)
	if _, err := svc.Ingest(context.Background(), Batch{doc("V1", "2023-01-01T00:00:00Z")}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	select {
	case msg := <-client.Send:
		if !json.Valid(msg) {
			t.Fatalf("expected json payload, got %q", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for live sample")
	}
}
