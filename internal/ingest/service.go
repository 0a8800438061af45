package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IoTeC-ecosystems/backend-app/internal/metrics"
	"github.com/IoTeC-ecosystems/backend-app/internal/store"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	log "github.com/sirupsen/logrus"
)

// Publisher forwards an encoded sample to live subscribers of its unit.
type Publisher interface {
	Publish(ctx context.Context, unitID string, payload []byte) error
}

type Service struct {
	writer telemetry.SampleWriter
	pub    Publisher
}

func NewService(writer telemetry.SampleWriter, pub Publisher) *Service {
	return &Service{writer: writer, pub: pub}
}

// Ingest validates and stores a batch, then publishes every stored sample.
// Nothing is written when any document lacks a unit id or timestamp.
func (s *Service) Ingest(ctx context.Context, batch Batch) (Result, error) {
	if len(batch) == 0 {
		return Result{}, fmt.Errorf("%w: empty batch", ErrInvalidSample)
	}

	samples := make([]telemetry.Sample, 0, len(batch))
	for i, doc := range batch {
		sample := store.SampleFromDocument(doc)
		if sample.UnitID == "" {
			return Result{}, invalidSample(i, "missing "+store.KeyUnitID)
		}
		if sample.Timestamp.IsZero() {
			return Result{}, invalidSample(i, "missing or malformed "+store.KeyTimestamp)
		}
		samples = append(samples, sample)
	}

	if err := s.writer.InsertSamples(ctx, samples); err != nil {
		metrics.IngestFailures.Add(1)
		return Result{}, fmt.Errorf("store samples: %w", err)
	}
	metrics.SamplesIngested.Add(int64(len(samples)))

	if s.pub != nil {
		for _, sample := range samples {
			payload, err := json.Marshal(store.DocumentFromSample(sample))
			if err != nil {
				continue
			}
			if err := s.pub.Publish(ctx, sample.UnitID, payload); err != nil {
				log.WithError(err).WithField("unit_id", sample.UnitID).Warn("publish sample failed")
			}
		}
	}

	return Result{Inserted: len(samples)}, nil
}
