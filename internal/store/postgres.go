package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/IoTeC-ecosystems/backend-app/internal/db"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps samples in the vehicle_samples table with metrics in a
// jsonb column.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(db db.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

var sampleColumns = []string{"unit_id", "recorded_at", "latitude", "longitude", "metrics"}

func (s *PostgresStore) UnitIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT unit_id FROM vehicle_samples ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("list unit ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Samples(ctx context.Context, unitIDs []string, w telemetry.Window) ([]telemetry.Sample, error) {
	query, args := samplesQuery(unitIDs, w)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		var (
			sample   telemetry.Sample
			lat, lng *float64
			metrics  []byte
		)
		if err := rows.Scan(&sample.UnitID, &sample.Timestamp, &lat, &lng, &metrics); err != nil {
			return nil, err
		}
		sample.Latitude = floatOrNaN(lat)
		sample.Longitude = floatOrNaN(lng)
		sample.Metrics = decodeMetrics(metrics)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *PostgresStore) InsertSamples(ctx context.Context, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	rows := make([][]any, len(samples))
	for i, sample := range samples {
		metrics, err := encodeMetrics(sample.Metrics)
		if err != nil {
			return err
		}
		rows[i] = []any{
			sample.UnitID,
			sample.Timestamp,
			nullable(sample.Latitude),
			nullable(sample.Longitude),
			metrics,
		}
	}

	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"vehicle_samples"}, sampleColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %d samples: %w", len(samples), err)
	}
	return nil
}

func samplesQuery(unitIDs []string, w telemetry.Window) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT unit_id, recorded_at, latitude, longitude, metrics FROM vehicle_samples WHERE unit_id = ANY($1)`)
	args := []any{unitIDs}

	if !w.Start.IsZero() {
		args = append(args, w.Start)
		fmt.Fprintf(&b, ` AND recorded_at >= $%d`, len(args))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		fmt.Fprintf(&b, ` AND recorded_at <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY id`)
	return b.String(), args
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func decodeMetrics(raw []byte) map[telemetry.Field]float64 {
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return metricsFromDoc(doc)
}

func encodeMetrics(metrics map[telemetry.Field]float64) ([]byte, error) {
	doc := make(map[string]*float64, len(metrics))
	for f, v := range metrics {
		doc[string(f)] = nullable(v)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return raw, nil
}
