package store

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errStore = errors.New("store error")

func ptr(v float64) *float64 { return &v }

func TestPostgresUnitIDs(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT DISTINCT unit_id FROM vehicle_samples`).
		WillReturnRows(pgxmock.NewRows([]string{"unit_id"}).AddRow("V1").AddRow("V2"))

	ids, err := NewPostgresStore(mock).UnitIDs(context.Background())
	if err != nil {
		t.Fatalf("unit ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != "V1" || ids[1] != "V2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSamples(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT unit_id, recorded_at, latitude, longitude, metrics FROM vehicle_samples WHERE unit_id = ANY\(\$1\) AND recorded_at >= \$2 AND recorded_at <= \$3`).
		WithArgs([]string{"V1"}, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"unit_id", "recorded_at", "latitude", "longitude", "metrics"}).
			AddRow("V1", start, ptr(37.77), ptr(-122.41), []byte(`{"vehicle-speed": 42.5, "engine-speed": null, "unknown": 3}`)).
			AddRow("V1", start.Add(time.Hour), (*float64)(nil), ptr(-122.41), []byte(`{}`)))

	samples, err := NewPostgresStore(mock).Samples(context.Background(), []string{"V1"}, telemetry.Window{Start: start, End: end})
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Latitude != 37.77 || samples[0].Metrics[telemetry.FieldVehicleSpeed] != 42.5 {
		t.Fatalf("unexpected first sample: %+v", samples[0])
	}
	if _, ok := samples[0].Metrics[telemetry.FieldEngineSpeed]; ok {
		t.Fatalf("null metric should be absent")
	}
	if !math.IsNaN(samples[1].Latitude) || samples[1].HasPosition() {
		t.Fatalf("expected missing latitude to decode as NaN")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSamplesLegacySpeed(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT unit_id, recorded_at`).
		WithArgs([]string{"V1"}).
		WillReturnRows(pgxmock.NewRows([]string{"unit_id", "recorded_at", "latitude", "longitude", "metrics"}).
			AddRow("V1", start, ptr(1.0), ptr(2.0), []byte(`{"speed": 12.5}`)))

	samples, err := NewPostgresStore(mock).Samples(context.Background(), []string{"V1"}, telemetry.Window{})
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if v, ok := samples[0].Metric(telemetry.FieldVehicleSpeed); !ok || v != 12.5 {
		t.Fatalf("expected speed to read as vehicle-speed, got %v %v", v, ok)
	}
}

func TestPostgresSamplesQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT unit_id, recorded_at`).
		WithArgs([]string{"V1"}).
		WillReturnError(errStore)

	_, err = NewPostgresStore(mock).Samples(context.Background(), []string{"V1"}, telemetry.Window{})
	if !errors.Is(err, errStore) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestPostgresUnitIDsError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT DISTINCT unit_id`).WillReturnError(errStore)

	if _, err := NewPostgresStore(mock).UnitIDs(context.Background()); !errors.Is(err, errStore) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestSamplesQueryBounds(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		window   telemetry.Window
		contains []string
		args     int
	}{
		{"open", telemetry.Window{}, nil, 1},
		{"start", telemetry.Window{Start: ts}, []string{"recorded_at >= $2"}, 2},
		{"end", telemetry.Window{End: ts}, []string{"recorded_at <= $2"}, 2},
		{"both", telemetry.Window{Start: ts, End: ts}, []string{"recorded_at >= $2", "recorded_at <= $3"}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query, args := samplesQuery([]string{"V1"}, tc.window)
			if len(args) != tc.args {
				t.Fatalf("expected %d args, got %d", tc.args, len(args))
			}
			for _, fragment := range tc.contains {
				if !strings.Contains(query, fragment) {
					t.Fatalf("query %q missing %q", query, fragment)
				}
			}
		})
	}
}

func TestPostgresInsertSamples(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_samples"}, sampleColumns).WillReturnResult(2)

	err = NewPostgresStore(mock).InsertSamples(context.Background(), []telemetry.Sample{
		{UnitID: "V1", Timestamp: time.Now(), Latitude: 1, Longitude: 2, Metrics: map[telemetry.Field]float64{telemetry.FieldVehicleSpeed: 10}},
		{UnitID: "V1", Timestamp: time.Now(), Latitude: math.NaN(), Longitude: 2},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresInsertSamplesError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_samples"}, sampleColumns).WillReturnError(errStore)

	err = NewPostgresStore(mock).InsertSamples(context.Background(), []telemetry.Sample{{UnitID: "V1", Timestamp: time.Now()}})
	if !errors.Is(err, errStore) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestPostgresInsertNothing(t *testing.T) {
	if err := NewPostgresStore(nil).InsertSamples(context.Background(), nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
