package store

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleFromJSONDocument(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"unit-id": "V1",
		"timestamp": "2023-01-01T00:30:00Z",
		"latitude": -6.2,
		"longitude": null,
		"vehicle-speed": 42,
		"engine-speed": "bad",
		"unrelated": 1
	}`), &doc))

	s := SampleFromDocument(doc)
	assert.Equal(t, "V1", s.UnitID)
	assert.True(t, s.Timestamp.Equal(time.Date(2023, 1, 1, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, -6.2, s.Latitude)
	assert.True(t, math.IsNaN(s.Longitude))
	assert.False(t, s.HasPosition())

	speed, ok := s.Metric(telemetry.FieldVehicleSpeed)
	assert.True(t, ok)
	assert.Equal(t, 42.0, speed)
	_, ok = s.Metric(telemetry.FieldEngineSpeed)
	assert.False(t, ok)
	assert.Len(t, s.Metrics, 2)
}

func TestSampleFromDocumentNaiveTimestamp(t *testing.T) {
	s := SampleFromDocument(map[string]any{KeyTimestamp: "2023-01-01T08:00:00"})
	assert.True(t, s.Timestamp.Equal(time.Date(2023, 1, 1, 8, 0, 0, 0, time.UTC)))

	s = SampleFromDocument(map[string]any{KeyTimestamp: "tomorrow"})
	assert.True(t, s.Timestamp.IsZero())
}

func TestDocumentFromSample(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := DocumentFromSample(telemetry.Sample{
		UnitID:    "V2",
		Timestamp: ts,
		Latitude:  -6.15,
		Longitude: math.NaN(),
		Metrics:   map[telemetry.Field]float64{telemetry.FieldVehicleSpeed: 30},
	})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "V2", decoded[KeyUnitID])
	assert.Equal(t, "2023-01-01T00:00:00Z", decoded[KeyTimestamp])
	assert.Nil(t, decoded[KeyLongitude])
	assert.Equal(t, 30.0, decoded["vehicle-speed"])

	back := SampleFromDocument(decoded)
	assert.Equal(t, -6.15, back.Latitude)
	assert.True(t, back.Timestamp.Equal(ts))
}

func TestLegacySpeedKey(t *testing.T) {
	s := SampleFromDocument(map[string]any{KeyUnitID: "V1", KeySpeed: 10.0})
	speed, ok := s.Metric(telemetry.FieldVehicleSpeed)
	assert.True(t, ok)
	assert.Equal(t, 10.0, speed)

	s = SampleFromDocument(map[string]any{KeyUnitID: "V1", KeySpeed: 10.0, "vehicle-speed": 55.0})
	speed, _ = s.Metric(telemetry.FieldVehicleSpeed)
	assert.Equal(t, 55.0, speed)

	s = SampleFromDocument(map[string]any{KeyUnitID: "V1", KeySpeed: nil})
	_, ok = s.Metric(telemetry.FieldVehicleSpeed)
	assert.False(t, ok)
}

func TestInfiniteValuesAreMalformed(t *testing.T) {
	s := SampleFromDocument(map[string]any{
		KeyLatitude:     math.Inf(1),
		KeyLongitude:    "-Inf",
		"vehicle-speed": "+Inf",
		"engine-speed":  math.Inf(-1),
	})
	assert.True(t, math.IsNaN(s.Latitude))
	assert.True(t, math.IsNaN(s.Longitude))
	_, ok := s.Metric(telemetry.FieldVehicleSpeed)
	assert.False(t, ok)
	_, ok = s.Metric(telemetry.FieldEngineSpeed)
	assert.False(t, ok)
}

type docStore struct {
	samples []telemetry.Sample
}

func (d docStore) UnitIDs(context.Context) ([]string, error) {
	return []string{"V1"}, nil
}

func (d docStore) Samples(context.Context, []string, telemetry.Window) ([]telemetry.Sample, error) {
	return d.samples, nil
}

func TestDailyAverageFromLegacyDocuments(t *testing.T) {
	var samples []telemetry.Sample
	for i, raw := range []string{
		`{"unit-id":"V1","timestamp":"2023-01-01T08:00:00Z","latitude":-6.2,"longitude":106.8,"speed":10}`,
		`{"unit-id":"V1","timestamp":"2023-01-01T08:30:00Z","latitude":-6.21,"longitude":106.81,"speed":20}`,
		`{"unit-id":"V1","timestamp":"2023-01-01T09:00:00Z","latitude":-6.22,"longitude":106.82,"speed":"Inf"}`,
	} {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &doc), i)
		samples = append(samples, SampleFromDocument(doc))
	}

	rows, err := telemetry.NewAggregator(docStore{samples: samples}).DailyAverage(context.Background(), nil, telemetry.Window{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].AvgSpeed)
	assert.InDelta(t, 15.0, *rows[0].AvgSpeed, 1e-9)

	_, err = json.Marshal(rows)
	assert.NoError(t, err)
}
