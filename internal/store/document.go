package store

import (
	"math"
	"strconv"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"
)

// Document keys shared by every backend and the ingestion payload.
const (
	KeyUnitID    = "unit-id"
	KeyTimestamp = "timestamp"
	KeyLatitude  = "latitude"
	KeyLongitude = "longitude"

	// KeySpeed is the legacy name of the vehicle-speed metric.
	KeySpeed = "speed"
)

// numberOrNaN coerces a decoded document value to a finite float64. Nulls,
// infinities, strings that are not numbers and other types become NaN.
func numberOrNaN(v any) float64 {
	f := toFloat(v)
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// metricsFromDoc picks the known sampled fields out of a flat document. A
// legacy speed key stands in for vehicle-speed when that is absent.
func metricsFromDoc(doc map[string]any) map[telemetry.Field]float64 {
	var out map[telemetry.Field]float64
	for _, f := range telemetry.Fields() {
		if !f.Sampled() {
			continue
		}
		v, ok := doc[string(f)]
		if !ok || v == nil {
			continue
		}
		if out == nil {
			out = map[telemetry.Field]float64{}
		}
		out[f] = numberOrNaN(v)
	}

	if _, ok := out[telemetry.FieldVehicleSpeed]; !ok {
		if v, ok := doc[KeySpeed]; ok && v != nil {
			if out == nil {
				out = map[telemetry.Field]float64{}
			}
			out[telemetry.FieldVehicleSpeed] = numberOrNaN(v)
		}
	}
	return out
}

// nullable maps NaN to nil so absent coordinates are stored as nulls.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func timeOrZero(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
			if parsed, err := time.ParseInLocation(layout, t, time.UTC); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// SampleFromDocument reads a flat sample document. Coordinates and metrics
// that are not numbers come back as NaN; a missing timestamp is zero.
func SampleFromDocument(doc map[string]any) telemetry.Sample {
	unitID, _ := doc[KeyUnitID].(string)
	return telemetry.Sample{
		UnitID:    unitID,
		Timestamp: timeOrZero(doc[KeyTimestamp]),
		Latitude:  numberOrNaN(doc[KeyLatitude]),
		Longitude: numberOrNaN(doc[KeyLongitude]),
		Metrics:   metricsFromDoc(doc),
	}
}

// DocumentFromSample is the inverse of SampleFromDocument, with missing
// values written as nulls.
func DocumentFromSample(s telemetry.Sample) map[string]any {
	doc := map[string]any{
		KeyUnitID:    s.UnitID,
		KeyTimestamp: s.Timestamp,
		KeyLatitude:  nullable(s.Latitude),
		KeyLongitude: nullable(s.Longitude),
	}
	for f, v := range s.Metrics {
		doc[string(f)] = nullable(v)
	}
	return doc
}
