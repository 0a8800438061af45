package telemetry

import (
	"context"
	"math"
	"time"
)

// DateLayout is the calendar-day format used for aggregate rows.
const DateLayout = "2006-01-02"

// Sample is one reading for a vehicle. Missing or malformed coordinates are
// NaN; a metric absent from Metrics is missing.
type Sample struct {
	UnitID    string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Metrics   map[Field]float64
}

// Metric returns the value of f and whether it is present and a number.
func (s Sample) Metric(f Field) (float64, bool) {
	v, ok := s.Metrics[f]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// HasPosition reports whether both coordinates are finite numbers.
func (s Sample) HasPosition() bool {
	return !math.IsNaN(s.Latitude) && !math.IsNaN(s.Longitude) &&
		!math.IsInf(s.Latitude, 0) && !math.IsInf(s.Longitude, 0)
}

// Day is the calendar day of the sample in its own location.
func (s Sample) Day() string {
	return s.Timestamp.Format(DateLayout)
}

// Window bounds a query in time. A zero bound is open on that side; both
// bounds are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

type DailyDistance struct {
	UnitID     string  `json:"unit-id"`
	Date       string  `json:"date"`
	DistanceKm float64 `json:"distance_km"`
}

// DailyAverage joins the mean vehicle speed and distance of one vehicle-day.
// A nil AvgSpeed means no speed value was recorded for that day.
type DailyAverage struct {
	UnitID     string   `json:"unit-id"`
	Date       string   `json:"date"`
	AvgSpeed   *float64 `json:"avg_speed"`
	DistanceKm float64  `json:"distance_km"`
}

// SampleStore supplies raw telemetry by vehicle id and time window.
type SampleStore interface {
	UnitIDs(ctx context.Context) ([]string, error)
	Samples(ctx context.Context, unitIDs []string, w Window) ([]Sample, error)
}

// SampleWriter persists new samples.
type SampleWriter interface {
	InsertSamples(ctx context.Context, samples []Sample) error
}
