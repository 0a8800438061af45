package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/chart"
	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"
)

// ChartKind selects how a single-field series is drawn.
type ChartKind int

const (
	KindTimeSeries ChartKind = iota
	KindDistribution
	KindBoxPlot
)

type Service struct {
	store   telemetry.SampleStore
	agg     *telemetry.Aggregator
	timeout time.Duration
}

func NewService(store telemetry.SampleStore, agg *telemetry.Aggregator, timeout time.Duration) *Service {
	return &Service{store: store, agg: agg, timeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) Vehicles(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.store.UnitIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// UnitIDs lets the service act as the stream's unit directory.
func (s *Service) UnitIDs(ctx context.Context) ([]string, error) {
	return s.Vehicles(ctx)
}

func (s *Service) DailyDistanceTable(ctx context.Context, q Query) ([]telemetry.DailyDistance, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.agg.DistanceTraveled(ctx, q.Units, q.Window)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

func (s *Service) DailyAverageTable(ctx context.Context, q Query) ([]telemetry.DailyAverage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.agg.DailyAverage(ctx, q.Units, q.Window)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

func (s *Service) DailyDistancePlot(ctx context.Context, q Query) (string, error) {
	rows, err := s.DailyDistanceTable(ctx, q)
	if err != nil {
		return "", err
	}
	return rendered(chart.DailyDistance(rows))
}

func (s *Service) AverageSpeedDistancePlot(ctx context.Context, q Query) (string, error) {
	rows, err := s.DailyAverageTable(ctx, q)
	if err != nil {
		return "", err
	}
	return rendered(chart.AverageSpeedDistance(rows))
}

// FieldPlot charts q.Field for each requested vehicle. Vehicles without a
// value for the field are left out; with none left the result is ErrNoData.
func (s *Service) FieldPlot(ctx context.Context, kind ChartKind, q Query) (string, error) {
	series, err := s.Series(ctx, q)
	if err != nil {
		return "", err
	}

	switch kind {
	case KindDistribution:
		return rendered(chart.Distribution(q.Field, series))
	case KindBoxPlot:
		return rendered(chart.BoxPlot(q.Field, series))
	default:
		return rendered(chart.TimeSeries(q.Field, series))
	}
}

// Series collects q.Field per vehicle in request order. The derived
// distance field is read from the daily distance table.
func (s *Service) Series(ctx context.Context, q Query) ([]chart.Series, error) {
	if len(q.Units) == 0 {
		return nil, ErrNoData
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var byUnit map[string]*chart.Series
	if q.Field == telemetry.FieldDistanceTraveled {
		rows, err := s.agg.DistanceTraveled(ctx, q.Units, q.Window)
		if err != nil {
			return nil, err
		}
		byUnit = distanceSeries(rows)
	} else {
		samples, err := s.store.Samples(ctx, q.Units, q.Window)
		if err != nil {
			return nil, fmt.Errorf("fetch samples: %w", err)
		}
		byUnit = fieldSeries(samples, q.Field)
	}

	var out []chart.Series
	for _, unit := range q.Units {
		if series, ok := byUnit[unit]; ok && len(series.Values) > 0 {
			out = append(out, *series)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func fieldSeries(samples []telemetry.Sample, f telemetry.Field) map[string]*chart.Series {
	sortByTime(samples)
	out := map[string]*chart.Series{}
	for _, smp := range samples {
		v, ok := smp.Metric(f)
		if !ok {
			continue
		}
		s := out[smp.UnitID]
		if s == nil {
			s = &chart.Series{UnitID: smp.UnitID}
			out[smp.UnitID] = s
		}
		s.Times = append(s.Times, smp.Timestamp)
		s.Values = append(s.Values, v)
	}
	return out
}

func distanceSeries(rows []telemetry.DailyDistance) map[string]*chart.Series {
	out := map[string]*chart.Series{}
	for _, r := range rows {
		day, err := time.Parse(telemetry.DateLayout, r.Date)
		if err != nil {
			continue
		}
		s := out[r.UnitID]
		if s == nil {
			s = &chart.Series{UnitID: r.UnitID}
			out[r.UnitID] = s
		}
		s.Times = append(s.Times, day)
		s.Values = append(s.Values, r.DistanceKm)
	}
	return out
}

func rendered(img string, err error) (string, error) {
	if errors.Is(err, chart.ErrEmpty) {
		return "", ErrNoData
	}
	if err != nil {
		return "", err
	}
	return img, nil
}

func sortByTime(samples []telemetry.Sample) {
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
}
