package telemetry

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/IoTeC-ecosystems/backend-app/internal/shared/geo"

	log "github.com/sirupsen/logrus"
)

// Aggregator turns raw samples into per-vehicle, per-day summaries. It keeps
// no state between calls.
type Aggregator struct {
	store SampleStore
}

func NewAggregator(store SampleStore) *Aggregator {
	return &Aggregator{store: store}
}

type dayKey struct {
	unitID string
	date   string
}

func lessKey(a, b dayKey) bool {
	if a.unitID != b.unitID {
		return a.unitID < b.unitID
	}
	return a.date < b.date
}

// DistanceTraveled returns the great-circle distance covered by each vehicle
// on each calendar day present in the window. Empty unitIDs selects every
// vehicle known to the store.
func (a *Aggregator) DistanceTraveled(ctx context.Context, unitIDs []string, w Window) ([]DailyDistance, error) {
	samples, err := a.fetch(ctx, unitIDs, w)
	if err != nil {
		return nil, err
	}
	return dailyDistances(samples), nil
}

// DailyAverage returns the mean vehicle speed of each vehicle-day joined with
// its traveled distance. Days missing a distance get 0; days missing a speed
// keep a nil AvgSpeed unless no distance could be computed at all, in which
// case the average defaults to 0.
func (a *Aggregator) DailyAverage(ctx context.Context, unitIDs []string, w Window) ([]DailyAverage, error) {
	samples, err := a.fetch(ctx, unitIDs, w)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	distances, err := a.DistanceTraveled(ctx, unitIDs, w)
	if err != nil {
		return nil, err
	}

	speeds, speedKeys := averageSpeeds(samples)

	if len(distances) == 0 {
		out := make([]DailyAverage, 0, len(speedKeys))
		for _, k := range speedKeys {
			avg := speeds[k]
			if avg == nil {
				zero := 0.0
				avg = &zero
			}
			out = append(out, DailyAverage{UnitID: k.unitID, Date: k.date, AvgSpeed: avg})
		}
		return out, nil
	}

	byKey := make(map[dayKey]float64, len(distances))
	keys := append([]dayKey(nil), speedKeys...)
	for _, d := range distances {
		k := dayKey{unitID: d.UnitID, date: d.Date}
		if _, ok := speeds[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = d.DistanceKm
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]DailyAverage, 0, len(keys))
	for _, k := range keys {
		out = append(out, DailyAverage{
			UnitID:     k.unitID,
			Date:       k.date,
			AvgSpeed:   speeds[k],
			DistanceKm: byKey[k],
		})
	}
	return out, nil
}

func (a *Aggregator) fetch(ctx context.Context, unitIDs []string, w Window) ([]Sample, error) {
	if len(unitIDs) == 0 {
		ids, err := a.store.UnitIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list vehicles: %w", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		unitIDs = ids
	}

	samples, err := a.store.Samples(ctx, unitIDs, w)
	if err != nil {
		return nil, fmt.Errorf("fetch samples: %w", err)
	}

	// Backends filter coarsely; the window is enforced here.
	kept := samples[:0:0]
	for _, s := range samples {
		if w.Contains(s.Timestamp) {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// groupByDay buckets samples per vehicle-day, each bucket stably sorted by
// timestamp, and returns the keys in unit then date order.
func groupByDay(samples []Sample) (map[dayKey][]Sample, []dayKey) {
	groups := map[dayKey][]Sample{}
	var keys []dayKey
	for _, s := range samples {
		k := dayKey{unitID: s.UnitID, date: s.Day()}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], s)
	}

	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Timestamp.Before(g[j].Timestamp) })
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return groups, keys
}

func dailyDistances(samples []Sample) []DailyDistance {
	if len(samples) == 0 {
		return nil
	}

	groups, keys := groupByDay(samples)
	out := make([]DailyDistance, 0, len(keys))
	for _, k := range keys {
		out = append(out, DailyDistance{UnitID: k.unitID, Date: k.date, DistanceKm: pathLengthKm(k, groups[k])})
	}
	return out
}

// pathLengthKm sums consecutive legs of a time-ordered track. Legs that cannot
// be measured contribute nothing.
func pathLengthKm(k dayKey, track []Sample) float64 {
	if len(track) < 2 {
		return 0
	}

	total := 0.0
	skipped := 0
	for i := 1; i < len(track); i++ {
		prev, cur := track[i-1], track[i]
		if !prev.HasPosition() || !cur.HasPosition() {
			skipped++
			continue
		}
		d := geo.HaversineKm(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			skipped++
			continue
		}
		total += d
	}

	if skipped > 0 {
		log.WithFields(log.Fields{"unit_id": k.unitID, "date": k.date, "skipped": skipped}).
			Debug("skipped legs with invalid coordinates")
	}
	return total
}

// averageSpeeds returns the mean vehicle speed per vehicle-day. Every day with
// samples gets a key; the value is nil when none of them carried a speed.
func averageSpeeds(samples []Sample) (map[dayKey]*float64, []dayKey) {
	groups, keys := groupByDay(samples)
	out := make(map[dayKey]*float64, len(keys))
	for _, k := range keys {
		sum, n := 0.0, 0
		for _, s := range groups[k] {
			if v, ok := s.Metric(FieldVehicleSpeed); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			out[k] = nil
			continue
		}
		avg := sum / float64(n)
		out[k] = &avg
	}
	return out, keys
}
