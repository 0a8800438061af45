package main

import (
	"fmt"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"
)

// fixture builds n vehicles driving north-east from central Jakarta, each
// vehicle offset 0.05 degrees north of the previous one.
func fixture(vehicles, samples int, start time.Time, interval time.Duration) []telemetry.Sample {
	out := make([]telemetry.Sample, 0, vehicles*samples)
	for v := 0; v < vehicles; v++ {
		unit := fmt.Sprintf("V%d", v+1)
		for i := 0; i < samples; i++ {
			speed := 30 + 2*float64(i)
			out = append(out, telemetry.Sample{
				UnitID:    unit,
				Timestamp: start.Add(time.Duration(i) * interval),
				Latitude:  -6.2 + 0.01*float64(i) + 0.05*float64(v),
				Longitude: 106.8 + 0.01*float64(i),
				Metrics: map[telemetry.Field]float64{
					telemetry.FieldVehicleSpeed:             speed,
					telemetry.FieldEngineSpeed:              800 + 40*speed,
					telemetry.FieldEngineCoolantTemperature: 85 + float64(i%5),
					telemetry.FieldRelativeThrottlePosition: 10 + float64(i%7)*3,
				},
			})
		}
	}
	return out
}
