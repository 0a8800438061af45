// Package chart renders telemetry tables and series as base64-encoded PNG
// images for the dashboard.
package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("chart: no data")

const (
	width  = 12 * vg.Inch
	height = 6 * vg.Inch
)

// Series is one vehicle's values of a field, in time order.
type Series struct {
	UnitID string
	Times  []time.Time
	Values []float64
}

func (s Series) label() string {
	return "Unit " + s.UnitID
}

func (s Series) empty() bool {
	return len(s.Values) == 0
}

func encode(p *plot.Plot, w, h vg.Length) (string, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

// DailyDistance draws one group of bars per date, one bar per vehicle.
func DailyDistance(rows []telemetry.DailyDistance) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmpty
	}

	dates, units := axes(len(rows), func(i int) (string, string) { return rows[i].Date, rows[i].UnitID })
	values := make(map[string]map[string]float64, len(units))
	for _, r := range rows {
		if values[r.UnitID] == nil {
			values[r.UnitID] = map[string]float64{}
		}
		values[r.UnitID][r.Date] = r.DistanceKm
	}

	p := newPlot("Daily Distance Traveled", "Date", telemetry.FieldDistanceTraveled.Label())
	barWidth := groupBarWidth(len(units))
	for i, unit := range units {
		vals := make(plotter.Values, len(dates))
		for j, d := range dates {
			vals[j] = values[unit][d]
		}
		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return "", fmt.Errorf("daily distance bars: %w", err)
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		bars.Offset = barOffset(i, len(units), barWidth)
		p.Add(bars)
		p.Legend.Add("Unit "+unit, bars)
	}
	p.NominalX(dates...)
	return encode(p, width, height)
}

// AverageSpeedDistance draws two panels sharing the date axis: mean speed on
// top and distance below. Missing averages are drawn as zero-height bars.
func AverageSpeedDistance(rows []telemetry.DailyAverage) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmpty
	}

	dates, units := axes(len(rows), func(i int) (string, string) { return rows[i].Date, rows[i].UnitID })
	speed := map[string]map[string]float64{}
	dist := map[string]map[string]float64{}
	for _, r := range rows {
		if speed[r.UnitID] == nil {
			speed[r.UnitID] = map[string]float64{}
			dist[r.UnitID] = map[string]float64{}
		}
		if r.AvgSpeed != nil {
			speed[r.UnitID][r.Date] = *r.AvgSpeed
		}
		dist[r.UnitID][r.Date] = r.DistanceKm
	}

	top := newPlot("Average Speed and Distance per Day", "", "Average "+telemetry.FieldVehicleSpeed.Label())
	bottom := newPlot("", "Date", telemetry.FieldDistanceTraveled.Label())
	barWidth := groupBarWidth(len(units))
	for i, unit := range units {
		for _, panel := range []struct {
			p    *plot.Plot
			vals map[string]float64
		}{{top, speed[unit]}, {bottom, dist[unit]}} {
			vals := make(plotter.Values, len(dates))
			for j, d := range dates {
				vals[j] = panel.vals[d]
			}
			bars, err := plotter.NewBarChart(vals, barWidth)
			if err != nil {
				return "", fmt.Errorf("average speed bars: %w", err)
			}
			bars.Color = plotutil.Color(i)
			bars.LineStyle.Width = 0
			bars.Offset = barOffset(i, len(units), barWidth)
			panel.p.Add(bars)
			panel.p.Legend.Add("Unit "+unit, bars)
		}
	}
	top.NominalX(dates...)
	bottom.NominalX(dates...)

	return encodeStacked([]*plot.Plot{top, bottom}, width, height*2)
}

// TimeSeries draws one line per vehicle against wall-clock time.
func TimeSeries(field telemetry.Field, series []Series) (string, error) {
	series = nonEmpty(series)
	if len(series) == 0 {
		return "", ErrEmpty
	}

	p := newPlot(field.Label()+" Over Time", "Time", field.Label())
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
	for i, s := range series {
		xys := make(plotter.XYs, len(s.Values))
		for j := range s.Values {
			xys[j].X = float64(s.Times[j].Unix())
			xys[j].Y = s.Values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", fmt.Errorf("time series %s: %w", s.UnitID, err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.label(), line)
	}
	return encode(p, width, height)
}

// Distribution overlays one 30-bin histogram per vehicle.
func Distribution(field telemetry.Field, series []Series) (string, error) {
	series = nonEmpty(series)
	if len(series) == 0 {
		return "", ErrEmpty
	}

	p := newPlot(field.Label()+" Distribution", field.Label(), "Frequency")
	for i, s := range series {
		h, err := plotter.NewHist(plotter.Values(s.Values), 30)
		if err != nil {
			return "", fmt.Errorf("histogram %s: %w", s.UnitID, err)
		}
		h.FillColor = plotutil.Color(i)
		h.LineStyle.Width = 0
		p.Add(h)
		p.Legend.Add(s.label(), h)
	}
	return encode(p, 10*vg.Inch, height)
}

// BoxPlot draws one box per vehicle that has values.
func BoxPlot(field telemetry.Field, series []Series) (string, error) {
	series = nonEmpty(series)
	if len(series) == 0 {
		return "", ErrEmpty
	}

	p := newPlot(field.Label()+" Comparison", "", field.Label())
	names := make([]string, len(series))
	for i, s := range series {
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(s.Values))
		if err != nil {
			return "", fmt.Errorf("box plot %s: %w", s.UnitID, err)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
		names[i] = s.label()
	}
	p.NominalX(names...)
	p.Legend.Top = false
	return encode(p, 10*vg.Inch, height)
}

func nonEmpty(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if !s.empty() {
			out = append(out, s)
		}
	}
	return out
}

// axes returns the sorted distinct dates and unit ids of n table rows.
func axes(n int, row func(i int) (date, unit string)) ([]string, []string) {
	seenDate, seenUnit := map[string]bool{}, map[string]bool{}
	var dates, units []string
	for i := 0; i < n; i++ {
		d, u := row(i)
		if !seenDate[d] {
			seenDate[d] = true
			dates = append(dates, d)
		}
		if !seenUnit[u] {
			seenUnit[u] = true
			units = append(units, u)
		}
	}
	sort.Strings(dates)
	sort.Strings(units)
	return dates, units
}

func groupBarWidth(groups int) vg.Length {
	w := vg.Points(60) / vg.Length(groups)
	if w < vg.Points(4) {
		w = vg.Points(4)
	}
	return w
}

func barOffset(i, n int, w vg.Length) vg.Length {
	return vg.Length(float64(i)-float64(n-1)/2) * w
}

func encodeStacked(plots []*plot.Plot, w, h vg.Length) (string, error) {
	img := vgimg.New(w, h)
	dc := draw.New(img)

	rows := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		rows[i] = []*plot.Plot{p}
	}
	canvases := plot.Align(rows, draw.Tiles{Rows: len(plots), Cols: 1, PadY: vg.Points(8)}, dc)
	for i, p := range plots {
		p.Draw(canvases[i][0])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
