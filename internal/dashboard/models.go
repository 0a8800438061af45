package dashboard

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/IoTeC-ecosystems/backend-app/internal/telemetry"
)

const (
	MsgConnected     = "connected"
	MsgNoData        = "No data available for the selected parameters."
	MsgMissingField  = "No field selected."
	MsgInvalidTime   = "Invalid time format."
	MsgInvalidBody   = "Invalid request body."
	StatusOK         = 200
	StatusBadRequest = 400
)

var (
	ErrNoData       = errors.New("no data")
	ErrMissingField = errors.New("no field selected")
	ErrInvalidTime  = errors.New("invalid time format")
)

// Envelope wraps every dashboard response. The HTTP status stays 200; the
// outcome is carried in Status.
type Envelope struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

// UnitList accepts either a single id or a list of ids.
type UnitList []string

func (u *UnitList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*u = nil
		} else {
			*u = UnitList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*u = many
	return nil
}

type Request struct {
	UnitsID   UnitList `json:"units_id"`
	UnitID    UnitList `json:"unit_id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Field     string   `json:"field"`
}

// Query is a parsed Request.
type Query struct {
	Units  []string
	Window telemetry.Window
	Field  telemetry.Field
}

func (r Request) units() []string {
	if len(r.UnitsID) > 0 {
		return r.UnitsID
	}
	return r.UnitID
}

func (r Request) Query() (Query, error) {
	start, err := parseTime(r.StartTime)
	if err != nil {
		return Query{}, err
	}
	end, err := parseTime(r.EndTime)
	if err != nil {
		return Query{}, err
	}
	return Query{Units: r.units(), Window: telemetry.Window{Start: start, End: end}}, nil
}

// FieldQuery is Query for routes that chart a single field. A field outside
// the known set is reported as no data.
func (r Request) FieldQuery() (Query, error) {
	q, err := r.Query()
	if err != nil {
		return Query{}, err
	}
	if strings.TrimSpace(r.Field) == "" {
		return Query{}, ErrMissingField
	}
	f, err := telemetry.ParseField(r.Field)
	if err != nil {
		return Query{}, ErrNoData
	}
	q.Field = f
	return q, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	telemetry.DateLayout,
}

// parseTime reads an ISO-8601 instant. Values without an offset are UTC; an
// empty value is an open bound.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTime
}
