package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidSample = errors.New("invalid sample")

// Batch is an ingestion body: a JSON array of sample documents, or a
// single document.
type Batch []map[string]any

func (b *Batch) UnmarshalJSON(raw []byte) error {
	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		*b = many
		return nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return err
	}
	if one == nil {
		*b = nil
		return nil
	}
	*b = Batch{one}
	return nil
}

type Result struct {
	Inserted int `json:"inserted"`
}

func invalidSample(i int, reason string) error {
	return fmt.Errorf("%w at index %d: %s", ErrInvalidSample, i, reason)
}
