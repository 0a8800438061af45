package stream

import "encoding/json"

const (
	CodeAvailableUnits   = "available units"
	CodeSubscribed       = "subscribed"
	CodeEmptyUnits       = "empty list of units"
	CodeNonExistingUnits = "non existing units"
	CodeNewData          = "new data"
	CodeBadMessage       = "malformed message"
	CodeUnknownEvent     = "unknown event"

	EventSubscribe = "subscribe"
)

// ServerMessage is every frame the server writes to a client.
type ServerMessage struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Units  any    `json:"units,omitempty"`
}

type UnitRef struct {
	Unit string `json:"unit"`
}

// ClientMessage is a frame sent by a client. An empty event means subscribe.
type ClientMessage struct {
	Event string   `json:"event"`
	Units []string `json:"units"`
}

func availableUnits(ids []string) ServerMessage {
	refs := make([]UnitRef, len(ids))
	for i, id := range ids {
		refs[i] = UnitRef{Unit: id}
	}
	return ServerMessage{Status: 200, Code: CodeAvailableUnits, Units: refs}
}

func newData(batch []json.RawMessage) ServerMessage {
	return ServerMessage{Status: 200, Code: CodeNewData, Units: batch}
}
