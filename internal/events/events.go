package events

import (
	"encoding/json"
	"time"
)

// Event types published over the SSE stream.
const (
	TypePing = "ping"

	TypeSessionStarted = "session_started"
	TypeSessionEnded   = "session_ended"
	TypeTokenRefreshed = "token_refreshed"

	TypeApplicationAdded   = "application_added"
	TypeApplicationUpdated = "application_updated"
	TypeApplicationDeleted = "application_deleted"

	TypeProfileUpdated = "profile_updated"
	TypeMailSuggestion = "mail_suggestion"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Emit publishes an enveloped event to all subscribers.
func (h *Hub) Emit(reqID, typ string, data any) {
	h.Publish(MakeEvent(reqID, typ, 1, data))
}
