package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()

	h.Emit("req1", TypeApplicationAdded, map[string]any{"id": "a1"})

	for _, ch := range []chan string{a, b} {
		var e Event
		require.NoError(t, json.Unmarshal([]byte(<-ch), &e))
		assert.Equal(t, TypeApplicationAdded, e.Type)
		assert.Equal(t, "req1", e.RequestID)
	}

	h.Unsubscribe(a)
	h.Unsubscribe(b)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// fill the buffer and keep publishing; Publish must never block
	for i := 0; i < chanBuffer*3; i++ {
		h.Publish("evt")
	}
	assert.Len(t, ch, chanBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}
