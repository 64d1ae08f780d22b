package web

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHubReplaysHistoryThenLive(t *testing.T) {
	h := NewEventHub()
	h.Publish(Event{Type: "request", Message: "one"})
	h.Publish(Event{Type: "answer", Message: "two"})

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	require.Equal(t, "one", (<-events).Message)
	require.Equal(t, "two", (<-events).Message)

	h.Publish(Event{Type: "tool_call", Message: "three"})
	e := <-events
	require.Equal(t, "three", e.Message)
	require.NotEmpty(t, e.Time)
}

func TestHubHistoryIsBounded(t *testing.T) {
	h := NewEventHub()
	for i := 0; i < maxHistory+25; i++ {
		h.Publish(Event{Type: "x"})
	}
	require.Len(t, h.History(), maxHistory)
}

func TestHubListener(t *testing.T) {
	h := NewEventHub()
	h.Listener()("tool_result", "preview", map[string]any{"tool": "web_search"})

	hist := h.History()
	require.Len(t, hist, 1)
	require.Equal(t, "tool_result", hist[0].Type)
	require.Equal(t, "preview", hist[0].Message)
	require.Equal(t, map[string]any{"tool": "web_search"}, hist[0].Data)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewEventHub()
	events, unsubscribe := h.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	require.False(t, ok)
	h.Publish(Event{Type: "after"})
}
