package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextEmitter_Iteration(t *testing.T) {
	var buf bytes.Buffer
	e := &TextEmitter{W: &buf}
	e.Emit(Event{Type: "iteration", Iteration: 2, Max: 5, Message: "Running tests..."})
	assert.Equal(t, "[iteration 2/5] Running tests...\n", buf.String())
}

func TestTextEmitter_Provider(t *testing.T) {
	var buf bytes.Buffer
	e := &TextEmitter{W: &buf}
	e.Emit(Event{Type: "provider", Iteration: 1, Max: 3, Provider: "anthropic", Message: "responded in 2.1s"})
	assert.Contains(t, buf.String(), "anthropic: responded in 2.1s")
}

func TestTextEmitter_UnknownTypeSilent(t *testing.T) {
	var buf bytes.Buffer
	e := &TextEmitter{W: &buf}
	e.Emit(Event{Type: "done"})
	assert.Empty(t, buf.String())
}

func TestHub_FansOut(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	defer cancel1()
	defer cancel2()

	h.Emit(Event{Type: "info", Message: "hello"})

	ev1 := <-ch1
	ev2 := <-ch2
	assert.Equal(t, "hello", ev1.Message)
	assert.Equal(t, "hello", ev2.Message)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Emitting after unsubscribe must not panic.
	h.Emit(Event{Type: "info"})
}

func TestHub_CloseDrainsSubscribers(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe()
	h.Close()

	_, open := <-ch
	require.False(t, open)

	// Subscribing after close yields a closed channel.
	ch2, _ := h.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe()
	defer cancel()

	// Fill well past the channel buffer; Emit must never block.
	for i := 0; i < 200; i++ {
		h.Emit(Event{Type: "info", Message: "x"})
	}
}
