package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveN[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	received := make([]T, 0, n)
	for len(received) < n {
		select {
		case val := <-ch:
			received = append(received, val)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for events, got %d of %d", len(received), n)
		}
	}
	return received
}

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[string](false)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())

	_, ok := event.Latest()
	assert.False(t, ok)
}

func TestChannelEvent_Listen_Notify_InOrder(t *testing.T) {
	event := NewChannelEvent[int](false)

	ch := make(chan int, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	for i := 1; i <= 5; i++ {
		event.Notify(i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, receiveN(t, ch, 5))

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify(6)
	select {
	case val := <-ch:
		t.Errorf("Unexpected value received after unregister: %d", val)
	default:
	}
}

func TestChannelEvent_ReplayLast(t *testing.T) {
	event := NewChannelEvent[string](true)

	early := make(chan string, 10)
	unregisterEarly := event.Listen(early)
	defer unregisterEarly()

	select {
	case val := <-early:
		t.Errorf("Unexpected replay before any Notify: %s", val)
	default:
	}

	event.Notify("first")
	event.Notify("second")
	assert.Equal(t, []string{"first", "second"}, receiveN(t, early, 2))

	late := make(chan string, 10)
	unregisterLate := event.Listen(late)
	defer unregisterLate()
	assert.Equal(t, []string{"second"}, receiveN(t, late, 1))

	latest, ok := event.Latest()
	require.True(t, ok)
	assert.Equal(t, "second", latest)
}

func TestChannelEvent_NoReplay(t *testing.T) {
	event := NewChannelEvent[string](false)
	event.Notify("missed")

	ch := make(chan string, 10)
	unregister := event.Listen(ch)
	defer unregister()

	select {
	case val := <-ch:
		t.Errorf("Unexpected value received: %s", val)
	default:
	}

	// Latest is tracked regardless of replay.
	latest, ok := event.Latest()
	require.True(t, ok)
	assert.Equal(t, "missed", latest)
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_FullChannelDropsValue(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 1)
	unregister := event.Listen(ch)
	defer unregister()

	ch <- "blocking"
	event.Notify("dropped")
	assert.Equal(t, 1, len(ch))
	assert.Equal(t, "blocking", <-ch)

	event.Notify("delivered")
	assert.Equal(t, []string{"delivered"}, receiveN(t, ch, 1))
}

func TestChannelEvent_ConcurrentNotify(t *testing.T) {
	event := NewChannelEvent[int](false)

	channels := make([]chan int, 10)
	for i := range channels {
		channels[i] = make(chan int, 100)
		unregister := event.Listen(channels[i])
		defer unregister()
	}
	assert.Equal(t, 10, event.ListenerCount())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(value int) {
			defer wg.Done()
			event.Notify(value)
		}(i)
	}
	wg.Wait()

	var first []int
	for i, ch := range channels {
		got := receiveN(t, ch, 5)
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, got)
		// Every listener sees the same publish order.
		if i == 0 {
			first = got
		} else {
			assert.Equal(t, first, got)
		}
	}
}
