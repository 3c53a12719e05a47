package events

// ChannelEvent fans values out to registered channels.
// Sends never block the publisher: a listener whose buffer is full misses that value.
type ChannelEvent[T any] struct {
	set listenerSet[T]
}

// NewChannelEvent creates a ChannelEvent. With replayLast set, a new listener is
// sent the most recent value immediately if one has been published.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{set: newListenerSet[T](replayLast)}
}

// Listen registers ch and returns a function that unregisters it.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}
	send := func(value T) {
		select {
		case ch <- value:
		default:
		}
	}
	id := e.set.subscribe(send)
	return func() { e.set.remove(id) }
}

// Notify publishes value to every registered channel, in publish order.
func (e *ChannelEvent[T]) Notify(value T) {
	e.set.notify(value)
}

// Latest returns the most recently published value.
func (e *ChannelEvent[T]) Latest() (T, bool) {
	return e.set.latest()
}

// ListenerCount returns the number of registered channels.
func (e *ChannelEvent[T]) ListenerCount() int {
	return e.set.count()
}
