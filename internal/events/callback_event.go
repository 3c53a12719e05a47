package events

// CallbackEvent calls registered functions synchronously on Notify.
// Callbacks run on the publisher's goroutine and must not call Notify on the same event.
type CallbackEvent[T any] struct {
	set listenerSet[T]
}

// NewCallbackEvent creates a CallbackEvent. With replayLast set, a new listener is
// called with the most recent value immediately if one has been published.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{set: newListenerSet[T](replayLast)}
}

// Listen registers callback and returns a function that unregisters it.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}
	id := e.set.subscribe(callback)
	return func() { e.set.remove(id) }
}

// Notify calls every registered callback with value.
func (e *CallbackEvent[T]) Notify(value T) {
	e.set.notify(value)
}

// Latest returns the most recently published value.
func (e *CallbackEvent[T]) Latest() (T, bool) {
	return e.set.latest()
}

// ListenerCount returns the number of registered callbacks.
func (e *CallbackEvent[T]) ListenerCount() int {
	return e.set.count()
}
