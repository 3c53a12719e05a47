package mqtt

import (
	"sync"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// FakePublisher records published messages for test assertions. Safe for use
// from the bridge goroutine while a test reads it.
type FakePublisher struct {
	mu sync.Mutex

	live      [][]byte
	states    [][]byte
	completed [][]byte
	closed    bool

	// PublishError, if set, is returned by every publish call.
	PublishError error
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishLive(snapshot live.Snapshot) error {
	payload, err := FormatLivePayload(snapshot)
	if err != nil {
		return err
	}
	return f.record(&f.live, payload)
}

func (f *FakePublisher) PublishState(state session.State) error {
	payload, err := FormatStatePayload(state)
	if err != nil {
		return err
	}
	return f.record(&f.states, payload)
}

func (f *FakePublisher) PublishCompleted(completed session.Completed) error {
	payload, err := FormatCompletedPayload(completed)
	if err != nil {
		return err
	}
	return f.record(&f.completed, payload)
}

func (f *FakePublisher) record(dst *[][]byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	*dst = append(*dst, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// LivePayloads returns a copy of the recorded live payloads.
func (f *FakePublisher) LivePayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.live...)
}

// StatePayloads returns a copy of the recorded state payloads.
func (f *FakePublisher) StatePayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.states...)
}

// CompletedPayloads returns a copy of the recorded completion payloads.
func (f *FakePublisher) CompletedPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.completed...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
