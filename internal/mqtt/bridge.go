package mqtt

import (
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// DefaultLiveInterval limits how often live snapshots are published.
const DefaultLiveInterval = time.Second

// SnapshotFeed delivers merged live snapshots.
type SnapshotFeed interface {
	ListenToSnapshots(ch chan<- live.Snapshot) func()
}

// SessionFeed delivers session states and completions.
type SessionFeed interface {
	ListenToState(ch chan<- session.State) func()
	ListenToCompleted(callback func(session.Completed)) func()
}

// Bridge forwards the live and session feeds to a Publisher from its own
// goroutine. Live snapshots are coalesced to one per interval.
type Bridge struct {
	logger    *log.Logger
	publisher Publisher
	interval  time.Duration

	snapshots chan live.Snapshot
	states    chan session.State
	completed chan session.Completed

	unsubscribe []func()

	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewBridge subscribes to both feeds and starts publishing.
func NewBridge(publisher Publisher, snapshots SnapshotFeed, sessions SessionFeed, logger *log.Logger, interval time.Duration) *Bridge {
	if publisher == nil {
		panic("MQTTBridge: publisher cannot be nil")
	}
	if snapshots == nil || sessions == nil {
		panic("MQTTBridge: feeds cannot be nil")
	}
	if logger == nil {
		panic("MQTTBridge: logger cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultLiveInterval
	}

	b := &Bridge{
		logger:    logger,
		publisher: publisher,
		interval:  interval,
		snapshots: make(chan live.Snapshot, 16),
		states:    make(chan session.State, 16),
		completed: make(chan session.Completed, 4),
		doneChan:  make(chan struct{}),
	}

	b.unsubscribe = append(b.unsubscribe,
		snapshots.ListenToSnapshots(b.snapshots),
		sessions.ListenToState(b.states),
		sessions.ListenToCompleted(b.onCompleted),
	)

	b.wg.Add(1)
	go_func_utils.SafeGo(logger, "MQTTBridge", func() { b.run() })

	return b
}

// onCompleted runs on the controller goroutine and must not block it.
func (b *Bridge) onCompleted(c session.Completed) {
	select {
	case b.completed <- c:
	default:
		b.logger.Printf("MQTTBridge: Dropping completion %s, queue full", c.ID)
	}
}

func (b *Bridge) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var pending live.Snapshot
	hasPending := false

	for {
		select {
		case <-b.doneChan:
			b.logger.Printf("MQTTBridge: Goroutine exiting")
			return

		case snap := <-b.snapshots:
			pending = snap
			hasPending = true

		case <-ticker.C:
			if !hasPending {
				continue
			}
			hasPending = false
			if err := b.publisher.PublishLive(pending); err != nil {
				b.logger.Printf("MQTTBridge: Failed to publish live snapshot: %v", err)
			}

		case state := <-b.states:
			if err := b.publisher.PublishState(state); err != nil {
				b.logger.Printf("MQTTBridge: Failed to publish state: %v", err)
			}

		case c := <-b.completed:
			if err := b.publisher.PublishCompleted(c); err != nil {
				b.logger.Printf("MQTTBridge: Failed to publish completion %s: %v", c.ID, err)
			} else {
				b.logger.Printf("MQTTBridge: Published completion %s", c.ID)
			}
		}
	}
}

// Shutdown unsubscribes, stops the goroutine and closes the publisher. Safe
// to call multiple times.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		for _, unsubscribe := range b.unsubscribe {
			unsubscribe()
		}
		close(b.doneChan)
		b.wg.Wait()
		if err := b.publisher.Close(); err != nil {
			b.logger.Printf("MQTTBridge: Failed to close publisher: %v", err)
		}
	})
}
