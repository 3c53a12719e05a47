package ui

import (
	"strings"
	"sync"
)

// LogTail is an io.Writer that keeps the last lines written to it, so the
// dashboard can show recent log output next to the metrics.
type LogTail struct {
	mu      sync.Mutex
	lines   []string
	partial string
	max     int
	version uint64
}

func NewLogTail(maxLines int) *LogTail {
	if maxLines <= 0 {
		maxLines = 200
	}
	return &LogTail{max: maxLines}
}

func (t *LogTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text := t.partial + string(p)
	parts := strings.Split(text, "\n")
	t.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		t.lines = append(t.lines, line)
	}
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = append(t.lines[:0:0], t.lines[over:]...)
	}
	t.version++
	return len(p), nil
}

// Tail returns up to n of the most recent complete lines and a version that
// changes on every write.
func (t *LogTail) Tail(n int) ([]string, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := max(0, len(t.lines)-n)
	return append([]string(nil), t.lines[start:]...), t.version
}
