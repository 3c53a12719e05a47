package go_func_utils

import (
	"log"
	"runtime/debug"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with the
// goroutine name and stack before being re-raised, since the terminal UI owns
// stdout and would otherwise swallow the crash output.
func SafeGo(logger *log.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("%s: PANIC: %v\n%s", name, r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}

// Recover is SafeGo's recover step for callers that manage their own goroutine
// and prefer to log and continue. It must be deferred directly.
func Recover(logger *log.Logger, name string) {
	if r := recover(); r != nil {
		logger.Printf("%s: recovered panic: %v\n%s", name, r, debug.Stack())
	}
}
