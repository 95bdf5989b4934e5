package library

import (
	"github.com/sasha-s/go-deadlock"
)

// WatchExecution arms go-deadlock's watchdog for a section of code that should never stall,
// such as a network write. The returned func must be called when the section ends; if it is
// not called within deadlock.Opts.DeadlockTimeout the stuck goroutine is reported.
func WatchExecution() func() {
	mu := deadlock.Mutex{}
	mu.Lock()
	go func() {
		mu.Lock()
		mu.Unlock()
	}()
	return func() {
		mu.Unlock()
	}
}
