package lapp

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"
)

// sleepImports builds the invoke_sleep closure: it blocks the calling
// goroutine for the requested duration via time.NewTimer, honoring ctx
// cancellation so an unloaded lapp's pending sleeps don't linger. Per
// spec.md §4.7 this must not block the host's executor — in Go that means
// not blocking anything but this one goroutine, which wazero already runs
// off the caller's own goroutine rather than a shared event loop thread.
func sleepImports() func(context.Context, api.Module, uint64) {
	return func(ctx context.Context, mod api.Module, millis uint64) {
		timer := time.NewTimer(time.Duration(millis) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}
