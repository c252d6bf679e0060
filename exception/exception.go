package exception

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mezonai/confheight/logx"
)

// PanicCounter is the minimal metrics capability SafeGo needs. Satisfied
// by *monitoring.Metrics; kept as a narrow interface here instead of an
// import of the monitoring package so callers can pass nil-safe fakes in
// tests.
type PanicCounter interface {
	IncreasePanicCount()
}

// SafeGo runs fn in a new goroutine, recovering and logging any panic
// instead of letting it crash the process.
func SafeGo(name string, counter PanicCounter, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if counter != nil {
					counter.IncreasePanicCount()
				}
				logx.Error("PANIC", fmt.Sprintf("panic in %s: %v\n%s", name, r, debug.Stack()))
			}
		}()
		fn()
	}()
}

// SafeGoWithPanic runs fn in a new goroutine. A panic is logged and
// counted, then the process exits: the confirmation-height worker is a
// single-consumer loop, and a half-run traversal left for dead would
// silently stall confirmation height for every account behind it.
func SafeGoWithPanic(name string, counter PanicCounter, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if counter != nil {
					counter.IncreasePanicCount()
				}
				logx.Error("PANIC", fmt.Sprintf("panic in %s: %v\n%s", name, r, debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}
