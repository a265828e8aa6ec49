package seleniumtest

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// TB records failures and skips instead of reporting them. Fatal and Skip
// stop the calling goroutine, so code under test must run through Run.
type TB struct {
	testing.TB

	mu       sync.Mutex
	failed   bool
	skipped  bool
	messages []string
	cleanups []func()
}

// Run calls fn with tb on a new goroutine and waits for it to return or to
// stop through Fatal or Skip.
func Run(tb *TB, fn func(testing.TB)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(tb)
	}()
	<-done
}

func (tb *TB) Helper() {}

func (tb *TB) Log(args ...interface{})                 {}
func (tb *TB) Logf(format string, args ...interface{}) {}

func (tb *TB) Error(args ...interface{}) {
	tb.record(true, false, fmt.Sprint(args...))
}

func (tb *TB) Errorf(format string, args ...interface{}) {
	tb.record(true, false, fmt.Sprintf(format, args...))
}

func (tb *TB) Fatal(args ...interface{}) {
	tb.record(true, false, fmt.Sprint(args...))
	runtime.Goexit()
}

func (tb *TB) Fatalf(format string, args ...interface{}) {
	tb.record(true, false, fmt.Sprintf(format, args...))
	runtime.Goexit()
}

func (tb *TB) Fail() {
	tb.record(true, false, "")
}

func (tb *TB) FailNow() {
	tb.record(true, false, "")
	runtime.Goexit()
}

func (tb *TB) Skip(args ...interface{}) {
	tb.record(false, true, fmt.Sprint(args...))
	runtime.Goexit()
}

func (tb *TB) Skipf(format string, args ...interface{}) {
	tb.record(false, true, fmt.Sprintf(format, args...))
	runtime.Goexit()
}

func (tb *TB) SkipNow() {
	tb.record(false, true, "")
	runtime.Goexit()
}

func (tb *TB) record(failed, skipped bool, msg string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.failed = tb.failed || failed
	tb.skipped = tb.skipped || skipped
	if msg != "" {
		tb.messages = append(tb.messages, msg)
	}
}

func (tb *TB) Failed() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.failed
}

func (tb *TB) Skipped() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.skipped
}

// Output joins every recorded failure and skip message.
func (tb *TB) Output() string {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return strings.Join(tb.messages, "\n")
}

func (tb *TB) Cleanup(fn func()) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.cleanups = append(tb.cleanups, fn)
}

// DoCleanup runs registered cleanups, last registered first, as the testing
// package does when a test completes.
func (tb *TB) DoCleanup() {
	tb.mu.Lock()
	fns := tb.cleanups
	tb.cleanups = nil
	tb.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
