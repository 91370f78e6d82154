// engine/future.go
package engine

import (
	"context"
	"sync"

	"github.com/clinicore/authcore/model"
)

// Future is the asynchronous result of one permission check. It starts in
// the loading state and resolves exactly once; callers may await it, poll
// Result, or subscribe to the loading → resolved transition. Per fail-closed
// policy a loading result means "assume denied".
type Future struct {
	code string

	mu        sync.Mutex
	resolved  bool
	granted   bool
	err       error
	callbacks []func(model.CheckResult)
	done      chan struct{}
}

func newFuture(code string) *Future {
	return &Future{code: code, done: make(chan struct{})}
}

// resolve completes the future. Later calls are ignored.
func (f *Future) resolve(granted bool, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.granted = granted
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	result := f.Result()
	for _, callback := range callbacks {
		callback(result)
	}
}

// Await blocks until the check resolves or the caller's context is done.
// Abandoning a future does not cancel the underlying authority call; the
// result simply is not delivered and resolves to denial for this caller.
func (f *Future) Await(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.granted, f.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Result returns the current state without blocking.
func (f *Future) Result() model.CheckResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := model.CheckResult{Code: f.code}
	if !f.resolved {
		result.Loading = true
		return result
	}
	result.Granted = f.granted
	if f.err != nil {
		result.Error = f.err.Error()
	}
	return result
}

// Subscribe registers a callback for the resolved state. A future that has
// already resolved invokes the callback immediately.
func (f *Future) Subscribe(callback func(model.CheckResult)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	callback(f.Result())
}
