package engine

import (
	"sync"

	"go.uber.org/multierr"
)

// faultCollector aggregates per-record UserCallableFailed faults
// (recoverable; execution continues) alongside any fault promoted to a
// fatal abort. errgroup stops the goroutines; faultCollector remembers
// why.
type faultCollector struct {
	mu     sync.Mutex
	err    error
	fatal  bool
	cancel func()
}

func newFaultCollector(cancel func()) *faultCollector {
	return &faultCollector{cancel: cancel}
}

// recordRecoverable appends a fault that poisons one record but does
// not stop the run.
func (f *faultCollector) recordRecoverable(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	f.err = multierr.Append(f.err, err)
	f.mu.Unlock()
}

// recordFatal appends a fault and cancels the run.
func (f *faultCollector) recordFatal(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	f.err = multierr.Append(f.err, err)
	f.fatal = true
	f.mu.Unlock()
	f.cancel()
}

func (f *faultCollector) result() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
