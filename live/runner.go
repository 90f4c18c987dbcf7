package live

import (
	"log"
	"sync"
	"time"
)

const (
	defaultRetryBase  = time.Second
	defaultRetryMax   = 5 * time.Second
	defaultMaxRetries = 3
)

// Runner establishes live queries that survive the failure modes of an
// index-based document backend:
//
//   - missing index: silently re-issue the query without the sort clause and
//     sort each batch in memory, for the lifetime of the run;
//   - transient network failure: retry the original attempt after
//     min(base*retryCount, max), up to maxRetries, then deliver one empty
//     batch so the consumer renders an empty-but-stable state;
//   - internal backend error: no retry, one empty batch, logged once.
//
// No failure path escapes Run; every outcome resolves into fallback, bounded
// retry, or degrade-to-empty.
type Runner struct {
	store   Store
	monitor *Monitor

	retryBase  time.Duration
	retryMax   time.Duration
	maxRetries int
}

// NewRunner wires a runner to its store. The monitor may be nil when no
// connection gating is needed (tests, in-process stores).
func NewRunner(store Store, monitor *Monitor) *Runner {
	return &Runner{
		store:      store,
		monitor:    monitor,
		retryBase:  defaultRetryBase,
		retryMax:   defaultRetryMax,
		maxRetries: defaultMaxRetries,
	}
}

// Run starts a live query and streams result batches to onData. The returned
// teardown marks the run inactive, so late callbacks are discarded rather
// than delivered, and releases the underlying subscription.
func (r *Runner) Run(spec Spec, onData func([]Document)) func() {
	if r.monitor != nil && r.monitor.Degraded() {
		onData([]Document{})
		return func() {}
	}

	rn := &runState{
		runner: r,
		spec:   spec,
		onData: onData,
		active: true,
	}
	rn.attempt()
	return rn.teardown
}

type runState struct {
	runner *Runner
	spec   Spec
	onData func([]Document)

	mu             sync.Mutex
	active         bool
	fallback       bool
	retries        int
	unsub          func()
	retryTimer     *time.Timer
	loggedInternal bool
	stopped        bool
}

func (rn *runState) attempt() {
	rn.mu.Lock()
	if !rn.active {
		rn.mu.Unlock()
		return
	}
	spec := rn.spec
	if rn.fallback {
		spec = spec.WithoutOrder()
	}
	rn.mu.Unlock()

	unsub, err := rn.runner.store.Subscribe(spec, rn.deliver, rn.handleError)
	if err != nil {
		rn.handleError(err)
		return
	}

	rn.mu.Lock()
	if !rn.active {
		rn.mu.Unlock()
		unsub()
		return
	}
	rn.unsub = unsub
	rn.retries = 0
	rn.mu.Unlock()
}

func (rn *runState) deliver(docs []Document) {
	rn.mu.Lock()
	if !rn.active {
		rn.mu.Unlock()
		return
	}
	sortNeeded := rn.fallback && rn.spec.OrderBy != ""
	orderBy := rn.spec.OrderBy
	rn.mu.Unlock()

	if sortNeeded {
		SortByField(docs, orderBy)
	}
	rn.onData(docs)
}

func (rn *runState) handleError(err error) {
	rn.mu.Lock()
	if !rn.active {
		rn.mu.Unlock()
		return
	}

	switch Classify(err) {
	case ClassIndexMissing:
		// Not surfaced to the caller; the unordered path stays engaged for
		// the rest of this run.
		if rn.fallback {
			rn.mu.Unlock()
			rn.stopEmpty()
			return
		}
		rn.fallback = true
		rn.releaseLocked()
		rn.mu.Unlock()
		rn.attempt()

	case ClassTransient:
		rn.retries++
		if rn.retries > rn.runner.maxRetries {
			rn.mu.Unlock()
			rn.stopEmpty()
			return
		}
		delay := rn.runner.retryBase * time.Duration(rn.retries)
		if delay > rn.runner.retryMax {
			delay = rn.runner.retryMax
		}
		rn.releaseLocked()
		rn.retryTimer = time.AfterFunc(delay, rn.attempt)
		rn.mu.Unlock()

	default:
		if !rn.loggedInternal {
			rn.loggedInternal = true
			log.Printf("live: unrecoverable backend error on %s: %v", rn.spec.Collection, err)
		}
		rn.mu.Unlock()
		rn.stopEmpty()
	}
}

// stopEmpty degrades the run: one empty delivery, then no further activity.
func (rn *runState) stopEmpty() {
	rn.mu.Lock()
	if !rn.active || rn.stopped {
		rn.mu.Unlock()
		return
	}
	rn.stopped = true
	rn.active = false
	rn.releaseLocked()
	rn.mu.Unlock()

	rn.onData([]Document{})
}

func (rn *runState) teardown() {
	rn.mu.Lock()
	rn.active = false
	rn.releaseLocked()
	rn.mu.Unlock()
}

// releaseLocked cancels any pending retry and drops the current
// subscription. Caller holds rn.mu.
func (rn *runState) releaseLocked() {
	if rn.retryTimer != nil {
		rn.retryTimer.Stop()
		rn.retryTimer = nil
	}
	if rn.unsub != nil {
		unsub := rn.unsub
		rn.unsub = nil
		go unsub()
	}
}
