package live

import (
	"log"
	"sync"
)

// Registry keeps at most one live subscription per logical key. Subscribing
// under an existing key tears the old listener down first, so repeated
// subscriptions from the same consumer never leak. After Close, Subscribe
// becomes a no-op: no new listeners start during teardown.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]func()
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]func())}
}

// Subscribe tears down any listener stored under key, then invokes factory
// and stores the teardown it returns. A factory error is logged and leaves
// no entry behind.
func (r *Registry) Subscribe(key string, factory func() (func(), error)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if old, ok := r.subs[key]; ok {
		delete(r.subs, key)
		r.mu.Unlock()
		runTeardown(key, old)
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()

	teardown, err := factory()
	if err != nil {
		log.Printf("live: subscribe %q failed: %v", key, err)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		runTeardown(key, teardown)
		return
	}
	r.subs[key] = teardown
	r.mu.Unlock()
}

// Unsubscribe removes and tears down the listener for key, if any.
func (r *Registry) Unsubscribe(key string) {
	r.mu.Lock()
	teardown, ok := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()

	if ok {
		runTeardown(key, teardown)
	}
}

// UnsubscribeAll tears down every stored listener and clears the table. One
// failing teardown must not prevent the others from running.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]func())
	r.mu.Unlock()

	for key, teardown := range subs {
		runTeardown(key, teardown)
	}
}

// Len reports the number of live listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close sets the shutdown flag and tears down all listeners.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.UnsubscribeAll()
}

func runTeardown(key string, teardown func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("live: teardown %q panicked: %v", key, rec)
		}
	}()
	if teardown != nil {
		teardown()
	}
}
