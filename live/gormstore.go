package live

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// GormStore adapts the gorm database to the Store interface and adds live
// subscriptions through an in-process change hub: every write path calls
// Touch with the collection name, which re-runs and re-delivers each
// subscription watching that collection.
type GormStore struct {
	db  *gorm.DB
	hub *hub
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, hub: newHub()}
}

// Touch signals that documents in the collection changed. Writers call this
// after every create/update so subscribers see the new state.
func (s *GormStore) Touch(collection string) {
	s.hub.touch(collection)
}

func (s *GormStore) Query(spec Spec) ([]Document, error) {
	q := s.db.Table(spec.Collection)
	for field, value := range spec.Filters {
		q = q.Where(field+" = ?", value)
	}
	if spec.OrderBy != "" {
		q = q.Order(spec.OrderBy + " ASC")
	}

	var rows []map[string]interface{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	docs := make([]Document, len(rows))
	for i, row := range rows {
		docs[i] = Document(row)
	}
	return docs, nil
}

func (s *GormStore) Subscribe(spec Spec, onData func([]Document), onError func(error)) (func(), error) {
	docs, err := s.Query(spec)
	if err != nil {
		return nil, err
	}
	onData(docs)

	return s.hub.watch(spec.Collection, func() {
		docs, err := s.Query(spec)
		if err != nil {
			onError(err)
			return
		}
		onData(docs)
	}), nil
}

// hub fans a collection change signal out to its watchers.
type hub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]func()
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[int]func())}
}

// watch registers fn to run on every touch of the collection. The returned
// function removes the watcher; calling it more than once is harmless.
func (h *hub) watch(collection string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[int]func())
	}
	id := h.nextID
	h.nextID++
	h.watchers[collection][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[collection], id)
	}
}

func (h *hub) touch(collection string) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.watchers[collection]))
	for _, fn := range h.watchers[collection] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	// Run outside the lock so a watcher can unsubscribe itself.
	for _, fn := range fns {
		fn()
	}
}
