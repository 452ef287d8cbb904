// Package scene connects viewers that show the same volume. Each viewer
// publishes its committed state under a structured key, and subscribes to
// all keys of its scene to draw where its peers are.
package scene

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var (
	ErrBusClosed      = errors.New("scene: bus is closed")
	ErrNilHandler     = errors.New("scene: handler cannot be nil")
	ErrInvalidSceneID = errors.New("scene: invalid scene id")
)

// Well-known channel names.
const (
	StateName  = "state"
	SetPosName = "setpos"
)

var sceneIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateID checks that id can be used as a scene id. Ids are limited to
// ASCII letters, digits, '_', '.' and '-' because they appear unescaped as a
// path segment of the HTTP api (/api/scene/:scene/state and
// /api/scene/:scene/setpos). Ids such as "my scene" or "a/b" are rejected
// with ErrInvalidSceneID.
func ValidateID(id string) error {
	if !sceneIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSceneID, id)
	}
	return nil
}

// Key identifies one published value.
type Key struct {
	Scene   string `json:"scene"`
	Axis    int    `json:"axis"`
	Context string `json:"context"`
	Name    string `json:"name"`
}

// Filter selects keys by scene and name, with any axis and context.
type Filter struct {
	Scene string
	Name  string
}

// Matches reports whether k falls under f.
func (f Filter) Matches(k Key) bool {
	return k.Scene == f.Scene && k.Name == f.Name
}

// Entry is a published value with its key.
type Entry struct {
	Key   Key
	Value interface{}
}

// Dispatcher schedules a delivery. The viewer event loop is a Dispatcher,
// which makes every delivery a separate event.
type Dispatcher func(fn func())

type subscription struct {
	filter  Filter
	handler func(Entry)
}

// Bus is the registry of published values. It is safe for concurrent use;
// handlers are never called with the lock held.
type Bus struct {
	mu       sync.RWMutex
	entries  map[Key]interface{}
	subs     map[uint64]*subscription
	nextID   uint64
	dispatch Dispatcher
	closed   bool
}

// NewBus creates a bus. A nil dispatcher delivers synchronously from
// Publish.
func NewBus(dispatch Dispatcher) *Bus {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Bus{
		entries:  make(map[Key]interface{}),
		subs:     make(map[uint64]*subscription),
		dispatch: dispatch,
	}
}

// Publish replaces the value stored under key and notifies matching
// subscribers.
func (b *Bus) Publish(key Key, value interface{}) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.entries[key] = value

	ids := make([]uint64, 0, len(b.subs))
	for id, s := range b.subs {
		if s.filter.Matches(key) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(Entry), len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[id].handler
	}
	b.mu.Unlock()

	entry := Entry{Key: key, Value: value}
	for _, h := range handlers {
		h := h
		b.dispatch(func() { h(entry) })
	}
	return nil
}

// Get returns the value stored under key.
func (b *Bus) Get(key Key) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.entries[key]
	return v, ok
}

// Snapshot returns all entries matching f, ordered by context then axis.
func (b *Bus) Snapshot(f Filter) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Entry
	for k, v := range b.entries {
		if f.Matches(k) {
			out = append(out, Entry{Key: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Context != out[j].Key.Context {
			return out[i].Key.Context < out[j].Key.Context
		}
		return out[i].Key.Axis < out[j].Key.Axis
	})
	return out
}

// Subscribe registers handler for every future publication matching f.
// The returned function cancels the subscription.
func (b *Bus) Subscribe(f Filter, handler func(Entry)) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{filter: f, handler: handler}

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// Scenes lists the scene ids that have at least one entry.
func (b *Bus) Scenes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range b.entries {
		seen[k.Scene] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Close drops all subscribers. Later calls to Publish and Subscribe fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
