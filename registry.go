package eventbus

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Subscription describes one handler registration.
type Subscription struct {
	ID        string        `json:"id"`
	EventType string        `json:"event_type"`
	Name      string        `json:"name"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

// registration is the registry's internal record for a subscription.
type registration struct {
	id        string
	eventType string
	name      string
	timeout   time.Duration
	handler   Handler
}

func (r *registration) subscription() Subscription {
	return Subscription{
		ID:        r.id,
		EventType: r.eventType,
		Name:      r.name,
		Timeout:   r.timeout,
	}
}

// Registry maps event types to their ordered handler registrations.
// It is safe for concurrent use.
//
// Handler slices are never modified in place: every Add or Remove installs a
// new slice, so a snapshot taken for an in-flight publish stays stable.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]*registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]*registration),
	}
}

// Add appends h to the handlers of eventType. Adding the same function twice
// creates two independent registrations.
func (r *Registry) Add(eventType string, h Handler, opts ...SubscribeOption) (Subscription, error) {
	if eventType == "" {
		return Subscription{}, ErrEmptyEventType
	}
	if h == nil {
		return Subscription{}, ErrNilHandler
	}
	o := newSubscribeOptions(opts...)

	reg := &registration{
		id:        NewID(),
		eventType: eventType,
		name:      o.name,
		timeout:   o.timeout,
		handler:   Chain(h, o.middlewares...),
	}
	if reg.name == "" {
		reg.name = funcName(h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.handlers[eventType]
	next := make([]*registration, len(current), len(current)+1)
	copy(next, current)
	r.handlers[eventType] = append(next, reg)
	return reg.subscription(), nil
}

// Remove deletes the registration with the given ID.
// Returns false if no such registration exists.
func (r *Registry) Remove(eventType, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.handlers[eventType]
	idx := slices.IndexFunc(current, func(reg *registration) bool {
		return reg.id == id
	})
	if idx < 0 {
		return false
	}
	if len(current) == 1 {
		delete(r.handlers, eventType)
		return true
	}
	r.handlers[eventType] = slices.Concat(current[:idx], current[idx+1:])
	return true
}

// RemoveAll deletes every registration for eventType and returns how many
// were removed.
func (r *Registry) RemoveAll(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.handlers[eventType])
	delete(r.handlers, eventType)
	return n
}

// Clear deletes all registrations
func (r *Registry) Clear() {
	r.mu.Lock()
	r.handlers = make(map[string][]*registration)
	r.mu.Unlock()
}

// Handlers returns the registrations for eventType in subscription order.
func (r *Registry) Handlers(eventType string) []Subscription {
	regs := r.snapshot(eventType)
	if len(regs) == 0 {
		return nil
	}
	result := make([]Subscription, len(regs))
	for i, reg := range regs {
		result[i] = reg.subscription()
	}
	return result
}

// Count returns the number of registrations for eventType
func (r *Registry) Count(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType])
}

// EventTypes returns the event types that have at least one registration, sorted.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	r.mu.RUnlock()
	sort.Strings(types)
	return types
}

// Len returns the total number of registrations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, regs := range r.handlers {
		n += len(regs)
	}
	return n
}

// snapshot returns the current registration slice for eventType.
// The slice must be treated as read-only.
func (r *Registry) snapshot(eventType string) []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[eventType]
}
