package permission

import (
	"errors"
	"sort"
	"sync"
)

// Requirement is the resource/action pair an operation needs.
type Requirement struct {
	Resource string
	Action   string
}

// Registry is a static table from operation name to the permission it
// requires. Operations are registered during startup; after [Registry.Freeze]
// the table is read-only.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]Requirement
	frozen bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Requirement)}
}

// Register declares that operation requires action on resource.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(operation, resource, action string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if operation == "" || resource == "" || action == "" {
		return errors.New("operation, resource and action are required")
	}
	if _, exists := r.ops[operation]; exists {
		return errors.New("operation already registered")
	}

	r.ops[operation] = Requirement{Resource: resource, Action: action}
	return nil
}

// Requirement returns what operation requires, or false if it was never registered.
func (r *Registry) Requirement(operation string) (Requirement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.ops[operation]
	return req, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether [Registry.Freeze] has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Operations returns the registered operation names in sorted order.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.ops))
	for op := range r.ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
