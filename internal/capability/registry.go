// Package capability tracks the native capabilities the shell offers to
// its front end (dialogs, filesystem, process control and so on).
package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var (
	// ErrEmptyName is returned when registering a capability without a name.
	ErrEmptyName = errors.New("capability: empty name")

	// ErrDuplicate is returned when a capability name is registered twice.
	ErrDuplicate = errors.New("capability: already registered")
)

// Capability is one named plugin exposed to the front end.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Defaults returns the capabilities every shell registers.
func Defaults() []Capability {
	return []Capability{
		{Name: "dialog", Description: "Native open/save/message dialogs"},
		{Name: "fs", Description: "Scoped filesystem access"},
		{Name: "process", Description: "Exit or restart the application"},
		{Name: "shell", Description: "Open URLs and files with the system handler"},
		{Name: "http", Description: "HTTP client not bound by browser CORS"},
		{Name: "window", Description: "Window management"},
	}
}

// Registry holds registered capabilities in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Capability
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Capability)}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
	}
	r.byName[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// MustRegister registers each capability and panics on error. It is meant
// for static setup code.
func (r *Registry) MustRegister(cs ...Capability) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns the registered capabilities in registration order.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// ServeHTTP writes the registered capabilities as a JSON array.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(r.List())
}
