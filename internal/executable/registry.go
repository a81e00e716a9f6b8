package executable

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownExecutable is returned when resolving a name nothing was
// registered under.
var ErrUnknownExecutable = errors.New("executable is not registered")

// Info describes a registered executable for catalog listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Registry holds the executables a host can run, by name.
type Registry struct {
	mu          sync.RWMutex
	executables map[string]Executable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executables: make(map[string]Executable),
	}
}

// Register adds e under name, replacing any previous registration.
func (r *Registry) Register(name string, e Executable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executables[name] = e
}

// Resolve returns the executable registered under name.
func (r *Registry) Resolve(name string) (Executable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExecutable, name)
	}
	return e, nil
}

// List returns information about all registered executables, sorted by
// name for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.executables))
	for name, e := range r.executables {
		info := Info{Name: name}
		if d, ok := e.(Describer); ok {
			info.Description = d.Description()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
