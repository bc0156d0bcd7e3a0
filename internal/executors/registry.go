package executors

import (
	"sort"
	"sync"

	"github.com/rendis/stepflow/pkg/schema"
)

// Registry is a thread-safe mapping from executor type strings to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register adds an executor under its name. Registering a name that already
// exists overwrites the previous executor; the returned bool reports whether
// an overwrite happened.
func (r *Registry) Register(ex Executor) (bool, error) {
	if ex == nil {
		return false, schema.NewError(schema.ErrCodeValidation, "executor is nil")
	}
	name := ex.Name()
	if name == "" {
		return false, schema.NewError(schema.ErrCodeValidation, "executor name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.executors[name]
	r.executors[name] = ex
	return replaced, nil
}

// Get retrieves an executor by type name.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.executors[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecutorNotFound, "executor type %q not registered", name)
	}
	return ex, nil
}

// Has checks whether an executor type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[name]
	return ok
}

// List returns info for all registered executors, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.executors))
	for _, ex := range r.executors {
		infos = append(infos, Info{Name: ex.Name(), Description: ex.Description()})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Count returns the number of registered executors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}
