// Package stepexec resolves a Job's declared stepExecutorName to a
// concrete Step implementation via a factory-closure registry, a
// compile-time-checked replacement for reflective class lookup,
// generalized from one-handler-per-job-type to one-Step-per-executor-name.
package stepexec

import (
	"fmt"
	"sync"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Step is the contract every saga step implements.
type Step interface {
	Execute(ctx *runtime.Context) (*sagatypes.StepCompletionState, error)
	Compensate(ctx *runtime.Context) (*sagatypes.StepCompletionState, error)
}

// Factory constructs a fresh Step instance. Factories are expected to be
// cheap and side-effect-free; any panic during construction is recovered
// and reported as a StepInitializationError, the same way a reflective
// "cannot construct" failure would be reported.
type Factory func() Step

// Registry maps stepExecutorName -> Factory, populated once at process
// start. Concurrency-safe for lookups from many orchestrator goroutines.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name. Duplicate registration is a
// startup-time wiring error: failing fast beats silently letting
// dispatch become ambiguous.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("stepexec: registry: empty name")
	}
	if f == nil {
		return fmt.Errorf("stepexec: registry: nil factory for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("stepexec: registry: %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Has reports whether name is resolvable, used by ValidatePlan to fail
// fast on a misconfigured job.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs the Step registered under name. A never-registered
// name returns a StepInitializationError wrapping ErrClassNotFound; a
// panicking factory is recovered into a StepInitializationError wrapping
// the recovered value — "cannot resolve" and "cannot construct" collapse
// into one Go error type distinguished only by its cause (see
// internal/errtax.Cause).
func (r *Registry) Resolve(name string) (step Step, err error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errtax.NewStepInitializationError(
			fmt.Sprintf("Could not find class: %s", name), errtax.ErrClassNotFound)
	}
	defer func() {
		if rec := recover(); rec != nil {
			step = nil
			err = errtax.NewStepInitializationError(
				fmt.Sprintf("step factory for %q panicked during construction", name),
				fmt.Errorf("%v", rec))
		}
	}()
	return f(), nil
}
