package memory

import (
	"sync"

	"github.com/wippyai/native-abi/errors"
)

// Scope is an explicit lifetime for native resources. Cleanups
// registered with Defer run in reverse order exactly once when the
// scope closes; a second Close and any Defer after close fail with a
// lifecycle error.
type Scope struct {
	mu       sync.Mutex
	cleanups []func()
	closed   bool
	global   bool
}

// NewScope returns an open scope.
func NewScope() *Scope {
	return &Scope{}
}

var globalScope = &Scope{global: true}

// GlobalScope returns the process-wide scope that never closes. It
// owns canonical shared values.
func GlobalScope() *Scope {
	return globalScope
}

// Defer registers a cleanup to run when the scope closes. Cleanups run
// in reverse registration order.
func (s *Scope) Defer(release func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Lifecycle(errors.PhaseMemory, "scope already closed")
	}
	s.cleanups = append(s.cleanups, release)
	return nil
}

// Close releases the scope, running all cleanups in reverse order.
// Closing twice, or closing the global scope, fails with a lifecycle
// error.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.global {
		s.mu.Unlock()
		return errors.Lifecycle(errors.PhaseMemory, "global scope cannot be closed")
	}
	if s.closed {
		s.mu.Unlock()
		return errors.Lifecycle(errors.PhaseMemory, "scope already closed")
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	return nil
}

// IsAlive reports whether the scope is still open.
func (s *Scope) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// check returns a lifecycle error when the scope has closed.
func (s *Scope) check() error {
	if !s.IsAlive() {
		return errors.Lifecycle(errors.PhaseMemory, "scope already closed")
	}
	return nil
}
