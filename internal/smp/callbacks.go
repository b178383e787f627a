package smp

import (
	"sync"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

// ServiceGroupCallbacks receives notifications after service group
// mutations commit. Invocation order across registered callbacks is not
// guaranteed; callbacks run synchronously on the mutating goroutine and
// must not block.
type ServiceGroupCallbacks struct {
	Created func(*storage.ServiceGroup)
	Updated func(*storage.ServiceGroup)
	Deleted func(id string)
}

// ServiceInformationCallbacks receives notifications after registration
// mutations commit.
type ServiceInformationCallbacks struct {
	Created func(*storage.ServiceInformation)
	Updated func(*storage.ServiceInformation)
	Deleted func(id string)
}

// RedirectCallbacks receives notifications after redirect mutations
// commit.
type RedirectCallbacks struct {
	Saved   func(*storage.Redirect)
	Deleted func(id string)
}

type callbackList[T any] struct {
	mu  sync.RWMutex
	fns []T
}

func (l *callbackList[T]) add(cb T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, cb)
}

func (l *callbackList[T]) each(f func(T)) {
	l.mu.RLock()
	fns := make([]T, len(l.fns))
	copy(fns, l.fns)
	l.mu.RUnlock()
	for _, cb := range fns {
		f(cb)
	}
}
