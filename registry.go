package replica

import (
	"context"
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
)

var (
	registry   = make(map[reflect.Type]*plan)
	scanned    = make(map[reflect.Type]sentinel.Metadata)
	registryMu sync.RWMutex
)

// planFor returns the cached plan for a type or classifies it.
// Plans are immutable once stored and shared by every engine.
func planFor(t reflect.Type) (*plan, error) {
	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[t]; ok {
		registryMu.RUnlock()
		return cached, nil
	}
	registryMu.RUnlock()

	// Classification reenters planFor for member types, so it runs unlocked.
	// Concurrent builders of the same type produce equal plans; the first
	// one stored wins.
	p, err := classify(t)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	if cached, ok := registry[t]; ok {
		registryMu.Unlock()
		return cached, nil
	}
	registry[t] = p
	registryMu.Unlock()

	emitPlanBuilt(context.Background(), t.String(), p.shape, len(p.members))
	return p, nil
}

// Register scans T with sentinel and classifies it ahead of its first copy.
// Struct types registered this way take their member metadata from
// sentinel; other types are only classified. Classification errors, such
// as an invalid clone tag, are returned here instead of on the first copy.
func Register[T any]() error {
	rt := reflect.TypeOf((*T)(nil)).Elem()

	if rt.Kind() == reflect.Struct {
		spec := sentinel.Scan[T]()

		registryMu.Lock()
		scanned[rt] = spec
		delete(registry, rt)
		registryMu.Unlock()
	}

	_, err := planFor(rt)
	return err
}

// scannedMetadata returns the sentinel metadata recorded by Register.
func scannedMetadata(rt reflect.Type) (sentinel.Metadata, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := scanned[rt]
	return spec, ok
}

// Reset clears the plan registry. Registered sentinel metadata is kept.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]*plan)
}
