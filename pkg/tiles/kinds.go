package tiles

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind identifies one component column within a map. Kinds are assigned per
// Go type on first use and stay stable for the process lifetime.
type Kind uint32

type kindInfo struct {
	name      string
	newColumn func(capacity int) anyColumn
}

var kindRegistry = struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Kind
	info   []kindInfo
}{
	byType: make(map[reflect.Type]Kind),
}

// KindOf returns the Kind assigned to the component type T, registering it on
// first use.
func KindOf[T any]() Kind {
	t := reflect.TypeFor[T]()

	kindRegistry.mu.RLock()
	k, ok := kindRegistry.byType[t]
	kindRegistry.mu.RUnlock()
	if ok {
		return k
	}

	kindRegistry.mu.Lock()
	defer kindRegistry.mu.Unlock()
	if k, ok = kindRegistry.byType[t]; ok {
		return k
	}
	k = Kind(len(kindRegistry.info))
	kindRegistry.byType[t] = k
	kindRegistry.info = append(kindRegistry.info, kindInfo{
		name: t.String(),
		newColumn: func(capacity int) anyColumn {
			return newColumn[T](k, capacity)
		},
	})
	return k
}

// Name returns the Go type name the kind was registered for.
func (k Kind) Name() string {
	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()
	if int(k) < len(kindRegistry.info) {
		return kindRegistry.info[k].name
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

func newColumnFor(k Kind, capacity int) anyColumn {
	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()
	return kindRegistry.info[k].newColumn(capacity)
}

// Value is an erased component value used by variadic write operations. Build
// values with With.
type Value struct {
	kind Kind
	val  any
}

// With wraps a typed component value for WriteTile and batch writes.
func With[T any](v T) Value {
	return Value{kind: KindOf[T](), val: v}
}

// Kind returns the component kind the value carries.
func (v Value) Kind() Kind { return v.kind }
