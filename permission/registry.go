package permission

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrFrozen      = errors.New("permission: registry frozen")
	ErrBitsExhaust = errors.New("permission: no free bits")
)

// Registry assigns each permission name the next free bit. The bit of a
// permission is its registration index.
type Registry struct {
	rootReserved bool

	mu     sync.RWMutex
	names  []string
	bits   map[string]int
	frozen bool
}

// NewRegistry creates an empty [Registry]. rootReserved keeps bit 63 for a
// super-admin grant that satisfies every check.
func NewRegistry(rootReserved bool) *Registry {
	return &Registry{rootReserved: rootReserved, bits: make(map[string]int)}
}

func (r *Registry) capacity() int {
	if r.rootReserved {
		return rootBit
	}
	return rootBit + 1
}

// Register assigns the next bit to name and returns it.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.frozen:
		return -1, ErrFrozen
	case name == "":
		return -1, errors.New("permission: empty name")
	case len(r.names) >= r.capacity():
		return -1, ErrBitsExhaust
	}
	if _, dup := r.bits[name]; dup {
		return -1, fmt.Errorf("permission: %q already registered", name)
	}

	bit := len(r.names)
	r.names = append(r.names, name)
	r.bits[name] = bit
	return bit, nil
}

func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.bits[name]
	return bit, ok
}

func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.names) {
		return "", false
	}
	return r.names[bit], true
}

func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// RootBit returns the reserved root bit, if any.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return rootBit, true
}

// Names lists the permissions mask grants, in bit order. A root mask lists
// every registered permission.
func (r *Registry) Names(mask Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for bit, name := range r.names {
		if mask.Has(bit, r.rootReserved) {
			out = append(out, name)
		}
	}
	return out
}
