package inventory

import (
	"strings"
	"sync"
)

// Box key sentinels.
const (
	// BoxKeyNoSource marks boxes whose handler chain root is not resolved yet.
	BoxKeyNoSource = "~"
	// BoxKeySystem marks boxes fed by the system itself (generators).
	BoxKeySystem = "#"
)

// FormKey builds a box key from a node id and optional module alias.
func FormKey(nid, mal string) string {
	if mal == "" {
		return nid
	}
	return nid + "/" + mal
}

// SplitKey splits a box key back into node id and module alias.
func SplitKey(key string) (nid, mal string) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// Box stores the last value produced by a module or actor. Values arrive
// from bus handler goroutines and are read by north requests, so access is
// guarded.
type Box struct {
	name string

	mu    sync.RWMutex
	value any
}

// NewBox creates a named box with an empty value.
func NewBox(name string) *Box {
	return &Box{name: name, value: ""}
}

// Name returns the box display name.
func (b *Box) Name() string { return b.name }

// Value returns the last stored value.
func (b *Box) Value() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// SetValue stores a new value.
func (b *Box) SetValue(value any) {
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
}
