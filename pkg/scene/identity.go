package scene

import (
	"fmt"
	"sync"

	"volslicer/internal/models"
)

// IdentityAllocator hands out viewer context ids and default scene ids.
// Scene ids are keyed by volume identity, so viewers of the same volume
// share a scene unless told otherwise. Assignments are never released.
type IdentityAllocator struct {
	mu      sync.Mutex
	viewers int
	scenes  map[*models.Volume]string
}

// NewIdentityAllocator creates an allocator with no assignments.
func NewIdentityAllocator() *IdentityAllocator {
	return &IdentityAllocator{scenes: make(map[*models.Volume]string)}
}

// NextContext returns a fresh context id: slicer1, slicer2, ...
func (a *IdentityAllocator) NextContext() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viewers++
	return fmt.Sprintf("slicer%d", a.viewers)
}

// SceneFor returns the scene id of vol, assigning vol0, vol1, ... in order
// of first use.
func (a *IdentityAllocator) SceneFor(vol *models.Volume) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.scenes[vol]; ok {
		return id
	}
	id := fmt.Sprintf("vol%d", len(a.scenes))
	a.scenes[vol] = id
	return id
}

// Reset forgets all assignments.
func (a *IdentityAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viewers = 0
	a.scenes = make(map[*models.Volume]string)
}
