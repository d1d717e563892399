package source

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/heartbeat/types"
)

// Static is a fixed list of entities to register before heartbeats arrive.
//
// Entities that never send a heartbeat are still judged by the sweep, so a
// pre-registered list is how a deployment learns that a node never came up.
type Static struct {
	mu  sync.RWMutex
	ids []types.EntityID
}

// NewStatic creates a static entity source.
//
// Parameters:
//   - ids: Entity IDs; duplicates are kept and skipped by Seed
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic([]types.EntityID{"node-1", "node-2"})
//	n, err := src.Seed(coord)
func NewStatic(ids []types.EntityID) *Static {
	return &Static{ids: slices.Clone(ids)}
}

// List returns a copy of the entity list.
func (s *Static) List() []types.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.ids)
}

// Update replaces the entity list. It does not deregister anything.
func (s *Static) Update(ids []types.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = slices.Clone(ids)
}

// Seed registers every listed entity with reg.
//
// Entities that are already registered are skipped silently.
//
// Parameters:
//   - reg: Registration target, typically *heartbeat.Coordinator
//
// Returns:
//   - int: Number of entities newly registered
//   - error: Joined registration errors, nil if all succeeded
func (s *Static) Seed(reg Registrar) (int, error) {
	var (
		registered int
		errs       []error
	)

	for _, id := range s.List() {
		err := reg.Register(id)
		switch {
		case err == nil:
			registered++
		case errors.Is(err, types.ErrAlreadyRegistered):
		default:
			errs = append(errs, fmt.Errorf("register %q: %w", id, err))
		}
	}

	return registered, errors.Join(errs...)
}
