// Package hooks provides default coordinator hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/heartbeat/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.SweepStats) error = (*NopHooks)(nil).OnSweep
	_ func(context.Context, error) error            = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnSweep: h.OnSweep,
		OnError: h.OnError,
	}
}

// OnSweep is a no-op implementation.
func (h *NopHooks) OnSweep(_ context.Context, _ types.SweepStats) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
