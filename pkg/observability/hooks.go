// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about model loading, unfolding and rendering.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so library packages never
// import an observability backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetUnfoldHooks(&myUnfoldHooks{})
//	    observability.SetModelHooks(&myModelHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Unfold().OnUnfoldStart(ctx, session, top, normSet)
//	// ... propagate and rewrite ...
//	observability.Unfold().OnUnfoldComplete(ctx, session, visited, wrapped, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Unfold Hooks
// =============================================================================

// UnfoldHooks receives events from the graph unfolder.
type UnfoldHooks interface {
	// OnUnfoldStart is called before normalization sets are propagated.
	OnUnfoldStart(ctx context.Context, session, top string, normSet []string)

	// OnUnfoldComplete is called after the rewrite finished or failed.
	OnUnfoldComplete(ctx context.Context, session string, visited, wrapped int, duration time.Duration, err error)

	// OnFold is called after the rewrite was rolled back.
	OnFold(ctx context.Context, session string, restored int, duration time.Duration)
}

// =============================================================================
// Model Hooks
// =============================================================================

// ModelHooks receives events from model document loading.
type ModelHooks interface {
	// OnLoadStart records the start of a document decode.
	OnLoadStart(ctx context.Context, source, format string)

	// OnLoadComplete records the end of a document decode.
	OnLoadComplete(ctx context.Context, source string, nodeCount int, duration time.Duration, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from graph rendering.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, format string, nodeCount int)
	OnRenderComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopUnfoldHooks is a no-op implementation of UnfoldHooks.
type NoopUnfoldHooks struct{}

func (NoopUnfoldHooks) OnUnfoldStart(context.Context, string, string, []string) {}
func (NoopUnfoldHooks) OnUnfoldComplete(context.Context, string, int, int, time.Duration, error) {
}
func (NoopUnfoldHooks) OnFold(context.Context, string, int, time.Duration) {}

// NoopModelHooks is a no-op implementation of ModelHooks.
type NoopModelHooks struct{}

func (NoopModelHooks) OnLoadStart(context.Context, string, string)                        {}
func (NoopModelHooks) OnLoadComplete(context.Context, string, int, time.Duration, error) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, string, int)                           {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	unfoldHooks UnfoldHooks = NoopUnfoldHooks{}
	modelHooks  ModelHooks  = NoopModelHooks{}
	renderHooks RenderHooks = NoopRenderHooks{}
	hooksMu     sync.RWMutex
)

// SetUnfoldHooks registers custom unfold hooks.
// This should be called once at application startup before any unfold operations.
func SetUnfoldHooks(h UnfoldHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		unfoldHooks = h
	}
}

// SetModelHooks registers custom model hooks.
func SetModelHooks(h ModelHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		modelHooks = h
	}
}

// SetRenderHooks registers custom render hooks.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// Unfold returns the registered unfold hooks.
func Unfold() UnfoldHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return unfoldHooks
}

// Model returns the registered model hooks.
func Model() ModelHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return modelHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	unfoldHooks = NoopUnfoldHooks{}
	modelHooks = NoopModelHooks{}
	renderHooks = NoopRenderHooks{}
}
