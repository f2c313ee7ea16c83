// Package workerrt is the worker-side counterpart to the supervisor and
// router: it connects back to the supervisor's socket, answers
// ListExports, and dispatches invocations to a registered function
// table (spec.md §4.3's worker side of the handshake; §2 "Worker
// Runtime").
package workerrt

import (
	"context"
	"sync"

	"github.com/splicehq/splice/proto"
)

// Handler is a synchronous (or internally-async but result-returning)
// exported function.
type Handler func(ctx context.Context, params []byte) ([]byte, *Error)

// StreamHandler is a streaming exported function. It returns a channel
// of chunk payloads and a channel that carries at most one terminal
// error (nil/closed means the stream ended cleanly).
type StreamHandler func(ctx context.Context, params []byte) (<-chan []byte, <-chan *Error)

// Export is one registered function plus its wire metadata.
type Export struct {
	Name          string
	IsAsync       bool
	IsStreaming   bool
	ParamsSchema  []byte
	ReturnSchema  []byte
	Handler       Handler
	StreamHandler StreamHandler
}

// Registry is the worker process's table of exported functions, built
// once at startup and immutable once ListExportsResult has been sent
// (spec.md §3 "Export metadata").
type Registry struct {
	mu      sync.RWMutex
	exports map[string]*Export
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{exports: make(map[string]*Export)}
}

// Register adds e to the table. Register must not be called after the
// runtime has started serving connections.
func (r *Registry) Register(e Export) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exports[e.Name]; !exists {
		r.order = append(r.order, e.Name)
	}
	r.exports[e.Name] = &e
}

func (r *Registry) Lookup(name string) (*Export, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exports[name]
	return e, ok
}

// Snapshot returns the export list in registration order, for
// ListExportsResult.
func (r *Registry) Snapshot() []proto.ExportMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]proto.ExportMetadata, 0, len(r.order))
	for _, name := range r.order {
		e := r.exports[name]
		out = append(out, proto.ExportMetadata{
			Name:         e.Name,
			IsAsync:      e.IsAsync,
			IsStreaming:  e.IsStreaming,
			ParamsSchema: e.ParamsSchema,
			ReturnSchema: e.ReturnSchema,
		})
	}
	return out
}
