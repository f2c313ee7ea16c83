// Package router implements the request router and connection pool: a
// fixed number of persistent worker connections, round-robin slot
// selection, request/response correlation by request id, deadline
// enforcement, and streaming fan-out (spec.md §4.5).
package router

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
	"golang.org/x/sync/semaphore"
)

// Config parameterizes a Router.
type Config struct {
	PoolSize       int
	ConnectTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// ConnSource is the view of the supervisor the router depends on: a
// stream of handshaked connections as they become available. Router
// depends on this interface rather than *supervisor.Supervisor
// directly, keeping the supervisor/router relationship one-directional
// (spec.md §9 "cyclic references avoided").
type ConnSource interface {
	Pool() <-chan *supervisor.Conn
}

// Router is the pool of persistent worker connections plus the
// pending-request table that correlates responses back to callers.
type Router struct {
	cfg     Config
	sup     ConnSource
	slots   []*slot
	next    atomic.Uint64
	sem     *semaphore.Weighted
	pending *pendingTable
	reqID   atomic.Uint64

	accepting atomic.Bool
	stopCh    chan struct{}
}

// New constructs a Router bound to sup. Call Start to begin draining
// connections out of the supervisor's pool.
func New(sup ConnSource, cfg Config) *Router {
	cfg.setDefaults()
	r := &Router{
		cfg:     cfg,
		sup:     sup,
		slots:   make([]*slot, cfg.PoolSize),
		sem:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		pending: newPendingTable(cfg.PoolSize * 4),
		stopCh:  make(chan struct{}),
	}
	for i := range r.slots {
		r.slots[i] = &slot{}
	}
	r.accepting.Store(true)
	return r
}

// Start launches the background loop that assigns connections handed
// off by the supervisor to pool slots as they arrive.
func (r *Router) Start() {
	go r.refillLoop()
}

// Stop terminates the refill loop. In-flight invocations are not
// cancelled; callers should drain first via StopAccepting.
func (r *Router) Stop() { close(r.stopCh) }

func (r *Router) refillLoop() {
	i := 0
	for {
		select {
		case <-r.stopCh:
			return
		case conn, ok := <-r.sup.Pool():
			if !ok {
				return
			}
			idx := i % len(r.slots)
			i++
			snap := r.slots[idx].attach(conn)
			go readerLoop(r.slots[idx], snap, r.pending)
		}
	}
}

// StopAccepting toggles whether Invoke admits new invocations,
// implementing reload.Drainer.
func (r *Router) StopAccepting(stop bool) { r.accepting.Store(!stop) }

// PendingCount implements reload.Drainer.
func (r *Router) PendingCount() int { return r.pending.len() }

// Invoke submits one invocation and blocks until a terminal outcome is
// available (or, for a streaming export, until StreamStart arrives —
// the caller then drains Outcome.Stream.Events independently).
func (r *Router) Invoke(ctx context.Context, fn string, params []byte, deadline time.Duration, rc proto.RequestContext) (Outcome, error) {
	if !r.accepting.Load() {
		return errOutcome(proto.CodeUnavailable, proto.KindSystem, "router is draining"), nil
	}
	if deadline <= 0 {
		return errOutcome(proto.CodeTimeout, proto.KindTimeout, "deadline of zero elapsed immediately"), nil
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Outcome{}, err
	}
	defer r.sem.Release(1)

	idx := int(r.next.Add(1)-1) % len(r.slots)
	s := r.slots[idx]

	snap, err := r.ensureConnected(s)
	if err != nil {
		return errOutcome(proto.CodeUnavailable, proto.KindSystem, err.Error()), nil
	}

	id := r.reqID.Add(1)
	return r.invokeOn(ctx, s, snap, id, fn, params, deadline, rc, true)
}

func (r *Router) invokeOn(ctx context.Context, s *slot, snap snapshot, id uint64, fn string, params []byte, deadline time.Duration, rc proto.RequestContext, allowRetry bool) (Outcome, error) {
	ch := r.pending.insert(id)
	invoke := &proto.Invoke{
		RequestID:    id,
		FunctionName: fn,
		Params:       params,
		DeadlineMS:   uint32(deadline.Milliseconds()),
		Context:      rc,
	}
	if err := snap.conn.Writer.WriteMessage(invoke); err != nil {
		r.pending.remove(id)
		return r.retryOrFail(ctx, s, id, fn, params, deadline, rc, allowRetry, err)
	}
	s.touch()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return r.resolve(id, msg, snap), nil
	case <-timer.C:
		r.pending.remove(id)
		go snap.conn.Writer.WriteMessage(&proto.Cancel{RequestID: id}) //nolint:errcheck // best-effort; CancelAck is discarded if it ever arrives
		return errOutcome(proto.CodeTimeout, proto.KindTimeout, "deadline exceeded"), nil
	case <-snap.errCh:
		r.pending.remove(id)
		return r.retryOrFail(ctx, s, id, fn, params, deadline, rc, allowRetry, fmt.Errorf("connection failed"))
	case <-ctx.Done():
		r.pending.remove(id)
		go snap.conn.Writer.WriteMessage(&proto.Cancel{RequestID: id}) //nolint:errcheck // best-effort
		return errOutcome(proto.CodeCancelled, proto.KindCancelled, ctx.Err().Error()), nil
	}
}

func (r *Router) retryOrFail(ctx context.Context, s *slot, id uint64, fn string, params []byte, deadline time.Duration, rc proto.RequestContext, allowRetry bool, cause error) (Outcome, error) {
	if !allowRetry {
		return errOutcome(proto.CodeUnavailable, proto.KindSystem, fmt.Sprintf("infrastructure failure: %v", cause)), nil
	}
	nlog.Warningf("router: slot failure, reconnecting and retrying request %d: %v", id, cause)
	snap, err := r.ensureConnected(s)
	if err != nil {
		return errOutcome(proto.CodeUnavailable, proto.KindSystem, err.Error()), nil
	}
	return r.invokeOn(ctx, s, snap, id, fn, params, deadline, rc, false)
}

// ensureConnected returns the slot's current connection, or blocks up
// to ConnectTimeout for the supervisor to hand off a replacement
// (spec.md §4.5 step 3).
func (r *Router) ensureConnected(s *slot) (snapshot, error) {
	if snap, ok := s.current(); ok {
		return snap, nil
	}
	deadline := time.After(r.cfg.ConnectTimeout)
	for {
		select {
		case conn, ok := <-r.sup.Pool():
			if !ok {
				return snapshot{}, fmt.Errorf("supervisor pool closed")
			}
			snap := s.attach(conn)
			go readerLoop(s, snap, r.pending)
			return snap, nil
		case <-deadline:
			return snapshot{}, fmt.Errorf("timed out waiting for a worker connection")
		case <-r.stopCh:
			return snapshot{}, fmt.Errorf("router stopped")
		}
	}
}

func (r *Router) resolve(id uint64, msg proto.Message, snap snapshot) Outcome {
	switch m := msg.(type) {
	case *proto.InvokeResult:
		return Outcome{Kind: OutcomeResult, Result: m.Result, DurationUS: m.DurationUS}
	case *proto.InvokeError:
		return Outcome{Kind: OutcomeError, Code: m.Code, ErrKind: m.Kind, Message: m.Message, Details: m.Details}
	case *proto.StreamStart:
		events := make(chan StreamEvent, int(m.Window))
		go r.pumpStream(id, m.Window, snap, events)
		return Outcome{Kind: OutcomeStream, Stream: &Stream{Window: m.Window, Events: events}}
	default:
		return errOutcome(proto.CodeInternal, proto.KindSystem, fmt.Sprintf("unexpected terminal frame %T", msg))
	}
}

// pumpStream keeps consuming msg's pending channel until the stream's
// terminal event, converting each frame into a StreamEvent and acking
// every chunk back on the originating connection so the worker's
// credit-window throttle (workerrt's honoring of StreamAck) keeps
// advancing instead of stalling once window chunks are in flight.
func (r *Router) pumpStream(id uint64, window uint32, snap snapshot, out chan<- StreamEvent) {
	defer close(out)
	defer r.pending.remove(id)
	s := r.shardChannel(id)
	for {
		msg, ok := <-s
		if !ok {
			out <- StreamEvent{Errored: true, Code: proto.CodeUnavailable, Message: "connection closed mid-stream"}
			return
		}
		switch m := msg.(type) {
		case *proto.StreamChunk:
			out <- StreamEvent{Sequence: m.Sequence, Data: m.Data}
			go snap.conn.Writer.WriteMessage(&proto.StreamAck{RequestID: id, AckSequence: m.Sequence, Window: window}) //nolint:errcheck // best-effort; a write failure here surfaces as the slot's own errCh and ends the stream
		case *proto.StreamEnd:
			out <- StreamEvent{Ended: true, TotalChunks: m.TotalChunks}
			return
		case *proto.StreamError:
			out <- StreamEvent{Errored: true, Code: m.Code, Message: m.Message}
			return
		}
	}
}

// shardChannel exposes the pending table's raw channel for id so
// pumpStream can keep reading after the initial StreamStart delivery.
func (r *Router) shardChannel(id uint64) chan proto.Message {
	sh := r.pending.shardFor(id)
	sh.mu.Lock()
	ch := sh.m[id]
	sh.mu.Unlock()
	return ch
}

// Cancel drops id from the pending table, so later frames for it are
// discarded. It writes no Cancel frame to the worker and does not wake
// the Invoke call still waiting on id.
// Idempotent: a second call for an id no longer in the pending table
// is a no-op (spec.md §8 round-trip law).
func (r *Router) Cancel(id uint64) {
	if !r.pending.remove(id) {
		return
	}
	// The Invoke call path writes Cancel itself on its deadline and
	// ctx-cancellation branches; this method has no connection handle
	// for id, so the worker keeps running the invocation until the
	// Invoke's own deadline (if any) expires on its side.
}
