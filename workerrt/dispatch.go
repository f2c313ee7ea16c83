package workerrt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
)

// activeCounter/totalCounter back the HealthStatus reply's in-flight
// and lifetime invocation counts.
type activeCounter struct{ v atomic.Int64 }

func (c *activeCounter) inc()        { c.v.Add(1) }
func (c *activeCounter) dec()        { c.v.Add(-1) }
func (c *activeCounter) load() int64 { return c.v.Load() }

type totalCounter struct{ v atomic.Uint64 }

func (c *totalCounter) inc()         { c.v.Add(1) }
func (c *totalCounter) load() uint64 { return c.v.Load() }

// handleInvoke dispatches one Invoke frame to the registered export,
// honoring DeadlineMS and Cancel/ctx-cancellation, and writes exactly
// one terminal frame (InvokeResult/InvokeError, or a StreamStart
// followed by the stream's own chunks/terminal frame).
func (rt *Runtime) handleInvoke(parent context.Context, conn *supervisor.Conn, tracker *requestTracker, inv *proto.Invoke) {
	rt.totalRequests.inc()
	rt.activeRequests.inc()
	defer rt.activeRequests.dec()

	ctx := parent
	var cancel context.CancelFunc
	if inv.DeadlineMS > 0 {
		ctx, cancel = context.WithTimeout(parent, time.Duration(inv.DeadlineMS)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	st := tracker.start(inv.RequestID, cancel)
	defer tracker.finish(inv.RequestID)

	exp, ok := rt.registry.Lookup(inv.FunctionName)
	if !ok {
		writeInvokeError(conn, inv.RequestID, FunctionNotFound(inv.FunctionName))
		return
	}

	if exp.IsStreaming {
		rt.handleStream(ctx, conn, st, inv.RequestID, exp, inv.Params)
		return
	}

	start := time.Now()
	result, callErr := callSafely(ctx, exp.Handler, inv.Params)
	if ctx.Err() != nil && callErr == nil {
		callErr = cancelledError()
	}
	if callErr != nil {
		writeInvokeError(conn, inv.RequestID, callErr)
		return
	}
	_ = conn.Writer.WriteMessage(&proto.InvokeResult{
		RequestID:  inv.RequestID,
		Result:     result,
		DurationUS: uint64(time.Since(start).Microseconds()),
	})
}

// callSafely recovers a handler panic into a system Error rather than
// letting it cross back into the dispatch loop (spec.md §7 "Panic").
func callSafely(ctx context.Context, h Handler, params []byte) (result []byte, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return h(ctx, params)
}

func writeInvokeError(conn *supervisor.Conn, id uint64, e *Error) {
	_ = conn.Writer.WriteMessage(&proto.InvokeError{
		RequestID: id,
		Code:      e.Code,
		Kind:      e.Kind,
		Message:   e.Message,
		Details:   e.Details,
	})
}

// handleStream drives a streaming export: it sends StreamStart, then
// forwards chunks as they arrive from the handler, blocking whenever
// the number of un-acked chunks reaches the negotiated window
// (SPEC_FULL.md Open Question decision: StreamAck.window is honored as
// real backpressure, not informational).
func (rt *Runtime) handleStream(ctx context.Context, conn *supervisor.Conn, st *reqState, id uint64, exp *Export, params []byte) {
	window := rt.cfg.DefaultWindow
	if err := conn.Writer.WriteMessage(&proto.StreamStart{RequestID: id, Window: window}); err != nil {
		return
	}

	chunks, errc := exp.StreamHandler(ctx, params)

	var seq uint64
	var acked uint64
	inFlight := func() uint64 { return seq - acked }

	for {
		if inFlight() >= uint64(window) {
			select {
			case upd, ok := <-st.ackCh:
				if ok && upd.sequence > acked {
					acked = upd.sequence
				}
				continue
			case <-ctx.Done():
				_ = conn.Writer.WriteMessage(&proto.StreamError{RequestID: id, Code: proto.CodeCancelled, Message: ctx.Err().Error()})
				return
			}
		}

		select {
		case data, ok := <-chunks:
			if !ok {
				select {
				case e := <-errc:
					if e != nil {
						_ = conn.Writer.WriteMessage(&proto.StreamError{RequestID: id, Code: e.Code, Message: e.Message})
						return
					}
				default:
				}
				_ = conn.Writer.WriteMessage(&proto.StreamEnd{RequestID: id, TotalChunks: seq})
				return
			}
			seq++
			if err := conn.Writer.WriteMessage(&proto.StreamChunk{RequestID: id, Sequence: seq, Data: data}); err != nil {
				return
			}
		case upd, ok := <-st.ackCh:
			if ok && upd.sequence > acked {
				acked = upd.sequence
			}
		case <-ctx.Done():
			_ = conn.Writer.WriteMessage(&proto.StreamError{RequestID: id, Code: proto.CodeCancelled, Message: ctx.Err().Error()})
			return
		}
	}
}
