package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
)

// fakeSource feeds a fixed slice of pre-connected conns to a Router,
// mimicking supervisor.Supervisor.Pool() without spawning a real
// worker process or listener.
type fakeSource struct {
	ch chan *supervisor.Conn
}

func newFakeSource() *fakeSource { return &fakeSource{ch: make(chan *supervisor.Conn, 16)} }

func (f *fakeSource) Pool() <-chan *supervisor.Conn { return f.ch }

// newPair returns a connected (routerSide, workerSide) pair of framed
// connections backed by net.Pipe, each wrapped in a supervisor.Conn.
func newPair(t *testing.T) (*supervisor.Conn, *supervisor.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return supervisor.NewConn(a, 0), supervisor.NewConn(b, 0)
}

// fakeWorker runs a simple request/reply loop driven by handler, until
// the connection closes.
func fakeWorker(t *testing.T, conn *supervisor.Conn, handler func(*proto.Invoke) []proto.Message) {
	t.Helper()
	go func() {
		for {
			msg, err := conn.Reader.ReadMessage()
			if err != nil {
				return
			}
			inv, ok := msg.(*proto.Invoke)
			if !ok {
				continue
			}
			for _, reply := range handler(inv) {
				if err := conn.Writer.WriteMessage(reply); err != nil {
					return
				}
			}
		}
	}()
}

func newTestRouter(t *testing.T, n int) (*Router, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	r := New(src, Config{PoolSize: n, ConnectTimeout: time.Second})
	r.Start()
	t.Cleanup(r.Stop)
	return r, src
}

func TestInvokeHappyPath(t *testing.T) {
	r, src := newTestRouter(t, 1)
	routerSide, workerSide := newPair(t)
	fakeWorker(t, workerSide, func(inv *proto.Invoke) []proto.Message {
		return []proto.Message{&proto.InvokeResult{RequestID: inv.RequestID, Result: []byte("8"), DurationUS: 42}}
	})
	src.ch <- routerSide

	out, err := r.Invoke(context.Background(), "add", []byte(`{"a":5,"b":3}`), time.Second, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeResult || string(out.Result) != "8" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestInvokeUserError(t *testing.T) {
	r, src := newTestRouter(t, 1)
	routerSide, workerSide := newPair(t)
	fakeWorker(t, workerSide, func(inv *proto.Invoke) []proto.Message {
		return []proto.Message{&proto.InvokeError{RequestID: inv.RequestID, Code: proto.CodeExecutionFailed, Kind: proto.KindUser, Message: "Division by zero"}}
	})
	src.ch <- routerSide

	out, err := r.Invoke(context.Background(), "divide", nil, time.Second, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeError || out.Code != proto.CodeExecutionFailed || out.ErrKind != proto.KindUser {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestInvokeTimeout(t *testing.T) {
	r, src := newTestRouter(t, 1)
	routerSide, workerSide := newPair(t)
	fakeWorker(t, workerSide, func(inv *proto.Invoke) []proto.Message {
		time.Sleep(time.Second)
		return []proto.Message{&proto.InvokeResult{RequestID: inv.RequestID}}
	})
	src.ch <- routerSide

	start := time.Now()
	out, err := r.Invoke(context.Background(), "sleep", nil, 50*time.Millisecond, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeError || out.ErrKind != proto.KindTimeout {
		t.Fatalf("expected timeout outcome, got %+v", out)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestInvokeStreamFanOut(t *testing.T) {
	r, src := newTestRouter(t, 1)
	routerSide, workerSide := newPair(t)
	fakeWorker(t, workerSide, func(inv *proto.Invoke) []proto.Message {
		return []proto.Message{
			&proto.StreamStart{RequestID: inv.RequestID, Window: 10},
			&proto.StreamChunk{RequestID: inv.RequestID, Sequence: 0, Data: []byte("a")},
			&proto.StreamChunk{RequestID: inv.RequestID, Sequence: 1, Data: []byte("b")},
			&proto.StreamEnd{RequestID: inv.RequestID, TotalChunks: 2},
		}
	})
	src.ch <- routerSide

	out, err := r.Invoke(context.Background(), "tail", nil, time.Second, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeStream {
		t.Fatalf("expected stream outcome, got %+v", out)
	}
	var seqs []uint64
	for ev := range out.Stream.Events {
		if ev.Ended {
			if ev.TotalChunks != 2 {
				t.Fatalf("unexpected total chunks: %d", ev.TotalChunks)
			}
			break
		}
		seqs = append(seqs, ev.Sequence)
	}
	if len(seqs) != 2 || seqs[0] != 0 || seqs[1] != 1 {
		t.Fatalf("unexpected sequence order: %v", seqs)
	}
}

func TestInvokeZeroDeadlineFailsImmediately(t *testing.T) {
	r, _ := newTestRouter(t, 1)
	out, err := r.Invoke(context.Background(), "anything", nil, 0, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeError || out.ErrKind != proto.KindTimeout {
		t.Fatalf("expected immediate timeout, got %+v", out)
	}
}

func TestStopAcceptingRejectsNewInvocations(t *testing.T) {
	r, _ := newTestRouter(t, 1)
	r.StopAccepting(true)
	out, err := r.Invoke(context.Background(), "add", nil, time.Second, proto.RequestContext{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Kind != OutcomeError || out.Code != proto.CodeUnavailable {
		t.Fatalf("expected unavailable outcome while draining, got %+v", out)
	}
}
