package workerrt

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
)

// newPair returns a connected (callerSide, workerSide) pair of framed
// connections over net.Pipe, each wrapped in a supervisor.Conn.
func newPair(t *testing.T) (*supervisor.Conn, *supervisor.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return supervisor.NewConn(a, 0), supervisor.NewConn(b, 0)
}

func addHandler(ctx context.Context, params []byte) ([]byte, *Error) {
	var req struct{ A, B int }
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, UserErrorf(proto.CodeInvalidParams, "bad params: %v", err)
	}
	out, _ := json.Marshal(req.A + req.B)
	return out, nil
}

func divideHandler(ctx context.Context, params []byte) ([]byte, *Error) {
	var req struct{ A, B int }
	_ = json.Unmarshal(params, &req)
	if req.B == 0 {
		return nil, UserErrorf(proto.CodeExecutionFailed, "division by zero")
	}
	out, _ := json.Marshal(req.A / req.B)
	return out, nil
}

func sleepHandler(ctx context.Context, params []byte) ([]byte, *Error) {
	select {
	case <-time.After(time.Hour):
		return []byte("done"), nil
	case <-ctx.Done():
		return nil, cancelledError()
	}
}

func newTestRuntime() (*Runtime, *Registry) {
	reg := NewRegistry()
	reg.Register(Export{Name: "add", Handler: addHandler})
	reg.Register(Export{Name: "divide", Handler: divideHandler})
	reg.Register(Export{Name: "sleep", Handler: sleepHandler})
	rt := New(reg, Config{SocketPath: "unused"})
	return rt, reg
}

func TestServeInvokeHappyPath(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	done := make(chan bool)
	go func() { done <- rt.serve(context.Background(), workerSide, false) }()

	params, _ := json.Marshal(map[string]int{"a": 5, "b": 3})
	if err := callerSide.Writer.WriteMessage(&proto.Invoke{RequestID: 1, FunctionName: "add", Params: params, DeadlineMS: 1000}); err != nil {
		t.Fatalf("write invoke: %v", err)
	}
	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	res, ok := msg.(*proto.InvokeResult)
	if !ok {
		t.Fatalf("expected InvokeResult, got %T", msg)
	}
	var got int
	json.Unmarshal(res.Result, &got)
	if got != 8 {
		t.Fatalf("got %d, want 8", got)
	}
	callerSide.Close()
	<-done
}

func TestServeInvokeUserError(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	go rt.serve(context.Background(), workerSide, false)
	defer callerSide.Close()

	params, _ := json.Marshal(map[string]int{"a": 1, "b": 0})
	callerSide.Writer.WriteMessage(&proto.Invoke{RequestID: 2, FunctionName: "divide", Params: params, DeadlineMS: 1000})

	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ie, ok := msg.(*proto.InvokeError)
	if !ok {
		t.Fatalf("expected InvokeError, got %T", msg)
	}
	if ie.Code != proto.CodeExecutionFailed || ie.Kind != proto.KindUser {
		t.Fatalf("unexpected error fields: %+v", ie)
	}
}

func TestServeFunctionNotFound(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	go rt.serve(context.Background(), workerSide, false)
	defer callerSide.Close()

	callerSide.Writer.WriteMessage(&proto.Invoke{RequestID: 3, FunctionName: "nope", DeadlineMS: 1000})

	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ie, ok := msg.(*proto.InvokeError)
	if !ok {
		t.Fatalf("expected InvokeError, got %T", msg)
	}
	if ie.Code != proto.CodeFunctionNotFound {
		t.Fatalf("got code %d, want %d", ie.Code, proto.CodeFunctionNotFound)
	}
}

func TestServeCancelHonored(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	go rt.serve(context.Background(), workerSide, false)
	defer callerSide.Close()

	callerSide.Writer.WriteMessage(&proto.Invoke{RequestID: 4, FunctionName: "sleep", DeadlineMS: 60000})
	time.Sleep(20 * time.Millisecond)
	if err := callerSide.Writer.WriteMessage(&proto.Cancel{RequestID: 4}); err != nil {
		t.Fatalf("write cancel: %v", err)
	}

	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read cancel ack: %v", err)
	}
	if _, ok := msg.(*proto.CancelAck); !ok {
		t.Fatalf("expected CancelAck, got %T", msg)
	}

	msg, err = callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read invoke error: %v", err)
	}
	ie, ok := msg.(*proto.InvokeError)
	if !ok {
		t.Fatalf("expected InvokeError, got %T", msg)
	}
	if ie.Kind != proto.KindCancelled {
		t.Fatalf("got kind %v, want Cancelled", ie.Kind)
	}
}

func TestServeHealthCheck(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	go rt.serve(context.Background(), workerSide, false)
	defer callerSide.Close()

	callerSide.Writer.WriteMessage(&proto.HealthCheck{})
	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := msg.(*proto.HealthStatus); !ok {
		t.Fatalf("expected HealthStatus, got %T", msg)
	}
}

func TestServeShutdownReturnsTrue(t *testing.T) {
	rt, _ := newTestRuntime()
	callerSide, workerSide := newPair(t)
	result := make(chan bool, 1)
	go func() { result <- rt.serve(context.Background(), workerSide, true) }()

	callerSide.Writer.WriteMessage(&proto.Shutdown{})
	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := msg.(*proto.ShutdownAck); !ok {
		t.Fatalf("expected ShutdownAck, got %T", msg)
	}
	if !<-result {
		t.Fatalf("serve should report shutdown=true")
	}
}

func TestHandleStreamRespectsWindow(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Export{
		Name:        "counter",
		IsStreaming: true,
		StreamHandler: func(ctx context.Context, params []byte) (<-chan []byte, <-chan *Error) {
			ch := make(chan []byte)
			errc := make(chan *Error, 1)
			go func() {
				defer close(ch)
				for i := 0; i < 5; i++ {
					select {
					case ch <- []byte{byte(i)}:
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch, errc
		},
	})
	rt := New(reg, Config{SocketPath: "unused", DefaultWindow: 2})
	callerSide, workerSide := newPair(t)
	go rt.serve(context.Background(), workerSide, false)
	defer callerSide.Close()

	callerSide.Writer.WriteMessage(&proto.Invoke{RequestID: 9, FunctionName: "counter", DeadlineMS: 5000})

	msg, err := callerSide.Reader.ReadMessage()
	if err != nil {
		t.Fatalf("read start: %v", err)
	}
	start, ok := msg.(*proto.StreamStart)
	if !ok || start.Window != 2 {
		t.Fatalf("unexpected StreamStart: %+v (ok=%v)", msg, ok)
	}

	got := 0
	for {
		msg, err := callerSide.Reader.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		switch m := msg.(type) {
		case *proto.StreamChunk:
			got++
			if got%2 == 0 {
				callerSide.Writer.WriteMessage(&proto.StreamAck{RequestID: 9, AckSequence: m.Sequence, Window: 2})
			}
		case *proto.StreamEnd:
			if m.TotalChunks != 5 {
				t.Fatalf("got %d total chunks, want 5", m.TotalChunks)
			}
			return
		default:
			t.Fatalf("unexpected frame %T", msg)
		}
	}
}
