package proto

import (
	"bytes"
	"math"
	"testing"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	b, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(msg.Type(), b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestHandshakeRoundTrip(t *testing.T) {
	in := &Handshake{
		ProtocolVersion: ProtocolVersion,
		Role:            RoleWorker,
		Capabilities:    CapStreaming | CapCancellation,
		MaxFrameSize:    16 << 20,
	}
	out := roundTrip(t, in).(*Handshake)
	if *out != *in {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
}

func TestHandshakeAckServerIDAllZerosAllOnes(t *testing.T) {
	for _, fill := range []byte{0x00, 0xff} {
		var id [16]byte
		for i := range id {
			id[i] = fill
		}
		in := &HandshakeAck{ProtocolVersion: ProtocolVersion, Capabilities: CapStreaming, ServerID: id, ExportCount: 0}
		out := roundTrip(t, in).(*HandshakeAck)
		if out.ServerID != in.ServerID {
			t.Fatalf("server id mismatch for fill=%x: %x != %x", fill, out.ServerID, in.ServerID)
		}
	}
}

func TestInvokeRoundTripMaxUint64AndUnicode(t *testing.T) {
	in := &Invoke{
		RequestID:    math.MaxUint64,
		FunctionName: "翻訳する🔥",
		Params:       []byte{},
		DeadlineMS:   0,
		Context: RequestContext{
			TraceID: "t-émoji-😀",
			SpanID:  "",
			Headers: nil,
			Auth:    &AuthRecord{UserID: "u1", Roles: []string{"admin", "ops"}},
		},
	}
	out := roundTrip(t, in).(*Invoke)
	if out.RequestID != in.RequestID {
		t.Fatalf("request id mismatch: %d != %d", out.RequestID, in.RequestID)
	}
	if out.FunctionName != in.FunctionName {
		t.Fatalf("function name mismatch: %q != %q", out.FunctionName, in.FunctionName)
	}
	if !bytes.Equal(out.Params, in.Params) {
		t.Fatalf("params mismatch")
	}
	if out.Context.TraceID != in.Context.TraceID || out.Context.Auth.UserID != "u1" || len(out.Context.Auth.Roles) != 2 {
		t.Fatalf("context mismatch: %+v", out.Context)
	}
}

func TestInvokeEmptyHeadersAndNilAuth(t *testing.T) {
	in := &Invoke{
		RequestID:    1,
		FunctionName: "f",
		Params:       nil,
		DeadlineMS:   100,
		Context:      RequestContext{Headers: []Header{}},
	}
	out := roundTrip(t, in).(*Invoke)
	if out.Context.Auth != nil {
		t.Fatalf("expected nil auth, got %+v", out.Context.Auth)
	}
	if len(out.Context.Headers) != 0 {
		t.Fatalf("expected empty headers, got %v", out.Context.Headers)
	}
}

func TestInvokeErrorWithoutDetails(t *testing.T) {
	in := &InvokeError{RequestID: 7, Code: CodeFunctionNotFound, Kind: KindUser, Message: "not found"}
	out := roundTrip(t, in).(*InvokeError)
	if out.Details != nil {
		t.Fatalf("expected nil details, got %v", out.Details)
	}
	if out.Code != CodeFunctionNotFound || out.Kind != KindUser {
		t.Fatalf("mismatch: %+v", out)
	}
}

func TestStreamChunkSequenceRoundTrip(t *testing.T) {
	in := &StreamChunk{RequestID: 42, Sequence: 9, Data: []byte("payload")}
	out := roundTrip(t, in).(*StreamChunk)
	if out.Sequence != in.Sequence || !bytes.Equal(out.Data, in.Data) {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
}

func TestListExportsResultEmpty(t *testing.T) {
	in := &ListExportsResult{}
	out := roundTrip(t, in).(*ListExportsResult)
	if len(out.Exports) != 0 {
		t.Fatalf("expected empty export list, got %d", len(out.Exports))
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode(MsgType(0xEE), nil); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestLogEventFieldsRoundTrip(t *testing.T) {
	in := &LogEvent{Level: LogWarn, Message: "disk low", Fields: map[string]string{"path": "/data"}}
	out := roundTrip(t, in).(*LogEvent)
	if out.Level != LogWarn || out.Fields["path"] != "/data" {
		t.Fatalf("mismatch: %+v", out)
	}
}
