package proto

import "fmt"

// Message is the tagged-union member interface every protocol variant
// implements. Messages are immutable after construction (spec.md §3):
// nothing in this package mutates a decoded value in place except
// during UnmarshalMsg itself.
type Message interface {
	Type() MsgType
	MarshalMsg(b []byte) ([]byte, error)
	UnmarshalMsg(bts []byte) ([]byte, error)
}

// New returns a zero-valued Message for t, ready for UnmarshalMsg.
// Returns (nil, false) for a type code outside the defined enumeration
// (spec.md Frame invariant: "type code within the defined enumeration").
func New(t MsgType) (Message, bool) {
	switch t {
	case TypeHandshake:
		return new(Handshake), true
	case TypeHandshakeAck:
		return new(HandshakeAck), true
	case TypeShutdown:
		return new(Shutdown), true
	case TypeShutdownAck:
		return new(ShutdownAck), true
	case TypeListExports:
		return new(ListExports), true
	case TypeListExportsResult:
		return new(ListExportsResult), true
	case TypeInvoke:
		return new(Invoke), true
	case TypeInvokeResult:
		return new(InvokeResult), true
	case TypeInvokeError:
		return new(InvokeError), true
	case TypeStreamStart:
		return new(StreamStart), true
	case TypeStreamChunk:
		return new(StreamChunk), true
	case TypeStreamEnd:
		return new(StreamEnd), true
	case TypeStreamError:
		return new(StreamError), true
	case TypeStreamAck:
		return new(StreamAck), true
	case TypeCancel:
		return new(Cancel), true
	case TypeCancelAck:
		return new(CancelAck), true
	case TypeLogEvent:
		return new(LogEvent), true
	case TypeHealthCheck:
		return new(HealthCheck), true
	case TypeHealthStatus:
		return new(HealthStatus), true
	default:
		return nil, false
	}
}

// Decode fully unmarshals payload (the frame body, without the 5-byte
// header) into a fresh Message of the variant named by t.
func Decode(t MsgType, payload []byte) (Message, error) {
	msg, ok := New(t)
	if !ok {
		return nil, fmt.Errorf("proto: unknown message type 0x%02x", uint8(t))
	}
	rest, err := msg.UnmarshalMsg(payload)
	if err != nil {
		return nil, fmt.Errorf("proto: decode %s: %w", t, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("proto: decode %s: %d trailing bytes", t, len(rest))
	}
	return msg, nil
}

// Encode serializes msg's payload (without the frame header).
func Encode(msg Message) ([]byte, error) {
	return msg.MarshalMsg(nil)
}
