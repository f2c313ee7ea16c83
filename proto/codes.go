// Package proto defines the Splice wire protocol's message taxonomy:
// nineteen tagged-union variants grouped into lifecycle, registry,
// invocation, streaming, and out-of-band messages, plus the capability
// and error-code enumerations that are part of the wire contract.
package proto

// MsgType is the one-byte type code that prefixes every frame payload
// (see wire.Frame) — redundant with the tag msgpack-encodes inside the
// payload itself, but cheap to route and log on before full decode.
type MsgType uint8

const (
	TypeHandshake    MsgType = 0x01
	TypeHandshakeAck MsgType = 0x02
	TypeShutdown     MsgType = 0x03
	TypeShutdownAck  MsgType = 0x04

	TypeListExports       MsgType = 0x10
	TypeListExportsResult MsgType = 0x11

	TypeInvoke       MsgType = 0x20
	TypeInvokeResult MsgType = 0x21
	TypeInvokeError  MsgType = 0x22

	TypeStreamStart MsgType = 0x30
	TypeStreamChunk MsgType = 0x31
	TypeStreamEnd   MsgType = 0x32
	TypeStreamError MsgType = 0x33
	TypeStreamAck   MsgType = 0x34

	TypeCancel    MsgType = 0x40
	TypeCancelAck MsgType = 0x41
	TypeLogEvent  MsgType = 0x50

	TypeHealthCheck  MsgType = 0x60
	TypeHealthStatus MsgType = 0x61
)

func (t MsgType) String() string {
	switch t {
	case TypeHandshake:
		return "Handshake"
	case TypeHandshakeAck:
		return "HandshakeAck"
	case TypeShutdown:
		return "Shutdown"
	case TypeShutdownAck:
		return "ShutdownAck"
	case TypeListExports:
		return "ListExports"
	case TypeListExportsResult:
		return "ListExportsResult"
	case TypeInvoke:
		return "Invoke"
	case TypeInvokeResult:
		return "InvokeResult"
	case TypeInvokeError:
		return "InvokeError"
	case TypeStreamStart:
		return "StreamStart"
	case TypeStreamChunk:
		return "StreamChunk"
	case TypeStreamEnd:
		return "StreamEnd"
	case TypeStreamError:
		return "StreamError"
	case TypeStreamAck:
		return "StreamAck"
	case TypeCancel:
		return "Cancel"
	case TypeCancelAck:
		return "CancelAck"
	case TypeLogEvent:
		return "LogEvent"
	case TypeHealthCheck:
		return "HealthCheck"
	case TypeHealthStatus:
		return "HealthStatus"
	default:
		return "Unknown"
	}
}

// Role identifies which side of a connection sent a Handshake.
type Role uint8

const (
	RoleHost Role = iota
	RoleWorker
)

func (r Role) String() string {
	if r == RoleWorker {
		return "Worker"
	}
	return "Host"
}

// Capability is a bitmask of optional protocol features negotiated at
// handshake time. Effective capabilities are the bitwise AND of both
// sides' offers (spec.md §4.2); a side must not emit a message that
// requires a capability outside the effective set.
type Capability uint32

const (
	CapStreaming    Capability = 1 << 0
	CapCancellation Capability = 1 << 1
	CapCompression  Capability = 1 << 2
)

func (c Capability) Has(bit Capability) bool { return c&bit != 0 }

// ProtocolVersion is a single opaque u32; a mismatch on handshake is
// fatal for the connection (spec.md §4.2).
const ProtocolVersion uint32 = 0x0001_0000

// ErrorKind classifies an InvokeError/StreamError for the caller.
type ErrorKind uint8

const (
	KindUser ErrorKind = iota
	KindSystem
	KindTimeout
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindUser:
		return "User"
	case KindSystem:
		return "System"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error codes, partitioned by first digit per spec.md §4.2.
const (
	// client: 1000-1999
	CodeInvalidParams    uint16 = 1000
	CodeUnauthorized     uint16 = 1001
	CodeFunctionNotFound uint16 = 1002
	CodeFrameTooLarge    uint16 = 1003

	// execution: 2000-2999
	CodeExecutionFailed uint16 = 2000
	CodeTimeout         uint16 = 2001
	CodeCancelled       uint16 = 2002
	CodePanic           uint16 = 2003

	// infrastructure: 3000-3999
	CodeInternal    uint16 = 3000
	CodeUnavailable uint16 = 3001
	CodeOverloaded  uint16 = 3002
)

// LogLevel mirrors the worker's notion of log severity, mapped onto
// cmn/nlog's three levels at the router boundary (see SPEC_FULL.md A.1).
type LogLevel uint8

const (
	LogInfo LogLevel = iota
	LogWarn
	LogErr
)

func (l LogLevel) String() string {
	switch l {
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogErr:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
