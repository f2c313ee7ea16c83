package proto

import "github.com/tinylib/msgp/msgp"

type Invoke struct {
	RequestID    uint64
	FunctionName string
	Params       []byte
	DeadlineMS   uint32
	Context      RequestContext
}

func (Invoke) Type() MsgType { return TypeInvoke }

func (m *Invoke) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	b = msgp.AppendMapHeader(b, 5)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "FunctionName")
	b = msgp.AppendString(b, m.FunctionName)
	b = msgp.AppendString(b, "Params")
	b = msgp.AppendBytes(b, m.Params)
	b = msgp.AppendString(b, "DeadlineMS")
	b = msgp.AppendUint32(b, m.DeadlineMS)
	b = msgp.AppendString(b, "Context")
	b, err = m.Context.MarshalMsg(b)
	return b, err
}

func (m *Invoke) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "FunctionName":
			m.FunctionName, bts, err = msgp.ReadStringBytes(bts)
		case "Params":
			m.Params, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "DeadlineMS":
			m.DeadlineMS, bts, err = msgp.ReadUint32Bytes(bts)
		case "Context":
			bts, err = m.Context.UnmarshalMsg(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type InvokeResult struct {
	RequestID  uint64
	Result     []byte
	DurationUS uint64
}

func (InvokeResult) Type() MsgType { return TypeInvokeResult }

func (m *InvokeResult) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "Result")
	b = msgp.AppendBytes(b, m.Result)
	b = msgp.AppendString(b, "DurationUS")
	b = msgp.AppendUint64(b, m.DurationUS)
	return b, nil
}

func (m *InvokeResult) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "Result":
			m.Result, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "DurationUS":
			m.DurationUS, bts, err = msgp.ReadUint64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type InvokeError struct {
	RequestID uint64
	Code      uint16
	Kind      ErrorKind
	Message   string
	Details   []byte // nil when absent
}

func (InvokeError) Type() MsgType { return TypeInvokeError }

func (m *InvokeError) MarshalMsg(b []byte) ([]byte, error) {
	n := uint32(4)
	if m.Details != nil {
		n++
	}
	b = msgp.AppendMapHeader(b, n)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "Code")
	b = msgp.AppendUint16(b, m.Code)
	b = msgp.AppendString(b, "Kind")
	b = msgp.AppendUint8(b, uint8(m.Kind))
	b = msgp.AppendString(b, "Message")
	b = msgp.AppendString(b, m.Message)
	if m.Details != nil {
		b = msgp.AppendString(b, "Details")
		b = msgp.AppendBytes(b, m.Details)
	}
	return b, nil
}

func (m *InvokeError) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "Code":
			m.Code, bts, err = msgp.ReadUint16Bytes(bts)
		case "Kind":
			var k uint8
			k, bts, err = msgp.ReadUint8Bytes(bts)
			m.Kind = ErrorKind(k)
		case "Message":
			m.Message, bts, err = msgp.ReadStringBytes(bts)
		case "Details":
			m.Details, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
