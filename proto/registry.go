package proto

import "github.com/tinylib/msgp/msgp"

// ExportMetadata describes one function the worker exposes. The core
// treats ParamsSchema/ReturnSchema as opaque blobs; collaborators above
// the core may parse them (spec.md §3 Export metadata).
type ExportMetadata struct {
	Name         string
	IsAsync      bool
	IsStreaming  bool
	ParamsSchema []byte
	ReturnSchema []byte
}

func (e *ExportMetadata) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 5)
	b = msgp.AppendString(b, "Name")
	b = msgp.AppendString(b, e.Name)
	b = msgp.AppendString(b, "IsAsync")
	b = msgp.AppendBool(b, e.IsAsync)
	b = msgp.AppendString(b, "IsStreaming")
	b = msgp.AppendBool(b, e.IsStreaming)
	b = msgp.AppendString(b, "ParamsSchema")
	b = msgp.AppendBytes(b, e.ParamsSchema)
	b = msgp.AppendString(b, "ReturnSchema")
	b = msgp.AppendBytes(b, e.ReturnSchema)
	return b, nil
}

func (e *ExportMetadata) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "Name":
			e.Name, bts, err = msgp.ReadStringBytes(bts)
		case "IsAsync":
			e.IsAsync, bts, err = msgp.ReadBoolBytes(bts)
		case "IsStreaming":
			e.IsStreaming, bts, err = msgp.ReadBoolBytes(bts)
		case "ParamsSchema":
			e.ParamsSchema, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "ReturnSchema":
			e.ReturnSchema, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type ListExports struct{}

func (ListExports) Type() MsgType                       { return TypeListExports }
func (ListExports) MarshalMsg(b []byte) ([]byte, error) { return msgp.AppendMapHeader(b, 0), nil }
func (*ListExports) UnmarshalMsg(bts []byte) ([]byte, error) {
	return skipEmptyMap(bts)
}

type ListExportsResult struct {
	Exports []ExportMetadata
}

func (ListExportsResult) Type() MsgType { return TypeListExportsResult }

func (m *ListExportsResult) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "Exports")
	b = msgp.AppendArrayHeader(b, uint32(len(m.Exports)))
	for i := range m.Exports {
		b, err = m.Exports[i].MarshalMsg(b)
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

func (m *ListExportsResult) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "Exports":
			var n uint32
			n, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			m.Exports = make([]ExportMetadata, n)
			for j := uint32(0); j < n; j++ {
				bts, err = m.Exports[j].UnmarshalMsg(bts)
				if err != nil {
					return bts, err
				}
			}
			continue
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
