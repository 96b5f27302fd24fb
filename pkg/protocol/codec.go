package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers
const (
	fieldRequestType protowire.Number = 1
	fieldWelcome     protowire.Number = 2
	fieldCopyIn      protowire.Number = 3
	fieldExecute     protowire.Number = 4
	fieldCopyOut     protowire.Number = 5
	fieldError       protowire.Number = 6
)

var errPayloadType = errors.New("unsupported payload type")

// Marshal encodes the request envelope
func (r *Request) Marshal() ([]byte, error) {
	var b []byte
	b = appendVarintField(b, fieldRequestType, uint64(int64(r.RequestType)))

	var (
		num  protowire.Number
		body []byte
	)
	switch p := r.Payload.(type) {
	case nil:
		return b, nil
	case *WelcomeRequest:
		num = fieldWelcome
	case *CopyInRequest:
		num = fieldCopyIn
		body = appendStringField(body, 1, p.Pathname)
		body = appendBytesField(body, 2, p.Content)
	case *ExecuteRequest:
		num = fieldExecute
		body = appendStringField(body, 1, p.Executable)
		for _, arg := range p.Arguments {
			// Repeated strings keep empty elements.
			body = protowire.AppendTag(body, 2, protowire.BytesType)
			body = protowire.AppendString(body, arg)
		}
	case *CopyOutRequest:
		num = fieldCopyOut
		body = appendStringField(body, 1, p.Pathname)
	default:
		return nil, fmt.Errorf("%w: %T", errPayloadType, p)
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	return b, nil
}

// Unmarshal decodes b into r, replacing its contents. When several payload
// fields are present the last one wins, as with a protobuf oneof.
func (r *Request) Unmarshal(b []byte) error {
	*r = Request{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRequestType:
			v, n, err := readVarint(typ, b)
			if err != nil {
				return 0, err
			}
			r.RequestType = RequestType(int32(v))
			return n, nil
		case fieldWelcome, fieldCopyIn, fieldExecute, fieldCopyOut:
			body, n, err := readBytes(typ, b)
			if err != nil {
				return 0, err
			}
			payload, err := decodeRequestPayload(num, body)
			if err != nil {
				return 0, err
			}
			r.Payload = payload
			return n, nil
		}
		return 0, nil
	})
}

func decodeRequestPayload(num protowire.Number, b []byte) (RequestPayload, error) {
	switch num {
	case fieldWelcome:
		return &WelcomeRequest{}, decodeFields(b, skipAll)
	case fieldCopyIn:
		p := &CopyInRequest{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return readString(typ, b, &p.Pathname)
			case 2:
				v, n, err := readBytes(typ, b)
				p.Content = v
				return n, err
			}
			return 0, nil
		})
	case fieldExecute:
		p := &ExecuteRequest{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return readString(typ, b, &p.Executable)
			case 2:
				var arg string
				n, err := readString(typ, b, &arg)
				if err != nil {
					return 0, err
				}
				p.Arguments = append(p.Arguments, arg)
				return n, nil
			}
			return 0, nil
		})
	case fieldCopyOut:
		p := &CopyOutRequest{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				return readString(typ, b, &p.Pathname)
			}
			return 0, nil
		})
	}
	return nil, fmt.Errorf("no request payload for field %d", num)
}

// Marshal encodes the response envelope
func (r *Response) Marshal() ([]byte, error) {
	var b []byte
	b = appendVarintField(b, fieldRequestType, uint64(int64(r.RequestType)))

	var (
		num  protowire.Number
		body []byte
	)
	switch p := r.Payload.(type) {
	case nil:
	case *WelcomeResponse:
		num = fieldWelcome
		body = appendStringField(body, 1, p.Hostname)
		body = appendVarintField(body, 2, uint64(p.CoreCount))
	case *CopyInResponse:
		num = fieldCopyIn
		body = appendVarintField(body, 1, protowire.EncodeBool(p.Success))
	case *ExecuteResponse:
		num = fieldExecute
		body = appendVarintField(body, 1, uint64(int64(p.Status)))
	case *CopyOutResponse:
		num = fieldCopyOut
		body = appendVarintField(body, 1, protowire.EncodeBool(p.Success))
		body = appendBytesField(body, 2, p.Content)
	default:
		return nil, fmt.Errorf("%w: %T", errPayloadType, p)
	}

	if num != 0 {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, body)
	}
	b = appendStringField(b, fieldError, r.Error)
	return b, nil
}

// Unmarshal decodes b into r, replacing its contents
func (r *Response) Unmarshal(b []byte) error {
	*r = Response{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRequestType:
			v, n, err := readVarint(typ, b)
			if err != nil {
				return 0, err
			}
			r.RequestType = RequestType(int32(v))
			return n, nil
		case fieldWelcome, fieldCopyIn, fieldExecute, fieldCopyOut:
			body, n, err := readBytes(typ, b)
			if err != nil {
				return 0, err
			}
			payload, err := decodeResponsePayload(num, body)
			if err != nil {
				return 0, err
			}
			r.Payload = payload
			return n, nil
		case fieldError:
			return readString(typ, b, &r.Error)
		}
		return 0, nil
	})
}

func decodeResponsePayload(num protowire.Number, b []byte) (ResponsePayload, error) {
	switch num {
	case fieldWelcome:
		p := &WelcomeResponse{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return readString(typ, b, &p.Hostname)
			case 2:
				v, n, err := readVarint(typ, b)
				p.CoreCount = uint32(v)
				return n, err
			}
			return 0, nil
		})
	case fieldCopyIn:
		p := &CopyInResponse{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				v, n, err := readVarint(typ, b)
				p.Success = protowire.DecodeBool(v)
				return n, err
			}
			return 0, nil
		})
	case fieldExecute:
		p := &ExecuteResponse{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				v, n, err := readVarint(typ, b)
				p.Status = int32(v)
				return n, err
			}
			return 0, nil
		})
	case fieldCopyOut:
		p := &CopyOutResponse{}
		return p, decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n, err := readVarint(typ, b)
				p.Success = protowire.DecodeBool(v)
				return n, err
			case 2:
				v, n, err := readBytes(typ, b)
				p.Content = v
				return n, err
			}
			return 0, nil
		})
	}
	return nil, fmt.Errorf("no response payload for field %d", num)
}

// fieldFunc consumes the value of one field and returns the number of
// bytes used. Returning 0 without an error means the field is unknown and
// is skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func skipAll(protowire.Number, protowire.Type, []byte) (int, error) {
	return 0, nil
}

func decodeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func readVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("wire type %d, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("wire type %d, want bytes", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readString(typ protowire.Type, b []byte, dst *string) (int, error) {
	v, n, err := readBytes(typ, b)
	if err != nil {
		return 0, err
	}
	*dst = string(v)
	return n, nil
}

// Zero values are omitted, matching proto3 scalar encoding.

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}
