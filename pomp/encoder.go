package pomp

import (
	"encoding/binary"
	"math"
)

const headerSize = 12

// Encoder walks a format string and an argument sequence (or is driven
// directly through its typed Write* methods), emitting a type-tagged
// value stream into a Message's Buffer. It borrows a Message for the
// duration of a call chain bounded by Init -> writes -> Clear.
type Encoder struct {
	msg *Message
}

// Init positions the write cursor past the reserved 12-byte header
// region. It fails if the message is already finished.
func (e *Encoder) Init(m *Message) error {
	if m.finished {
		return &EncodeError{Op: "init", Err: ErrAlreadyFinished}
	}
	e.msg = m
	m.buf.Seek(headerSize)
	return nil
}

// Clear drops the reference to the message.
func (e *Encoder) Clear() {
	e.msg = nil
}

func (e *Encoder) writeTag(op string, tag Tag, payload []byte) error {
	if err := e.msg.buf.WriteByte(byte(tag)); err != nil {
		return &EncodeError{Op: op, Tag: tag, Err: err}
	}
	if err := e.msg.buf.Write(payload); err != nil {
		return &EncodeError{Op: op, Tag: tag, Err: err}
	}
	return nil
}

// WriteI8 appends an I8 value, masking v to 8 bits.
func (e *Encoder) WriteI8(v int64) error {
	return e.writeTag("WriteI8", TagI8, []byte{byte(int8(v))})
}

// WriteU8 appends a U8 value, masking v to 8 bits.
func (e *Encoder) WriteU8(v uint64) error {
	return e.writeTag("WriteU8", TagU8, []byte{byte(uint8(v))})
}

// WriteI16 appends an I16 value, masking v to 16 bits, little-endian.
func (e *Encoder) WriteI16(v int64) error {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(int16(v)))
	return e.writeTag("WriteI16", TagI16, tmp[:])
}

// WriteU16 appends a U16 value, masking v to 16 bits, little-endian.
func (e *Encoder) WriteU16(v uint64) error {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	return e.writeTag("WriteU16", TagU16, tmp[:])
}

// WriteI32 appends an I32 value as a varint of zigzag(v), masked to 32 bits.
func (e *Encoder) WriteI32(v int64) error {
	zv := zigzag32(int32(v))
	return e.writeTag("WriteI32", TagI32, putUvarint(nil, uint64(zv)))
}

// WriteU32 appends a U32 value as a varint of v masked to 32 bits.
func (e *Encoder) WriteU32(v uint64) error {
	return e.writeTag("WriteU32", TagU32, putUvarint(nil, uint64(uint32(v))))
}

// WriteI64 appends an I64 value as a varint of zigzag64(v).
func (e *Encoder) WriteI64(v int64) error {
	return e.writeTag("WriteI64", TagI64, putUvarint(nil, zigzag64(v)))
}

// WriteU64 appends a U64 value as a varint of v.
func (e *Encoder) WriteU64(v uint64) error {
	return e.writeTag("WriteU64", TagU64, putUvarint(nil, v))
}

// WriteF32 appends an F32 value, 4 little-endian IEEE-754 bytes.
func (e *Encoder) WriteF32(v float64) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(float32(v)))
	return e.writeTag("WriteF32", TagF32, tmp[:])
}

// WriteF64 appends an F64 value, 8 little-endian IEEE-754 bytes.
func (e *Encoder) WriteF64(v float64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return e.writeTag("WriteF64", TagF64, tmp[:])
}

// WriteStr appends an ASCII string: a varint length (including the
// trailing NUL), the string bytes, then a NUL terminator.
func (e *Encoder) WriteStr(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return &EncodeError{Op: "WriteStr", Tag: TagSTR, Err: ErrNonASCII}
		}
	}
	if len(s)+1 > 0xFFFF {
		return &EncodeError{Op: "WriteStr", Tag: TagSTR, Err: ErrStringTooLong}
	}
	payload := putUvarint(nil, uint64(len(s)+1))
	payload = append(payload, s...)
	payload = append(payload, 0x00)
	return e.writeTag("WriteStr", TagSTR, payload)
}

// WriteBuf appends an opaque byte buffer: a varint length, then the
// raw bytes. The length is not checked; a buffer longer than 2^32-1
// bytes is not rejected here.
func (e *Encoder) WriteBuf(b []byte) error {
	payload := putUvarint(nil, uint64(len(b)))
	payload = append(payload, b...)
	return e.writeTag("WriteBuf", TagBUF, payload)
}

// Write is the format-driven convenience surface: it parses format and
// consumes one argument per conversion, coercing each argument to the
// width/kind the format demands.
func (e *Encoder) Write(format string, args ...interface{}) error {
	conversions, err := parseFormat(format)
	if err != nil {
		return &EncodeError{Op: "Write", Err: err}
	}
	if len(args) < len(conversions) {
		return &EncodeError{Op: "Write", Err: ErrMissingArg}
	}
	for i, conv := range conversions {
		arg := args[i]
		if err := e.writeConversion(conv, arg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeConversion(conv conversion, arg interface{}) error {
	switch conv.kind {
	case kindSigned:
		v, err := coerceInt64(arg)
		if err != nil {
			return &EncodeError{Op: "Write", Tag: conv.tag, Err: err}
		}
		switch conv.tag {
		case TagI8:
			return e.WriteI8(v)
		case TagI16:
			return e.WriteI16(v)
		case TagI32:
			return e.WriteI32(v)
		case TagI64:
			return e.WriteI64(v)
		}
	case kindUnsigned:
		v, err := coerceUint64(arg)
		if err != nil {
			return &EncodeError{Op: "Write", Tag: conv.tag, Err: err}
		}
		switch conv.tag {
		case TagU8:
			return e.WriteU8(v)
		case TagU16:
			return e.WriteU16(v)
		case TagU32:
			return e.WriteU32(v)
		case TagU64:
			return e.WriteU64(v)
		}
	case kindFloat:
		v, err := coerceFloat64(arg)
		if err != nil {
			return &EncodeError{Op: "Write", Tag: conv.tag, Err: err}
		}
		if conv.tag == TagF32 {
			return e.WriteF32(v)
		}
		return e.WriteF64(v)
	case kindString:
		s, ok := arg.(string)
		if !ok {
			return &EncodeError{Op: "Write", Tag: TagSTR, Err: ErrArgType}
		}
		return e.WriteStr(s)
	case kindBuffer:
		b, ok := arg.([]byte)
		if !ok {
			return &EncodeError{Op: "Write", Tag: TagBUF, Err: ErrArgType}
		}
		return e.WriteBuf(b)
	}
	panic("pomp: unreachable conversion kind")
}

func coerceInt64(arg interface{}) (int64, error) {
	switch v := arg.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, ErrArgType
	}
}

func coerceUint64(arg interface{}) (uint64, error) {
	switch v := arg.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case int:
		return uint64(v), nil
	case int8:
		return uint64(v), nil
	case int16:
		return uint64(v), nil
	case int32:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	default:
		return 0, ErrArgType
	}
}

func coerceFloat64(arg interface{}) (float64, error) {
	switch v := arg.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, ErrArgType
	}
}
