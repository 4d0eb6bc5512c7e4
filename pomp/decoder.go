package pomp

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decoder is the inverse of Encoder: typed readers mirror the typed
// writers, a format-driven Read mirrors Write, and Dump renders the
// tag stream independent of any caller-supplied format.
type Decoder struct {
	msg *Message
}

// Init positions the read cursor past the reserved 12-byte header
// region. It fails unless the message is finished (spec.md §4.5).
func (d *Decoder) Init(m *Message) error {
	if !m.finished {
		return &DecodeError{Op: "init", Err: ErrNotFinished}
	}
	d.msg = m
	m.buf.Seek(headerSize)
	return nil
}

// Clear drops the reference to the message.
func (d *Decoder) Clear() {
	d.msg = nil
}

func (d *Decoder) expectTag(op string, want Tag) error {
	b, err := d.msg.buf.ReadByte()
	if err != nil {
		return &DecodeError{Op: op, Tag: want, Err: err}
	}
	if Tag(b) != want {
		return &DecodeError{Op: op, Tag: want, Err: ErrTagMismatch}
	}
	return nil
}

// ReadI8 reads a sign-extended I8 value.
func (d *Decoder) ReadI8() (int64, error) {
	if err := d.expectTag("ReadI8", TagI8); err != nil {
		return 0, err
	}
	b, err := d.msg.buf.ReadByte()
	if err != nil {
		return 0, &DecodeError{Op: "ReadI8", Tag: TagI8, Err: err}
	}
	return int64(int8(b)), nil
}

// ReadU8 reads a U8 value.
func (d *Decoder) ReadU8() (uint64, error) {
	if err := d.expectTag("ReadU8", TagU8); err != nil {
		return 0, err
	}
	b, err := d.msg.buf.ReadByte()
	if err != nil {
		return 0, &DecodeError{Op: "ReadU8", Tag: TagU8, Err: err}
	}
	return uint64(b), nil
}

// ReadI16 reads a sign-extended, little-endian I16 value.
func (d *Decoder) ReadI16() (int64, error) {
	if err := d.expectTag("ReadI16", TagI16); err != nil {
		return 0, err
	}
	p, err := d.msg.buf.Read(2)
	if err != nil {
		return 0, &DecodeError{Op: "ReadI16", Tag: TagI16, Err: err}
	}
	return int64(int16(binary.LittleEndian.Uint16(p))), nil
}

// ReadU16 reads a little-endian U16 value.
func (d *Decoder) ReadU16() (uint64, error) {
	if err := d.expectTag("ReadU16", TagU16); err != nil {
		return 0, err
	}
	p, err := d.msg.buf.Read(2)
	if err != nil {
		return 0, &DecodeError{Op: "ReadU16", Tag: TagU16, Err: err}
	}
	return uint64(binary.LittleEndian.Uint16(p)), nil
}

// ReadI32 reads a varint, zigzag-inverts it, and sign-extends to int64.
func (d *Decoder) ReadI32() (int64, error) {
	if err := d.expectTag("ReadI32", TagI32); err != nil {
		return 0, err
	}
	zv, err := d.readVarint("ReadI32", TagI32, 32)
	if err != nil {
		return 0, err
	}
	return int64(zigzagInverse32(uint32(zv))), nil
}

// ReadU32 reads a varint masked to 32 bits.
func (d *Decoder) ReadU32() (uint64, error) {
	if err := d.expectTag("ReadU32", TagU32); err != nil {
		return 0, err
	}
	v, err := d.readVarint("ReadU32", TagU32, 32)
	if err != nil {
		return 0, err
	}
	return uint64(uint32(v)), nil
}

// ReadI64 reads a varint, zigzag-inverts it to a signed 64-bit value.
func (d *Decoder) ReadI64() (int64, error) {
	if err := d.expectTag("ReadI64", TagI64); err != nil {
		return 0, err
	}
	zv, err := d.readVarint("ReadI64", TagI64, 64)
	if err != nil {
		return 0, err
	}
	return zigzagInverse64(zv), nil
}

// ReadU64 reads a varint as an unsigned 64-bit value.
func (d *Decoder) ReadU64() (uint64, error) {
	if err := d.expectTag("ReadU64", TagU64); err != nil {
		return 0, err
	}
	return d.readVarint("ReadU64", TagU64, 64)
}

func (d *Decoder) readVarint(op string, tag Tag, width int) (uint64, error) {
	v, n, err := getUvarint(d.msg.buf.data, d.msg.buf.cursor, width)
	if err != nil {
		return 0, &DecodeError{Op: op, Tag: tag, Err: err}
	}
	d.msg.buf.cursor += n
	return v, nil
}

// ReadF32 reads a little-endian IEEE-754 single.
func (d *Decoder) ReadF32() (float64, error) {
	if err := d.expectTag("ReadF32", TagF32); err != nil {
		return 0, err
	}
	p, err := d.msg.buf.Read(4)
	if err != nil {
		return 0, &DecodeError{Op: "ReadF32", Tag: TagF32, Err: err}
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(p))), nil
}

// ReadF64 reads a little-endian IEEE-754 double.
func (d *Decoder) ReadF64() (float64, error) {
	if err := d.expectTag("ReadF64", TagF64); err != nil {
		return 0, err
	}
	p, err := d.msg.buf.Read(8)
	if err != nil {
		return 0, &DecodeError{Op: "ReadF64", Tag: TagF64, Err: err}
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil
}

// ReadStr reads a length-prefixed, NUL-terminated ASCII string.
func (d *Decoder) ReadStr() (string, error) {
	if err := d.expectTag("ReadStr", TagSTR); err != nil {
		return "", err
	}
	length, err := d.readLength("ReadStr", TagSTR)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", &DecodeError{Op: "ReadStr", Tag: TagSTR, Err: ErrStringEmpty}
	}
	if length > 0xFFFF {
		return "", &DecodeError{Op: "ReadStr", Tag: TagSTR, Err: ErrStringTooLong}
	}
	p, err := d.msg.buf.Read(int(length))
	if err != nil {
		return "", &DecodeError{Op: "ReadStr", Tag: TagSTR, Err: err}
	}
	if p[length-1] != 0x00 {
		return "", &DecodeError{Op: "ReadStr", Tag: TagSTR, Err: ErrStringNotNulTerm}
	}
	return string(p[:length-1]), nil
}

// ReadBuf reads a length-prefixed opaque byte buffer.
func (d *Decoder) ReadBuf() ([]byte, error) {
	if err := d.expectTag("ReadBuf", TagBUF); err != nil {
		return nil, err
	}
	length, err := d.readLength("ReadBuf", TagBUF)
	if err != nil {
		return nil, err
	}
	p, err := d.msg.buf.Read(int(length))
	if err != nil {
		return nil, &DecodeError{Op: "ReadBuf", Tag: TagBUF, Err: err}
	}
	return p, nil
}

// readLength decodes a length varint, rejecting lengths that could not
// possibly fit in the remaining buffer (Open Question #2 in DESIGN.md:
// reads past end are bounds-checked rather than left to panic).
func (d *Decoder) readLength(op string, tag Tag) (uint64, error) {
	length, n, err := getUvarint(d.msg.buf.data, d.msg.buf.cursor, 64)
	if err != nil {
		return 0, &DecodeError{Op: op, Tag: tag, Err: err}
	}
	d.msg.buf.cursor += n
	if length > uint64(d.msg.buf.Remaining()) {
		return 0, &DecodeError{Op: op, Tag: tag, Err: ErrTruncated}
	}
	return length, nil
}

// Read is the format-driven convenience surface: it parses format and
// returns one native Go value per conversion, in order.
func (d *Decoder) Read(format string) ([]interface{}, error) {
	conversions, err := parseFormat(format)
	if err != nil {
		return nil, &DecodeError{Op: "Read", Err: err}
	}
	out := make([]interface{}, 0, len(conversions))
	for _, conv := range conversions {
		v, err := d.readConversion(conv)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Decoder) readConversion(conv conversion) (interface{}, error) {
	switch conv.kind {
	case kindSigned:
		switch conv.tag {
		case TagI8:
			return d.ReadI8()
		case TagI16:
			return d.ReadI16()
		case TagI32:
			return d.ReadI32()
		case TagI64:
			return d.ReadI64()
		}
	case kindUnsigned:
		switch conv.tag {
		case TagU8:
			return d.ReadU8()
		case TagU16:
			return d.ReadU16()
		case TagU32:
			return d.ReadU32()
		case TagU64:
			return d.ReadU64()
		}
	case kindFloat:
		if conv.tag == TagF32 {
			return d.ReadF32()
		}
		return d.ReadF64()
	case kindString:
		return d.ReadStr()
	case kindBuffer:
		return d.ReadBuf()
	}
	panic("pomp: unreachable conversion kind")
}

// Dump ignores any caller-provided format and re-derives the value
// sequence from the tag stream, producing a stable textual form:
// "{ID:<id>, <TAG>:<value>, ...}".
func (d *Decoder) Dump() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "{ID:%d", d.msg.id)
	for d.msg.buf.Remaining() > 0 {
		tagByte, err := d.msg.buf.ReadByte()
		if err != nil {
			return "", &DecodeError{Op: "Dump", Err: err}
		}
		tag := Tag(tagByte)
		if !tag.valid() {
			return "", &DecodeError{Op: "Dump", Tag: tag, Err: ErrUnknownTag}
		}
		d.msg.buf.cursor--
		rendered, err := d.dumpOne(tag)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ", %s:%s", tag, rendered)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (d *Decoder) dumpOne(tag Tag) (string, error) {
	switch tag {
	case TagI8:
		v, err := d.ReadI8()
		return strconv.FormatInt(v, 10), err
	case TagU8:
		v, err := d.ReadU8()
		return strconv.FormatUint(v, 10), err
	case TagI16:
		v, err := d.ReadI16()
		return strconv.FormatInt(v, 10), err
	case TagU16:
		v, err := d.ReadU16()
		return strconv.FormatUint(v, 10), err
	case TagI32:
		v, err := d.ReadI32()
		return strconv.FormatInt(v, 10), err
	case TagU32:
		v, err := d.ReadU32()
		return strconv.FormatUint(v, 10), err
	case TagI64:
		v, err := d.ReadI64()
		return strconv.FormatInt(v, 10), err
	case TagU64:
		v, err := d.ReadU64()
		return strconv.FormatUint(v, 10), err
	case TagSTR:
		v, err := d.ReadStr()
		if err != nil {
			return "", err
		}
		return reprString(v), nil
	case TagBUF:
		v, err := d.ReadBuf()
		if err != nil {
			return "", err
		}
		return reprBytes(v), nil
	case TagF32:
		v, err := d.ReadF32()
		return strconv.FormatFloat(v, 'g', -1, 32), err
	case TagF64:
		v, err := d.ReadF64()
		return strconv.FormatFloat(v, 'g', -1, 64), err
	default:
		return "", &DecodeError{Op: "Dump", Tag: tag, Err: ErrUnknownTag}
	}
}

// reprString renders s in a Python repr()-like form: always
// single-quoted, with backslash, single quote and non-printable ASCII
// escaped. Unlike repr(), it never switches to double quotes.
func reprString(s string) string {
	return reprBytes([]byte(s))
}

func reprBytes(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, c := range b {
		switch {
		case c == '\\' || c == '\'':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
