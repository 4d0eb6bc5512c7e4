package pomp

import "encoding/binary"

// Magic is the 4-byte constant "POMP" that marks the start of every
// framed message on the wire (spec.md §3, §6).
const Magic uint32 = 0x504D4F50

// Message owns a Buffer, an identifier, and a finished latch. It is
// mutated exclusively through an Encoder while unfinished, finalized
// exactly once (writing the header and freezing the buffer), and may
// then be read any number of times by Decoders but never mutated again
// (spec.md §3).
type Message struct {
	id       uint32
	buf      *Buffer
	finished bool
}

// NewMessage returns an empty, uninitialized Message.
func NewMessage() *Message {
	return &Message{buf: NewBuffer()}
}

// Init resets the message to carry id, with an empty, writable buffer.
func (m *Message) Init(id uint32) {
	m.id = id
	m.buf.Reset()
	m.finished = false
}

// ID reports the message identifier.
func (m *Message) ID() uint32 { return m.id }

// Finished reports whether Finish has been called.
func (m *Message) Finished() bool { return m.finished }

// Bytes returns the complete wire representation (header + payload).
// Valid only once Finished.
func (m *Message) Bytes() []byte { return m.buf.Bytes() }

// Clear releases the message's contents back to an empty, writable
// state, as if newly constructed.
func (m *Message) Clear() {
	m.id = 0
	m.buf.Reset()
	m.finished = false
}

// Finish writes the 12-byte header (magic, id, total length) at offset
// 0 and latches the buffer read-only. It is a caller error to call
// Finish twice.
func (m *Message) Finish() error {
	if m.finished {
		return ErrAlreadyFinished
	}
	// An empty-payload message never advanced the buffer past the
	// reserved header region (Encoder.Init only seeks over it); ensure
	// it exists before overwriting it below.
	m.buf.growTo(headerSize)
	m.buf.Seek(0)
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], m.id)
	binary.LittleEndian.PutUint32(header[8:12], uint32(m.buf.Len()))
	if err := m.buf.Write(header[:]); err != nil {
		return err
	}
	m.buf.Latch()
	m.finished = true
	return nil
}

// Write is the composite init -> encoder writes -> finish operation.
func (m *Message) Write(id uint32, format string, args ...interface{}) error {
	m.Init(id)
	var enc Encoder
	if err := enc.Init(m); err != nil {
		return err
	}
	defer enc.Clear()
	if err := enc.Write(format, args...); err != nil {
		return err
	}
	return m.Finish()
}

// Read requires the message to be Finished; it decodes the payload
// according to format and returns the resulting value tuple.
func (m *Message) Read(format string) ([]interface{}, error) {
	if !m.finished {
		return nil, &DecodeError{Op: "Read", Err: ErrNotFinished}
	}
	var dec Decoder
	if err := dec.Init(m); err != nil {
		return nil, err
	}
	defer dec.Clear()
	return dec.Read(format)
}

// Dump requires the message to be Finished; it returns the tag-stream
// derived textual form described in spec.md §4.3.
func (m *Message) Dump() (string, error) {
	if !m.finished {
		return "", &DecodeError{Op: "Dump", Err: ErrNotFinished}
	}
	var dec Decoder
	if err := dec.Init(m); err != nil {
		return "", err
	}
	defer dec.Clear()
	return dec.Dump()
}
