package pomp

import "encoding/binary"

// Buffer is a growable byte sequence with an internal read/write cursor
// and a read-only latch, exactly as described in spec.md §3 ("Message
// Buffer"). Writing at the current cursor position grows the buffer if
// the cursor is at the end, or overwrites existing bytes otherwise —
// the latter is how Message.finish() rewrites the 12-byte header
// in place after the payload has already been written past it.
type Buffer struct {
	data    []byte
	cursor  int
	latched bool
}

// NewBuffer returns an empty, writable Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Len reports the total number of bytes written, not the cursor
// position.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffer's backing slice. Callers must not retain it
// across further writes to an unlatched Buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Seek repositions the cursor. The cursor may be moved freely, including
// past the current length; a subsequent Write extends the buffer to
// cover the gap.
func (b *Buffer) Seek(offset int) {
	b.cursor = offset
}

// Tell reports the current cursor position.
func (b *Buffer) Tell() int { return b.cursor }

// Latch makes the buffer read-only. Idempotent.
func (b *Buffer) Latch() { b.latched = true }

// Latched reports whether the buffer is read-only.
func (b *Buffer) Latched() bool { return b.latched }

// Reset clears the buffer back to empty and writable.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.cursor = 0
	b.latched = false
}

// Write copies p into the buffer at the cursor, growing the buffer if
// the cursor plus len(p) extends past the current length, and advances
// the cursor. It fails if the buffer is latched.
func (b *Buffer) Write(p []byte) error {
	if b.latched {
		return ErrLatched
	}
	end := b.cursor + len(p)
	if end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.cursor:end], p)
	b.cursor = end
	return nil
}

// WriteByte appends a single byte, satisfying io.ByteWriter.
func (b *Buffer) WriteByte(v byte) error {
	return b.Write([]byte{v})
}

// WriteU32LE writes v as 4 little-endian bytes.
func (b *Buffer) WriteU32LE(v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return b.Write(tmp[:])
}

// growTo extends the buffer to at least n bytes, zero-filling the gap,
// without touching the cursor. Used by Message.Finish to guarantee the
// reserved header region exists even for a message with an empty
// payload (Encoder.Init only seeks past it; it writes nothing).
func (b *Buffer) growTo(n int) {
	if n > len(b.data) {
		grown := make([]byte, n)
		copy(grown, b.data)
		b.data = grown
	}
}

// Read copies exactly n bytes starting at the cursor into a new slice,
// advancing the cursor, and fails with ErrTruncated if fewer than n
// bytes remain.
func (b *Buffer) Read(n int) ([]byte, error) {
	if b.cursor+n > len(b.data) || n < 0 {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, b.data[b.cursor:b.cursor+n])
	b.cursor += n
	return out, nil
}

// ReadByte reads a single byte, satisfying io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	p, err := b.Read(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Remaining reports how many unread bytes remain between the cursor and
// the end of the buffer.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.cursor
}
