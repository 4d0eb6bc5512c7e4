package pomp

import (
	"bytes"
	"testing"
)

func TestMinimalMessage(t *testing.T) {
	m := NewMessage()
	if err := m.Write(7, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{
		0x50, 0x4F, 0x4D, 0x50,
		0x07, 0x00, 0x00, 0x00,
		0x0C, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(m.Bytes(), want) {
		t.Fatalf("Bytes() = % X, want % X", m.Bytes(), want)
	}
	if !m.Finished() {
		t.Fatal("message should be finished")
	}
}

func TestAllTypesMessage(t *testing.T) {
	const format = "%hhd%hhu%hd%hu%d%u%lld%llu%s%p%f%lf"
	args := []interface{}{
		int64(-32), uint64(212), int64(-1000), uint64(23000),
		int64(-71000), uint64(3000000000), int64(-4000000000), uint64(10000000000000000000),
		"Hello World !!!", []byte("hELLO wORLD ???"),
		float64(3.1415927410125732), float64(3.141592653589793),
	}
	m := NewMessage()
	if err := m.Write(42, format, args...); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantPayload := []byte{
		0x01, 0xE0,
		0x02, 0xD4,
		0x03, 0x18, 0xFC,
		0x04, 0xD8, 0x59,
		0x05, 0xAF, 0xD5, 0x08,
		0x06, 0x80, 0xBC, 0xC1, 0x96, 0x0B,
		0x07, 0xFF, 0x9F, 0xD9, 0xE6, 0x1D,
		0x08, 0x80, 0x80, 0xA0, 0xCF, 0xC8, 0xE0, 0xC8, 0xE3, 0x8A, 0x01,
		0x09, 0x10, 0x48, 0x65, 0x6C, 0x6C, 0x6F, 0x20, 0x57, 0x6F, 0x72, 0x6C, 0x64, 0x20, 0x21, 0x21, 0x21, 0x00,
		0x0A, 0x0F, 0x68, 0x45, 0x4C, 0x4C, 0x4F, 0x20, 0x77, 0x4F, 0x52, 0x4C, 0x44, 0x20, 0x3F, 0x3F, 0x3F,
		0x0B, 0xDB, 0x0F, 0x49, 0x40,
		0x0C, 0x18, 0x2D, 0x44, 0x54, 0xFB, 0x21, 0x09, 0x40,
	}
	got := m.Bytes()
	if len(got) != headerSize+len(wantPayload) {
		t.Fatalf("message length = %d, want %d", len(got), headerSize+len(wantPayload))
	}
	if !bytes.Equal(got[headerSize:], wantPayload) {
		t.Fatalf("payload = % X\nwant    = % X", got[headerSize:], wantPayload)
	}

	// Header integrity.
	if !bytes.Equal(got[0:4], []byte{0x50, 0x4F, 0x4D, 0x50}) {
		t.Fatalf("bad magic: % X", got[0:4])
	}
	if m.ID() != 42 {
		t.Fatalf("ID() = %d, want 42", m.ID())
	}

	// Round-trip via Read.
	values, err := m.Read(format)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(values) != len(args) {
		t.Fatalf("Read returned %d values, want %d", len(values), len(args))
	}
	for i, want := range args {
		switch w := want.(type) {
		case string:
			if values[i].(string) != w {
				t.Errorf("value[%d] = %q, want %q", i, values[i], w)
			}
		case []byte:
			if !bytes.Equal(values[i].([]byte), w) {
				t.Errorf("value[%d] = % X, want % X", i, values[i], w)
			}
		default:
			if values[i] != want {
				t.Errorf("value[%d] = %v, want %v", i, values[i], want)
			}
		}
	}
}

func TestHeaderIntegrity(t *testing.T) {
	m := NewMessage()
	if err := m.Write(99, "%d", int64(5)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b := m.Bytes()
	if len(b) < headerSize {
		t.Fatalf("message shorter than header: %d", len(b))
	}
	totalLen := uint32(b[8]) | uint32(b[9])<<8 | uint32(b[10])<<16 | uint32(b[11])<<24
	if int(totalLen) != len(b) {
		t.Fatalf("header size field = %d, want %d", totalLen, len(b))
	}
}

func TestReadOnlyLatch(t *testing.T) {
	m := NewMessage()
	if err := m.Write(1, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.buf.Write([]byte{0x00}); err != ErrLatched {
		t.Fatalf("expected ErrLatched after Finish, got %v", err)
	}
}

func TestFormatIdempotence(t *testing.T) {
	m := NewMessage()
	if err := m.Write(1, "%d%d%d", int64(1), int64(2), int64(3)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	values, err := m.Read("%d%d%d")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
}

func TestWriteMissingArgFails(t *testing.T) {
	m := NewMessage()
	err := m.Write(1, "%d%d", int64(1))
	if err == nil {
		t.Fatal("expected error for missing argument")
	}
}

func TestDecodeOnUnfinishedFails(t *testing.T) {
	m := NewMessage()
	m.Init(1)
	if _, err := m.Read(""); err == nil {
		t.Fatal("expected error reading an unfinished message")
	}
}
