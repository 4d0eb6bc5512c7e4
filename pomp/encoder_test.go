package pomp

import (
	"errors"
	"testing"
)

func TestFormatGrammarErrors(t *testing.T) {
	cases := []string{
		"x",    // stray byte, no leading %
		"%",    // unterminated
		"%z",   // unknown conversion
		"%hhf", // float with hh flag
		"%hs",  // flags on %s
		"%ll",  // flags consumed, no conversion character follows
	}
	m := NewMessage()
	m.Init(1)
	var enc Encoder
	if err := enc.Init(m); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, f := range cases {
		if err := enc.Write(f, int64(1)); err == nil {
			t.Errorf("format %q: expected error, got none", f)
		}
	}
}

func TestIntegerMasking(t *testing.T) {
	m := NewMessage()
	if err := m.Write(1, "%hhd", int64(300)); err != nil { // 300 truncates to 8 bits -> 44 (0x2C)
		t.Fatalf("Write: %v", err)
	}
	values, err := m.Read("%hhd")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if values[0].(int64) != 44 {
		t.Fatalf("masked value = %v, want 44", values[0])
	}
}

func TestWriteAfterFinishFails(t *testing.T) {
	m := NewMessage()
	if err := m.Write(1, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var enc Encoder
	if err := enc.Init(m); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
}

func TestArgNotCoercible(t *testing.T) {
	m := NewMessage()
	m.Init(1)
	var enc Encoder
	if err := enc.Init(m); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.Write("%d", "not a number"); !errors.Is(err, ErrArgType) {
		t.Fatalf("expected ErrArgType, got %v", err)
	}
}
