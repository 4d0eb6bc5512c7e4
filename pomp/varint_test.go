package pomp

import (
	"bytes"
	"math"
	"testing"
)

func TestVarintBoundaries(t *testing.T) {
	cases := []struct {
		name string
		v    uint32
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"onebyte-max", 127, []byte{0x7F}},
		{"twobyte-min", 128, []byte{0x80, 0x01}},
		{"u32-max", 0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := putUvarint(nil, uint64(c.v))
			if !bytes.Equal(got, c.want) {
				t.Fatalf("putUvarint(%d) = % X, want % X", c.v, got, c.want)
			}
			decoded, n, err := getUvarint(got, 0, 32)
			if err != nil {
				t.Fatalf("getUvarint: %v", err)
			}
			if n != len(got) || uint32(decoded) != c.v {
				t.Fatalf("round-trip mismatch: got %d in %d bytes, want %d in %d bytes", decoded, n, c.v, len(got))
			}
		})
	}
}

func TestVarintCanonicalLength(t *testing.T) {
	// ceil(bitlen(v)/7) bytes, 1 byte for v=0.
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1}, {1, 1}, {127, 1},
		{128, 2}, {16383, 2},
		{16384, 3},
		{1 << 34, 5},
	}
	for _, c := range cases {
		got := putUvarint(nil, c.v)
		if len(got) != c.want {
			t.Errorf("putUvarint(%d) has %d bytes, want %d", c.v, len(got), c.want)
		}
	}
}

func TestZigzagBoundaries(t *testing.T) {
	cases := []struct {
		name string
		v    int32
		want []byte
	}{
		{"neg-one", -1, []byte{0x01}},
		{"one", 1, []byte{0x02}},
		{"int32-min", math.MinInt32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := putUvarint(nil, uint64(zigzag32(c.v)))
			if !bytes.Equal(got, c.want) {
				t.Fatalf("zigzag32(%d) varint = % X, want % X", c.v, got, c.want)
			}
		})
	}
}

func TestZigzagIdentity32(t *testing.T) {
	samples := []int32{0, 1, -1, 2, -2, math.MaxInt32, math.MinInt32, 12345, -12345}
	for _, v := range samples {
		if got := zigzagInverse32(zigzag32(v)); got != v {
			t.Errorf("zigzagInverse32(zigzag32(%d)) = %d", v, got)
		}
	}
}

func TestZigzagIdentity64(t *testing.T) {
	samples := []int64{0, 1, -1, 2, -2, math.MaxInt64, math.MinInt64, 1 << 40, -(1 << 40)}
	for _, v := range samples {
		if got := zigzagInverse64(zigzag64(v)); got != v {
			t.Errorf("zigzagInverse64(zigzag64(%d)) = %d", v, got)
		}
	}
}

func TestVarintOverflowRejected(t *testing.T) {
	// A 6-byte varint for a 32-bit target (limit is 5 bytes) must fail
	// rather than silently alias into a truncated value.
	overlong := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, _, err := getUvarint(overlong, 0, 32); err != ErrVarintOverflow {
		t.Fatalf("expected ErrVarintOverflow, got %v", err)
	}
}
