package compute

import (
	"bytes"
	"math"
	"testing"
)

func TestPackerU32(t *testing.T) {
	got := new(Packer).U32(1).U32(0xdeadbeef).Bytes()
	want := []byte{1, 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes = %x, want %x", got, want)
	}
}

func TestPackerI32(t *testing.T) {
	got := new(Packer).I32(-1).Bytes()
	want := []byte{0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes = %x, want %x", got, want)
	}
}

func TestPackerF32(t *testing.T) {
	got := new(Packer).F32(1.5).F32(-0.25).Bytes()
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	b0 := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
	b1 := uint32(got[4]) | uint32(got[5])<<8 | uint32(got[6])<<16 | uint32(got[7])<<24
	if math.Float32frombits(b0) != 1.5 || math.Float32frombits(b1) != -0.25 {
		t.Fatalf("decoded (%g, %g), want (1.5, -0.25)", math.Float32frombits(b0), math.Float32frombits(b1))
	}
}

func TestPackerMixed(t *testing.T) {
	got := new(Packer).U32(7).F32(2.0).U32(0).U32(0).Bytes()
	if len(got) != 16 {
		t.Fatalf("len = %d, want 16", len(got))
	}
	if got[0] != 7 {
		t.Fatalf("first word = %d, want 7", got[0])
	}
}

func TestPackerEmpty(t *testing.T) {
	if b := new(Packer).Bytes(); len(b) != 0 {
		t.Fatalf("empty packer produced %d bytes", len(b))
	}
}
