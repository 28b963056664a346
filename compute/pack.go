package compute

import (
	"encoding/binary"
	"math"
)

// Packer builds the little-endian byte image of a kernel's uniform config
// struct. Fields must be appended in the WGSL declaration order; 16-byte
// struct padding is the caller's responsibility via explicit pad fields.
type Packer struct {
	buf []byte
}

// U32 appends a uint32 field.
func (p *Packer) U32(v uint32) *Packer {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	return p
}

// I32 appends an int32 field.
func (p *Packer) I32(v int32) *Packer {
	return p.U32(uint32(v))
}

// F32 appends a float32 field.
func (p *Packer) F32(v float32) *Packer {
	return p.U32(math.Float32bits(v))
}

// Bytes returns the accumulated encoding.
func (p *Packer) Bytes() []byte { return p.buf }
