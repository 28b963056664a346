// Package match implements the sparse feature pipeline: corner detection,
// binary descriptor extraction, and approximate descriptor matching through
// a reference tree. The heavy stages run as compute kernels; this package
// carries their host-side mirrors, the tree builder, and the Step wiring.
package match

import "math/bits"

// Descriptor geometry. Four rings of sixteen samples and four intensity
// bands give one bit per (sample, band): 256 bits in eight words. Ring r
// occupies the 64-bit lane of words 2r and 2r+1, so one angular step of a
// ring equals a 4-bit lane rotation.
const (
	DescriptorWords = 8
	DescriptorBits  = 256

	ringCount   = 4
	angleCount  = 16
	bandCount   = 4
	sampleCount = ringCount * angleCount
)

// bandWidth is the half-width of the intensity bands in gray levels.
const bandWidth = 16.0

// Descriptor is a 256-bit appearance fingerprint.
type Descriptor [DescriptorWords]uint32

// sampleOffsets holds the ring sampling pattern, angle-major within each
// ring, radii 3, 5, 7 and 9.
var sampleOffsets = [sampleCount][2]int32{
	{3, 0}, {3, 1}, {2, 2}, {1, 3}, {0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3}, {0, -3}, {1, -3}, {2, -2}, {3, -1},
	{5, 0}, {5, 2}, {4, 4}, {2, 5}, {0, 5}, {-2, 5}, {-4, 4}, {-5, 2},
	{-5, 0}, {-5, -2}, {-4, -4}, {-2, -5}, {0, -5}, {2, -5}, {4, -4}, {5, -2},
	{7, 0}, {6, 3}, {5, 5}, {3, 6}, {0, 7}, {-3, 6}, {-5, 5}, {-6, 3},
	{-7, 0}, {-6, -3}, {-5, -5}, {-3, -6}, {0, -7}, {3, -6}, {5, -5}, {6, -3},
	{9, 0}, {8, 3}, {6, 6}, {3, 8}, {0, 9}, {-3, 8}, {-6, 6}, {-8, 3},
	{-9, 0}, {-8, -3}, {-6, -6}, {-3, -8}, {0, -9}, {3, -8}, {6, -6}, {8, -3},
}

// blendOffsets orders the reference-frame blend neighbourhood: centre,
// 4-neighbourhood, diagonals. A blend size of 1, 5 or 9 takes a prefix.
var blendOffsets = [9][2]int32{
	{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

// SampleRadius is the farthest sample offset from the centre pixel. With the
// widest blend the pattern needs one more pixel on each side.
const SampleRadius = 9

// FromPatch extracts the descriptor at (x, y) of a row-major gray plane,
// blending the given number of neighbourhood offsets by OR. The caller must
// keep the full pattern inside the image. Mirrors the extraction kernel
// bit for bit.
func FromPatch(gray []float32, width int, x, y, blend int) Descriptor {
	var d Descriptor
	for b := 0; b < blend; b++ {
		cx := x + int(blendOffsets[b][0])
		cy := y + int(blendOffsets[b][1])

		var vals [sampleCount]float32
		var sum float32
		for s := 0; s < sampleCount; s++ {
			v := gray[(cy+int(sampleOffsets[s][1]))*width+cx+int(sampleOffsets[s][0])]
			vals[s] = v
			sum += v
		}
		mean := sum / sampleCount

		for s := 0; s < sampleCount; s++ {
			dev := vals[s] - mean
			band := uint32(3)
			switch {
			case dev < -bandWidth:
				band = 0
			case dev < 0:
				band = 1
			case dev < bandWidth:
				band = 2
			}
			lanebit := uint32(s%angleCount)*bandCount + band
			word := uint32(s/angleCount)*2 + lanebit/32
			d[word] |= 1 << (lanebit % 32)
		}
	}
	return d
}

// Popcount returns the number of set bits.
func (d Descriptor) Popcount() int {
	n := 0
	for _, w := range d {
		n += bits.OnesCount32(w)
	}
	return n
}

// IsZero reports whether no bits are set.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// Or returns the bitwise union with o.
func (d Descriptor) Or(o Descriptor) Descriptor {
	var out Descriptor
	for i := range d {
		out[i] = d[i] | o[i]
	}
	return out
}

// Rotate returns the descriptor with every ring lane rotated left by the
// given number of angular steps (4 bits each).
func (d Descriptor) Rotate(steps int) Descriptor {
	s := uint32(((steps%angleCount)+angleCount)%angleCount) * 4

	var out Descriptor
	for r := 0; r < ringCount; r++ {
		lo, hi := d[r*2], d[r*2+1]
		t := s
		if t >= 32 {
			lo, hi = hi, lo
			t -= 32
		}
		if t != 0 {
			lo, hi = lo<<t|hi>>(32-t), hi<<t|lo>>(32-t)
		}
		out[r*2], out[r*2+1] = lo, hi
	}
	return out
}

// DistanceTo returns the matching error against a reference descriptor: the
// number of bits set here but absent from r. Asymmetric, so a blended
// reference forgives small appearance shifts in the query.
func (d Descriptor) DistanceTo(r Descriptor) int {
	n := 0
	for i := range d {
		n += bits.OnesCount32(d[i] &^ r[i])
	}
	return n
}

// Clipped zeroes the descriptor when its popcount exceeds maxBits, the host
// mirror of the clip kernel.
func (d Descriptor) Clipped(maxBits int) Descriptor {
	if d.Popcount() > maxBits {
		return Descriptor{}
	}
	return d
}

// Words returns the descriptor as a word slice for upload.
func (d Descriptor) Words() []uint32 {
	return d[:]
}

// FromWords rebuilds descriptors from a flat word slice, len(words) must be
// a whole number of descriptors.
func FromWords(words []uint32) []Descriptor {
	out := make([]Descriptor, len(words)/DescriptorWords)
	for i := range out {
		copy(out[i][:], words[i*DescriptorWords:(i+1)*DescriptorWords])
	}
	return out
}
