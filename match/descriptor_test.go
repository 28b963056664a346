package match

import "testing"

// flatPatch returns a constant image with enough border for the sample
// pattern around its centre.
func flatPatch(value float32) ([]float32, int, int, int) {
	const size = 2*(SampleRadius+1) + 1
	gray := make([]float32, size*size)
	for i := range gray {
		gray[i] = value
	}
	return gray, size, size / 2, size / 2
}

func TestFromPatchBitLayout(t *testing.T) {
	gray, width, cx, cy := flatPatch(100)

	// Brighten the ring-0, angle-0 sample only.
	gray[(cy+0)*width+cx+3] = 200

	d := FromPatch(gray, width, cx, cy, 1)

	if got := d.Popcount(); got != sampleCount {
		t.Fatalf("popcount: got %d, want %d (one bit per sample)", got, sampleCount)
	}

	// The bright sample deviates far above the mean: band 3 at angle 0 of
	// ring 0, so bit 3 of word 0.
	if d[0]&(1<<3) == 0 {
		t.Errorf("bright sample bit not set: word0 = %#x", d[0])
	}

	// A flat sample sits just below the mean: band 1. Check angle 2 of
	// ring 1: lane bit 2*4+1 = 9 in words 2..3.
	if d[2]&(1<<9) == 0 {
		t.Errorf("flat sample bit not set: word2 = %#x", d[2])
	}
}

func TestFromPatchUniformPatch(t *testing.T) {
	gray, width, cx, cy := flatPatch(77)
	d := FromPatch(gray, width, cx, cy, 1)

	// Zero deviation lands every sample in band 2.
	if got := d.Popcount(); got != sampleCount {
		t.Fatalf("popcount: got %d, want %d", got, sampleCount)
	}
	for s := 0; s < sampleCount; s++ {
		lanebit := uint32(s%angleCount)*bandCount + 2
		word := uint32(s/angleCount)*2 + lanebit/32
		if d[word]&(1<<(lanebit%32)) == 0 {
			t.Fatalf("sample %d not in band 2", s)
		}
	}
}

func TestBlendCoversUnblended(t *testing.T) {
	gray, width, cx, cy := flatPatch(50)
	// Structured pattern: brighten a diagonal band through the patch.
	for y := 0; y < width; y++ {
		for x := 0; x < width; x++ {
			if dx, dy := x-cx, y-cy; dx+dy > 2 {
				gray[y*width+x] = 180
			}
		}
	}

	query := FromPatch(gray, width, cx, cy, 1)
	for _, blend := range []int{5, 9} {
		ref := FromPatch(gray, width, cx, cy, blend)
		if got := query.DistanceTo(ref); got != 0 {
			t.Errorf("blend %d: query has %d bits outside reference", blend, got)
		}
		if ref.Popcount() < query.Popcount() {
			t.Errorf("blend %d: reference popcount %d below query %d",
				blend, ref.Popcount(), query.Popcount())
		}
	}
}

func TestRotate(t *testing.T) {
	var d Descriptor
	d[0] = 1 << 3 // ring 0, angle 0, band 3

	r1 := d.Rotate(1)
	if r1[0] != 1<<7 {
		t.Errorf("Rotate(1): got word0 %#x, want %#x", r1[0], uint32(1<<7))
	}

	r8 := d.Rotate(8)
	if r8[0] != 0 || r8[1] != 1<<3 {
		t.Errorf("Rotate(8): got words %#x %#x, want 0 %#x", r8[0], r8[1], uint32(1<<3))
	}

	if d.Rotate(16) != d {
		t.Error("Rotate(16) is not the identity")
	}
	if d.Rotate(-1) != d.Rotate(15) {
		t.Error("Rotate(-1) differs from Rotate(15)")
	}

	// Rotation must not leak between ring lanes.
	var e Descriptor
	e[1] = 1 << 31 // ring 0, angle 15, band 3
	er := e.Rotate(1)
	if er[0] != 1<<3 || er[1] != 0 || er[2] != 0 {
		t.Errorf("Rotate(1) lane wrap: got %#x %#x %#x", er[0], er[1], er[2])
	}
}

func TestDistanceTo(t *testing.T) {
	var a, b Descriptor
	a[0] = 0b1011
	b[0] = 0b0011

	if got := a.DistanceTo(b); got != 1 {
		t.Errorf("a to b: got %d, want 1", got)
	}
	if got := b.DistanceTo(a); got != 0 {
		t.Errorf("b to a: got %d, want 0", got)
	}
}

func TestClipped(t *testing.T) {
	var d Descriptor
	for i := 0; i < 5; i++ {
		d[i] = 0xFFFFFFFF
	}

	if got := d.Clipped(200); got != d {
		t.Error("under budget: descriptor changed")
	}
	if got := d.Clipped(150); !got.IsZero() {
		t.Errorf("over budget: got popcount %d, want 0", got.Popcount())
	}
}

func TestFromWords(t *testing.T) {
	words := make([]uint32, 2*DescriptorWords)
	for i := range words {
		words[i] = uint32(i * 3)
	}
	descs := FromWords(words)
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descs))
	}
	if descs[1][0] != uint32(DescriptorWords*3) {
		t.Errorf("second descriptor word 0: got %d", descs[1][0])
	}
}
