package match

import (
	"errors"
	"reflect"
	"testing"
)

// blockDesc builds descriptors with pairwise disjoint bit sets, so tree
// walks are fully determined: a wrong subtree shares no bits with the query.
func blockDesc(i int) Descriptor {
	var d Descriptor
	d[i%DescriptorWords] = 0xFFFFFFFF
	return d
}

func TestBuildTreeShape(t *testing.T) {
	descs := make([]Descriptor, 8)
	for i := range descs {
		descs[i] = blockDesc(i)
	}

	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if tree.Filled() != 8 {
		t.Errorf("Filled: got %d, want 8", tree.Filled())
	}

	// 8 leaves, 2 levels: 2 roots, 1 dropped node, 14 stored cells.
	if got := len(tree.NodeWords()); got != 14*DescriptorWords {
		t.Errorf("node words: got %d, want %d", got, 14*DescriptorWords)
	}
	maps := tree.MapWords()
	if len(maps) != 8 {
		t.Fatalf("map words: got %d, want 8", len(maps))
	}

	seen := make(map[uint32]bool)
	for _, m := range maps {
		if m == MapSentinel {
			t.Error("unexpected sentinel in a full tree")
			continue
		}
		if m >= 8 || seen[m] {
			t.Errorf("bad leaf map entry %d", m)
		}
		seen[m] = true
	}
}

func TestBuildTreeOrInvariant(t *testing.T) {
	descs := make([]Descriptor, 6)
	for i := range descs {
		descs[i] = blockDesc(i)
	}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	// Every stored internal node is the OR of its children.
	const drop = 1
	for j := drop; j <= 6; j++ {
		want := tree.nodes[2*j+1-drop].Or(tree.nodes[2*j+2-drop])
		if tree.nodes[j-drop] != want {
			t.Errorf("node %d is not the OR of its children", j)
		}
	}
}

func TestBuildTreeSkipsZeroedAndPads(t *testing.T) {
	descs := []Descriptor{
		{}, // clipped
		blockDesc(1),
		{}, // clipped
		blockDesc(3),
		blockDesc(4),
	}

	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if tree.Filled() != 3 {
		t.Fatalf("Filled: got %d, want 3", tree.Filled())
	}

	real, pad := 0, 0
	for _, m := range tree.MapWords() {
		if m == MapSentinel {
			pad++
			continue
		}
		real++
		if m == 0 || m == 2 {
			t.Errorf("zeroed descriptor %d placed in a leaf", m)
		}
	}
	if real != 3 || pad != 5 {
		t.Errorf("got %d real, %d padded leaves, want 3 and 5", real, pad)
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	descs := make([]Descriptor, 16)
	for i := range descs {
		descs[i] = blockDesc(i)
		descs[i][7] |= uint32(i) // break ties between duplicate blocks
	}

	a, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	b, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input built different trees")
	}
}

func TestBuildTreeBadShape(t *testing.T) {
	descs := []Descriptor{blockDesc(0)}
	for _, tt := range []struct {
		leaves, levels int
	}{
		{0, 1}, {6, 1}, {8, 0}, {8, 4},
	} {
		if _, err := BuildTree(descs, tt.leaves, tt.levels); !errors.Is(err, ErrBadTreeShape) {
			t.Errorf("leaves %d levels %d: got %v, want ErrBadTreeShape",
				tt.leaves, tt.levels, err)
		}
	}
}

func TestFindExact(t *testing.T) {
	descs := make([]Descriptor, 8)
	for i := range descs {
		descs[i] = blockDesc(i)
	}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	for i, q := range descs {
		ref, dist, ok := tree.Find(q, 3, false)
		if !ok {
			t.Fatalf("query %d: no match", i)
		}
		if dist != 0 {
			t.Errorf("query %d: dist %d, want 0", i, dist)
		}
		if ref != uint32(i) {
			t.Errorf("query %d: matched %d", i, ref)
		}
	}
}

func TestFindRotated(t *testing.T) {
	descs := make([]Descriptor, 8)
	for i := range descs {
		descs[i] = blockDesc(i)
	}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	q := descs[2].Rotate(5)

	if _, dist, ok := tree.Find(q, 3, true); !ok || dist != 0 {
		t.Errorf("rotations on: ok %v dist %d, want exact match", ok, dist)
	}
	if _, _, ok := tree.Find(q, 3, false); ok {
		t.Error("rotations off: rotated query still matched")
	}
}

func TestFindMaxErr(t *testing.T) {
	descs := make([]Descriptor, 8)
	for i := range descs {
		descs[i] = blockDesc(i)
	}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	// Five bits of a foreign descriptor on top of an exact one.
	q := descs[0]
	q[1] |= 0b11111

	if _, _, ok := tree.Find(q, 3, false); ok {
		t.Error("error 5 accepted with maxErr 3")
	}
	ref, dist, ok := tree.Find(q, 5, false)
	if !ok || dist != 5 || ref != 0 {
		t.Errorf("maxErr 5: got ref %d dist %d ok %v, want 0 5 true", ref, dist, ok)
	}
}

func TestFindZeroQuery(t *testing.T) {
	descs := []Descriptor{blockDesc(0), blockDesc(1)}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if _, _, ok := tree.Find(Descriptor{}, 255, true); ok {
		t.Error("zeroed query matched")
	}
}

func TestFindSoundness(t *testing.T) {
	// Overlapping descriptors: the walk is approximate, but anything it
	// accepts must be within the error bound.
	descs := make([]Descriptor, 32)
	for i := range descs {
		for w := range descs[i] {
			descs[i][w] = uint32(i*2654435761 + w*40503)
		}
		descs[i] = descs[i].Clipped(150)
	}
	tree, err := BuildTree(descs, 8, 2)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	const maxErr = 20
	for i := range descs {
		q := descs[i]
		if q.IsZero() {
			continue
		}
		ref, dist, ok := tree.Find(q, maxErr, false)
		if !ok {
			continue
		}
		if dist > maxErr {
			t.Errorf("query %d: accepted dist %d over bound", i, dist)
		}
		if got := q.DistanceTo(descs[ref]); got != dist {
			t.Errorf("query %d: reported dist %d, recomputed %d", i, dist, got)
		}
	}
}
