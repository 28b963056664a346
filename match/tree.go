package match

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrBadTreeShape is returned for leaf/level combinations that do not form
// a valid truncated binary forest.
var ErrBadTreeShape = errors.New("match: bad tree shape")

// MapSentinel marks a padded leaf with no reference descriptor behind it.
const MapSentinel = uint32(0xFFFFFFFF)

// Tree is a truncated binary forest over a reference descriptor list.
// Internal nodes hold the OR of their descendants; leaves hold individual
// reference descriptors. The interior nodes above the forest roots are not
// stored: a node with breadth-first index j lives at cell j - (preroots-1).
//
// The tree is built on the host from the clipped reference descriptors and
// uploaded once per reference frame; the find kernel then walks it for every
// query descriptor.
type Tree struct {
	leaves int
	levels int
	filled int
	nodes  []Descriptor
	maps   []uint32
}

// BuildTree partitions the reference descriptors into a forest of the given
// shape. Zeroed (clipped) descriptors are left out; if more remain than the
// tree has leaves, the earliest by insertion order win. Leaf placement sorts
// the survivors by descriptor words so that similar fingerprints share
// subtrees, keeping the greedy walk informative. Deterministic for a given
// descriptor list.
func BuildTree(descs []Descriptor, leaves, levels int) (*Tree, error) {
	if leaves < 2 || leaves&(leaves-1) != 0 {
		return nil, fmt.Errorf("%w: leaves %d not a power of two", ErrBadTreeShape, leaves)
	}
	if levels < 1 || leaves>>levels < 1 {
		return nil, fmt.Errorf("%w: %d levels over %d leaves", ErrBadTreeShape, levels, leaves)
	}

	selected := make([]int, 0, leaves)
	for i, d := range descs {
		if d.IsZero() {
			continue
		}
		selected = append(selected, i)
		if len(selected) == leaves {
			break
		}
	}
	sort.SliceStable(selected, func(a, b int) bool {
		da, db := &descs[selected[a]], &descs[selected[b]]
		for w := 0; w < DescriptorWords; w++ {
			if da[w] != db[w] {
				return da[w] < db[w]
			}
		}
		return selected[a] < selected[b]
	})

	preroots := leaves >> levels
	drop := preroots - 1
	leaf0 := leaves - 1
	physical := 2*leaves - 1 - drop

	t := &Tree{
		leaves: leaves,
		levels: levels,
		filled: len(selected),
		nodes:  make([]Descriptor, physical),
		maps:   make([]uint32, leaves),
	}

	for i := range t.maps {
		if i < len(selected) {
			t.nodes[leaf0+i-drop] = descs[selected[i]]
			t.maps[i] = uint32(selected[i])
		} else {
			t.maps[i] = MapSentinel
		}
	}
	for j := leaf0 - 1; j >= drop; j-- {
		t.nodes[j-drop] = t.nodes[2*j+1-drop].Or(t.nodes[2*j+2-drop])
	}
	return t, nil
}

// Leaves returns the leaf slot count.
func (t *Tree) Leaves() int { return t.leaves }

// Levels returns the walk depth below the forest roots.
func (t *Tree) Levels() int { return t.levels }

// Filled returns how many leaves carry a real reference descriptor.
func (t *Tree) Filled() int { return t.filled }

// NodeWords flattens the stored nodes for upload.
func (t *Tree) NodeWords() []uint32 {
	words := make([]uint32, 0, len(t.nodes)*DescriptorWords)
	for i := range t.nodes {
		words = append(words, t.nodes[i][:]...)
	}
	return words
}

// MapWords returns the leaf index map for upload.
func (t *Tree) MapWords() []uint32 {
	out := make([]uint32, len(t.maps))
	copy(out, t.maps)
	return out
}

// Find walks the forest for one query descriptor, the host mirror of the
// find kernel. It returns the reference index and error of the best leaf
// found, with ok set when that error is within maxErr. Zeroed queries never
// match.
func (t *Tree) Find(q Descriptor, maxErr int, rotations bool) (ref uint32, dist int, ok bool) {
	if q.IsZero() {
		return 0, 0, false
	}

	preroots := t.leaves >> t.levels
	drop := preroots - 1
	leaf0 := t.leaves - 1

	rot := 1
	if rotations {
		rot = angleCount
	}

	best := math.MaxInt32
	bestdex := MapSentinel

	for shift := 0; shift < rot; shift++ {
		rq := q.Rotate(shift)

		for root := 0; root < preroots; root++ {
			icell := root + drop
			last := math.MaxInt32

			for depth := 0; depth < t.levels; depth++ {
				c1 := 2*icell + 1
				c2 := 2*icell + 2
				e1 := rq.DistanceTo(t.nodes[c1-drop])
				e2 := rq.DistanceTo(t.nodes[c2-drop])
				if e1 > e2 {
					icell, last = c2, e2
				} else {
					icell, last = c1, e1
				}
			}

			index := t.maps[icell-leaf0]
			if last < best && index != MapSentinel {
				best = last
				bestdex = index
			}
		}
	}

	if best > maxErr {
		return 0, best, false
	}
	return bestdex, best, true
}
