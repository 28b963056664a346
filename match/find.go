package match

import (
	"errors"
	"fmt"

	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/internal/kernels"
)

// ErrTreeShapeMismatch is returned when a host tree does not fit the device
// allocation it is uploaded into.
var ErrTreeShapeMismatch = errors.New("match: tree shape mismatch")

// DeviceTree is the device copy of a reference forest: the stored node
// descriptors and the leaf index map, allocated once and refilled per
// reference frame.
type DeviceTree struct {
	Nodes *compute.DescriptorList
	Maps  *compute.U32List

	leaves int
	levels int
}

// NewDeviceTree allocates device storage for a forest of the given shape.
func NewDeviceTree(w *compute.Worker, label string, leaves, levels int) (*DeviceTree, error) {
	if leaves < 2 || leaves&(leaves-1) != 0 || levels < 1 || leaves>>levels < 1 {
		return nil, fmt.Errorf("%w: %d leaves, %d levels", ErrBadTreeShape, leaves, levels)
	}
	physical := 2*leaves - 1 - (leaves>>levels - 1)

	nodes, err := w.NewDescriptorList(label+".nodes", uint32(physical))
	if err != nil {
		return nil, err
	}
	maps, err := w.NewU32List(label+".maps", uint32(leaves))
	if err != nil {
		nodes.Destroy()
		return nil, err
	}
	return &DeviceTree{Nodes: nodes, Maps: maps, leaves: leaves, levels: levels}, nil
}

// Upload copies a built tree into the device allocation.
func (dt *DeviceTree) Upload(t *Tree) error {
	if t.Leaves() != dt.leaves || t.Levels() != dt.levels {
		return fmt.Errorf("%w: tree %d/%d into device %d/%d",
			ErrTreeShapeMismatch, t.Leaves(), t.Levels(), dt.leaves, dt.levels)
	}
	if err := dt.Nodes.WriteWords(t.NodeWords()); err != nil {
		return err
	}
	return dt.Maps.WriteU32s(t.MapWords())
}

// Destroy releases the device storage.
func (dt *DeviceTree) Destroy() {
	if dt.Nodes != nil {
		dt.Nodes.Destroy()
	}
	if dt.Maps != nil {
		dt.Maps.Destroy()
	}
}

// NewTreeFindStep builds the matching stage: one thread per query descriptor
// walks the forest and appends at most one (reference, query) index pair
// within the error threshold. With rotations enabled the walk covers all
// sixteen angular shifts of the query.
func NewTreeFindStep(w *compute.Worker, tree *DeviceTree, query *compute.DescriptorList, matches *compute.PointList, maxErr uint32, rotations bool) (*compute.Step, error) {
	src, err := kernels.Source(kernels.TreeFind)
	if err != nil {
		return nil, err
	}
	rot := uint32(1)
	if rotations {
		rot = angleCount
	}
	return w.NewStep(compute.StepSpec{
		Name:        "tree_find",
		Kernel:      kernels.TreeFind,
		Source:      src,
		UniformSize: 32,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(maxErr).
				U32(rot).
				U32(matches.Capacity()).
				U32(uint32(tree.leaves)).
				U32(uint32(tree.levels)).
				U32(0).U32(0).U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(tree.Nodes.State),
			compute.Data(tree.Maps.State),
			compute.Data(query.State),
			compute.Count(query.State),
			compute.DataRW(matches.State),
			compute.CountRW(matches.State),
		},
		Dispatch: func() uint32 { return compute.Groups(query.Count()) },
		Before:   func() error { return matches.ResetCount() },
	})
}
