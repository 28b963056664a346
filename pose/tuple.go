package pose

import (
	"errors"
	"fmt"

	"github.com/gogpu/vodom/compute"
)

// ErrTupleShape is returned when a tuple list of the wrong record width is
// wired into a stage.
var ErrTupleShape = errors.New("pose: tuple list has wrong record width")

// TupleList pairs the two halves of ((u, v, q), (u, v)) correspondence
// tuples in index-aligned device lists sharing one logical count. An
// element carries a fixed number of records: 1 for the flat correspondence
// pool, 3 for the sampled hypothesis subsets.
type TupleList struct {
	Uvq *compute.StridedFloatList
	Uv  *compute.StridedFloatList

	records uint32
}

// NewTupleList allocates an aligned tuple pair of the given capacity, with
// records tuples per element.
func NewTupleList(w *compute.Worker, label string, records, capacity uint32) (*TupleList, error) {
	if records == 0 {
		return nil, fmt.Errorf("%w: 0 records", ErrTupleShape)
	}
	uvq, err := w.NewStridedFloatList(label+".uvq", records*3, capacity)
	if err != nil {
		return nil, err
	}
	uv, err := w.NewStridedFloatList(label+".uv", records*2, capacity)
	if err != nil {
		uvq.Destroy()
		return nil, err
	}
	return &TupleList{Uvq: uvq, Uv: uv, records: records}, nil
}

// Records returns the tuples per element.
func (t *TupleList) Records() uint32 { return t.records }

// Count returns the logical element count shared by both halves.
func (t *TupleList) Count() uint32 { return t.Uvq.Count() }

// Capacity returns the element capacity.
func (t *TupleList) Capacity() uint32 { return t.Uvq.Capacity() }

// SetCount sets the shared logical count on both halves.
func (t *TupleList) SetCount(n uint32) error {
	if err := t.Uvq.SetCount(n); err != nil {
		return err
	}
	return t.Uv.SetCount(n)
}

// requireRecords validates the record width at wiring time.
func (t *TupleList) requireRecords(want uint32) error {
	if t.records != want {
		return fmt.Errorf("%w: got %d, want %d", ErrTupleShape, t.records, want)
	}
	return nil
}

// Destroy releases both halves.
func (t *TupleList) Destroy() {
	if t.Uvq != nil {
		t.Uvq.Destroy()
	}
	if t.Uv != nil {
		t.Uv.Destroy()
	}
}
