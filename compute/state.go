package compute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned by State operations.
var (
	ErrBadDimensions = errors.New("compute: dimensions must be positive")
	ErrOverCapacity  = errors.New("compute: count exceeds capacity")
	ErrSizeMismatch  = errors.New("compute: data size is not a whole number of elements")
	ErrOutOfRange    = errors.New("compute: element range outside live prefix")
)

// State is a typed device-resident buffer with a logical count distinct from
// its allocated capacity. Capacity is fixed at construction; count satisfies
// 0 <= count <= capacity and marks how many leading elements are valid.
// Elements beyond count are garbage. Host reads and writes transfer exactly
// the live prefix.
//
// The count lives in a 4-byte device cell mirrored by a host cache. Kernels
// that append atomically advance the device cell; the host cache is then
// stale until [State.GetCount] performs a fenced readback. Explicit
// [State.SetCount] updates both sides.
type State struct {
	w        *Worker
	label    string
	elemSize uint32
	capacity uint32

	count uint32
	stale bool

	buf          hal.Buffer // Storage|CopySrc|CopyDst, capacity*elemSize bytes
	countBuf     hal.Buffer // Storage|CopySrc|CopyDst, 4 bytes
	staging      hal.Buffer // MapRead|CopyDst, capacity*elemSize bytes
	countStaging hal.Buffer // MapRead|CopyDst, 4 bytes
}

// NewState allocates a device buffer of capacity elements of elemSize bytes,
// plus its count cell and readback staging. Contents and count start zeroed.
func (w *Worker) NewState(label string, elemSize, capacity uint32) (*State, error) {
	if elemSize == 0 || capacity == 0 {
		return nil, fmt.Errorf("%w: %s elem=%d cap=%d", ErrBadDimensions, label, elemSize, capacity)
	}
	if w.closed {
		return nil, ErrClosed
	}

	size := uint64(elemSize) * uint64(capacity)
	s := &State{
		w:        w,
		label:    label,
		elemSize: elemSize,
		capacity: capacity,
	}

	specs := []struct {
		target *hal.Buffer
		label  string
		size   uint64
		usage  gputypes.BufferUsage
	}{
		{&s.buf, label, size, gputypes.BufferUsage{Storage: true, CopySrc: true, CopyDst: true}},
		{&s.countBuf, label + "_count", 4, gputypes.BufferUsage{Storage: true, CopySrc: true, CopyDst: true}},
		{&s.staging, label + "_staging", size, gputypes.BufferUsage{MapRead: true, CopyDst: true}},
		{&s.countStaging, label + "_count_staging", 4, gputypes.BufferUsage{MapRead: true, CopyDst: true}},
	}
	for _, spec := range specs {
		buf, err := w.device.CreateBuffer(&hal.BufferDescriptor{
			Label: spec.label,
			Size:  spec.size,
			Usage: spec.usage,
		})
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("compute: create buffer %s (%d bytes): %w", spec.label, spec.size, err)
		}
		*spec.target = buf
	}

	// Device memory starts undefined; zero the data and the count cell.
	w.queue.WriteBuffer(s.buf, 0, make([]byte, size))
	w.queue.WriteBuffer(s.countBuf, 0, []byte{0, 0, 0, 0})

	slogger().Debug("compute: state allocated",
		"state", label,
		"elem_bytes", elemSize,
		"capacity", capacity)
	return s, nil
}

// Label returns the debug label given at construction.
func (s *State) Label() string { return s.label }

// Capacity returns the fixed element capacity.
func (s *State) Capacity() uint32 { return s.capacity }

// ElemSize returns the element size in bytes.
func (s *State) ElemSize() uint32 { return s.elemSize }

// Count returns the host-cached logical count. After a Step that appends on
// the device, the cache is stale until [State.GetCount] refreshes it.
func (s *State) Count() uint32 { return s.count }

// SetCount sets the logical count on both host and device. The device write
// is queue-ordered ahead of any dispatch submitted afterwards.
func (s *State) SetCount(n uint32) error {
	if n > s.capacity {
		return fmt.Errorf("%w: %s %d > %d", ErrOverCapacity, s.label, n, s.capacity)
	}
	var cell [4]byte
	binary.LittleEndian.PutUint32(cell[:], n)
	s.w.queue.WriteBuffer(s.countBuf, 0, cell[:])
	s.count = n
	s.stale = false
	return nil
}

// ResetCount zeroes the count, the usual preamble for an appending Step.
func (s *State) ResetCount() error { return s.SetCount(0) }

// markStale flags the host count cache as behind the device cell.
// Steps call this for every state they append into.
func (s *State) markStale() { s.stale = true }

// GetCount returns the logical count, reading the device cell back when the
// host cache is stale. The readback is fenced, so it acts as a drain of all
// previously enqueued work. Appending kernels may advance the cell past the
// capacity when they run out of space; the value is clamped on read.
func (s *State) GetCount() (uint32, error) {
	if !s.stale {
		return s.count, nil
	}
	raw, err := s.readBack(s.countBuf, s.countStaging, 4)
	if err != nil {
		return 0, fmt.Errorf("compute: read count of %s: %w", s.label, err)
	}
	n := binary.LittleEndian.Uint32(raw)
	if n > s.capacity {
		slogger().Debug("compute: count clamped to capacity",
			"state", s.label, "device_count", n, "capacity", s.capacity)
		n = s.capacity
	}
	s.count = n
	s.stale = false
	return n, nil
}

// Write uploads data as the new live prefix. The data length must be a whole
// number of elements within capacity; the count becomes that element count.
func (s *State) Write(data []byte) error {
	if len(data)%int(s.elemSize) != 0 {
		return fmt.Errorf("%w: %s %d bytes, elem %d", ErrSizeMismatch, s.label, len(data), s.elemSize)
	}
	n := uint32(len(data) / int(s.elemSize))
	if err := s.SetCount(n); err != nil {
		return err
	}
	if n > 0 {
		s.w.queue.WriteBuffer(s.buf, 0, data)
	}
	return nil
}

// Read transfers the live prefix back to the host, draining the queue first
// (for a stale count, via GetCount's own fenced readback).
func (s *State) Read() ([]byte, error) {
	n, err := s.GetCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.ReadRange(0, n)
}

// ReadRange transfers elements [first, first+n) back to the host. The range
// must lie inside the live prefix.
func (s *State) ReadRange(first, n uint32) ([]byte, error) {
	cnt, err := s.GetCount()
	if err != nil {
		return nil, err
	}
	if first+n > cnt || first+n < first {
		return nil, fmt.Errorf("%w: %s [%d,%d) of %d", ErrOutOfRange, s.label, first, first+n, cnt)
	}
	if n == 0 {
		return nil, nil
	}
	size := uint64(n) * uint64(s.elemSize)
	offset := uint64(first) * uint64(s.elemSize)

	encoder, err := s.w.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: s.label + "_read"})
	if err != nil {
		return nil, fmt.Errorf("compute: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(s.label + "_read"); err != nil {
		return nil, fmt.Errorf("compute: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(s.buf, s.staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("compute: end encoding: %w", err)
	}
	if err := s.w.submit(cmdBuf); err != nil {
		return nil, err
	}
	if err := s.w.Finish(); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := s.w.queue.ReadBuffer(s.staging, 0, out); err != nil {
		return nil, fmt.Errorf("compute: read buffer %s: %w", s.label, err)
	}
	return out, nil
}

// readBack copies a small device buffer through staging and returns its bytes.
func (s *State) readBack(src, staging hal.Buffer, size uint64) ([]byte, error) {
	encoder, err := s.w.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: s.label + "_sync"})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(s.label + "_sync"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	if err := s.w.submit(cmdBuf); err != nil {
		return nil, err
	}
	if err := s.w.Finish(); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := s.w.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	return out, nil
}

// Destroy releases the device buffers. The State must not be used afterwards.
func (s *State) Destroy() {
	for _, b := range []hal.Buffer{s.buf, s.countBuf, s.staging, s.countStaging} {
		if b != nil {
			s.w.device.DestroyBuffer(b)
		}
	}
	s.buf, s.countBuf, s.staging, s.countStaging = nil, nil, nil, nil
}

// =============================================================================
// Element codecs
// =============================================================================

// f32Bytes encodes float32 values little-endian.
func f32Bytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesF32 decodes little-endian float32 values.
func bytesF32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// u32Bytes encodes uint32 values little-endian.
func u32Bytes(vals []uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// bytesU32 decodes little-endian uint32 values.
func bytesU32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

// =============================================================================
// Specialized states
// =============================================================================

// ImageState is a dense single-channel float32 image of fixed dimensions.
// Its count is pinned to W*H at construction.
type ImageState struct {
	*State
	W, H uint32
}

// NewImageState allocates a W x H float32 image state.
func (w *Worker) NewImageState(label string, width, height uint32) (*ImageState, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %s %dx%d", ErrBadDimensions, label, width, height)
	}
	st, err := w.NewState(label, 4, width*height)
	if err != nil {
		return nil, err
	}
	if err := st.SetCount(width * height); err != nil {
		st.Destroy()
		return nil, err
	}
	return &ImageState{State: st, W: width, H: height}, nil
}

// WritePixels uploads a full image plane. len(px) must equal W*H.
func (s *ImageState) WritePixels(px []float32) error {
	if uint32(len(px)) != s.W*s.H {
		return fmt.Errorf("%w: %s got %d pixels, want %d", ErrSizeMismatch, s.label, len(px), s.W*s.H)
	}
	return s.Write(f32Bytes(px))
}

// ReadPixels transfers the image plane back to the host.
func (s *ImageState) ReadPixels() ([]float32, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	return bytesF32(data), nil
}

// Point is one integer pixel coordinate, the element of a PointList.
type Point struct {
	X, Y int32
}

// PointList is a list of integer pixel coordinates. By reuse, it also stores
// correspondences as (index-in-reference, index-in-query) pairs; same storage,
// different reading.
type PointList struct{ *State }

// NewPointList allocates a point list of the given capacity with count 0.
func (w *Worker) NewPointList(label string, capacity uint32) (*PointList, error) {
	st, err := w.NewState(label, 8, capacity)
	if err != nil {
		return nil, err
	}
	return &PointList{State: st}, nil
}

// WritePoints uploads points as the live prefix.
func (s *PointList) WritePoints(pts []Point) error {
	words := make([]uint32, len(pts)*2)
	for i, p := range pts {
		words[i*2] = uint32(p.X)
		words[i*2+1] = uint32(p.Y)
	}
	return s.Write(u32Bytes(words))
}

// ReadPoints transfers the live prefix back as points.
func (s *PointList) ReadPoints() ([]Point, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	words := bytesU32(data)
	pts := make([]Point, len(words)/2)
	for i := range pts {
		pts[i] = Point{X: int32(words[i*2]), Y: int32(words[i*2+1])}
	}
	return pts, nil
}

// DescriptorList is a list of 256-bit binary descriptors, stored as eight
// uint32 words per element.
type DescriptorList struct{ *State }

// DescriptorWords is the number of uint32 words per descriptor.
const DescriptorWords = 8

// NewDescriptorList allocates a descriptor list of the given capacity.
func (w *Worker) NewDescriptorList(label string, capacity uint32) (*DescriptorList, error) {
	st, err := w.NewState(label, DescriptorWords*4, capacity)
	if err != nil {
		return nil, err
	}
	return &DescriptorList{State: st}, nil
}

// WriteWords uploads descriptors given as DescriptorWords words each.
func (s *DescriptorList) WriteWords(words []uint32) error {
	return s.Write(u32Bytes(words))
}

// ReadWords transfers the live prefix back as flat descriptor words.
func (s *DescriptorList) ReadWords() ([]uint32, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	return bytesU32(data), nil
}

// U32List is a list of scalar uint32 values.
type U32List struct{ *State }

// NewU32List allocates a uint32 list of the given capacity.
func (w *Worker) NewU32List(label string, capacity uint32) (*U32List, error) {
	st, err := w.NewState(label, 4, capacity)
	if err != nil {
		return nil, err
	}
	return &U32List{State: st}, nil
}

// WriteU32s uploads values as the new live prefix.
func (s *U32List) WriteU32s(vals []uint32) error { return s.Write(u32Bytes(vals)) }

// ReadU32s transfers the live prefix back to the host.
func (s *U32List) ReadU32s() ([]uint32, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	return bytesU32(data), nil
}

// FloatList is a list of scalar float32 values.
type FloatList struct{ *State }

// NewFloatList allocates a float list of the given capacity.
func (w *Worker) NewFloatList(label string, capacity uint32) (*FloatList, error) {
	st, err := w.NewState(label, 4, capacity)
	if err != nil {
		return nil, err
	}
	return &FloatList{State: st}, nil
}

// WriteFloats uploads values as the live prefix.
func (s *FloatList) WriteFloats(vals []float32) error { return s.Write(f32Bytes(vals)) }

// ReadFloats transfers the live prefix back.
func (s *FloatList) ReadFloats() ([]float32, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	return bytesF32(data), nil
}

// StridedFloatList is a list whose elements are fixed-size groups of float32
// values, such as (u,v) pairs or (u,v,q) triples.
type StridedFloatList struct {
	*State
	Stride uint32
}

// NewStridedFloatList allocates a list of capacity elements of stride floats.
func (w *Worker) NewStridedFloatList(label string, stride, capacity uint32) (*StridedFloatList, error) {
	if stride == 0 {
		return nil, fmt.Errorf("%w: %s stride 0", ErrBadDimensions, label)
	}
	st, err := w.NewState(label, stride*4, capacity)
	if err != nil {
		return nil, err
	}
	return &StridedFloatList{State: st, Stride: stride}, nil
}

// WriteFloats uploads values; len must be a multiple of the stride.
func (s *StridedFloatList) WriteFloats(vals []float32) error { return s.Write(f32Bytes(vals)) }

// ReadFloats transfers the live prefix back as flat floats.
func (s *StridedFloatList) ReadFloats() ([]float32, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	return bytesF32(data), nil
}

// MatrixBatch is a batch of fixed-shape row-major float32 matrices, one per
// hypothesis slot.
type MatrixBatch struct {
	*State
	Rows, Cols uint32
}

// NewMatrixBatch allocates a batch of capacity rows x cols matrices.
func (w *Worker) NewMatrixBatch(label string, rows, cols, capacity uint32) (*MatrixBatch, error) {
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %s %dx%d", ErrBadDimensions, label, rows, cols)
	}
	st, err := w.NewState(label, rows*cols*4, capacity)
	if err != nil {
		return nil, err
	}
	return &MatrixBatch{State: st, Rows: rows, Cols: cols}, nil
}

// ReadMatrix transfers the matrix at batch index i back to the host as
// rows*cols row-major values.
func (s *MatrixBatch) ReadMatrix(i uint32) ([]float32, error) {
	data, err := s.ReadRange(i, 1)
	if err != nil {
		return nil, err
	}
	return bytesF32(data), nil
}

// CountCell is a State used only for its count cell: a single number handed
// between host and kernels, such as the index of the winning hypothesis.
type CountCell struct{ *State }

// NewCountCell allocates a count cell whose value may range up to capacity.
func (w *Worker) NewCountCell(label string, capacity uint32) (*CountCell, error) {
	st, err := w.NewState(label, 4, capacity)
	if err != nil {
		return nil, err
	}
	return &CountCell{State: st}, nil
}
