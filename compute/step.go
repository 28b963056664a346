package compute

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// WorkgroupSize is the thread count per workgroup shared by all kernels.
// Dispatch sizes that must land on a whole number of groups are truncated
// with [GridTruncate].
const WorkgroupSize = 64

// GridTruncate rounds n down to the nearest multiple of WorkgroupSize.
// Grid-parallel descriptor stages deliberately drop the remainder rather
// than padding or erroring, so downstream stages see fewer valid entries.
func GridTruncate(n uint32) uint32 {
	return (n / WorkgroupSize) * WorkgroupSize
}

// Groups performs the ceiling division from element count to workgroups.
func Groups(n uint32) uint32 {
	return (n + WorkgroupSize - 1) / WorkgroupSize
}

// Errors returned by Step construction and execution.
var (
	ErrNoBindings = errors.New("compute: step declares no bindings")
	ErrNoDispatch = errors.New("compute: step has no dispatch size source")
)

// bindKind selects which buffer of a State a binding refers to and how the
// kernel accesses it.
type bindKind int

const (
	bindDataRO bindKind = iota
	bindDataRW
	bindCountRO
	bindCountRW
)

// Binding attaches one State buffer to a kernel binding slot. Binding slots
// follow the order of StepSpec.Bindings, offset by one when the step carries
// a uniform (the uniform is always binding 0).
type Binding struct {
	state *State
	kind  bindKind
}

// Data binds a State's element buffer read-only.
func Data(s *State) Binding { return Binding{state: s, kind: bindDataRO} }

// DataRW binds a State's element buffer read-write.
func DataRW(s *State) Binding { return Binding{state: s, kind: bindDataRW} }

// Count binds a State's count cell read-only.
func Count(s *State) Binding { return Binding{state: s, kind: bindCountRO} }

// CountRW binds a State's count cell read-write (atomic append target).
func CountRW(s *State) Binding { return Binding{state: s, kind: bindCountRW} }

// StepSpec declares a Step: its kernel, fixed State bindings, and how each
// execution determines its dispatch size.
type StepSpec struct {
	// Name labels GPU objects and log lines.
	Name string

	// Kernel is the module cache key; Source is its WGSL text.
	Kernel string
	Source string

	// UniformSize is the byte size of the kernel's uniform config struct at
	// binding 0, or zero for kernels without one. Uniform returns the encoded
	// bytes and is called on every execution.
	UniformSize uint32
	Uniform     func() []byte

	// Bindings are the State buffers in kernel binding order.
	Bindings []Binding

	// Dispatch returns the workgroup count for this execution.
	Dispatch func() uint32

	// Before, when set, runs at the start of every execution: the place for
	// count resets on appended-into outputs and for host-side count
	// assignments whose value is known before dispatch.
	Before func() error
}

// Step is a unit of work bound to one compiled kernel and a fixed set of
// States. Bindings are fixed at construction; only buffer contents and
// counts vary across executions. Execute enqueues one dispatch without
// waiting; Measure drains the queue and reports wall time.
//
// A Step may only mutate the counts of States it binds with DataRW/CountRW;
// inputs stay untouched.
type Step struct {
	w    *Worker
	spec StepSpec

	module         hal.ShaderModule // owned by the worker's module cache
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline
	bindGroup      hal.BindGroup
	uniform        hal.Buffer

	appended []*State // states whose device count the kernel advances
}

// NewStep compiles (or reuses) the kernel and builds the pipeline and the
// bind group once. Construction fails fatally on compile errors; a device
// that cannot build a kernel cannot run the pipeline.
func (w *Worker) NewStep(spec StepSpec) (*Step, error) {
	if len(spec.Bindings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBindings, spec.Name)
	}
	if spec.Dispatch == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDispatch, spec.Name)
	}

	module, err := w.Compile(spec.Kernel, spec.Source)
	if err != nil {
		return nil, err
	}

	s := &Step{w: w, spec: spec, module: module}

	entries := s.layoutEntries()
	bgLayout, err := w.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   spec.Name + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create bind group layout %s: %w", spec.Name, err)
	}
	s.bgLayout = bgLayout

	pipelineLayout, err := w.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            spec.Name + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("compute: create pipeline layout %s: %w", spec.Name, err)
	}
	s.pipelineLayout = pipelineLayout

	pipeline, err := w.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  spec.Name,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("compute: create compute pipeline %s: %w", spec.Name, err)
	}
	s.pipeline = pipeline

	if spec.UniformSize > 0 {
		uniform, err := w.device.CreateBuffer(&hal.BufferDescriptor{
			Label: spec.Name + "_config",
			Size:  uint64(spec.UniformSize),
			Usage: gputypes.BufferUsage{Uniform: true, CopyDst: true},
		})
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("compute: create uniform %s: %w", spec.Name, err)
		}
		s.uniform = uniform
	}

	bindGroup, err := w.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   spec.Name + "_bg",
		Layout:  bgLayout,
		Entries: s.bindEntries(),
	})
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("compute: create bind group %s: %w", spec.Name, err)
	}
	s.bindGroup = bindGroup

	for _, b := range spec.Bindings {
		if b.kind == bindCountRW {
			s.appended = append(s.appended, b.state)
		}
	}

	slogger().Debug("compute: step created",
		"step", spec.Name,
		"kernel", spec.Kernel,
		"bindings", len(spec.Bindings))
	return s, nil
}

// layoutEntries builds the bind group layout matching the WGSL binding
// annotations: binding 0 is the uniform when present, data and count buffers
// follow in declaration order.
func (s *Step) layoutEntries() []gputypes.BindGroupLayoutEntry {
	storage := func(binding uint32, readOnly bool) gputypes.BindGroupLayoutEntry {
		t := gputypes.BufferBindingTypeStorage
		if readOnly {
			t = gputypes.BufferBindingTypeReadOnlyStorage
		}
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}

	var entries []gputypes.BindGroupLayoutEntry
	next := uint32(0)
	if s.spec.UniformSize > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
		next = 1
	}
	for _, b := range s.spec.Bindings {
		readOnly := b.kind == bindDataRO || b.kind == bindCountRO
		entries = append(entries, storage(next, readOnly))
		next++
	}
	return entries
}

// bindEntries resolves the fixed buffer identities for the bind group.
func (s *Step) bindEntries() []gputypes.BindGroupEntry {
	var entries []gputypes.BindGroupEntry
	next := uint32(0)
	if s.uniform != nil {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: s.uniform.NativeHandle(), Offset: 0, Size: uint64(s.spec.UniformSize)},
		})
		next = 1
	}
	for _, b := range s.spec.Bindings {
		buf := b.state.buf
		if b.kind == bindCountRO || b.kind == bindCountRW {
			buf = b.state.countBuf
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  next,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: 0},
		})
		next++
	}
	return entries
}

// Execute enqueues a single dispatch sized by the spec's Dispatch function.
// It does not block; dispatches pipeline behind earlier queue work. A zero
// dispatch size skips the kernel but still runs Before (count resets apply
// to empty inputs too).
func (s *Step) Execute() error {
	if s.spec.Before != nil {
		if err := s.spec.Before(); err != nil {
			return fmt.Errorf("compute: %s before: %w", s.spec.Name, err)
		}
	}

	groups := s.spec.Dispatch()
	if groups == 0 {
		return nil
	}

	if s.uniform != nil {
		s.w.queue.WriteBuffer(s.uniform, 0, s.spec.Uniform())
	}

	encoder, err := s.w.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: s.spec.Name})
	if err != nil {
		return fmt.Errorf("compute: create encoder %s: %w", s.spec.Name, err)
	}
	if err := encoder.BeginEncoding(s.spec.Name); err != nil {
		return fmt.Errorf("compute: begin encoding %s: %w", s.spec.Name, err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: s.spec.Name})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	pass.Dispatch(groups, 1, 1)
	pass.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("compute: end encoding %s: %w", s.spec.Name, err)
	}
	if err := s.w.submit(cmdBuf); err != nil {
		return err
	}

	for _, st := range s.appended {
		st.markStale()
	}
	return nil
}

// Measure runs Execute repeat times (minimum once), drains the worker queue,
// and returns elapsed wall time. It serves both correctness execution and
// profiling; there is no separate production path. Steps whose kernel is not
// idempotent (the pose accumulation multiply) must be measured with repeat 1.
func (s *Step) Measure(repeat int) (time.Duration, error) {
	if repeat < 1 {
		repeat = 1
	}
	start := time.Now()
	for i := 0; i < repeat; i++ {
		if err := s.Execute(); err != nil {
			return 0, err
		}
	}
	if err := s.w.Finish(); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	slogger().Debug("compute: step measured",
		"step", s.spec.Name,
		"repeat", repeat,
		"elapsed", elapsed)
	return elapsed, nil
}

// Destroy releases the pipeline objects and the uniform buffer. The kernel
// module stays in the worker cache.
func (s *Step) Destroy() {
	if s.bindGroup != nil {
		s.w.device.DestroyBindGroup(s.bindGroup)
		s.bindGroup = nil
	}
	if s.uniform != nil {
		s.w.device.DestroyBuffer(s.uniform)
		s.uniform = nil
	}
	if s.pipeline != nil {
		s.w.device.DestroyComputePipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.pipelineLayout != nil {
		s.w.device.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = nil
	}
	if s.bgLayout != nil {
		s.w.device.DestroyBindGroupLayout(s.bgLayout)
		s.bgLayout = nil
	}
}
