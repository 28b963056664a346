package compute

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Errors returned by Worker construction and use.
var (
	ErrNoBackend   = errors.New("compute: vulkan backend not available")
	ErrNoAdapters  = errors.New("compute: no GPU adapters found")
	ErrBadAdapter  = errors.New("compute: adapter index out of range")
	ErrClosed      = errors.New("compute: worker is closed")
	ErrFenceExpire = errors.New("compute: fence wait timed out")
)

// DeviceProvider is the interface a host application implements to share
// its GPU device with a Worker instead of letting the Worker create its own.
// It is an alias for gpucontext.DeviceProvider; providers that additionally
// expose HalDevice() any and HalQueue() any (returning hal.Device and
// hal.Queue) are used directly.
type DeviceProvider = gpucontext.DeviceProvider

// AdapterInfo describes one GPU adapter available to [New].
type AdapterInfo struct {
	Index int
	Name  string
	Type  gputypes.DeviceType
}

// TypeName returns a short human-readable adapter class.
func (a AdapterInfo) TypeName() string {
	switch a.Type {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	default:
		return "other"
	}
}

// Enumerate lists the GPU adapters visible through the Vulkan backend.
// The returned infos carry no live handles; pass an Index to
// [WithAdapterIndex] to open one.
func Enumerate() ([]AdapterInfo, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("compute: create instance: %w", err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	infos := make([]AdapterInfo, 0, len(adapters))
	for i := range adapters {
		infos = append(infos, AdapterInfo{
			Index: i,
			Name:  adapters[i].Info.Name,
			Type:  adapters[i].Info.DeviceType,
		})
	}
	return infos, nil
}

// Option configures a Worker during creation.
type Option func(*workerOptions)

// workerOptions holds optional configuration for Worker creation.
type workerOptions struct {
	adapterIndex int // -1 = auto (prefer discrete, then integrated)
	provider     any
	waitTimeout  time.Duration
}

func defaultWorkerOptions() workerOptions {
	return workerOptions{
		adapterIndex: -1,
		waitTimeout:  10 * time.Second,
	}
}

// WithAdapterIndex pins the Worker to a specific adapter as enumerated by
// [Enumerate]. Without it, the Worker prefers a discrete GPU, then an
// integrated one, then the first adapter found.
func WithAdapterIndex(i int) Option {
	return func(o *workerOptions) { o.adapterIndex = i }
}

// WithDeviceProvider makes the Worker borrow the host application's GPU
// device instead of creating a standalone one. The provider should be a
// [DeviceProvider] that also implements HalDevice() any and HalQueue() any
// for direct HAL access. Borrowed devices are not destroyed on Close.
func WithDeviceProvider(p DeviceProvider) Option {
	return func(o *workerOptions) { o.provider = p }
}

// WithWaitTimeout sets the fence timeout used by Finish and readbacks.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *workerOptions) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// Worker owns one accelerator device and one in-order command queue, plus a
// kernel module cache keyed by kernel name. It owns no data buffers; all
// States borrow it. Create one per device run and Close it when done.
//
// A Worker is driven from a single goroutine; its mutex only protects the
// module cache and close state against misuse, not concurrent dispatch.
type Worker struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapter  AdapterInfo
	external bool // borrowed device, do not destroy on Close

	fence     hal.Fence
	submitted uint64
	waited    uint64
	pending   []hal.CommandBuffer

	modules map[string]hal.ShaderModule

	waitTimeout time.Duration
	closed      bool
}

// New creates a Worker on a GPU adapter, or on a shared device when
// [WithDeviceProvider] is given.
func New(opts ...Option) (*Worker, error) {
	o := defaultWorkerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	w := &Worker{
		modules:     make(map[string]hal.ShaderModule),
		waitTimeout: o.waitTimeout,
	}

	if o.provider != nil {
		if err := w.initShared(o.provider); err != nil {
			return nil, err
		}
	} else if err := w.initStandalone(o.adapterIndex); err != nil {
		return nil, err
	}

	fence, err := w.device.CreateFence()
	if err != nil {
		w.releaseDevice()
		return nil, fmt.Errorf("compute: create fence: %w", err)
	}
	w.fence = fence

	slogger().Debug("compute: worker ready",
		"adapter", w.adapter.Name,
		"type", w.adapter.TypeName(),
		"shared", w.external)
	return w, nil
}

// initShared borrows the device and queue from a host application provider.
func (w *Worker) initShared(provider any) error {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return fmt.Errorf("compute: provider does not expose HAL device access")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return fmt.Errorf("compute: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return fmt.Errorf("compute: provider HalQueue is not hal.Queue")
	}
	w.device = device
	w.queue = queue
	w.external = true
	w.adapter = AdapterInfo{Index: -1, Name: "shared"}
	return nil
}

// initStandalone creates a Vulkan instance and opens the selected adapter.
func (w *Worker) initStandalone(index int) error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("compute: create instance: %w", err)
	}
	w.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		w.instance.Destroy()
		w.instance = nil
		return ErrNoAdapters
	}

	var selected *hal.ExposedAdapter
	selIndex := 0
	switch {
	case index >= 0:
		if index >= len(adapters) {
			w.instance.Destroy()
			w.instance = nil
			return fmt.Errorf("%w: %d of %d", ErrBadAdapter, index, len(adapters))
		}
		selected = &adapters[index]
		selIndex = index
	default:
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
				selected = &adapters[i]
				selIndex = i
				break
			}
		}
		if selected == nil {
			for i := range adapters {
				if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
					selected = &adapters[i]
					selIndex = i
					break
				}
			}
		}
		if selected == nil {
			selected = &adapters[0]
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		w.instance.Destroy()
		w.instance = nil
		return fmt.Errorf("compute: open device: %w", err)
	}
	w.device = openDev.Device
	w.queue = openDev.Queue
	w.adapter = AdapterInfo{
		Index: selIndex,
		Name:  selected.Info.Name,
		Type:  selected.Info.DeviceType,
	}
	return nil
}

// Adapter returns information about the adapter this Worker runs on.
func (w *Worker) Adapter() AdapterInfo { return w.adapter }

// Compile compiles WGSL kernel source to SPIR-V via naga and creates a
// shader module, caching it under name. Subsequent calls with the same name
// return the cached module without recompiling.
func (w *Worker) Compile(name, source string) (hal.ShaderModule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if m, ok := w.modules[name]; ok {
		return m, nil
	}

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compute: compile kernel %q: %w", name, err)
	}
	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := w.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create shader module %q: %w", name, err)
	}
	w.modules[name] = module

	slogger().Debug("compute: kernel compiled",
		"kernel", name,
		"spirv_words", len(spirvCode))
	return module, nil
}

// submit hands one command buffer to the queue, signaling the worker fence
// with the next submission value. It does not wait.
func (w *Worker) submit(cmdBuf hal.CommandBuffer) error {
	if w.closed {
		return ErrClosed
	}
	w.submitted++
	if err := w.queue.Submit([]hal.CommandBuffer{cmdBuf}, w.fence, w.submitted); err != nil {
		w.submitted--
		w.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("compute: submit: %w", err)
	}
	w.pending = append(w.pending, cmdBuf)
	return nil
}

// Finish blocks until all previously enqueued work on this worker's queue
// has completed. It is the synchronization barrier between pipeline phases
// that need host-visible counts or buffer contents.
func (w *Worker) Finish() error {
	if w.closed {
		return ErrClosed
	}
	if w.submitted == w.waited {
		return nil
	}
	ok, err := w.device.Wait(w.fence, w.submitted, w.waitTimeout)
	if err != nil {
		return fmt.Errorf("compute: fence wait: %w", err)
	}
	if !ok {
		return ErrFenceExpire
	}
	w.waited = w.submitted
	for _, cb := range w.pending {
		w.device.FreeCommandBuffer(cb)
	}
	w.pending = w.pending[:0]
	return nil
}

// releaseDevice drops device-level resources during failed construction.
func (w *Worker) releaseDevice() {
	if !w.external && w.device != nil {
		w.device.Destroy()
	}
	w.device = nil
	w.queue = nil
	if w.instance != nil {
		w.instance.Destroy()
		w.instance = nil
	}
}

// Close releases the module cache, fence, and (for standalone workers) the
// device and instance. States and Steps created on this worker must be
// destroyed first.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	// Best effort drain so pending command buffers can be freed.
	if w.submitted != w.waited {
		if ok, err := w.device.Wait(w.fence, w.submitted, w.waitTimeout); err != nil || !ok {
			slogger().Warn("compute: close drain failed", "error", err)
		}
	}
	for _, cb := range w.pending {
		w.device.FreeCommandBuffer(cb)
	}
	w.pending = nil

	for name, m := range w.modules {
		w.device.DestroyShaderModule(m)
		delete(w.modules, name)
	}
	if w.fence != nil {
		w.device.DestroyFence(w.fence)
		w.fence = nil
	}
	w.releaseDevice()
	w.closed = true
}
