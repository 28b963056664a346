// Package compute provides the accelerator execution layer for vodom:
// a Worker owning one device and one in-order command queue, States holding
// device-resident buffers with a logical count distinct from their capacity,
// and Steps binding a compiled kernel to a fixed set of States.
//
// The model is deliberately narrow. All dispatches on a Worker are
// asynchronous relative to host code but execute in FIFO order relative to
// each other on the device. The only blocking point is [Worker.Finish], used
// between pipeline phases whose host code must observe a buffer's count.
// Counts produced on the device (by atomic-append kernels) are host-visible
// only after [State.GetCount], which performs its own fenced readback.
//
// Kernels are WGSL sources compiled to SPIR-V through gogpu/naga and cached
// on the Worker by name, so Steps sharing a kernel share one module.
package compute
