// Package gpu owns the WebGPU device/queue pair and the handful of buffer
// shapes the executor needs: read-only input columns, a read-write output
// column, and a read-only params buffer. It knows nothing about plans,
// expressions, or shaders; internal/executor and internal/gen own those.
package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/wgpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	// Registers every backend (Vulkan, DX12, Metal, GLES) the running
	// platform supports, so RequestAdapter has something to find.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// MinBufferSize is the smallest buffer a backend allocates without
// complaint. Tiny batches still round their output/staging buffers up to it.
const MinBufferSize = 64

// Runtime is a device and queue acquired once at process start and shared
// across every query the process executes. Per-batch GPU resources
// (buffers, pipelines, bind groups) are scoped to a single executor call and
// released as soon as that call returns.
type Runtime struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
}

// New acquires a GPU instance, adapter, and device. It fails if the host has
// no usable backend (no supported GPU, or no driver installed). The adapter
// is requested with a high-performance power preference: this engine is
// meant to run on whatever discrete GPU is available, not an integrated one.
func New() (*Runtime, error) {
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, errors.Wrap(err, "gpu: creating instance")
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(err, "gpu: requesting adapter")
	}
	logrus.WithField("component", "gpu").WithField("adapter", adapter.Info().Name).Debug("adapter acquired")

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(err, "gpu: requesting device")
	}

	return &Runtime{instance: instance, adapter: adapter, device: device}, nil
}

// Release tears down the device, adapter, and instance, in that order. It
// must only be called once, after every query using this Runtime has
// finished.
func (r *Runtime) Release() {
	r.device.Release()
	r.adapter.Release()
	r.instance.Release()
}

// Device returns the underlying device, for callers (internal/executor)
// that assemble pipelines and bind groups directly.
func (r *Runtime) Device() *wgpu.Device {
	return r.device
}

// Queue returns the device's command queue.
func (r *Runtime) Queue() *wgpu.Queue {
	return r.device.Queue()
}

// InputBufferI32 uploads a column of int32 values as a read-only storage
// buffer.
func (r *Runtime) InputBufferI32(label string, data []int32) (*wgpu.Buffer, error) {
	return r.inputBuffer(label, int32sToBytes(data))
}

// InputBufferF32 uploads a column of float32 values as a read-only storage
// buffer.
func (r *Runtime) InputBufferF32(label string, data []float32) (*wgpu.Buffer, error) {
	return r.inputBuffer(label, float32sToBytes(data))
}

func (r *Runtime) inputBuffer(label string, raw []byte) (*wgpu.Buffer, error) {
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(raw)),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gpu: creating input buffer %q", label)
	}
	r.Queue().WriteBuffer(buf, 0, raw)
	return buf, nil
}

// OutputBuffer allocates a device-local storage buffer of size bytes that
// the shader writes its results into.
func (r *Runtime) OutputBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gpu: creating output buffer %q", label)
	}
	return buf, nil
}

// StagingBuffer allocates a host-visible buffer that the output buffer is
// copied into so its contents can be mapped and read back on the CPU.
func (r *Runtime) StagingBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gpu: creating staging buffer %q", label)
	}
	return buf, nil
}

// ParamsBuffer uploads the QueryParams struct (currently just the batch's
// row count). It is a storage buffer rather than a uniform buffer: a
// uniform buffer's 16-byte alignment rules reject our single-u32 layout on
// some backends.
func (r *Runtime) ParamsBuffer(label string, rowCount uint32) (*wgpu.Buffer, error) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, rowCount)

	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gpu: creating params buffer %q", label)
	}
	r.Queue().WriteBuffer(buf, 0, raw)
	return buf, nil
}

func int32sToBytes(data []int32) []byte {
	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return raw
}

func float32sToBytes(data []float32) []byte {
	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return raw
}
