package executor

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"github.com/pkg/errors"

	"github.com/csotherden/wsql/internal/gen"
	"github.com/csotherden/wsql/internal/gpu"
	"github.com/csotherden/wsql/internal/plan"
)

// GPUDispatcher is the production Dispatcher: it JITs a shader for the
// plan's binding layout, builds one generation of per-batch GPU resources,
// dispatches the compute pass, and reads the result back.
type GPUDispatcher struct {
	rt *gpu.Runtime
}

// NewGPUDispatcher wraps an already-acquired Runtime.
func NewGPUDispatcher(rt *gpu.Runtime) *GPUDispatcher {
	return &GPUDispatcher{rt: rt}
}

func (d *GPUDispatcher) Dispatch(p *plan.PhysicalPlan, bindingMap map[uint32]uint32, rowCount uint32, columns map[uint32]Column) (QueryResult, error) {
	wgsl, err := gen.Generate(p, bindingMap)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "generating shader")
	}

	workgroupCount := (rowCount + gen.Workgroup - 1) / gen.Workgroup
	outputElements := rowCount
	if p.IsAggregate {
		outputElements = workgroupCount
	}
	outputSize := uint64(outputElements) * 4
	if outputSize < gpu.MinBufferSize {
		outputSize = gpu.MinBufferSize
	}

	device := d.rt.Device()

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: "wsql-query", WGSL: wgsl})
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "creating shader module")
	}
	defer shader.Release()

	numInputs := len(bindingMap)
	layout, err := buildBindGroupLayout(device, numInputs)
	if err != nil {
		return QueryResult{}, err
	}
	defer layout.Release()

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "wsql-query-pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "creating pipeline layout")
	}
	defer pipelineLayout.Release()

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      "wsql-query-pipeline",
		Layout:     pipelineLayout,
		Module:     shader,
		EntryPoint: "main",
	})
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "creating compute pipeline")
	}
	defer pipeline.Release()

	inputBuffers, err := buildInputBuffers(d.rt, bindingMap, columns)
	for _, buf := range inputBuffers {
		defer buf.Release()
	}
	if err != nil {
		return QueryResult{}, err
	}

	outputBuf, err := d.rt.OutputBuffer("out", outputSize)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "allocating output buffer")
	}
	defer outputBuf.Release()

	stagingBuf, err := d.rt.StagingBuffer("stage", outputSize)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "allocating staging buffer")
	}
	defer stagingBuf.Release()

	paramsBuf, err := d.rt.ParamsBuffer("params", rowCount)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "allocating params buffer")
	}
	defer paramsBuf.Release()

	entries := make([]wgpu.BindGroupEntry, 0, numInputs+2)
	for slot, buf := range inputBuffers {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(slot), Buffer: buf})
	}
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: uint32(numInputs), Buffer: outputBuf, Size: outputSize},
		wgpu.BindGroupEntry{Binding: uint32(numInputs + 1), Buffer: paramsBuf, Size: 4},
	)

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "wsql-query-bg",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "creating bind group")
	}
	defer bindGroup.Release()

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "creating command encoder")
	}

	pass, err := encoder.BeginComputePass(nil)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "beginning compute pass")
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(workgroupCount, 1, 1)
	if err := pass.End(); err != nil {
		return QueryResult{}, errors.Wrap(err, "ending compute pass")
	}

	encoder.CopyBufferToBuffer(outputBuf, 0, stagingBuf, 0, outputSize)

	cmdBuf, err := encoder.Finish()
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "finishing command encoder")
	}
	if err := d.rt.Queue().Submit(cmdBuf); err != nil {
		return QueryResult{}, errors.Wrap(err, "submitting command buffer")
	}

	raw := make([]byte, outputSize)
	if err := d.rt.Queue().ReadBuffer(stagingBuf, 0, raw); err != nil {
		return QueryResult{}, errors.Wrap(err, "reading back output buffer")
	}

	return decodeOutput(raw, p.IsAggregate, outputElements), nil
}

func buildBindGroupLayout(device *wgpu.Device, numInputs int) (*wgpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, numInputs+2)
	for i := 0; i < numInputs; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	entries = append(entries,
		wgpu.BindGroupLayoutEntry{
			Binding:    uint32(numInputs),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		},
		wgpu.BindGroupLayoutEntry{
			Binding:    uint32(numInputs + 1),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		},
	)

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "wsql-query-bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating bind group layout")
	}
	return layout, nil
}

// buildInputBuffers uploads every bound column in slot order. Even on
// error it returns whatever buffers were already created, so the caller can
// still release them.
func buildInputBuffers(rt *gpu.Runtime, bindingMap map[uint32]uint32, columns map[uint32]Column) ([]*wgpu.Buffer, error) {
	buffers := make([]*wgpu.Buffer, len(bindingMap))
	for col, slot := range bindingMap {
		c, ok := columns[col]
		if !ok {
			return buffers, errors.Errorf("executor: no column data supplied for bound column %d", col)
		}

		var buf *wgpu.Buffer
		var err error
		if c.IsInt32 {
			buf, err = rt.InputBufferI32("col", c.Int32)
		} else {
			buf, err = rt.InputBufferF32("col", c.Float32)
		}
		if err != nil {
			return buffers, errors.Wrapf(err, "uploading column %d", col)
		}
		buffers[slot] = buf
	}
	return buffers, nil
}

func decodeOutput(raw []byte, isAggregate bool, elements uint32) QueryResult {
	if isAggregate {
		var sum float32
		for i := uint32(0); i < elements; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			sum += math.Float32frombits(bits)
		}
		return QueryResult{IsAggregate: true, Sum: sum}
	}

	rows := make([]int32, elements)
	for i := uint32(0); i < elements; i++ {
		rows[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return QueryResult{IsAggregate: false, Rows: rows}
}
