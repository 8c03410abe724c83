package gpu

import "strings"

// PipelineStage is a single stage of the GPU pipeline.
type PipelineStage uint8

const (
	StageTopOfPipe PipelineStage = iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageTessellationControlShader
	StageTessellationEvaluationShader
	StageGeometryShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAccelerationStructureBuild
	StageRayTracingShader
	StageCount
)

var stageNames = [...]string{
	"top_of_pipe", "draw_indirect", "vertex_input", "vertex_shader",
	"tessellation_control_shader", "tessellation_evaluation_shader",
	"geometry_shader", "fragment_shader", "early_fragment_tests",
	"late_fragment_tests", "color_attachment_output", "compute_shader",
	"transfer", "bottom_of_pipe", "host", "acceleration_structure_build",
	"ray_tracing_shader",
}

func (s PipelineStage) String() string {
	if s < StageCount {
		return stageNames[s]
	}
	return "unknown"
}

// PipelineStageFlags is a set of pipeline stages.
type PipelineStageFlags uint32

const (
	StagesNone PipelineStageFlags = 0
	StagesAll  PipelineStageFlags = 1<<StageCount - 1
)

// Stages builds a set from individual stages.
func Stages(ss ...PipelineStage) PipelineStageFlags {
	var f PipelineStageFlags
	for _, s := range ss {
		f |= 1 << s
	}
	return f
}

func (f PipelineStageFlags) Has(s PipelineStage) bool { return f&(1<<s) != 0 }

// Any reports whether f and o share a stage.
func (f PipelineStageFlags) Any(o PipelineStageFlags) bool { return f&o != 0 }

// Contains reports whether every stage of o is in f.
func (f PipelineStageFlags) Contains(o PipelineStageFlags) bool { return f&o == o }

func (f PipelineStageFlags) IsEmpty() bool { return f == 0 }

// ForEach calls fn for every stage in f, lowest first.
func (f PipelineStageFlags) ForEach(fn func(PipelineStage)) {
	for s := PipelineStage(0); s < StageCount; s++ {
		if f.Has(s) {
			fn(s)
		}
	}
}

func (f PipelineStageFlags) String() string {
	if f == 0 {
		return "none"
	}
	if f == StagesAll {
		return "all"
	}
	var parts []string
	f.ForEach(func(s PipelineStage) { parts = append(parts, s.String()) })
	return strings.Join(parts, "|")
}

// ShaderStageFlags describes which shader stages touch a resource.
type ShaderStageFlags uint8

const (
	ShaderVertex ShaderStageFlags = 1 << iota
	ShaderGeometry
	ShaderFragment
	ShaderCompute
	ShaderRaygen
	ShaderMiss
	ShaderClosestHit

	ShaderRayTracing = ShaderRaygen | ShaderMiss | ShaderClosestHit
)

// PipelineStages returns the pipeline stages that execute the given shader
// stages.
func (f ShaderStageFlags) PipelineStages() PipelineStageFlags {
	var out PipelineStageFlags
	if f&ShaderVertex != 0 {
		out |= Stages(StageVertexShader)
	}
	if f&ShaderGeometry != 0 {
		out |= Stages(StageGeometryShader)
	}
	if f&ShaderFragment != 0 {
		out |= Stages(StageFragmentShader)
	}
	if f&ShaderCompute != 0 {
		out |= Stages(StageComputeShader)
	}
	if f&ShaderRayTracing != 0 {
		out |= Stages(StageRayTracingShader)
	}
	return out
}
