package rendergraph

import "time"

// BarrierStats counts the synchronization a frame needed.
type BarrierStats struct {
	PipelineBarriers  int `json:"pipeline_barriers"`
	EventWaits        int `json:"event_waits"`
	SemaphoreWaits    int `json:"semaphore_waits"`
	LayoutTransitions int `json:"layout_transitions"`
}

// FrameReport summarizes one Execute call.
type FrameReport struct {
	FrameID           string        `json:"frame_id"`
	PassOrder         []string      `json:"pass_order"`
	Culled            []string      `json:"culled"`
	Barriers          BarrierStats  `json:"barriers"`
	TransientBuffers  int           `json:"transient_buffers"`
	TransientTextures int           `json:"transient_textures"`
	Submissions       int           `json:"submissions"`
	Duration          time.Duration `json:"duration"`
}
