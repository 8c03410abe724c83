package fakegpu

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

func TestDevice_CreateDestroy(t *testing.T) {
	d := NewDevice()
	id, err := d.CreateTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 4, 4))
	require.NoError(t, err)

	layout, _ := d.TextureState(id)
	assert.Equal(t, gpu.LayoutUndefined, layout)
	assert.Equal(t, 1, d.LiveTextures())

	d.DestroyTexture(id)
	d.DestroyTexture(id)
	assert.Equal(t, 0, d.LiveTextures())
	assert.Equal(t, 1, d.Destroyed(), "a second destroy of the same id is a no-op")
	assert.Panics(t, func() { d.TextureDesc(id) }, "destroyed ids must not resolve")
}

func TestDevice_FailCreateAfter(t *testing.T) {
	d := NewDevice()
	d.FailCreateAfter(1)

	_, err := d.CreateBuffer(gpu.BufferDesc{Name: "a", Size: 4})
	require.NoError(t, err)
	_, err = d.CreateBuffer(gpu.BufferDesc{Name: "b", Size: 4})
	require.ErrorIs(t, err, ErrInjected)
	_, err = d.CreateEvent()
	require.ErrorIs(t, err, ErrInjected)

	d.FailCreateAfter(-1)
	_, err = d.CreateEvent()
	require.NoError(t, err)
	assert.Equal(t, 2, d.Created())
}

func TestDevice_ConcurrentCreate(t *testing.T) {
	d := NewDevice()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.CreateBuffer(gpu.BufferDesc{Size: 16})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, d.LiveBuffers())
}

func TestDevice_RenderPassCache(t *testing.T) {
	d := NewDevice()
	var key gpu.RenderPassKey
	key.Color[0] = gpu.Attachment{Format: gpu.FormatRGBA8Unorm, SampleCount: gpu.SampleCount1, Flags: gpu.AttachmentActive}

	a, err := d.RequestRenderPass(key)
	require.NoError(t, err)
	b, err := d.RequestRenderPass(key)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, d.RenderPassKeys(), 1)
}

func TestQueue_Timeline(t *testing.T) {
	qs := NewQueues()
	q := qs.Get(gpu.QueueCompute)

	enc, err := q.RequestCommandBuffer()
	require.NoError(t, err)
	enc.BeginLabel("first")
	enc.Dispatch(1, 1, 1)
	enc.EndLabel()

	q.Wait(gpu.Semaphore{Queue: gpu.QueueGraphics, Value: 3}, gpu.Stages(gpu.StageComputeShader))
	sem, err := q.Submit(enc)
	require.NoError(t, err)
	assert.Equal(t, gpu.Semaphore{Queue: gpu.QueueCompute, Value: 1}, sem)
	assert.EqualValues(t, 1, q.TimelineValue())

	sub, ok := qs.Find("first")
	require.True(t, ok)
	require.Len(t, sub.Waits, 1)
	assert.EqualValues(t, 3, sub.Waits[0].Semaphore.Value)
	assert.Equal(t, 1, sub.Encoder.Count(OpDispatch))
}

func TestQueue_FailSubmit(t *testing.T) {
	q := NewQueues().Get(gpu.QueueGraphics)
	boom := errors.New("device lost")
	q.FailSubmit(boom)

	enc, _ := q.RequestCommandBuffer()
	_, err := q.Submit(enc)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, q.TimelineValue())
	assert.Empty(t, q.Submissions())
}

func TestEncoder_UnbalancedLabel(t *testing.T) {
	e := &Encoder{}
	e.EndLabel()
	require.Error(t, e.Err())

	q := NewQueues().Get(gpu.QueueGraphics)
	_, err := q.Submit(e)
	require.Error(t, err)
}

func TestEncoder_Inspection(t *testing.T) {
	e := &Encoder{}
	e.PipelineBarrier(rendergraph.PipelineBarrier{SrcStages: gpu.Stages(gpu.StageTransfer)})
	e.WaitEvents(rendergraph.EventWait{Events: []gpu.EventID{7}})
	e.PipelineBarrier(rendergraph.PipelineBarrier{})

	assert.Len(t, e.Barriers(), 2)
	require.Len(t, e.EventWaits(), 1)
	assert.Equal(t, []gpu.EventID{7}, e.EventWaits()[0].Events)
}

func TestDevice_ClearedTextureLayout(t *testing.T) {
	d := NewDevice()
	desc := gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 4, 4)
	desc.Clear = true
	id, err := d.CreateTexture(desc)
	require.NoError(t, err)

	layout, _ := d.TextureState(id)
	assert.Equal(t, gpu.LayoutShaderReadOnlyOptimal, layout)
}
