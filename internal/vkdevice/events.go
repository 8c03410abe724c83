package vkdevice

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
)

// EventPool recycles vk.Event objects across frames. Put must only be called
// once the GPU no longer references the event.
type EventPool struct {
	device vk.Device
	table  *Table

	mu   sync.Mutex
	free []gpu.EventID
	live int
}

func NewEventPool(device vk.Device, table *Table) *EventPool {
	return &EventPool{device: device, table: table}
}

func (p *EventPool) Get() (gpu.EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		ev, _ := p.table.Event(id)
		if err := vk.Error(vk.ResetEvent(p.device, ev)); err != nil {
			p.destroy(id)
			return 0, fmt.Errorf("vkResetEvent: %w", err)
		}
		return id, nil
	}

	var ev vk.Event
	info := vk.EventCreateInfo{SType: vk.StructureTypeEventCreateInfo}
	if err := vk.Error(vk.CreateEvent(p.device, &info, nil, &ev)); err != nil {
		return 0, fmt.Errorf("vkCreateEvent: %w", err)
	}
	p.live++
	return p.table.RegisterEvent(ev), nil
}

func (p *EventPool) Put(id gpu.EventID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, id)
}

func (p *EventPool) destroy(id gpu.EventID) {
	if ev, ok := p.table.UnregisterEvent(id); ok {
		vk.DestroyEvent(p.device, ev, nil)
		p.live--
	}
}

// Live is the number of events created and not yet destroyed.
func (p *EventPool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Destroy releases pooled events. Events still checked out are left alone.
func (p *EventPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.free {
		p.destroy(id)
	}
	p.free = nil
}
