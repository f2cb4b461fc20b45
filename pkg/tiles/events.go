package tiles

import (
	"github.com/zeusync/tilegrid/internal/core/events/bus"
	"github.com/zeusync/tilegrid/pkg/grid"
)

// Lifecycle events are published synchronously on TopicLifecycle whenever
// chunk or map storage appears or disappears. Renderers subscribe to know
// which chunks need re-uploading; tests subscribe to observe reclamation.
const (
	TopicLifecycle = "lifecycle"

	EventChunkCreated = "chunk.created"
	EventChunkRemoved = "chunk.removed"
	EventMapCreated   = "map.created"
	EventMapRemoved   = "map.removed"
)

// ChunkEvent is the payload of chunk.created and chunk.removed events.
type ChunkEvent struct {
	Label string
	Coord grid.Point
	ID    ChunkID
	Live  int
}

// MapEvent is the payload of map.created and map.removed events.
type MapEvent struct {
	Label string
}

// emitter buffers lifecycle events during a locked mutation and publishes
// them once locks are released, so subscribers may call back into the map.
type emitter struct {
	bus    bus.EventBus
	source string
	events []bus.Event
}

func (e *emitter) chunkCreated(label string, c *chunk) {
	if e == nil || e.bus == nil {
		return
	}
	e.events = append(e.events, bus.NewEvent(EventChunkCreated, e.source, ChunkEvent{
		Label: label,
		Coord: c.coord,
		ID:    c.id,
		Live:  c.live,
	}))
}

func (e *emitter) chunkRemoved(label string, c *chunk) {
	if e == nil || e.bus == nil {
		return
	}
	e.events = append(e.events, bus.NewEvent(EventChunkRemoved, e.source, ChunkEvent{
		Label: label,
		Coord: c.coord,
		ID:    c.id,
	}))
}

func (e *emitter) mapCreated(label string) {
	if e == nil || e.bus == nil {
		return
	}
	e.events = append(e.events, bus.NewEvent(EventMapCreated, e.source, MapEvent{Label: label}))
}

func (e *emitter) mapRemoved(label string) {
	if e == nil || e.bus == nil {
		return
	}
	e.events = append(e.events, bus.NewEvent(EventMapRemoved, e.source, MapEvent{Label: label}))
}

// flush publishes buffered events in order. Call with no locks held.
func (e *emitter) flush() {
	if e == nil || e.bus == nil || len(e.events) == 0 {
		return
	}
	for _, ev := range e.events {
		_ = e.bus.PublishToTopic(TopicLifecycle, ev)
	}
	e.events = e.events[:0]
}
