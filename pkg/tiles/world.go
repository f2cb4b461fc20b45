package tiles

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/tilegrid/internal/core/events/bus"
	"github.com/zeusync/tilegrid/internal/core/observability/log"
	"github.com/zeusync/tilegrid/pkg/grid"
	"github.com/zeusync/tilegrid/pkg/sequence"
)

// World owns labeled tile maps, the event bus their lifecycle events flow
// through, and the policy that decides what happens when a map loses its
// last chunk.
type World struct {
	id     string
	logger log.Log
	bus    bus.EventBus

	removeEmptyMaps bool

	mu      sync.RWMutex
	configs map[string]MapConfig
	maps    map[string]*TileMap
	closed  bool
}

// WorldOption configures a World at construction time.
type WorldOption func(*World)

// WithLogger sets the world's logger.
func WithLogger(l log.Log) WorldOption {
	return func(w *World) { w.logger = l }
}

// WithEventBus replaces the world's event bus.
func WithEventBus(b bus.EventBus) WorldOption {
	return func(w *World) { w.bus = b }
}

// WithRemoveEmptyMaps makes the world drop a map instance when its last
// chunk is reclaimed. The label stays registered, so the next write to it
// re-materializes the map transparently. Only enable this when writers to a
// map that may empty out are quiesced; a write racing the removal can land
// in the dropped instance.
func WithRemoveEmptyMaps() WorldOption {
	return func(w *World) { w.removeEmptyMaps = true }
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:      uuid.NewString(),
		configs: make(map[string]MapConfig),
		maps:    make(map[string]*TileMap),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.Provide()
	}
	if w.bus == nil {
		w.bus = bus.New()
	}
	return w
}

// NewWorldFromConfig creates a world with every map the config lists already
// registered. The config is validated up front.
func NewWorldFromConfig(cfg *WorldConfig, opts ...WorldOption) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" {
		opts = append([]WorldOption{WithLogger(log.New(log.ParseLevel(cfg.LogLevel)))}, opts...)
	}
	if cfg.RemoveEmptyMaps {
		opts = append(opts, WithRemoveEmptyMaps())
	}
	w := NewWorld(opts...)
	for _, mc := range cfg.Maps {
		if _, err := w.CreateMap(mc); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w, nil
}

// ID returns the world's unique identifier. It is the source of every event
// the world's maps publish.
func (w *World) ID() string { return w.id }

// Events returns the world's event bus for lifecycle subscriptions.
func (w *World) Events() bus.EventBus { return w.bus }

// CreateMap registers a map label and materializes its instance. The config
// is defaulted and validated first; a duplicate label fails with
// ErrMapExists.
func (w *World) CreateMap(cfg MapConfig) (*TileMap, error) {
	cfg = cfg.withDefaults()
	if cfg.Label == "" {
		return nil, wrapSentinel(ErrInvalidConfiguration, "map label is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	em := &emitter{bus: w.bus, source: w.id}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, wrapSentinel(ErrClosed, fmt.Sprintf("cannot create map %q", cfg.Label))
	}
	if _, dup := w.configs[cfg.Label]; dup {
		w.mu.Unlock()
		return nil, wrapSentinel(ErrMapExists, fmt.Sprintf("map %q already registered", cfg.Label))
	}
	m := newTileMap(cfg, w, w.bus, w.logger, w.id)
	w.configs[cfg.Label] = cfg
	w.maps[cfg.Label] = m
	em.mapCreated(cfg.Label)
	w.mu.Unlock()

	em.flush()
	w.logger.Info("map created",
		log.String("label", cfg.Label),
		log.Int32("chunk_edge", cfg.ChunkEdge),
		log.Int("dims", cfg.Dims))
	return m, nil
}

// Map returns the materialized instance for label. The second result is
// false when the label is unknown or the instance was dropped by the
// remove-empty-maps policy.
func (w *World) Map(label string) (*TileMap, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, ok := w.maps[label]
	return m, ok
}

// Labels returns every registered map label in sorted order, materialized
// or not.
func (w *World) Labels() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	labels := make([]string, 0, len(w.configs))
	for l := range w.configs {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return labels
}

// Maps iterates the currently materialized maps in label order.
func (w *World) Maps() *sequence.Iterator[*TileMap] {
	return sequence.FromSeq(func(yield func(*TileMap) bool) {
		for _, label := range w.Labels() {
			m, ok := w.Map(label)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	})
}

// lookupMap fetches the instance for label without materializing one. ok is
// false when no instance exists; err is non-nil when the label itself is
// unknown.
func (w *World) lookupMap(label string) (*TileMap, bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if m, ok := w.maps[label]; ok {
		return m, true, nil
	}
	if _, registered := w.configs[label]; registered {
		return nil, false, nil
	}
	return nil, false, wrapSentinel(ErrUnknownMap, fmt.Sprintf("map %q is not registered", label))
}

// ensureMap returns the instance for label, re-materializing it from the
// registered config when the remove-empty-maps policy dropped it.
func (w *World) ensureMap(label string) (*TileMap, error) {
	w.mu.RLock()
	m, ok := w.maps[label]
	w.mu.RUnlock()
	if ok {
		return m, nil
	}

	em := &emitter{bus: w.bus, source: w.id}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, wrapSentinel(ErrClosed, fmt.Sprintf("cannot use map %q", label))
	}
	if m, ok = w.maps[label]; ok {
		w.mu.Unlock()
		return m, nil
	}
	cfg, registered := w.configs[label]
	if !registered {
		w.mu.Unlock()
		return nil, wrapSentinel(ErrUnknownMap, fmt.Sprintf("map %q is not registered", label))
	}
	m = newTileMap(cfg, w, w.bus, w.logger, w.id)
	w.maps[label] = m
	em.mapCreated(label)
	w.mu.Unlock()

	em.flush()
	w.logger.Debug("map rematerialized", log.String("label", label))
	return m, nil
}

// WriteTile writes to a tile in the labeled map, materializing the map if
// its instance was dropped. Unknown labels fail with ErrUnknownMap.
func (w *World) WriteTile(label string, at grid.Point, values ...Value) (bool, error) {
	m, err := w.ensureMap(label)
	if err != nil {
		return false, err
	}
	return m.WriteTile(at, values...)
}

// ClearTile clears a tile in the labeled map. Unknown labels fail with
// ErrUnknownMap; a registered map without an instance has nothing to clear.
func (w *World) ClearTile(label string, at grid.Point) (bool, error) {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return false, err
	}
	return m.ClearTile(at), nil
}

// MoveTile moves a tile within the labeled map.
func (w *World) MoveTile(label string, from, to grid.Point, opts ...MoveOption) (bool, error) {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return false, err
	}
	return m.MoveTile(from, to, opts...)
}

// SwapTiles exchanges two tiles within the labeled map.
func (w *World) SwapTiles(label string, a, b grid.Point) error {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return err
	}
	return m.SwapTiles(a, b)
}

// Batch opens a mutation batch on the labeled map, materializing it if
// needed.
func (w *World) Batch(label string) (*Batch, error) {
	m, err := w.ensureMap(label)
	if err != nil {
		return nil, err
	}
	return m.Batch(), nil
}

// Contains reports whether a live tile exists in the labeled map. Reads
// never fail: unknown labels simply contain nothing.
func (w *World) Contains(label string, at grid.Point) bool {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return false
	}
	return m.Contains(at)
}

// Len returns the number of live tiles in the labeled map, zero when the
// label is unknown or has no instance.
func (w *World) Len(label string) int {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return 0
	}
	return m.Len()
}

// PointsIn iterates live tile coordinates within a region of the labeled
// map. The iterator is empty when the label is unknown or has no instance.
func (w *World) PointsIn(label string, region grid.Region) *sequence.Iterator[grid.Point] {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		return sequence.From[grid.Point](nil)
	}
	return m.PointsIn(region)
}

// AtLabel reads a component of type T from a tile in the labeled map. Reads
// never fail: unknown labels report absence.
func AtLabel[T any](w *World, label string, at grid.Point) (T, bool) {
	m, ok, err := w.lookupMap(label)
	if err != nil || !ok {
		var zero T
		return zero, false
	}
	return At[T](m, at)
}

// DespawnMap removes a label entirely: every chunk of its instance is
// dropped with a removal event each, map.removed fires, and the label
// becomes unknown. It reports whether the label was registered.
func (w *World) DespawnMap(label string) bool {
	em := &emitter{bus: w.bus, source: w.id}
	w.mu.Lock()
	_, registered := w.configs[label]
	m := w.maps[label]
	delete(w.configs, label)
	delete(w.maps, label)
	w.mu.Unlock()

	if !registered {
		return false
	}
	if m != nil {
		m.dropAllChunks(em)
	}
	em.mapRemoved(label)
	em.flush()
	w.logger.Info("map despawned", log.String("label", label))
	return true
}

// dropAllChunks removes every chunk of the map in ascending coordinate
// order, buffering a removal event per chunk.
func (m *TileMap) dropAllChunks(em *emitter) {
	for _, cc := range m.chunkCoords() {
		sh := m.shardFor(cc)
		sh.mu.Lock()
		ck, ok := sh.chunks[cc]
		if !ok {
			sh.mu.Unlock()
			continue
		}
		delete(sh.chunks, cc)
		em.chunkRemoved(m.label, ck)
		sh.mu.Unlock()

		m.liveCount.Add(int64(-ck.live))
		m.chunkCount.Add(-1)
	}
}

// mapEmptied is called by a map that reclaimed its last chunk, with no shard
// lock held. Under the remove-empty-maps policy the instance is dropped; the
// label stays registered so a later write re-materializes it.
func (w *World) mapEmptied(label string, em *emitter) {
	if !w.removeEmptyMaps {
		return
	}
	w.mu.Lock()
	m, ok := w.maps[label]
	if !ok || m.chunkCount.Load() != 0 {
		w.mu.Unlock()
		return
	}
	delete(w.maps, label)
	em.mapRemoved(label)
	w.mu.Unlock()

	w.logger.Info("empty map removed", log.String("label", label))
}

// Close shuts the world down: further map creation fails with ErrClosed,
// the event bus closes, and the logger flushes. Existing map handles keep
// their storage.
func (w *World) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.bus.Close()
	w.logger.Info("world closed", log.String("world_id", w.id))
	_ = w.logger.Sync()
	return err
}
