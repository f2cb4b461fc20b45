// Command gridviz renders a procedurally generated tile world in the
// terminal. Arrow keys pan the camera, WASD pushes the player tile around
// (bumping into another unit shows the occupied-destination rejection),
// 'g' regenerates the terrain with the next seed, 'c' overlays chunk
// boundaries and 'q' quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	termbox "github.com/nsf/termbox-go"

	"github.com/zeusync/tilegrid/internal/core/observability/log"
	"github.com/zeusync/tilegrid/pkg/grid"
	"github.com/zeusync/tilegrid/pkg/terrain"
	"github.com/zeusync/tilegrid/pkg/tiles"
)

const (
	terrainLabel = "terrain"
	unitLabel    = "units"

	fillRadius = 96
	npcCount   = 24
	panStep    = 4
)

type unit struct {
	Name string
}

var (
	configPath = flag.String("config", "", "path to a YAML world config")
	seed       = flag.Int64("seed", 1, "terrain seed")
	workers    = flag.Int("workers", 4, "parallel chunk fill workers")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gridviz:", err)
		os.Exit(1)
	}
}

func run() error {
	w, err := buildWorld(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	v := &viewer{world: w, seed: *seed, workers: *workers}
	if err = v.generate(context.Background()); err != nil {
		return err
	}

	if err = termbox.Init(); err != nil {
		return fmt.Errorf("termbox init: %w", err)
	}
	defer termbox.Close()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopCh
		termbox.Interrupt()
	}()

	return v.loop()
}

// buildWorld constructs the world from a config file, or a default pair of
// maps when none is given. The viewer keeps the logger silent because zap
// output and the termbox screen do not mix.
func buildWorld(path string) (*tiles.World, error) {
	opts := []tiles.WorldOption{tiles.WithLogger(log.Nop())}
	if path == "" {
		w := tiles.NewWorld(opts...)
		if _, err := w.CreateMap(tiles.MapConfig{Label: terrainLabel, ChunkEdge: 32}); err != nil {
			return nil, err
		}
		if _, err := w.CreateMap(tiles.MapConfig{Label: unitLabel, ChunkEdge: 16}); err != nil {
			return nil, err
		}
		return w, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	cfg, err := tiles.LoadWorldYAML(f)
	if err != nil {
		return nil, err
	}
	w, err := tiles.NewWorldFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	for _, mc := range []tiles.MapConfig{
		{Label: terrainLabel, ChunkEdge: 32},
		{Label: unitLabel, ChunkEdge: 16},
	} {
		if _, ok := w.Map(mc.Label); ok {
			continue
		}
		if _, err = w.CreateMap(mc); err != nil {
			return nil, err
		}
	}
	return w, nil
}

type viewer struct {
	world   *tiles.World
	seed    int64
	workers int

	cam      grid.Point
	player   grid.Point
	showGrid bool
	status   string
}

// generate fills the terrain map around the origin and scatters units on
// top, with the player at the origin.
func (v *viewer) generate(ctx context.Context) error {
	tm, ok := v.world.Map(terrainLabel)
	if !ok {
		return fmt.Errorf("map %q missing", terrainLabel)
	}
	um, ok := v.world.Map(unitLabel)
	if !ok {
		return fmt.Errorf("map %q missing", unitLabel)
	}

	region := grid.NewRegion(grid.P(-fillRadius, -fillRadius), grid.P(fillRadius-1, fillRadius-1))
	gen := terrain.New(terrain.Config{Seed: v.seed})
	filled, err := gen.Fill(ctx, tm, region, v.workers)
	if err != nil {
		return err
	}

	um.ClearRegion(region)
	rng := rand.New(rand.NewSource(v.seed))
	for placed := 0; placed < npcCount; {
		p := grid.P(
			int32(rng.Intn(2*fillRadius)-fillRadius),
			int32(rng.Intn(2*fillRadius)-fillRadius),
		)
		if p == (grid.Point{}) {
			continue
		}
		replaced, err := um.WriteTile(p, tiles.With(unit{Name: fmt.Sprintf("wanderer-%d", placed)}))
		if err != nil {
			return err
		}
		if !replaced {
			placed++
		}
	}
	v.player = grid.Point{}
	if _, err = um.WriteTile(v.player, tiles.With(unit{Name: "player"})); err != nil {
		return err
	}

	v.status = fmt.Sprintf("seed %d: %d tiles across %d chunks", v.seed, filled, tm.ChunkCount())
	return nil
}

func (v *viewer) loop() error {
	v.draw()
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventInterrupt:
			return nil
		case termbox.EventResize:
			v.draw()
		case termbox.EventKey:
			if v.handleKey(ev) {
				return nil
			}
			v.draw()
		case termbox.EventError:
			return ev.Err
		}
	}
}

func (v *viewer) handleKey(ev termbox.Event) (quit bool) {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return true
	case termbox.KeyArrowLeft:
		v.cam = v.cam.Add(grid.P(-panStep, 0))
	case termbox.KeyArrowRight:
		v.cam = v.cam.Add(grid.P(panStep, 0))
	case termbox.KeyArrowUp:
		v.cam = v.cam.Add(grid.P(0, -panStep))
	case termbox.KeyArrowDown:
		v.cam = v.cam.Add(grid.P(0, panStep))
	}

	switch ev.Ch {
	case 'q':
		return true
	case 'g':
		v.seed++
		if err := v.generate(context.Background()); err != nil {
			v.status = err.Error()
		}
	case 'c':
		v.showGrid = !v.showGrid
	case 'w':
		v.movePlayer(grid.P(0, -1))
	case 's':
		v.movePlayer(grid.P(0, 1))
	case 'a':
		v.movePlayer(grid.P(-1, 0))
	case 'd':
		v.movePlayer(grid.P(1, 0))
	}
	return false
}

func (v *viewer) movePlayer(delta grid.Point) {
	to := v.player.Add(delta)
	moved, err := v.world.MoveTile(unitLabel, v.player, to)
	switch {
	case errors.Is(err, tiles.ErrOccupiedDestination):
		v.status = fmt.Sprintf("blocked: (%d,%d) is taken", to.X(), to.Y())
	case err != nil:
		v.status = err.Error()
	case moved:
		v.player = to
		v.status = fmt.Sprintf("player at (%d,%d)", to.X(), to.Y())
	}
}

func (v *viewer) draw() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	tm, ok := v.world.Map(terrainLabel)
	if !ok {
		return
	}
	um, ok := v.world.Map(unitLabel)
	if !ok {
		return
	}

	width, height := termbox.Size()
	const top = 2
	for py := top; py < height; py++ {
		for px := 0; px < width; px++ {
			p := v.cam.Add(grid.P(
				int32(px-width/2),
				int32(py-top-(height-top)/2),
			))
			ch, fg, bg := v.cell(tm, um, p)
			termbox.SetCell(px, py, ch, fg, bg)
		}
	}

	view := grid.NewRegion(
		v.cam.Add(grid.P(int32(-width/2), int32(-(height-top)/2))),
		v.cam.Add(grid.P(int32(width/2), int32((height-top)/2))),
	)
	header := fmt.Sprintf("tilegrid  cam=(%d,%d)  tiles=%d  chunks=%d (%d visible)  [wasd move | arrows pan | g regen | c grid | q quit]",
		v.cam.X(), v.cam.Y(), tm.Len(), tm.ChunkCount(), tm.ChunksIn(view).Count())
	drawText(0, 0, header, termbox.ColorYellow|termbox.AttrBold, termbox.ColorDefault)
	drawText(0, 1, v.status, termbox.ColorWhite, termbox.ColorDefault)
	termbox.Flush()
}

func (v *viewer) cell(tm, um *tiles.TileMap, p grid.Point) (rune, termbox.Attribute, termbox.Attribute) {
	if u, ok := tiles.At[unit](um, p); ok {
		if u.Name == "player" {
			return '@', termbox.ColorWhite | termbox.AttrBold, termbox.ColorDefault
		}
		return 'o', termbox.ColorMagenta, termbox.ColorDefault
	}
	t, ok := tiles.At[terrain.Tile](tm, p)
	if !ok {
		return ' ', termbox.ColorDefault, termbox.ColorDefault
	}
	if v.showGrid && onChunkEdge(p, tm.Edge()) {
		return '+', termbox.ColorBlack | termbox.AttrBold, termbox.ColorDefault
	}
	ch, color := biomeCell(t.Biome)
	return ch, color, termbox.ColorDefault
}

func onChunkEdge(p grid.Point, edge int32) bool {
	mask := edge - 1
	return p.X()&mask == 0 || p.Y()&mask == 0
}

func biomeCell(b terrain.Biome) (rune, termbox.Attribute) {
	switch b {
	case terrain.BiomeOcean:
		return '~', termbox.ColorBlue
	case terrain.BiomeShore:
		return '.', termbox.ColorYellow
	case terrain.BiomePlains:
		return ',', termbox.ColorGreen
	case terrain.BiomeForest:
		return 'T', termbox.ColorGreen | termbox.AttrBold
	case terrain.BiomeHills:
		return 'n', termbox.ColorCyan
	case terrain.BiomeMountains:
		return '^', termbox.ColorWhite | termbox.AttrBold
	default:
		return '?', termbox.ColorDefault
	}
}

func drawText(x, y int, s string, fg, bg termbox.Attribute) {
	for i, r := range s {
		termbox.SetCell(x+i, y, r, fg, bg)
	}
}
