//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/tilegrid/internal/core/events/bus"
	"github.com/zeusync/tilegrid/internal/core/observability/log"
	"github.com/zeusync/tilegrid/pkg/tiles"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func provideWorld(l *log.Logger, b bus.EventBus) *tiles.World {
	return tiles.NewWorld(tiles.WithLogger(l), tiles.WithEventBus(b))
}

func ProvideWorld() *tiles.World {
	wire.Build(log.Provide, bus.New, provideWorld)
	return nil
}
