//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"storygraph/infrastructure/config"
)

// SuperSet is the complete provider set for the application.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideErrorHandler,
	ProvideTuningWatcher,
	ProvideDataSources,
	ProvideQueryBus,
	ProvideSessionManager,
	ProvideSessionDefaults,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the full dependency container.
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
