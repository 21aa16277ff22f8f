//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"stride/internal"
	"stride/internal/controllers"
	"stride/internal/outbox"
	"stride/internal/providers"
	"stride/internal/sampler"
	"stride/internal/services"
	"stride/internal/statistic"
	"stride/internal/statistic/interfaces"
	"stride/internal/storage/driver"
	"stride/internal/structures"
	"stride/internal/tracking"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		driver.NewRecordStore,
		NewPersister,
		tracking.NewClock,

		outbox.NewOutbox,
		wire.Bind(new(outbox.OutboxInterface), new(*outbox.Outbox)),

		services.NewRunService,
		wire.Bind(new(services.RunServiceInterface), new(*services.RunService)),
		wire.Bind(new(interfaces.GaugeSourceInterface), new(*services.RunService)),
		wire.Bind(new(sampler.Sink), new(*services.RunService)),

		sampler.NewPushSampler,
		sampler.NewSimulatedSampler,
		sampler.NewConfiguredFeed,
		wire.Bind(new(controllers.SimulationReporter), new(*sampler.Feed)),
		wire.Bind(new(controllers.RunFeed), new(*sampler.Feed)),

		statistic.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
