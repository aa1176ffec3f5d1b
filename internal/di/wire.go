//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinDash/pkg/config"
	"FinDash/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Core
		ProvideEventBus,
		ProvidePredictor,
		ProvideDashboardStore,
		ProvideScheduler,
		ProvideBroadcaster,

		// Infrastructure
		ProvideCache,
		ProvideEventExporter,

		// Transport
		ProvideDashboardHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
