//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/Hampusfredrik/mindmap/infrastructure/config"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/handlers"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideErrorHandler,
	ProvideMetrics,
	ProvideTracing,
	ProvideStorage,
	ProvideRepositories,
	ProvideAuthorizer,
	ProvideGraphService,
	ProvideNodeService,
	ProvideEdgeService,
	handlers.NewGraphHandler,
	handlers.NewNodeHandler,
	handlers.NewEdgeHandler,
	ProvideAuthenticator,
	ProvideRouter,
	ProvideHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
