package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/infrastructure/config"
	"github.com/Hampusfredrik/mindmap/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Storage      *Storage
	Repositories ports.Repositories
	Tracing      *observability.TracerProvider
	Metrics      *observability.Collector
	Handler      http.Handler
}
