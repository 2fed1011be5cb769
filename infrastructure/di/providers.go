package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Hampusfredrik/mindmap/application/ports"
	"github.com/Hampusfredrik/mindmap/application/services"
	"github.com/Hampusfredrik/mindmap/infrastructure/config"
	"github.com/Hampusfredrik/mindmap/infrastructure/persistence/dynamodb"
	"github.com/Hampusfredrik/mindmap/infrastructure/persistence/guard"
	"github.com/Hampusfredrik/mindmap/infrastructure/persistence/memory"
	"github.com/Hampusfredrik/mindmap/infrastructure/persistence/postgres"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/handlers"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/middleware"
	"github.com/Hampusfredrik/mindmap/pkg/auth"
	"github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/observability"
)

// Storage is the backend chosen by configuration
type Storage struct {
	Backend string
	Repos   ports.Repositories
	migrate func(ctx context.Context) error
}

// Migrate prepares the backend schema. The memory backend has none.
func (s *Storage) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(ctx)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg, err := loggerConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	), nil
}

// loggerConfig picks console output for local runs and JSON in production
// and on Lambda, where CloudWatch ingests one object per line
func loggerConfig(cfg *config.Config) (zap.Config, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else if cfg.IsLambda {
		zapCfg.Encoding = "json"
		zapCfg.EncoderConfig = zap.NewProductionEncoderConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return zapCfg, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg, nil
}

// ProvideErrorHandler creates the HTTP error renderer. Causes are exposed
// outside production only.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger, !cfg.IsProduction())
}

// ProvideMetrics creates the Prometheus collector, or nil when disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("mindmap")
}

// ProvideTracing installs the OTLP exporter when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return observability.NoopTracing(), func() {}, nil
	}

	tp, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return awsconfig.LoadDefaultConfig(loadCtx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client. DYNAMODB_ENDPOINT points
// it at DynamoDB Local.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideStorage opens the configured backend. There is no fallback: a
// backend that cannot be opened fails startup.
func ProvideStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, func(), error) {
	var storage *Storage

	switch cfg.StorageBackend {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		storage = &Storage{Backend: cfg.StorageBackend, Repos: memory.NewStore().Repositories()}

	case config.StoragePostgres:
		store, err := postgres.Open(postgres.Config{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxOpenConns / 2,
			ConnMaxLifetime: 30 * time.Minute,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		storage = &Storage{Backend: cfg.StorageBackend, Repos: store.Repositories(), migrate: store.Migrate}
		if cfg.DBAutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, nil, err
			}
		}

	case config.StorageDynamoDB:
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		store := dynamodb.NewStore(ProvideDynamoDBClient(awsCfg, cfg), dynamodb.Config{
			TableName:     cfg.DynamoDBTable,
			GSI1IndexName: cfg.GSI1IndexName,
			GSI2IndexName: cfg.GSI2IndexName,
		}, logger)
		storage = &Storage{Backend: cfg.StorageBackend, Repos: store.Repositories(), migrate: store.CreateTable}

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	logger.Info("Storage backend ready", zap.String("backend", storage.Backend))
	cleanup := func() {
		if storage.Repos.Close == nil {
			return
		}
		if err := storage.Repos.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
	return storage, cleanup, nil
}

// ProvideRepositories wraps the backend in the storage guard
func ProvideRepositories(
	storage *Storage,
	cfg *config.Config,
	tracing *observability.TracerProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) ports.Repositories {
	g := guard.New(guard.Config{
		Name:             "storage-" + storage.Backend,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
		CallTimeout:      cfg.Breaker.CallTimeout,
	}, tracing.Tracer(), metrics, logger)
	return g.Wrap(storage.Repos)
}

// ProvideAuthorizer creates the ownership gate
func ProvideAuthorizer(repos ports.Repositories) *services.Authorizer {
	return services.NewAuthorizer(repos.Graphs, repos.Nodes, repos.Edges)
}

// ProvideGraphService creates the graph service
func ProvideGraphService(repos ports.Repositories, authz *services.Authorizer, logger *zap.Logger) *services.GraphService {
	return services.NewGraphService(repos.Graphs, repos.Nodes, repos.Edges, authz, logger)
}

// ProvideNodeService creates the node service
func ProvideNodeService(repos ports.Repositories, authz *services.Authorizer, logger *zap.Logger) *services.NodeService {
	return services.NewNodeService(repos.Nodes, authz, logger)
}

// ProvideEdgeService creates the edge service
func ProvideEdgeService(repos ports.Repositories, authz *services.Authorizer, logger *zap.Logger) *services.EdgeService {
	return services.NewEdgeService(repos.Nodes, repos.Edges, authz, logger)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: cfg.JWTSigningMethod,
		PublicKey:     cfg.JWTPublicKey,
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      audience(cfg),
	})
}

// ProvideJWTGenerator creates the token minter used by local tooling
func ProvideJWTGenerator(cfg *config.Config, expiry time.Duration) (*auth.JWTGenerator, error) {
	return auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SigningMethod: cfg.JWTSigningMethod,
		PrivateKey:    cfg.JWTPrivateKey,
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      audience(cfg),
		ExpiryTime:    expiry,
	})
}

func audience(cfg *config.Config) []string {
	if cfg.JWTAudience == "" {
		return nil
	}
	return []string{cfg.JWTAudience}
}

// ProvideAuthenticator picks the identity middleware for AUTH_MODE
func ProvideAuthenticator(cfg *config.Config, errs *errors.ErrorHandler, logger *zap.Logger) (middleware.Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthGateway:
		logger.Info("Trusting gateway identity header", zap.String("header", middleware.UserIDHeader))
		return middleware.AuthenticateGateway(errs), nil
	case config.AuthJWT:
		validator, err := ProvideJWTValidator(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT validator: %w", err)
		}
		return middleware.Authenticate(validator, errs, logger), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	graphs *handlers.GraphHandler,
	nodes *handlers.NodeHandler,
	edges *handlers.EdgeHandler,
	authn middleware.Authenticator,
	repos ports.Repositories,
	tracing *observability.TracerProvider,
	metrics *observability.Collector,
	errs *errors.ErrorHandler,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(
		rest.RouterConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RequestTimeout: cfg.RequestTimeout,
			Tracer:         tracing.Tracer(),
		},
		graphs,
		nodes,
		edges,
		authn,
		rest.ReadinessCheck(repos.Ping),
		metrics,
		errs,
		logger,
	)
}

// ProvideHandler builds the routed handler
func ProvideHandler(router *rest.Router) http.Handler {
	return router.Setup()
}
