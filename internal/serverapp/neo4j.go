package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"neo4j-graphql/internal/config"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/middleware"
	"neo4j-graphql/internal/observability"
	"neo4j-graphql/internal/planner"
	"neo4j-graphql/internal/resolver"
	"neo4j-graphql/internal/schemarefresh"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func connectDriver(cfg *config.Config, logger *logging.Logger) (neo4j.DriverWithContext, error) {
	auth, err := cfg.Neo4j.AuthToken()
	if err != nil {
		return nil, err
	}
	driverLogger := dbexec.NewDriverLogger(logger.Logger, cfg.Neo4j.DriverLogSlogLevel())
	configure, err := cfg.Neo4j.DriverConfigurer(driverLogger)
	if err != nil {
		return nil, err
	}
	return neo4j.NewDriverWithContext(cfg.Neo4j.URI, auth, configure)
}

// connectivityChecker is the part of the driver the health check needs.
type connectivityChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

func waitForNeo4j(ctx context.Context, cfg *config.Config, logger *logging.Logger, driver connectivityChecker) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Neo4j.ConnectionTimeout
	interval := cfg.Neo4j.ConnectionRetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	// A zero timeout tries once.
	if timeout == 0 {
		return driver.VerifyConnectivity(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := driver.VerifyConnectivity(ctx)
		if err == nil {
			logger.Info("connected to Neo4j",
				slog.Int("attempts", attempt),
				slog.String("uri", cfg.Neo4j.RedactedURI()),
				slog.Int("pool_max_size", cfg.Neo4j.Pool.MaxSize),
				slog.Duration("pool_max_lifetime", cfg.Neo4j.Pool.MaxLifetime),
			)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("neo4j not available after %v: %w", timeout, err)
		}

		logger.Warn("neo4j not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		// Exponential backoff, capped at 30s
		interval = min(interval*2, 30*time.Second)
	}
}

func buildPlanLimits(cfg *config.Config) *planner.PlanLimits {
	t := cfg.Translation
	if t.MaxDepth > 0 || t.MaxComplexity > 0 || t.MaxRows > 0 {
		return &planner.PlanLimits{
			MaxDepth:      t.MaxDepth,
			MaxComplexity: t.MaxComplexity,
			MaxRows:       t.MaxRows,
		}
	}
	return nil
}

func buildQueryExecutor(cfg *config.Config, driver neo4j.DriverWithContext) dbexec.QueryExecutor {
	queryExecutor := dbexec.QueryExecutor(dbexec.NewNeo4jExecutor(driver, cfg.Neo4j.Database))
	auth := cfg.Server.Auth
	if auth.ImpersonationEnabled {
		queryExecutor = dbexec.NewImpersonatingExecutor(dbexec.ImpersonatingExecutorConfig{
			Next:         queryExecutor,
			UserFromCtx:  middleware.ImpersonatedUserFromContext,
			AllowedUsers: auth.ImpersonationAllowedUsers,
			ValidateUser: len(auth.ImpersonationAllowedUsers) > 0,
		})
	}
	return queryExecutor
}

func resolverTemplate(cfg *config.Config, limits *planner.PlanLimits, executor dbexec.QueryExecutor) resolver.Config {
	t := cfg.Translation
	rc := resolver.Config{
		Executor:         executor,
		Limits:           limits,
		DefaultListLimit: t.DefaultListLimit,
		MaxMutationDepth: t.MaxMutationDepth,
		MaxConcurrency:   t.MaxConcurrency,
		Subscriptions:    t.SubscriptionEvents,
	}
	if t.SubscriptionEvents {
		rc.Events = resolver.LogPublisher{}
	}
	return rc
}

func startSchemaManager(ctx context.Context, cfg *config.Config, logger *logging.Logger, limits *planner.PlanLimits, metrics *observability.SchemaRefreshMetrics, executor dbexec.QueryExecutor) (*schemarefresh.Manager, context.CancelFunc, error) {
	manager, err := schemarefresh.NewManager(ctx, schemarefresh.Config{
		Source:      schemarefresh.FileSource{Path: cfg.Schema.TypeDefsFile},
		Resolver:    resolverTemplate(cfg, limits, executor),
		Naming:      cfg.Naming,
		Logger:      logger,
		Metrics:     metrics,
		MinInterval: cfg.Schema.RefreshMinInterval,
		MaxInterval: cfg.Schema.RefreshMaxInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	schemaCtx, schemaCancel := context.WithCancel(context.Background())
	manager.Start(schemaCtx)

	return manager, schemaCancel, nil
}
