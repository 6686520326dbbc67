package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/logger"
)

type Neo4jDriver struct {
	Driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver opens a pooled driver. Connectivity is not checked here so
// the service can start while the graph is still coming up; see
// VerifyConnectivity.
func NewNeo4jDriver(cfg config.GraphConfig) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
			if cfg.AcquireTimeoutMS > 0 {
				c.ConnectionAcquisitionTimeout = cfg.AcquireTimeout()
			}
			c.SocketConnectTimeout = 5 * time.Second
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	logger.Info(context.Background(), "neo4j driver created", "uri", cfg.URI, "database", cfg.Database, "max_pool_size", cfg.MaxPoolSize)
	return &Neo4jDriver{Driver: driver, database: cfg.Database}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return d.Driver.VerifyConnectivity(ctx)
}

// ExecuteQuery runs a read query and collects every record.
func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}
