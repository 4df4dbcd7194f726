// Package neo4j maintains the evidence graph: which responses support which
// findings, and which findings support each published theme and alert.
package neo4j

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Driver wraps the Neo4j driver with session management.
type Driver struct {
	driver   neo4j.DriverWithContext
	database string
	logger   logging.Logger
	once     sync.Once
}

// NewDriver connects to the graph and verifies connectivity.
func NewDriver(ctx context.Context, cfg config.Neo4jConfig, log logging.Logger) (*Driver, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.ConnectionTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			}
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "creating neo4j driver")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "connecting to neo4j")
	}

	log.Info("connected to Neo4j", logging.String("uri", cfg.URI))
	return &Driver{driver: driver, database: cfg.Database, logger: log}, nil
}

// ExecuteWrite runs work inside a managed write transaction on a fresh
// session.
func (d *Driver) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.database,
	})
	defer func() { _ = session.Close(ctx) }()
	return session.ExecuteWrite(ctx, work)
}

// HealthCheck verifies the graph still answers.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.driver.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "neo4j health check failed")
	}
	return nil
}

// Close releases the driver.  Safe to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	var err error
	d.once.Do(func() {
		err = d.driver.Close(ctx)
		d.logger.Info("Neo4j connection closed")
	})
	return err
}
