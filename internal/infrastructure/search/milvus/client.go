// Package milvus provides the vector-store client and the production
// similarity index backing deduplication.
package milvus

import (
	"context"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Client manages the Milvus connection.
type Client struct {
	mc     client.Client
	cfg    config.MilvusConfig
	logger logging.Logger
	once   sync.Once
}

// NewClient connects to Milvus and verifies the connection.
func NewClient(ctx context.Context, cfg config.MilvusConfig, log logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.Validation("milvus address is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mc, err := client.NewClient(connectCtx, client.Config{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "connecting to milvus")
	}

	log.Info("connected to Milvus",
		logging.String("addr", cfg.Addr),
		logging.String("db", cfg.DBName),
	)
	return &Client{mc: mc, cfg: cfg, logger: log}, nil
}

// Raw returns the underlying SDK client.
func (c *Client) Raw() client.Client {
	return c.mc
}

// HealthCheck verifies the connection by listing collections.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.mc.ListCollections(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "milvus health check failed")
	}
	return nil
}

// Close releases the connection.  Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		err = c.mc.Close()
		if err == nil {
			c.logger.Info("closed Milvus connection")
		}
	})
	return err
}
