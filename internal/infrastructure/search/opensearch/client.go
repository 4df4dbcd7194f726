// Package opensearch indexes theme and alert statements for full-text search
// by the review UI.
package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Client wraps the OpenSearch API client.
type Client struct {
	api    *opensearchapi.Client
	cfg    config.OpenSearchConfig
	logger logging.Logger
}

// NewClient connects to the OpenSearch cluster.
func NewClient(cfg config.OpenSearchConfig, log logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.Validation("opensearch requires at least one address")
	}

	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.User,
			Password:  cfg.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "creating opensearch client")
	}

	log.Info("connected to OpenSearch", logging.Int("addresses", len(cfg.Addresses)))
	return &Client{api: api, cfg: cfg, logger: log}, nil
}

// HealthCheck verifies the cluster responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.Info(ctx, nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "opensearch health check failed")
	}
	return nil
}
