// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"brokerage-insights/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient serves spoken-name searches against the agent name index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// NewElasticsearch bounds every round trip by lookupTimeout so a slow cluster
// cannot hold the identity stage.
func NewElasticsearch(cfg config.ElasticsearchConfig, lookupTimeout time.Duration) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}
	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if lookupTimeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = lookupTimeout
		esCfg.Transport = transport
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// CheckIndex fails when the name index is missing, which would otherwise
// surface as a lookup error on every spoken introduction.
func (c *ElasticsearchClient) CheckIndex(ctx context.Context, index string) error {
	res, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index check failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("elasticsearch index %q does not exist", index)
	case res.IsError():
		return fmt.Errorf("elasticsearch index check error: %s", res.Status())
	}
	return nil
}
