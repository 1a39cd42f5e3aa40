// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"brokerage-insights/internal/callerid"
	"brokerage-insights/internal/common/config"
	"brokerage-insights/internal/common/database"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/observability"
	"brokerage-insights/internal/datastore"
	"brokerage-insights/internal/generation"
	"brokerage-insights/internal/pipeline/orchestrator"
	"brokerage-insights/internal/pipeline/querycache"
	"brokerage-insights/internal/pipeline/resolver"
	"brokerage-insights/internal/pipeline/synthesizer"
)

// RetryFunc runs op until it succeeds or the caller gives up.
type RetryFunc func(op func() error, name string) error

// Once runs op a single time.
func Once(op func() error, _ string) error { return op() }

// Connections are the backing stores a pipeline is assembled from.
// Redis and Elastic are nil unless the identity config asks for them.
type Connections struct {
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Elastic  *database.ElasticsearchClient
}

// Connect opens every store cfg needs, pinging each through retry.
func Connect(ctx context.Context, cfg *config.Config, retry RetryFunc) (*Connections, error) {
	if retry == nil {
		retry = Once
	}
	conns := &Connections{}
	lookupTimeout := config.GetDuration(cfg.Pipeline.LookupTimeout)

	err := retry(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		conns.Postgres = pg
		return nil
	}, "PostgreSQL connection")
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	if cfg.Identity.Directory == config.DirectoryRedis {
		err := retry(func() error {
			rdb, err := database.NewRedis(cfg.Database.Redis, lookupTimeout)
			if err != nil {
				return err
			}
			if err := rdb.Ping(ctx); err != nil {
				_ = rdb.Close()
				return err
			}
			conns.Redis = rdb
			return nil
		}, "Redis connection")
		if err != nil {
			conns.Close()
			return nil, apperrors.NewDatabaseConnectionFailedError(err)
		}
	}

	if cfg.Identity.NameSearch == config.NameSearchElasticsearch {
		err := retry(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, lookupTimeout)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			if err := es.CheckIndex(ctx, cfg.Identity.NameIndex); err != nil {
				return err
			}
			conns.Elastic = es
			return nil
		}, "Elasticsearch connection")
		if err != nil {
			conns.Close()
			return nil, apperrors.NewSearchQueryFailedError(cfg.Identity.NameIndex, err)
		}
	}
	return conns, nil
}

// Ping checks every open store.
func (c *Connections) Ping(ctx context.Context) error {
	if c.Postgres != nil {
		if err := c.Postgres.Ping(ctx); err != nil {
			return err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	if c.Elastic != nil {
		if err := c.Elastic.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connections) Close() {
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// Assemble wires the pipeline over conns. A missing generation credential
// leaves the pipeline serving cached questions only.
func Assemble(cfg *config.Config, conns *Connections, obs *observability.Observability, log logger.Logger) (*orchestrator.Orchestrator, error) {
	if conns == nil || conns.Postgres == nil {
		return nil, apperrors.NewConfigurationError("postgres connection is required")
	}
	store := datastore.NewPostgresStore(conns.Postgres.GetDB(), log.Named("datastore"))

	directory := callerDirectory(cfg, conns)

	var identities resolver.IdentityStore = store
	if conns.Elastic != nil {
		index := datastore.NewElasticNameIndex(conns.Elastic.Client, cfg.Identity.NameIndex, log.Named("name-index"))
		identities = datastore.NewIndexedIdentityStore(store, index)
	}
	res := resolver.New(directory, identities, cfg.Identity.AssistantName, log.Named("resolver"))

	matcher, err := querycache.LoadMatcher(cfg.Pipeline.TemplateRegistry)
	if err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("template registry: %v", err))
	}

	gen, err := generation.New(cfg.Generation, log.Named("generation"))
	if err != nil {
		if !errors.Is(err, generation.ErrMissingCredential) {
			return nil, apperrors.NewConfigurationError(err.Error())
		}
		log.Warn("generation credential missing, only cached questions will be answered", map[string]interface{}{
			"provider": cfg.Generation.Provider,
		})
	}
	synth := synthesizer.New(
		synthesizer.ConfigFrom(cfg.Generation, cfg.Identity.AssistantName),
		gen,
		log.Named("synthesizer"),
	)

	return orchestrator.New(
		orchestrator.Dependencies{
			Resolver:      res,
			Matcher:       matcher,
			Synthesizer:   synth,
			Store:         store,
			Observability: obs,
		},
		orchestrator.Config{
			ExecutionTimeout: config.GetDuration(cfg.Pipeline.ExecutionTimeout),
			LookupTimeout:    config.GetDuration(cfg.Pipeline.LookupTimeout),
			AssistantName:    cfg.Identity.AssistantName,
		},
		log.Named("orchestrator"),
	)
}

// callerDirectory checks redis first when configured, then the static table.
func callerDirectory(cfg *config.Config, conns *Connections) callerid.Directory {
	static := callerid.NewStaticDirectory(cfg.Identity.CallerIDs)
	if conns.Redis == nil {
		return static
	}
	return callerid.Chain{
		callerid.NewRedisDirectory(conns.Redis.Client, cfg.Identity.RedisKey),
		static,
	}
}
