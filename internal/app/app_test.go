package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/common/config"
	"brokerage-insights/internal/common/database"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/orchestrator"
)

func baseConfig() *config.Config {
	return &config.Config{
		Generation: config.GenerationConfig{
			Provider:    config.ProviderOpenRouter,
			MaxAttempts: 3,
		},
		Identity: config.IdentityConfig{
			AssistantName: "Jen",
			Directory:     config.DirectoryStatic,
			RedisKey:      "insights:caller_ids",
			NameSearch:    config.NameSearchPostgres,
		},
		Pipeline: config.PipelineConfig{ExecutionTimeout: 5000},
	}
}

func mockPostgres(t *testing.T) (*database.PostgresClient, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.PostgresClient{DB: sqlx.NewDb(db, "postgres")}, mock
}

// ==========================
// Assemble
// ==========================

func TestAssemble_RequiresPostgres(t *testing.T) {
	_, err := Assemble(baseConfig(), &Connections{}, nil, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestAssemble_UnsupportedProviderIsConfigError(t *testing.T) {
	pg, _ := mockPostgres(t)
	cfg := baseConfig()
	cfg.Generation.Provider = "mystery"
	cfg.Generation.APIKey = "key"

	_, err := Assemble(cfg, &Connections{Postgres: pg}, nil, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestAssemble_MissingRegistryFile(t *testing.T) {
	pg, _ := mockPostgres(t)
	cfg := baseConfig()
	cfg.Pipeline.TemplateRegistry = "/nonexistent/template-registry.json"

	_, err := Assemble(cfg, &Connections{Postgres: pg}, nil, logger.NewTestLogger(t))
	require.Error(t, err)
}

func TestAssemble_RedisCallerIDAnswersFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("insights:caller_ids", "5550102000", "42")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	pg, mock := mockPostgres(t)
	mock.ExpectQuery("FROM TBL_USER_CREATE uc").
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "f_name", "l_name", "utype_id", "ustatus"}).
			AddRow(int64(42), "sarah", "lee", 14, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS deal_count`).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"deal_count"}).AddRow(int64(3)))

	cfg := baseConfig()
	cfg.Identity.Directory = config.DirectoryRedis

	o, err := Assemble(cfg, &Connections{Postgres: pg, Redis: &database.RedisClient{Client: rdb}}, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.False(t, o.CanSynthesize())

	answer, err := o.Answer(context.Background(), orchestrator.Request{
		Question: "How many deals have I closed?",
		CallerID: "+1 (555) 010-2000",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, answer.Source)
	assert.Equal(t, "42", answer.Identity.ID)
	assert.Equal(t, "Hi Sarah! You've closed 3 deals this year. Excellent work!", answer.Narration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssemble_StaticDirectoryFallback(t *testing.T) {
	pg, mock := mockPostgres(t)
	mock.ExpectQuery("FROM TBL_USER_CREATE uc").
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "f_name", "l_name", "utype_id", "ustatus"}).
			AddRow(int64(7), "ana", "ruiz", 1, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS deal_count`).
		WillReturnRows(sqlmock.NewRows([]string{"deal_count"}).AddRow(int64(120)))

	cfg := baseConfig()
	cfg.Identity.CallerIDs = map[string]string{"555-010-3000": "7"}

	o, err := Assemble(cfg, &Connections{Postgres: pg}, nil, logger.NewTestLogger(t))
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), orchestrator.Request{
		Question: "how many deals were closed?",
		CallerID: "5550103000",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, answer.Identity.Role)
	assert.Contains(t, answer.Narration, "120 deals")
}

// ==========================
// Connect
// ==========================

func TestConnect_PostgresUnreachable(t *testing.T) {
	cfg := baseConfig()
	cfg.Database.Postgres = config.PostgresConfig{
		Host: "127.0.0.1", Port: 1, Database: "insights", User: "reader", SSLMode: "disable",
	}

	attempts := 0
	retry := func(op func() error, name string) error {
		attempts++
		assert.Equal(t, "PostgreSQL connection", name)
		return op()
	}

	_, err := Connect(context.Background(), cfg, retry)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseConnectionFailed))
}
