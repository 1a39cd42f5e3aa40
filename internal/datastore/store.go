// Package datastore executes pipeline queries and identity lookups against Postgres,
// with an optional Elasticsearch index for name search.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/models"
)

var (
	ErrQueryFailed  = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout = errors.New("QUERY_TIMEOUT")
	ErrLookupFailed = errors.New("IDENTITY_LOOKUP_FAILED")
)

// PostgresStore runs parameter-bound queries and returns column-ordered rows.
type PostgresStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewPostgresStore(db *sqlx.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.Named("datastore"),
	}
}

// Execute runs query with positional params. Values are normalized so results
// serialize the same way regardless of driver type: timestamps become RFC3339
// strings and numerics become float64.
func (s *PostgresStore) Execute(ctx context.Context, query string, params []interface{}) (models.ResultSet, error) {
	start := time.Now()

	rows, err := s.db.QueryxContext(ctx, query, params...)
	if err != nil {
		return models.ResultSet{}, s.classify(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return models.ResultSet{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	result := models.ResultSet{Columns: columns, Rows: []models.ResultRow{}}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return models.ResultSet{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		row := make(models.ResultRow, len(columns))
		for i, col := range columns {
			row[i] = models.Field{Name: col, Value: normalize(values[i])}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return models.ResultSet{}, s.classify(ctx, err)
	}

	s.logger.Debug("Query executed", map[string]interface{}{
		"rows":       result.Len(),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (s *PostgresStore) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrQueryFailed, err)
}

// Ping verifies connectivity for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []byte:
		str := string(val)
		if d, err := decimal.NewFromString(str); err == nil {
			return d.InexactFloat64()
		}
		return str
	case decimal.Decimal:
		return val.InexactFloat64()
	case float32:
		return float64(val)
	case int32:
		return int64(val)
	case int:
		return int64(val)
	default:
		return val
	}
}
