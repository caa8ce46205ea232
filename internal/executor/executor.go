// Package executor runs generated SQL against the target MySQL database.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/types"
)

// Executor executes SQL statements verbatim against one fixed database and
// materializes results as row/column tables. The generated SQL is trusted as
// written; the only refusal is multi-statement input.
type Executor struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// New opens a connection pool to the configured database. Missing credentials
// fail fast with a ConfigurationError before any connection attempt.
func New(cfg config.DatabaseConfig, logger *zap.Logger) (*Executor, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, types.NewConfigurationError("database credentials are missing (set DB_USER and DB_CRED)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	return &Executor{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, logger: logger}
}

// Execute runs one SQL statement and returns the result table. Driver
// failures are surfaced unmodified inside a QueryExecutionError.
func (e *Executor) Execute(ctx context.Context, sqlQuery string) (*types.ResultTable, error) {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return nil, types.NewConfigurationError("sql query must not be empty")
	}
	// Lexical guard: any interior semicolon is refused, including one inside
	// a string literal. Generated statements against this schema do not
	// carry semicolons in literals.
	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		return nil, &types.QueryExecutionError{
			SQL: sqlQuery,
			Err: errors.New("multiple statements are not allowed"),
		}
	}

	rows, err := e.db.QueryxContext(ctx, trimmed)
	if err != nil {
		return nil, &types.QueryExecutionError{SQL: sqlQuery, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &types.QueryExecutionError{SQL: sqlQuery, Err: err}
	}

	table := &types.ResultTable{
		Columns: columns,
		Rows:    make([][]any, 0, 16),
	}

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, &types.QueryExecutionError{SQL: sqlQuery, Err: err}
		}
		for i, v := range values {
			// The mysql driver returns text results as []byte.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.QueryExecutionError{SQL: sqlQuery, Err: err}
	}

	e.logger.Info("query executed",
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)))

	return table, nil
}

// Ping verifies database connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return &types.QueryExecutionError{Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (e *Executor) Close() error {
	return e.db.Close()
}
