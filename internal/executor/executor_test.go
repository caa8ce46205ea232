package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/types"
)

func newMockExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "mysql"), nil), mock
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"no user", config.DatabaseConfig{Password: "secret"}},
		{"no password", config.DatabaseConfig{User: "sage"}},
		{"neither", config.DatabaseConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			if err == nil {
				t.Fatal("New() error = nil, want configuration error")
			}
			var ce *types.ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("error = %v, want *types.ConfigurationError", err)
			}
		})
	}
}

func TestExecute_EmptySQL(t *testing.T) {
	exec, _ := newMockExecutor(t)

	for _, sql := range []string{"", "   ", "\n\t"} {
		_, err := exec.Execute(context.Background(), sql)
		var ce *types.ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("Execute(%q) error = %v, want *types.ConfigurationError", sql, err)
		}
	}
}

func TestExecute_MultiStatementRefused(t *testing.T) {
	exec, _ := newMockExecutor(t)

	tests := []struct {
		sql     string
		refused bool
	}{
		{"SELECT 1; DROP TABLE employees;", true},
		{"SELECT 1;; ", true},
		// The guard is lexical, so a semicolon inside a string literal is
		// also refused.
		{"SELECT * FROM departments WHERE dept_name = 'a;b'", true},
		{"SELECT 1;", false},
		{"SELECT 1", false},
	}

	for _, tt := range tests {
		_, err := exec.Execute(context.Background(), tt.sql)
		var qe *types.QueryExecutionError
		isRefusal := errors.As(err, &qe) && qe.Err != nil &&
			qe.Err.Error() == "multiple statements are not allowed"
		if isRefusal != tt.refused {
			t.Errorf("Execute(%q): refusal = %v, want %v (err=%v)", tt.sql, isRefusal, tt.refused, err)
		}
	}
}

func TestExecute_Rows(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectQuery("SELECT emp_no, first_name FROM employees LIMIT 2").
		WillReturnRows(sqlmock.NewRows([]string{"emp_no", "first_name"}).
			AddRow(int64(10001), []byte("Georgi")).
			AddRow(int64(10002), []byte("Bezalel")))

	table, err := exec.Execute(context.Background(), "SELECT emp_no, first_name FROM employees LIMIT 2")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(table.Columns) != 2 || table.Columns[0] != "emp_no" {
		t.Errorf("Columns = %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	// []byte values come back as strings
	if got, ok := table.Rows[0][1].(string); !ok || got != "Georgi" {
		t.Errorf("Rows[0][1] = %#v, want string Georgi", table.Rows[0][1])
	}
	if table.Empty() {
		t.Error("Empty() = true for a populated table")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecute_EmptyResult(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectQuery("SELECT emp_no FROM employees WHERE 1=0").
		WillReturnRows(sqlmock.NewRows([]string{"emp_no"}))

	table, err := exec.Execute(context.Background(), "SELECT emp_no FROM employees WHERE 1=0")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !table.Empty() {
		t.Error("Empty() = false for an empty result")
	}
	if len(table.Columns) != 1 {
		t.Errorf("Columns = %v, want the header even without rows", table.Columns)
	}
}

func TestExecute_DriverError(t *testing.T) {
	exec, mock := newMockExecutor(t)

	driverErr := errors.New("Unknown column 'salray' in 'field list'")
	mock.ExpectQuery("SELECT salray FROM salaries").WillReturnError(driverErr)

	_, err := exec.Execute(context.Background(), "SELECT salray FROM salaries")
	var qe *types.QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want *types.QueryExecutionError", err)
	}
	if !errors.Is(err, driverErr) {
		t.Errorf("driver error not preserved: %v", err)
	}
	if qe.SQL != "SELECT salray FROM salaries" {
		t.Errorf("SQL = %q, want original statement", qe.SQL)
	}
}

func TestExecute_TrimsWhitespace(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	if _, err := exec.Execute(context.Background(), "  SELECT 1  \n"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
