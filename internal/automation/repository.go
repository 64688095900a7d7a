package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// Repository persists automation executions.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, automationID string, limit int) ([]Execution, error)
	PruneExecutions(ctx context.Context, before time.Time) (int64, error)
}

// List limits for ListExecutions.
const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// executionColumns is the SELECT column list for execution queries.
const executionColumns = `id, automation_id, fan_id, source, status, error_message,
			actions_total, fan_state, fired_at, duration_ms`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateExecution inserts a new execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	fanState, err := marshalFanState(exec.FanState)
	if err != nil {
		return fmt.Errorf("marshalling fan state: %w", err)
	}

	query := `
		INSERT INTO automation_executions (` + executionColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		exec.AutomationID,
		exec.FanID,
		exec.Source,
		string(exec.Status),
		nullableString(exec.Error),
		exec.ActionsTotal,
		fanState,
		exec.FiredAt.UTC().Format(timeLayout),
		exec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM automation_executions WHERE id = ?`

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return exec, nil
}

// ListExecutions retrieves the most recent executions of an automation,
// newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, automationID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT ` + executionColumns + `
		FROM automation_executions
		WHERE automation_id = ?
		ORDER BY fired_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		exec, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// PruneExecutions deletes executions fired before the cutoff and returns
// how many were removed.
func (r *SQLiteRepository) PruneExecutions(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM automation_executions WHERE fired_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning executions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(scanner rowScanner) (*Execution, error) {
	var e Execution
	var status, firedAt string
	var errorMessage, fanState sql.NullString

	err := scanner.Scan(
		&e.ID,
		&e.AutomationID,
		&e.FanID,
		&e.Source,
		&status,
		&errorMessage,
		&e.ActionsTotal,
		&fanState,
		&firedAt,
		&e.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	e.Error = errorMessage.String
	if t, parseErr := time.Parse(timeLayout, firedAt); parseErr == nil {
		e.FiredAt = t
	}

	if fanState.Valid && fanState.String != "" {
		var snap fan.Snapshot
		if jsonErr := json.Unmarshal([]byte(fanState.String), &snap); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling fan state: %w", jsonErr)
		}
		e.FanState = &snap
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func marshalFanState(snap *fan.Snapshot) (sql.NullString, error) {
	if snap == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
