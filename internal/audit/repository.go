// Package audit records the fan commands received over the API and MQTT.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// Command sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Result is the outcome of an audited command.
type Result string

const (
	ResultApplied  Result = "applied"
	ResultRejected Result = "rejected"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one audited fan command.
type Entry struct {
	ID        string          `json:"id"`
	FanID     string          `json:"fan_id"`
	Source    string          `json:"source"`
	Command   control.Command `json:"command"`
	Result    Result          `json:"result"`
	Error     string          `json:"error,omitempty"`
	State     *fan.Snapshot   `json:"state,omitempty"` // after the command, when applied
	CreatedAt time.Time       `json:"created_at"`
}

// NewEntry builds the entry for cmd applied to fanID. A nil err records the
// resulting state; otherwise the command is recorded as rejected.
func NewEntry(fanID, source string, cmd control.Command, snap fan.Snapshot, err error) *Entry {
	e := &Entry{
		FanID:   fanID,
		Source:  source,
		Command: cmd,
		Result:  ResultApplied,
	}
	if err != nil {
		e.Result = ResultRejected
		e.Error = err.Error()
		return e
	}
	e.State = &snap
	return e
}

// Filter controls which entries to return.
type Filter struct {
	FanID  string // optional
	Source string // optional: api or mqtt
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains the paginated audit results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores audit entries in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	command, err := json.Marshal(entry.Command)
	if err != nil {
		return fmt.Errorf("marshalling audit command: %w", err)
	}

	var state *string
	if entry.State != nil {
		b, err := json.Marshal(entry.State)
		if err != nil {
			return fmt.Errorf("marshalling audit state: %w", err)
		}
		s := string(b)
		state = &s
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, fan_id, source, command, result, error_message, fan_state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FanID, entry.Source, string(command), string(entry.Result),
		nullableString(entry.Error), state,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // dynamic query builder
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.FanID != "" {
		conditions = append(conditions, "fan_id = ?")
		args = append(args, filter.FanID)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, fan_id, source, command, result, error_message, fan_state, created_at
		 FROM audit_logs %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries created before the given time.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < ?`,
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var command, result, createdAt string
	var errMsg, state sql.NullString

	if err := rows.Scan(&entry.ID, &entry.FanID, &entry.Source, &command, &result,
		&errMsg, &state, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit log: %w", err)
	}

	if err := json.Unmarshal([]byte(command), &entry.Command); err != nil {
		return Entry{}, fmt.Errorf("decoding audit command %s: %w", entry.ID, err)
	}
	entry.Result = Result(result)
	entry.Error = errMsg.String
	if state.Valid {
		var snap fan.Snapshot
		if err := json.Unmarshal([]byte(state.String), &snap); err != nil {
			return Entry{}, fmt.Errorf("decoding audit state %s: %w", entry.ID, err)
		}
		entry.State = &snap
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	entry.CreatedAt = t

	return entry, nil
}
