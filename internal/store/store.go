// Package store provides SQLite-backed persistence for Genesis.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genesis-minds/genesis/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the Genesis SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		request TEXT NOT NULL,
		requester TEXT,
		context TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		progress REAL NOT NULL DEFAULT 0,
		result TEXT,
		error TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 2,
		notify INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS conversation_log (
		id TEXT PRIMARY KEY,
		requester TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		task_id TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_requester ON tasks(requester);
	CREATE INDEX IF NOT EXISTS idx_conversation_requester ON conversation_log(requester);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Operations ---

// SaveTask upserts a task record. Called on every status transition so a
// restarted daemon can recover unfinished work.
func (s *Store) SaveTask(t *models.Task) error {
	var result sql.NullString
	if t.Result != nil {
		data, err := json.Marshal(t.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	notify := 0
	if t.Notify {
		notify = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, request, requester, context, status, progress, result, error, retry_count, max_retries, notify, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			result = excluded.result,
			error = excluded.error,
			retry_count = excluded.retry_count,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		t.ID, t.Request, nullString(t.Requester), nullString(t.Context), t.Status, t.Progress,
		result, nullString(t.Error), t.RetryCount, t.MaxRetries, notify,
		t.CreatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns nil, nil when not found.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, request, requester, context, status, progress, result, error, retry_count, max_retries, notify, created_at, started_at, completed_at
		 FROM tasks WHERE id = ?`, id,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks, optionally filtered by status and requester,
// newest first.
func (s *Store) ListTasks(status models.TaskStatus, requester string, limit int) ([]models.Task, error) {
	query := `SELECT id, request, requester, context, status, progress, result, error, retry_count, max_retries, notify, created_at, started_at, completed_at FROM tasks`
	var args []interface{}
	var where []string

	if status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	if requester != "" {
		where = append(where, `requester = ?`)
		args = append(args, requester)
	}
	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// LoadUnfinishedTasks returns all tasks left in a non-terminal state. Used
// once at startup for crash recovery; recovered tasks are not re-run.
func (s *Store) LoadUnfinishedTasks() ([]models.Task, error) {
	rows, err := s.db.Query(
		`SELECT id, request, requester, context, status, progress, result, error, retry_count, max_retries, notify, created_at, started_at, completed_at
		 FROM tasks WHERE status IN (?, ?, ?) ORDER BY created_at`,
		models.TaskStatusPending, models.TaskStatusRunning, models.TaskStatusRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("query unfinished tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// PurgeCompletedBefore deletes terminal tasks older than the cutoff and
// returns the number removed. Optional retention cleanup.
func (s *Store) PurgeCompletedBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		models.TaskStatusCompleted, models.TaskStatusFailed, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return res.RowsAffected()
}

// --- Conversation Log Operations ---

// AppendConversation writes an entry to the persistent conversation log.
func (s *Store) AppendConversation(requester, role, content, taskID string) (*models.ConversationEntry, error) {
	entry := &models.ConversationEntry{
		ID:        uuid.New().String(),
		Requester: requester,
		Role:      role,
		Content:   content,
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO conversation_log (id, requester, role, content, task_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.Requester), entry.Role, entry.Content, nullString(entry.TaskID), entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation entry: %w", err)
	}
	return entry, nil
}

// ListConversation returns conversation entries for a requester, newest first.
func (s *Store) ListConversation(requester string, limit int) ([]models.ConversationEntry, error) {
	query := `SELECT id, requester, role, content, task_id, created_at FROM conversation_log`
	var args []interface{}
	if requester != "" {
		query += ` WHERE requester = ?`
		args = append(args, requester)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var entries []models.ConversationEntry
	for rows.Next() {
		var e models.ConversationEntry
		var requester, taskID sql.NullString
		if err := rows.Scan(&e.ID, &requester, &e.Role, &e.Content, &taskID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation entry: %w", err)
		}
		e.Requester = requester.String
		e.TaskID = taskID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var requester, context, result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	var notify int

	err := row.Scan(&task.ID, &task.Request, &requester, &context, &task.Status, &task.Progress,
		&result, &errMsg, &task.RetryCount, &task.MaxRetries, &notify,
		&task.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	task.Requester = requester.String
	task.Context = context.String
	task.Error = errMsg.String
	task.Notify = notify != 0
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if result.Valid {
		var r models.TaskResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		task.Result = &r
	}
	return task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
