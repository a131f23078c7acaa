// Package sqlite provides a SQLite-backed submission store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// ErrDuplicateID is returned when a collection already holds a submission with the same id.
var ErrDuplicateID = errors.New("submission id already exists")

// Store persists submissions in SQLite.
//
// Every payload key is also written to submission_values in its rendered
// form, which is what QueryByKey compares against.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite submission store and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSubmission inserts the submission and its lookup values in one transaction.
func (s *Store) CreateSubmission(ctx context.Context, collection string, sub *domain.Submission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("collection is required")
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	data, err := json.Marshal(sub.Data)
	if err != nil {
		return "", fmt.Errorf("marshal submission data: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO submissions (
		   collection, id, form_id, scope_kind, scope_id, status, submitted_at, data
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		collection,
		id,
		sub.FormID,
		string(sub.Scope.Kind),
		sub.Scope.ID,
		string(sub.Status),
		toMillis(submittedAt),
		string(data),
	)
	if err != nil {
		if isConstraintError(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		return "", fmt.Errorf("insert submission: %w", err)
	}

	for key, value := range sub.Data {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO submission_values (collection, id, key, value) VALUES (?, ?, ?, ?)`,
			collection, id, key, domain.AsString(value),
		)
		if err != nil {
			return "", fmt.Errorf("insert submission value %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit submission: %w", err)
	}
	return id, nil
}

// QueryByKey returns submissions whose rendered value for key equals value, oldest first.
func (s *Store) QueryByKey(ctx context.Context, collection, key, value string) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT s.id, s.form_id, s.scope_kind, s.scope_id, s.status, s.submitted_at, s.data
		   FROM submissions s
		   JOIN submission_values v ON v.collection = s.collection AND v.id = s.id
		  WHERE s.collection = ? AND v.key = ? AND v.value = ?
		  ORDER BY s.submitted_at, s.id`,
		collection, key, value,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// List returns every submission in collection, oldest first.
func (s *Store) List(ctx context.Context, collection string) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, form_id, scope_kind, scope_id, status, submitted_at, data
		   FROM submissions
		  WHERE collection = ?
		  ORDER BY submitted_at, id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]domain.Submission, error) {
	var out []domain.Submission
	for rows.Next() {
		var (
			sub         domain.Submission
			kind        string
			status      string
			submittedAt int64
			data        string
		)
		if err := rows.Scan(&sub.ID, &sub.FormID, &kind, &sub.Scope.ID, &status, &submittedAt, &data); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Scope.Kind = domain.ScopeKind(kind)
		sub.Status = domain.SubmissionStatus(status)
		sub.SubmittedAt = fromMillis(submittedAt)
		if err := json.Unmarshal([]byte(data), &sub.Data); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", sub.ID, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
