package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/interviewer/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		used_questions TEXT NOT NULL DEFAULT '[]',
		is_finished INTEGER NOT NULL DEFAULT 0,
		bank_version TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		evaluation_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	if err := checkIndices(sess.UsedIndices); err != nil {
		return err
	}
	used, err := encodeIndices(sess.UsedIndices)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, role, used_questions, is_finished, bank_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Role, used, sess.Finished, sess.BankVersion, sess.CreatedAt, now,
	)
	return err
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, role, used_questions, is_finished, bank_version, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidSession, id)
	}
	return sess, err
}

// UpdateUsedIndices replaces the used question sequence if it still equals prev.
// next must extend prev without repeating an index.
func (s *Store) UpdateUsedIndices(ctx context.Context, id string, prev, next []int) error {
	if len(next) < len(prev) {
		return fmt.Errorf("used questions cannot shrink from %d to %d", len(prev), len(next))
	}
	for i := range prev {
		if prev[i] != next[i] {
			return fmt.Errorf("used questions must be append-only")
		}
	}
	if err := checkIndices(next); err != nil {
		return err
	}

	prevJSON, err := encodeIndices(prev)
	if err != nil {
		return err
	}
	nextJSON, err := encodeIndices(next)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET used_questions = ?, updated_at = ?
		 WHERE id = ? AND used_questions = ? AND is_finished = 0`,
		nextJSON, time.Now().UTC(), id, prevJSON,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.Finished {
		return fmt.Errorf("%w: %s", model.ErrSessionFinished, id)
	}
	return fmt.Errorf("%w: %s", model.ErrConflict, id)
}

// MarkFinished flags a session as finished. Calling it again is a no-op.
func (s *Store) MarkFinished(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_finished = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidSession, id)
	}
	return nil
}

// AppendTurn records an answered question and returns the turn ID.
func (s *Store) AppendTurn(ctx context.Context, t model.Turn) (int64, error) {
	evalJSON, err := json.Marshal(t.Evaluation)
	if err != nil {
		return 0, fmt.Errorf("encode evaluation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, t.SessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", model.ErrInvalidSession, t.SessionID)
	}
	if err != nil {
		return 0, err
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, question_index, question, answer, evaluation_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.QuestionIndex, t.Question, t.Answer, string(evalJSON), createdAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// ListTurns returns all turns of a session in submission order.
func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question_index, question, answer, evaluation_json, created_at
		 FROM turns WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var evalJSON string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.QuestionIndex, &t.Question, &t.Answer, &evalJSON, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(evalJSON), &t.Evaluation); err != nil {
			return nil, fmt.Errorf("decode evaluation of turn %d: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, used_questions, is_finished, bank_version, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var used string
	if err := row.Scan(&sess.ID, &sess.Role, &used, &sess.Finished, &sess.BankVersion, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(used), &sess.UsedIndices); err != nil {
		return nil, fmt.Errorf("decode used questions of session %s: %w", sess.ID, err)
	}
	return &sess, nil
}

func encodeIndices(indices []int) (string, error) {
	if indices == nil {
		indices = []int{}
	}
	data, err := json.Marshal(indices)
	if err != nil {
		return "", fmt.Errorf("encode used questions: %w", err)
	}
	return string(data), nil
}

func checkIndices(indices []int) error {
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 {
			return fmt.Errorf("%w: negative index %d", model.ErrIndexOutOfRange, i)
		}
		if seen[i] {
			return fmt.Errorf("duplicate question index %d", i)
		}
		seen[i] = true
	}
	return nil
}
