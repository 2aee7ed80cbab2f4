package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"spoon/internal/logging"
)

// SQLiteStore persists turn history in a local SQLite database, so a
// server-side deployment can survive restarts without a separate service.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		question TEXT,
		answer TEXT,
		used_units TEXT,
		plan_summary TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, turn_number)
	);
	CREATE INDEX IF NOT EXISTS idx_session_turns ON session_turns(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendTurn records a turn at the end of a session's history. The turn
// number is derived inside a transaction so concurrent sessions cannot
// interleave numbering.
func (s *SQLiteStore) AppendTurn(sessionID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usedJSON, err := json.Marshal(t.UsedUnitIDs)
	if err != nil {
		return fmt.Errorf("encode used units: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(turn_number), 0) + 1 FROM session_turns WHERE session_id = ?`,
		sessionID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next turn number: %w", err)
	}

	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	if _, err := tx.Exec(
		`INSERT INTO session_turns (session_id, turn_number, question, answer, used_units, plan_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, next, t.Question, t.Answer, string(usedJSON), t.PlanSummary, created,
	); err != nil {
		logging.Get(logging.CategoryStore).Error("sqlite: append turn session=%s: %v", sessionID, err)
		return fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logging.StoreDebug("sqlite: appended turn %d for session=%s", next, sessionID)
	return nil
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *SQLiteStore) RecentTurns(sessionID string, n int) ([]Turn, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecentTurns")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = 50
	}

	rows, err := s.db.Query(
		`SELECT question, answer, used_units, plan_summary, created_at
		 FROM session_turns
		 WHERE session_id = ?
		 ORDER BY turn_number DESC
		 LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var usedJSON string
		if err := rows.Scan(&t.Question, &t.Answer, &usedJSON, &t.PlanSummary, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if usedJSON != "" {
			if err := json.Unmarshal([]byte(usedJSON), &t.UsedUnitIDs); err != nil {
				t.UsedUnitIDs = nil
			}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Query is newest-first; history readers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
