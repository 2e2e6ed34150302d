// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/projectlif/liplearn/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the progress record and the attempt log.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			category TEXT NOT NULL,
			target TEXT NOT NULL,
			label TEXT NOT NULL,
			accuracy REAL NOT NULL,
			frame_count INTEGER NOT NULL,
			ranked TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_recorded_at ON attempts(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_mode ON attempts(mode);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetValue reads a key. The bool is false when the key is absent.
func (s *Store) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE name = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// PutValue writes or replaces a key.
func (s *Store) PutValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

type rankedWord struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

// InsertAttempt appends a completed attempt to the log.
func (s *Store) InsertAttempt(ctx context.Context, a model.Attempt) error {
	ranked := ""
	if words, ok := a.Result.(model.WordPredictions); ok {
		rows := make([]rankedWord, 0, len(words.Ranked))
		for _, c := range words.Ranked {
			rows = append(rows, rankedWord{Word: c.Word, Confidence: c.Confidence})
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to encode ranked words: %w", err)
		}
		ranked = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, recorded_at, mode, category, target, label, accuracy, frame_count, ranked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.RecordedAt.UTC().Format(time.RFC3339Nano),
		string(a.Mode),
		a.Category,
		a.Target,
		a.Label,
		a.Accuracy,
		a.FrameCount,
		ranked,
	)
	return err
}

// ListAttempts returns attempts filtered by stats config, oldest first.
func (s *Store) ListAttempts(ctx context.Context, cfg model.StatsConfig) ([]model.Attempt, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, string(cfg.Mode))
	}
	if cfg.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, cfg.Category)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, recorded_at, mode, category, target, label, accuracy, frame_count, ranked
		FROM attempts
		WHERE %s
		ORDER BY recorded_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.Attempt
	for rows.Next() {
		var (
			a          model.Attempt
			recordedAt string
			mode       string
			ranked     string
		)
		if err := rows.Scan(&a.ID, &recordedAt, &mode, &a.Category, &a.Target, &a.Label, &a.Accuracy, &a.FrameCount, &ranked); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, err
		}
		a.RecordedAt = parsed
		a.Mode = model.Mode(mode)
		result, err := decodeResult(a, ranked)
		if err != nil {
			return nil, err
		}
		a.Result = result
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(attempts) > cfg.Last {
		attempts = attempts[len(attempts)-cfg.Last:]
	}
	return attempts, nil
}

func decodeResult(a model.Attempt, ranked string) (model.PredictionResult, error) {
	if a.Mode != model.ModeWord {
		return model.SyllablePrediction{Label: a.Label, Accuracy: a.Accuracy}, nil
	}
	var rows []rankedWord
	if ranked != "" {
		if err := json.Unmarshal([]byte(ranked), &rows); err != nil {
			return nil, fmt.Errorf("failed to decode ranked words for %s: %w", a.ID, err)
		}
	}
	words := model.WordPredictions{Ranked: make([]model.WordCandidate, 0, len(rows))}
	for _, r := range rows {
		words.Ranked = append(words.Ranked, model.WordCandidate{Word: r.Word, Confidence: r.Confidence})
	}
	return words, nil
}

// GetWeakLabels aggregates the most recent attempts of a mode by practice key
// (the target when one was set, else the predicted label).
func (s *Store) GetWeakLabels(ctx context.Context, window int, mode model.Mode) ([]model.LabelAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent AS (
		SELECT target, label, accuracy FROM attempts
		WHERE (? = '' OR mode = ?)
		ORDER BY recorded_at DESC
		LIMIT ?
	)
	SELECT COALESCE(NULLIF(target, ''), label) AS practice_key,
		COUNT(*) AS attempts,
		SUM(accuracy) AS accuracy_sum,
		SUM(CASE WHEN target <> '' AND lower(target) = lower(label) THEN 1 ELSE 0 END) AS hits,
		SUM(CASE WHEN target <> '' THEN 1 ELSE 0 END) AS targeted
	FROM recent
	GROUP BY practice_key`

	rows, err := s.db.QueryContext(ctx, query, string(mode), string(mode), window)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.LabelAggregate
	for rows.Next() {
		var agg model.LabelAggregate
		if err := rows.Scan(&agg.Label, &agg.Attempts, &agg.AccuracySum, &agg.Hits, &agg.Targeted); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
