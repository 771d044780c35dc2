// Package store archives pipeline runs in SQLite so reports from many
// sessions can be queried together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// ErrRunNotFound is returned when a run id has no rows.
var ErrRunNotFound = errors.New("store: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	participant_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS participants (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL,
	source_file    TEXT NOT NULL DEFAULT '',
	source_sha256  TEXT NOT NULL DEFAULT '',
	report_json    TEXT NOT NULL,
	PRIMARY KEY (run_id, participant_id)
);
CREATE TABLE IF NOT EXISTS stage_indices (
	run_id                TEXT NOT NULL,
	participant_id        TEXT NOT NULL,
	stage                 TEXT NOT NULL,
	stress                REAL NOT NULL,
	engage                REAL NOT NULL,
	relax                 REAL NOT NULL,
	excite                REAL NOT NULL,
	interest              REAL NOT NULL,
	focus                 REAL NOT NULL,
	cognitive_load        REAL NOT NULL,
	affective_positivity  REAL NOT NULL,
	directed_focus        REAL NOT NULL,
	relax_arousal_balance REAL NOT NULL,
	overall_engagement    REAL NOT NULL,
	PRIMARY KEY (run_id, participant_id, stage),
	FOREIGN KEY (run_id, participant_id) REFERENCES participants(run_id, participant_id) ON DELETE CASCADE
);
`

// Run is one archived pipeline execution.
type Run struct {
	ID           string
	StartedAt    time.Time
	Participants []ParticipantRecord
}

// ParticipantRecord ties a participant report to the log it came from.
type ParticipantRecord struct {
	ID           string
	SourceFile   string
	SourceSHA256 string
	Participant  sessionlog.Participant
}

// Store wraps the archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes a run, its participants and their per-stage indices in one
// transaction. Saving the same run id twice replaces the earlier rows.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("store: run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("store: clear run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, participant_count) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), len(run.Participants),
	); err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	insertParticipant, err := tx.PrepareContext(ctx,
		`INSERT INTO participants (run_id, participant_id, source_file, source_sha256, report_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare participant: %w", err)
	}
	defer insertParticipant.Close()

	insertStage, err := tx.PrepareContext(ctx, `INSERT INTO stage_indices (
		run_id, participant_id, stage,
		stress, engage, relax, excite, interest, focus,
		cognitive_load, affective_positivity, directed_focus, relax_arousal_balance, overall_engagement
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare stage: %w", err)
	}
	defer insertStage.Close()

	for _, rec := range run.Participants {
		doc, err := sessionlog.Report{rec.ID: rec.Participant}.Marshal()
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", rec.ID, err)
		}
		if _, err := insertParticipant.ExecContext(ctx, run.ID, rec.ID, rec.SourceFile, rec.SourceSHA256, string(doc)); err != nil {
			return fmt.Errorf("store: insert participant %s: %w", rec.ID, err)
		}
		for _, si := range eegreport.ParticipantIndices(rec.Participant) {
			m, ix := si.Metrics, si.Indices
			if _, err := insertStage.ExecContext(ctx, run.ID, rec.ID, si.Stage,
				m.Stress, m.Engage, m.Relax, m.Excite, m.Interest, m.Focus,
				ix.CognitiveLoad, ix.AffectivePositivity, ix.DirectedFocus, ix.RelaxArousalBalance, ix.OverallEngagement,
			); err != nil {
				return fmt.Errorf("store: insert stage %s/%s: %w", rec.ID, si.Stage, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Participants returns the archived participants of a run ordered by id.
func (s *Store) Participants(ctx context.Context, runID string) ([]ParticipantRecord, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&count); err != nil {
		return nil, fmt.Errorf("store: lookup run: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT participant_id, source_file, source_sha256, report_json
		FROM participants WHERE run_id = ? ORDER BY participant_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query participants: %w", err)
	}
	defer rows.Close()

	var out []ParticipantRecord
	for rows.Next() {
		var rec ParticipantRecord
		var doc string
		if err := rows.Scan(&rec.ID, &rec.SourceFile, &rec.SourceSHA256, &doc); err != nil {
			return nil, fmt.Errorf("store: scan participant: %w", err)
		}
		report, err := sessionlog.DecodeReport([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", rec.ID, err)
		}
		rec.Participant = report[rec.ID]
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StageIndices returns the archived indices of one participant in stage order.
func (s *Store) StageIndices(ctx context.Context, runID, participantID string) ([]eegreport.StageIndices, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage,
		stress, engage, relax, excite, interest, focus,
		cognitive_load, affective_positivity, directed_focus, relax_arousal_balance, overall_engagement
		FROM stage_indices WHERE run_id = ? AND participant_id = ? ORDER BY rowid`, runID, participantID)
	if err != nil {
		return nil, fmt.Errorf("store: query stages: %w", err)
	}
	defer rows.Close()

	var out []eegreport.StageIndices
	for rows.Next() {
		var si eegreport.StageIndices
		m, ix := &si.Metrics, &si.Indices
		if err := rows.Scan(&si.Stage,
			&m.Stress, &m.Engage, &m.Relax, &m.Excite, &m.Interest, &m.Focus,
			&ix.CognitiveLoad, &ix.AffectivePositivity, &ix.DirectedFocus, &ix.RelaxArousalBalance, &ix.OverallEngagement,
		); err != nil {
			return nil, fmt.Errorf("store: scan stage: %w", err)
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// RunIDs lists archived runs, newest first.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
