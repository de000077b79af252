package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

// DefaultListLimit caps List when the caller passes limit <= 0.
const DefaultListLimit = 100

// pruneInterval is how often Run deletes rows past the retention window.
const pruneInterval = time.Hour

// ErrNotEvaluated is returned by Record for snapshots without an assessment.
var ErrNotEvaluated = errors.New("history: snapshot has no assessment")

const schema = `
CREATE TABLE IF NOT EXISTS assessment (
	id                   TEXT PRIMARY KEY,
	source_id            TEXT    NOT NULL,
	period_id            TEXT    NOT NULL DEFAULT '',
	score                INTEGER NOT NULL,
	label                TEXT    NOT NULL,
	trend                REAL    NOT NULL,
	retention            REAL    NOT NULL,
	recurring            REAL    NOT NULL,
	growth               REAL    NOT NULL,
	input_json           TEXT    NOT NULL,
	recommendations_json TEXT    NOT NULL,
	recorded_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessment_source_time ON assessment (source_id, recorded_at);
`

// Record is one persisted assessment.
type Record struct {
	ID              string                     `json:"id"`
	SourceID        string                     `json:"source_id"`
	PeriodID        string                     `json:"period_id,omitempty"`
	Score           int                        `json:"score"`
	Label           finhealth.Label            `json:"label"`
	SubScores       finhealth.SubScores        `json:"sub_scores"`
	Input           finhealth.Input            `json:"input"`
	Recommendations []finhealth.Recommendation `json:"recommendations"`
	RecordedAt      time.Time                  `json:"recorded_at"`
}

// Store persists assessments in SQLite.
//
// Store is safe for concurrent use.
type Store struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
	newID     func() string
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database. Rows older than
// retention are removed by Run; retention 0 keeps everything.
func Open(ctx context.Context, path string, retention time.Duration) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", path, err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}

	return &Store{
		db:        db,
		retention: retention,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists the assessment carried by snap.
func (s *Store) Record(ctx context.Context, snap *wire.Snapshot) (Record, error) {
	if !snap.Evaluated() || snap.Input == nil {
		return Record{}, ErrNotEvaluated
	}

	rec := Record{
		ID:              s.newID(),
		SourceID:        snap.SourceID,
		PeriodID:        snap.PeriodID,
		Score:           snap.Score,
		Label:           snap.Label,
		SubScores:       snap.SubScores,
		Input:           *snap.Input,
		Recommendations: snap.Recommendations,
		RecordedAt:      s.now().UTC(),
	}
	if rec.Recommendations == nil {
		rec.Recommendations = []finhealth.Recommendation{}
	}

	inputJSON, err := json.Marshal(rec.Input)
	if err != nil {
		return Record{}, fmt.Errorf("history: encode input: %w", err)
	}
	recsJSON, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return Record{}, fmt.Errorf("history: encode recommendations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessment (id, source_id, period_id, score, label,
		   trend, retention, recurring, growth, input_json, recommendations_json, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceID, rec.PeriodID, rec.Score, string(rec.Label),
		rec.SubScores.GivingTrend, rec.SubScores.DonorRetention,
		rec.SubScores.RecurringGiving, rec.SubScores.NewDonorGrowth,
		string(inputJSON), string(recsJSON), rec.RecordedAt.UnixNano())
	if err != nil {
		return Record{}, fmt.Errorf("history: insert %s: %w", rec.SourceID, err)
	}
	return rec, nil
}

// List returns up to limit records for sourceID, newest first.
func (s *Store) List(ctx context.Context, sourceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, period_id, score, label, trend, retention, recurring, growth,
		   input_json, recommendations_json, recorded_at
		 FROM assessment WHERE source_id = ?
		 ORDER BY recorded_at DESC, rowid DESC LIMIT ?`,
		sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list %s: %w", sourceID, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r                   Record
			label               string
			inputJSON, recsJSON string
			recordedAt          int64
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.PeriodID, &r.Score, &label,
			&r.SubScores.GivingTrend, &r.SubScores.DonorRetention,
			&r.SubScores.RecurringGiving, &r.SubScores.NewDonorGrowth,
			&inputJSON, &recsJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.Label = finhealth.Label(label)
		r.RecordedAt = time.Unix(0, recordedAt).UTC()
		if err := json.Unmarshal([]byte(inputJSON), &r.Input); err != nil {
			return nil, fmt.Errorf("history: decode input %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(recsJSON), &r.Recommendations); err != nil {
			return nil, fmt.Errorf("history: decode recommendations %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list %s: %w", sourceID, err)
	}
	return out, nil
}

// Prune deletes records older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assessment WHERE recorded_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Run prunes rows past the retention window once per hour until ctx is
// cancelled. It returns immediately when retention is 0.
func (s *Store) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	t := time.NewTicker(pruneInterval)
	defer t.Stop()

	for {
		s.pruneExpired(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Store) pruneExpired(ctx context.Context) {
	n, err := s.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("history: prune failed", "err", err)
		}
		return
	}
	if n > 0 {
		slog.Info("history: pruned expired assessments", "count", n)
	}
}

// Observe records evaluated snapshots, logging failures. Unevaluated
// snapshots are skipped.
func (s *Store) Observe(ctx context.Context, snap *wire.Snapshot) {
	if !snap.Evaluated() {
		return
	}
	if _, err := s.Record(ctx, snap); err != nil {
		slog.Error("history: record failed", "source_id", snap.SourceID, "err", err)
	}
}
