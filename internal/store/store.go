// Package store handles SQLite persistence of planning runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/caffdose/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a plan id does not exist.
var ErrNotFound = errors.New("plan not found")

// Store wraps SQLite access for plan history.
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
		`CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL,
			absorption_half_life REAL NOT NULL,
			elimination_half_life REAL NOT NULL,
			target_max REAL NOT NULL,
			target_min REAL NOT NULL,
			window_start REAL NOT NULL,
			window_end REAL NOT NULL,
			sleep REAL NOT NULL,
			d_first REAL NOT NULL,
			d_next REAL NOT NULL,
			first_dose_time REAL NOT NULL,
			first_interval REAL NOT NULL,
			subsequent_interval REAL NOT NULL,
			end_level REAL NOT NULL,
			correction_skipped INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plan_doses (
			plan_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			time REAL NOT NULL,
			amount REAL NOT NULL,
			adjusted INTEGER NOT NULL,
			PRIMARY KEY (plan_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertPlan stores a planning run and its doses.
func (s *Store) InsertPlan(ctx context.Context, rec model.PlanRecord) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	cfg := rec.Config
	res, err := tx.ExecContext(ctx,
		`INSERT INTO plans (created_at, absorption_half_life, elimination_half_life, target_max, target_min,
			window_start, window_end, sleep, d_first, d_next, first_dose_time, first_interval,
			subsequent_interval, end_level, correction_skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt.Format(time.RFC3339Nano),
		cfg.AbsorptionHalfLife,
		cfg.EliminationHalfLife,
		cfg.Max,
		cfg.Min,
		cfg.Start,
		cfg.End,
		cfg.Sleep,
		rec.DFirst,
		rec.DNext,
		rec.FirstDoseTime,
		rec.FirstInterval,
		rec.SubsequentInterval,
		rec.EndLevel,
		boolToInt(rec.CorrectionSkipped),
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(rec.Doses) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO plan_doses (plan_id, seq, time, amount, adjusted) VALUES (?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, d := range rec.Doses {
			if _, err = stmt.ExecContext(ctx, id, i, d.Time, d.Amount, boolToInt(d.Adjusted)); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const planColumns = `id, created_at, absorption_half_life, elimination_half_life, target_max, target_min,
	window_start, window_end, sleep, d_first, d_next, first_dose_time, first_interval,
	subsequent_interval, end_level, correction_skipped`

// ListPlans returns the most recent plans, newest first. limit <= 0 means all.
func (s *Store) ListPlans(ctx context.Context, limit int) ([]model.PlanRecord, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
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

	var plans []model.PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetPlan loads a plan and its doses.
func (s *Store) GetPlan(ctx context.Context, id int64) (model.PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	rec, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PlanRecord{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return model.PlanRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT time, amount, adjusted FROM plan_doses WHERE plan_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return model.PlanRecord{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var d model.Dose
		var adjusted int
		if err := rows.Scan(&d.Time, &d.Amount, &adjusted); err != nil {
			return model.PlanRecord{}, err
		}
		d.Adjusted = adjusted != 0
		rec.Doses = append(rec.Doses, d)
	}
	if err := rows.Err(); err != nil {
		return model.PlanRecord{}, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(sc scanner) (model.PlanRecord, error) {
	var rec model.PlanRecord
	var createdAt string
	var skipped int
	cfg := &rec.Config
	if err := sc.Scan(&rec.ID, &createdAt, &cfg.AbsorptionHalfLife, &cfg.EliminationHalfLife,
		&cfg.Max, &cfg.Min, &cfg.Start, &cfg.End, &cfg.Sleep, &rec.DFirst, &rec.DNext,
		&rec.FirstDoseTime, &rec.FirstInterval, &rec.SubsequentInterval, &rec.EndLevel, &skipped); err != nil {
		return model.PlanRecord{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.PlanRecord{}, err
	}
	rec.CreatedAt = parsed
	rec.CorrectionSkipped = skipped != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
