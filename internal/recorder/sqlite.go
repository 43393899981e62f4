package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"StagePlanner/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists plans and zone history to a SQLite database.
// Decimal columns are stored as TEXT so no precision is lost.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id         TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			strategy   TEXT NOT NULL,
			params     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_symbol ON plans(symbol, created_at)`,

		`CREATE TABLE IF NOT EXISTS plan_steps (
			plan_id         TEXT NOT NULL,
			step            INTEGER NOT NULL,
			drop_percent    TEXT,
			raw_price       TEXT,
			tick_size       TEXT,
			price           TEXT,
			quantity        INTEGER,
			step_cost       TEXT,
			cumulative_qty  INTEGER,
			cumulative_cost TEXT,
			average_cost    TEXT,
			PRIMARY KEY (plan_id, step)
		)`,

		`CREATE TABLE IF NOT EXISTS zone_checks (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			zone            TEXT,
			strategy        TEXT,
			reference_type  TEXT,
			reference_price TEXT,
			current_price   TEXT,
			change_percent  TEXT,
			plan_id         TEXT,
			executable      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zone_symbol ON zone_checks(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) SavePlan(ctx context.Context, plan *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	params, err := json.Marshal(plan.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM plan_steps WHERE plan_id IN (SELECT id FROM plans WHERE symbol = ?)`, plan.Symbol); err != nil {
		return fmt.Errorf("delete old steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE symbol = ?`, plan.Symbol); err != nil {
		return fmt.Errorf("delete old plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (id, symbol, strategy, params, created_at) VALUES (?,?,?,?,?)`,
		plan.ID, plan.Symbol, string(plan.Strategy), string(params), plan.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO plan_steps
		(plan_id, step, drop_percent, raw_price, tick_size, price, quantity,
		 step_cost, cumulative_qty, cumulative_cost, average_cost)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range plan.Steps {
		if _, err := stmt.ExecContext(ctx,
			plan.ID, s.Step, s.DropPercent.String(), s.RawPrice.String(), s.TickSize.String(),
			s.Price.String(), s.Quantity, s.StepCost.String(), s.CumulativeQuantity,
			s.CumulativeCost.String(), s.AverageCost.String(),
		); err != nil {
			return fmt.Errorf("insert step %d: %w", s.Step, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LatestPlan(ctx context.Context, symbol string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		plan      model.Plan
		strategy  string
		params    string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, symbol, strategy, params, created_at FROM plans
		 WHERE symbol = ? ORDER BY created_at DESC LIMIT 1`, symbol,
	).Scan(&plan.ID, &plan.Symbol, &strategy, &params, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query plan: %w", err)
	}
	plan.Strategy = model.Strategy(strategy)
	plan.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &plan.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT step, drop_percent, raw_price, tick_size, price,
		quantity, step_cost, cumulative_qty, cumulative_cost, average_cost
		FROM plan_steps WHERE plan_id = ? ORDER BY step`, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                                             model.PlanStep
			drop, raw, tick, price, cost, cumCost, avgCost string
		)
		if err := rows.Scan(&s.Step, &drop, &raw, &tick, &price, &s.Quantity,
			&cost, &s.CumulativeQuantity, &cumCost, &avgCost); err != nil {
			return nil, err
		}
		fields := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&s.DropPercent, drop}, {&s.RawPrice, raw}, {&s.TickSize, tick}, {&s.Price, price},
			{&s.StepCost, cost}, {&s.CumulativeCost, cumCost}, {&s.AverageCost, avgCost},
		}
		for _, f := range fields {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("step %d: %w", s.Step, err)
			}
		}
		plan.Steps = append(plan.Steps, s)
	}
	return &plan, rows.Err()
}

func (r *SQLiteRecorder) RecordZoneCheck(ctx context.Context, zc *ZoneCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO zone_checks
		(timestamp, symbol, zone, strategy, reference_type, reference_price,
		 current_price, change_percent, plan_id, executable)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		zc.CheckedAt.UnixNano(), zc.Symbol, zc.Zone.String(), string(zc.Strategy),
		string(zc.ReferenceType), zc.ReferencePrice.String(), zc.CurrentPrice.String(),
		zc.ChangePercent.String(), zc.PlanID, zc.Executable,
	)
	return err
}

func (r *SQLiteRecorder) LastZone(ctx context.Context, symbol string) (*ZoneCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		zc                          ZoneCheck
		ts                          int64
		zone, strategy, refType     string
		refPrice, current, changePc string
	)
	err := r.db.QueryRowContext(ctx, `SELECT timestamp, symbol, zone, strategy, reference_type,
		reference_price, current_price, change_percent, plan_id, executable
		FROM zone_checks WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, symbol,
	).Scan(&ts, &zc.Symbol, &zone, &strategy, &refType, &refPrice, &current, &changePc,
		&zc.PlanID, &zc.Executable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query zone: %w", err)
	}

	zc.CheckedAt = time.Unix(0, ts).UTC()
	zc.Zone = model.ParseZone(zone)
	zc.Strategy = model.Strategy(strategy)
	zc.ReferenceType = model.ReferenceType(refType)
	if err := zc.setPrices(refPrice, current, changePc); err != nil {
		return nil, fmt.Errorf("zone check %s: %w", symbol, err)
	}
	return &zc, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
