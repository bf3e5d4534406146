package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Outcome is what reconciling one observation did to the store.
type Outcome int

const (
	// Inserted means the key was seen for the first time.
	Inserted Outcome = iota + 1
	// Changed means the stored price differed and was replaced.
	Changed
	// Unchanged means only checked-at was touched.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Reconcile decides the outcome for an observed price given the stored one.
// stored is nil when no record exists for the key.
func Reconcile(stored *models.Price, observed models.Price) Outcome {
	switch {
	case stored == nil:
		return Inserted
	case models.SamePrice(*stored, observed):
		return Unchanged
	default:
		return Changed
	}
}

// Summary counts the outcomes of one Apply.
type Summary struct {
	Observations int
	Inserted     int
	Changed      int
	Unchanged    int
}

// Changes returns the number of history entries appended.
func (s Summary) Changes() int {
	return s.Inserted + s.Changed
}

func (s *Summary) add(o Outcome) {
	s.Observations++
	switch o {
	case Inserted:
		s.Inserted++
	case Changed:
		s.Changed++
	case Unchanged:
		s.Unchanged++
	}
}

const (
	selectPriceQuery   = `SELECT price FROM price WHERE jurisdiction = ? AND station = ? AND fuel = ?`
	insertPriceQuery   = `INSERT INTO price (jurisdiction, station, fuel, price, checked_at, changed_at) VALUES (?, ?, ?, ?, ?, ?)`
	touchPriceQuery    = `UPDATE price SET checked_at = ? WHERE jurisdiction = ? AND station = ? AND fuel = ?`
	changePriceQuery   = `UPDATE price SET price = ?, checked_at = ?, changed_at = ? WHERE jurisdiction = ? AND station = ? AND fuel = ?`
	insertHistoryQuery = `INSERT INTO price_history (jurisdiction, station, fuel, changed_at, price) VALUES (?, ?, ?, ?, ?)`
)

// statements are the prepared statements of one Apply transaction.
type statements struct {
	selectPrice   *sql.Stmt
	insertPrice   *sql.Stmt
	touchPrice    *sql.Stmt
	changePrice   *sql.Stmt
	insertHistory *sql.Stmt
}

func (e *Engine) prepare(ctx context.Context, tx *sql.Tx) (*statements, error) {
	var s statements
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.selectPrice, selectPriceQuery},
		{&s.insertPrice, insertPriceQuery},
		{&s.touchPrice, touchPriceQuery},
		{&s.changePrice, changePriceQuery},
		{&s.insertHistory, insertHistoryQuery},
	} {
		stmt, err := tx.PrepareContext(ctx, e.dialect.rebind(p.query))
		if err != nil {
			return nil, fmt.Errorf("preparing %q: %w", p.query, err)
		}
		*p.dst = stmt
	}
	return &s, nil
}

// Apply reconciles observations against the store in a single transaction.
// On error nothing is committed and a *StorageError is returned.
func (e *Engine) Apply(ctx context.Context, observations []models.PriceObservation) (Summary, error) {
	start := time.Now()
	summary, err := e.apply(ctx, observations)
	if e.recorder != nil {
		e.recorder.RecordApply(summary, time.Since(start), err)
	}
	if err != nil {
		e.logger.Error().
			Err(err).
			Int("observations", len(observations)).
			Msg("transaction rolled back")
		return Summary{}, err
	}

	e.logger.Info().
		Int("observations", summary.Observations).
		Int("inserted", summary.Inserted).
		Int("changed", summary.Changed).
		Int("unchanged", summary.Unchanged).
		Dur("duration", time.Since(start)).
		Msg("applied prices")
	return summary, nil
}

func (e *Engine) apply(ctx context.Context, observations []models.PriceObservation) (Summary, error) {
	now := e.now().Unix()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, &StorageError{Op: "begin", Err: err}
	}
	// Rollback after Commit is a no-op.
	defer func() {
		_ = tx.Rollback()
	}()

	stmts, err := e.prepare(ctx, tx)
	if err != nil {
		return Summary{}, &StorageError{Op: "prepare", Err: err}
	}

	var summary Summary
	for _, obs := range observations {
		outcome, err := e.reconcile(ctx, stmts, obs, now)
		if err != nil {
			return Summary{}, &StorageError{
				Op:  "apply",
				Err: fmt.Errorf("%s/%d/%s: %w", obs.Jurisdiction, obs.Station, obs.Fuel, err),
			}
		}
		summary.add(outcome)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, &StorageError{Op: "commit", Err: err}
	}
	return summary, nil
}

func (e *Engine) reconcile(ctx context.Context, stmts *statements, obs models.PriceObservation, now int64) (Outcome, error) {
	// compare at the precision the price columns hold
	obs.Price = models.RoundPrice(obs.Price)

	var (
		stored   models.Price
		existing *models.Price
	)
	err := stmts.selectPrice.QueryRowContext(ctx, obs.Jurisdiction, obs.Station, obs.Fuel).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("looking up price: %w", err)
	default:
		existing = &stored
	}

	outcome := Reconcile(existing, obs.Price)
	switch outcome {
	case Inserted:
		if _, err := stmts.insertPrice.ExecContext(ctx, obs.Jurisdiction, obs.Station, obs.Fuel, obs.Price, now, now); err != nil {
			return 0, fmt.Errorf("inserting price: %w", err)
		}
	case Changed:
		if _, err := stmts.changePrice.ExecContext(ctx, obs.Price, now, now, obs.Jurisdiction, obs.Station, obs.Fuel); err != nil {
			return 0, fmt.Errorf("updating price: %w", err)
		}
	case Unchanged:
		if _, err := stmts.touchPrice.ExecContext(ctx, now, obs.Jurisdiction, obs.Station, obs.Fuel); err != nil {
			return 0, fmt.Errorf("touching price: %w", err)
		}
		return outcome, nil
	}

	if _, err := stmts.insertHistory.ExecContext(ctx, obs.Jurisdiction, obs.Station, obs.Fuel, now, obs.Price); err != nil {
		return 0, fmt.Errorf("appending history: %w", err)
	}

	e.logger.Debug().
		Stringer("jurisdiction", obs.Jurisdiction).
		Uint32("station", uint32(obs.Station)).
		Stringer("fuel", obs.Fuel).
		Str("price", models.FormatPrice(obs.Price)).
		Stringer("outcome", outcome).
		Msg("recorded price change")
	return outcome, nil
}
