package receivables

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Repository handles CR table persistence.
type Repository struct {
	db  *sql.DB        // CR table
	log zerolog.Logger // Structured logger
	now func() time.Time
}

// NewRepository creates a new receivables repository.
//
// Parameters:
//   - db: Database connection holding the CR table (schema already applied)
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "receivables").Logger(),
		now: time.Now,
	}
}

// SaveMonth writes the records fetched for one period in a single transaction.
//
// Rows are upserted on (record_key, period). Rows of the period that were not
// part of this batch are removed, so after a successful call the period holds
// exactly the records the API returned for it.
//
// Records without an API id are keyed by content hash. Identical id-less
// records in one batch get "#2", "#3", ... appended in batch order so each
// is stored as its own row; records repeating an API id share one row.
//
// Returns the number of rows written.
func (r *Repository) SaveMonth(ctx context.Context, runID, period string, records []contaazul.Record) (int, error) {
	if runID == "" {
		return 0, fmt.Errorf("run id is required")
	}
	if _, err := time.Parse("2006-01", period); err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", period, err)
	}

	fetchedAt := r.now().Unix()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO CR
		(record_key, period, due_date, description, status, amount, customer, data, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_key, period) DO UPDATE SET
			due_date = excluded.due_date,
			description = excluded.description,
			status = excluded.status,
			amount = excluded.amount,
			customer = excluded.customer,
			data = excluded.data,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	keys := batchKeys(records)
	written := make(map[string]struct{}, len(records))

	for i, record := range records {
		key := keys[i]
		var amount sql.NullString
		if d, ok := record.Amount(); ok {
			amount = sql.NullString{String: d.String(), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			key,
			period,
			nullString(record.DueDate()),
			nullString(record.Description()),
			nullString(record.Status()),
			amount,
			nullString(record.Customer()),
			string(record.Raw),
			runID,
			fetchedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert receivable %s: %w", key, err)
		}
		written[key] = struct{}{}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM CR WHERE period = ? AND run_id != ?", period, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove stale receivables: %w", err)
	}
	removed, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().
		Str("period", period).
		Int("records", len(records)).
		Int("rows", len(written)).
		Int64("removed", removed).
		Msg("Month saved")

	return len(written), nil
}

// batchKeys returns the row key of each record in batch order.
func batchKeys(records []contaazul.Record) []string {
	keys := make([]string, len(records))
	seen := make(map[string]int)
	for i, record := range records {
		key := record.Key()
		if record.ID() == "" {
			seen[key]++
			if n := seen[key]; n > 1 {
				key = fmt.Sprintf("%s#%d", key, n)
			}
		}
		keys[i] = key
	}
	return keys
}

// CountByPeriod returns the number of rows stored for a period.
func (r *Repository) CountByPeriod(ctx context.Context, period string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM CR WHERE period = ?", period).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count receivables: %w", err)
	}
	return count, nil
}

// ListByPeriod returns a page of the rows of a period ordered by due date.
// A limit of 0 or less returns every row from offset on.
func (r *Repository) ListByPeriod(ctx context.Context, period string, limit, offset int) ([]Receivable, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record_key, period, due_date, description, status, amount, customer, data, run_id, fetched_at
		FROM CR
		WHERE period = ?
		ORDER BY due_date, id
		LIMIT ? OFFSET ?
	`, period, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to query receivables: %w", err)
	}
	defer rows.Close()

	var result []Receivable
	for rows.Next() {
		var rec Receivable
		var dueDate, description, status, customer, amount sql.NullString
		var data string
		var fetchedAt int64

		err := rows.Scan(&rec.ID, &rec.RecordKey, &rec.Period, &dueDate, &description, &status,
			&amount, &customer, &data, &rec.RunID, &fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receivable: %w", err)
		}

		rec.DueDate = dueDate.String
		rec.Description = description.String
		rec.Status = status.String
		rec.Customer = customer.String
		rec.Data = []byte(data)
		rec.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				r.log.Warn().Err(err).Int64("id", rec.ID).Msg("Invalid stored amount")
			} else {
				rec.Amount = decimal.NewNullDecimal(d)
			}
		}

		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receivables: %w", err)
	}

	return result, nil
}

// Summary aggregates the stored receivables of a year per period.
// Periods without rows are omitted.
func (r *Repository) Summary(ctx context.Context, year int) ([]PeriodSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT period, amount
		FROM CR
		WHERE period >= ? AND period <= ?
		ORDER BY period, id
	`, Period(year, time.January), Period(year, time.December))
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var (
		summaries []PeriodSummary
		current   *PeriodSummary
		amounts   []float64
	)

	flush := func() {
		if current == nil {
			return
		}
		finishSummary(current, amounts)
		summaries = append(summaries, *current)
	}

	for rows.Next() {
		var (
			period string
			amount sql.NullString
		)
		if err := rows.Scan(&period, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}

		if current == nil || current.Period != period {
			flush()
			current = &PeriodSummary{Period: period, Total: decimal.Zero}
			amounts = amounts[:0]
		}

		current.Count++
		if !amount.Valid {
			continue
		}
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			r.log.Warn().Err(err).Str("period", period).Msg("Skipping invalid stored amount")
			continue
		}

		if current.Priced == 0 || d.LessThan(current.Minimum) {
			current.Minimum = d
		}
		if current.Priced == 0 || d.GreaterThan(current.Maximum) {
			current.Maximum = d
		}
		current.Priced++
		current.Total = current.Total.Add(d)
		amounts = append(amounts, d.InexactFloat64())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	flush()

	return summaries, nil
}

func finishSummary(s *PeriodSummary, amounts []float64) {
	if len(amounts) == 0 {
		return
	}
	s.Mean = stat.Mean(amounts, nil)
	if len(amounts) > 1 {
		// Sample standard deviation
		s.StdDev = stat.StdDev(amounts, nil)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FormatAmount renders a decimal with two places, the way amounts are shown
// in reports.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
