package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

// PostgresRepository persists delivery results, violation counters, and rule
// catalog updates into Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.DeliveryStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveResult appends one dispatch attempt. Results are append-only; the most
// recent row per job is the authoritative outcome.
func (r *PostgresRepository) SaveResult(ctx context.Context, result domain.DeliveryResult) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("delivery_results").
		Columns("job_id", "status", "message_id", "error", "attempt", "created_at").
		Values(result.JobID, string(result.Status), result.MessageID, result.Error, result.Attempt, result.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// LastResult loads the most recent attempt recorded for a job.
func (r *PostgresRepository) LastResult(ctx context.Context, jobID string) (domain.DeliveryResult, error) {
	if r.db == nil {
		return domain.DeliveryResult{}, fmt.Errorf("store is not configured")
	}

	query, args, err := r.builder.
		Select("job_id", "status", "message_id", "error", "attempt", "created_at").
		From("delivery_results").
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("created_at DESC", "attempt DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("build select: %w", err)
	}

	var (
		result domain.DeliveryResult
		status string
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&result.JobID, &status, &result.MessageID, &result.Error, &result.Attempt, &result.Timestamp); err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("scan result: %w", err)
	}
	result.Status = domain.ResultStatus(status)
	return result, nil
}

// FlushViolations upserts ledger deltas into the audit counters.
func (r *PostgresRepository) FlushViolations(ctx context.Context, counts []domain.ViolationCount) error {
	if r.db == nil || len(counts) == 0 {
		return nil
	}

	for _, c := range counts {
		query, args, err := r.builder.
			Insert("violation_counts").
			Columns("rule_code", "severity", "total", "last_seen", "sample").
			Values(c.RuleCode, string(c.Severity), c.Delta, c.LastSeen, c.Sample).
			Suffix(`ON CONFLICT (rule_code) DO UPDATE
                SET total = violation_counts.total + EXCLUDED.total,
                    last_seen = EXCLUDED.last_seen,
                    sample = EXCLUDED.sample`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert violation %s: %w", c.RuleCode, err)
		}
	}
	return nil
}

// AppendCatalogUpdate records one append-only rule catalog change for the
// audit/notification surface.
func (r *PostgresRepository) AppendCatalogUpdate(ctx context.Context, update domain.CatalogUpdate) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("catalog_updates").
		Columns("version", "rule_code", "kind", "description", "applied", "created_at").
		Values(update.Version, update.RuleCode, update.Kind, update.Description, update.Applied, update.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert catalog update: %w", err)
	}
	return nil
}
