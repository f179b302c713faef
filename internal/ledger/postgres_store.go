package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/pricebattle/internal/contracts"
)

// DBTX subset of pgxpool.Pool used by the store
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore ledger document in battle.forecast_records
// Row order (id) preserves ledger insertion order.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a PostgreSQL-backed store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const createTableSQL = `
	CREATE SCHEMA IF NOT EXISTS battle;
	CREATE TABLE IF NOT EXISTS battle.forecast_records (
		id                BIGSERIAL PRIMARY KEY,
		issue_date        DATE NOT NULL,
		target_date       DATE NOT NULL,
		asset_id          TEXT NOT NULL,
		agent_id          TEXT NOT NULL,
		reference_price   DOUBLE PRECISION NOT NULL,
		predicted_price   DOUBLE PRECISION NOT NULL,
		actual_price      DOUBLE PRECISION,
		status            TEXT NOT NULL,
		direction_correct BOOLEAN,
		error_rate        DOUBLE PRECISION,
		CHECK (target_date > issue_date)
	)`

// Migrate creates the schema if needed
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migrate forecast_records: %w", err)
	}
	return nil
}

// Load reads all records in insertion order
func (s *PostgresStore) Load(ctx context.Context) ([]contracts.ForecastRecord, error) {
	query := `
		SELECT issue_date, target_date, asset_id, agent_id, reference_price, predicted_price,
			   actual_price, status, direction_correct, error_rate
		FROM battle.forecast_records
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query forecast_records: %w", err)
	}
	defer rows.Close()

	var records []contracts.ForecastRecord
	for rows.Next() {
		var r contracts.ForecastRecord
		var issue, target time.Time
		var status string

		if err := rows.Scan(
			&issue, &target, &r.AssetID, &r.AgentID, &r.ReferencePrice, &r.PredictedPrice,
			&r.ActualPrice, &status, &r.DirectionCorrect, &r.ErrorRate,
		); err != nil {
			return nil, fmt.Errorf("scan forecast_record: %w", err)
		}

		r.IssueDate = contracts.DateOf(issue)
		r.TargetDate = contracts.DateOf(target)
		r.Status = contracts.ForecastStatus(status)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast_records: %w", err)
	}
	return records, nil
}

// Save replaces the stored document inside one transaction
func (s *PostgresStore) Save(ctx context.Context, records []contracts.ForecastRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM battle.forecast_records`); err != nil {
		return fmt.Errorf("clear forecast_records: %w", err)
	}

	query := `
		INSERT INTO battle.forecast_records
			(issue_date, target_date, asset_id, agent_id, reference_price, predicted_price,
			 actual_price, status, direction_correct, error_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, r := range records {
		if _, err := tx.Exec(ctx, query,
			r.IssueDate.Time, r.TargetDate.Time, r.AssetID, r.AgentID,
			r.ReferencePrice, r.PredictedPrice,
			r.ActualPrice, string(r.Status), r.DirectionCorrect, r.ErrorRate,
		); err != nil {
			return fmt.Errorf("insert forecast_record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
