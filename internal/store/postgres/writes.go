package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mesoscale/lineage/internal/metrics"
	"github.com/mesoscale/lineage/pkg/types"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

func asUniqueViolation(err error, table string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &types.UniqueViolationError{
			Table:      table,
			Constraint: pgErr.ConstraintName,
			Message:    fmt.Sprintf("%s: %s", table, pgErr.Detail),
		}
	}
	return err
}

// CreateCollection inserts a collection row, or refreshes updated_at if the
// (name, version) business key already exists, and returns the surrogate
// key.
func (s *Store) CreateCollection(ctx context.Context, rec types.CollectionRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO collections (name, version)
		VALUES ($1, $2)
		ON CONFLICT (name, version) DO UPDATE SET updated_at = NOW()
		RETURNING cumulus_id
	`, rec.Name, rec.Version).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create collection %s/%s: %w", rec.Name, rec.Version, err)
	}
	return id, nil
}

// CreateExecution inserts a new execution row and returns its surrogate key.
// Execution ARNs are immutable: a second insert for the same ARN fails with
// a UniqueViolationError rather than updating the row.
func (s *Store) CreateExecution(ctx context.Context, rec types.ExecutionRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO executions (arn, workflow_name, status, url, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING cumulus_id
	`, rec.ARN, rec.WorkflowName, string(rec.Status), rec.URL, rec.Timestamp).Scan(&id)
	if err != nil {
		return 0, asUniqueViolation(err, "executions")
	}
	metrics.ExecutionsCreated.Add(1)
	return id, nil
}

// UpsertGranuleWithExecutionJoin creates or updates a granule keyed on
// (granule_id, collection_cumulus_id) and links it to the given execution,
// all inside one transaction. Only mutable fields are touched on update.
// Join rows are append-only; re-linking an existing pair is a no-op rather
// than an error. Either both writes commit or neither is visible.
func (s *Store) UpsertGranuleWithExecutionJoin(ctx context.Context, rec types.GranuleRecord, executionCumulusID int64) (int64, error) {
	var id int64
	err := s.WithRejectableTransaction(ctx, func(tx pgx.Tx) error {
		gid, err := upsertGranule(ctx, tx, rec)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO granules_executions (granule_cumulus_id, execution_cumulus_id)
			VALUES ($1, $2)
			ON CONFLICT (granule_cumulus_id, execution_cumulus_id) DO NOTHING
		`, gid, executionCumulusID); err != nil {
			return fmt.Errorf("link granule %d to execution %d: %w", gid, executionCumulusID, err)
		}
		id = gid
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.GranulesUpserted.Add(1)
	return id, nil
}

func upsertGranule(ctx context.Context, db Querier, rec types.GranuleRecord) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO granules (granule_id, collection_cumulus_id, status, timestamp, published, cmr_link, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (granule_id, collection_cumulus_id) DO UPDATE SET
			status     = EXCLUDED.status,
			timestamp  = EXCLUDED.timestamp,
			published  = EXCLUDED.published,
			cmr_link   = EXCLUDED.cmr_link,
			error      = EXCLUDED.error,
			updated_at = NOW()
		RETURNING cumulus_id
	`, rec.GranuleID, rec.CollectionCumulusID, string(rec.Status), rec.Timestamp,
		rec.Published, rec.CMRLink, rec.Error).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert granule %s: %w", rec.GranuleID, err)
	}
	return id, nil
}

// CreateFile inserts a file row for a granule. The (bucket, key) pair is
// unique system-wide; a collision fails with a UniqueViolationError.
func (s *Store) CreateFile(ctx context.Context, rec types.FileRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO files (granule_cumulus_id, bucket, key, file_name, file_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING cumulus_id
	`, rec.GranuleCumulusID, rec.Bucket, rec.Key, rec.FileName, rec.Size).Scan(&id)
	if err != nil {
		return 0, asUniqueViolation(err, "files")
	}
	return id, nil
}

// ReplaceGranuleFiles deletes a granule's file rows and inserts the given
// set, inside one transaction. Readers never observe a mix of the old and
// new file sets.
func (s *Store) ReplaceGranuleFiles(ctx context.Context, granuleCumulusID int64, files []types.FileLocation) error {
	return s.WithRejectableTransaction(ctx, func(tx pgx.Tx) error {
		return replaceGranuleFiles(ctx, tx, granuleCumulusID, files)
	})
}

func replaceGranuleFiles(ctx context.Context, tx pgx.Tx, granuleCumulusID int64, files []types.FileLocation) error {
	if _, err := tx.Exec(ctx, `DELETE FROM files WHERE granule_cumulus_id = $1`, granuleCumulusID); err != nil {
		return fmt.Errorf("delete files for granule %d: %w", granuleCumulusID, err)
	}
	for _, f := range files {
		if _, err := tx.Exec(ctx, `
			INSERT INTO files (granule_cumulus_id, bucket, key, file_name, file_size)
			VALUES ($1, $2, $3, $4, $5)
		`, granuleCumulusID, f.Bucket, f.Key, f.FileName, f.Size); err != nil {
			return asUniqueViolation(fmt.Errorf("insert file %s: %w", f.URI(), err), "files")
		}
	}
	return nil
}
