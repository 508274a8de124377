package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mesoscale/lineage/pkg/types"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ExecutionArnsForGranulesAndWorkflows returns the ARN of every execution
// joined to any of the given granule ids and running one of the given
// workflows, most recent execution first. Ties on timestamp break by
// surrogate key descending so the ordering is deterministic. An empty result
// is not an error.
func ExecutionArnsForGranulesAndWorkflows(ctx context.Context, db Querier, granuleIDs, workflowNames []string) ([]string, error) {
	if len(granuleIDs) == 0 || len(workflowNames) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		SELECT e.arn
		FROM granules g
		JOIN granules_executions ge ON ge.granule_cumulus_id = g.cumulus_id
		JOIN executions e ON e.cumulus_id = ge.execution_cumulus_id
		WHERE g.granule_id = ANY($1) AND e.workflow_name = ANY($2)
		ORDER BY e.timestamp DESC, e.cumulus_id DESC
	`, granuleIDs, workflowNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arns []string
	for rows.Next() {
		var arn string
		if err := rows.Scan(&arn); err != nil {
			return nil, err
		}
		arns = append(arns, arn)
	}
	return arns, rows.Err()
}

// NewestExecutionArn returns the most recent execution ARN for the given
// granule ids and workflow names. Returns a NotFoundError naming both when
// no execution matches.
func NewestExecutionArn(ctx context.Context, db Querier, granuleIDs, workflowNames []string) (string, error) {
	arns, err := ExecutionArnsForGranulesAndWorkflows(ctx, db, granuleIDs, workflowNames)
	if err != nil {
		return "", err
	}
	if len(arns) == 0 {
		return "", types.NewNotFoundError(
			"no executions found for granule(s) %s with workflow(s) %s",
			strings.Join(granuleIDs, ", "), strings.Join(workflowNames, ", "))
	}
	return arns[0], nil
}

// WorkflowNameIntersection returns the workflow names common to every given
// granule, ordered by each workflow's most recent association timestamp
// (most recent first). For a single granule this is its full set of distinct
// workflow names. Empty input or an empty intersection yields an empty
// result.
func WorkflowNameIntersection(ctx context.Context, db Querier, granuleCumulusIDs []int64) ([]string, error) {
	if len(granuleCumulusIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		SELECT ge.granule_cumulus_id, e.workflow_name, e.timestamp, e.cumulus_id
		FROM granules_executions ge
		JOIN executions e ON e.cumulus_id = ge.execution_cumulus_id
		WHERE ge.granule_cumulus_id = ANY($1) AND e.workflow_name IS NOT NULL
	`, granuleCumulusIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assocs []workflowAssoc
	for rows.Next() {
		var a workflowAssoc
		var ts *time.Time
		if err := rows.Scan(&a.GranuleCumulusID, &a.WorkflowName, &ts, &a.ExecutionCumulusID); err != nil {
			return nil, err
		}
		if ts != nil {
			a.Timestamp = *ts
		}
		assocs = append(assocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return intersectWorkflows(assocs, granuleCumulusIDs), nil
}

// ExecutionCumulusIDs resolves each execution record to its surrogate key by
// ARN, preserving input order. A record with no matching row is an error:
// lineage writes must reference executions that exist.
func ExecutionCumulusIDs(ctx context.Context, db Querier, records []types.ExecutionRecord) ([]int64, error) {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		var id int64
		err := db.QueryRow(ctx, `SELECT cumulus_id FROM executions WHERE arn = $1`, rec.ARN).Scan(&id)
		if err != nil {
			if isNoRows(err) {
				return nil, types.NewNotFoundError("no execution found for arn %s", rec.ARN)
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GranuleCumulusIDsForExecutions returns the surrogate key of every granule
// ever joined to any of the given executions, duplicates removed. Order is
// not significant.
func GranuleCumulusIDsForExecutions(ctx context.Context, db Querier, records []types.ExecutionRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	arns := make([]string, len(records))
	for i, rec := range records {
		arns[i] = rec.ARN
	}
	rows, err := db.Query(ctx, `
		SELECT DISTINCT ge.granule_cumulus_id
		FROM granules_executions ge
		JOIN executions e ON e.cumulus_id = ge.execution_cumulus_id
		WHERE e.arn = ANY($1)
	`, arns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GranuleCumulusID resolves a granule business key to its surrogate key.
// The second return is false when the granule has not been migrated into the
// relational store yet; that is not an error during the migration period.
func GranuleCumulusID(ctx context.Context, db Querier, granuleID, collectionName, collectionVersion string) (int64, bool, error) {
	var id int64
	err := db.QueryRow(ctx, `
		SELECT g.cumulus_id
		FROM granules g
		JOIN collections c ON c.cumulus_id = g.collection_cumulus_id
		WHERE g.granule_id = $1 AND c.name = $2 AND c.version = $3
	`, granuleID, collectionName, collectionVersion).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// CollectionCumulusID resolves a collection business key to its surrogate
// key.
func CollectionCumulusID(ctx context.Context, db Querier, name, version string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		SELECT cumulus_id FROM collections WHERE name = $1 AND version = $2
	`, name, version).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, types.NewNotFoundError("no collection found for %s version %s", name, version)
		}
		return 0, err
	}
	return id, nil
}

// FilesForGranule returns the file rows belonging to a granule, in surrogate
// key order.
func FilesForGranule(ctx context.Context, db Querier, granuleCumulusID int64) ([]types.FileRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT cumulus_id, granule_cumulus_id, bucket, key, COALESCE(file_name, ''), COALESCE(file_size, 0)
		FROM files
		WHERE granule_cumulus_id = $1
		ORDER BY cumulus_id
	`, granuleCumulusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []types.FileRecord
	for rows.Next() {
		var f types.FileRecord
		if err := rows.Scan(&f.CumulusID, &f.GranuleCumulusID, &f.Bucket, &f.Key, &f.FileName, &f.Size); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetGranule fetches a granule row by surrogate key.
func GetGranule(ctx context.Context, db Querier, cumulusID int64) (*types.GranuleRecord, error) {
	var g types.GranuleRecord
	var ts *time.Time
	err := db.QueryRow(ctx, `
		SELECT cumulus_id, granule_id, collection_cumulus_id, status, timestamp,
			created_at, updated_at, published, cmr_link, error
		FROM granules WHERE cumulus_id = $1
	`, cumulusID).Scan(&g.CumulusID, &g.GranuleID, &g.CollectionCumulusID, &g.Status,
		&ts, &g.CreatedAt, &g.UpdatedAt, &g.Published, &g.CMRLink, &g.Error)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewNotFoundError("no granule found for cumulus_id %d", cumulusID)
		}
		return nil, fmt.Errorf("get granule %d: %w", cumulusID, err)
	}
	if ts != nil {
		g.Timestamp = *ts
	}
	return &g, nil
}
