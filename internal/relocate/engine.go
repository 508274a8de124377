package relocate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mesoscale/lineage/internal/cmr"
	"github.com/mesoscale/lineage/internal/metrics"
	"github.com/mesoscale/lineage/pkg/types"
)

// ObjectStore is the object-storage collaborator.
type ObjectStore interface {
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// LegacyStore is the legacy document-store collaborator.
type LegacyStore interface {
	Get(ctx context.Context, granuleID string) (*types.GranuleDoc, error)
	Update(ctx context.Context, granuleID string, patch types.GranuleDocPatch) error
}

// RelationalStore is the slice of the relational writer/resolver the engine
// needs.
type RelationalStore interface {
	GranuleCumulusID(ctx context.Context, granuleID, collectionName, collectionVersion string) (int64, bool, error)
	ReplaceGranuleFiles(ctx context.Context, granuleCumulusID int64, files []types.FileLocation) error
}

// Notifier publishes record-update events after reconciliation. May be nil.
type Notifier interface {
	GranuleRelocated(ctx context.Context, result *types.RelocationResult) error
}

// Engine orchestrates granule file relocation.
type Engine struct {
	objects  ObjectStore
	legacy   LegacyStore
	db       RelationalStore
	notifier Notifier
	logger   *slog.Logger
}

// New creates an Engine. db and notifier may be nil: without db only the
// legacy store is updated, without notifier no events are published.
func New(objects ObjectStore, legacy LegacyStore, db RelationalStore, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{objects: objects, legacy: legacy, db: db, notifier: notifier, logger: logger}
}

// moveOutcome is the terminal state of one file for one relocation request.
// Each file transitions exactly once: to moved, to failed (location
// unchanged), or to unmoved when no rule matched.
type moveOutcome struct {
	final   types.FileLocation
	moved   bool
	failure *types.FileMoveError
}

// Relocate moves every file of the granule that matches a destination rule,
// then reconciles the relational store, the legacy document store, and any
// metadata cross-reference document against the authoritative final file
// list. It returns the result together with a PartialFailureError when some
// files could not be moved; the result's file list is canonical either way.
// Once started, a relocation runs to completion rather than being abandoned
// mid-way, so partial moves are always reconciled.
func (e *Engine) Relocate(ctx context.Context, granuleID string, rules []DestinationRule) (*types.RelocationResult, error) {
	relocationID := ulid.Make().String()
	logger := e.logger.With("relocation_id", relocationID, "granule_id", granuleID)

	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	doc, err := e.legacy.Get(ctx, granuleID)
	if err != nil {
		return nil, err
	}
	snapshot := *doc

	moves := planMoves(doc.Files, compiled)

	if err := e.guardCollisions(ctx, moves); err != nil {
		metrics.RelocationConflicts.Add(1)
		return nil, err
	}

	outcomes := e.executeMoves(ctx, logger, moves)

	// The authoritative final list. Every downstream record is derived from
	// this one slice and never recomputed.
	final := make([]types.FileLocation, len(outcomes))
	var errs []types.FileMoveError
	var rewrites []cmr.Rewrite
	moved := 0
	for i, o := range outcomes {
		final[i] = o.final
		if o.moved {
			moved++
			rewrites = append(rewrites, cmr.Rewrite{From: moves[i].source, To: o.final})
		}
		if o.failure != nil {
			errs = append(errs, *o.failure)
		}
	}

	errs = append(errs, e.reconcileStores(ctx, logger, doc, final)...)
	errs = append(errs, e.rewriteMetadata(ctx, logger, final, rewrites)...)

	result := &types.RelocationResult{
		RelocationID: relocationID,
		GranuleID:    granuleID,
		Granule:      snapshot,
		Files:        final,
		Moved:        moved,
		Errors:       errs,
	}

	metrics.RelocationsTotal.Add(1)
	if e.notifier != nil {
		if err := e.notifier.GranuleRelocated(ctx, result); err != nil {
			logger.Warn("relocation notification failed", "error", err)
		}
	}

	if len(errs) > 0 {
		metrics.RelocationsPartial.Add(1)
		return result, &types.PartialFailureError{
			Reason: fmt.Sprintf("%d of %d planned moves did not complete cleanly", len(errs), len(moves)),
			Result: result,
		}
	}
	logger.Info("relocation complete", "moved", moved, "files", len(final))
	return result, nil
}

// guardCollisions rejects the whole relocation when any true-move
// destination already holds an object. Nothing is moved and no record is
// touched; self-moves are exempt.
func (e *Engine) guardCollisions(ctx context.Context, moves []move) error {
	var collisions []types.FileLocation
	for _, m := range moves {
		if !m.isMove() {
			continue
		}
		exists, err := e.objects.Exists(ctx, m.destination.Bucket, m.destination.Key)
		if err != nil {
			return fmt.Errorf("collision check for %s: %w", m.destination.URI(), err)
		}
		if exists {
			collisions = append(collisions, *m.destination)
		}
	}
	if len(collisions) > 0 {
		return &types.ConflictError{Collisions: collisions}
	}
	return nil
}

// executeMoves runs copy-then-delete for every planned move concurrently.
// A failure for one file never aborts moves already committed for others;
// each failed file stays at its original location.
func (e *Engine) executeMoves(ctx context.Context, logger *slog.Logger, moves []move) []moveOutcome {
	outcomes := make([]moveOutcome, len(moves))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, m := range moves {
		if !m.isMove() {
			outcomes[i] = moveOutcome{final: m.source}
			continue
		}
		i, m := i, m
		g.Go(func() error {
			outcome := e.moveOne(ctx, logger, m)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) moveOne(ctx context.Context, logger *slog.Logger, m move) moveOutcome {
	src, dst := m.source, *m.destination
	if err := e.objects.Copy(ctx, src.Bucket, src.Key, dst.Bucket, dst.Key); err != nil {
		logger.Warn("file copy failed", "file", src.URI(), "error", err)
		metrics.FileMovesFailed.Add(1)
		return moveOutcome{final: src, failure: &types.FileMoveError{File: src, Reason: err.Error()}}
	}
	if err := e.objects.Delete(ctx, src.Bucket, src.Key); err != nil {
		// The copy landed but the source remains; report the source as
		// authoritative and leave cleanup to the caller's retry.
		logger.Warn("source delete failed after copy", "file", src.URI(), "error", err)
		metrics.FileMovesFailed.Add(1)
		return moveOutcome{final: src, failure: &types.FileMoveError{File: src, Reason: fmt.Sprintf("delete after copy: %v", err)}}
	}
	metrics.FilesMoved.Add(1)
	return moveOutcome{final: dst, moved: true}
}

// reconcileStores writes the authoritative file list to the relational store
// and then the legacy document store. A granule not yet migrated into the
// relational store (no resolvable surrogate id) gets only the legacy write;
// that is not an error. The relational store is written first as the source
// of truth; the two writes are not one transaction and callers tolerate the
// window between them.
func (e *Engine) reconcileStores(ctx context.Context, logger *slog.Logger, doc *types.GranuleDoc, final []types.FileLocation) []types.FileMoveError {
	var errs []types.FileMoveError

	if e.db != nil {
		name, version, err := types.ParseCollectionID(doc.CollectionID)
		if err != nil {
			errs = append(errs, types.FileMoveError{Reason: fmt.Sprintf("relational update skipped: %v", err)})
		} else {
			cumulusID, found, err := e.db.GranuleCumulusID(ctx, doc.GranuleID, name, version)
			switch {
			case err != nil:
				errs = append(errs, types.FileMoveError{Reason: fmt.Sprintf("resolve granule: %v", err)})
			case !found:
				logger.Info("granule not in relational store, writing legacy only")
			default:
				if err := e.db.ReplaceGranuleFiles(ctx, cumulusID, final); err != nil {
					errs = append(errs, types.FileMoveError{Reason: fmt.Sprintf("relational file update: %v", err)})
				}
			}
		}
	}

	patch := types.GranuleDocPatch{Files: final, UpdatedAt: time.Now().UTC()}
	if err := e.legacy.Update(ctx, doc.GranuleID, patch); err != nil {
		metrics.LegacyWriteFailures.Add(1)
		errs = append(errs, types.FileMoveError{Reason: fmt.Sprintf("legacy file update: %v", err)})
	}
	return errs
}

// rewriteMetadata rewrites moved-file URLs inside a recognized metadata
// cross-reference document and writes it back to its post-relocation
// location. This is a best-effort follow-up: a failure here becomes a
// partial-failure entry rather than aborting reconciliation, including when
// the document itself failed to move but references files that did.
func (e *Engine) rewriteMetadata(ctx context.Context, logger *slog.Logger, final []types.FileLocation, rewrites []cmr.Rewrite) []types.FileMoveError {
	if len(rewrites) == 0 {
		return nil
	}

	var errs []types.FileMoveError
	for _, loc := range final {
		format := cmr.DetectFormat(loc.FileName)
		if format == cmr.FormatUnknown {
			continue
		}

		data, err := e.objects.Get(ctx, loc.Bucket, loc.Key)
		if err != nil {
			errs = append(errs, types.FileMoveError{File: loc, Reason: fmt.Sprintf("read metadata document: %v", err)})
			continue
		}
		updated, changed, err := cmr.RewriteURLs(format, data, rewrites)
		if err != nil {
			errs = append(errs, types.FileMoveError{File: loc, Reason: fmt.Sprintf("rewrite metadata document: %v", err)})
			continue
		}
		if !changed {
			continue
		}
		if err := e.objects.Put(ctx, loc.Bucket, loc.Key, updated); err != nil {
			errs = append(errs, types.FileMoveError{File: loc, Reason: fmt.Sprintf("write metadata document: %v", err)})
			continue
		}
		logger.Info("metadata document rewritten", "file", loc.URI())
	}
	return errs
}
