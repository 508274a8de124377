// relocate Lambda receives relocation requests from the API layer and runs
// the relocation engine against the configured stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/mesoscale/lineage/internal/legacy"
	"github.com/mesoscale/lineage/internal/notify"
	"github.com/mesoscale/lineage/internal/objectstore"
	"github.com/mesoscale/lineage/internal/relocate"
	"github.com/mesoscale/lineage/internal/secrets"
	"github.com/mesoscale/lineage/internal/store/postgres"
	"github.com/mesoscale/lineage/pkg/types"
)

// Request is the relocation event payload.
type Request struct {
	GranuleID string                     `json:"granuleId"`
	Rules     []relocate.DestinationRule `json:"rules"`
}

// Response is the invoke payload. Lambda discards the first return value
// whenever the handler returns a non-nil error, so a partial failure is
// reported inside the payload instead: PartialFailure is set, FailureReason
// carries the detail, and Files remains the canonical final location of
// every file.
type Response struct {
	*types.RelocationResult
	PartialFailure bool   `json:"partialFailure,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
}

var (
	engine     *relocate.Engine
	engineOnce sync.Once
	engineErr  error
)

type relocateDB struct {
	store *postgres.Store
}

func (d *relocateDB) GranuleCumulusID(ctx context.Context, granuleID, name, version string) (int64, bool, error) {
	return postgres.GranuleCumulusID(ctx, d.store.Pool(), granuleID, name, version)
}

func (d *relocateDB) ReplaceGranuleFiles(ctx context.Context, granuleCumulusID int64, files []types.FileLocation) error {
	return d.store.ReplaceGranuleFiles(ctx, granuleCumulusID, files)
}

func getEngine(ctx context.Context) (*relocate.Engine, error) {
	engineOnce.Do(func() {
		logger := slog.Default()

		dsn := os.Getenv("LINEAGE_POSTGRES_DSN")
		if dsn == "" {
			secretARN := os.Getenv("LINEAGE_POSTGRES_SECRET_ARN")
			if secretARN == "" {
				engineErr = fmt.Errorf("LINEAGE_POSTGRES_DSN or LINEAGE_POSTGRES_SECRET_ARN required")
				return
			}
			var err error
			dsn, err = secrets.ResolveDSN(ctx, secretARN)
			if err != nil {
				engineErr = err
				return
			}
		}

		table := os.Getenv("LINEAGE_LEGACY_TABLE")
		if table == "" {
			engineErr = fmt.Errorf("LINEAGE_LEGACY_TABLE required")
			return
		}

		store, err := postgres.New(ctx, dsn, logger)
		if err != nil {
			engineErr = err
			return
		}
		legacyStore, err := legacy.New(ctx, types.LegacyConfig{Table: table}, logger)
		if err != nil {
			engineErr = err
			return
		}
		objects, err := objectstore.New(ctx, types.ObjectStoreConfig{})
		if err != nil {
			engineErr = err
			return
		}

		var notifier relocate.Notifier
		if queueURL := os.Getenv("LINEAGE_EVENT_QUEUE_URL"); queueURL != "" {
			pub, err := notify.New(ctx, types.NotifyConfig{QueueURL: queueURL})
			if err != nil {
				engineErr = err
				return
			}
			notifier = pub
		}

		engine = relocate.New(objects, legacyStore, &relocateDB{store: store}, notifier, logger)
	})
	return engine, engineErr
}

func handle(ctx context.Context, req Request) (*Response, error) {
	eng, err := getEngine(ctx)
	if err != nil {
		return nil, err
	}
	result, err := eng.Relocate(ctx, req.GranuleID, req.Rules)
	return respond(req.GranuleID, result, err)
}

func respond(granuleID string, result *types.RelocationResult, err error) (*Response, error) {
	if err == nil {
		return &Response{RelocationResult: result}, nil
	}
	var partial *types.PartialFailureError
	if errors.As(err, &partial) {
		slog.Warn("relocation partial failure", "granule_id", granuleID, "errors", len(partial.Result.Errors))
		return &Response{
			RelocationResult: partial.Result,
			PartialFailure:   true,
			FailureReason:    partial.Reason,
		}, nil
	}
	return nil, err
}

func main() {
	awslambda.Start(handle)
}
