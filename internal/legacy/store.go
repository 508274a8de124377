// Package legacy is the client for the legacy granule document store, a
// DynamoDB table being migrated away from. The store is consumed as a black
// box and is never the source of truth once a granule exists relationally;
// it is kept in step with the relational store by best-effort follow-up
// writes.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"

	"github.com/mesoscale/lineage/pkg/types"
)

// DDBAPI is the subset of the DynamoDB client the store uses.
type DDBAPI interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store is the legacy document-store client. All calls pass through a
// circuit breaker so a degraded legacy table cannot stall relocations or
// writer follow-ups indefinitely.
type Store struct {
	client    DDBAPI
	tableName string
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// New creates a legacy Store from config.
func New(ctx context.Context, cfg types.LegacyConfig, logger *slog.Logger) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(dynamodb.NewFromConfig(awsCfg, clientOpts...), cfg.Table, logger), nil
}

// NewWithClient creates a legacy Store around an existing client.
func NewWithClient(client DDBAPI, tableName string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "legacy-granule-store",
			Timeout: 30 * time.Second,
		}),
	}
}

const (
	prefixGranule = "GRANULE#"
	skDoc         = "DOC"
)

func granulePK(granuleID string) string { return prefixGranule + granuleID }

// Get fetches a granule document. Returns a NotFoundError when the document
// does not exist.
func (s *Store) Get(ctx context.Context, granuleID string) (*types.GranuleDoc, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &s.tableName,
			Key: map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: granulePK(granuleID)},
				"SK": &ddbtypes.AttributeValueMemberS{Value: skDoc},
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("legacy get granule %s: %w", granuleID, err)
	}

	item := out.(*dynamodb.GetItemOutput).Item
	if item == nil {
		return nil, types.NewNotFoundError("granule %s not found in legacy store", granuleID)
	}
	return s.docFromItem(granuleID, item)
}

func (s *Store) docFromItem(granuleID string, item map[string]ddbtypes.AttributeValue) (*types.GranuleDoc, error) {
	var doc types.GranuleDoc
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal legacy granule %s: %w", granuleID, err)
	}
	return &doc, nil
}

// Exists reports whether a granule document is present.
func (s *Store) Exists(ctx context.Context, granuleID string) (bool, error) {
	_, err := s.Get(ctx, granuleID)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update applies a patch to a granule document with read-modify-write
// semantics. The legacy store has no transactions; the last write wins.
func (s *Store) Update(ctx context.Context, granuleID string, patch types.GranuleDocPatch) error {
	doc, err := s.Get(ctx, granuleID)
	if err != nil {
		return err
	}

	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	if patch.Published != nil {
		doc.Published = *patch.Published
	}
	if patch.CMRLink != nil {
		doc.CMRLink = *patch.CMRLink
	}
	if patch.Files != nil {
		doc.Files = patch.Files
	}
	if !patch.UpdatedAt.IsZero() {
		doc.UpdatedAt = patch.UpdatedAt
	}

	return s.put(ctx, doc)
}

// Put stores a full granule document. Used by Update and by migration
// backfills.
func (s *Store) Put(ctx context.Context, doc *types.GranuleDoc) error {
	return s.put(ctx, doc)
}

func (s *Store) put(ctx context.Context, doc *types.GranuleDoc) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal granule doc %s: %w", doc.GranuleID, err)
	}
	item["PK"] = &ddbtypes.AttributeValueMemberS{Value: granulePK(doc.GranuleID)}
	item["SK"] = &ddbtypes.AttributeValueMemberS{Value: skDoc}

	_, err = s.breaker.Execute(func() (any, error) {
		return s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &s.tableName,
			Item:      item,
		})
	})
	if err != nil {
		return fmt.Errorf("legacy put granule %s: %w", doc.GranuleID, err)
	}
	return nil
}
