// Package notify publishes record-update events to an SQS queue after
// writer and relocation mutations, for downstream projections.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/mesoscale/lineage/internal/metrics"
	"github.com/mesoscale/lineage/pkg/types"
)

// SQSAPI is the subset of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Event is the envelope published for every record update.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Event types.
const (
	EventExecutionCreated = "execution.created"
	EventGranuleUpserted  = "granule.upserted"
	EventGranuleRelocated = "granule.relocated"
)

// Publisher sends record-update events to a single queue.
type Publisher struct {
	client   SQSAPI
	queueURL string
}

// New creates a Publisher from config. Returns nil when no queue is
// configured; callers treat a nil Publisher as notifications disabled.
func New(ctx context.Context, cfg types.NotifyConfig) (*Publisher, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewWithClient(sqs.NewFromConfig(awsCfg), cfg.QueueURL), nil
}

// NewWithClient creates a Publisher around an existing client.
func NewWithClient(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send %s event: %w", eventType, err)
	}
	metrics.NotificationsSent.Add(1)
	return nil
}

// ExecutionCreated publishes an execution.created event.
func (p *Publisher) ExecutionCreated(ctx context.Context, rec types.ExecutionRecord) error {
	return p.publish(ctx, EventExecutionCreated, rec)
}

// GranuleUpserted publishes a granule.upserted event.
func (p *Publisher) GranuleUpserted(ctx context.Context, rec types.GranuleRecord) error {
	return p.publish(ctx, EventGranuleUpserted, rec)
}

// GranuleRelocated publishes a granule.relocated event carrying the
// authoritative final file list.
func (p *Publisher) GranuleRelocated(ctx context.Context, result *types.RelocationResult) error {
	return p.publish(ctx, EventGranuleRelocated, result)
}
