// Package stepfunction resolves a reported execution ARN to the workflow
// facts the writer persists: workflow name, status, and console URL.
package stepfunction

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/mesoscale/lineage/pkg/types"
)

// SFNAPI is the subset of the Step Functions client the resolver uses.
type SFNAPI interface {
	DescribeExecution(ctx context.Context, input *sfn.DescribeExecutionInput, opts ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// Resolver describes executions by ARN.
type Resolver struct {
	client SFNAPI
	region string
}

// New creates a Resolver from config.
func New(ctx context.Context, cfg types.StepFunctionsConfig) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Resolver{client: sfn.NewFromConfig(awsCfg), region: cfg.Region}, nil
}

// NewWithClient creates a Resolver around an existing client.
func NewWithClient(client SFNAPI, region string) *Resolver {
	return &Resolver{client: client, region: region}
}

// Resolve describes the execution behind an ARN and returns a record ready
// for the writer. The workflow name is the state machine name embedded in
// the execution ARN.
func (r *Resolver) Resolve(ctx context.Context, arn string) (types.ExecutionRecord, error) {
	out, err := r.client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(arn),
	})
	if err != nil {
		return types.ExecutionRecord{}, fmt.Errorf("describe execution %s: %w", arn, err)
	}

	rec := types.ExecutionRecord{
		ARN:          arn,
		WorkflowName: WorkflowNameFromARN(arn),
		Status:       mapStatus(out.Status),
		URL:          consoleURL(r.region, arn),
		Timestamp:    aws.ToTime(out.StartDate),
	}
	if out.StopDate != nil {
		rec.Timestamp = aws.ToTime(out.StopDate)
	}
	return rec, nil
}

// WorkflowNameFromARN extracts the state machine name from an execution ARN
// of the form arn:aws:states:region:account:execution:stateMachine:name.
func WorkflowNameFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < 8 {
		return ""
	}
	return parts[6]
}

func mapStatus(status sfntypes.ExecutionStatus) types.ExecutionStatus {
	switch status {
	case sfntypes.ExecutionStatusRunning:
		return types.ExecutionRunning
	case sfntypes.ExecutionStatusSucceeded:
		return types.ExecutionCompleted
	case sfntypes.ExecutionStatusFailed, sfntypes.ExecutionStatusTimedOut, sfntypes.ExecutionStatusAborted:
		return types.ExecutionFailed
	default:
		return types.ExecutionUnknown
	}
}

func consoleURL(region, arn string) string {
	if region == "" {
		return ""
	}
	return fmt.Sprintf("https://console.aws.amazon.com/states/home?region=%s#/executions/details/%s", region, arn)
}
