package stepfunction

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesoscale/lineage/pkg/types"
)

type mockSFN struct {
	out *sfn.DescribeExecutionOutput
	err error
}

func (m *mockSFN) DescribeExecution(context.Context, *sfn.DescribeExecutionInput, ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error) {
	return m.out, m.err
}

const testARN = "arn:aws:states:us-east-1:123456789012:execution:IngestGranule:run-1"

func TestResolve(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stop := start.Add(5 * time.Minute)
	resolver := NewWithClient(&mockSFN{out: &sfn.DescribeExecutionOutput{
		Status:    sfntypes.ExecutionStatusSucceeded,
		StartDate: aws.Time(start),
		StopDate:  aws.Time(stop),
	}}, "us-east-1")

	rec, err := resolver.Resolve(context.Background(), testARN)
	require.NoError(t, err)
	assert.Equal(t, testARN, rec.ARN)
	assert.Equal(t, "IngestGranule", rec.WorkflowName)
	assert.Equal(t, types.ExecutionCompleted, rec.Status)
	assert.Equal(t, stop, rec.Timestamp, "stop date wins when present")
	assert.Contains(t, rec.URL, "us-east-1")
}

func TestWorkflowNameFromARN(t *testing.T) {
	assert.Equal(t, "IngestGranule", WorkflowNameFromARN(testARN))
	assert.Equal(t, "", WorkflowNameFromARN("not-an-arn"))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, types.ExecutionRunning, mapStatus(sfntypes.ExecutionStatusRunning))
	assert.Equal(t, types.ExecutionFailed, mapStatus(sfntypes.ExecutionStatusTimedOut))
	assert.Equal(t, types.ExecutionFailed, mapStatus(sfntypes.ExecutionStatusAborted))
	assert.Equal(t, types.ExecutionUnknown, mapStatus(sfntypes.ExecutionStatus("weird")))
}
