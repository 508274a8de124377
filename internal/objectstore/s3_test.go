package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3 is a minimal mock of the S3API interface for unit testing.
type mockS3 struct {
	copyFn func(ctx context.Context, input *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	delFn  func(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	headFn func(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	listFn func(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	getFn  func(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	putFn  func(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockS3) CopyObject(ctx context.Context, input *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if m.copyFn != nil {
		return m.copyFn(ctx, input, opts...)
	}
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delFn != nil {
		return m.delFn(ctx, input, opts...)
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headFn != nil {
		return m.headFn(ctx, input, opts...)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listFn != nil {
		return m.listFn(ctx, input, opts...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

func (m *mockS3) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getFn != nil {
		return m.getFn(ctx, input, opts...)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (m *mockS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putFn != nil {
		return m.putFn(ctx, input, opts...)
	}
	return &s3.PutObjectOutput{}, nil
}

func TestCopy_BuildsCopySource(t *testing.T) {
	var gotSource, gotBucket, gotKey string
	store := NewWithClient(&mockS3{
		copyFn: func(_ context.Context, input *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
			gotSource = aws.ToString(input.CopySource)
			gotBucket = aws.ToString(input.Bucket)
			gotKey = aws.ToString(input.Key)
			return &s3.CopyObjectOutput{}, nil
		},
	})

	require.NoError(t, store.Copy(context.Background(), "src", "in/a.hdf", "dst", "data/a.hdf"))
	assert.Equal(t, "dst", gotBucket)
	assert.Equal(t, "data/a.hdf", gotKey)
	assert.Contains(t, gotSource, "src")
	assert.Contains(t, gotSource, "a.hdf")
}

func TestExists_MapsNotFound(t *testing.T) {
	store := NewWithClient(&mockS3{
		headFn: func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return nil, &s3types.NotFound{}
		},
	})

	exists, err := store.Exists(context.Background(), "b", "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExists_SurfacesOtherErrors(t *testing.T) {
	store := NewWithClient(&mockS3{
		headFn: func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	})

	_, err := store.Exists(context.Background(), "b", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestList_FollowsContinuationTokens(t *testing.T) {
	calls := 0
	store := NewWithClient(&mockS3{
		listFn: func(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			if calls == 1 {
				assert.Nil(t, input.ContinuationToken)
				return &s3.ListObjectsV2Output{
					Contents:              []s3types.Object{{Key: aws.String("a")}},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("page2"),
				}, nil
			}
			assert.Equal(t, "page2", aws.ToString(input.ContinuationToken))
			return &s3.ListObjectsV2Output{
				Contents: []s3types.Object{{Key: aws.String("b")}},
			}, nil
		},
	})

	keys, err := store.List(context.Background(), "bucket", "prefix/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestGet_ReadsBody(t *testing.T) {
	store := NewWithClient(&mockS3{
		getFn: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("payload"))}, nil
		},
	})

	data, err := store.Get(context.Background(), "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}
