package dataset_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/dataset/datasettest"
)

// MockS3Client is a mock implementation of the S3Client interface
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

// objectStore serves ranged reads from an in-memory object.
type objectStore struct {
	data []byte
	gets int
}

func (o *objectStore) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	o.gets++
	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	if end >= int64(len(o.data)) {
		end = int64(len(o.data)) - 1
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.data[start : end+1]))}, nil
}

func (o *objectStore) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(o.data)))}, nil
}

var testS3Config = dataset.S3Config{
	Bucket: "datasets",
	Key:    "devices/v3.dat",
	Region: "us-east-1",
}

func TestNewS3Source(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := dataset.NewS3Source(context.Background(), dataset.S3Config{Bucket: "b"})
		assert.ErrorIs(t, err, dataset.ErrInvalidS3Config)
	})

	t.Run("head resolves size", func(t *testing.T) {
		client := &MockS3Client{}
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return aws.ToString(in.Bucket) == "datasets" && aws.ToString(in.Key) == "devices/v3.dat"
		}), mock.Anything).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(1024)}, nil)

		src, err := dataset.NewS3Source(context.Background(), testS3Config, dataset.WithS3Client(client))
		require.NoError(t, err)
		assert.Equal(t, int64(1024), src.Size())
		assert.Equal(t, "s3://datasets/devices/v3.dat", src.Name())
		client.AssertExpectations(t)
	})

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing key", &types.NotFound{}, dataset.ErrObjectNotFound},
		{"missing bucket", &types.NoSuchBucket{}, dataset.ErrBucketNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, dataset.ErrAccessDenied},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, dataset.ErrServiceUnavailable},
		{"timeout", context.DeadlineExceeded, dataset.ErrOperationTimeout},
		{"canceled", context.Canceled, dataset.ErrOperationCanceled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &MockS3Client{}
			client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			_, err := dataset.NewS3Source(context.Background(), testS3Config, dataset.WithS3Client(client))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestS3SourceReadAt(t *testing.T) {
	client := &MockS3Client{}
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=6-9"
	}), mock.Anything).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("6789")))}, nil)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=0-1"
	}), mock.Anything).Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"})

	src, err := dataset.NewS3Source(context.Background(), testS3Config, dataset.WithS3Client(client))
	require.NoError(t, err)

	t.Run("clipped at object end", func(t *testing.T) {
		buf := make([]byte, 8)
		n, err := src.ReadAt(buf, 6)
		assert.Equal(t, 4, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "6789", string(buf[:n]))
	})

	t.Run("past the end", func(t *testing.T) {
		n, err := src.ReadAt(make([]byte, 1), 10)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("classified error", func(t *testing.T) {
		_, err := src.ReadAt(make([]byte, 2), 0)
		assert.ErrorIs(t, err, dataset.ErrAccessDenied)
	})
}

func TestLoadFromS3(t *testing.T) {
	store := &objectStore{data: datasettest.Sample().MustBuild()}

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			src, err := dataset.NewS3Source(context.Background(), testS3Config, dataset.WithS3Client(store))
			require.NoError(t, err)

			ds, err := dataset.Load(src, dataset.WithMode(mode))
			require.NoError(t, err)
			defer ds.Close()

			p, err := ds.FindProfile(21)
			require.NoError(t, err)
			require.NotNil(t, p)
			vs, err := ds.Values(p, ds.Property("BrowserName"))
			require.NoError(t, err)
			assert.Equal(t, "Chrome Mobile", vs.String())
		})
	}
}

func TestLoadFromS3ReadFailure(t *testing.T) {
	client := &MockS3Client{}
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(4096)}, nil)
	client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ServiceUnavailable"})

	src, err := dataset.NewS3Source(context.Background(), testS3Config, dataset.WithS3Client(client))
	require.NoError(t, err)

	_, err = dataset.Load(src, dataset.WithMode(dataset.ModeStream))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrSourceRead))
	assert.ErrorIs(t, err, dataset.ErrServiceUnavailable)
}
