package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash/blob"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		err := Config{Region: "us-east-1"}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("InvalidSSE", func(t *testing.T) {
		err := Config{Bucket: "b", EnableSSE: true, SSEAlgorithm: "rot13"}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SSE algorithm")
	})

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, Config{Bucket: "b", EnableSSE: true, SSEAlgorithm: "aws:kms"}.Validate())
	})
}

func TestNew_StaticCredentials(t *testing.T) {
	backend, err := New(context.Background(), Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", backend.Name())
	assert.Equal(t, "us-east-1", backend.config.Region)
}

func TestApplySSE(t *testing.T) {
	b := &Backend{config: Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"}}
	input := &s3.PutObjectInput{}
	b.applySSE(input)
	assert.Equal(t, types.ServerSideEncryptionAwsKms, input.ServerSideEncryption)
	assert.Equal(t, "key-1", *input.SSEKMSKeyId)

	b.config = Config{}
	input = &s3.PutObjectInput{}
	b.applySSE(input)
	assert.Empty(t, input.ServerSideEncryption)
}

// TestS3Backend_MinIO runs against a live MinIO when STASH_TEST_S3_ENDPOINT is set.
func TestS3Backend_MinIO(t *testing.T) {
	endpoint := os.Getenv("STASH_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("STASH_TEST_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	backend, err := New(ctx, Config{
		Region:                 "us-east-1",
		Bucket:                 "stash-test",
		AccessKeyID:            envOr("STASH_TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretAccessKey:        envOr("STASH_TEST_S3_SECRET_KEY", "minioadmin"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	key := fmt.Sprintf("test/%d.txt", time.Now().UnixNano())
	require.NoError(t, backend.Put(ctx, key, []byte("hello minio"), "text/plain"))

	raw, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello minio"), raw)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Get(ctx, key)
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
