package blob_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/blob"
	"github.com/tendant/stash/pkg/stash/blob/memory"
)

// stubBackend returns canned answers and counts calls.
type stubBackend struct {
	getResult any
	err       error
	delay     time.Duration
	calls     atomic.Int32
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) wait(ctx context.Context) error {
	s.calls.Add(1)
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.err
}

func (s *stubBackend) Get(ctx context.Context, key string) (any, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.getResult, s.err
}

func (s *stubBackend) Delete(ctx context.Context, key string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.err
}

func TestGateway_MemoryRoundTrip(t *testing.T) {
	backend := memory.New()
	gw := blob.NewGateway(backend)
	ctx := context.Background()

	require.NoError(t, gw.UploadBytes(ctx, "k1", []byte("payload"), "text/plain"))

	data, err := gw.DownloadBytes(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, gw.DeleteBytes(ctx, "k1"))
	require.NoError(t, gw.DeleteBytes(ctx, "k1"), "deleting an absent key succeeds")

	_, err = gw.DownloadBytes(ctx, "k1")
	assert.ErrorIs(t, err, stash.ErrBlobNotFound)
	assert.ErrorIs(t, err, stash.ErrNotFound)

	var se *stash.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "memory", se.Backend)
	assert.Equal(t, "download", se.Op)
	assert.Equal(t, "k1", se.Key)
}

func TestGateway_BackendFailure(t *testing.T) {
	stub := &stubBackend{err: errors.New("connection refused")}
	gw := blob.NewGateway(stub)
	ctx := context.Background()

	err := gw.UploadBytes(ctx, "k", []byte("x"), "")
	assert.ErrorIs(t, err, stash.ErrBackend)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = gw.DownloadBytes(ctx, "k")
	assert.ErrorIs(t, err, stash.ErrBackend)

	err = gw.DeleteBytes(ctx, "k")
	assert.ErrorIs(t, err, stash.ErrBackend)
}

func TestGateway_UploadNotRetried(t *testing.T) {
	stub := &stubBackend{err: errors.New("ambiguous failure")}
	gw := blob.NewGateway(stub)

	require.Error(t, gw.UploadBytes(context.Background(), "k", []byte("x"), ""))
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestGateway_MalformedResponse(t *testing.T) {
	stub := &stubBackend{getResult: map[string]any{"ok": true, "value": []any{}}}
	gw := blob.NewGateway(stub)

	data, err := gw.DownloadBytes(context.Background(), "k")
	assert.Nil(t, data)
	assert.ErrorIs(t, err, stash.ErrMalformedResponse)

	var mre *stash.MalformedResponseError
	require.ErrorAs(t, err, &mre)
	assert.Contains(t, mre.Snapshot, `"ok":true`)
}

func TestGateway_Timeout(t *testing.T) {
	stub := &stubBackend{delay: time.Second}
	gw := blob.NewGateway(stub, blob.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := gw.DownloadBytes(context.Background(), "k")
	assert.ErrorIs(t, err, stash.ErrBackend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGateway_BreakerOpens(t *testing.T) {
	stub := &stubBackend{err: errors.New("down")}
	gw := blob.NewGateway(stub, blob.WithBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		Timeout: time.Minute,
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = gw.DownloadBytes(ctx, "k")
	}
	assert.Equal(t, int32(2), stub.calls.Load())

	_, err := gw.DownloadBytes(ctx, "k")
	assert.ErrorIs(t, err, stash.ErrBackend)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), stub.calls.Load(), "open breaker short-circuits the backend")
}

func TestGateway_NotFoundDoesNotTripBreaker(t *testing.T) {
	stub := &stubBackend{err: blob.ErrObjectNotFound}
	gw := blob.NewGateway(stub, blob.WithBreaker(gobreaker.Settings{
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}))

	for i := 0; i < 3; i++ {
		_, err := gw.DownloadBytes(context.Background(), "k")
		assert.ErrorIs(t, err, stash.ErrBlobNotFound)
	}
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestGateway_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	backend := memory.New()
	gw := blob.NewGateway(backend, blob.WithMetrics(reg))
	ctx := context.Background()

	require.NoError(t, gw.UploadBytes(ctx, "k", []byte("x"), ""))
	_, _ = gw.DownloadBytes(ctx, "k")
	_, _ = gw.DownloadBytes(ctx, "missing")

	// a second gateway on the same registry reuses the collector
	again := blob.NewGateway(backend, blob.WithMetrics(reg))
	require.NoError(t, again.DeleteBytes(ctx, "k"))

	expected := `
# HELP stash_blob_operations_total Blob gateway operations by outcome.
# TYPE stash_blob_operations_total counter
stash_blob_operations_total{op="delete",outcome="ok"} 1
stash_blob_operations_total{op="download",outcome="not_found"} 1
stash_blob_operations_total{op="download",outcome="ok"} 1
stash_blob_operations_total{op="upload",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stash_blob_operations_total"))
}
