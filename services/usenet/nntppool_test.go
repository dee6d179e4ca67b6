package usenet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/javi11/nntpcli"
	"github.com/javi11/nntppool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnPool is a minimal nntppool.UsenetConnectionPool double, mirroring
// the shape of the teacher's own stubPool: only Body is exercised by this
// package's Pool, every other method is a not-implemented stub.
type fakeConnPool struct {
	bodyErr  error
	bodyData []byte
}

func (f *fakeConnPool) GetConnection(ctx context.Context, skipProviders []string, useBackupProviders bool) (nntppool.PooledConnection, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeConnPool) Body(ctx context.Context, msgID string, w io.Writer, nntpGroups []string) (int64, error) {
	if f.bodyErr != nil {
		return 0, f.bodyErr
	}
	n, err := w.Write(f.bodyData)
	return int64(n), err
}

func (f *fakeConnPool) BodyReader(ctx context.Context, msgID string, nntpGroups []string) (nntpcli.ArticleBodyReader, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeConnPool) Post(ctx context.Context, r io.Reader) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeConnPool) Stat(ctx context.Context, msgID string, nntpGroups []string) (int, error) {
	return 223, nil
}

func (f *fakeConnPool) GetProvidersInfo() []nntppool.ProviderInfo { return nil }

func (f *fakeConnPool) GetProviderStatus(providerID string) (*nntppool.ProviderInfo, bool) {
	return nil, false
}

func (f *fakeConnPool) Reconfigure(configs ...nntppool.Config) error { return nil }

func (f *fakeConnPool) GetReconfigurationStatus(migrationID string) (*nntppool.ReconfigurationStatus, bool) {
	return nil, false
}

func (f *fakeConnPool) GetActiveReconfigurations() map[string]*nntppool.ReconfigurationStatus {
	return nil
}

func (f *fakeConnPool) GetMetrics() *nntppool.PoolMetrics { return nil }

func (f *fakeConnPool) GetMetricsSnapshot() nntppool.PoolMetricsSnapshot {
	return nntppool.PoolMetricsSnapshot{}
}

func (f *fakeConnPool) Quit() {}

func TestFetchBodyReturnsBytesOnSuccessAndRecordsHealth(t *testing.T) {
	cp := &fakeConnPool{bodyData: []byte("article body")}
	p := newPool(cp)

	body, err := p.FetchBody(context.Background(), "msg1@example.com", []string{"alt.binaries.test"})
	require.NoError(t, err)
	assert.Equal(t, "article body", string(body))

	health := p.Health()
	assert.Equal(t, 0, health.ConsecutiveFailures)
	assert.False(t, health.LastSuccess.IsZero())
}

func TestFetchBodyClassifiesNotFoundAndDoesNotBackoff(t *testing.T) {
	cp := &fakeConnPool{bodyErr: nntppool.ErrArticleNotFoundInProviders}
	p := newPool(cp)

	_, err := p.FetchBody(context.Background(), "missing@example.com", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nntppool.ErrArticleNotFoundInProviders))
	assert.True(t, p.CanUse())
	assert.Equal(t, 0, p.Health().ConsecutiveFailures)
}

func TestFetchBodyBacksOffAfterRepeatedRetryableFailures(t *testing.T) {
	cp := &fakeConnPool{bodyErr: fmt.Errorf("connection reset")}
	p := newPool(cp)

	for i := 0; i < failureBackoffThreshold; i++ {
		_, err := p.FetchBody(context.Background(), "msg@example.com", nil)
		require.Error(t, err)
	}

	assert.False(t, p.CanUse())
	health := p.Health()
	assert.Equal(t, failureBackoffThreshold, health.ConsecutiveFailures)
	require.NotNil(t, health.BackoffUntil)
}

func TestFetchBodySuccessResetsBackoff(t *testing.T) {
	cp := &fakeConnPool{bodyErr: fmt.Errorf("connection reset")}
	p := newPool(cp)
	for i := 0; i < failureBackoffThreshold; i++ {
		_, _ = p.FetchBody(context.Background(), "msg@example.com", nil)
	}
	require.False(t, p.CanUse())

	cp.bodyErr = nil
	cp.bodyData = []byte("recovered")
	_, err := p.FetchBody(context.Background(), "msg@example.com", nil)
	require.NoError(t, err)
	assert.True(t, p.CanUse())
	assert.Equal(t, 0, p.Health().ConsecutiveFailures)
}
