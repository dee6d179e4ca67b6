package usenet

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDecodedArticleFetchesAndCaches(t *testing.T) {
	data := []byte("segment payload")
	cp := &fakeConnPool{bodyData: buildYencArticle(data, "seg.bin")}
	m := NewManager(newPool(cp))

	article, err := m.GetDecodedArticle(context.Background(), "msg1@example.com", []string{"alt.binaries.test"})
	require.NoError(t, err)
	assert.Equal(t, data, article.Data)

	// second call should be served from cache, not the pool; flip the fake's
	// response so a second real fetch would be observably different.
	cp.bodyData = buildYencArticle([]byte("different payload"), "seg.bin")
	cached, err := m.GetDecodedArticle(context.Background(), "msg1@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, data, cached.Data)
}

func TestGetDecodedArticleReturnsNotFoundOnPoolFailure(t *testing.T) {
	cp := &fakeConnPool{bodyErr: fmt.Errorf("no such article")}
	m := NewManager(newPool(cp))

	_, err := m.GetDecodedArticle(context.Background(), "missing@example.com", nil)
	require.Error(t, err)
	var notFound *ArticleNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing@example.com", notFound.MessageID)
}

// countingConnPool wraps fakeConnPool behavior but counts real Body calls, to
// prove GetDecodedArticle coalesces concurrent callers for the same
// messageID onto a single upstream fetch.
type countingConnPool struct {
	fakeConnPool
	calls int64
}

func (c *countingConnPool) Body(ctx context.Context, msgID string, w io.Writer, nntpGroups []string) (int64, error) {
	atomic.AddInt64(&c.calls, 1)
	n, err := w.Write(c.bodyData)
	return int64(n), err
}

func TestGetDecodedArticleSingleFlightsConcurrentCallers(t *testing.T) {
	data := []byte("shared payload")
	cp := &countingConnPool{fakeConnPool: fakeConnPool{bodyData: buildYencArticle(data, "shared.bin")}}
	m := NewManager(newPool(cp))

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			article, err := m.GetDecodedArticle(context.Background(), "shared@example.com", nil)
			assert.NoError(t, err)
			assert.Equal(t, data, article.Data)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&cp.calls), int64(1))
}
