package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/config"
	"github.com/feed-collector/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Database:  config.DatabaseConfig{Driver: "memory"},
		Fetch:     config.FetchConfig{Timeout: 5 * time.Second, EnrichTimeout: time.Second, Timezone: "UTC"},
		Scheduler: config.SchedulerConfig{BatchSize: 2, MaxWorkers: 2},
		Retry:     config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Queue:     config.QueueConfig{Mode: config.QueueLocal},
	}
}

func TestDispatchCycleWithLocalQueue(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := "https://example.com" + r.URL.Path
		_, _ = w.Write([]byte(`<rss><channel>
<item><title>A</title><link>` + base + `/a</link></item>
<item><title>B</title><link>` + base + `/b</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	a, err := New(testConfig(), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	feedsFile := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(feedsFile, []byte(`
feeds:
  - name: one
    url: `+srv.URL+`/one
  - name: two
    url: `+srv.URL+`/two
  - name: three
    url: `+srv.URL+`/three
`), 0o644))

	n, err := a.SyncFeeds(ctx, feedsFile)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	dispatcher, drain := a.Dispatcher(ctx)
	summary, err := a.Scheduler(dispatcher).DispatchDueFeeds(ctx, a.Config.Scheduler.BatchSize)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.DueFeeds)
	assert.Equal(t, 2, summary.Batches)
	require.NoError(t, drain())

	count, err := a.Repo.CountArticles(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	snap := a.Stats.Snapshot()
	assert.Equal(t, int64(3), snap.FeedsRun)

	due, err := a.Repo.ListDueFeeds(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, due)
}
