package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/agent/collector"
	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/scheduler"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/internal/storage/memory"
	"github.com/feed-collector/pkg/logger"
	"github.com/feed-collector/pkg/ratelimit"
)

func TestHealthAndStats(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	feed, err := models.NewFeed("example", "https://example.com/rss", models.StrategyGeneric, nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertFeed(ctx, feed))
	_, err = repo.BulkInsertArticles(ctx, []*models.Article{{URL: "https://example.com/1", FeedID: feed.ID}})
	require.NoError(t, err)

	limiter := ratelimit.NewHostLimiter(0, 0)
	require.NoError(t, limiter.Wait(ctx, "https://example.com/rss"))
	require.NoError(t, limiter.Wait(ctx, "https://other.example.org/feed.json"))

	registry := collector.DefaultRegistry(source.Deps{})
	srv := httptest.NewServer(New("0", scheduler.NewStats(), repo, logger.Nop(),
		WithStrategies(registry.Strategies()),
		WithHostCounter(limiter),
	).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Feeds)
	require.Equal(t, int64(1), body.Articles)
	require.Nil(t, body.Scheduler.LastDispatch)
	require.Equal(t, []models.Strategy{models.StrategyGeneric, models.StrategyHTML, models.StrategyJSON}, body.Strategies)
	require.Equal(t, 2, body.FetchHosts)
}
