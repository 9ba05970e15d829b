package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/pkg/logger"
)

const articlePage = `<!doctype html>
<html><head>
<title>Launch day</title>
<meta name="author" content="Jane Roe">
<meta name="keywords" content="space, rockets , launch">
<meta property="article:tag" content="nasa">
</head><body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Launch day</h1>
<p>The rocket lifted off at dawn after weeks of delays caused by weather and a faulty valve that engineers replaced.</p>
<p>Crowds gathered along the coast to watch the ascent, and the mission control team confirmed a nominal orbit insertion.</p>
<p>The payload will now spend three months testing new communication hardware before returning data to the ground.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestEnrichExtractsBodyAndMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	e := New(source.NewHTTPFetcher(time.Second, "", nil), logger.Nop())

	got, err := e.Enrich(context.Background(), srv.URL+"/story")
	require.NoError(t, err)
	assert.True(t, strings.Contains(got.Text, "lifted off at dawn"))
	assert.NotContains(t, got.Text, "Copyright")
	assert.Equal(t, []string{"Jane Roe"}, got.Authors)
	assert.Equal(t, []string{"space", "rockets", "launch", "nasa"}, got.Keywords)
}

func TestEnrichPropagatesFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := New(source.NewHTTPFetcher(time.Second, "", nil), logger.Nop())

	_, err := e.Enrich(context.Background(), srv.URL)
	assert.ErrorIs(t, err, source.ErrHTTPStatus)
}

func TestSplitByline(t *testing.T) {
	assert.Equal(t, []string{"Ann Lee", "Bo Diaz"}, splitByline("By Ann Lee and Bo Diaz"))
	assert.Equal(t, []string{"A", "B", "C"}, splitByline("A, B & C"))
	assert.Nil(t, splitByline("  "))
}
