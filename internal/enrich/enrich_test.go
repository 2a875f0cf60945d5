package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFromDocumentOpenGraph(t *testing.T) {
	doc := docFrom(t, `<html><head>
<meta property="og:title" content="Senior Engineer"/>
<meta property="og:site_name" content="Acme"/>
</head><body><h1>ignored</h1></body></html>`)

	h := FromDocument(doc)
	assert.Equal(t, "Senior Engineer", h.Position)
	assert.Equal(t, "Acme", h.Company)
}

func TestFromDocumentH1Fallback(t *testing.T) {
	doc := docFrom(t, `<html><body>
<h1>  Platform   Engineer </h1>
<div class="company-name">Globex Corp</div>
<div class="job-location">Austin, TX</div>
</body></html>`)

	h := FromDocument(doc)
	assert.Equal(t, "Platform Engineer", h.Position)
	assert.Equal(t, "Globex Corp", h.Company)
	assert.Equal(t, "Austin, TX", h.Location)
}

func TestFromDocumentTitleSplit(t *testing.T) {
	doc := docFrom(t, `<html><head><title>SRE - Initech</title></head><body></body></html>`)

	h := FromDocument(doc)
	assert.Equal(t, "SRE", h.Position)
	assert.Equal(t, "Initech", h.Company)
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	f := NewFetcher(NewHostLimiter(10, 2))

	_, err := f.Fetch(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrBadURL)

	_, err = f.Fetch(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrBadURL)
}

func TestFetchDropsFragment(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		_, _ = w.Write([]byte(`<html><head><title>Engineer - Acme</title></head></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(NewHostLimiter(10, 2))
	h, err := f.Fetch(context.Background(), srv.URL+"/jobs/1#https://tracker.example.com")
	require.NoError(t, err)

	assert.Equal(t, "/jobs/1", gotPath)
	assert.Equal(t, "Engineer", h.Position)
	assert.Equal(t, "Acme", h.Company)
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(NewHostLimiter(10, 2))
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}
