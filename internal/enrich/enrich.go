package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Hint is what could be scraped off a job-posting page to prefill the new
// application form. Empty fields mean "nothing found", never an error.
type Hint struct {
	Position string `json:"position"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
}

var ErrBadURL = errors.New("not a fetchable posting url")

// Fetcher pulls a posting page and extracts a Hint from its markup.
type Fetcher struct {
	hc      *http.Client
	limiter *HostLimiter
}

func NewFetcher(limiter *HostLimiter) *Fetcher {
	return &Fetcher{
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

// Fetch retrieves the page at raw and scrapes a Hint. Fragments are dropped
// before fetching; only http(s) URLs are accepted.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (Hint, error) {
	// strip fragments; they are not sent in requests and some trackers
	// stuff a second URL after #
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return Hint{}, ErrBadURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Hint{}, ErrBadURL
	}

	if err := f.limiter.WaitURL(ctx, raw); err != nil {
		return Hint{}, err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	req.Header.Set("User-Agent", "AppTrack/1.0 (+local)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.hc.Do(req)
	if err != nil {
		return Hint{}, fmt.Errorf("enrich get posting: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return Hint{}, fmt.Errorf("enrich posting status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, 2<<20))
	if err != nil {
		return Hint{}, fmt.Errorf("enrich parse posting html: %w", err)
	}

	h := FromDocument(doc)
	h.URL = raw
	return h, nil
}

// FromDocument scrapes a Hint out of parsed posting markup. Open Graph tags
// first, then common ATS markup, then the title tag.
func FromDocument(doc *goquery.Document) Hint {
	var h Hint

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		h.Position = cleanText(v)
	}
	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		h.Company = cleanText(v)
	}

	if h.Position == "" {
		h.Position = cleanText(doc.Find("h1").First().Text())
	}
	if h.Position == "" {
		h.Position = cleanText(doc.Find("title").First().Text())
	}

	// common ATS board markup
	if h.Company == "" {
		h.Company = cleanText(doc.Find(`[class*="company-name"], [data-company]`).First().Text())
	}
	if h.Location == "" {
		h.Location = cleanText(doc.Find(`[class*="location"]`).First().Text())
	}

	// "Senior Engineer - Acme" style titles
	if h.Company == "" && strings.Contains(h.Position, " - ") {
		parts := strings.SplitN(h.Position, " - ", 2)
		h.Position = cleanText(parts[0])
		h.Company = cleanText(parts[1])
	}

	if len(h.Position) > 200 {
		h.Position = h.Position[:200]
	}
	return h
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
