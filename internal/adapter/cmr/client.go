// Package cmr searches NASA's Common Metadata Repository for GEDI
// granules covering a fire area, so canopy structure data can be paired
// with processed SAR products.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
)

// GEDI product short names by processing level.
const (
	ProductL1B = "GEDI01_B"
	ProductL2A = "GEDI02_A"
	ProductL2B = "GEDI02_B"
	ProductL4A = "GEDI04_A"
)

// collectionVersion is the GEDI collection version in the CMR catalog.
const collectionVersion = "002"

// dataRel marks granule links that point at downloadable data files.
const dataRel = "http://esipfed.org/ns/fedsearch/1.1/data#"

// pageSize is how many granules one catalog page returns. A page shorter
// than this ends pagination.
const pageSize = 100

// BBox is a search bounding box in degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Query is a granule search: a bounding box and a time range.
type Query struct {
	Box   BBox
	Start time.Time
	End   time.Time
}

// Granule is one catalog entry with its data download links.
type Granule struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URLs  []string `json:"urls"`
}

// GranuleFinder finds GEDI granule downloads for a query. Implemented by
// Client and by the caching decorator in this package.
type GranuleFinder interface {
	DownloadURLs(ctx context.Context, q Query, maxResults int) ([]string, error)
	GranuleCount(ctx context.Context, q Query) (int, error)
}

// Client queries the CMR granule catalog for one GEDI product.
type Client struct {
	product    string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a granule search client. An empty product selects the
// L2A elevation/height product.
func NewClient(product string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if product == "" {
		product = ProductL2A
	}
	return &Client{
		product: product,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://cmr.earthdata.nasa.gov/search/granules.json",
		logger:  logger,
		metrics: metrics,
	}
}

// QueryGranules fetches one page of matching granules. Pages start at 1.
func (c *Client) QueryGranules(ctx context.Context, q Query, page int) ([]Granule, error) {
	entries, _, err := c.doRequest(ctx, q, pageSize, page)
	if err != nil {
		return nil, err
	}

	granules := make([]Granule, 0, len(entries))
	for _, e := range entries {
		g := Granule{ID: e.ID, Title: e.Title}
		for _, l := range e.Links {
			if l.Rel == dataRel {
				g.URLs = append(g.URLs, l.Href)
			}
		}
		granules = append(granules, g)
	}
	return granules, nil
}

// DownloadURLs pages through the catalog and flattens every data link for
// the query. maxResults caps the returned URLs; 0 means no cap.
func (c *Client) DownloadURLs(ctx context.Context, q Query, maxResults int) ([]string, error) {
	var urls []string
	for page := 1; ; page++ {
		granules, err := c.QueryGranules(ctx, q, page)
		if err != nil {
			return nil, err
		}
		for _, g := range granules {
			urls = append(urls, g.URLs...)
			if maxResults > 0 && len(urls) >= maxResults {
				c.logger.Debug("granule url cap reached", "product", c.product, "urls", maxResults)
				return urls[:maxResults], nil
			}
		}
		if len(granules) < pageSize {
			break
		}
	}
	c.logger.Debug("granule search complete", "product", c.product, "urls", len(urls))
	return urls, nil
}

// GranuleCount returns the total number of matching granules as reported
// by the catalog, without paging through them.
func (c *Client) GranuleCount(ctx context.Context, q Query) (int, error) {
	_, hits, err := c.doRequest(ctx, q, 1, 1)
	if err != nil {
		return 0, err
	}
	return hits, nil
}

func (c *Client) doRequest(ctx context.Context, q Query, size, page int) ([]granuleEntry, int, error) {
	params := url.Values{
		"short_name":   {c.product},
		"version":      {collectionVersion},
		"bounding_box": {fmt.Sprintf("%g,%g,%g,%g", q.Box.MinLon, q.Box.MinLat, q.Box.MaxLon, q.Box.MaxLat)},
		"temporal":     {q.Start.UTC().Format(time.RFC3339) + "," + q.End.UTC().Format(time.RFC3339)},
		"page_size":    {strconv.Itoa(size)},
		"page_num":     {strconv.Itoa(page)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GranuleSearches.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("granule search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GranuleSearches.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("CMR API error: status %d: %s", resp.StatusCode, body)
	}

	var cmrResp granuleResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmrResp); err != nil {
		c.metrics.GranuleSearches.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	c.metrics.GranuleSearches.WithLabelValues("success").Inc()

	hits, _ := strconv.Atoi(resp.Header.Get("CMR-Hits"))
	return cmrResp.Feed.Entry, hits, nil
}

// CMR API response types.

type granuleResponse struct {
	Feed granuleFeed `json:"feed"`
}

type granuleFeed struct {
	Entry []granuleEntry `json:"entry"`
}

type granuleEntry struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Links []granuleLink `json:"links"`
}

type granuleLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}
