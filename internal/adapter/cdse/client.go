// Package cdse searches and downloads Sentinel-1 products from the
// Copernicus Data Space Ecosystem.
package cdse

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

	"github.com/couchcryptid/postfire-sar-etl/internal/georef"
)

// Sentinel-1 product types.
const (
	ProductGRD = "GRD"
	ProductSLC = "SLC"
	ProductOCN = "OCN"
)

// ModeIW is the interferometric wide swath acquisition mode, the default
// over land.
const ModeIW = "IW"

// searchPageSize is how many products one catalog page returns. A page
// shorter than this ends pagination.
const searchPageSize = 100

// Query holds the search terms for a product search. Zero-value
// ProductType and SensorMode default to GRD and IW; OrbitDirection is
// optional.
type Query struct {
	Box            georef.Bounds
	Start          time.Time
	End            time.Time
	ProductType    string
	SensorMode     string
	OrbitDirection string
}

// Product is one catalog hit.
type Product struct {
	ID             string
	Title          string
	StartDate      string
	OrbitDirection string
	Polarisation   string
	DownloadURL    string
}

// Client searches the Sentinel-1 catalog via its OpenSearch API.
type Client struct {
	httpClient *http.Client
	searchURL  string
	logger     *slog.Logger
}

// NewClient creates a catalog search client against searchURL.
func NewClient(searchURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		searchURL: searchURL,
		logger:    logger,
	}
}

// Search pages through every catalog result matching the query.
func (c *Client) Search(ctx context.Context, q Query) ([]Product, error) {
	var products []Product
	for page := 1; ; page++ {
		features, err := c.searchPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			products = append(products, Product{
				ID:             f.ID,
				Title:          f.Properties.Title,
				StartDate:      f.Properties.StartDate,
				OrbitDirection: f.Properties.OrbitDirection,
				Polarisation:   f.Properties.Polarisation,
				DownloadURL:    f.Properties.Services.Download.URL,
			})
		}
		if len(features) < searchPageSize {
			break
		}
	}

	c.logger.Info("catalog search complete", "products", len(products))
	for i, p := range products {
		if i >= 5 {
			break
		}
		c.logger.Debug("catalog product",
			"title", p.Title, "id", p.ID, "start", p.StartDate,
			"orbit", p.OrbitDirection, "polarisation", p.Polarisation)
	}
	return products, nil
}

// SearchByBoundary runs Search with the box taken from a GeoJSON boundary
// file's total bounds.
func (c *Client) SearchByBoundary(ctx context.Context, boundaryPath string, q Query) ([]Product, error) {
	b, err := georef.TotalBounds(boundaryPath)
	if err != nil {
		return nil, err
	}
	q.Box = b
	return c.Search(ctx, q)
}

func (c *Client) searchPage(ctx context.Context, q Query, page int) ([]productFeature, error) {
	productType := q.ProductType
	if productType == "" {
		productType = ProductGRD
	}
	sensorMode := q.SensorMode
	if sensorMode == "" {
		sensorMode = ModeIW
	}

	params := url.Values{
		"box":            {fmt.Sprintf("%g,%g,%g,%g", q.Box.MinX, q.Box.MinY, q.Box.MaxX, q.Box.MaxY)},
		"startDate":      {q.Start.UTC().Format("2006-01-02T15:04:05Z")},
		"completionDate": {q.End.UTC().Format("2006-01-02T15:04:05Z")},
		"productType":    {productType},
		"sensorMode":     {sensorMode},
		"maxRecords":     {strconv.Itoa(searchPageSize)},
		"page":           {strconv.Itoa(page)},
	}
	if q.OrbitDirection != "" {
		params.Set("orbitDirection", q.OrbitDirection)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("CDSE API error: status %d: %s", resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return sr.Features, nil
}

// CDSE OpenSearch response types.

type searchResponse struct {
	Features []productFeature `json:"features"`
}

type productFeature struct {
	ID         string            `json:"id"`
	Properties productProperties `json:"properties"`
}

type productProperties struct {
	Title          string          `json:"title"`
	StartDate      string          `json:"startDate"`
	OrbitDirection string          `json:"orbitDirection"`
	Polarisation   string          `json:"polarisation"`
	Services       productServices `json:"services"`
}

type productServices struct {
	Download productDownload `json:"download"`
}

type productDownload struct {
	URL string `json:"url"`
}
