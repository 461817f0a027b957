package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
	"github.com/asfadmin/burst2safe/pkg/logging"
)

// DefaultBaseURL is the ASF search API endpoint.
const DefaultBaseURL = "https://api.daac.asf.alaska.edu/services/search/param"

const datasetSLCBurst = "SENTINEL-1 BURSTS"

// Client queries the ASF search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the search endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a search client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// search runs one query against the API and decodes the GeoJSON response.
func (c *Client) search(ctx context.Context, params url.Values) ([]Product, error) {
	params.Set("output", "geojson")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.NewSearchError(0, "building search request", err)
	}
	logging.Debug().Str("url", req.URL.String()).Msg("querying ASF search")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewSearchError(0, "querying ASF search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.NewSearchError(resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var collection FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, errors.NewSearchError(resp.StatusCode, "decoding search response", err)
	}
	return collection.Features, nil
}

// FindGranules finds burst products by granule name. Every requested granule
// must be found.
func (c *Client) FindGranules(ctx context.Context, granules []string) ([]Product, error) {
	params := url.Values{}
	params.Set("product_list", strings.Join(granules, ","))
	results, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(results))
	for _, result := range results {
		found[result.Properties.FileID] = true
	}
	var missing []string
	for _, granule := range granules {
		if !found[granule] {
			missing = append(missing, granule)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.NewSearchError(0,
			fmt.Sprintf("failed to find granule(s) %s, check search parameters on Vertex",
				strings.Join(missing, ", ")), nil)
	}
	return results, nil
}
