package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"catalog-cart-service/internal/domain"
)

// HTTPSource queries a dummyjson-compatible endpoint:
// GET {baseURL}/products/search?q=&limit=&skip=&sort=
type HTTPSource struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPSource returns a Source for baseURL. A nil client means
// http.DefaultClient; per-request deadlines come from the context.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalog: base URL %q must be absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: u, client: client}, nil
}

func (s *HTTPSource) Search(ctx context.Context, q Query) (*Result, error) {
	u := s.baseURL.JoinPath("products", "search")
	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("skip", strconv.Itoa(q.Skip))
	params.Set("sort", string(q.Sort))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Products == nil {
		result.Products = []domain.Item{}
	}
	return &result, nil
}
