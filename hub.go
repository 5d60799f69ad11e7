package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// hubCatalog queries the remote product hub API. It is read-only.
type hubCatalog struct {
	endpoint string
	app      string
	key      string
	secret   string
	http     *http.Client
}

func newHubCatalog(endpoint, app, key, secret string) *hubCatalog {
	return &hubCatalog{
		endpoint: endpoint,
		app:      app,
		key:      key,
		secret:   secret,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *hubCatalog) Query(ctx context.Context, q CatalogQuery) ([]SearchResult, error) {
	if c.app == "" || c.key == "" || c.secret == "" {
		return nil, fmt.Errorf("hub api credentials missing")
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("hub url: %w", err)
	}
	params := u.Query()
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("title", q.Title)
	for _, s := range q.Styles {
		params.Add("style", s)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-app", c.app)
	req.Header.Set("x-api-key", c.key)
	req.Header.Set("x-api-secret", c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("hub read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("hub status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("hub decode: %w", err)
	}
	return out.Data, nil
}
