package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const unexpectedResponseMessage = "Received an unexpected response from the server."

// Finder runs one similarity search for an image URL.
type Finder interface {
	FindSimilar(ctx context.Context, imageURL string) (SearchResponse, error)
}

// similarityClient talks to POST /find_similar_jewelry.
type similarityClient struct {
	endpoint string
	http     *http.Client
}

func newSimilarityClient(endpoint string, timeout time.Duration) *similarityClient {
	return &similarityClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// FindSimilar posts the URL and classifies the outcome. Every failure is a
// *SearchError. A browser address stored with withClientIP is forwarded in
// X-Forwarded-For so the backend limits per browser.
func (c *similarityClient) FindSimilar(ctx context.Context, imageURL string) (SearchResponse, error) {
	body, err := json.Marshal(map[string]string{"image_url": imageURL})
	if err != nil {
		return SearchResponse{}, &SearchError{Kind: ErrTransport, Msg: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return SearchResponse{}, &SearchError{Kind: ErrTransport, Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ip := clientIPFrom(ctx); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("similarity request failed: %v", err)
		return SearchResponse{}, &SearchError{Kind: ErrTransport, Msg: "network request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResponse{}, &SearchError{Kind: ErrTransport, Msg: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SearchResponse{}, statusError(resp, raw)
	}

	var out SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("similarity response is not JSON: %v", err)
		return SearchResponse{}, &SearchError{Kind: ErrTransport, Msg: "response is not JSON", Err: err}
	}
	if out.Error != "" {
		return out, &SearchError{Kind: ErrLogical, Msg: out.Error}
	}
	if !out.HasData || !out.HasTotal {
		log.Printf("similarity response missing data or total_found: %s", truncate(string(raw), 200))
		return out, &SearchError{Kind: ErrProtocol, Msg: unexpectedResponseMessage}
	}
	return out, nil
}

func statusError(resp *http.Response, raw []byte) *SearchError {
	statusText := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	if statusText == "" {
		statusText = http.StatusText(resp.StatusCode)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg := payload.Error
		if !hasSafePrefix(msg) {
			msg = "Search failed: " + msg
		}
		return &SearchError{Kind: ErrProtocol, Msg: msg}
	}
	return &SearchError{
		Kind: ErrProtocol,
		Msg:  fmt.Sprintf("Search failed: %s (Status: %d)", statusText, resp.StatusCode),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
