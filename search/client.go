// Package search queries the legal corpus retrieval service.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTopK    = 5
	DefaultTimeout = 5 * time.Second
)

// Document is one retrieved corpus passage.
type Document struct {
	DocID string  `json:"doc_id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

type searchRequest struct {
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
	Filters map[string][]string `json:"filters"`
}

type searchResponse struct {
	Results []Document `json:"results"`
}

// Client calls the retrieval endpoint. A Client with an empty URL returns no context.
type Client struct {
	url        string
	topK       int
	httpClient *http.Client
}

func NewClient(url string, topK int, timeout time.Duration) *Client {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        strings.TrimSpace(url),
		topK:       topK,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search returns the top legal passages for query.
func (c *Client) Search(ctx context.Context, query string) ([]Document, error) {
	body, err := json.Marshal(searchRequest{
		Query:   query,
		TopK:    c.topK,
		Filters: map[string][]string{"source_type": {"legal"}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned %s", resp.Status)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search decode: %w", err)
	}
	return out.Results, nil
}

// LegalContext returns the formatted retrieval context for query, or "" when the
// service is not configured, fails or finds nothing.
func (c *Client) LegalContext(ctx context.Context, query string) string {
	if c == nil || c.url == "" {
		return ""
	}
	docs, err := c.Search(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "legal search failed", "error", err)
		return ""
	}
	return FormatContext(docs)
}

// FormatContext renders passages as the prompt preamble the review function expects.
func FormatContext(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Dưới đây là các văn bản pháp luật liên quan:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[Tài liệu %d]: %s (%s)\nNội dung: %s\n-----------------------------------\n", i+1, d.Title, d.DocID, d.Text)
	}
	return b.String()
}
