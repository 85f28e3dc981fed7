package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/app"
	"github.com/hyperjump/recall/internal/models"
)

// apiClient talks to a running recall server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *apiClient) search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp models.SearchResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/search", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// remoteSearcher exposes the client as an evaluation.Searcher.
type remoteSearcher struct{ *apiClient }

func (r remoteSearcher) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	return r.search(ctx, req)
}

func (c *apiClient) status(ctx context.Context) (*app.Status, error) {
	var st app.Status
	if err := c.call(ctx, http.MethodGet, "/api/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// call sends one request and decodes a 200 JSON body into out. Other status
// codes become errors carrying the server's message.
func (c *apiClient) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
