package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/server"
)

const defaultServerURL = "http://localhost:8080"

// apiClient talks to a running shelfrank server so CLI commands do not contend with it
// for the SQLite database.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// do sends a request and decodes a JSON body into out when the status matches want.
func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of an API error body, or the raw text.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}

func (c *apiClient) postJSON(ctx context.Context, path string, in any, want int, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), want, out)
}

func (c *apiClient) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := c.postJSON(ctx, "/api/v1/search", query, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *apiClient) Status(ctx context.Context) (*server.StatusResponse, error) {
	var status server.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", "", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ingest uploads a catalog file as multipart form data.
func (c *apiClient) Ingest(ctx context.Context, path string) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var res ingest.Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/ingest", mw.FormDataContentType(), &buf, http.StatusCreated, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PublishEvent queues an event and returns the id assigned by the server.
func (c *apiClient) PublishEvent(ctx context.Context, ev *models.Event) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/v1/events", ev, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *apiClient) WatchDirectories(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watch/directories", "", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

func (c *apiClient) AddWatchDirectory(ctx context.Context, path string, syncExisting bool) error {
	in := map[string]any{"path": path, "sync": syncExisting}
	return c.postJSON(ctx, "/api/v1/watch/directories", in, http.StatusCreated, nil)
}

func (c *apiClient) RemoveWatchDirectory(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), "", nil, http.StatusOK, nil)
}
