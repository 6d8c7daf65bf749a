// Package apiclient talks to the chatbot HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"rag-chatbot/internal/models"
)

// StatusError is a non-2xx response. Error returns the raw body so callers
// can show exactly what the server said.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Body
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// NewWithHTTPClient uses hc for all requests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	c := New(baseURL)
	c.httpClient = hc
	return c
}

func (c *Client) Health(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Collection(ctx context.Context) (*models.CollectionResponse, error) {
	var out models.CollectionResponse
	if err := c.do(ctx, http.MethodGet, "/collection", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest uploads the file at path and returns the number of chunks indexed.
func (c *Client) Ingest(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("upload", filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	var out models.IngestResponse
	if err := c.do(ctx, http.MethodPost, "/ingest", body, mw.FormDataContentType(), &out); err != nil {
		return 0, err
	}
	return out.ChunksIndexed, nil
}

func (c *Client) Chat(ctx context.Context, question string) (string, error) {
	return c.chat(ctx, "/chat", question)
}

func (c *Client) ChatPlain(ctx context.Context, question string) (string, error) {
	return c.chat(ctx, "/chat_plain", question)
}

func (c *Client) chat(ctx context.Context, path, question string) (string, error) {
	payload, err := json.Marshal(models.ChatRequest{Question: question})
	if err != nil {
		return "", err
	}
	var out models.ChatResponse
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
