// Package client talks to the media API on behalf of the terminal browser.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dinomatic/media/internal/auth"
	"github.com/dinomatic/media/internal/namespace"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %s (%d)", e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Tree fetches the whole directory tree.
func (c *Client) Tree(ctx context.Context) (*namespace.DirectoryNode, error) {
	var tree namespace.DirectoryNode
	if err := c.do(ctx, http.MethodGet, "/api/v1/organize", nil, "", &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// List fetches one directory listing.
func (c *Client) List(ctx context.Context, path string) (namespace.Listing, error) {
	var l namespace.Listing
	q := url.Values{"path": {path}}
	err := c.do(ctx, http.MethodGet, "/api/v1/images?"+q.Encode(), nil, "", &l)
	return l, err
}

// Upload sends r as filename into the directory dir.
func (c *Client) Upload(ctx context.Context, dir, filename string, r io.Reader) (namespace.LeafObject, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("path", dir); err != nil {
		return namespace.LeafObject{}, err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return namespace.LeafObject{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return namespace.LeafObject{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return namespace.LeafObject{}, err
	}

	var obj namespace.LeafObject
	err = c.do(ctx, http.MethodPost, "/api/v1/images", &buf, mw.FormDataContentType(), &obj)
	return obj, err
}

// Delete removes the object with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	q := url.Values{"id": {id}}
	return c.do(ctx, http.MethodDelete, "/api/v1/images?"+q.Encode(), nil, "", nil)
}

// ObjectURL is the public delivery address of an object.
func (c *Client) ObjectURL(id string) string {
	segs := strings.Split(id, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return c.baseURL + "/images/" + strings.Join(segs, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(auth.APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
