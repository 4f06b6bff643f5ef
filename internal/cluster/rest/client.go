// Package rest talks to a cluster through its REST gateway schema API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lockplane/cfplane/internal/cluster"
)

// ErrPreSplitUnsupported is returned when a pre-split create is requested.
// The gateway schema API has no way to pass split points.
var ErrPreSplitUnsupported = errors.New("the REST gateway cannot create pre-split tables")

// Client implements cluster.Admin against a REST gateway. The gateway takes
// tables offline itself while it applies a schema change, so DisableTable
// and EnableTable only confirm the table exists.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

var _ cluster.Admin = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.http.Logger = logger
		}
	}
}

// WithRetries sets the retry budget for transient failures.
func WithRetries(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

func New(baseURL string, opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.Logger = nil

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tableList is the body of GET /.
type tableList struct {
	Table []struct {
		Name string `json:"name"`
	} `json:"table"`
}

func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var list tableList
	status, err := c.do(ctx, http.MethodGet, "/", nil, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to list tables: unexpected status %d", status)
	}
	names := make([]string, 0, len(list.Table))
	for _, t := range list.Table {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, tablePath(name, "exists"), nil, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", name, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: unexpected status %d", name, status)
}

func (c *Client) IsEnabled(ctx context.Context, name string) (bool, error) {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	return true, nil
}

func (c *Client) Describe(ctx context.Context, name string) (cluster.TableState, error) {
	var body map[string]json.RawMessage
	status, err := c.do(ctx, http.MethodGet, tablePath(name, "schema"), nil, &body)
	if err != nil {
		return cluster.TableState{}, fmt.Errorf("failed to describe %s: %w", name, err)
	}
	if status == http.StatusNotFound {
		return cluster.TableState{Name: name}, nil
	}
	if status != http.StatusOK {
		return cluster.TableState{}, fmt.Errorf("failed to describe %s: unexpected status %d", name, status)
	}

	desc, err := decodeSchema(name, body)
	if err != nil {
		return cluster.TableState{}, fmt.Errorf("failed to decode schema of %s: %w", name, err)
	}
	return cluster.TableState{Name: name, Exists: true, Enabled: true, Descriptor: desc}, nil
}

func (c *Client) CreateTable(ctx context.Context, desc *cluster.Descriptor, splits int) error {
	if splits > 0 {
		return fmt.Errorf("%s: %w", desc.Name, ErrPreSplitUnsupported)
	}
	exists, err := c.Exists(ctx, desc.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", desc.Name, cluster.ErrTableExists)
	}
	return c.putSchema(ctx, http.MethodPut, desc.Name, desc)
}

func (c *Client) DisableTable(ctx context.Context, name string) error {
	return c.requireExists(ctx, name)
}

func (c *Client) EnableTable(ctx context.Context, name string) error {
	return c.requireExists(ctx, name)
}

func (c *Client) ModifyTable(ctx context.Context, name string, desc *cluster.Descriptor) error {
	if err := c.requireExists(ctx, name); err != nil {
		return err
	}
	return c.putSchema(ctx, http.MethodPost, name, desc)
}

func (c *Client) DeleteTable(ctx context.Context, name string) error {
	status, err := c.do(ctx, http.MethodDelete, tablePath(name, "schema"), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	return fmt.Errorf("failed to delete %s: unexpected status %d", name, status)
}

func (c *Client) Close() error {
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *Client) requireExists(ctx context.Context, name string) error {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	return nil
}

func (c *Client) putSchema(ctx context.Context, method, name string, desc *cluster.Descriptor) error {
	body, err := encodeSchema(name, desc)
	if err != nil {
		return fmt.Errorf("failed to encode schema of %s: %w", name, err)
	}
	status, err := c.do(ctx, method, tablePath(name, "schema"), body, nil)
	if err != nil {
		return fmt.Errorf("failed to write schema of %s: %w", name, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to write schema of %s: unexpected status %d", name, status)
	}
	c.logger.Debug("wrote table schema", "table", name, "method", method)
	return nil
}

// do sends a request and decodes a JSON response into out when the status
// is 200. Non-2xx statuses are returned to the caller, not as errors.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var payload interface{}
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("invalid response body: %w", err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func tablePath(name, resource string) string {
	return "/" + url.PathEscape(name) + "/" + resource
}
