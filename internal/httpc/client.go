// Package httpc is a small client for the gazeserve HTTP API. It uses a
// shared http.Client with production timeouts instead of
// http.DefaultClient.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultConnectTimeout  = 5 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewHTTPClient creates an HTTP client with the specified timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gazeserve: %d %s", e.Status, e.Message)
}

// Client talks to one gazeserve instance.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for addr, either a URL or host:port.
func New(addr string) *Client {
	base := addr
	if strings.HasPrefix(base, ":") {
		base = "localhost" + base
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimRight(base, "/"), http: NewHTTPClient(DefaultTimeout)}
}

// Agents lists every agent.
func (c *Client) Agents(ctx context.Context) ([]agent.Status, error) {
	var out []agent.Status
	return out, c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
}

// Agent returns one agent by ID or name.
func (c *Client) Agent(ctx context.Context, key string) (agent.Status, error) {
	var out agent.Status
	return out, c.do(ctx, http.MethodGet, "/api/agents/"+key, nil, &out)
}

// Gaze starts a gaze shift.
func (c *Client) Gaze(ctx context.Context, key string, req web.GazeRequest) error {
	return c.do(ctx, http.MethodPost, "/api/agents/"+key+"/gaze", req, nil)
}

// Stop interrupts the running shift.
func (c *Client) Stop(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, "/api/agents/"+key+"/stop", nil, nil)
}

// UpdateParams applies a partial gaze configuration and returns the result.
func (c *Client) UpdateParams(ctx context.Context, key string, p gaze.ParamPatch) (gaze.Config, error) {
	var out gaze.Config
	return out, c.do(ctx, http.MethodPut, "/api/agents/"+key+"/params", p, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
