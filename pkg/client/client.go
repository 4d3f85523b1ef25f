// Package client is the HTTP client of the command protocol, used by
// the CLI to talk to a running server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smarter-sh/smarter/pkg/api"
	"github.com/smarter-sh/smarter/pkg/broker"
)

// Client executes protocol commands against a remote server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the server at baseURL, authenticating with
// apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Execute sends one command and decodes the envelope. A non-2xx status
// is not an error at this layer; the envelope carries the failure.
func (c *Client) Execute(command, kind string, req api.CommandRequest) (*broker.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/cli/%s/%s", c.baseURL,
		url.PathEscape(command), url.PathEscape(kind))
	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp broker.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("server returned unparsable response (status %d): %w",
			httpResp.StatusCode, err)
	}
	resp.WithStatus(httpResp.StatusCode)
	return &resp, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health() error {
	httpResp, err := c.http.Get(c.baseURL + "/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", httpResp.StatusCode)
	}
	return nil
}
