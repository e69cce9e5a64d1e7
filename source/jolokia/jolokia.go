// Package jolokia implements source.Source over the Jolokia HTTP bridge.
//
// Jolokia exposes a JMX-style management interface as JSON over HTTP.
// Remote endpoints are dialed over TCP; local endpoints are dialed over a
// Unix socket serving the same protocol, selected by which identity fields
// the EngineEndpoint carries.
package jolokia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/justapithecus/assay/source"
	"github.com/justapithecus/assay/types"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultPath is the Jolokia agent path on the management listener.
const DefaultPath = "/jolokia"

// Config configures a Jolokia source.
type Config struct {
	// Endpoint identifies the engine and its management listener.
	Endpoint types.EngineEndpoint
	// Path overrides the agent path (default /jolokia).
	Path string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
}

// Client is a Jolokia-backed source.Source. Owned by one collector;
// not safe for concurrent use.
type Client struct {
	config Config
	url    string
	http   *http.Client
}

// New creates a Jolokia source for the given endpoint. The connection is
// not established until Open.
func New(cfg Config) (*Client, error) {
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{config: cfg}, nil
}

// request is the Jolokia POST body. Fields beyond Type are operation
// specific and omitted when empty.
type request struct {
	Type      string `json:"type"`
	MBean     string `json:"mbean,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// response is the subset of the Jolokia response envelope we consume.
type response struct {
	Status int             `json:"status"`
	Value  json.RawMessage `json:"value"`
	Error  string          `json:"error,omitempty"`
}

// Open implements source.Source. Verifies reachability with a version
// probe. A no-op when the connection is already open.
func (c *Client) Open(ctx context.Context) error {
	if c.http != nil {
		return nil
	}

	httpClient := &http.Client{Timeout: c.config.Timeout}
	if c.config.Endpoint.IsLocal() {
		socket := c.config.Endpoint.SocketPath
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		// Host is a placeholder; the transport always dials the socket.
		c.url = "http://assay-local" + c.config.Path
	} else {
		c.url = fmt.Sprintf("http://%s:%d%s", c.config.Endpoint.Host, c.config.Endpoint.Port, c.config.Path)
	}
	c.http = httpClient

	if _, err := c.post(ctx, request{Type: "version"}); err != nil {
		c.drop()
		return fmt.Errorf("%w: %s: %v", source.ErrConnectivity, c.config.Endpoint.String(), err)
	}
	return nil
}

// List implements source.Source via a Jolokia search request.
// Identifiers are returned in canonical-name order.
func (c *Client) List(ctx context.Context, query string) ([]source.ObjectID, error) {
	value, err := c.post(ctx, request{Type: "search", MBean: query})
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(value, &names); err != nil {
		return nil, fmt.Errorf("malformed search response: %w", err)
	}

	ids := make([]source.ObjectID, 0, len(names))
	for _, name := range names {
		id, err := source.ParseObjectID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	source.SortIDs(ids)
	return ids, nil
}

// Attributes implements source.Source via a Jolokia read request.
func (c *Client) Attributes(ctx context.Context, id source.ObjectID) (map[string]any, error) {
	value, err := c.post(ctx, request{Type: "read", MBean: id.String()})
	if err != nil {
		return nil, err
	}

	var attrs map[string]any
	if err := json.Unmarshal(value, &attrs); err != nil {
		return nil, fmt.Errorf("malformed read response for %s: %w", id, err)
	}
	return attrs, nil
}

// Invoke implements source.Source via a Jolokia exec request.
func (c *Client) Invoke(ctx context.Context, id source.ObjectID, operation string) error {
	_, err := c.post(ctx, request{Type: "exec", MBean: id.String(), Operation: operation})
	return err
}

// Close implements source.Source. Idempotent; the client can be re-opened.
func (c *Client) Close() error {
	c.drop()
	return nil
}

func (c *Client) drop() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
	c.http = nil
}

// post sends one Jolokia request and returns the raw value payload.
func (c *Client) post(ctx context.Context, req request) (json.RawMessage, error) {
	if c.http == nil {
		return nil, source.ErrNotConnected
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", req.Type, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.Endpoint.Username != "" {
		httpReq.SetBasicAuth(c.config.Endpoint.Username, c.config.Endpoint.Password)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: authentication rejected (HTTP %d)", source.ErrConnectivity, httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request failed: HTTP %d", req.Type, httpResp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Type, err)
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("malformed %s response: %w", req.Type, err)
	}
	if resp.Status != http.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return nil, fmt.Errorf("%s request failed: status %d: %s", req.Type, resp.Status, resp.Error)
	}
	return resp.Value, nil
}

// Verify Client implements source.Source.
var _ source.Source = (*Client)(nil)
