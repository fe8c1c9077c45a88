/*
Package catmaid is a client for CATMAID servers, used by the Virtual Fly
Brain dataset mirrors.  It covers the calls the uniform interface needs:
compact-detail skeletons, volume meshes exported as STL, and annotation
searches via query-targets.
*/
package catmaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/dustin/go-humanize"

	"github.com/navis-org/connectomes/connectome"
)

// Version of the client implementation, reported upstream via User-Agent.
var Version = semver.MustParse("0.1.0")

var userAgent = "connectomes-catmaid/" + Version.String()

const defaultTimeout = 2 * time.Minute

// Client issues authenticated requests against one CATMAID server.
type Client struct {
	server string
	token  string
	hc     *http.Client
}

// Option modifies client construction.
type Option func(*Client)

// WithToken sets the CATMAID API token, sent as an X-Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient substitutes the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// NewClient returns a client for the CATMAID instance at server, e.g.
// "https://fafb.catmaid.virtualflybrain.org".
func NewClient(server string, opts ...Option) *Client {
	c := &Client{
		server: strings.TrimRight(server, "/"),
		hc:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Server() string {
	return c.server
}

// apiError is the JSON body CATMAID's django layer returns on failure.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// do runs one request and returns the response body, translating CATMAID
// error payloads and transport failures into the uniform taxonomy.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if method == http.MethodPost && form != nil {
		body = strings.NewReader(form.Encode())
	}
	reqURL := c.server + "/" + strings.TrimLeft(path, "/")
	if method == http.MethodGet && form != nil {
		reqURL += "?" + form.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set("X-Authorization", "Token "+c.token)
	}

	t := connectome.NewTimeLog()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "CATMAID %s %s", method, path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "CATMAID reading %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			var apiErr apiError
			if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
				return nil, fmt.Errorf("CATMAID %s: %s: %w: %s", path, apiErr.Type,
					connectome.ErrBackendUnavailable, apiErr.Error)
			}
		}
		return nil, fmt.Errorf("CATMAID %s returned status %d: %w", path,
			resp.StatusCode, connectome.ErrBackendUnavailable)
	}
	t.Debugf("CATMAID %s %s (%s)", method, path, humanize.Bytes(uint64(len(data))))
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, form)
}

// decodeJSON unmarshals with json.Number so large ids survive intact.
func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
