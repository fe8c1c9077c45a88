/*
Package neuprint is a client for neuPrint servers such as
https://neuprint.janelia.org.  Skeletons come from the skeleton endpoint in
SWC form; annotation searches run through the custom Cypher endpoint.
neuPrint has no volume or generic mesh service, so segmentation and meshes
for neuPrint-hosted datasets are served by other backends.
*/
package neuprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/dustin/go-humanize"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"github.com/navis-org/connectomes/connectome"
)

// Version of the client implementation, reported upstream via User-Agent.
var Version = semver.MustParse("0.1.0")

var userAgent = "connectomes-neuprint/" + Version.String()

const defaultTimeout = 2 * time.Minute

// Client issues authenticated requests against one neuPrint server and
// dataset, e.g. dataset "hemibrain:v1.2.1".
type Client struct {
	server  string
	dataset string
	hc      *http.Client
}

// NewClient returns a neuPrint client.  The token is the neuPrint auth
// token (a JWT); pass "" for unauthenticated public servers.
func NewClient(server, dataset, token string) (*Client, error) {
	c := &Client{
		server:  strings.TrimRight(server, "/"),
		dataset: dataset,
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	if token != "" {
		if err := checkToken(token); err != nil {
			return nil, err
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.hc = oauth2.NewClient(context.Background(), src)
		c.hc.Timeout = defaultTimeout
	}
	return c, nil
}

// SetHTTPClient substitutes the transport, mostly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.hc = hc
}

func (c *Client) Server() string {
	return c.server
}

func (c *Client) Dataset() string {
	return c.dataset
}

// checkToken inspects the neuPrint JWT without verifying its signature so
// expired or malformed tokens fail fast with a useful message instead of a
// 401 deep inside a fetch.
func checkToken(token string) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("neuPrint token is not a valid JWT: %v", err)
	}
	if !claims.VerifyExpiresAt(time.Now().Unix(), false) {
		expired := "in the past"
		if exp, ok := claims["exp"].(float64); ok {
			expired = humanize.Time(time.Unix(int64(exp), 0))
		}
		return fmt.Errorf("neuPrint token expired %s: renew it at the neuPrint Account page", expired)
	}
	if email, ok := claims["email"].(string); ok {
		connectome.Debugf("Using neuPrint token for %s\n", email)
	}
	return nil
}

// apiError is the JSON body neuPrint returns on failure.
type apiError struct {
	Error string `json:"error"`
}

// get runs one GET, translating failures into the uniform taxonomy.
// notFoundErr is returned for 404/400 responses when non-nil.
func (c *Client) get(ctx context.Context, path string, notFoundErr error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	t := connectome.NewTimeLog()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "neuPrint GET %s", path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "neuPrint reading %s", path)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest) && notFoundErr != nil:
		return nil, notFoundErr
	default:
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("neuPrint %s: %w: %s", path,
				connectome.ErrBackendUnavailable, apiErr.Error)
		}
		return nil, fmt.Errorf("neuPrint %s returned status %d: %w", path,
			resp.StatusCode, connectome.ErrBackendUnavailable)
	}
	t.Debugf("neuPrint GET %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return data, nil
}

// customQuery runs a Cypher statement through /api/custom/custom and
// returns the column/row table neuPrint responds with.
func (c *Client) customQuery(ctx context.Context, cypher string) (columns []string, rows [][]interface{}, err error) {
	payload, err := json.Marshal(map[string]string{
		"cypher":  cypher,
		"dataset": c.dataset,
	})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/custom/custom",
		bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, connectome.WrapBackendErr(err, "neuPrint custom query")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, connectome.WrapBackendErr(err, "neuPrint reading custom query")
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, nil, fmt.Errorf("neuPrint custom query: %w: %s",
				connectome.ErrBackendUnavailable, apiErr.Error)
		}
		return nil, nil, fmt.Errorf("neuPrint custom query returned status %d: %w",
			resp.StatusCode, connectome.ErrBackendUnavailable)
	}

	var table struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&table); err != nil {
		return nil, nil, fmt.Errorf("error decoding custom query response: %v", err)
	}
	return table.Columns, table.Data, nil
}
