/*
Package dvidnode is a read-only client for one version node of a DVID
server.  Segmentation cutouts come from a labelmap instance via the raw
voxel endpoint, skeletons from a keyvalue instance of SWC files, and
meshes from a keyvalue instance of neuroglancer legacy-format files.
*/
package dvidnode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"

	"github.com/navis-org/connectomes/connectome"
)

// Version of the client implementation, reported upstream via User-Agent.
var Version = semver.MustParse("0.1.0")

var userAgent = "connectomes-dvid/" + Version.String()

const defaultTimeout = 3 * time.Minute

// kvCache holds recently fetched keyvalue payloads (SWC files, mesh
// fragments) across all DVID clients, sized via SetCacheSize.
var kvCache *freecache.Cache

// SetCacheSize initializes keyvalue payload caching.  Zero disables it.
func SetCacheSize(numBytes int) {
	if numBytes > 0 {
		kvCache = freecache.NewCache(numBytes)
		connectome.Infof("Created freecache of ~ %d MB for DVID keyvalue payloads.\n", numBytes>>20)
	} else {
		kvCache = nil
	}
}

// Client issues requests against one DVID server + version node.
type Client struct {
	server string
	uuid   string
	hc     *http.Client
}

// Option modifies client construction.
type Option func(*Client)

// WithHTTPClient substitutes the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// NewClient returns a client for the given DVID server and version node
// UUID, e.g. NewClient("https://hemibrain-dvid.janelia.org", "52a13").
func NewClient(server, uuid string, opts ...Option) *Client {
	c := &Client{
		server: strings.TrimRight(server, "/"),
		uuid:   uuid,
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

func (c *Client) nodeURL(path string) string {
	return fmt.Sprintf("%s/api/node/%s/%s", c.server, c.uuid, path)
}

// get runs one GET against the node API.  notFoundOK controls whether 404s
// surface as ErrNeuronNotFound rather than backend failures.
func (c *Client) get(ctx context.Context, path string, notFoundErr error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	t := connectome.NewTimeLog()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "DVID GET %s", path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "DVID reading %s", path)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest) && notFoundErr != nil:
		return nil, notFoundErr
	default:
		return nil, fmt.Errorf("DVID %s returned status %d: %w", path,
			resp.StatusCode, connectome.ErrBackendUnavailable)
	}
	t.Debugf("DVID GET %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return data, nil
}

// getKey fetches one keyvalue entry, going through the payload cache.
func (c *Client) getKey(ctx context.Context, instance, key string, notFoundErr error) ([]byte, error) {
	cacheKey := []byte(c.server + "/" + c.uuid + "/" + instance + "/" + key)
	if kvCache != nil {
		if data, err := kvCache.Get(cacheKey); err == nil {
			return data, nil
		} else if err != freecache.ErrNotFound {
			connectome.Errorf("keyvalue cache get: %v\n", err)
		}
	}
	data, err := c.get(ctx, fmt.Sprintf("%s/key/%s", instance, key), notFoundErr)
	if err != nil {
		return nil, err
	}
	if kvCache != nil {
		if err := kvCache.Set(cacheKey, data, 0); err != nil {
			connectome.Debugf("keyvalue cache set for %s: %v\n", key, err)
		}
	}
	return data, nil
}
