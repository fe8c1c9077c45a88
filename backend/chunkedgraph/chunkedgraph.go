/*
Package chunkedgraph is a client for graphene/ChunkedGraph segmentation
services (FlyWire, FANC, MICrONS).  It covers root-to-supervoxel lookups
with an optional persistent cache and mesh retrieval through the meshing
service's manifest endpoint.
*/
package chunkedgraph

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"
	"github.com/dustin/go-humanize"
	"golang.org/x/oauth2"

	"github.com/navis-org/connectomes/connectome"
)

// Version of the client implementation, reported upstream via User-Agent.
var Version = semver.MustParse("0.1.0")

var userAgent = "connectomes-chunkedgraph/" + Version.String()

const defaultTimeout = 3 * time.Minute

// Client issues authenticated requests against one ChunkedGraph table.
type Client struct {
	server string // e.g. "https://prod.flywire-daf.com"
	table  string // e.g. "fly_v31"
	hc     *http.Client

	mu         sync.Mutex
	leavesDB   *badger.DB
	leavesPath string
}

// Option modifies client construction.
type Option func(*Client)

// WithToken sets the CAVE token used as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.hc = oauth2.NewClient(context.Background(), src)
		c.hc.Timeout = defaultTimeout
	}
}

// WithHTTPClient substitutes the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLeavesCache enables a persistent root-to-supervoxels cache at the
// given directory.  Roots are immutable once edits stop, so entries never
// expire.
func WithLeavesCache(path string) Option {
	return func(c *Client) { c.leavesPath = path }
}

// NewClient returns a client for the ChunkedGraph table at server.
func NewClient(server, table string, opts ...Option) *Client {
	c := &Client{
		server: strings.TrimRight(server, "/"),
		table:  table,
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

func (c *Client) Table() string {
	return c.table
}

// Close releases the leaves cache if open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.leavesDB != nil {
		err := c.leavesDB.Close()
		c.leavesDB = nil
		return err
	}
	return nil
}

// get runs one GET, translating failures into the uniform taxonomy.
func (c *Client) get(ctx context.Context, path string, notFoundErr error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	t := connectome.NewTimeLog()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "ChunkedGraph GET %s", path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectome.WrapBackendErr(err, "ChunkedGraph reading %s", path)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest) && notFoundErr != nil:
		return nil, notFoundErr
	default:
		return nil, fmt.Errorf("ChunkedGraph %s returned status %d: %w", path,
			resp.StatusCode, connectome.ErrBackendUnavailable)
	}
	t.Debugf("ChunkedGraph GET %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return data, nil
}

// Leaves returns the supervoxel ids making up a root segment, consulting
// the persistent cache first.
func (c *Client) Leaves(ctx context.Context, root uint64) ([]uint64, error) {
	if leaves, found := c.cachedLeaves(root); found {
		return leaves, nil
	}
	path := fmt.Sprintf("/segmentation/api/v1/table/%s/node/%d/leaves", c.table, root)
	notFound := fmt.Errorf("root %d: %w", root, connectome.ErrNeuronNotFound)
	data, err := c.get(ctx, path, notFound)
	if err != nil {
		return nil, err
	}
	var resp struct {
		LeafIDs []uint64 `json:"leaf_ids"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("error decoding leaves for root %d: %v", root, err)
	}
	c.storeLeaves(root, resp.LeafIDs)
	return resp.LeafIDs, nil
}

// openLeavesDB lazily opens the badger cache.
func (c *Client) openLeavesDB() *badger.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.leavesDB != nil || c.leavesPath == "" {
		return c.leavesDB
	}
	opts := badger.DefaultOptions(c.leavesPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		connectome.Errorf("Unable to open leaves cache at %q: %v\n", c.leavesPath, err)
		c.leavesPath = "" // don't retry every call
		return nil
	}
	c.leavesDB = db
	return db
}

func leavesKey(table string, root uint64) []byte {
	key := make([]byte, len(table)+8)
	copy(key, table)
	binary.BigEndian.PutUint64(key[len(table):], root)
	return key
}

func (c *Client) cachedLeaves(root uint64) ([]uint64, bool) {
	db := c.openLeavesDB()
	if db == nil {
		return nil, false
	}
	var leaves []uint64
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(leavesKey(c.table, root))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			leaves = make([]uint64, len(val)/8)
			for i := range leaves {
				leaves[i] = binary.LittleEndian.Uint64(val[i*8:])
			}
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false
	}
	if err != nil {
		connectome.Errorf("leaves cache get for root %d: %v\n", root, err)
		return nil, false
	}
	return leaves, true
}

func (c *Client) storeLeaves(root uint64, leaves []uint64) {
	db := c.openLeavesDB()
	if db == nil {
		return
	}
	val := make([]byte, len(leaves)*8)
	for i, leaf := range leaves {
		binary.LittleEndian.PutUint64(val[i*8:], leaf)
	}
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(leavesKey(c.table, root), val)
	})
	if err != nil {
		connectome.Errorf("leaves cache set for root %d: %v\n", root, err)
	}
}
