/*
Package precomputed reads neuroglancer precomputed segmentation volumes
from blob storage (gs://, s3://, or file:// buckets).  Only unsharded
volumes with raw or gzip chunk encoding are handled; sharded volumes are
served upstream by dedicated services and are out of scope here.
*/
package precomputed

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/blang/semver"
	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// Version of the reader implementation.
var Version = semver.MustParse("0.1.0")

// chunkCache holds recently fetched chunks across all volumes, sized via
// SetCacheSize.
var chunkCache *freecache.Cache

// SetCacheSize initializes chunk caching.  Zero disables it.
func SetCacheSize(numBytes int) {
	if numBytes > 0 {
		chunkCache = freecache.NewCache(numBytes)
		connectome.Infof("Created freecache of ~ %d MB for precomputed chunks.\n", numBytes>>20)
	} else {
		chunkCache = nil
	}
}

// ngScale is one mip level in the volume's info file.
type ngScale struct {
	Key        string     `json:"key"`
	Size       [3]int32   `json:"size"`
	Resolution [3]float64 `json:"resolution"`
	Offset     [3]int32   `json:"voxel_offset"`
	ChunkSizes [][3]int32 `json:"chunk_sizes"`
	Encoding   string     `json:"encoding"`
}

// ngVolume is the neuroglancer precomputed info file.
type ngVolume struct {
	VolumeType  string    `json:"type"` // "image" or "segmentation"
	DataType    string    `json:"data_type"`
	NumChannels int32     `json:"num_channels"`
	Scales      []ngScale `json:"scales"`
}

// Volume reads cutouts from the highest-resolution scale of one
// precomputed volume.
type Volume struct {
	ref    string // bucket URL, e.g. "gs://bucket/path"
	prefix string // key prefix within the bucket

	mu     sync.Mutex
	bucket *blob.Bucket
	vol    *ngVolume
	scale  *ngScale
}

// NewVolume returns a reader for the precomputed volume at ref.  The
// bucket is opened and the info file read lazily on first use.
func NewVolume(ref string) *Volume {
	return &Volume{ref: strings.TrimRight(ref, "/")}
}

func (v *Volume) Ref() string {
	return v.ref
}

// splitRef separates the bucket URL from any in-bucket path, since blob
// drivers address buckets, not directories.
func splitRef(ref string) (bucketURL, prefix string) {
	schemeEnd := strings.Index(ref, "://")
	if schemeEnd < 0 || ref[:schemeEnd] == "file" {
		// file:// URLs name the bucket root directly.
		return ref, ""
	}
	rest := ref[schemeEnd+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return ref, ""
	}
	return ref[:schemeEnd+3] + rest[:slash], rest[slash+1:]
}

// initialize opens the bucket and loads the info file, selecting the
// highest-resolution scale.
func (v *Volume) initialize(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.vol != nil {
		return nil
	}
	bucketURL, prefix := splitRef(v.ref)
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return connectome.WrapBackendErr(err, "opening precomputed bucket %q", bucketURL)
	}
	infoKey := "info"
	if prefix != "" {
		infoKey = prefix + "/info"
	}
	data, err := bucket.ReadAll(ctx, infoKey)
	if err != nil {
		bucket.Close()
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("no precomputed info file at %q: %w", v.ref, connectome.ErrBackendUnavailable)
		}
		return connectome.WrapBackendErr(err, "reading precomputed info at %q", v.ref)
	}
	vol := new(ngVolume)
	if err := json.Unmarshal(data, vol); err != nil {
		bucket.Close()
		return fmt.Errorf("error decoding precomputed info at %q: %v", v.ref, err)
	}
	if len(vol.Scales) == 0 {
		bucket.Close()
		return fmt.Errorf("precomputed info at %q lists no scales", v.ref)
	}
	switch vol.DataType {
	case "uint8", "uint16", "uint32", "uint64":
	default:
		bucket.Close()
		return fmt.Errorf("unsupported precomputed data type %q", vol.DataType)
	}

	// Scale 0 is the highest resolution by convention, but don't trust it.
	scale := &vol.Scales[0]
	for i := 1; i < len(vol.Scales); i++ {
		if vol.Scales[i].Resolution[0] < scale.Resolution[0] {
			scale = &vol.Scales[i]
		}
	}
	if scale.Encoding != "raw" && scale.Encoding != "gzip" {
		bucket.Close()
		return fmt.Errorf("unsupported precomputed chunk encoding %q", scale.Encoding)
	}
	if len(scale.ChunkSizes) == 0 {
		bucket.Close()
		return fmt.Errorf("precomputed scale %q lists no chunk sizes", scale.Key)
	}

	v.bucket = bucket
	v.prefix = prefix
	v.vol = vol
	v.scale = scale
	connectome.Infof("Opened precomputed volume %q: %s %s voxels, chunks %v\n",
		v.ref, vol.DataType, connectome.Point3d(scale.Size), scale.ChunkSizes[0])
	return nil
}

// Extents implements dataset.SegmentationSource.
func (v *Volume) Extents(ctx context.Context) (connectome.Point3d, connectome.Point3d, error) {
	if err := v.initialize(ctx); err != nil {
		return connectome.Point3d{}, connectome.Point3d{}, err
	}
	minPt := connectome.Point3d(v.scale.Offset)
	maxPt := minPt.Add(connectome.Point3d(v.scale.Size)).Sub(connectome.Point3d{1, 1, 1})
	return minPt, maxPt, nil
}

// Slice implements dataset.SegmentationSource by assembling the cutout
// from the chunks it intersects.
func (v *Volume) Slice(ctx context.Context, x, y, z connectome.Range) (*connectome.Volume, error) {
	bounds := connectome.NewBounds(x, y, z)
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	minPt, maxPt, err := v.Extents(ctx)
	if err != nil {
		return nil, err
	}
	if err := bounds.CheckWithin(minPt, maxPt); err != nil {
		return nil, err
	}

	t := connectome.NewTimeLog()
	out := connectome.NewVolume(bounds.StartPoint(), bounds.Size(), 1)
	chunkSize := connectome.Point3d(v.scale.ChunkSizes[0])

	// Chunk grid coordinates are relative to the voxel offset.
	beg := bounds.StartPoint().Sub(minPt)
	end := bounds.EndPoint().Sub(minPt)
	var fetched int
	for cz := beg[2] / chunkSize[2]; cz*chunkSize[2] < end[2]; cz++ {
		for cy := beg[1] / chunkSize[1]; cy*chunkSize[1] < end[1]; cy++ {
			for cx := beg[0] / chunkSize[0]; cx*chunkSize[0] < end[0]; cx++ {
				if err := v.copyChunk(ctx, out, connectome.Point3d{cx, cy, cz}, chunkSize, minPt); err != nil {
					return nil, err
				}
				fetched++
			}
		}
	}
	t.Infof("precomputed cutout %s from %d chunks (%s)", bounds, fetched,
		humanize.Bytes(uint64(len(out.Data)*8)))
	return out, nil
}

// chunkName returns the in-bucket key for a chunk, clipped to the volume
// extents the way neuroglancer names edge chunks.
func (v *Volume) chunkName(chunkCoord, chunkSize connectome.Point3d) string {
	var beg, end connectome.Point3d
	for dim := 0; dim < 3; dim++ {
		beg[dim] = chunkCoord[dim] * chunkSize[dim]
		end[dim] = beg[dim] + chunkSize[dim]
		if end[dim] > v.scale.Size[dim] {
			end[dim] = v.scale.Size[dim]
		}
		beg[dim] += v.scale.Offset[dim]
		end[dim] += v.scale.Offset[dim]
	}
	name := fmt.Sprintf("%s/%d-%d_%d-%d_%d-%d", v.scale.Key,
		beg[0], end[0], beg[1], end[1], beg[2], end[2])
	if v.prefix != "" {
		name = v.prefix + "/" + name
	}
	return name
}

// readChunk fetches one chunk through the cache, decompressing if needed.
func (v *Volume) readChunk(ctx context.Context, name string) ([]byte, error) {
	cacheKey := []byte(v.ref + "/" + name)
	if chunkCache != nil {
		if data, err := chunkCache.Get(cacheKey); err == nil {
			return data, nil
		} else if err != freecache.ErrNotFound {
			connectome.Errorf("chunk cache get: %v\n", err)
		}
	}
	data, err := v.bucket.ReadAll(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			// Missing chunks are background in sparse volumes.
			return nil, nil
		}
		return nil, connectome.WrapBackendErr(err, "reading chunk %q", name)
	}
	if v.scale.Encoding == "gzip" {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("can't uncompress gzip chunk %q: %v", name, err)
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("can't read gzip chunk %q: %v", name, err)
		}
	}
	if chunkCache != nil {
		if err := chunkCache.Set(cacheKey, data, 0); err != nil {
			connectome.Debugf("chunk cache set for %s: %v\n", name, err)
		}
	}
	return data, nil
}

// copyChunk fetches one chunk and copies its intersection with the output
// volume.  Raw chunks hold values with x varying fastest.
func (v *Volume) copyChunk(ctx context.Context, out *connectome.Volume, chunkCoord, chunkSize, minPt connectome.Point3d) error {
	name := v.chunkName(chunkCoord, chunkSize)
	data, err := v.readChunk(ctx, name)
	if err != nil {
		return err
	}
	if data == nil {
		return nil // background
	}

	// Actual stored extent of this chunk in global voxel coordinates.
	var beg, end connectome.Point3d
	for dim := 0; dim < 3; dim++ {
		beg[dim] = chunkCoord[dim]*chunkSize[dim] + v.scale.Offset[dim]
		end[dim] = beg[dim] + chunkSize[dim]
		limit := v.scale.Offset[dim] + v.scale.Size[dim]
		if end[dim] > limit {
			end[dim] = limit
		}
	}
	dims := end.Sub(beg)
	bytesPerVoxel := dtypeSize(v.vol.DataType)
	if want := dims.Prod() * int64(bytesPerVoxel); int64(len(data)) != want {
		return fmt.Errorf("chunk %q has %d bytes, expected %d for %s %s",
			name, len(data), want, v.vol.DataType, dims)
	}

	// Intersection of chunk and requested cutout.
	isectBeg := beg.Max(out.Offset)
	isectEnd := end.Min(out.Offset.Add(out.Size))
	for gz := isectBeg[2]; gz < isectEnd[2]; gz++ {
		for gy := isectBeg[1]; gy < isectEnd[1]; gy++ {
			for gx := isectBeg[0]; gx < isectEnd[0]; gx++ {
				i := int64(gz-beg[2])*int64(dims[1])*int64(dims[0]) +
					int64(gy-beg[1])*int64(dims[0]) + int64(gx-beg[0])
				out.SetValue(gx-out.Offset[0], gy-out.Offset[1], gz-out.Offset[2], 0,
					decodeLabel(data, i, bytesPerVoxel))
			}
		}
	}
	return nil
}

// dtypeSize returns bytes per voxel for the supported data types.
func dtypeSize(dtype string) int32 {
	switch dtype {
	case "uint8":
		return 1
	case "uint16":
		return 2
	case "uint32":
		return 4
	default:
		return 8
	}
}

// decodeLabel reads the i-th little-endian value of the given width.
func decodeLabel(data []byte, i int64, bytesPerVoxel int32) uint64 {
	pos := i * int64(bytesPerVoxel)
	switch bytesPerVoxel {
	case 1:
		return uint64(data[pos])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data[pos:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(data[pos:]))
	default:
		return binary.LittleEndian.Uint64(data[pos:])
	}
}

// Close releases the underlying bucket.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bucket != nil {
		err := v.bucket.Close()
		v.bucket = nil
		v.vol = nil
		return err
	}
	return nil
}

var _ dataset.SegmentationSource = (*Volume)(nil)
