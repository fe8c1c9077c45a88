/*
Package dataset defines the uniform adapter contract: one capability
interface per modality (segmentation, skeleton, mesh, annotations,
connectivity) and a
Dataset struct that composes backend implementations by explicit field
assignment.  A Dataset always satisfies the full contract; modalities a
backend does not serve are filled with stubs that fail with
connectome.ErrNotImplemented.
*/
package dataset

import (
	"context"
	"fmt"

	"github.com/navis-org/connectomes/connectome"
)

// SegmentationSource serves rectangular cutouts of a segmentation volume.
type SegmentationSource interface {
	// Slice returns the dense label volume for three half-open voxel
	// ranges in dataset-native coordinates.  The result has shape
	// (x, y, z, 1).
	Slice(ctx context.Context, x, y, z connectome.Range) (*connectome.Volume, error)

	// Extents returns the first and last addressable voxel.
	Extents(ctx context.Context) (minPt, maxPt connectome.Point3d, err error)
}

// SkeletonSource serves skeletal reconstructions by neuron id.
type SkeletonSource interface {
	Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error)
}

// MeshSource serves surface meshes by neuron id.
type MeshSource interface {
	Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error)
}

// AnnotationQuery selects neurons or annotation terms.  Zero-value fields
// are ignored.
type AnnotationQuery struct {
	// Name matches the neuron name or annotation term, substring unless
	// Exact is set.
	Name  string
	Exact bool

	// Type matches the cell type where the backend has one.
	Type string

	// AnnotatedWith restricts to entities carrying all given terms.
	AnnotatedWith []string

	// IDs restricts to the given neuron ids.
	IDs []uint64
}

// AnnotationRecord is one search hit.
type AnnotationRecord struct {
	ID   uint64
	Name string
	Type string
}

// AnnotationSource searches a dataset's neuron annotations.
type AnnotationSource interface {
	Find(ctx context.Context, q AnnotationQuery) ([]AnnotationRecord, error)
}

// Edge is one aggregated synaptic connection between two neurons.
type Edge struct {
	Source uint64
	Target uint64

	// Weight is the synapse count of the connection.
	Weight int64
}

// ConnectivitySource serves aggregated synaptic connectivity.
type ConnectivitySource interface {
	// Edges returns the edges between sources and targets, one per
	// connected pair.  An empty sources or targets slice leaves that side
	// unconstrained, so Edges(ctx, ids, nil) is "all outgoing partners of
	// ids" and Edges(ctx, nil, ids) all incoming ones.
	Edges(ctx context.Context, sources, targets []uint64) ([]Edge, error)
}

// Dataset is the uniform adapter for one registered dataset.  Capability
// fields are assigned at construction; nil fields are replaced by
// not-implemented stubs so every accessor is always callable.
type Dataset struct {
	Name      string
	DOI       string
	Reference string

	segmentation SegmentationSource
	skeleton     SkeletonSource
	mesh         MeshSource
	annotations  AnnotationSource
	connectivity ConnectivitySource
}

// Config lists which backend implementation satisfies each capability.
type Config struct {
	Name      string
	DOI       string
	Reference string

	Segmentation SegmentationSource
	Skeleton     SkeletonSource
	Mesh         MeshSource
	Annotations  AnnotationSource
	Connectivity ConnectivitySource
}

// New composes a dataset adapter from explicit capability assignments.
func New(c Config) *Dataset {
	d := &Dataset{
		Name:         c.Name,
		DOI:          c.DOI,
		Reference:    c.Reference,
		segmentation: c.Segmentation,
		skeleton:     c.Skeleton,
		mesh:         c.Mesh,
		annotations:  c.Annotations,
		connectivity: c.Connectivity,
	}
	if d.segmentation == nil {
		d.segmentation = notImplemented{d.Name}
	}
	if d.skeleton == nil {
		d.skeleton = notImplemented{d.Name}
	}
	if d.mesh == nil {
		d.mesh = notImplemented{d.Name}
	}
	if d.annotations == nil {
		d.annotations = notImplemented{d.Name}
	}
	if d.connectivity == nil {
		d.connectivity = notImplemented{d.Name}
	}
	return d
}

// Segmentation returns the segmentation accessor.
func (d *Dataset) Segmentation() SegmentationSource {
	return d.segmentation
}

// Skeleton returns the skeleton accessor.
func (d *Dataset) Skeleton() SkeletonSource {
	return d.skeleton
}

// Mesh returns the mesh accessor.
func (d *Dataset) Mesh() MeshSource {
	return d.mesh
}

// Annotations returns the annotation accessor.
func (d *Dataset) Annotations() AnnotationSource {
	return d.annotations
}

// Connectivity returns the synaptic connectivity accessor.
func (d *Dataset) Connectivity() ConnectivitySource {
	return d.connectivity
}

func (d *Dataset) String() string {
	return fmt.Sprintf("dataset %q (%s)", d.Name, d.Reference)
}

// notImplemented satisfies every capability interface by failing.
type notImplemented struct {
	dataset string
}

func (n notImplemented) err(modality string) error {
	return fmt.Errorf("%s for dataset %q: %w", modality, n.dataset, connectome.ErrNotImplemented)
}

func (n notImplemented) Slice(ctx context.Context, x, y, z connectome.Range) (*connectome.Volume, error) {
	return nil, n.err("segmentation")
}

func (n notImplemented) Extents(ctx context.Context) (connectome.Point3d, connectome.Point3d, error) {
	return connectome.Point3d{}, connectome.Point3d{}, n.err("segmentation")
}

func (n notImplemented) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	return nil, n.err("skeletons/meshes")
}

func (n notImplemented) Find(ctx context.Context, q AnnotationQuery) ([]AnnotationRecord, error) {
	return nil, n.err("annotations")
}

func (n notImplemented) Edges(ctx context.Context, sources, targets []uint64) ([]Edge, error) {
	return nil, n.err("connectivity")
}
