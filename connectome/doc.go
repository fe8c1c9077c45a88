/*
Package connectome holds the types shared across all dataset backends: voxel
geometry (Point3d, Range, Bounds), the dense label Volume returned by
segmentation cutouts, the Neuron/NeuronList collection returned by skeleton
and mesh accessors, codecs for the SWC and neuroglancer legacy mesh
interchange formats, the uniform error taxonomy, and leveled logging.

No backend-native type appears in this package; backends convert into these
types at their boundary.
*/
package connectome
