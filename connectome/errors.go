package connectome

import (
	"errors"
	"fmt"
)

// Error taxonomy for the uniform dataset interface.  Backend packages wrap
// their native failures with one of these sentinels so callers never have to
// special-case a backend's own error types.
var (
	// ErrUnknownDataset is returned for lookups of identifiers absent from
	// the registry.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrNotImplemented is returned by accessors for modalities a dataset
	// does not yet support.
	ErrNotImplemented = errors.New("not implemented for this dataset")

	// ErrInvalidRange is returned for malformed or empty voxel ranges.
	ErrInvalidRange = errors.New("invalid voxel range")

	// ErrOutOfBounds is returned for ranges outside the addressable volume.
	ErrOutOfBounds = errors.New("range outside volume bounds")

	// ErrNeuronNotFound is returned when an id does not exist upstream.
	ErrNeuronNotFound = errors.New("neuron not found")

	// ErrBackendUnavailable is returned on transport or auth failure in a
	// delegated backend client.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// WrapBackendErr tags a backend transport failure with ErrBackendUnavailable
// while keeping the underlying cause in the chain.
func WrapBackendErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w: %v", msg, ErrBackendUnavailable, err)
}
