package rthist

import "errors"

// Sentinel errors returned by Bridge. Errors carrying more detail wrap one
// of these; test with errors.Is.
var (
	// ErrNoRenderTarget is returned when no source texture was given and no
	// display surface texture is available, or the source is empty.
	ErrNoRenderTarget = errors.New("rthist: no render target")

	// ErrStagingAllocationFailed is returned when the staging texture could
	// not be created.
	ErrStagingAllocationFailed = errors.New("rthist: staging texture allocation failed")

	// ErrDeviceUnavailable is returned when the GPU device could not be
	// resolved.
	ErrDeviceUnavailable = errors.New("rthist: GPU device unavailable")

	// ErrUnsupportedFormat is returned when the source format cannot be
	// copied into the BGRA8 staging texture.
	ErrUnsupportedFormat = errors.New("rthist: unsupported source format")

	// ErrBackendDiagnostic is returned in strict mode when the compute
	// backend reports a diagnostic.
	ErrBackendDiagnostic = errors.New("rthist: compute backend reported a diagnostic")

	// ErrClosed is returned by calls on a closed Bridge.
	ErrClosed = errors.New("rthist: bridge closed")

	// ErrNilHistogram is returned when the output histogram is nil.
	ErrNilHistogram = errors.New("rthist: nil histogram")
)
