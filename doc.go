// Package rthist computes 256-bin intensity histograms of GPU render targets.
//
// # Overview
//
// rthist bridges a rendering layer and a histogram compute backend. Given a
// render-target texture (or, when none is given, the current display
// surface), a Bridge copies it into a BGRA8 staging texture it owns, waits
// for the copy to land, and hands the staging texture to a compute backend
// that fills 256 bins.
//
// # Quick Start
//
//	import "github.com/gogpu/rthist"
//
//	b, err := rthist.New(nil) // system Vulkan device
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	var h rthist.Histogram
//	err = b.ComputeHistogram(ctx, &rthist.Target{
//		Texture: tex,
//		Width:   1920,
//		Height:  1080,
//	}, &h)
//
// # Devices
//
// The GPU device is resolved on the first call through a DeviceResolver and
// cached for the life of the Bridge. SystemDevice opens a process-wide
// Vulkan device that is never torn down. FromProvider shares the device of
// a host application (for example gogpu), and FromHAL wraps an open HAL
// device.
//
// # Threading
//
// GPU commands are recorded and submitted on a single render goroutine
// locked to its OS thread. ComputeHistogram enqueues the copy there and
// blocks until it has completed. Calls on one Bridge are serialised.
//
// # Backends
//
// The compute sub-package defines the Backend interface and ships a WGSL
// compute-shader backend, a CPU readback backend and a fallback that
// combines them. Any function with the right signature can be used through
// compute.Func.
//
// # Staging
//
// The staging texture is created lazily and reallocated only when the
// source dimensions change. Its format is always BGRA8Unorm, so sources
// must be BGRA8Unorm or BGRA8UnormSrgb.
package rthist

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
