package compute

import "errors"

var (
	// ErrDeviceUnavailable is returned when no compatible adapter or device can be acquired.
	ErrDeviceUnavailable = errors.New("compute: no compatible device available")

	// ErrDeviceLost is returned once the backend context has been invalidated. Every resource
	// created on the device must be rebuilt on a new device.
	ErrDeviceLost = errors.New("compute: device lost")

	// ErrReadbackTimeout is returned when a readback does not complete before its deadline.
	ErrReadbackTimeout = errors.New("compute: readback timed out")

	// ErrUnknownResource is returned when a write, read or binding names a resource that was never created.
	ErrUnknownResource = errors.New("compute: unknown resource")

	// ErrUnknownPipeline is returned when a dispatch names a pipeline that was never registered.
	ErrUnknownPipeline = errors.New("compute: unknown pipeline")

	// ErrNoFrame is returned when a dispatch is encoded outside BeginComputeFrame/EndComputeFrame.
	ErrNoFrame = errors.New("compute: no compute frame in progress")
)
