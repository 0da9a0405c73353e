package compute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap/zaptest"
)

// newFallbackDevice returns a WGPU device on the software adapter, skipping when none exists.
func newFallbackDevice(t *testing.T) Compute {
	t.Helper()
	c, err := NewCompute(BackendTypeWGPU,
		WithLogger(zaptest.NewLogger(t)),
		WithForceFallbackAdapter(true),
		WithPollInterval(100*time.Microsecond),
	)
	if errors.Is(err, ErrDeviceUnavailable) {
		t.Skipf("no fallback adapter: %v", err)
	}
	if err != nil {
		t.Fatalf("NewCompute(wgpu) error = %v", err)
	}
	t.Cleanup(c.Release)
	return c
}

func TestWGPUDeviceLostCallback(t *testing.T) {
	c := newFallbackDevice(t)
	backend := c.(*compute).backend.(*wgpuComputeBackendImpl)

	backend.deviceLost(wgpu.DeviceLostReasonDestroyed, "released")
	if c.Lost() {
		t.Fatal("a destroyed device was reported lost")
	}

	backend.deviceLost(wgpu.DeviceLostReasonUnknown, "driver reset")
	if !c.Lost() {
		t.Fatal("device-lost callback did not mark the device")
	}
	if err := c.BeginComputeFrame(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("BeginComputeFrame() after device loss error = %v, want ErrDeviceLost", err)
	}
}

func TestWGPUDispatchAndRelease(t *testing.T) {
	c := newFallbackDevice(t)
	setupAccumulate(t, c, 1, 2, 3)
	p := c.Pipeline("accumulate")
	if p.Pipeline() == nil {
		t.Fatal("registered pipeline holds no compute pipeline")
	}

	if err := c.BeginComputeFrame(); err != nil {
		t.Fatal(err)
	}
	for slot := range 3 {
		if err := c.DispatchCompute("accumulate", slot, p.WorkgroupCount([3]uint32{accumulateElements, 1, 1})); err != nil {
			t.Fatalf("DispatchCompute(slot %d) error = %v", slot, err)
		}
	}
	if err := c.EndComputeFrame(); err != nil {
		t.Fatal(err)
	}
	// ((0*2+1)*2+2)*2+3
	for i, v := range readFloats(t, c, shader.AnnotationArgFFT) {
		if v != 11 {
			t.Fatalf("fft[%d] = %v, want 11", i, v)
		}
	}

	// A readback staged before Release resolves rather than outliving the device.
	pending, err := c.(*compute).stageReadback(shader.AnnotationArgFFT)
	if err != nil {
		t.Fatal(err)
	}
	waited := make(chan error, 1)
	go func() {
		_, err := pending.Wait(context.Background())
		waited <- err
	}()

	released := make(chan struct{})
	go func() {
		c.Release()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("Release() blocked on a pending readback")
	}
	if err := <-waited; err != nil && !errors.Is(err, ErrDeviceLost) {
		t.Errorf("pending readback error = %v, want nil or ErrDeviceLost", err)
	}
	if p.Pipeline() != nil {
		t.Error("Release() kept the compute pipeline")
	}
	if !c.Lost() {
		t.Error("released device does not report lost")
	}
}
