package compute

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
)

// stallingBackend wraps a backend whose readbacks never complete until release is closed.
type stallingBackend struct {
	ComputeBackend
	staged  chan struct{}
	release chan struct{}
}

func (b *stallingBackend) StageReadback(d ResourceDescriptor) (Readback, error) {
	inner, err := b.ComputeBackend.StageReadback(d)
	if err != nil {
		return nil, err
	}
	return &stalledReadback{inner: inner, backend: b}, nil
}

type stalledReadback struct {
	inner   Readback
	backend *stallingBackend
}

func (r *stalledReadback) Wait(ctx context.Context) ([]byte, error) {
	r.backend.staged <- struct{}{}
	select {
	case <-r.backend.release:
		return r.inner.Wait(ctx)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrReadbackTimeout, ctx.Err())
	}
}

func TestComputeFramesDuringReadback(t *testing.T) {
	c := newTestDevice(t)
	setupAccumulate(t, c, 1)
	impl := c.(*compute)
	stalling := &stallingBackend{
		ComputeBackend: impl.backend,
		staged:         make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
	impl.backend = stalling

	type result struct {
		data []byte
		err  error
	}
	read := make(chan result, 1)
	go func() {
		data, err := c.ReadResource(context.Background(), shader.AnnotationArgFFT)
		read <- result{data, err}
	}()
	select {
	case <-stalling.staged:
	case <-time.After(5 * time.Second):
		t.Fatal("readback was never staged")
	}

	frame := make(chan error, 1)
	go func() {
		if err := c.WriteBuffers([]BufferWrite{{Resource: shader.AnnotationArgFFT, Data: make([]byte, 4)}}); err != nil {
			frame <- err
			return
		}
		if err := c.BeginComputeFrame(); err != nil {
			frame <- err
			return
		}
		if err := c.DispatchCompute("accumulate", 0, [3]uint32{3, 1, 1}); err != nil {
			frame <- err
			return
		}
		frame <- c.EndComputeFrame()
	}()
	select {
	case err := <-frame:
		if err != nil {
			t.Fatalf("frame during readback error = %v", err)
		}
	case <-time.After(5 * time.Second):
		close(stalling.release)
		t.Fatal("frame blocked behind a pending readback")
	}

	close(stalling.release)
	got := <-read
	if got.err != nil {
		t.Fatalf("ReadResource() error = %v", got.err)
	}
	if len(got.data) != accumulateElements*4 {
		t.Errorf("readback is %d bytes, want %d", len(got.data), accumulateElements*4)
	}
}

func TestComputeReadbackTimeout(t *testing.T) {
	c := newTestDevice(t)
	setupAccumulate(t, c, 1)
	impl := c.(*compute)
	stalling := &stallingBackend{
		ComputeBackend: impl.backend,
		staged:         make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
	impl.backend = stalling
	defer close(stalling.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ReadResource(ctx, shader.AnnotationArgFFT); !errors.Is(err, ErrReadbackTimeout) {
		t.Errorf("ReadResource() error = %v, want ErrReadbackTimeout", err)
	}
	if c.Lost() {
		t.Error("a timed out readback marked the device lost")
	}
}

func TestComputeRelease(t *testing.T) {
	c, err := NewCompute(BackendTypeEmulated, WithComputeWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	setupAccumulate(t, c, 1)
	c.Release()
	c.Release()

	if !c.Lost() {
		t.Error("released device does not report lost")
	}
	if err := c.BeginComputeFrame(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("BeginComputeFrame() after Release error = %v, want ErrDeviceLost", err)
	}
	if _, err := c.ReadResource(context.Background(), shader.AnnotationArgFFT); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("ReadResource() after Release error = %v, want ErrDeviceLost", err)
	}
	if len(c.Pipelines()) != 0 {
		t.Errorf("Pipelines() has %d entries after Release", len(c.Pipelines()))
	}
}
