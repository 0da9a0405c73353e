package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// group is the @group index this provider binds.
	group int

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized by the compute device.
	// It is the only resource owned by the provider.
	bindGroup *wgpu.BindGroup

	// bindGroupLayout is the pipeline's layout for this group. It is borrowed from the compute device.
	bindGroupLayout *wgpu.BindGroupLayout
}

// BindGroupProvider describes one bind group of one compute pipeline at one dispatch slot.
// The compute device creates a provider per (pipeline, group, slot) the first time a dispatch
// needs it and reuses it for every later frame.
//
// Usage pattern:
//  1. The device creates a provider carrying the pipeline's layout for the group
//  2. The device resolves each binding of the layout to a named resource
//  3. The device creates the bind group once and stores it via SetBindGroup()
//  4. Each dispatch binds BindGroup() at Group()
type BindGroupProvider interface {
	// Release releases the bind group held by this provider. The layout and the bound resources
	// belong to the compute device and are left untouched.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the @group index this provider binds.
	//
	// Returns:
	//   - int: the group index
	Group() int

	// BindGroup returns the created bind group for dispatch.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group was created against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// SetBindGroup sets the bind group after GPU initialization.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label for the provider
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label: label,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	p.bindGroupLayout = nil
}
