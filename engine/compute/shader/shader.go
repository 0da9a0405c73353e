package shader

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// shader is the implementation of the Shader interface.
// It holds all of the persistent kernel data required for compute pipeline creation and binding.
type shader struct {
	key                        string
	source                     string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor

	pp PreProcessor
}

// Shader defines the interface for a loaded and parsed WGSL compute kernel. It exposes the
// kernel's unique key, pre-processed source, entry point, bind group layout descriptors,
// workgroup size, and the pre-processor declarations that name the resource behind each binding.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// BindGroupLayoutDescriptor retrieves the bind group layout descriptor for a specific group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor for the group, or an empty descriptor if not set
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index for a given group and variable name, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index associated with the variable name, or -1 if not found
	//   - bool: true if the variable name was found, false otherwise
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names for all bind groups.
	//
	// Returns:
	//   - map[int]map[int]string: variable names keyed by group and binding index
	BindGroupVarNames() map[int]map[int]string

	// Resource resolves the resource identity declared for a binding through an @oxy:group or
	// @oxy:provider annotation.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - AnnotationArg: the resource identity bound at (group, binding)
	//   - bool: false if no annotation declares the binding
	Resource(group, binding int) (AnnotationArg, bool)

	// EntryPoint returns the @compute entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions. Returns [1, 1, 1] when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// Declarations returns the parsed @oxy:group and @oxy:provider annotations in source order.
	//
	// Returns:
	//   - []Annotation: the binding declarations parsed from the shader source
	Declarations() []Annotation

	// Compile translates the pre-processed WGSL into SPIR-V. It is used to validate kernels
	// on hosts without a GPU adapter.
	//
	// Returns:
	//   - []byte: the SPIR-V binary
	//   - error: the translation error, if any
	Compile() ([]byte, error)
}

var _ Shader = &shader{}

// NewShader creates a new compute Shader from a WGSL file on disk.
// Panics if the file cannot be read or the annotations are malformed.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key string, sourcePath string) Shader {
	if sourcePath == "" {
		panic(fmt.Sprintf("shader: %s must have a valid source path", key))
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to read source file %q: %v", sourcePath, err))
	}
	s, err := NewShaderFromSource(key, string(data))
	if err != nil {
		panic(fmt.Sprintf("shader: %q: %v", sourcePath, err))
	}
	return s
}

// NewShaderFromSource creates a new compute Shader from embedded WGSL source.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - source: the raw WGSL source, annotations included
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing fails or the source has no @compute entry point
func NewShaderFromSource(key, source string) (Shader, error) {
	s := &shader{
		key: key,
		pp:  NewPreProcessor(),
	}
	if err := s.parseSource(source); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	if s.bindingVarNames[group] == nil {
		return -1, false
	}
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) Resource(group, binding int) (AnnotationArg, bool) {
	for _, d := range s.pp.Declarations() {
		if d.Group == nil || d.Binding == nil || *d.Group != group || *d.Binding != binding {
			continue
		}
		return d.Resource()
	}
	return "", false
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

func (s *shader) Compile() (spirv []byte, err error) {
	// naga panics on some unsupported constructs instead of returning an error
	defer func() {
		if r := recover(); r != nil {
			spirv, err = nil, fmt.Errorf("shader: compile %s: %v", s.key, r)
		}
	}()
	spirv, err = naga.Compile(s.source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %s: %w", s.key, err)
	}
	return spirv, nil
}

// parseSource pre-processes the WGSL source, builds the shader module descriptor, and
// extracts the entry point, workgroup size, and bind group layout descriptors.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return fmt.Errorf("failed to pre-process shader source: %w", err)
	}
	s.entryPoint = parseEntryPoint(s.source)
	if s.entryPoint == "" {
		return fmt.Errorf("shader %s has no @compute entry point", s.key)
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	s.workGroupSize = parseWorkgroupSize(s.source)
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(s.source, wgpu.ShaderStageCompute)
	return nil
}
