// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct injection, bind group declaration, and resource binding.
// The parsed results are stored as Annotation values and consumed by the compute device,
// which resolves every declared binding to a named device resource. A kernel therefore
// declares its inputs and outputs once, in its own source, and no per-kernel bind group
// wiring exists on the host.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site. The struct source is embedded from the
	// corresponding Go GPU type's .wgsl asset file. This annotation does not produce
	// a declaration and is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include ocean_params
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// for a registered struct type and appends an Annotation to the declarations list.
	// The variable name is the resource identity the device binds to it.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <resource> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform params ocean_params
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider binds a hand-written WGSL declaration to a resource identity
	// without generating any WGSL output. It is used for raw WGSL types (textures, flat
	// arrays of vectors) that have no registered struct.
	//
	// Syntax: //@oxy:provider <group> <binding> <resource>
	//
	// Example: //@oxy:provider 0 1 spectrum
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include, group, or provider).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key (e.g. "ocean_params")
	//   - group:    [0] = address space, [1] = resource identity, [2] = WGSL type key
	//   - provider: [0] = resource identity
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group and provider annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil for include annotations.
	Binding *int
}

// Resource returns the resource identity bound by a group or provider annotation.
//
// Returns:
//   - AnnotationArg: the resource identity
//   - bool: false for include annotations
func (a Annotation) Resource() (AnnotationArg, bool) {
	switch a.Type {
	case AnnotationTypeBindingGroup:
		return a.Args[1], true
	case AnnotationTypeProvider:
		return a.Args[0], true
	default:
		return "", false
	}
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// Each maps to a Go GPU type in engine/ocean/gpu with an embedded .wgsl asset file.

const (
	// AnnotationArgOceanParams identifies the OceanParams struct.
	// Source: engine/ocean/gpu/assets/ocean_params.wgsl
	AnnotationArgOceanParams AnnotationArg = "ocean_params"

	// AnnotationArgFrameUniform identifies the FrameUniform struct.
	// Source: engine/ocean/gpu/assets/frame_uniform.wgsl
	AnnotationArgFrameUniform AnnotationArg = "frame_uniform"

	// AnnotationArgDispatchParams identifies the DispatchParams struct.
	// Source: engine/ocean/gpu/assets/dispatch_params.wgsl
	AnnotationArgDispatchParams AnnotationArg = "dispatch_params"

	// AnnotationArgButterflyEntry identifies the ButterflyEntry struct.
	// Source: engine/ocean/gpu/assets/butterfly_entry.wgsl
	AnnotationArgButterflyEntry AnnotationArg = "butterfly_entry"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Resource identity arguments ────────────────────────────────────────────────
// These name the device resources a kernel binds. The compute device looks each one up
// when it builds a pipeline's bind groups.

const (
	// AnnotationArgParams identifies the static OceanParams uniform.
	AnnotationArgParams AnnotationArg = "params"

	// AnnotationArgFrame identifies the per-frame FrameUniform.
	AnnotationArgFrame AnnotationArg = "frame"

	// AnnotationArgDispatch identifies the slotted DispatchParams uniform. Each dispatch
	// binds its own slot.
	AnnotationArgDispatch AnnotationArg = "dispatch"

	// AnnotationArgSpectrum identifies the base spectrum texture.
	AnnotationArgSpectrum AnnotationArg = "spectrum"

	// AnnotationArgButterfly identifies the butterfly table storage buffer.
	AnnotationArgButterfly AnnotationArg = "butterfly"

	// AnnotationArgFFT identifies the ping-pong complex field storage buffer.
	AnnotationArgFFT AnnotationArg = "fft"

	// AnnotationArgDisplacement identifies the displacement map texture.
	AnnotationArgDisplacement AnnotationArg = "displacement"

	// AnnotationArgNormal identifies the normal map texture.
	AnnotationArgNormal AnnotationArg = "normal"
)

// validStructTypes lists all AnnotationArg values that are accepted as struct type
// arguments in @oxy:include and @oxy:group annotations. Each entry must have a
// corresponding registryEntry in the PreProcessor's structRegistry.
var validStructTypes = []AnnotationArg{
	AnnotationArgOceanParams,
	AnnotationArgFrameUniform,
	AnnotationArgDispatchParams,
	AnnotationArgButterflyEntry,
}

// validAddressSpaces lists all AnnotationArg values that are accepted as address
// space arguments in @oxy:group annotations. Each maps to a WGSL var<> declaration.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// validResources lists all AnnotationArg values that are accepted as resource identities
// in @oxy:group and @oxy:provider annotations.
var validResources = []AnnotationArg{
	AnnotationArgParams,
	AnnotationArgFrame,
	AnnotationArgDispatch,
	AnnotationArgSpectrum,
	AnnotationArgButterfly,
	AnnotationArgFFT,
	AnnotationArgDisplacement,
	AnnotationArgNormal,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, resource, struct type)", lineNum)
		}
		groupInt, bindingInt, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(validResources, AnnotationArg(args[4])) {
			return nil, fmt.Errorf("line %d: unknown resource %q in @oxy group annotation", lineNum, args[4])
		}
		typeArg := args[5]
		if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
			inner = strings.TrimSuffix(inner, ">")
			if !slices.Contains(validStructTypes, AnnotationArg(inner)) {
				return nil, fmt.Errorf("line %d: unknown array element type %q in @oxy group annotation", lineNum, inner)
			}
		} else if !slices.Contains(validStructTypes, AnnotationArg(typeArg)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, typeArg)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case string(AnnotationTypeProvider):
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires exactly three arguments (group, binding, resource)", lineNum)
		}
		groupInt, bindingInt, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validResources, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown resource %q in @oxy provider annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// parseGroupBinding parses the group and binding index arguments shared by the group and
// provider annotations.
func parseGroupBinding(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil || group < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q in @oxy annotation", lineNum, groupArg)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q in @oxy annotation", lineNum, bindingArg)
	}
	return group, binding, nil
}
