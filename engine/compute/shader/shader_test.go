package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

const testKernel = `// test kernel
//@oxy:include ocean_params
//@oxy:group 0 0 storage_uniform params ocean_params

//@oxy:include dispatch_params
//@oxy:group 0 1 storage_uniform dispatch dispatch_params

//@oxy:include butterfly_entry
//@oxy:group 0 2 storage_read butterfly array<butterfly_entry>

//@oxy:provider 0 3 fft
@group(0) @binding(3) var<storage, read_write> fft: array<vec2<f32>>;

//@oxy:provider 1 0 spectrum
@group(1) @binding(0) var spectrum: texture_2d<f32>;

//@oxy:provider 1 1 normal
@group(1) @binding(1) var normal_map: texture_storage_2d<rgba32float, write>;

@compute @workgroup_size(8, 4)
fn run(@builtin(global_invocation_id) id: vec3<u32>) {
    fft[id.x] = vec2<f32>(f32(params.size), f32(dispatch.stage));
}
`

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantNil  bool
		wantErr  bool
		wantType AnnotationType
		wantRes  AnnotationArg
	}{
		{name: "plain code", line: "let x = 1;", wantNil: true},
		{name: "plain comment", line: "// just a comment", wantNil: true},
		{name: "prefix outside a comment", line: "let a = 1; @oxy:include ocean_params", wantNil: true},
		{name: "include", line: "//@oxy:include ocean_params", wantType: annotationTypeInclude},
		{name: "include with spacing", line: "   // @oxy:include frame_uniform", wantType: annotationTypeInclude},
		{name: "group", line: "//@oxy:group 0 1 storage_uniform frame frame_uniform", wantType: AnnotationTypeBindingGroup, wantRes: AnnotationArgFrame},
		{name: "group array", line: "//@oxy:group 0 2 storage_read butterfly array<butterfly_entry>", wantType: AnnotationTypeBindingGroup, wantRes: AnnotationArgButterfly},
		{name: "provider", line: "//@oxy:provider 2 5 displacement", wantType: AnnotationTypeProvider, wantRes: AnnotationArgDisplacement},
		{name: "empty annotation", line: "//@oxy:", wantErr: true},
		{name: "unknown type", line: "//@oxy:bogus x", wantErr: true},
		{name: "unknown struct", line: "//@oxy:include camera", wantErr: true},
		{name: "include arity", line: "//@oxy:include ocean_params extra", wantErr: true},
		{name: "negative group", line: "//@oxy:provider -1 0 fft", wantErr: true},
		{name: "non-numeric binding", line: "//@oxy:provider 0 b fft", wantErr: true},
		{name: "unknown resource", line: "//@oxy:provider 0 0 vertices", wantErr: true},
		{name: "unknown address space", line: "//@oxy:group 0 0 private params ocean_params", wantErr: true},
		{name: "unknown array element", line: "//@oxy:group 0 0 storage_read fft array<vec2f>", wantErr: true},
		{name: "group arity", line: "//@oxy:group 0 0 storage_uniform params", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAnnotation(tt.line, 7)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAnnotation(%q) succeeded, want error", tt.line)
				}
				if !strings.Contains(err.Error(), "line 7") {
					t.Errorf("error %q does not name the line", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnnotation(%q) error = %v", tt.line, err)
			}
			if tt.wantNil {
				if a != nil {
					t.Errorf("parseAnnotation(%q) = %+v, want nil", tt.line, a)
				}
				return
			}
			if a == nil {
				t.Fatalf("parseAnnotation(%q) = nil", tt.line)
			}
			if a.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", a.Type, tt.wantType)
			}
			res, ok := a.Resource()
			if tt.wantRes == "" {
				if ok {
					t.Errorf("Resource() = %q for an include", res)
				}
				return
			}
			if !ok || res != tt.wantRes {
				t.Errorf("Resource() = (%q, %v), want %q", res, ok, tt.wantRes)
			}
			if a.Group == nil || a.Binding == nil {
				t.Error("binding annotation without group or binding")
			}
		})
	}
}

func TestPreProcessor(t *testing.T) {
	pp := NewPreProcessor()
	if pp.Declarations() != nil {
		t.Error("Declarations() before Process is not nil")
	}
	out, err := pp.Process(testKernel)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	for _, want := range []string{
		"struct OceanParams {",
		"struct DispatchParams {",
		"struct ButterflyEntry {",
		"@group(0) @binding(0) var<uniform> params: OceanParams;",
		"@group(0) @binding(1) var<uniform> dispatch: DispatchParams;",
		"@group(0) @binding(2) var<storage, read> butterfly: array<ButterflyEntry>;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("processed source is missing %q", want)
		}
	}
	if strings.Contains(out, "@oxy:group") || strings.Contains(out, "@oxy:include") {
		t.Error("processed source still contains group or include annotations")
	}

	decls := pp.Declarations()
	want := []AnnotationArg{AnnotationArgParams, AnnotationArgDispatch, AnnotationArgButterfly, AnnotationArgFFT, AnnotationArgSpectrum, AnnotationArgNormal}
	if len(decls) != len(want) {
		t.Fatalf("%d declarations, want %d", len(decls), len(want))
	}
	for i, d := range decls {
		if res, _ := d.Resource(); res != want[i] {
			t.Errorf("declaration %d = %q, want %q", i, res, want[i])
		}
	}

	// A second Process call starts a fresh declarations list.
	if _, err := pp.Process("//@oxy:provider 0 0 fft\n"); err != nil {
		t.Fatal(err)
	}
	if n := len(pp.Declarations()); n != 1 {
		t.Errorf("%d declarations after reprocessing, want 1", n)
	}

	if _, err := pp.Process("//@oxy:include nothing\n"); err == nil {
		t.Error("Process() accepted an unknown struct")
	}
}

func TestNewShaderFromSource(t *testing.T) {
	s, err := NewShaderFromSource("test", testKernel)
	if err != nil {
		t.Fatalf("NewShaderFromSource() error = %v", err)
	}
	if s.Key() != "test" {
		t.Errorf("Key() = %q", s.Key())
	}
	if s.EntryPoint() != "run" {
		t.Errorf("EntryPoint() = %q, want run", s.EntryPoint())
	}
	if got := s.WorkgroupSize(); got != [3]uint32{8, 4, 1} {
		t.Errorf("WorkgroupSize() = %v, want [8 4 1]", got)
	}
	if s.Module() == nil || s.Module().WGSLDescriptor.Code != s.Source() {
		t.Error("module descriptor does not carry the processed source")
	}

	layouts := s.BindGroupLayoutDescriptors()
	if len(layouts) != 2 {
		t.Fatalf("%d bind groups, want 2", len(layouts))
	}

	g0 := s.BindGroupLayoutDescriptor(0).Entries
	if len(g0) != 4 {
		t.Fatalf("group 0 has %d entries, want 4", len(g0))
	}
	wantBuffers := []struct {
		typ     wgpu.BufferBindingType
		minSize uint64
	}{
		{wgpu.BufferBindingTypeUniform, 80},
		{wgpu.BufferBindingTypeUniform, 16},
		{wgpu.BufferBindingTypeReadOnlyStorage, 16},
		{wgpu.BufferBindingTypeStorage, 8},
	}
	for i, w := range wantBuffers {
		e := g0[i]
		if e.Binding != uint32(i) {
			t.Errorf("group 0 entry %d has binding %d", i, e.Binding)
		}
		if e.Buffer.Type != w.typ {
			t.Errorf("binding %d buffer type = %v, want %v", i, e.Buffer.Type, w.typ)
		}
		if e.Buffer.MinBindingSize != w.minSize {
			t.Errorf("binding %d MinBindingSize = %d, want %d", i, e.Buffer.MinBindingSize, w.minSize)
		}
		if e.Visibility != wgpu.ShaderStageCompute {
			t.Errorf("binding %d is not compute-visible", i)
		}
	}

	g1 := s.BindGroupLayoutDescriptor(1).Entries
	if len(g1) != 2 {
		t.Fatalf("group 1 has %d entries, want 2", len(g1))
	}
	if g1[0].Texture.SampleType != wgpu.TextureSampleTypeUnfilterableFloat || g1[0].Texture.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("sampled texture entry = %+v", g1[0].Texture)
	}
	st := g1[1].StorageTexture
	if st.Format != wgpu.TextureFormatRGBA32Float || st.Access != wgpu.StorageTextureAccessWriteOnly || st.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("storage texture entry = %+v", st)
	}

	if name := s.BindGroupVarName(1, 1); name != "normal_map" {
		t.Errorf("BindGroupVarName(1, 1) = %q, want normal_map", name)
	}
	if b, ok := s.BindGroupFromVarName(0, "dispatch"); !ok || b != 1 {
		t.Errorf("BindGroupFromVarName(0, dispatch) = (%d, %v), want (1, true)", b, ok)
	}
	if _, ok := s.BindGroupFromVarName(0, "missing"); ok {
		t.Error("BindGroupFromVarName found a missing variable")
	}
	if res, ok := s.Resource(1, 1); !ok || res != AnnotationArgNormal {
		t.Errorf("Resource(1, 1) = (%q, %v), want normal", res, ok)
	}
	if _, ok := s.Resource(3, 0); ok {
		t.Error("Resource(3, 0) resolved an undeclared binding")
	}
}

func TestNewShaderFromSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "no entry point", source: "//@oxy:include ocean_params\nfn helper() {}\n"},
		{name: "bad annotation", source: "//@oxy:group 0 0 storage_uniform params\n@compute @workgroup_size(1) fn main() {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewShaderFromSource("bad", tt.source); err == nil {
				t.Error("NewShaderFromSource() succeeded, want error")
			}
		})
	}
}

func TestParseWorkgroupSize(t *testing.T) {
	tests := []struct {
		source string
		want   [3]uint32
	}{
		{"@compute @workgroup_size(64) fn main() {}", [3]uint32{64, 1, 1}},
		{"@compute @workgroup_size(16, 16) fn main() {}", [3]uint32{16, 16, 1}},
		{"@compute @workgroup_size( 4 , 2 , 2 ) fn main() {}", [3]uint32{4, 2, 2}},
		{"// @workgroup_size(99)\n@compute fn main() {}", [3]uint32{1, 1, 1}},
	}
	for _, tt := range tests {
		if got := parseWorkgroupSize(tt.source); got != tt.want {
			t.Errorf("parseWorkgroupSize(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestComputeStructSizes(t *testing.T) {
	source := stripComments(`
struct Inner {
    a: vec3<f32>,
    b: f32,
}
struct Outer {
    flag: u32,
    inner: Inner,
    pair: array<vec2<f32>, 3>,
}
struct Tail {
    count: u32,
    items: array<vec4<f32>>,
}
`)
	sizes := computeStructSizes(parseStructBlocks(source))
	tests := []struct {
		name        string
		size, align uint64
	}{
		{"Inner", 16, 16},
		{"Outer", 64, 16},
		{"Tail", 32, 16},
	}
	for _, tt := range tests {
		got, ok := sizes[tt.name]
		if !ok {
			t.Errorf("struct %s was not resolved", tt.name)
			continue
		}
		if got.size != tt.size || got.align != tt.align {
			t.Errorf("struct %s layout = (%d, %d), want (%d, %d)", tt.name, got.size, got.align, tt.size, tt.align)
		}
	}
}

func TestStripComments(t *testing.T) {
	in := "a /* x /* nested */ y */ b // tail\nc"
	got := stripComments(in)
	if strings.Contains(got, "x") || strings.Contains(got, "tail") || !strings.Contains(got, "a") || !strings.Contains(got, "c") {
		t.Errorf("stripComments(%q) = %q", in, got)
	}
}

func TestNewShaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.wgsl")
	if err := os.WriteFile(path, []byte(testKernel), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewShader("from_file", path)
	if s.EntryPoint() != "run" || s.Key() != "from_file" {
		t.Errorf("NewShader() parsed entry point %q, key %q", s.EntryPoint(), s.Key())
	}

	for name, source := range map[string]string{
		"empty path":   "",
		"missing file": filepath.Join(t.TempDir(), "missing.wgsl"),
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("NewShader() did not panic")
				}
			}()
			NewShader("broken", source)
		})
	}
}
