package target

import (
	"io"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

type fakeBackend struct {
	Generic
	version string
	t       ir.Target
}

func (b *fakeBackend) Target() ir.Target                                        { return b.t }
func (b *fakeBackend) Kinds() *ir.KindTable                                     { return ir.GenericKinds() }
func (b *fakeBackend) Isel(*ir.Function, *ir.Block, ir.InstID) (ir.Chain, bool) { return ir.Chain{}, false }
func (b *fakeBackend) ChooseRegClass(ir.Kind, ir.Type) ir.RegClass              { return 0 }
func (b *fakeBackend) NumRegs(ir.RegClass) int                                  { return 4 }
func (b *fakeBackend) RegName(_ ir.RegClass, r ir.Reg) string                   { return "r" }
func (b *fakeBackend) RegStatus(ir.CallConv, ir.RegClass, ir.Reg) RegStatus     { return RegClobbered }
func (b *fakeBackend) FinalTouchups(*ir.Function)                               {}
func (b *fakeBackend) EmitAsm(*ir.Function, io.Writer) error                    { return nil }

func factory(version string) Factory {
	return func(t ir.Target) (Backend, error) {
		return &fakeBackend{version: version, t: t}, nil
	}
}

func TestRegistryLookupHighestMatching(t *testing.T) {
	r := NewRegistry()
	linux := []ir.System{ir.SystemNone, ir.SystemLinux}

	for _, v := range []string{"1.0.0", "1.4.2", "2.1.0", "1.2.0"} {
		assert.NilError(t, r.Register(ir.ArchX64, v, linux, factory(v)))
	}

	tests := []struct {
		constraint string
		want       string
	}{
		{"", "2.1.0"},
		{"^1.0", "1.4.2"},
		{"~1.2", "1.2.0"},
		{">= 2", "2.1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			be, v, err := r.Lookup(ir.Target{Arch: ir.ArchX64, System: ir.SystemLinux}, tt.constraint)
			assert.NilError(t, err)
			assert.Equal(t, v.String(), tt.want)
			assert.Equal(t, be.(*fakeBackend).version, tt.want)
			assert.Equal(t, be.Target().System, ir.SystemLinux)
		})
	}
}

func TestRegistryUnsupported(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ir.ArchX64, "1.0.0", []ir.System{ir.SystemLinux}, factory("1.0.0"))

	for _, tc := range []struct {
		target     ir.Target
		constraint string
	}{
		{ir.Target{Arch: ir.ArchXR17032, System: ir.SystemNone}, ""},
		{ir.Target{Arch: ir.ArchX64, System: ir.SystemWindows}, ""},
		{ir.Target{Arch: ir.ArchX64, System: ir.SystemLinux}, ">= 3"},
	} {
		_, _, err := r.Lookup(tc.target, tc.constraint)
		assert.Assert(t, errors.Is(err, errors.ErrUnsupportedTarget), "target %s: %v", tc.target, err)
	}
}

func TestRegistryRejectsDuplicatesAndBadVersions(t *testing.T) {
	r := NewRegistry()

	assert.NilError(t, r.Register(ir.ArchX64, "1.0.0", nil, factory("1.0.0")))
	assert.ErrorContains(t, r.Register(ir.ArchX64, "1.0.0", nil, factory("1.0.0")), "registered twice")
	assert.ErrorContains(t, r.Register(ir.ArchX64, "not-a-version", nil, factory("x")), "bad version")

	_, _, err := r.Lookup(ir.Target{Arch: ir.ArchX64}, "nonsense ~~")
	assert.ErrorContains(t, err, "bad backend version constraint")
}

func TestRegistryEntriesSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ir.ArchXR17032, "1.0.0", nil, factory("a"))
	r.MustRegister(ir.ArchX64, "1.0.0", nil, factory("b"))
	r.MustRegister(ir.ArchX64, "1.1.0", nil, factory("c"))

	var got []string
	for _, e := range r.Entries() {
		got = append(got, string(e.Arch)+"@"+e.Version.String())
	}

	assert.DeepEqual(t, got, []string{"x64@1.1.0", "x64@1.0.0", "xr17032@1.0.0"})
}
