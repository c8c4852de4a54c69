package ir

import (
	"fmt"
	"strings"

	"github.com/orizon-lang/iris/internal/errors"
)

// Type is the result type of an instruction.
type Type uint8

const (
	TypeVoid Type = iota
	TypeBool
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypePtr
	// TypeTuple marks multi-result instructions; they never get a register.
	TypeTuple
)

var typeNames = [...]string{
	TypeVoid:  "void",
	TypeBool:  "bool",
	TypeI8:    "i8",
	TypeI16:   "i16",
	TypeI32:   "i32",
	TypeI64:   "i64",
	TypeF32:   "f32",
	TypeF64:   "f64",
	TypePtr:   "ptr",
	TypeTuple: "tuple",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}

	return fmt.Sprintf("type%d", t)
}

// Size returns the storage size in bytes (pointers are 8 bytes wide).
func (t Type) Size() int {
	switch t {
	case TypeBool, TypeI8:
		return 1
	case TypeI16:
		return 2
	case TypeI32, TypeF32:
		return 4
	case TypeI64, TypeF64, TypePtr:
		return 8
	default:
		return 0
	}
}

func (t Type) IsInt() bool   { return t >= TypeBool && t <= TypeI64 || t == TypePtr }
func (t Type) IsFloat() bool { return t == TypeF32 || t == TypeF64 }

// HasValue reports whether an instruction of this type produces a register value.
func (t Type) HasValue() bool { return t != TypeVoid && t != TypeTuple }

// CallConv selects the calling convention of a signature.
type CallConv uint8

const (
	CallConvDefault CallConv = iota
	CallConvC
	CallConvFast
)

func (c CallConv) String() string {
	switch c {
	case CallConvC:
		return "c"
	case CallConvFast:
		return "fast"
	default:
		return "default"
	}
}

// Signature describes a function's calling convention and parameter/result types.
type Signature struct {
	CallConv CallConv
	Params   []Type
	Results  []Type
}

func (s Signature) String() string {
	var b strings.Builder

	b.WriteByte('(')

	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(p.String())
	}

	b.WriteByte(')')

	switch len(s.Results) {
	case 0:
	case 1:
		fmt.Fprintf(&b, " -> %s", s.Results[0])
	default:
		b.WriteString(" -> (")

		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}

			b.WriteString(r.String())
		}

		b.WriteByte(')')
	}

	if s.CallConv != CallConvDefault {
		fmt.Fprintf(&b, " cc(%s)", s.CallConv)
	}

	return b.String()
}

// RegClass is a backend-defined register class.
type RegClass uint8

// NoRegClass is returned for values that need no register.
const NoRegClass RegClass = 0xFF

// Reg is a physical register number within its class.
type Reg uint8

// NoReg marks a virtual register that has not been assigned yet.
const NoReg Reg = 0xFF

// Arch names an instruction set architecture.
type Arch string

// System names an operating system / ABI environment.
type System string

const (
	ArchXR17032 Arch = "xr17032"
	ArchX64     Arch = "x64"

	SystemNone    System = "none"
	SystemLinux   System = "linux"
	SystemWindows System = "windows"
)

// Target is the immutable architecture and system pair a module is built for.
type Target struct {
	Arch   Arch
	System System
}

func (t Target) String() string { return string(t.Arch) + "-" + string(t.System) }

// ParseTarget parses "arch-system". A bare arch defaults to SystemNone.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Target{}, errors.InvalidConfig("target", "empty target")
	}

	arch, sys, ok := strings.Cut(s, "-")
	if !ok {
		return Target{Arch: Arch(arch), System: SystemNone}, nil
	}

	if arch == "" || sys == "" {
		return Target{}, errors.InvalidConfig("target", "malformed target %q, want arch-system", s)
	}

	return Target{Arch: Arch(arch), System: System(sys)}, nil
}
