package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// Type is an IR type.
type Type interface {
	String() string
	typ()
}

// IntType is an integer of Bits width (1, 8 or 32).
type IntType struct {
	Bits int
}

// PointerType points at Elem.
type PointerType struct {
	Elem Type
}

// ArrayType is a fixed-length array.
type ArrayType struct {
	Elem Type
	Len  int
}

// VoidType is the result type of functions returning nothing.
type VoidType struct{}

// LabelType is the type of basic blocks.
type LabelType struct{}

func (IntType) typ()     {}
func (PointerType) typ() {}
func (ArrayType) typ()   {}
func (VoidType) typ()    {}
func (LabelType) typ()   {}

func (t IntType) String() string     { return fmt.Sprintf("i%d", t.Bits) }
func (t PointerType) String() string { return t.Elem.String() + "*" }
func (t ArrayType) String() string   { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }
func (VoidType) String() string      { return "void" }
func (LabelType) String() string     { return "label" }

// Common types
var (
	I1    = IntType{Bits: 1}
	I8    = IntType{Bits: 8}
	I32   = IntType{Bits: 32}
	Void  = VoidType{}
	Label = LabelType{}
)

// PtrTo returns a pointer type to t.
func PtrTo(t Type) PointerType { return PointerType{Elem: t} }

// ArrayOf returns an array type of n elements.
func ArrayOf(elem Type, n int) ArrayType { return ArrayType{Elem: elem, Len: n} }

// SizeOf returns the size of t in bytes on the target.
// Every scalar occupies a full word, chars included.
func SizeOf(t Type) (int, error) {
	switch t := t.(type) {
	case IntType, PointerType:
		return 4, nil
	case ArrayType:
		elem, err := SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		return t.Len * elem, nil
	default:
		return 0, errors.Errorf("type %s has no size", t)
	}
}

// Elem returns the pointee of a pointer type, or nil.
func Elem(t Type) Type {
	if p, ok := t.(PointerType); ok {
		return p.Elem
	}
	return nil
}
