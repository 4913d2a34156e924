package fastc

import (
	"fmt"
	"strings"
)

// Primitive enumerates the primitive types of the language.
type Primitive int

const (
	I8 Primitive = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	Usize
	Isize
)

var primitiveNames = [...]string{
	I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	F32: "f32", F64: "f64", Bool: "bool",
	Usize: "usize", Isize: "isize",
}

func (p Primitive) String() string { return primitiveNames[p] }

// TypeExpr is the pointer/ownership/option/result type algebra.
// Variants are closed; String spells the type in source syntax for
// diagnostics.
type TypeExpr interface {
	typeExpr()
	String() string
}

// PrimType is a primitive type such as i32 or bool.
type PrimType struct{ Kind Primitive }

// VoidType appears only as a return type.
type VoidType struct{}

// NamedType references a user-declared struct, enum or opaque type.
type NamedType struct{ Name string }

// RefType is ref(T), a non-null immutable reference.
type RefType struct{ Elem TypeExpr }

// MrefType is mref(T), a non-null mutable reference.
type MrefType struct{ Elem TypeExpr }

// RawType is raw(T), a nullable immutable raw pointer.
type RawType struct{ Elem TypeExpr }

// RawmType is rawm(T), a nullable mutable raw pointer.
type RawmType struct{ Elem TypeExpr }

// OwnType is own(T), an owning pointer.  Release insertion belongs to
// a future ownership phase; the kind is carried so that phase can act
// on it.
type OwnType struct{ Elem TypeExpr }

// SliceType is slice(T), a {data, len} view over contiguous elements.
type SliceType struct{ Elem TypeExpr }

// ArrType is arr(T, N) with a constant-expression size.
type ArrType struct {
	Elem TypeExpr
	Size ConstExpr
}

// OptType is opt(T).
type OptType struct{ Elem TypeExpr }

// ResType is res(T, E).
type ResType struct{ Ok, Err TypeExpr }

// FnType is fn(params) -> ret, optionally unsafe.
type FnType struct {
	IsUnsafe bool
	Params   []TypeExpr
	Ret      TypeExpr
}

func (*PrimType) typeExpr()  {}
func (*VoidType) typeExpr()  {}
func (*NamedType) typeExpr() {}
func (*RefType) typeExpr()   {}
func (*MrefType) typeExpr()  {}
func (*RawType) typeExpr()   {}
func (*RawmType) typeExpr()  {}
func (*OwnType) typeExpr()   {}
func (*SliceType) typeExpr() {}
func (*ArrType) typeExpr()   {}
func (*OptType) typeExpr()   {}
func (*ResType) typeExpr()   {}
func (*FnType) typeExpr()    {}

func (t *PrimType) String() string  { return t.Kind.String() }
func (t *VoidType) String() string  { return "void" }
func (t *NamedType) String() string { return t.Name }
func (t *RefType) String() string   { return fmt.Sprintf("ref(%s)", t.Elem) }
func (t *MrefType) String() string  { return fmt.Sprintf("mref(%s)", t.Elem) }
func (t *RawType) String() string   { return fmt.Sprintf("raw(%s)", t.Elem) }
func (t *RawmType) String() string  { return fmt.Sprintf("rawm(%s)", t.Elem) }
func (t *OwnType) String() string   { return fmt.Sprintf("own(%s)", t.Elem) }
func (t *SliceType) String() string { return fmt.Sprintf("slice(%s)", t.Elem) }
func (t *ArrType) String() string   { return fmt.Sprintf("arr(%s, %s)", t.Elem, t.Size) }
func (t *OptType) String() string   { return fmt.Sprintf("opt(%s)", t.Elem) }
func (t *ResType) String() string   { return fmt.Sprintf("res(%s, %s)", t.Ok, t.Err) }

func (t *FnType) String() string {
	var b strings.Builder
	if t.IsUnsafe {
		b.WriteString("unsafe ")
	}
	b.WriteString("fn(")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	fmt.Fprintf(&b, ") -> %s", t.Ret)
	return b.String()
}

// typesCompatible is structural equality over the type algebra.
// There is no implicit coercion between primitive types.
func typesCompatible(expected, actual TypeExpr) bool {
	switch e := expected.(type) {
	case *VoidType:
		_, ok := actual.(*VoidType)
		return ok
	case *PrimType:
		a, ok := actual.(*PrimType)
		return ok && e.Kind == a.Kind
	case *NamedType:
		a, ok := actual.(*NamedType)
		return ok && e.Name == a.Name
	case *RefType:
		a, ok := actual.(*RefType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *MrefType:
		a, ok := actual.(*MrefType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *RawType:
		a, ok := actual.(*RawType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *RawmType:
		a, ok := actual.(*RawmType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *OwnType:
		a, ok := actual.(*OwnType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *SliceType:
		a, ok := actual.(*SliceType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *ArrType:
		// Element types must match; sizes are compared at lowering
		// where constant evaluation happens.
		a, ok := actual.(*ArrType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *OptType:
		a, ok := actual.(*OptType)
		return ok && typesCompatible(e.Elem, a.Elem)
	case *ResType:
		// ok(v) and err(e) infer only one side; the other carries a
		// void placeholder that matches the declared type.
		a, ok := actual.(*ResType)
		if !ok {
			return false
		}
		okSide := typesCompatible(e.Ok, a.Ok) || isVoidPlaceholder(a.Ok)
		errSide := typesCompatible(e.Err, a.Err) || isVoidPlaceholder(a.Err)
		return okSide && errSide
	case *FnType:
		a, ok := actual.(*FnType)
		if !ok || e.IsUnsafe != a.IsUnsafe || len(e.Params) != len(a.Params) {
			return false
		}
		for i := range e.Params {
			if !typesCompatible(e.Params[i], a.Params[i]) {
				return false
			}
		}
		return typesCompatible(e.Ret, a.Ret)
	}
	return false
}

func isVoidPlaceholder(ty TypeExpr) bool {
	_, ok := ty.(*VoidType)
	return ok
}

func isBoolType(ty TypeExpr) bool {
	p, ok := ty.(*PrimType)
	return ok && p.Kind == Bool
}

func isIntegerType(ty TypeExpr) bool {
	p, ok := ty.(*PrimType)
	if !ok {
		return false
	}
	switch p.Kind {
	case I8, I16, I32, I64, U8, U16, U32, U64, Usize, Isize:
		return true
	}
	return false
}

func isFloatType(ty TypeExpr) bool {
	p, ok := ty.(*PrimType)
	return ok && (p.Kind == F32 || p.Kind == F64)
}

func isNumericType(ty TypeExpr) bool {
	return isIntegerType(ty) || isFloatType(ty)
}
