package fastc

// The CAST deliberately mirrors C concepts: includes, type
// declarations, prototypes, definitions, statements, expressions and
// types.  The emitter serializes it without further transformation.

// CFile is one C translation unit.
type CFile struct {
	Includes []string
	TypeDefs []CDecl
	Consts   []*CConstDecl
	FnProtos []CFnProto
	FnDefs   []CFnDef
}

func NewCFile() *CFile {
	return &CFile{}
}

// CDecl is a file-scope type or constant declaration.
type CDecl interface {
	cdecl()
	DeclName() string
}

// CStructDecl emits `typedef struct { … } Name;`.
type CStructDecl struct {
	Name   string
	Fields []CField
}

// CEnumDecl emits `typedef enum { … } Name;`.
type CEnumDecl struct {
	Name     string
	Variants []string
}

// CTypedefDecl emits `typedef T Name;`.
type CTypedefDecl struct {
	Name string
	Type CType
}

// COpaqueDecl emits `typedef struct Name Name;`.
type COpaqueDecl struct {
	Name string
}

// CConstDecl emits `static const T NAME = value;`.
type CConstDecl struct {
	Name  string
	Type  CType
	Value CExpr
}

func (*CStructDecl) cdecl()  {}
func (*CEnumDecl) cdecl()    {}
func (*CTypedefDecl) cdecl() {}
func (*COpaqueDecl) cdecl()  {}
func (*CConstDecl) cdecl()   {}

func (d *CStructDecl) DeclName() string  { return d.Name }
func (d *CEnumDecl) DeclName() string    { return d.Name }
func (d *CTypedefDecl) DeclName() string { return d.Name }
func (d *COpaqueDecl) DeclName() string  { return d.Name }
func (d *CConstDecl) DeclName() string   { return d.Name }

// CField is one struct field.
type CField struct {
	Name string
	Type CType
}

// CParam is one function parameter.
type CParam struct {
	Name string
	Type CType
}

// CFnProto is a function prototype.
type CFnProto struct {
	Name       string
	Params     []CParam
	ReturnType CType
}

// CFnDef is a function definition.
type CFnDef struct {
	Name       string
	Params     []CParam
	ReturnType CType
	Body       []CStmt
}

// --- Types ---

// CPrim enumerates the primitive C types the compiler emits.
type CPrim int

const (
	CVoid CPrim = iota
	CBool
	CInt8
	CInt16
	CInt32
	CInt64
	CUInt8
	CUInt16
	CUInt32
	CUInt64
	CFloat
	CDouble
	CSizeT
	CPtrDiffT
)

var cPrimNames = [...]string{
	CVoid: "void", CBool: "bool",
	CInt8: "int8_t", CInt16: "int16_t", CInt32: "int32_t", CInt64: "int64_t",
	CUInt8: "uint8_t", CUInt16: "uint16_t", CUInt32: "uint32_t", CUInt64: "uint64_t",
	CFloat: "float", CDouble: "double",
	CSizeT: "size_t", CPtrDiffT: "ptrdiff_t",
}

func (p CPrim) String() string { return cPrimNames[p] }

// CType is a C type.
type CType interface{ ctype() }

// CPrimType is a primitive C type.
type CPrimType struct{ Kind CPrim }

// CPtrType is T* (mutable pointer).
type CPtrType struct{ Elem CType }

// CConstPtrType is const T* (immutable pointer).
type CConstPtrType struct{ Elem CType }

// CArrayType is T[N].
type CArrayType struct {
	Elem CType
	Size int
}

// CSliceType is the generated struct fc_slice_T.
type CSliceType struct{ Elem CType }

// COptType is the generated struct fc_opt_T.
type COptType struct{ Elem CType }

// CResType is the generated struct fc_res_T_E.
type CResType struct{ Ok, Err CType }

// CNamedType references a user or runtime type by name.
type CNamedType struct{ Name string }

func (*CPrimType) ctype()     {}
func (*CPtrType) ctype()      {}
func (*CConstPtrType) ctype() {}
func (*CArrayType) ctype()    {}
func (*CSliceType) ctype()    {}
func (*COptType) ctype()      {}
func (*CResType) ctype()      {}
func (*CNamedType) ctype()    {}

// --- Statements ---

// CStmt is a C statement.
type CStmt interface{ cstmt() }

// CVarDecl is `T name = init;` (Init may be nil).
type CVarDecl struct {
	Name string
	Type CType
	Init CExpr
}

// CAssign is `lhs = rhs;`.
type CAssign struct {
	LHS CExpr
	RHS CExpr
}

// CIf is an if statement; Else may be nil.
type CIf struct {
	Cond CExpr
	Then []CStmt
	Else []CStmt
}

// CWhile is a while loop.
type CWhile struct {
	Cond CExpr
	Body []CStmt
}

// CFor is a C for loop; any clause may be nil.
type CFor struct {
	Init CStmt
	Cond CExpr
	Step CStmt
	Body []CStmt
}

// CReturn is `return value?;`.
type CReturn struct {
	Value CExpr
}

// CExprStmt is a bare expression statement.
type CExprStmt struct {
	X CExpr
}

// CBlock is a nested block.
type CBlock struct {
	Stmts []CStmt
}

// CSwitchCase is one case arm.
type CSwitchCase struct {
	Value CExpr
	Stmts []CStmt
}

// CSwitch is a switch statement.
type CSwitch struct {
	Expr    CExpr
	Cases   []CSwitchCase
	Default []CStmt
	HasDef  bool
}

// CBreak is `break;`.
type CBreak struct{}

// CContinue is `continue;`.
type CContinue struct{}

func (*CVarDecl) cstmt()  {}
func (*CAssign) cstmt()   {}
func (*CIf) cstmt()       {}
func (*CWhile) cstmt()    {}
func (*CFor) cstmt()      {}
func (*CReturn) cstmt()   {}
func (*CExprStmt) cstmt() {}
func (*CBlock) cstmt()    {}
func (*CSwitch) cstmt()   {}
func (*CBreak) cstmt()    {}
func (*CContinue) cstmt() {}

// --- Expressions ---

// CExpr is a C expression.
type CExpr interface{ cexpr() }

// CIntLit holds the literal spelling so radix and sign survive.
type CIntLit struct{ Text string }

// CFloatLit holds the raw source spelling.
type CFloatLit struct{ Text string }

// CBoolLit is true or false (stdbool).
type CBoolLit struct{ Value bool }

// CStringLit is a quoted C string; escaping happens at emission.
type CStringLit struct{ Value string }

// CIdentExpr names a variable, function or constant.
type CIdentExpr struct{ Name string }

// CBinary reuses the source operator set; the spellings coincide.
type CBinary struct {
	Op  BinOp
	LHS CExpr
	RHS CExpr
}

// CUnary is a prefix operation.
type CUnary struct {
	Op      UnaryOp
	Operand CExpr
}

// CCall is func(args…).
type CCall struct {
	Func CExpr
	Args []CExpr
}

// CFieldExpr is base.field.
type CFieldExpr struct {
	Base CExpr
	Name string
}

// CDeref is *x.
type CDeref struct{ X CExpr }

// CAddrOf is &x.
type CAddrOf struct{ X CExpr }

// CIndex is base[index].
type CIndex struct {
	Base  CExpr
	Index CExpr
}

// CCast is (T)(x).
type CCast struct {
	Type CType
	X    CExpr
}

// CParenExpr is an explicit grouping.
type CParenExpr struct{ X CExpr }

// CCompound is a designated-initializer compound literal
// `(T){ .a = x, … }`.
type CCompound struct {
	Type   CType
	Fields []CCompoundField
}

// CCompoundField is one designated initializer.
type CCompoundField struct {
	Name  string
	Value CExpr
}

func (*CIntLit) cexpr()    {}
func (*CFloatLit) cexpr()  {}
func (*CBoolLit) cexpr()   {}
func (*CStringLit) cexpr() {}
func (*CIdentExpr) cexpr() {}
func (*CBinary) cexpr()    {}
func (*CUnary) cexpr()     {}
func (*CCall) cexpr()      {}
func (*CFieldExpr) cexpr() {}
func (*CDeref) cexpr()     {}
func (*CAddrOf) cexpr()    {}
func (*CIndex) cexpr()     {}
func (*CCast) cexpr()      {}
func (*CParenExpr) cexpr() {}
func (*CCompound) cexpr()  {}
