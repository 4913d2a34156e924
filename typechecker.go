package fastc

import (
	"fmt"
	"sort"
	"strings"
)

// TypeChecker assigns a type to every expression, verifies operator,
// call and assignment typing, tracks the safe/unsafe boundary, checks
// FFI signature restrictions and enum switch exhaustiveness.
//
// It takes ownership of the resolver's symbol table and extends it
// only by opening additional local scopes for statement bodies.
type TypeChecker struct {
	source      string
	symbols     *SymbolTable
	safety      *safetyContext
	returnType  TypeExpr // current function's return type; nil outside functions
	errors      []*CompileError
	enumDecls   map[string]*EnumDecl
	structDecls map[string]*StructDecl
}

// safetyContext tracks whether the checker is inside an unsafe
// region.  Entering an unsafe block or an unsafe fn body pushes true.
type safetyContext struct {
	stack []bool
}

func newSafetyContext() *safetyContext {
	return &safetyContext{stack: []bool{false}}
}

func (s *safetyContext) enterUnsafe() { s.stack = append(s.stack, true) }

func (s *safetyContext) exitUnsafe() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *safetyContext) isUnsafe() bool {
	return s.stack[len(s.stack)-1]
}

func NewTypeChecker(source string, symbols *SymbolTable) *TypeChecker {
	return &TypeChecker{
		source:      source,
		symbols:     symbols,
		safety:      newSafetyContext(),
		enumDecls:   map[string]*EnumDecl{},
		structDecls: map[string]*StructDecl{},
	}
}

// Check type-checks a file, returning the accumulated errors merged
// into one diagnostic.
func (tc *TypeChecker) Check(file *File) error {
	tc.collectTypeDecls(file.Items)

	for _, item := range file.Items {
		tc.checkItem(item)
	}

	errs := tc.errors
	tc.errors = nil
	return errOrNil(Multiple(errs))
}

func (tc *TypeChecker) collectTypeDecls(items []Item) {
	for _, item := range items {
		switch decl := item.(type) {
		case *EnumDecl:
			tc.enumDecls[decl.Name] = decl
		case *StructDecl:
			tc.structDecls[decl.Name] = decl
		case *ExternBlock:
			for _, ext := range decl.Items {
				switch inner := ext.(type) {
				case *EnumDecl:
					tc.enumDecls[inner.Name] = inner
				case *StructDecl:
					tc.structDecls[inner.Name] = inner
				}
			}
		case *ModDecl:
			tc.collectTypeDecls(decl.Body)
		}
	}
}

func (tc *TypeChecker) checkItem(item Item) {
	switch decl := item.(type) {
	case *FnDecl:
		tc.checkFn(decl)
	case *StructDecl:
		// Struct field types were checked during resolution.
	case *EnumDecl:
		tc.checkEnumDecl(decl)
	case *ConstDecl, *OpaqueDecl, *UseDecl:
	case *ExternBlock:
		for _, ext := range decl.Items {
			if proto, ok := ext.(*FnProto); ok {
				tc.validateFFIType(proto.ReturnType, proto.Span())
				for _, param := range proto.Params {
					tc.validateFFIType(param.Type, proto.Span())
				}
			}
		}
	case *ModDecl:
		for _, inner := range decl.Body {
			tc.checkItem(inner)
		}
	}
}

// checkEnumDecl rejects multi-field variants; lowering handles only
// the single-field case.
func (tc *TypeChecker) checkEnumDecl(decl *EnumDecl) {
	for _, variant := range decl.Variants {
		if len(variant.Fields) > 1 {
			tc.error(fmt.Sprintf(
				"enum variant '%s' has multiple fields; only single-field variants are supported",
				variant.Name), variant.Span())
		}
	}
}

func (tc *TypeChecker) checkFn(decl *FnDecl) {
	tc.symbols.EnterScope()

	if decl.IsUnsafe {
		tc.safety.enterUnsafe()
	}
	tc.returnType = decl.ReturnType

	for _, param := range decl.Params {
		tc.symbols.Define(&Symbol{
			Name: param.Name,
			Kind: SymVariable,
			Type: param.Type,
			Span: param.Span(),
		})
	}

	tc.checkBlock(decl.Body)

	tc.returnType = nil
	if decl.IsUnsafe {
		tc.safety.exitUnsafe()
	}
	tc.symbols.ExitScope()
}

func (tc *TypeChecker) checkBlock(block *Block) {
	tc.symbols.EnterScope()
	for _, stmt := range block.Stmts {
		tc.checkStmt(stmt)
	}
	tc.symbols.ExitScope()
}

func (tc *TypeChecker) checkStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		initType := tc.inferExpr(s.Init)
		if !typesCompatible(s.Type, initType) {
			tc.errorTypeMismatch(s.Type, initType, s.Span())
		}
		tc.symbols.Define(&Symbol{
			Name: s.Name,
			Kind: SymVariable,
			Type: s.Type,
			Span: s.Span(),
		})

	case *AssignStmt:
		lhsType := tc.inferExpr(s.LHS)
		rhsType := tc.inferExpr(s.RHS)
		if !typesCompatible(lhsType, rhsType) {
			tc.errorTypeMismatch(lhsType, rhsType, s.Span())
		}
		tc.checkAssignable(s.LHS, s.Span())

	case *IfStmt:
		condType := tc.inferExpr(s.Cond)
		if !isBoolType(condType) {
			tc.error(fmt.Sprintf("condition must be bool, got %s", condType), s.Span())
		}
		tc.checkBlock(s.Then)
		if s.Else != nil {
			tc.checkStmt(s.Else)
		}

	case *IfLetStmt:
		exprType := tc.inferExpr(s.Expr)

		var innerType TypeExpr
		switch t := exprType.(type) {
		case *OptType:
			innerType = t.Elem
		case *ResType:
			innerType = t.Ok
		default:
			tc.error(fmt.Sprintf("if-let requires opt or res type, got %s", exprType), s.Span())
			innerType = &VoidType{}
		}

		tc.symbols.EnterScope()
		tc.symbols.Define(&Symbol{
			Name: s.Name,
			Kind: SymVariable,
			Type: innerType,
			Span: s.Span(),
		})
		for _, inner := range s.Then.Stmts {
			tc.checkStmt(inner)
		}
		tc.symbols.ExitScope()

		if s.Else != nil {
			tc.checkBlock(s.Else)
		}

	case *WhileStmt:
		condType := tc.inferExpr(s.Cond)
		if !isBoolType(condType) {
			tc.error(fmt.Sprintf("condition must be bool, got %s", condType), s.Span())
		}
		tc.checkBlock(s.Body)

	case *ForStmt:
		tc.symbols.EnterScope()

		switch init := s.Init.(type) {
		case *ForInitLet:
			initType := tc.inferExpr(init.Init)
			if !typesCompatible(init.Type, initType) {
				tc.errorTypeMismatch(init.Type, initType, init.Init.Span())
			}
			tc.symbols.Define(&Symbol{
				Name: init.Name,
				Kind: SymVariable,
				Type: init.Type,
				Span: NewSpan(0, 0),
			})
		case *ForInitAssign:
			lhsType := tc.inferExpr(init.LHS)
			rhsType := tc.inferExpr(init.RHS)
			if !typesCompatible(lhsType, rhsType) {
				tc.errorTypeMismatch(lhsType, rhsType, init.LHS.Span())
			}
		case *ForInitCall:
			tc.inferExpr(init.Call)
		}

		if s.Cond != nil {
			condType := tc.inferExpr(s.Cond)
			if !isBoolType(condType) {
				tc.error(fmt.Sprintf("for condition must be bool, got %s", condType), s.Cond.Span())
			}
		}

		switch step := s.Step.(type) {
		case *ForStepAssign:
			lhsType := tc.inferExpr(step.LHS)
			rhsType := tc.inferExpr(step.RHS)
			if !typesCompatible(lhsType, rhsType) {
				tc.errorTypeMismatch(lhsType, rhsType, step.LHS.Span())
			}
		case *ForStepCall:
			tc.inferExpr(step.Call)
		}

		for _, inner := range s.Body.Stmts {
			tc.checkStmt(inner)
		}

		tc.symbols.ExitScope()

	case *SwitchStmt:
		tc.checkSwitch(s)

	case *ReturnStmt:
		expected := tc.returnType
		if expected == nil {
			expected = &VoidType{}
		}
		if s.Value != nil {
			actual := tc.inferExpr(s.Value)
			if !typesCompatible(expected, actual) {
				tc.errorTypeMismatch(expected, actual, s.Span())
			}
		} else if _, isVoid := expected.(*VoidType); !isVoid {
			tc.error(fmt.Sprintf("expected return value of type %s", expected), s.Span())
		}

	case *BreakStmt, *ContinueStmt:

	case *DeferStmt:
		tc.checkBlock(s.Body)

	case *ExprStmt:
		tc.inferExpr(s.X)

	case *DiscardStmt:
		tc.inferExpr(s.X)

	case *UnsafeStmt:
		tc.safety.enterUnsafe()
		tc.checkBlock(s.Body)
		tc.safety.exitUnsafe()

	case *Block:
		tc.checkBlock(s)
	}
}

// checkSwitch enforces that a switch subject is an integer or enum
// and, for enums without a default arm, that the covered variant set
// equals the declared variant set.
func (tc *TypeChecker) checkSwitch(s *SwitchStmt) {
	exprType := tc.inferExpr(s.Expr)

	named, isNamed := exprType.(*NamedType)
	if !isIntegerType(exprType) && !isNamed {
		tc.error(fmt.Sprintf("switch expression must be integer or enum, got %s", exprType),
			s.Expr.Span())
	}

	if isNamed {
		if enumDecl, ok := tc.enumDecls[named.Name]; ok {
			expected := map[string]bool{}
			for _, variant := range enumDecl.Variants {
				expected[fmt.Sprintf("%s_%s", named.Name, variant.Name)] = true
			}

			covered := map[string]bool{}
			for _, c := range s.Cases {
				if ident, ok := c.Value.(*ConstIdent); ok {
					covered[ident.Name] = true
				}
			}

			var missing []string
			for name := range expected {
				if !covered[name] {
					missing = append(missing, name)
				}
			}
			sort.Strings(missing)

			var extra []string
			for name := range covered {
				if !expected[name] {
					extra = append(extra, name)
				}
			}
			sort.Strings(extra)

			if len(missing) > 0 && s.Default == nil {
				tc.error(fmt.Sprintf(
					"non-exhaustive switch on enum '%s': missing variants [%s]",
					named.Name, strings.Join(missing, ", ")), s.Span())
			}
			if len(extra) > 0 && s.Default == nil {
				tc.error(fmt.Sprintf(
					"switch on enum '%s' has cases that are not its variants [%s]",
					named.Name, strings.Join(extra, ", ")), s.Span())
			}
		}
	}

	for _, c := range s.Cases {
		for _, inner := range c.Stmts {
			tc.checkStmt(inner)
		}
	}
	if s.Default != nil {
		for _, inner := range s.Default.Stmts {
			tc.checkStmt(inner)
		}
	}
}

// inferExpr assigns a type to an expression, reporting any typing
// violations along the way.  Numeric literals default to i32 and f64.
func (tc *TypeChecker) inferExpr(expr Expr) TypeExpr {
	switch e := expr.(type) {
	case *IntLit:
		return &PrimType{Kind: I32}
	case *FloatLit:
		return &PrimType{Kind: F64}
	case *BoolLit:
		return &PrimType{Kind: Bool}
	case *CStrExpr:
		return &RawType{Elem: &PrimType{Kind: U8}}
	case *BytesExpr:
		return &SliceType{Elem: &PrimType{Kind: U8}}

	case *Ident:
		if sym := tc.symbols.Lookup(e.Name); sym != nil {
			return sym.Type
		}
		// Error already reported during resolution.
		return &VoidType{}

	case *BinaryExpr:
		return tc.inferBinary(e)

	case *UnaryExpr:
		operandType := tc.inferExpr(e.Operand)
		switch e.Op {
		case OpNeg:
			if !isNumericType(operandType) {
				tc.error(fmt.Sprintf("negation requires numeric type, got %s", operandType), e.Span())
			}
			return operandType
		case OpNot:
			if !isBoolType(operandType) {
				tc.error(fmt.Sprintf("logical not requires bool, got %s", operandType), e.Span())
			}
			return &PrimType{Kind: Bool}
		case OpBitNot:
			if !isIntegerType(operandType) {
				tc.error(fmt.Sprintf("bitwise not requires integer, got %s", operandType), e.Span())
			}
			return operandType
		}
		return &VoidType{}

	case *ParenExpr:
		return tc.inferExpr(e.Inner)

	case *CallExpr:
		return tc.inferCall(e)

	case *FieldExpr:
		return tc.inferField(e)

	case *AddrExpr:
		operandType := tc.inferExpr(e.Operand)
		tc.checkAddressable(e.Operand, e.Span())
		return &RefType{Elem: operandType}

	case *DerefExpr:
		operandType := tc.inferExpr(e.Operand)
		switch t := operandType.(type) {
		case *RefType:
			return t.Elem
		case *MrefType:
			return t.Elem
		case *RawType:
			if !tc.safety.isUnsafe() {
				tc.error("dereference of raw pointer requires unsafe block", e.Span())
			}
			return t.Elem
		case *RawmType:
			if !tc.safety.isUnsafe() {
				tc.error("dereference of raw pointer requires unsafe block", e.Span())
			}
			return t.Elem
		}
		tc.error(fmt.Sprintf("cannot dereference non-pointer type %s", operandType), e.Span())
		return &VoidType{}

	case *AtExpr:
		baseType := tc.inferExpr(e.Base)
		indexType := tc.inferExpr(e.Index)

		if !isIntegerType(indexType) {
			tc.error(fmt.Sprintf("index must be integer, got %s", indexType), e.Span())
		}

		switch t := baseType.(type) {
		case *SliceType:
			return t.Elem
		case *ArrType:
			return t.Elem
		}
		tc.error(fmt.Sprintf("cannot index non-array type %s", baseType), e.Span())
		return &VoidType{}

	case *CastExpr:
		exprType := tc.inferExpr(e.X)
		if !canCast(exprType, e.Type) {
			tc.error(fmt.Sprintf("cannot cast %s to %s", exprType, e.Type), e.Span())
		}
		return e.Type

	case *NoneExpr:
		return &OptType{Elem: e.Type}

	case *SomeExpr:
		return &OptType{Elem: tc.inferExpr(e.Value)}

	case *OkExpr:
		// The error side is unknown here; void is the placeholder.
		return &ResType{Ok: tc.inferExpr(e.Value), Err: &VoidType{}}

	case *ErrExpr:
		return &ResType{Ok: &VoidType{}, Err: tc.inferExpr(e.Value)}

	case *StructLit:
		tc.checkStructLit(e)
		return &NamedType{Name: e.Name}
	}
	return &VoidType{}
}

func (tc *TypeChecker) inferBinary(e *BinaryExpr) TypeExpr {
	lhsType := tc.inferExpr(e.LHS)
	rhsType := tc.inferExpr(e.RHS)

	// Binary operators require operands of the same type.
	if !typesCompatible(lhsType, rhsType) {
		tc.errorTypeMismatch(lhsType, rhsType, e.Span())
	}

	switch e.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return &PrimType{Kind: Bool}

	case OpAnd, OpOr:
		if !isBoolType(lhsType) {
			tc.error(fmt.Sprintf("logical operator requires bool, got %s", lhsType), e.Span())
		}
		return &PrimType{Kind: Bool}

	case OpAdd, OpSub, OpMul, OpDiv, OpRem:
		if !isNumericType(lhsType) {
			tc.error(fmt.Sprintf("arithmetic operator requires numeric type, got %s", lhsType), e.Span())
		}
		return lhsType

	default: // bitwise and shifts
		if !isIntegerType(lhsType) {
			tc.error(fmt.Sprintf("bitwise operator requires integer, got %s", lhsType), e.Span())
		}
		return lhsType
	}
}

func (tc *TypeChecker) inferCall(e *CallExpr) TypeExpr {
	calleeType := tc.inferExpr(e.Callee)

	fnType, ok := calleeType.(*FnType)
	if !ok {
		tc.error(fmt.Sprintf("cannot call non-function type %s", calleeType), e.Span())
		return &VoidType{}
	}

	if fnType.IsUnsafe && !tc.safety.isUnsafe() {
		tc.errorWithHint("call to unsafe function requires unsafe block", e.Span(),
			"wrap the call in an unsafe block: unsafe { ... }")
	}

	if len(e.Args) != len(fnType.Params) {
		tc.error(fmt.Sprintf("expected %d arguments, got %d", len(fnType.Params), len(e.Args)), e.Span())
	}

	for i, arg := range e.Args {
		if i >= len(fnType.Params) {
			break
		}
		argType := tc.inferExpr(arg)
		if !typesCompatible(fnType.Params[i], argType) {
			tc.errorTypeMismatch(fnType.Params[i], argType, arg.Span())
		}
	}

	return fnType.Ret
}

// inferField looks up the named struct declaration and returns the
// declared field type.
func (tc *TypeChecker) inferField(e *FieldExpr) TypeExpr {
	baseType := tc.inferExpr(e.Base)

	named, ok := baseType.(*NamedType)
	if !ok {
		tc.error(fmt.Sprintf("field access on non-struct type %s", baseType), e.Span())
		return &VoidType{}
	}

	structDecl, ok := tc.structDecls[named.Name]
	if !ok {
		tc.error(fmt.Sprintf("field access on non-struct type %s", baseType), e.Span())
		return &VoidType{}
	}

	for _, field := range structDecl.Fields {
		if field.Name == e.Name {
			return field.Type
		}
	}
	tc.error(fmt.Sprintf("struct '%s' has no field '%s'", named.Name, e.Name), e.Span())
	return &VoidType{}
}

// checkStructLit verifies literal fields against the declaration when
// it is known.
func (tc *TypeChecker) checkStructLit(e *StructLit) {
	structDecl, ok := tc.structDecls[e.Name]
	if !ok {
		// The resolver reports unknown names; a known non-struct
		// symbol is surfaced here.
		if tc.symbols.Lookup(e.Name) != nil {
			tc.error(fmt.Sprintf("'%s' is not a struct", e.Name), e.Span())
		}
		for _, field := range e.Fields {
			tc.inferExpr(field.Value)
		}
		return
	}

	declared := map[string]TypeExpr{}
	for _, field := range structDecl.Fields {
		declared[field.Name] = field.Type
	}

	for _, field := range e.Fields {
		valueType := tc.inferExpr(field.Value)
		fieldType, exists := declared[field.Name]
		if !exists {
			tc.error(fmt.Sprintf("struct '%s' has no field '%s'", e.Name, field.Name), field.Span())
			continue
		}
		if !typesCompatible(fieldType, valueType) {
			tc.errorTypeMismatch(fieldType, valueType, field.Span())
		}
	}
}

// canCast permits numeric↔numeric casts and pointer casts that keep
// the mutability class.
func canCast(from, to TypeExpr) bool {
	if isNumericType(from) && isNumericType(to) {
		return true
	}
	switch from.(type) {
	case *RefType:
		_, ok := to.(*RawType)
		return ok
	case *MrefType:
		_, ok := to.(*RawmType)
		return ok
	case *RawType:
		_, ok := to.(*RawType)
		return ok
	case *RawmType:
		_, ok := to.(*RawmType)
		return ok
	}
	return false
}

// checkAssignable restricts assignment targets to identifiers,
// derefs, index and field accesses.
func (tc *TypeChecker) checkAssignable(expr Expr, span Span) {
	switch expr.(type) {
	case *Ident, *DerefExpr, *AtExpr, *FieldExpr:
	default:
		tc.error("expression is not assignable", span)
	}
}

func (tc *TypeChecker) checkAddressable(expr Expr, span Span) {
	switch expr.(type) {
	case *Ident, *DerefExpr, *AtExpr, *FieldExpr:
	default:
		tc.error("cannot take address of expression", span)
	}
}

// validateFFIType rejects opt/res in extern signatures and by-value
// structs lacking @repr(C).  Enums are permitted without a repr
// because they default to i32.
func (tc *TypeChecker) validateFFIType(ty TypeExpr, span Span) {
	switch t := ty.(type) {
	case *OptType:
		tc.error("opt(T) is not permitted in extern signatures", span)
	case *ResType:
		tc.error("res(T, E) is not permitted in extern signatures", span)
	case *NamedType:
		if structDecl, ok := tc.structDecls[t.Name]; ok {
			if structDecl.Repr == nil || *structDecl.Repr != ReprC {
				tc.error(fmt.Sprintf(
					"struct '%s' passed by value in extern must have @repr(C)", t.Name), span)
			}
		}
	}
}

// === Error helpers ===

func (tc *TypeChecker) error(message string, span Span) {
	tc.errors = append(tc.errors, NewTypeError(message, span, tc.source))
}

func (tc *TypeChecker) errorWithHint(message string, span Span, hint string) {
	tc.errors = append(tc.errors, NewTypeError(message, span, tc.source).WithHint(hint))
}

func (tc *TypeChecker) errorTypeMismatch(expected, actual TypeExpr, span Span) {
	tc.error(fmt.Sprintf("type mismatch: expected %s, got %s", expected, actual), span)
}
