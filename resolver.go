package fastc

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Resolver performs two-pass name resolution: pass one declares every
// top-level item in the global scope, pass two walks bodies resolving
// references.  Errors accumulate; the merged error is returned at the
// end so a single run can surface many problems.
type Resolver struct {
	symbols *SymbolTable
	source  string
	errors  []*CompileError
}

func NewResolver(source string) *Resolver {
	return &Resolver{
		symbols: NewSymbolTable(),
		source:  source,
	}
}

// Resolve resolves names in a file.
func (r *Resolver) Resolve(file *File) error {
	for _, item := range file.Items {
		r.declareItem(item)
	}
	for _, item := range file.Items {
		r.resolveItem(item)
	}

	errs := r.errors
	r.errors = nil
	return errOrNil(Multiple(errs))
}

// Symbols yields the final symbol table for the type checker.
func (r *Resolver) Symbols() *SymbolTable {
	return r.symbols
}

// === First pass: declare all items ===

func (r *Resolver) declareItem(item Item) {
	switch decl := item.(type) {
	case *FnDecl:
		r.declareFn(decl)
	case *StructDecl:
		r.declareStruct(decl)
	case *EnumDecl:
		r.declareEnum(decl)
	case *ConstDecl:
		r.declareConst(decl)
	case *OpaqueDecl:
		r.declareOpaque(decl)
	case *ExternBlock:
		r.declareExtern(decl)
	case *UseDecl:
		// Use declarations are informational at this layer.
	case *ModDecl:
		// Expanded and inline modules contribute their items to the
		// surrounding scope; external ones were inlined by the
		// module loader.
		for _, inner := range decl.Body {
			r.declareItem(inner)
		}
	}
}

func (r *Resolver) declareFn(decl *FnDecl) {
	paramTypes := make([]TypeExpr, len(decl.Params))
	for i, param := range decl.Params {
		paramTypes[i] = param.Type
	}
	r.define(&Symbol{
		Name:     decl.Name,
		Kind:     SymFunction,
		IsUnsafe: decl.IsUnsafe,
		Type:     &FnType{IsUnsafe: decl.IsUnsafe, Params: paramTypes, Ret: decl.ReturnType},
		Span:     decl.Span(),
	})
}

func (r *Resolver) declareStruct(decl *StructDecl) {
	r.define(&Symbol{
		Name: decl.Name,
		Kind: SymStruct,
		Type: &NamedType{Name: decl.Name},
		Span: decl.Span(),
	})
}

// declareEnum also declares each variant as a constant symbol named
// Enum_Variant; switch cases later compare against these.
func (r *Resolver) declareEnum(decl *EnumDecl) {
	r.define(&Symbol{
		Name: decl.Name,
		Kind: SymEnum,
		Type: &NamedType{Name: decl.Name},
		Span: decl.Span(),
	})

	for _, variant := range decl.Variants {
		r.define(&Symbol{
			Name: fmt.Sprintf("%s_%s", decl.Name, variant.Name),
			Kind: SymConstant,
			Type: &NamedType{Name: decl.Name},
			Span: variant.Span(),
		})
	}
}

func (r *Resolver) declareConst(decl *ConstDecl) {
	r.define(&Symbol{
		Name: decl.Name,
		Kind: SymConstant,
		Type: decl.Type,
		Span: decl.Span(),
	})
}

func (r *Resolver) declareOpaque(decl *OpaqueDecl) {
	r.define(&Symbol{
		Name: decl.Name,
		Kind: SymOpaque,
		Type: &NamedType{Name: decl.Name},
		Span: decl.Span(),
	})
}

func (r *Resolver) declareExtern(block *ExternBlock) {
	for _, item := range block.Items {
		switch decl := item.(type) {
		case *FnProto:
			paramTypes := make([]TypeExpr, len(decl.Params))
			for i, param := range decl.Params {
				paramTypes[i] = param.Type
			}
			r.define(&Symbol{
				Name: decl.Name,
				Kind: SymFunction,
				// All extern functions are unsafe to call.
				IsUnsafe: true,
				Type:     &FnType{IsUnsafe: true, Params: paramTypes, Ret: decl.ReturnType},
				Span:     decl.Span(),
			})
		case *StructDecl:
			r.declareStruct(decl)
		case *EnumDecl:
			r.declareEnum(decl)
		case *OpaqueDecl:
			r.declareOpaque(decl)
		}
	}
}

func (r *Resolver) define(sym *Symbol) {
	if !r.symbols.Define(sym) {
		r.errorRedefinition(sym.Name, sym.Span)
	}
}

// === Second pass: resolve references ===

func (r *Resolver) resolveItem(item Item) {
	switch decl := item.(type) {
	case *FnDecl:
		r.resolveFn(decl)
	case *StructDecl:
		r.resolveStruct(decl)
	case *EnumDecl:
		// Enum variants do not reference other names.
	case *ConstDecl:
		r.resolveType(decl.Type)
		r.resolveConstExpr(decl.Value)
	case *OpaqueDecl:
	case *ExternBlock:
		r.resolveExtern(decl)
	case *UseDecl:
	case *ModDecl:
		for _, inner := range decl.Body {
			r.resolveItem(inner)
		}
	}
}

func (r *Resolver) resolveFn(decl *FnDecl) {
	r.symbols.EnterScope()

	for _, param := range decl.Params {
		if !r.symbols.Define(&Symbol{
			Name: param.Name,
			Kind: SymVariable,
			Type: param.Type,
			Span: param.Span(),
		}) {
			r.errorRedefinition(param.Name, param.Span())
		}
		r.resolveType(param.Type)
	}

	r.resolveType(decl.ReturnType)
	r.resolveBlock(decl.Body)

	r.symbols.ExitScope()
}

func (r *Resolver) resolveStruct(decl *StructDecl) {
	for _, field := range decl.Fields {
		r.resolveType(field.Type)
	}
}

func (r *Resolver) resolveExtern(block *ExternBlock) {
	for _, item := range block.Items {
		switch decl := item.(type) {
		case *FnProto:
			for _, param := range decl.Params {
				r.resolveType(param.Type)
			}
			r.resolveType(decl.ReturnType)
		case *StructDecl:
			r.resolveStruct(decl)
		}
	}
}

func (r *Resolver) resolveBlock(block *Block) {
	r.symbols.EnterScope()
	for _, stmt := range block.Stmts {
		r.resolveStmt(stmt)
	}
	r.symbols.ExitScope()
}

func (r *Resolver) resolveStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		// The initializer cannot reference the variable being
		// declared.
		r.resolveExpr(s.Init)
		r.resolveType(s.Type)
		if !r.symbols.Define(&Symbol{
			Name: s.Name,
			Kind: SymVariable,
			Type: s.Type,
			Span: s.Span(),
		}) {
			r.errorRedefinition(s.Name, s.Span())
		}

	case *AssignStmt:
		r.resolveExpr(s.LHS)
		r.resolveExpr(s.RHS)

	case *IfStmt:
		r.resolveExpr(s.Cond)
		r.resolveBlock(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}

	case *IfLetStmt:
		r.resolveExpr(s.Expr)

		// The bound variable is in scope only in the then branch;
		// its type is refined by the type checker.
		r.symbols.EnterScope()
		r.symbols.Define(&Symbol{
			Name: s.Name,
			Kind: SymVariable,
			Type: &VoidType{},
			Span: s.Span(),
		})
		for _, inner := range s.Then.Stmts {
			r.resolveStmt(inner)
		}
		r.symbols.ExitScope()

		if s.Else != nil {
			r.resolveBlock(s.Else)
		}

	case *WhileStmt:
		r.resolveExpr(s.Cond)
		r.resolveBlock(s.Body)

	case *ForStmt:
		// The init variable lives in the loop's own scope.
		r.symbols.EnterScope()

		switch init := s.Init.(type) {
		case *ForInitLet:
			r.resolveExpr(init.Init)
			r.resolveType(init.Type)
			r.symbols.Define(&Symbol{
				Name: init.Name,
				Kind: SymVariable,
				Type: init.Type,
				Span: NewSpan(0, 0),
			})
		case *ForInitAssign:
			r.resolveExpr(init.LHS)
			r.resolveExpr(init.RHS)
		case *ForInitCall:
			r.resolveExpr(init.Call)
		}

		if s.Cond != nil {
			r.resolveExpr(s.Cond)
		}

		switch step := s.Step.(type) {
		case *ForStepAssign:
			r.resolveExpr(step.LHS)
			r.resolveExpr(step.RHS)
		case *ForStepCall:
			r.resolveExpr(step.Call)
		}

		for _, inner := range s.Body.Stmts {
			r.resolveStmt(inner)
		}

		r.symbols.ExitScope()

	case *SwitchStmt:
		r.resolveExpr(s.Expr)
		for _, c := range s.Cases {
			r.resolveConstExpr(c.Value)
			for _, inner := range c.Stmts {
				r.resolveStmt(inner)
			}
		}
		if s.Default != nil {
			for _, inner := range s.Default.Stmts {
				r.resolveStmt(inner)
			}
		}

	case *ReturnStmt:
		if s.Value != nil {
			r.resolveExpr(s.Value)
		}

	case *BreakStmt, *ContinueStmt:

	case *DeferStmt:
		r.resolveBlock(s.Body)

	case *ExprStmt:
		r.resolveExpr(s.X)

	case *DiscardStmt:
		r.resolveExpr(s.X)

	case *UnsafeStmt:
		r.resolveBlock(s.Body)

	case *Block:
		r.resolveBlock(s)
	}
}

func (r *Resolver) resolveExpr(expr Expr) {
	switch e := expr.(type) {
	case *IntLit, *FloatLit, *BoolLit, *CStrExpr, *BytesExpr:

	case *Ident:
		if r.symbols.Lookup(e.Name) == nil {
			r.errorUndefined(e.Name, e.Span())
		}

	case *BinaryExpr:
		r.resolveExpr(e.LHS)
		r.resolveExpr(e.RHS)

	case *UnaryExpr:
		r.resolveExpr(e.Operand)

	case *ParenExpr:
		r.resolveExpr(e.Inner)

	case *CallExpr:
		r.resolveExpr(e.Callee)
		for _, arg := range e.Args {
			r.resolveExpr(arg)
		}

	case *FieldExpr:
		// Field names resolve during type checking.
		r.resolveExpr(e.Base)

	case *AddrExpr:
		r.resolveExpr(e.Operand)

	case *DerefExpr:
		r.resolveExpr(e.Operand)

	case *AtExpr:
		r.resolveExpr(e.Base)
		r.resolveExpr(e.Index)

	case *CastExpr:
		r.resolveType(e.Type)
		r.resolveExpr(e.X)

	case *NoneExpr:
		r.resolveType(e.Type)

	case *SomeExpr:
		r.resolveExpr(e.Value)

	case *OkExpr:
		r.resolveExpr(e.Value)

	case *ErrExpr:
		r.resolveExpr(e.Value)

	case *StructLit:
		if r.symbols.Lookup(e.Name) == nil {
			r.errorUndefined(e.Name, e.Span())
		}
		for _, field := range e.Fields {
			r.resolveExpr(field.Value)
		}
	}
}

func (r *Resolver) resolveConstExpr(expr ConstExpr) {
	switch c := expr.(type) {
	case *ConstInt, *ConstFloat, *ConstBool, *ConstCStr, *ConstBytes:

	case *ConstIdent:
		// Constant expressions may reference other constants only.
		if sym := r.symbols.Lookup(c.Name); sym != nil {
			if sym.Kind != SymConstant {
				r.errors = append(r.errors, NewResolveError(
					fmt.Sprintf("'%s' is not a constant", c.Name),
					NewSpan(0, 0), r.source))
			}
		} else {
			r.errors = append(r.errors, NewResolveError(
				fmt.Sprintf("undefined constant '%s'", c.Name),
				NewSpan(0, 0), r.source))
		}

	case *ConstBinary:
		r.resolveConstExpr(c.LHS)
		r.resolveConstExpr(c.RHS)

	case *ConstUnary:
		r.resolveConstExpr(c.Operand)

	case *ConstParen:
		r.resolveConstExpr(c.Inner)

	case *ConstCast:
		r.resolveType(c.Type)
		r.resolveConstExpr(c.X)
	}
}

func (r *Resolver) resolveType(ty TypeExpr) {
	switch t := ty.(type) {
	case *PrimType, *VoidType:

	case *NamedType:
		if sym := r.symbols.Lookup(t.Name); sym != nil {
			switch sym.Kind {
			case SymStruct, SymEnum, SymOpaque:
			default:
				r.errors = append(r.errors, NewResolveError(
					fmt.Sprintf("'%s' is not a type", t.Name),
					NewSpan(0, 0), r.source))
			}
		} else {
			r.errors = append(r.errors, NewResolveError(
				fmt.Sprintf("undefined type '%s'", t.Name),
				NewSpan(0, 0), r.source))
		}

	case *RefType:
		r.resolveType(t.Elem)
	case *MrefType:
		r.resolveType(t.Elem)
	case *RawType:
		r.resolveType(t.Elem)
	case *RawmType:
		r.resolveType(t.Elem)
	case *OwnType:
		r.resolveType(t.Elem)
	case *SliceType:
		r.resolveType(t.Elem)
	case *OptType:
		r.resolveType(t.Elem)

	case *ArrType:
		r.resolveType(t.Elem)
		// Array sizes are const exprs, typically literals; constant
		// references are validated where they occur.

	case *ResType:
		r.resolveType(t.Ok)
		r.resolveType(t.Err)

	case *FnType:
		for _, param := range t.Params {
			r.resolveType(param)
		}
		r.resolveType(t.Ret)
	}
}

// === Error helpers ===

func (r *Resolver) errorUndefined(name string, span Span) {
	err := NewResolveError(fmt.Sprintf("undefined name '%s'", name), span, r.source)
	if similar := r.findSimilarName(name); similar != "" {
		err.WithHint(fmt.Sprintf("did you mean '%s'?", similar))
	}
	r.errors = append(r.errors, err)
}

func (r *Resolver) errorRedefinition(name string, span Span) {
	r.errors = append(r.errors, NewResolveError(
		fmt.Sprintf("redefinition of '%s'", name), span, r.source))
}

// findSimilarName picks the in-scope name with minimum edit distance,
// provided the distance is at most 3 and strictly less than the
// target length.
func (r *Resolver) findSimilarName(target string) string {
	best := ""
	bestDist := -1
	for _, name := range r.symbols.AllNames() {
		dist := levenshtein.ComputeDistance(target, name)
		if dist > 3 || dist >= len(target) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best = name
			bestDist = dist
		}
	}
	return best
}
