package fastc

import (
	"fmt"
	"sort"
	"strconv"
)

// Lower translates the typed source AST into the CAST.  In safe
// context it inserts runtime checks (bounds, overflow,
// divide-by-zero), materializes option/result/slice struct types and
// synthesizes evaluation-order temporaries.
type Lower struct {
	source      string
	tempCounter int
	inUnsafe    bool

	// Generated typedef tracking, keyed by C type name.
	sliceTypes map[string]CType
	optTypes   map[string]CType
	resTypes   map[string]resElems

	// Per-function variable types for local inference.
	varTypes map[string]CType

	// File-wide tables prescanned before lowering bodies.
	fnRetTypes   map[string]CType
	structFields map[string]map[string]CType

	// Deferred blocks replayed in LIFO order before returns.
	deferred [][]CStmt

	// Current function's lowered return type, for constructor
	// expressions in return position.
	curRet CType

	errors []*CompileError
}

type resElems struct {
	ok  CType
	err CType
}

func NewLower(source string) *Lower {
	return &Lower{
		source:       source,
		sliceTypes:   map[string]CType{},
		optTypes:     map[string]CType{},
		resTypes:     map[string]resElems{},
		varTypes:     map[string]CType{},
		fnRetTypes:   map[string]CType{},
		structFields: map[string]map[string]CType{},
	}
}

// LowerFile lowers a file to a C translation unit.  The include list
// is fixed; user type declarations are sorted by name and generated
// slice/opt/res typedefs are prepended in sorted order.
func (l *Lower) LowerFile(file *File) (*CFile, error) {
	cFile := NewCFile()
	cFile.Includes = []string{
		"<stdint.h>",
		"<stddef.h>",
		"<stdbool.h>",
		"\"fastc_runtime.h\"",
	}

	l.prescanItems(file.Items)
	l.lowerItems(file.Items, cFile)

	sort.SliceStable(cFile.TypeDefs, func(i, j int) bool {
		return cFile.TypeDefs[i].DeclName() < cFile.TypeDefs[j].DeclName()
	})
	sort.SliceStable(cFile.Consts, func(i, j int) bool {
		return cFile.Consts[i].Name < cFile.Consts[j].Name
	})

	l.generateTypedefs(cFile)

	errs := l.errors
	l.errors = nil
	if err := Multiple(errs); err != nil {
		return nil, err
	}
	return cFile, nil
}

// prescanItems builds the function-return and struct-field tables so
// expression inference can see across the whole file.
func (l *Lower) prescanItems(items []Item) {
	for _, item := range items {
		switch decl := item.(type) {
		case *FnDecl:
			l.fnRetTypes[decl.Name] = l.lowerType(decl.ReturnType)
		case *StructDecl:
			l.prescanStruct(decl)
		case *ExternBlock:
			for _, ext := range decl.Items {
				switch inner := ext.(type) {
				case *FnProto:
					l.fnRetTypes[inner.Name] = l.lowerType(inner.ReturnType)
				case *StructDecl:
					l.prescanStruct(inner)
				}
			}
		case *ModDecl:
			l.prescanItems(decl.Body)
		}
	}
}

func (l *Lower) prescanStruct(decl *StructDecl) {
	fields := map[string]CType{}
	for _, field := range decl.Fields {
		fields[field.Name] = l.lowerType(field.Type)
	}
	l.structFields[decl.Name] = fields
}

func (l *Lower) lowerItems(items []Item, cFile *CFile) {
	for _, item := range items {
		switch decl := item.(type) {
		case *FnDecl:
			cFile.FnDefs = append(cFile.FnDefs, l.lowerFn(decl))
		case *StructDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, l.lowerStruct(decl))
		case *EnumDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, l.lowerEnum(decl))
		case *ConstDecl:
			cFile.Consts = append(cFile.Consts, &CConstDecl{
				Name:  decl.Name,
				Type:  l.lowerType(decl.Type),
				Value: l.lowerConstExpr(decl.Value),
			})
		case *OpaqueDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, &COpaqueDecl{Name: decl.Name})
		case *ExternBlock:
			l.lowerExternBlock(decl, cFile)
		case *UseDecl:
			// Imports carry no code.
		case *ModDecl:
			l.lowerItems(decl.Body, cFile)
		}
	}
}

func (l *Lower) lowerExternBlock(block *ExternBlock, cFile *CFile) {
	for _, item := range block.Items {
		switch decl := item.(type) {
		case *FnProto:
			params := make([]CParam, len(decl.Params))
			for i, param := range decl.Params {
				params[i] = CParam{Name: param.Name, Type: l.lowerType(param.Type)}
			}
			cFile.FnProtos = append(cFile.FnProtos, CFnProto{
				Name:       decl.Name,
				Params:     params,
				ReturnType: l.lowerType(decl.ReturnType),
			})
		case *StructDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, l.lowerStruct(decl))
		case *EnumDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, l.lowerEnum(decl))
		case *OpaqueDecl:
			cFile.TypeDefs = append(cFile.TypeDefs, &COpaqueDecl{Name: decl.Name})
		}
	}
}

func (l *Lower) lowerFn(decl *FnDecl) CFnDef {
	l.varTypes = map[string]CType{}
	l.deferred = nil
	l.tempCounter = 0
	l.curRet = l.lowerType(decl.ReturnType)

	wasUnsafe := l.inUnsafe
	if decl.IsUnsafe {
		l.inUnsafe = true
	}

	params := make([]CParam, len(decl.Params))
	for i, param := range decl.Params {
		ty := l.lowerType(param.Type)
		l.varTypes[param.Name] = ty
		params[i] = CParam{Name: param.Name, Type: ty}
	}

	body := l.lowerBlock(decl.Body)

	// Replay outstanding defers when control falls off the end.
	if len(l.deferred) > 0 && !endsWithReturn(body) {
		body = append(body, l.replayDefers()...)
	}

	l.inUnsafe = wasUnsafe
	return CFnDef{
		Name:       decl.Name,
		Params:     params,
		ReturnType: l.lowerType(decl.ReturnType),
		Body:       body,
	}
}

func endsWithReturn(stmts []CStmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*CReturn)
	return ok
}

// replayDefers returns the collected defer bodies in LIFO order.
func (l *Lower) replayDefers() []CStmt {
	var out []CStmt
	for i := len(l.deferred) - 1; i >= 0; i-- {
		out = append(out, l.deferred[i]...)
	}
	return out
}

func (l *Lower) lowerStruct(decl *StructDecl) CDecl {
	fields := make([]CField, len(decl.Fields))
	for i, field := range decl.Fields {
		fields[i] = CField{Name: field.Name, Type: l.lowerType(field.Type)}
	}
	return &CStructDecl{Name: decl.Name, Fields: fields}
}

// lowerEnum lowers a C-style enum to a C enum spelled
// EnumName_VariantName, and a data-carrying enum to a tagged struct.
// Multi-field variants were already rejected by the type checker.
func (l *Lower) lowerEnum(decl *EnumDecl) CDecl {
	hasData := false
	for _, variant := range decl.Variants {
		if len(variant.Fields) > 0 {
			hasData = true
			break
		}
	}

	if !hasData {
		variants := make([]string, len(decl.Variants))
		for i, variant := range decl.Variants {
			variants[i] = fmt.Sprintf("%s_%s", decl.Name, variant.Name)
		}
		return &CEnumDecl{Name: decl.Name, Variants: variants}
	}

	fields := []CField{{Name: "tag", Type: &CPrimType{Kind: CInt32}}}
	for _, variant := range decl.Variants {
		if len(variant.Fields) == 0 {
			continue
		}
		fields = append(fields, CField{
			Name: fmt.Sprintf("%s_data", lowerIdent(variant.Name)),
			Type: l.lowerType(variant.Fields[0]),
		})
	}
	return &CStructDecl{Name: decl.Name, Fields: fields}
}

func (l *Lower) lowerBlock(block *Block) []CStmt {
	var stmts []CStmt
	for _, stmt := range block.Stmts {
		stmts = append(stmts, l.lowerStmt(stmt)...)
	}
	return stmts
}

func (l *Lower) lowerStmt(stmt Stmt) []CStmt {
	switch s := stmt.(type) {
	case *LetStmt:
		var pre []CStmt
		cType := l.lowerType(s.Type)
		l.varTypes[s.Name] = cType
		init := l.lowerExprWithType(s.Init, cType, &pre)
		return append(pre, &CVarDecl{Name: s.Name, Type: cType, Init: init})

	case *AssignStmt:
		var pre []CStmt
		lhs := l.lowerExpr(s.LHS, &pre)
		rhs := l.lowerExprWithType(s.RHS, l.inferExprType(s.LHS), &pre)
		return append(pre, &CAssign{LHS: lhs, RHS: rhs})

	case *ReturnStmt:
		var pre []CStmt
		var value CExpr
		if s.Value != nil {
			value = l.lowerExprWithType(s.Value, l.curRet, &pre)
		}
		pre = append(pre, l.replayDefers()...)
		return append(pre, &CReturn{Value: value})

	case *IfStmt:
		var pre []CStmt
		cond := l.lowerExpr(s.Cond, &pre)
		then := l.lowerBlock(s.Then)
		var elseStmts []CStmt
		if elseBlock, ok := s.Else.(*Block); ok {
			elseStmts = l.lowerBlock(elseBlock)
		} else if s.Else != nil {
			elseStmts = l.lowerStmt(s.Else)
		}
		return append(pre, &CIf{Cond: cond, Then: then, Else: elseStmts})

	case *IfLetStmt:
		return l.lowerIfLet(s)

	case *WhileStmt:
		return l.lowerWhile(s)

	case *ForStmt:
		return l.lowerFor(s)

	case *SwitchStmt:
		return l.lowerSwitch(s)

	case *BreakStmt:
		return []CStmt{&CBreak{}}

	case *ContinueStmt:
		return []CStmt{&CContinue{}}

	case *DeferStmt:
		l.deferred = append(l.deferred, l.lowerBlock(s.Body))
		return nil

	case *ExprStmt:
		var pre []CStmt
		x := l.lowerExpr(s.X, &pre)
		return append(pre, &CExprStmt{X: x})

	case *DiscardStmt:
		var pre []CStmt
		x := l.lowerExpr(s.X, &pre)
		return append(pre, &CExprStmt{X: &CCast{Type: &CPrimType{Kind: CVoid}, X: x}})

	case *UnsafeStmt:
		// Unsafe only means the type checker allowed it; track the
		// region so runtime checks are suppressed inside.
		wasUnsafe := l.inUnsafe
		l.inUnsafe = true
		stmts := l.lowerBlock(s.Body)
		l.inUnsafe = wasUnsafe
		return stmts

	case *Block:
		return []CStmt{&CBlock{Stmts: l.lowerBlock(s)}}
	}
	return nil
}

// lowerIfLet evaluates the scrutinee into a temporary of the opt
// struct, then tests has_value and binds the payload in the then
// branch.
func (l *Lower) lowerIfLet(s *IfLetStmt) []CStmt {
	var pre []CStmt
	scrutinee := l.lowerExpr(s.Expr, &pre)

	exprType := l.inferExprType(s.Expr)
	var innerType CType = &CPrimType{Kind: CInt32}
	valueField := "value"
	condField := "has_value"
	if opt, ok := exprType.(*COptType); ok {
		innerType = opt.Elem
	} else if res, ok := exprType.(*CResType); ok {
		innerType = res.Ok
		valueField = "ok"
		condField = "is_ok"
	} else {
		exprType = &COptType{Elem: innerType}
	}

	tmp := l.freshTemp()
	pre = append(pre, &CVarDecl{Name: tmp, Type: exprType, Init: scrutinee})

	l.varTypes[s.Name] = innerType
	then := []CStmt{&CVarDecl{
		Name: s.Name,
		Type: innerType,
		Init: &CFieldExpr{Base: &CIdentExpr{Name: tmp}, Name: valueField},
	}}
	then = append(then, l.lowerBlock(s.Then)...)

	var elseStmts []CStmt
	if s.Else != nil {
		elseStmts = l.lowerBlock(s.Else)
	}

	return append(pre, &CIf{
		Cond: &CFieldExpr{Base: &CIdentExpr{Name: tmp}, Name: condField},
		Then: then,
		Else: elseStmts,
	})
}

// lowerWhile keeps the C while shape when the condition lowers
// cleanly; conditions that need runtime-check statements re-evaluate
// inside the loop.
func (l *Lower) lowerWhile(s *WhileStmt) []CStmt {
	var condPre []CStmt
	cond := l.lowerExpr(s.Cond, &condPre)
	body := l.lowerBlock(s.Body)

	if len(condPre) == 0 {
		return []CStmt{&CWhile{Cond: cond, Body: body}}
	}

	loop := condPre
	loop = append(loop, &CIf{
		Cond: &CUnary{Op: OpNot, Operand: &CParenExpr{X: cond}},
		Then: []CStmt{&CBreak{}},
	})
	loop = append(loop, body...)
	return []CStmt{&CWhile{Cond: &CBoolLit{Value: true}, Body: loop}}
}

// lowerFor emits a C for loop when every clause lowers without
// pre-statements; otherwise the loop is rebuilt around a while so
// per-iteration checks run on every pass.
func (l *Lower) lowerFor(s *ForStmt) []CStmt {
	var initPre []CStmt
	var init CStmt
	switch fi := s.Init.(type) {
	case *ForInitLet:
		cType := l.lowerType(fi.Type)
		l.varTypes[fi.Name] = cType
		value := l.lowerExprWithType(fi.Init, cType, &initPre)
		init = &CVarDecl{Name: fi.Name, Type: cType, Init: value}
	case *ForInitAssign:
		lhs := l.lowerExpr(fi.LHS, &initPre)
		rhs := l.lowerExpr(fi.RHS, &initPre)
		init = &CAssign{LHS: lhs, RHS: rhs}
	case *ForInitCall:
		call := l.lowerExpr(fi.Call, &initPre)
		init = &CExprStmt{X: call}
	}

	var condPre []CStmt
	var cond CExpr
	if s.Cond != nil {
		cond = l.lowerExpr(s.Cond, &condPre)
	}

	var stepPre []CStmt
	var step CStmt
	switch fs := s.Step.(type) {
	case *ForStepAssign:
		lhs := l.lowerExpr(fs.LHS, &stepPre)
		rhs := l.lowerExpr(fs.RHS, &stepPre)
		step = &CAssign{LHS: lhs, RHS: rhs}
	case *ForStepCall:
		call := l.lowerExpr(fs.Call, &stepPre)
		step = &CExprStmt{X: call}
	}

	body := l.lowerBlock(s.Body)

	if len(condPre) == 0 && len(stepPre) == 0 {
		loop := &CFor{Init: init, Cond: cond, Step: step, Body: body}
		if len(initPre) == 0 {
			return []CStmt{loop}
		}
		return []CStmt{&CBlock{Stmts: append(initPre, loop)}}
	}

	var outer []CStmt
	outer = append(outer, initPre...)
	if init != nil {
		outer = append(outer, init)
	}

	var loop []CStmt
	loop = append(loop, condPre...)
	if cond != nil {
		loop = append(loop, &CIf{
			Cond: &CUnary{Op: OpNot, Operand: &CParenExpr{X: cond}},
			Then: []CStmt{&CBreak{}},
		})
	}
	loop = append(loop, body...)
	loop = append(loop, stepPre...)
	if step != nil {
		loop = append(loop, step)
	}

	outer = append(outer, &CWhile{Cond: &CBoolLit{Value: true}, Body: loop})
	return []CStmt{&CBlock{Stmts: outer}}
}

func (l *Lower) lowerSwitch(s *SwitchStmt) []CStmt {
	var pre []CStmt
	subject := l.lowerExpr(s.Expr, &pre)

	cases := make([]CSwitchCase, len(s.Cases))
	for i, c := range s.Cases {
		var stmts []CStmt
		for _, inner := range c.Stmts {
			stmts = append(stmts, l.lowerStmt(inner)...)
		}
		stmts = append(stmts, &CBreak{})
		cases[i] = CSwitchCase{Value: l.lowerConstExpr(c.Value), Stmts: stmts}
	}

	var def []CStmt
	hasDef := false
	if s.Default != nil {
		hasDef = true
		for _, inner := range s.Default.Stmts {
			def = append(def, l.lowerStmt(inner)...)
		}
		def = append(def, &CBreak{})
	}

	return append(pre, &CSwitch{Expr: subject, Cases: cases, Default: def, HasDef: hasDef})
}

// lowerExprWithType lowers option/result constructors against the
// declared type so their compound literals carry the full struct
// type instead of a partially inferred one.
func (l *Lower) lowerExprWithType(expr Expr, expected CType, pre *[]CStmt) CExpr {
	switch e := expr.(type) {
	case *SomeExpr:
		if opt, ok := expected.(*COptType); ok {
			value := l.lowerExprWithType(e.Value, opt.Elem, pre)
			return &CCompound{Type: opt, Fields: []CCompoundField{
				{Name: "has_value", Value: &CBoolLit{Value: true}},
				{Name: "value", Value: value},
			}}
		}
	case *NoneExpr:
		if opt, ok := expected.(*COptType); ok {
			return &CCompound{Type: opt, Fields: []CCompoundField{
				{Name: "has_value", Value: &CBoolLit{Value: false}},
			}}
		}
	case *OkExpr:
		if res, ok := expected.(*CResType); ok {
			value := l.lowerExprWithType(e.Value, res.Ok, pre)
			return &CCompound{Type: res, Fields: []CCompoundField{
				{Name: "is_ok", Value: &CBoolLit{Value: true}},
				{Name: "ok", Value: value},
			}}
		}
	case *ErrExpr:
		if res, ok := expected.(*CResType); ok {
			value := l.lowerExprWithType(e.Value, res.Err, pre)
			return &CCompound{Type: res, Fields: []CCompoundField{
				{Name: "is_ok", Value: &CBoolLit{Value: false}},
				{Name: "err", Value: value},
			}}
		}
	case *ParenExpr:
		return &CParenExpr{X: l.lowerExprWithType(e.Inner, expected, pre)}
	}
	return l.lowerExpr(expr, pre)
}

func (l *Lower) lowerExpr(expr Expr, pre *[]CStmt) CExpr {
	switch e := expr.(type) {
	case *IntLit:
		return &CIntLit{Text: strconv.FormatInt(e.Value, 10)}

	case *FloatLit:
		if e.Raw != "" {
			return &CFloatLit{Text: e.Raw}
		}
		return &CFloatLit{Text: strconv.FormatFloat(e.Value, 'g', -1, 64)}

	case *BoolLit:
		return &CBoolLit{Value: e.Value}

	case *Ident:
		return &CIdentExpr{Name: e.Name}

	case *BinaryExpr:
		return l.lowerBinary(e, pre)

	case *UnaryExpr:
		operand := l.lowerExpr(e.Operand, pre)
		return &CUnary{Op: e.Op, Operand: operand}

	case *ParenExpr:
		inner := l.lowerExpr(e.Inner, pre)
		return &CParenExpr{X: inner}

	case *CallExpr:
		return l.lowerCall(e, pre)

	case *FieldExpr:
		base := l.lowerExpr(e.Base, pre)
		return &CFieldExpr{Base: base, Name: e.Name}

	case *AddrExpr:
		operand := l.lowerExpr(e.Operand, pre)
		return &CAddrOf{X: operand}

	case *DerefExpr:
		// Deref of a raw pointer is only reachable inside unsafe;
		// no runtime check there by design of the unsafe contract.
		operand := l.lowerExpr(e.Operand, pre)
		return &CDeref{X: operand}

	case *AtExpr:
		return l.lowerAt(e, pre)

	case *CastExpr:
		x := l.lowerExpr(e.X, pre)
		return &CCast{Type: l.lowerType(e.Type), X: x}

	case *CStrExpr:
		return &CStringLit{Value: e.Value}

	case *BytesExpr:
		return &CCompound{
			Type: &CSliceType{Elem: &CPrimType{Kind: CUInt8}},
			Fields: []CCompoundField{
				{Name: "data", Value: &CCast{
					Type: &CPtrType{Elem: &CPrimType{Kind: CUInt8}},
					X:    &CStringLit{Value: e.Value},
				}},
				{Name: "len", Value: &CIntLit{Text: strconv.Itoa(len(e.Value))}},
			},
		}

	case *SomeExpr:
		innerType := l.inferExprType(e.Value)
		value := l.lowerExpr(e.Value, pre)
		return &CCompound{
			Type: &COptType{Elem: innerType},
			Fields: []CCompoundField{
				{Name: "has_value", Value: &CBoolLit{Value: true}},
				{Name: "value", Value: value},
			},
		}

	case *NoneExpr:
		return &CCompound{
			Type: &COptType{Elem: l.lowerType(e.Type)},
			Fields: []CCompoundField{
				{Name: "has_value", Value: &CBoolLit{Value: false}},
			},
		}

	case *OkExpr:
		// Without an expected type only the ok side is known.
		value := l.lowerExpr(e.Value, pre)
		return &CCompound{
			Type: &CResType{Ok: l.inferExprType(e.Value), Err: &CPrimType{Kind: CVoid}},
			Fields: []CCompoundField{
				{Name: "is_ok", Value: &CBoolLit{Value: true}},
				{Name: "ok", Value: value},
			},
		}

	case *ErrExpr:
		value := l.lowerExpr(e.Value, pre)
		return &CCompound{
			Type: &CResType{Ok: &CPrimType{Kind: CVoid}, Err: l.inferExprType(e.Value)},
			Fields: []CCompoundField{
				{Name: "is_ok", Value: &CBoolLit{Value: false}},
				{Name: "err", Value: value},
			},
		}

	case *StructLit:
		fields := make([]CCompoundField, len(e.Fields))
		for i, field := range e.Fields {
			var expected CType = &CPrimType{Kind: CVoid}
			if layout, ok := l.structFields[e.Name]; ok {
				if fieldType, ok := layout[field.Name]; ok {
					expected = fieldType
				}
			}
			fields[i] = CCompoundField{
				Name:  field.Name,
				Value: l.lowerExprWithType(field.Value, expected, pre),
			}
		}
		return &CCompound{Type: &CNamedType{Name: e.Name}, Fields: fields}
	}
	return &CIdentExpr{Name: "0"}
}

func (l *Lower) lowerBinary(e *BinaryExpr, pre *[]CStmt) CExpr {
	switch e.Op {
	case OpAnd:
		// a && b becomes: bool t; if (a) { t = b; } else { t = false; }
		// so short-circuiting survives statement-level lowering.
		tmp := l.freshTemp()
		lhs := l.lowerExpr(e.LHS, pre)
		var rhsPre []CStmt
		rhs := l.lowerExpr(e.RHS, &rhsPre)

		*pre = append(*pre, &CVarDecl{Name: tmp, Type: &CPrimType{Kind: CBool}})
		*pre = append(*pre, &CIf{
			Cond: lhs,
			Then: append(rhsPre, &CAssign{LHS: &CIdentExpr{Name: tmp}, RHS: rhs}),
			Else: []CStmt{&CAssign{LHS: &CIdentExpr{Name: tmp}, RHS: &CBoolLit{Value: false}}},
		})
		return &CIdentExpr{Name: tmp}

	case OpOr:
		tmp := l.freshTemp()
		lhs := l.lowerExpr(e.LHS, pre)
		var rhsPre []CStmt
		rhs := l.lowerExpr(e.RHS, &rhsPre)

		*pre = append(*pre, &CVarDecl{Name: tmp, Type: &CPrimType{Kind: CBool}})
		*pre = append(*pre, &CIf{
			Cond: lhs,
			Then: []CStmt{&CAssign{LHS: &CIdentExpr{Name: tmp}, RHS: &CBoolLit{Value: true}}},
			Else: append(rhsPre, &CAssign{LHS: &CIdentExpr{Name: tmp}, RHS: rhs}),
		})
		return &CIdentExpr{Name: tmp}

	case OpDiv, OpRem:
		lhs := l.lowerExpr(e.LHS, pre)
		rhs := l.lowerExpr(e.RHS, pre)
		if !l.inUnsafe {
			*pre = append(*pre, divZeroCheck(rhs))
		}
		return &CBinary{Op: e.Op, LHS: lhs, RHS: rhs}

	case OpAdd, OpSub, OpMul:
		exprType := l.inferExprType(e.LHS)
		lhs := l.lowerExpr(e.LHS, pre)
		rhs := l.lowerExpr(e.RHS, pre)

		if !l.inUnsafe && isSignedIntegerCType(exprType) {
			tmp := l.freshTemp()
			decl, check := overflowCheck(e.Op, lhs, rhs, tmp, exprType)
			*pre = append(*pre, decl, check)
			return &CIdentExpr{Name: tmp}
		}
		return &CBinary{Op: e.Op, LHS: lhs, RHS: rhs}
	}

	lhs := l.lowerExpr(e.LHS, pre)
	rhs := l.lowerExpr(e.RHS, pre)
	return &CBinary{Op: e.Op, LHS: lhs, RHS: rhs}
}

// lowerCall hoists side-effecting arguments into temporaries because
// C does not guarantee left-to-right argument evaluation.
func (l *Lower) lowerCall(e *CallExpr, pre *[]CStmt) CExpr {
	callee := l.lowerExpr(e.Callee, pre)

	args := make([]CExpr, len(e.Args))
	for i, arg := range e.Args {
		cArg := l.lowerExpr(arg, pre)
		if hasSideEffects(arg) {
			tmp := l.freshTemp()
			argType := l.inferExprType(arg)
			if isVoidCType(argType) {
				argType = &CPrimType{Kind: CInt32}
			}
			*pre = append(*pre, &CVarDecl{Name: tmp, Type: argType, Init: cArg})
			args[i] = &CIdentExpr{Name: tmp}
		} else {
			args[i] = cArg
		}
	}

	return &CCall{Func: callee, Args: args}
}

// lowerAt inserts the slice bounds check in safe context and indexes
// through the slice data pointer; arrays index directly.
func (l *Lower) lowerAt(e *AtExpr, pre *[]CStmt) CExpr {
	baseType := l.inferExprType(e.Base)
	base := l.lowerExpr(e.Base, pre)
	index := l.lowerExpr(e.Index, pre)

	if _, isSlice := baseType.(*CSliceType); isSlice {
		if !l.inUnsafe {
			*pre = append(*pre, boundsCheck(index,
				&CFieldExpr{Base: base, Name: "len"}))
		}
		return &CIndex{
			Base:  &CFieldExpr{Base: base, Name: "data"},
			Index: index,
		}
	}

	// Fixed arrays carry a static length; C performs the access
	// directly.
	return &CIndex{Base: base, Index: index}
}

// --- Type lowering ---

var cPrimForSource = map[Primitive]CPrim{
	I8: CInt8, I16: CInt16, I32: CInt32, I64: CInt64,
	U8: CUInt8, U16: CUInt16, U32: CUInt32, U64: CUInt64,
	F32: CFloat, F64: CDouble, Bool: CBool,
	Usize: CSizeT, Isize: CPtrDiffT,
}

func (l *Lower) lowerType(ty TypeExpr) CType {
	switch t := ty.(type) {
	case *PrimType:
		return &CPrimType{Kind: cPrimForSource[t.Kind]}
	case *VoidType:
		return &CPrimType{Kind: CVoid}
	case *NamedType:
		return &CNamedType{Name: t.Name}

	case *RefType:
		return &CConstPtrType{Elem: l.lowerType(t.Elem)}
	case *RawType:
		return &CConstPtrType{Elem: l.lowerType(t.Elem)}

	case *MrefType:
		return &CPtrType{Elem: l.lowerType(t.Elem)}
	case *RawmType:
		return &CPtrType{Elem: l.lowerType(t.Elem)}

	case *OwnType:
		// Ownership tracking is a future phase; the pointer shape is
		// all C sees.
		return &CPtrType{Elem: l.lowerType(t.Elem)}

	case *SliceType:
		return &CSliceType{Elem: l.lowerType(t.Elem)}

	case *ArrType:
		size, ok := l.evalConstSize(t.Size)
		if !ok {
			size = 0
		}
		return &CArrayType{Elem: l.lowerType(t.Elem), Size: size}

	case *OptType:
		return &COptType{Elem: l.lowerType(t.Elem)}

	case *ResType:
		return &CResType{Ok: l.lowerType(t.Ok), Err: l.lowerType(t.Err)}
	}
	// Function types have no C mapping yet.
	return &CPrimType{Kind: CVoid}
}

func (l *Lower) lowerConstExpr(expr ConstExpr) CExpr {
	switch c := expr.(type) {
	case *ConstInt:
		return &CIntLit{Text: strconv.FormatInt(c.Value, 10)}
	case *ConstFloat:
		return &CFloatLit{Text: strconv.FormatFloat(c.Value, 'g', -1, 64)}
	case *ConstBool:
		return &CBoolLit{Value: c.Value}
	case *ConstIdent:
		return &CIdentExpr{Name: c.Name}
	case *ConstBinary:
		return &CBinary{Op: c.Op, LHS: l.lowerConstExpr(c.LHS), RHS: l.lowerConstExpr(c.RHS)}
	case *ConstUnary:
		return &CUnary{Op: c.Op, Operand: l.lowerConstExpr(c.Operand)}
	case *ConstParen:
		return &CParenExpr{X: l.lowerConstExpr(c.Inner)}
	case *ConstCast:
		return &CCast{Type: l.lowerType(c.Type), X: l.lowerConstExpr(c.X)}
	case *ConstCStr:
		return &CStringLit{Value: c.Value}
	case *ConstBytes:
		return &CStringLit{Value: c.Value}
	}
	return &CIntLit{Text: "0"}
}

// evalConstSize evaluates an array-size expression.  Supported forms
// are integer literals, parens, + - * / and unary minus (rejected
// when it would yield a negative size); anything else is a hard error
// at lowering.
func (l *Lower) evalConstSize(expr ConstExpr) (int, bool) {
	switch c := expr.(type) {
	case *ConstInt:
		if c.Value < 0 {
			l.errorf("array size cannot be negative")
			return 0, false
		}
		return int(c.Value), true

	case *ConstParen:
		return l.evalConstSize(c.Inner)

	case *ConstBinary:
		lhs, okL := l.evalConstSize(c.LHS)
		rhs, okR := l.evalConstSize(c.RHS)
		if !okL || !okR {
			return 0, false
		}
		switch c.Op {
		case OpAdd:
			return lhs + rhs, true
		case OpSub:
			if rhs > lhs {
				l.errorf("array size cannot be negative")
				return 0, false
			}
			return lhs - rhs, true
		case OpMul:
			return lhs * rhs, true
		case OpDiv:
			if rhs == 0 {
				l.errorf("division by zero in array size")
				return 0, false
			}
			return lhs / rhs, true
		}
		l.errorf("unsupported operator in array size")
		return 0, false

	case *ConstUnary:
		if c.Op != OpNeg {
			l.errorf("unsupported operator in array size")
			return 0, false
		}
		value, ok := l.evalConstSize(c.Operand)
		if !ok {
			return 0, false
		}
		if value != 0 {
			l.errorf("array size cannot be negative")
			return 0, false
		}
		return 0, true
	}

	l.errorf("unsupported constant expression in array size")
	return 0, false
}

func (l *Lower) errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, NewTypeError(
		fmt.Sprintf(format, args...), NewSpan(0, 0), l.source))
}

// --- Expression type inference for lowering ---

// inferExprType is the lightweight inference lowering needs to pick
// runtime checks and typedef shapes; the type checker already proved
// the program well-typed.
func (l *Lower) inferExprType(expr Expr) CType {
	switch e := expr.(type) {
	case *IntLit:
		return &CPrimType{Kind: CInt32}
	case *FloatLit:
		return &CPrimType{Kind: CDouble}
	case *BoolLit:
		return &CPrimType{Kind: CBool}
	case *CStrExpr:
		return &CConstPtrType{Elem: &CPrimType{Kind: CUInt8}}
	case *BytesExpr:
		return &CSliceType{Elem: &CPrimType{Kind: CUInt8}}

	case *CastExpr:
		return l.lowerType(e.Type)

	case *ParenExpr:
		return l.inferExprType(e.Inner)

	case *UnaryExpr:
		if e.Op == OpNot {
			return &CPrimType{Kind: CBool}
		}
		return l.inferExprType(e.Operand)

	case *BinaryExpr:
		switch e.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
			return &CPrimType{Kind: CBool}
		}
		return l.inferExprType(e.LHS)

	case *Ident:
		if ty, ok := l.varTypes[e.Name]; ok {
			return ty
		}
		return &CPrimType{Kind: CVoid}

	case *CallExpr:
		if ident, ok := e.Callee.(*Ident); ok {
			if ret, ok := l.fnRetTypes[ident.Name]; ok {
				return ret
			}
		}
		return &CPrimType{Kind: CVoid}

	case *FieldExpr:
		if named, ok := l.inferExprType(e.Base).(*CNamedType); ok {
			if layout, ok := l.structFields[named.Name]; ok {
				if fieldType, ok := layout[e.Name]; ok {
					return fieldType
				}
			}
		}
		return &CPrimType{Kind: CVoid}

	case *AtExpr:
		switch base := l.inferExprType(e.Base).(type) {
		case *CSliceType:
			return base.Elem
		case *CArrayType:
			return base.Elem
		}
		return &CPrimType{Kind: CVoid}

	case *DerefExpr:
		switch ptr := l.inferExprType(e.Operand).(type) {
		case *CPtrType:
			return ptr.Elem
		case *CConstPtrType:
			return ptr.Elem
		}
		return &CPrimType{Kind: CVoid}

	case *AddrExpr:
		return &CPtrType{Elem: l.inferExprType(e.Operand)}

	case *SomeExpr:
		return &COptType{Elem: l.inferExprType(e.Value)}
	case *NoneExpr:
		return &COptType{Elem: l.lowerType(e.Type)}
	case *OkExpr:
		return &CResType{Ok: l.inferExprType(e.Value), Err: &CPrimType{Kind: CVoid}}
	case *ErrExpr:
		return &CResType{Ok: &CPrimType{Kind: CVoid}, Err: l.inferExprType(e.Value)}

	case *StructLit:
		return &CNamedType{Name: e.Name}
	}
	return &CPrimType{Kind: CVoid}
}

// hasSideEffects reports whether evaluating expr can call a function,
// which is what forces an evaluation-order temporary.
func hasSideEffects(expr Expr) bool {
	switch e := expr.(type) {
	case *CallExpr:
		return true
	case *BinaryExpr:
		return hasSideEffects(e.LHS) || hasSideEffects(e.RHS)
	case *UnaryExpr:
		return hasSideEffects(e.Operand)
	case *ParenExpr:
		return hasSideEffects(e.Inner)
	case *FieldExpr:
		return hasSideEffects(e.Base)
	case *AddrExpr:
		return hasSideEffects(e.Operand)
	case *DerefExpr:
		return hasSideEffects(e.Operand)
	case *AtExpr:
		return hasSideEffects(e.Base) || hasSideEffects(e.Index)
	case *CastExpr:
		return hasSideEffects(e.X)
	case *SomeExpr:
		return hasSideEffects(e.Value)
	case *OkExpr:
		return hasSideEffects(e.Value)
	case *ErrExpr:
		return hasSideEffects(e.Value)
	}
	return false
}

func isSignedIntegerCType(ty CType) bool {
	prim, ok := ty.(*CPrimType)
	if !ok {
		return false
	}
	switch prim.Kind {
	case CInt8, CInt16, CInt32, CInt64, CPtrDiffT:
		return true
	}
	return false
}

func isVoidCType(ty CType) bool {
	prim, ok := ty.(*CPrimType)
	return ok && prim.Kind == CVoid
}

func (l *Lower) freshTemp() string {
	name := fmt.Sprintf("__tmp%d", l.tempCounter)
	l.tempCounter++
	return name
}

// lowerIdent lowercases an ASCII identifier for variant field names.
func lowerIdent(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
