package fastc

import (
	"fmt"
	"sort"
)

// Generated slice/opt/res struct typedefs.  Every composite type used
// anywhere in the lowered file is collected by name, then the needed
// struct declarations are synthesized and prepended in sorted order.
// Names the runtime header already provides are suppressed.

// builtinSliceElems lists the element type names whose fc_slice_T
// structs ship in fastc_runtime.h.
var builtinSliceElems = map[string]bool{
	"uint8_t": true, "int8_t": true,
	"uint16_t": true, "int16_t": true,
	"uint32_t": true, "int32_t": true,
	"uint64_t": true, "int64_t": true,
	"float": true, "double": true,
}

func (l *Lower) generateTypedefs(cFile *CFile) {
	l.collectTypesFromFile(cFile)

	var generated []CDecl

	sliceNames := sortedKeys(l.sliceTypes)
	for _, name := range sliceNames {
		if builtinSliceElems[name] {
			continue
		}
		generated = append(generated, &CStructDecl{
			Name: "fc_slice_" + name,
			Fields: []CField{
				{Name: "data", Type: &CPtrType{Elem: l.sliceTypes[name]}},
				{Name: "len", Type: &CPrimType{Kind: CSizeT}},
			},
		})
	}

	optNames := sortedKeys(l.optTypes)
	for _, name := range optNames {
		elem := l.optTypes[name]
		if isVoidCType(elem) {
			continue
		}
		generated = append(generated, &CStructDecl{
			Name: "fc_opt_" + name,
			Fields: []CField{
				{Name: "has_value", Type: &CPrimType{Kind: CBool}},
				{Name: "value", Type: elem},
			},
		})
	}

	resNames := make([]string, 0, len(l.resTypes))
	for name := range l.resTypes {
		resNames = append(resNames, name)
	}
	sort.Strings(resNames)
	for _, name := range resNames {
		elems := l.resTypes[name]
		// A void side means the constructor's counterpart type was
		// never pinned down by a declaration; such a struct cannot
		// exist in C and the declared-type variant covers real uses.
		if isVoidCType(elems.ok) || isVoidCType(elems.err) {
			continue
		}
		generated = append(generated, &CStructDecl{
			Name: "fc_res_" + name,
			Fields: []CField{
				{Name: "is_ok", Type: &CPrimType{Kind: CBool}},
				{Name: "ok", Type: elems.ok},
				{Name: "err", Type: elems.err},
			},
		})
	}

	cFile.TypeDefs = append(generated, cFile.TypeDefs...)
}

func sortedKeys(m map[string]CType) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (l *Lower) collectTypesFromFile(cFile *CFile) {
	for _, decl := range cFile.TypeDefs {
		if structDecl, ok := decl.(*CStructDecl); ok {
			for _, field := range structDecl.Fields {
				l.collectTypesFromType(field.Type)
			}
		}
	}
	for _, constDecl := range cFile.Consts {
		l.collectTypesFromType(constDecl.Type)
	}
	for _, proto := range cFile.FnProtos {
		l.collectTypesFromType(proto.ReturnType)
		for _, param := range proto.Params {
			l.collectTypesFromType(param.Type)
		}
	}
	for _, fnDef := range cFile.FnDefs {
		l.collectTypesFromType(fnDef.ReturnType)
		for _, param := range fnDef.Params {
			l.collectTypesFromType(param.Type)
		}
		for _, stmt := range fnDef.Body {
			l.collectTypesFromStmt(stmt)
		}
	}
}

func (l *Lower) collectTypesFromStmt(stmt CStmt) {
	switch s := stmt.(type) {
	case *CVarDecl:
		l.collectTypesFromType(s.Type)
		if s.Init != nil {
			l.collectTypesFromExpr(s.Init)
		}
	case *CAssign:
		l.collectTypesFromExpr(s.LHS)
		l.collectTypesFromExpr(s.RHS)
	case *CIf:
		l.collectTypesFromExpr(s.Cond)
		for _, inner := range s.Then {
			l.collectTypesFromStmt(inner)
		}
		for _, inner := range s.Else {
			l.collectTypesFromStmt(inner)
		}
	case *CWhile:
		l.collectTypesFromExpr(s.Cond)
		for _, inner := range s.Body {
			l.collectTypesFromStmt(inner)
		}
	case *CFor:
		if s.Init != nil {
			l.collectTypesFromStmt(s.Init)
		}
		if s.Cond != nil {
			l.collectTypesFromExpr(s.Cond)
		}
		if s.Step != nil {
			l.collectTypesFromStmt(s.Step)
		}
		for _, inner := range s.Body {
			l.collectTypesFromStmt(inner)
		}
	case *CReturn:
		if s.Value != nil {
			l.collectTypesFromExpr(s.Value)
		}
	case *CExprStmt:
		l.collectTypesFromExpr(s.X)
	case *CBlock:
		for _, inner := range s.Stmts {
			l.collectTypesFromStmt(inner)
		}
	case *CSwitch:
		l.collectTypesFromExpr(s.Expr)
		for _, c := range s.Cases {
			l.collectTypesFromExpr(c.Value)
			for _, inner := range c.Stmts {
				l.collectTypesFromStmt(inner)
			}
		}
		for _, inner := range s.Default {
			l.collectTypesFromStmt(inner)
		}
	}
}

func (l *Lower) collectTypesFromExpr(expr CExpr) {
	switch e := expr.(type) {
	case *CBinary:
		l.collectTypesFromExpr(e.LHS)
		l.collectTypesFromExpr(e.RHS)
	case *CUnary:
		l.collectTypesFromExpr(e.Operand)
	case *CCall:
		l.collectTypesFromExpr(e.Func)
		for _, arg := range e.Args {
			l.collectTypesFromExpr(arg)
		}
	case *CFieldExpr:
		l.collectTypesFromExpr(e.Base)
	case *CDeref:
		l.collectTypesFromExpr(e.X)
	case *CAddrOf:
		l.collectTypesFromExpr(e.X)
	case *CParenExpr:
		l.collectTypesFromExpr(e.X)
	case *CIndex:
		l.collectTypesFromExpr(e.Base)
		l.collectTypesFromExpr(e.Index)
	case *CCast:
		l.collectTypesFromType(e.Type)
		l.collectTypesFromExpr(e.X)
	case *CCompound:
		l.collectTypesFromType(e.Type)
		for _, field := range e.Fields {
			l.collectTypesFromExpr(field.Value)
		}
	}
}

func (l *Lower) collectTypesFromType(ty CType) {
	switch t := ty.(type) {
	case *CSliceType:
		l.sliceTypes[cTypeName(t.Elem)] = t.Elem
		l.collectTypesFromType(t.Elem)
	case *COptType:
		l.optTypes[cTypeName(t.Elem)] = t.Elem
		l.collectTypesFromType(t.Elem)
	case *CResType:
		name := fmt.Sprintf("%s_%s", cTypeName(t.Ok), cTypeName(t.Err))
		l.resTypes[name] = resElems{ok: t.Ok, err: t.Err}
		l.collectTypesFromType(t.Ok)
		l.collectTypesFromType(t.Err)
	case *CPtrType:
		l.collectTypesFromType(t.Elem)
	case *CConstPtrType:
		l.collectTypesFromType(t.Elem)
	case *CArrayType:
		l.collectTypesFromType(t.Elem)
	}
}

// cTypeName is the flattened spelling used in generated typedef
// names.
func cTypeName(ty CType) string {
	switch t := ty.(type) {
	case *CPrimType:
		return t.Kind.String()
	case *CPtrType:
		return "ptr_" + cTypeName(t.Elem)
	case *CConstPtrType:
		return "cptr_" + cTypeName(t.Elem)
	case *CNamedType:
		return t.Name
	case *CSliceType:
		return "slice_" + cTypeName(t.Elem)
	case *COptType:
		return "opt_" + cTypeName(t.Elem)
	case *CResType:
		return fmt.Sprintf("res_%s_%s", cTypeName(t.Ok), cTypeName(t.Err))
	case *CArrayType:
		return fmt.Sprintf("arr%d_%s", t.Size, cTypeName(t.Elem))
	}
	return "void"
}
