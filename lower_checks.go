package fastc

// Runtime-check statement builders.  Every check traps through
// fc_trap(), the no-return abort point provided by the runtime
// header.

func trapCall() CStmt {
	return &CExprStmt{X: &CCall{Func: &CIdentExpr{Name: "fc_trap"}}}
}

// boundsCheck emits `if (index >= len) fc_trap();`.
func boundsCheck(index, length CExpr) CStmt {
	return &CIf{
		Cond: &CBinary{Op: OpGe, LHS: index, RHS: length},
		Then: []CStmt{trapCall()},
	}
}

// nullCheck emits `if (ptr == NULL) fc_trap();`.
func nullCheck(ptr CExpr) CStmt {
	return &CIf{
		Cond: &CBinary{Op: OpEq, LHS: ptr, RHS: &CIdentExpr{Name: "NULL"}},
		Then: []CStmt{trapCall()},
	}
}

// divZeroCheck emits `if (divisor == 0) fc_trap();`.
func divZeroCheck(divisor CExpr) CStmt {
	return &CIf{
		Cond: &CBinary{Op: OpEq, LHS: divisor, RHS: &CIntLit{Text: "0"}},
		Then: []CStmt{trapCall()},
	}
}

var overflowBuiltins = map[BinOp]string{
	OpAdd: "__builtin_add_overflow",
	OpSub: "__builtin_sub_overflow",
	OpMul: "__builtin_mul_overflow",
}

// overflowCheck rewrites a signed `lhs op rhs` into a declaration of
// resultVar plus `if (__builtin_*_overflow(lhs, rhs, &resultVar))
// fc_trap();`.  The caller uses resultVar as the expression value.
func overflowCheck(op BinOp, lhs, rhs CExpr, resultVar string, ty CType) (CStmt, CStmt) {
	decl := &CVarDecl{Name: resultVar, Type: ty}
	check := &CIf{
		Cond: &CCall{
			Func: &CIdentExpr{Name: overflowBuiltins[op]},
			Args: []CExpr{
				lhs,
				rhs,
				&CAddrOf{X: &CIdentExpr{Name: resultVar}},
			},
		},
		Then: []CStmt{trapCall()},
	}
	return decl, check
}
