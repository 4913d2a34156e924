package fastc

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"
)

//go:embed runtime/fastc_runtime.h
var runtimeHeaderContent string

// RuntimeHeader returns the contents of fastc_runtime.h so frontends
// can write it next to the generated C.
func RuntimeHeader() string {
	return runtimeHeaderContent
}

// Emitter serializes a CAST to C11 source text.  Identical input
// produces identical bytes: no timestamps, no absolute paths, no
// hash-ordered iteration.
type Emitter struct {
	out *outputWriter
}

func NewEmitter() *Emitter {
	return &Emitter{out: newOutputWriter("    ")}
}

// Emit renders a translation unit: includes, type declarations in the
// order received, constants, prototypes, then definitions.
func (g *Emitter) Emit(cFile *CFile) string {
	g.out = newOutputWriter("    ")

	for _, include := range cFile.Includes {
		g.out.writel("#include " + include)
	}
	g.out.writel("")

	for _, decl := range cFile.TypeDefs {
		g.emitDecl(decl)
		g.out.writel("")
	}

	for _, constDecl := range cFile.Consts {
		g.out.writel(fmt.Sprintf("static const %s = %s;",
			g.typeAndName(constDecl.Type, constDecl.Name),
			g.exprString(constDecl.Value)))
	}
	if len(cFile.Consts) > 0 {
		g.out.writel("")
	}

	for _, proto := range cFile.FnProtos {
		g.out.writel(g.signature(proto.Name, proto.Params, proto.ReturnType) + ";")
	}
	if len(cFile.FnProtos) > 0 {
		g.out.writel("")
	}

	for i, fnDef := range cFile.FnDefs {
		if i > 0 {
			g.out.writel("")
		}
		g.emitFnDef(fnDef)
	}

	return g.out.buffer.String()
}

// EmitHeader renders the public header: type declarations plus the
// prototypes of every defined function, wrapped in an include guard
// derived from the module name.
func (g *Emitter) EmitHeader(cFile *CFile, moduleName string) string {
	g.out = newOutputWriter("    ")
	guard := strings.ToUpper(sanitizeCIdent(moduleName)) + "_H"

	g.out.writel("#ifndef " + guard)
	g.out.writel("#define " + guard)
	g.out.writel("")

	for _, include := range cFile.Includes {
		g.out.writel("#include " + include)
	}
	g.out.writel("")

	for _, decl := range cFile.TypeDefs {
		g.emitDecl(decl)
		g.out.writel("")
	}

	for _, fnDef := range cFile.FnDefs {
		g.out.writel(g.signature(fnDef.Name, fnDef.Params, fnDef.ReturnType) + ";")
	}
	g.out.writel("")
	g.out.writel(fmt.Sprintf("#endif /* %s */", guard))

	return g.out.buffer.String()
}

func (g *Emitter) emitDecl(decl CDecl) {
	switch d := decl.(type) {
	case *CStructDecl:
		g.out.writel("typedef struct {")
		g.out.indent()
		for _, field := range d.Fields {
			g.out.writeil(g.typeAndName(field.Type, field.Name) + ";")
		}
		g.out.unindent()
		g.out.writel(fmt.Sprintf("} %s;", d.Name))

	case *CEnumDecl:
		g.out.writel("typedef enum {")
		g.out.indent()
		for i, variant := range d.Variants {
			if i < len(d.Variants)-1 {
				g.out.writeil(variant + ",")
			} else {
				g.out.writeil(variant)
			}
		}
		g.out.unindent()
		g.out.writel(fmt.Sprintf("} %s;", d.Name))

	case *CTypedefDecl:
		g.out.writel(fmt.Sprintf("typedef %s;", g.typeAndName(d.Type, d.Name)))

	case *COpaqueDecl:
		g.out.writel(fmt.Sprintf("typedef struct %s %s;", d.Name, d.Name))

	case *CConstDecl:
		g.out.writel(fmt.Sprintf("static const %s = %s;",
			g.typeAndName(d.Type, d.Name), g.exprString(d.Value)))
	}
}

func (g *Emitter) signature(name string, params []CParam, ret CType) string {
	var b strings.Builder
	b.WriteString(g.typeAndName(ret, name))
	b.WriteString("(")
	if len(params) == 0 {
		b.WriteString("void")
	} else {
		for i, param := range params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(g.typeAndName(param.Type, param.Name))
		}
	}
	b.WriteString(")")
	return b.String()
}

func (g *Emitter) emitFnDef(fnDef CFnDef) {
	g.out.writel(g.signature(fnDef.Name, fnDef.Params, fnDef.ReturnType) + " {")
	g.out.indent()
	for _, stmt := range fnDef.Body {
		g.emitStmt(stmt)
	}
	g.out.unindent()
	g.out.writel("}")
}

func (g *Emitter) emitStmt(stmt CStmt) {
	switch s := stmt.(type) {
	case *CVarDecl:
		if s.Init != nil {
			g.out.writeil(fmt.Sprintf("%s = %s;",
				g.typeAndName(s.Type, s.Name), g.exprString(s.Init)))
		} else {
			g.out.writeil(g.typeAndName(s.Type, s.Name) + ";")
		}

	case *CAssign:
		g.out.writeilf("%s = %s;", g.exprString(s.LHS), g.exprString(s.RHS))

	case *CIf:
		g.emitIf(s)

	case *CWhile:
		g.out.writeilf("while (%s) {", g.exprString(s.Cond))
		g.out.indent()
		for _, inner := range s.Body {
			g.emitStmt(inner)
		}
		g.out.unindent()
		g.out.writeil("}")

	case *CFor:
		g.out.writeil(fmt.Sprintf("for (%s; %s; %s) {",
			g.inlineStmt(s.Init), g.optExprString(s.Cond), g.inlineStmt(s.Step)))
		g.out.indent()
		for _, inner := range s.Body {
			g.emitStmt(inner)
		}
		g.out.unindent()
		g.out.writeil("}")

	case *CReturn:
		if s.Value != nil {
			g.out.writeilf("return %s;", g.exprString(s.Value))
		} else {
			g.out.writeil("return;")
		}

	case *CExprStmt:
		g.out.writeil(g.exprString(s.X) + ";")

	case *CBlock:
		g.out.writeil("{")
		g.out.indent()
		for _, inner := range s.Stmts {
			g.emitStmt(inner)
		}
		g.out.unindent()
		g.out.writeil("}")

	case *CSwitch:
		g.out.writeilf("switch (%s) {", g.exprString(s.Expr))
		for _, c := range s.Cases {
			g.out.writeilf("case %s:", g.exprString(c.Value))
			g.out.indent()
			for _, inner := range c.Stmts {
				g.emitStmt(inner)
			}
			g.out.unindent()
		}
		if s.HasDef {
			g.out.writeil("default:")
			g.out.indent()
			for _, inner := range s.Default {
				g.emitStmt(inner)
			}
			g.out.unindent()
		}
		g.out.writeil("}")

	case *CBreak:
		g.out.writeil("break;")

	case *CContinue:
		g.out.writeil("continue;")
	}
}

// emitIf prints a bare trap-style check on one line; everything else
// gets braces.  An else holding exactly one if chains as `else if`.
func (g *Emitter) emitIf(s *CIf) {
	if len(s.Then) == 1 && s.Else == nil {
		if exprStmt, ok := s.Then[0].(*CExprStmt); ok {
			g.out.writeil(fmt.Sprintf("if (%s) %s;",
				g.exprString(s.Cond), g.exprString(exprStmt.X)))
			return
		}
	}

	g.out.writeilf("if (%s) {", g.exprString(s.Cond))
	g.out.indent()
	for _, inner := range s.Then {
		g.emitStmt(inner)
	}
	g.out.unindent()

	if s.Else == nil {
		g.out.writeil("}")
		return
	}

	if len(s.Else) == 1 {
		if elseIf, ok := s.Else[0].(*CIf); ok {
			g.out.writei("} else ")
			g.emitElseIf(elseIf)
			return
		}
	}

	g.out.writeil("} else {")
	g.out.indent()
	for _, inner := range s.Else {
		g.emitStmt(inner)
	}
	g.out.unindent()
	g.out.writeil("}")
}

// emitElseIf continues an `} else if` chain from the cursor position.
func (g *Emitter) emitElseIf(s *CIf) {
	g.out.writel(fmt.Sprintf("if (%s) {", g.exprString(s.Cond)))
	g.out.indent()
	for _, inner := range s.Then {
		g.emitStmt(inner)
	}
	g.out.unindent()

	if s.Else == nil {
		g.out.writeil("}")
		return
	}
	if len(s.Else) == 1 {
		if elseIf, ok := s.Else[0].(*CIf); ok {
			g.out.writei("} else ")
			g.emitElseIf(elseIf)
			return
		}
	}
	g.out.writeil("} else {")
	g.out.indent()
	for _, inner := range s.Else {
		g.emitStmt(inner)
	}
	g.out.unindent()
	g.out.writeil("}")
}

// inlineStmt renders a statement without its trailing semicolon for
// use inside a for header.
func (g *Emitter) inlineStmt(stmt CStmt) string {
	switch s := stmt.(type) {
	case nil:
		return ""
	case *CVarDecl:
		if s.Init != nil {
			return fmt.Sprintf("%s = %s", g.typeAndName(s.Type, s.Name), g.exprString(s.Init))
		}
		return g.typeAndName(s.Type, s.Name)
	case *CAssign:
		return fmt.Sprintf("%s = %s", g.exprString(s.LHS), g.exprString(s.RHS))
	case *CExprStmt:
		return g.exprString(s.X)
	}
	return ""
}

func (g *Emitter) optExprString(expr CExpr) string {
	if expr == nil {
		return ""
	}
	return g.exprString(expr)
}

// --- Expressions ---

func (g *Emitter) exprString(expr CExpr) string {
	switch e := expr.(type) {
	case *CIntLit:
		return e.Text
	case *CFloatLit:
		return e.Text
	case *CBoolLit:
		if e.Value {
			return "true"
		}
		return "false"
	case *CStringLit:
		return quoteCString(e.Value)
	case *CIdentExpr:
		return e.Name

	case *CBinary:
		return fmt.Sprintf("%s %s %s",
			g.operandString(e.LHS), e.Op, g.operandString(e.RHS))

	case *CUnary:
		return e.Op.String() + g.operandString(e.Operand)

	case *CCall:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = g.exprString(arg)
		}
		return fmt.Sprintf("%s(%s)", g.exprString(e.Func), strings.Join(args, ", "))

	case *CFieldExpr:
		return g.postfixString(e.Base) + "." + e.Name

	case *CDeref:
		return "(*" + g.exprString(e.X) + ")"

	case *CAddrOf:
		return "&" + g.postfixString(e.X)

	case *CIndex:
		return fmt.Sprintf("%s[%s]", g.postfixString(e.Base), g.exprString(e.Index))

	case *CCast:
		return fmt.Sprintf("(%s)%s", g.typeString(e.Type), g.operandString(e.X))

	case *CParenExpr:
		return "(" + g.exprString(e.X) + ")"

	case *CCompound:
		fields := make([]string, len(e.Fields))
		for i, field := range e.Fields {
			fields[i] = fmt.Sprintf(".%s = %s", field.Name, g.exprString(field.Value))
		}
		return fmt.Sprintf("(%s){ %s }", g.typeString(e.Type), strings.Join(fields, ", "))
	}
	return ""
}

// operandString parenthesizes operands that would otherwise be
// ambiguous inside a larger expression.
func (g *Emitter) operandString(expr CExpr) string {
	switch expr.(type) {
	case *CBinary, *CCast:
		return "(" + g.exprString(expr) + ")"
	}
	return g.exprString(expr)
}

// postfixString parenthesizes bases of field/index accesses that are
// not postfix expressions themselves.
func (g *Emitter) postfixString(expr CExpr) string {
	switch expr.(type) {
	case *CIdentExpr, *CFieldExpr, *CIndex, *CCall, *CParenExpr, *CDeref:
		return g.exprString(expr)
	}
	return "(" + g.exprString(expr) + ")"
}

// --- Types ---

// typeString renders a type in prefix position (no declarator).
func (g *Emitter) typeString(ty CType) string {
	switch t := ty.(type) {
	case *CPrimType:
		return t.Kind.String()
	case *CPtrType:
		return g.typeString(t.Elem) + " *"
	case *CConstPtrType:
		return "const " + g.typeString(t.Elem) + " *"
	case *CNamedType:
		return t.Name
	case *CSliceType:
		return "fc_slice_" + cTypeName(t.Elem)
	case *COptType:
		return "fc_opt_" + cTypeName(t.Elem)
	case *CResType:
		return fmt.Sprintf("fc_res_%s_%s", cTypeName(t.Ok), cTypeName(t.Err))
	case *CArrayType:
		// Arrays only appear through declarators.
		return g.typeString(t.Elem)
	}
	return "void"
}

// typeAndName renders a declarator: `T name`, `T *name`, `T name[N]`.
func (g *Emitter) typeAndName(ty CType, name string) string {
	switch t := ty.(type) {
	case *CPtrType:
		return fmt.Sprintf("%s *%s", g.typeString(t.Elem), name)
	case *CConstPtrType:
		return fmt.Sprintf("const %s *%s", g.typeString(t.Elem), name)
	case *CArrayType:
		return fmt.Sprintf("%s %s[%d]", g.typeString(t.Elem), name, t.Size)
	}
	return g.typeString(ty) + " " + name
}

func quoteCString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func sanitizeCIdent(s string) string {
	if s == "" {
		return "X"
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if i == 0 {
			if r == '_' || unicode.IsLetter(r) {
				b.WriteRune(r)
				continue
			}
			if unicode.IsDigit(r) {
				b.WriteRune('_')
				b.WriteRune(r)
				continue
			}
			b.WriteRune('_')
			continue
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
