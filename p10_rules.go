package fastc

import (
	"fmt"
	"sort"
	"strings"
)

// P10Rule is the capability set a rule exposes to the registry: its
// number, name, enablement predicate and node-level checks.
type P10Rule interface {
	RuleNumber() int
	Name() string
	Description() string
	IsEnabled(config P10Config) bool

	CheckFile(file *File, config P10Config, source string) []P10Violation
	CheckFunction(fn *FnDecl, config P10Config, source string) []P10Violation
	CheckStmt(stmt Stmt, config P10Config, source string) []P10Violation
	CheckExpr(expr Expr, config P10Config, source string) []P10Violation
}

// baseRule provides no-op node checks so rules override only what
// they need.
type baseRule struct{}

func (baseRule) CheckFile(*File, P10Config, string) []P10Violation       { return nil }
func (baseRule) CheckFunction(*FnDecl, P10Config, string) []P10Violation { return nil }
func (baseRule) CheckStmt(Stmt, P10Config, string) []P10Violation        { return nil }
func (baseRule) CheckExpr(Expr, P10Config, string) []P10Violation        { return nil }

// RuleRegistry holds the rule set and drives the recursive walk of
// every function body.
type RuleRegistry struct {
	rules []P10Rule
}

func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: []P10Rule{
			&ControlFlowRule{},
			&LoopBoundsRule{},
			&MemoryRule{},
			&FunctionSizeRule{},
			&PointerDepthRule{},
		},
	}
}

func (r *RuleRegistry) EnabledRules(config P10Config) []P10Rule {
	var enabled []P10Rule
	for _, rule := range r.rules {
		if rule.IsEnabled(config) {
			enabled = append(enabled, rule)
		}
	}
	return enabled
}

func (r *RuleRegistry) CheckFile(file *File, config P10Config, source string) []P10Violation {
	var violations []P10Violation

	for _, rule := range r.EnabledRules(config) {
		violations = append(violations, rule.CheckFile(file, config, source)...)

		for _, fn := range topLevelFunctions(file.Items) {
			violations = append(violations, rule.CheckFunction(fn, config, source)...)
			violations = append(violations, r.checkBlock(fn.Body, rule, config, source)...)
		}
	}

	return violations
}

// topLevelFunctions flattens functions out of expanded modules as
// well as the file itself.
func topLevelFunctions(items []Item) []*FnDecl {
	var fns []*FnDecl
	for _, item := range items {
		switch decl := item.(type) {
		case *FnDecl:
			fns = append(fns, decl)
		case *ModDecl:
			fns = append(fns, topLevelFunctions(decl.Body)...)
		}
	}
	return fns
}

func (r *RuleRegistry) checkBlock(block *Block, rule P10Rule, config P10Config, source string) []P10Violation {
	var violations []P10Violation
	for _, stmt := range block.Stmts {
		violations = append(violations, rule.CheckStmt(stmt, config, source)...)
		violations = append(violations, r.checkStmt(stmt, rule, config, source)...)
	}
	return violations
}

func (r *RuleRegistry) checkStmts(stmts []Stmt, rule P10Rule, config P10Config, source string) []P10Violation {
	var violations []P10Violation
	for _, stmt := range stmts {
		violations = append(violations, rule.CheckStmt(stmt, config, source)...)
		violations = append(violations, r.checkStmt(stmt, rule, config, source)...)
	}
	return violations
}

func (r *RuleRegistry) checkStmt(stmt Stmt, rule P10Rule, config P10Config, source string) []P10Violation {
	var violations []P10Violation

	switch s := stmt.(type) {
	case *IfStmt:
		violations = append(violations, rule.CheckExpr(s.Cond, config, source)...)
		violations = append(violations, r.checkBlock(s.Then, rule, config, source)...)
		if s.Else != nil {
			violations = append(violations, rule.CheckStmt(s.Else, config, source)...)
			violations = append(violations, r.checkStmt(s.Else, rule, config, source)...)
		}
	case *IfLetStmt:
		violations = append(violations, rule.CheckExpr(s.Expr, config, source)...)
		violations = append(violations, r.checkBlock(s.Then, rule, config, source)...)
		if s.Else != nil {
			violations = append(violations, r.checkBlock(s.Else, rule, config, source)...)
		}
	case *WhileStmt:
		violations = append(violations, rule.CheckExpr(s.Cond, config, source)...)
		violations = append(violations, r.checkBlock(s.Body, rule, config, source)...)
	case *ForStmt:
		violations = append(violations, r.checkBlock(s.Body, rule, config, source)...)
	case *SwitchStmt:
		violations = append(violations, rule.CheckExpr(s.Expr, config, source)...)
		for _, c := range s.Cases {
			violations = append(violations, r.checkStmts(c.Stmts, rule, config, source)...)
		}
		if s.Default != nil {
			violations = append(violations, r.checkStmts(s.Default.Stmts, rule, config, source)...)
		}
	case *Block:
		violations = append(violations, r.checkBlock(s, rule, config, source)...)
	case *UnsafeStmt:
		violations = append(violations, r.checkBlock(s.Body, rule, config, source)...)
	case *DeferStmt:
		violations = append(violations, r.checkBlock(s.Body, rule, config, source)...)
	case *LetStmt:
		violations = append(violations, rule.CheckExpr(s.Init, config, source)...)
	case *AssignStmt:
		violations = append(violations, rule.CheckExpr(s.LHS, config, source)...)
		violations = append(violations, rule.CheckExpr(s.RHS, config, source)...)
	case *ExprStmt:
		violations = append(violations, rule.CheckExpr(s.X, config, source)...)
	case *DiscardStmt:
		violations = append(violations, rule.CheckExpr(s.X, config, source)...)
	case *ReturnStmt:
		if s.Value != nil {
			violations = append(violations, rule.CheckExpr(s.Value, config, source)...)
		}
	}

	return violations
}

// --- Rule 1: simple control flow (no recursion) ---

// ControlFlowRule builds a call graph over locally declared functions
// and reports every strongly connected component that contains a
// cycle.  goto and setjmp/longjmp do not exist in the language.
type ControlFlowRule struct{ baseRule }

func (*ControlFlowRule) RuleNumber() int { return 1 }
func (*ControlFlowRule) Name() string    { return "no-recursion" }
func (*ControlFlowRule) Description() string {
	return "No goto, setjmp/longjmp, or direct/indirect recursion"
}

func (*ControlFlowRule) IsEnabled(config P10Config) bool {
	return !config.AllowRecursion && config.Level == LevelSafetyCritical
}

func (rule *ControlFlowRule) CheckFile(file *File, _ P10Config, _ string) []P10Violation {
	fns := topLevelFunctions(file.Items)

	graph := map[string]map[string]bool{}
	for _, fn := range fns {
		graph[fn.Name] = map[string]bool{}
	}
	for _, fn := range fns {
		collectCallsFromStmts(fn.Body.Stmts, graph, graph[fn.Name])
	}

	spans := map[string]Span{}
	for _, fn := range fns {
		spans[fn.Name] = fn.Span()
	}

	var violations []P10Violation
	for _, cycle := range findRecursiveCycles(graph) {
		sort.Strings(cycle)
		cycleStr := strings.Join(cycle, " -> ")
		for _, name := range cycle {
			span, ok := spans[name]
			if !ok {
				continue
			}
			violations = append(violations,
				newViolation(1,
					fmt.Sprintf("function '%s' is part of a recursive call cycle", name),
					span).
					withHelp("Power of 10 Rule 1 forbids recursion; use iteration instead").
					withNote(fmt.Sprintf("Recursive cycle: %s", cycleStr)))
		}
	}
	return violations
}

func collectCallsFromStmts(stmts []Stmt, knownFns map[string]map[string]bool, calls map[string]bool) {
	for _, stmt := range stmts {
		collectCallsFromStmt(stmt, knownFns, calls)
	}
}

func collectCallsFromStmt(stmt Stmt, knownFns map[string]map[string]bool, calls map[string]bool) {
	switch s := stmt.(type) {
	case *LetStmt:
		collectCallsFromExpr(s.Init, knownFns, calls)
	case *AssignStmt:
		collectCallsFromExpr(s.LHS, knownFns, calls)
		collectCallsFromExpr(s.RHS, knownFns, calls)
	case *IfStmt:
		collectCallsFromExpr(s.Cond, knownFns, calls)
		collectCallsFromStmts(s.Then.Stmts, knownFns, calls)
		if s.Else != nil {
			collectCallsFromStmt(s.Else, knownFns, calls)
		}
	case *IfLetStmt:
		collectCallsFromExpr(s.Expr, knownFns, calls)
		collectCallsFromStmts(s.Then.Stmts, knownFns, calls)
		if s.Else != nil {
			collectCallsFromStmts(s.Else.Stmts, knownFns, calls)
		}
	case *WhileStmt:
		collectCallsFromExpr(s.Cond, knownFns, calls)
		collectCallsFromStmts(s.Body.Stmts, knownFns, calls)
	case *ForStmt:
		switch init := s.Init.(type) {
		case *ForInitLet:
			collectCallsFromExpr(init.Init, knownFns, calls)
		case *ForInitAssign:
			collectCallsFromExpr(init.LHS, knownFns, calls)
			collectCallsFromExpr(init.RHS, knownFns, calls)
		case *ForInitCall:
			collectCallsFromExpr(init.Call, knownFns, calls)
		}
		if s.Cond != nil {
			collectCallsFromExpr(s.Cond, knownFns, calls)
		}
		switch step := s.Step.(type) {
		case *ForStepAssign:
			collectCallsFromExpr(step.LHS, knownFns, calls)
			collectCallsFromExpr(step.RHS, knownFns, calls)
		case *ForStepCall:
			collectCallsFromExpr(step.Call, knownFns, calls)
		}
		collectCallsFromStmts(s.Body.Stmts, knownFns, calls)
	case *SwitchStmt:
		collectCallsFromExpr(s.Expr, knownFns, calls)
		for _, c := range s.Cases {
			collectCallsFromStmts(c.Stmts, knownFns, calls)
		}
		if s.Default != nil {
			collectCallsFromStmts(s.Default.Stmts, knownFns, calls)
		}
	case *ReturnStmt:
		if s.Value != nil {
			collectCallsFromExpr(s.Value, knownFns, calls)
		}
	case *ExprStmt:
		collectCallsFromExpr(s.X, knownFns, calls)
	case *DiscardStmt:
		collectCallsFromExpr(s.X, knownFns, calls)
	case *Block:
		collectCallsFromStmts(s.Stmts, knownFns, calls)
	case *UnsafeStmt:
		collectCallsFromStmts(s.Body.Stmts, knownFns, calls)
	case *DeferStmt:
		collectCallsFromStmts(s.Body.Stmts, knownFns, calls)
	}
}

func collectCallsFromExpr(expr Expr, knownFns map[string]map[string]bool, calls map[string]bool) {
	switch e := expr.(type) {
	case *CallExpr:
		if ident, ok := e.Callee.(*Ident); ok {
			if _, known := knownFns[ident.Name]; known {
				calls[ident.Name] = true
			}
		}
		collectCallsFromExpr(e.Callee, knownFns, calls)
		for _, arg := range e.Args {
			collectCallsFromExpr(arg, knownFns, calls)
		}
	case *BinaryExpr:
		collectCallsFromExpr(e.LHS, knownFns, calls)
		collectCallsFromExpr(e.RHS, knownFns, calls)
	case *UnaryExpr:
		collectCallsFromExpr(e.Operand, knownFns, calls)
	case *ParenExpr:
		collectCallsFromExpr(e.Inner, knownFns, calls)
	case *FieldExpr:
		collectCallsFromExpr(e.Base, knownFns, calls)
	case *AddrExpr:
		collectCallsFromExpr(e.Operand, knownFns, calls)
	case *DerefExpr:
		collectCallsFromExpr(e.Operand, knownFns, calls)
	case *AtExpr:
		collectCallsFromExpr(e.Base, knownFns, calls)
		collectCallsFromExpr(e.Index, knownFns, calls)
	case *CastExpr:
		collectCallsFromExpr(e.X, knownFns, calls)
	case *SomeExpr:
		collectCallsFromExpr(e.Value, knownFns, calls)
	case *OkExpr:
		collectCallsFromExpr(e.Value, knownFns, calls)
	case *ErrExpr:
		collectCallsFromExpr(e.Value, knownFns, calls)
	case *StructLit:
		for _, field := range e.Fields {
			collectCallsFromExpr(field.Value, knownFns, calls)
		}
	}
}

// findRecursiveCycles runs Tarjan's SCC algorithm and returns every
// component with more than one node, plus single-node components with
// a self-edge.  Nodes are visited in sorted order so the result is
// stable per run.
func findRecursiveCycles(graph map[string]map[string]bool) [][]string {
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	var (
		counter int
		stack   []string
		indices = map[string]int{}
		lowlink = map[string]int{}
		onStack = map[string]bool{}
		sccs    [][]string
	)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		successors := make([]string, 0, len(graph[v]))
		for w := range graph[v] {
			successors = append(successors, w)
		}
		sort.Strings(successors)

		for _, w := range successors {
			if _, visited := indices[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 {
				sccs = append(sccs, scc)
			} else if len(scc) == 1 && graph[scc[0]][scc[0]] {
				sccs = append(sccs, scc)
			}
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongconnect(node)
		}
	}

	return sccs
}

// --- Rule 2: loop bounds ---

// LoopBoundsRule flags loops with no provable upper bound.  A while
// is unbounded iff its condition is a literal true or a nonzero
// integer literal after unwrapping parens; a for is unbounded iff it
// has no condition.  Deeper analysis is deliberately not attempted.
type LoopBoundsRule struct{ baseRule }

func (*LoopBoundsRule) RuleNumber() int { return 2 }
func (*LoopBoundsRule) Name() string    { return "loop-bounds" }
func (*LoopBoundsRule) Description() string {
	return "All loops must have provable upper bounds"
}

func (*LoopBoundsRule) IsEnabled(config P10Config) bool {
	return config.RequireLoopBounds
}

func (rule *LoopBoundsRule) CheckStmt(stmt Stmt, _ P10Config, _ string) []P10Violation {
	switch s := stmt.(type) {
	case *WhileStmt:
		if isUnboundedCond(s.Cond) {
			return []P10Violation{
				newViolation(2, "while loop has no provable upper bound", s.Span()).
					withHelp("Power of 10 Rule 2 requires all loops have provable termination").
					withNote("Consider using a for loop with explicit bounds or add a maximum iteration counter"),
			}
		}
	case *ForStmt:
		if s.Cond == nil {
			return []P10Violation{
				newViolation(2, "for loop has no termination condition", s.Span()).
					withHelp("Power of 10 Rule 2 requires all loops have provable termination").
					withNote("Add a condition to ensure the loop terminates"),
			}
		}
	}
	return nil
}

func isUnboundedCond(cond Expr) bool {
	switch e := cond.(type) {
	case *BoolLit:
		return e.Value
	case *IntLit:
		return e.Value != 0
	case *ParenExpr:
		return isUnboundedCond(e.Inner)
	}
	return false
}

// --- Rule 3: no dynamic allocation ---

var allocFunctions = map[string]bool{
	"malloc":          true,
	"calloc":          true,
	"realloc":         true,
	"free":            true,
	"alloca":          true,
	"aligned_alloc":   true,
	"posix_memalign":  true,
	"valloc":          true,
	"pvalloc":         true,
	"memalign":        true,
	"operator new":    true,
	"operator delete": true,
}

// MemoryRule flags calls to known allocator functions.  The language
// has no built-in allocator, so this primarily catches FFI calls.
type MemoryRule struct{ baseRule }

func (*MemoryRule) RuleNumber() int { return 3 }
func (*MemoryRule) Name() string    { return "no-runtime-alloc" }
func (*MemoryRule) Description() string {
	return "No dynamic memory allocation after initialization"
}

func (*MemoryRule) IsEnabled(config P10Config) bool {
	return !config.AllowRuntimeAlloc
}

func (rule *MemoryRule) CheckExpr(expr Expr, _ P10Config, _ string) []P10Violation {
	call, ok := expr.(*CallExpr)
	if !ok {
		return nil
	}
	ident, ok := call.Callee.(*Ident)
	if !ok || !allocFunctions[ident.Name] {
		return nil
	}
	return []P10Violation{
		newViolation(3,
			fmt.Sprintf("call to memory allocator '%s' is not allowed in safety-critical code", ident.Name),
			call.Span()).
			withHelp("Power of 10 Rule 3 forbids dynamic memory allocation after initialization").
			withNote("Use statically allocated memory or preallocate during initialization"),
	}
}

// --- Rule 4: function size ---

// FunctionSizeRule counts non-empty, non-comment-only lines inside
// the function body span; lines that are exactly "{" or "}" are
// excluded.
type FunctionSizeRule struct{ baseRule }

func (*FunctionSizeRule) RuleNumber() int { return 4 }
func (*FunctionSizeRule) Name() string    { return "function-size" }
func (*FunctionSizeRule) Description() string {
	return "Functions must not exceed 60 lines (fit on one printed page)"
}

func (*FunctionSizeRule) IsEnabled(config P10Config) bool {
	return config.Level != LevelRelaxed
}

func (rule *FunctionSizeRule) CheckFunction(fn *FnDecl, config P10Config, source string) []P10Violation {
	lineCount := countBodyLines(fn, source)
	if lineCount <= config.MaxFunctionLines {
		return nil
	}
	return []P10Violation{
		newViolation(4,
			fmt.Sprintf("function '%s' has %d lines, exceeds %d line limit",
				fn.Name, lineCount, config.MaxFunctionLines),
			fn.Span()).
			withHelp("Power of 10 Rule 4 requires functions fit on one printed page").
			withNote("Consider breaking this function into smaller, focused functions"),
	}
}

func countBodyLines(fn *FnDecl, source string) int {
	span := fn.Body.Span()
	if span.End <= span.Start || span.End > len(source) {
		return 0
	}
	body := source[span.Start:span.End]

	count := 0
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || trimmed == "{" || trimmed == "}" {
			continue
		}
		count++
	}
	return count
}

// --- Rule 9: pointer depth ---

// PointerDepthRule measures the maximum nesting of deref (through
// parens) and flags expressions exceeding the configured depth.
type PointerDepthRule struct{ baseRule }

func (*PointerDepthRule) RuleNumber() int { return 9 }
func (*PointerDepthRule) Name() string    { return "pointer-depth" }
func (*PointerDepthRule) Description() string {
	return "No more than one level of pointer dereferencing"
}

func (*PointerDepthRule) IsEnabled(config P10Config) bool {
	return config.Level != LevelRelaxed
}

func (rule *PointerDepthRule) CheckExpr(expr Expr, config P10Config, _ string) []P10Violation {
	deref, ok := expr.(*DerefExpr)
	if !ok {
		return nil
	}
	depth := derefDepth(deref)
	if depth <= config.MaxPointerDepth {
		return nil
	}
	return []P10Violation{
		newViolation(9,
			fmt.Sprintf("pointer dereference depth %d exceeds maximum of %d",
				depth, config.MaxPointerDepth),
			deref.Span()).
			withHelp("Power of 10 Rule 9 restricts pointer use to single dereference").
			withNote("Consider using intermediate variables or restructuring data"),
	}
}

func derefDepth(expr Expr) int {
	switch e := expr.(type) {
	case *DerefExpr:
		return 1 + derefDepth(e.Operand)
	case *ParenExpr:
		return derefDepth(e.Inner)
	}
	return 0
}
