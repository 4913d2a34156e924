package fastc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p10Violations(t *testing.T, source string, cfg P10Config) []P10Violation {
	t.Helper()
	file, err := Parse(source, "test.fc")
	require.NoError(t, err)
	return NewP10Checker(cfg).Check(file, source)
}

func TestP10Presets(t *testing.T) {
	standard := StandardP10Config()
	assert.Equal(t, LevelStandard, standard.Level)
	assert.Equal(t, 60, standard.MaxFunctionLines)
	assert.Equal(t, 1, standard.MaxPointerDepth)
	assert.True(t, standard.AllowRecursion)
	assert.True(t, standard.RequireLoopBounds)
	assert.False(t, standard.AllowRuntimeAlloc)
	assert.False(t, standard.StrictMode)

	critical := SafetyCriticalP10Config()
	assert.Equal(t, LevelSafetyCritical, critical.Level)
	assert.Equal(t, 2, critical.MinAssertionsPerFn)
	assert.False(t, critical.AllowRecursion)
	assert.True(t, critical.StrictMode)

	relaxed := RelaxedP10Config()
	assert.Equal(t, 200, relaxed.MaxFunctionLines)
	assert.Equal(t, 10, relaxed.MaxPointerDepth)
	assert.True(t, relaxed.AllowRecursion)
	assert.False(t, relaxed.RequireLoopBounds)
	assert.True(t, relaxed.AllowRuntimeAlloc)
	assert.False(t, relaxed.IsEnabled())
}

func TestParseSafetyLevel(t *testing.T) {
	for _, test := range []struct {
		Input    string
		Expected SafetyLevel
		OK       bool
	}{
		{Input: "standard", Expected: LevelStandard, OK: true},
		{Input: "critical", Expected: LevelSafetyCritical, OK: true},
		{Input: "safety-critical", Expected: LevelSafetyCritical, OK: true},
		{Input: "SafetyCritical", Expected: LevelSafetyCritical, OK: true},
		{Input: "relaxed", Expected: LevelRelaxed, OK: true},
		{Input: "bogus", OK: false},
	} {
		level, ok := ParseSafetyLevel(test.Input)
		assert.Equal(t, test.OK, ok, test.Input)
		if test.OK {
			assert.Equal(t, test.Expected, level, test.Input)
		}
	}
}

func TestRelaxedModeDisablesChecking(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> void { while (true) { } }", RelaxedP10Config())
	assert.Empty(t, violations)
}

// === Rule 1: recursion ===

func TestDirectRecursionFlagged(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> i32 { return f(); }", SafetyCriticalP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].Rule)
	assert.Equal(t, "P10-001", violations[0].Code)
	assert.Contains(t, violations[0].Message, "'f'")
}

func TestMutualRecursionFlaggedPerFunction(t *testing.T) {
	violations := p10Violations(t, `
fn a() -> i32 { return b(); }
fn b() -> i32 { return a(); }
fn main() -> i32 { return 0; }`, SafetyCriticalP10Config())
	require.Len(t, violations, 2)
	for _, v := range violations {
		assert.Equal(t, "P10-001", v.Code)
		assert.Equal(t, "Recursive cycle: a -> b", v.Note)
	}
}

func TestRecursionAllowedAtStandardLevel(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> i32 { return f(); }", StandardP10Config())
	assert.Empty(t, violations)
}

func TestNonRecursiveCallGraphPasses(t *testing.T) {
	violations := p10Violations(t, `
fn a() -> i32 { return 1; }
fn b() -> i32 { return a(); }
fn c() -> i32 { return b(); }`, SafetyCriticalP10Config())
	assert.Empty(t, violations)
}

// === Rule 2: loop bounds ===

func TestWhileTrueFlagged(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> void { while (true) { } }", StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, "P10-002", violations[0].Code)
	assert.Contains(t, violations[0].Message, "no provable upper bound")
}

func TestWhileNonzeroLiteralFlagged(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> void { while ((1)) { } }", StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, 2, violations[0].Rule)
}

func TestForWithoutConditionFlagged(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> void { for (;;) { break; } }", StandardP10Config())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "no termination condition")
}

func TestBoundedLoopsPass(t *testing.T) {
	violations := p10Violations(t, `
fn f(n: u32) -> void {
    let i: u32 = 0;
    while ((i < n)) {
        i = (i + 1);
    }
    for (i = 0; (i < n); i = (i + 1)) {
    }
}`, StandardP10Config())
	assert.Empty(t, violations)
}

func TestNestedUnboundedLoopFlagged(t *testing.T) {
	violations := p10Violations(t, `
fn f(c: bool) -> void {
    if (c) {
        while (true) { }
    }
}`, StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, 2, violations[0].Rule)
}

// === Rule 3: dynamic allocation ===

func TestMallocCallFlagged(t *testing.T) {
	violations := p10Violations(t, `
extern "C" { fn malloc(n: usize) -> rawm(u8); }
fn f(n: usize) -> void { unsafe { discard(malloc(n)); } }`, StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, "P10-003", violations[0].Code)
	assert.Contains(t, violations[0].Message, "malloc")
}

func TestFreeCallFlagged(t *testing.T) {
	violations := p10Violations(t, `
extern "C" { fn free(p: rawm(u8)) -> void; }
fn f(p: rawm(u8)) -> void { unsafe { free(p); } }`, StandardP10Config())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "free")
}

func TestOrdinaryCallPasses(t *testing.T) {
	violations := p10Violations(t, `
fn helper() -> i32 { return 1; }
fn f() -> i32 { return helper(); }`, StandardP10Config())
	assert.Empty(t, violations)
}

func TestAllocAllowedWhenConfigured(t *testing.T) {
	cfg := StandardP10Config()
	cfg.AllowRuntimeAlloc = true
	violations := p10Violations(t, `
extern "C" { fn malloc(n: usize) -> rawm(u8); }
fn f(n: usize) -> void { unsafe { discard(malloc(n)); } }`, cfg)
	assert.Empty(t, violations)
}

// === Rule 4: function size ===

func TestLongFunctionFlagged(t *testing.T) {
	var b []byte
	b = append(b, []byte("fn f() -> void {\n")...)
	for i := 0; i < 70; i++ {
		b = append(b, []byte("    discard(1);\n")...)
	}
	b = append(b, []byte("}\n")...)

	violations := p10Violations(t, string(b), StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, "P10-004", violations[0].Code)
	assert.Contains(t, violations[0].Message, "'f' has 70 lines, exceeds 60 line limit")
}

func TestShortFunctionPasses(t *testing.T) {
	violations := p10Violations(t,
		"fn f() -> void {\n    discard(1);\n    discard(2);\n}", StandardP10Config())
	assert.Empty(t, violations)
}

func TestFunctionSizeThresholdConfigurable(t *testing.T) {
	cfg := StandardP10Config()
	cfg.MaxFunctionLines = 1
	violations := p10Violations(t,
		"fn f() -> void {\n    discard(1);\n    discard(2);\n}", cfg)
	require.Len(t, violations, 1)
	assert.Equal(t, 4, violations[0].Rule)
}

// === Rule 9: pointer depth ===

func TestSingleDerefPasses(t *testing.T) {
	violations := p10Violations(t,
		"fn f(p: ref(i32)) -> i32 { return deref(p); }", StandardP10Config())
	assert.Empty(t, violations)
}

func TestDoubleDerefFlagged(t *testing.T) {
	violations := p10Violations(t,
		"fn f(p: ref(ref(i32))) -> i32 { return deref(deref(p)); }", StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, "P10-009", violations[0].Code)
	assert.Contains(t, violations[0].Message, "depth 2 exceeds maximum of 1")
}

func TestDerefDepthThroughParens(t *testing.T) {
	violations := p10Violations(t,
		"fn f(p: ref(ref(i32))) -> i32 { return deref((deref(p))); }", StandardP10Config())
	require.Len(t, violations, 1)
	assert.Equal(t, 9, violations[0].Rule)
}

func TestDeepDerefAllowedWhenConfigured(t *testing.T) {
	cfg := StandardP10Config()
	cfg.MaxPointerDepth = 3
	violations := p10Violations(t,
		"fn f(p: ref(ref(i32))) -> i32 { return deref(deref(p)); }", cfg)
	assert.Empty(t, violations)
}

// === Reporting ===

func TestViolationsReportAsP10Errors(t *testing.T) {
	file, err := Parse("fn f() -> void { while (true) { } }", "test.fc")
	require.NoError(t, err)

	reportErr := NewP10Checker(StandardP10Config()).CheckAndReport(file, "")
	require.Error(t, reportErr)
	cerr := reportErr.(*CompileError)
	assert.Equal(t, ErrP10, cerr.Kind)
	assert.Equal(t, "P10-002", cerr.Code)
	assert.Contains(t, cerr.Hint, "Power of 10 Rule 2")
}

func TestEnabledRulesAtSafetyCritical(t *testing.T) {
	checker := NewP10Checker(SafetyCriticalP10Config())
	rules := checker.EnabledRules()
	numbers := map[int]bool{}
	for _, rule := range rules {
		numbers[rule.RuleNumber()] = true
	}
	for _, expected := range []int{1, 2, 3, 4, 9} {
		assert.True(t, numbers[expected], "rule %d should be enabled", expected)
	}
}
