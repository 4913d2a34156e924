package fastc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSource(t *testing.T, source string) string {
	t.Helper()
	cCode, err := Compile(source, "test.fc")
	require.NoError(t, err)
	return cCode
}

func TestLowerHello(t *testing.T) {
	cCode := compileSource(t, "fn main() -> i32 { return 0; }")
	assert.Contains(t, cCode, "#include <stdint.h>")
	assert.Contains(t, cCode, "#include <stddef.h>")
	assert.Contains(t, cCode, "#include <stdbool.h>")
	assert.Contains(t, cCode, `#include "fastc_runtime.h"`)
	assert.Contains(t, cCode, "int32_t main(void) {")
	assert.Contains(t, cCode, "return 0;")
}

func TestLowerTypeMapping(t *testing.T) {
	cCode := compileSource(t, `
fn f(a: i8, b: u16, c: f32, d: usize, e: isize, g: bool) -> i64 { return cast(i64, 0); }`)
	assert.Contains(t, cCode, "int8_t a")
	assert.Contains(t, cCode, "uint16_t b")
	assert.Contains(t, cCode, "float c")
	assert.Contains(t, cCode, "size_t d")
	assert.Contains(t, cCode, "ptrdiff_t e")
	assert.Contains(t, cCode, "bool g")
	assert.Contains(t, cCode, "int64_t f(")
}

func TestLowerPointerTypes(t *testing.T) {
	cCode := compileSource(t, `
fn f(a: ref(i32), b: mref(i32), c: raw(u8), d: rawm(u8), e: own(i32)) -> void { return; }`)
	assert.Contains(t, cCode, "const int32_t *a")
	assert.Contains(t, cCode, "int32_t *b")
	assert.Contains(t, cCode, "const uint8_t *c")
	assert.Contains(t, cCode, "uint8_t *d")
	assert.Contains(t, cCode, "int32_t *e")
}

// Every at(s, i) on a slice in safe code appears in the lowered C
// with a preceding comparison against s.len and a call to fc_trap.
func TestSliceBoundsCheckInserted(t *testing.T) {
	cCode := compileSource(t, "fn get(s: slice(i32)) -> i32 { return at(s, 3); }")
	assert.Contains(t, cCode, "if (3 >= s.len) fc_trap();")
	assert.Contains(t, cCode, "s.data[3]")
}

// The same expression inside unsafe { … } lacks the check.
func TestSliceBoundsCheckSuppressedInUnsafe(t *testing.T) {
	cCode := compileSource(t, "fn get(s: slice(i32)) -> i32 { unsafe { return at(s, 3); } }")
	assert.NotContains(t, cCode, "fc_trap")
	assert.Contains(t, cCode, "s.data[3]")
}

func TestArrayIndexHasNoBoundsCheck(t *testing.T) {
	cCode := compileSource(t, "fn get(a: arr(i32, 4)) -> i32 { return at(a, 1); }")
	assert.Contains(t, cCode, "int32_t a[4]")
	assert.Contains(t, cCode, "a[1]")
	assert.NotContains(t, cCode, "fc_trap")
}

// Every signed + - * in safe code lowers to a __builtin_*_overflow
// call.
func TestSignedOverflowChecks(t *testing.T) {
	for _, test := range []struct {
		Name    string
		Op      string
		Builtin string
	}{
		{Name: "Add", Op: "+", Builtin: "__builtin_add_overflow"},
		{Name: "Sub", Op: "-", Builtin: "__builtin_sub_overflow"},
		{Name: "Mul", Op: "*", Builtin: "__builtin_mul_overflow"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			cCode := compileSource(t,
				"fn f(a: i32, b: i32) -> i32 { return (a "+test.Op+" b); }")
			assert.Contains(t, cCode, "int32_t __tmp0;")
			assert.Contains(t, cCode, "if ("+test.Builtin+"(a, b, &__tmp0)) fc_trap();")
			assert.Contains(t, cCode, "return (__tmp0);")
		})
	}
}

func TestUnsignedArithmeticHasNoOverflowCheck(t *testing.T) {
	cCode := compileSource(t, "fn f(a: u32, b: u32) -> u32 { return (a + b); }")
	assert.NotContains(t, cCode, "__builtin_add_overflow")
	assert.Contains(t, cCode, "return (a + b);")
}

func TestOverflowCheckSuppressedInUnsafe(t *testing.T) {
	cCode := compileSource(t, "fn f(a: i32, b: i32) -> i32 { unsafe { return (a + b); } }")
	assert.NotContains(t, cCode, "__builtin_add_overflow")
}

// Every / or % in safe code lowers with a preceding zero check on the
// divisor.
func TestDivisionZeroCheck(t *testing.T) {
	cCode := compileSource(t, "fn f(a: i32, b: i32) -> i32 { return (a / b); }")
	assert.Contains(t, cCode, "if (b == 0) fc_trap();")
	assert.Contains(t, cCode, "return (a / b);")
}

func TestRemainderZeroCheck(t *testing.T) {
	cCode := compileSource(t, "fn f(a: u32, b: u32) -> u32 { return (a % b); }")
	assert.Contains(t, cCode, "if (b == 0) fc_trap();")
	assert.Contains(t, cCode, "return (a % b);")
}

func TestShortCircuitAnd(t *testing.T) {
	cCode := compileSource(t, "fn f(a: bool, b: bool) -> bool { return (a && b); }")
	assert.Contains(t, cCode, "bool __tmp0;")
	assert.Contains(t, cCode, "__tmp0 = b;")
	assert.Contains(t, cCode, "__tmp0 = false;")
	assert.Contains(t, cCode, "return (__tmp0);")
	assert.NotContains(t, cCode, "a && b")
}

func TestShortCircuitOr(t *testing.T) {
	cCode := compileSource(t, "fn f(a: bool, b: bool) -> bool { return (a || b); }")
	assert.Contains(t, cCode, "__tmp0 = true;")
	assert.Contains(t, cCode, "__tmp0 = b;")
	assert.NotContains(t, cCode, "a || b")
}

func TestCallArgumentEvaluationOrder(t *testing.T) {
	cCode := compileSource(t, `
fn g(x: u32) -> u32 { return x; }
fn h(x: u32, y: u32) -> u32 { return (x + y); }
fn f(a: u32) -> u32 { return h(g(a), g(a)); }`)
	// Each side-effecting argument is hoisted into its own temporary.
	assert.Contains(t, cCode, "uint32_t __tmp0 = g(a);")
	assert.Contains(t, cCode, "uint32_t __tmp1 = g(a);")
	assert.Contains(t, cCode, "h(__tmp0, __tmp1)")
}

func TestOptLowering(t *testing.T) {
	cCode := compileSource(t, `
fn get() -> opt(i32) { return some(42); }
fn f() -> i32 {
    if let v = unwrap_checked(get()) {
        return v;
    } else {
        return 0;
    }
}`)
	assert.Contains(t, cCode, "} fc_opt_int32_t;")
	assert.Contains(t, cCode, "bool has_value;")
	assert.Contains(t, cCode, "int32_t value;")
	assert.Contains(t, cCode, "(fc_opt_int32_t){ .has_value = true, .value = 42 }")
	assert.Contains(t, cCode, "fc_opt_int32_t __tmp0 = get();")
	assert.Contains(t, cCode, "if (__tmp0.has_value) {")
	assert.Contains(t, cCode, "int32_t v = __tmp0.value;")
}

func TestNoneLowering(t *testing.T) {
	cCode := compileSource(t, "fn f() -> opt(i32) { return none(i32); }")
	assert.Contains(t, cCode, "(fc_opt_int32_t){ .has_value = false }")
}

func TestResLowering(t *testing.T) {
	cCode := compileSource(t, `
fn f(ok_path: bool) -> res(i32, u8) {
    if (ok_path) {
        return ok(7);
    }
    return err(cast(u8, 1));
}`)
	assert.Contains(t, cCode, "} fc_res_int32_t_uint8_t;")
	assert.Contains(t, cCode, "bool is_ok;")
	assert.Contains(t, cCode, "(fc_res_int32_t_uint8_t){ .is_ok = true, .ok = 7 }")
	assert.Contains(t, cCode, "(fc_res_int32_t_uint8_t){ .is_ok = false, .err = ")
}

func TestStructLitLowering(t *testing.T) {
	cCode := compileSource(t, `
struct Point { x: i32, y: i32 }
fn f() -> Point { return (Point { x: 1, y: 2 }); }`)
	assert.Contains(t, cCode, "} Point;")
	assert.Contains(t, cCode, "(Point){ .x = 1, .y = 2 }")
}

func TestEnumLowering(t *testing.T) {
	cCode := compileSource(t, `
enum Color { Red, Green }
fn f(c: Color) -> i32 {
    switch (c) {
    case Color_Red:
        return 1;
    case Color_Green:
        return 2;
    }
    return 0;
}`)
	assert.Contains(t, cCode, "typedef enum {")
	assert.Contains(t, cCode, "Color_Red,")
	assert.Contains(t, cCode, "} Color;")
	assert.Contains(t, cCode, "switch (c) {")
	assert.Contains(t, cCode, "case Color_Red:")
	assert.Contains(t, cCode, "break;")
}

func TestDataEnumLowering(t *testing.T) {
	cCode := compileSource(t, "enum Shape { Circle(f64), Dot } fn main() -> i32 { return 0; }")
	assert.Contains(t, cCode, "int32_t tag;")
	assert.Contains(t, cCode, "double circle_data;")
	assert.Contains(t, cCode, "} Shape;")
}

func TestConstLowering(t *testing.T) {
	cCode := compileSource(t, "const LIMIT: i32 = 100; fn main() -> i32 { return LIMIT; }")
	assert.Contains(t, cCode, "static const int32_t LIMIT = 100;")
	assert.Contains(t, cCode, "return LIMIT;")
}

func TestOpaqueLowering(t *testing.T) {
	cCode := compileSource(t, `
opaque Handle;
fn f(h: raw(Handle)) -> void { return; }`)
	assert.Contains(t, cCode, "typedef struct Handle Handle;")
	assert.Contains(t, cCode, "const Handle *h")
}

func TestExternPrototypeLowering(t *testing.T) {
	cCode := compileSource(t, `
extern "C" { fn puts(s: raw(u8)) -> i32; }
fn f() -> void { unsafe { discard(puts(cstr("hi"))); } }`)
	assert.Contains(t, cCode, "int32_t puts(const uint8_t *s);")
	assert.Contains(t, cCode, `(void)puts("hi");`)
}

func TestDeferRunsBeforeReturn(t *testing.T) {
	cCode := compileSource(t, `
fn g() -> void { return; }
fn f() -> i32 {
    defer { g(); }
    return 1;
}`)
	idx := strings.Index(cCode, "g();")
	retIdx := strings.Index(cCode, "return 1;")
	require.GreaterOrEqual(t, idx, 0)
	require.GreaterOrEqual(t, retIdx, 0)
	assert.Less(t, idx, retIdx)
}

func TestDeferLIFOOrder(t *testing.T) {
	cCode := compileSource(t, `
fn a() -> void { return; }
fn b() -> void { return; }
fn f() -> void {
    defer { a(); }
    defer { b(); }
    return;
}`)
	aIdx := strings.LastIndex(cCode, "a();")
	bIdx := strings.LastIndex(cCode, "b();")
	assert.Less(t, bIdx, aIdx)
}

func TestWhileLowering(t *testing.T) {
	cCode := compileSource(t, `
fn f(n: u32) -> u32 {
    let i: u32 = 0;
    while ((i < n)) {
        i = (i + 1);
    }
    return i;
}`)
	assert.Contains(t, cCode, "while ((i < n)) {")
	assert.Contains(t, cCode, "i = (i + 1);")
}

func TestForLoopWithoutChecksKeepsForShape(t *testing.T) {
	cCode := compileSource(t, `
fn f() -> u32 {
    let total: u32 = 0;
    for (let i: u32 = 0; (i < 4); i = (i + 1)) {
        total = (total + i);
    }
    return total;
}`)
	assert.Contains(t, cCode, "for (uint32_t i = 0; (i < 4); i = (i + 1)) {")
}

func TestForLoopWithSignedStepReevaluatesChecks(t *testing.T) {
	cCode := compileSource(t, `
fn f() -> i32 {
    let total: i32 = 0;
    for (let i: i32 = 0; (i < 4); i = (i + 1)) {
        total = i;
    }
    return total;
}`)
	// The signed step needs a per-iteration overflow check, so the
	// loop is rebuilt around a while.
	assert.Contains(t, cCode, "while (true) {")
	assert.Contains(t, cCode, "__builtin_add_overflow(i, 1, ")
}

func TestBytesLowering(t *testing.T) {
	cCode := compileSource(t, "fn f() -> slice(u8) { return bytes(\"abc\"); }")
	assert.Contains(t, cCode, "(fc_slice_uint8_t){ .data = ")
	assert.Contains(t, cCode, ".len = 3 }")
}

func TestBuiltinSliceTypedefsSuppressed(t *testing.T) {
	cCode := compileSource(t, "fn f(s: slice(i32)) -> i32 { return at(s, 0); }")
	// fc_slice_int32_t ships in the runtime header.
	assert.NotContains(t, cCode, "} fc_slice_int32_t;")
}

func TestUserSliceTypedefGenerated(t *testing.T) {
	cCode := compileSource(t, `
struct Point { x: i32, y: i32 }
fn f(s: slice(Point)) -> i32 { return at(s, 0).x; }`)
	assert.Contains(t, cCode, "} fc_slice_Point;")
}

func TestNegativeArraySizeRejected(t *testing.T) {
	_, err := Compile("fn f(a: arr(i32, -1)) -> void { return; }", "test.fc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array size cannot be negative")
}

func TestArraySizeArithmetic(t *testing.T) {
	cCode := compileSource(t, "fn f(a: arr(i32, (2 * 8))) -> i32 { return at(a, 0); }")
	assert.Contains(t, cCode, "int32_t a[16]")
}

// Swapping the declaration order of two top-level structs does not
// change the emitted C.
func TestTypeDeclOrderingDeterministic(t *testing.T) {
	first := compileSource(t, `
struct Beta { b: i32 }
struct Alpha { a: i32 }
fn main() -> i32 { return 0; }`)
	second := compileSource(t, `
struct Alpha { a: i32 }
struct Beta { b: i32 }
fn main() -> i32 { return 0; }`)
	assert.Equal(t, first, second)

	alphaIdx := strings.Index(first, "} Alpha;")
	betaIdx := strings.Index(first, "} Beta;")
	assert.Less(t, alphaIdx, betaIdx)
}

// compile(S) is byte-for-byte identical across runs.
func TestCompileDeterministic(t *testing.T) {
	source := `
struct Point { x: i32, y: i32 }
enum Color { Red, Green }
fn get() -> opt(i32) { return some(1); }
fn f(s: slice(Point), c: Color) -> i32 {
    if let v = unwrap_checked(get()) {
        return v;
    }
    return at(s, 0).x;
}
fn main() -> i32 { return 0; }`
	first := compileSource(t, source)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, compileSource(t, source))
	}
}

func TestGeneratedTypedefsSortedAtFront(t *testing.T) {
	cCode := compileSource(t, `
fn f() -> opt(u8) { return none(u8); }
fn g() -> opt(i16) { return none(i16); }
fn main() -> i32 { return 0; }`)
	i16Idx := strings.Index(cCode, "} fc_opt_int16_t;")
	u8Idx := strings.Index(cCode, "} fc_opt_uint8_t;")
	require.GreaterOrEqual(t, i16Idx, 0)
	require.GreaterOrEqual(t, u8Idx, 0)
	assert.Less(t, i16Idx, u8Idx)
}
