package fastc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveSource(t *testing.T, source string) error {
	t.Helper()
	file, err := Parse(source, "test.fc")
	require.NoError(t, err)
	resolver := NewResolver(source)
	return resolver.Resolve(file)
}

func TestResolveUndefinedNameWithHint(t *testing.T) {
	err := resolveSource(t, "fn foo() -> i32 { let x: i32 = 1; return xs; }")
	require.Error(t, err)

	cerr := err.(*CompileError)
	assert.Equal(t, ErrResolve, cerr.Kind)
	assert.Contains(t, cerr.Message, "undefined name 'xs'")
	assert.Equal(t, "did you mean 'x'?", cerr.Hint)
}

func TestResolveUndefinedNameNoHintWhenNothingClose(t *testing.T) {
	err := resolveSource(t, "fn foo() -> i32 { return zzzzzzzzzz; }")
	require.Error(t, err)
	cerr := err.(*CompileError)
	assert.Contains(t, cerr.Message, "undefined name 'zzzzzzzzzz'")
	assert.Empty(t, cerr.Hint)
}

func TestResolveRedefinitionRejected(t *testing.T) {
	err := resolveSource(t, "fn f() -> void { let x: i32 = 1; let x: i32 = 2; }")
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "redefinition of 'x'")
}

func TestResolveShadowingInNestedScopeAllowed(t *testing.T) {
	err := resolveSource(t, "fn f() -> void { let x: i32 = 1; { let x: i32 = 2; } }")
	assert.NoError(t, err)
}

func TestResolveTopLevelRedefinition(t *testing.T) {
	err := resolveSource(t, "fn f() -> void { return; } fn f() -> void { return; }")
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "redefinition of 'f'")
}

func TestResolveEnumVariantConstants(t *testing.T) {
	err := resolveSource(t, `
enum Color { Red, Green }
fn f() -> Color { return Color_Red; }`)
	assert.NoError(t, err)
}

func TestResolveUndefinedType(t *testing.T) {
	err := resolveSource(t, "fn f(x: Missing) -> void { return; }")
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "undefined type 'Missing'")
}

func TestResolveValueUsedAsType(t *testing.T) {
	err := resolveSource(t, `
const N: i32 = 1;
fn f(x: N) -> void { return; }`)
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "'N' is not a type")
}

func TestResolveConstExprMustReferenceConstant(t *testing.T) {
	err := resolveSource(t, `
fn g() -> void { return; }
const X: i32 = g;`)
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "'g' is not a constant")
}

func TestResolveIfLetBindingScopedToThenBranch(t *testing.T) {
	err := resolveSource(t, `
fn f(o: opt(i32)) -> i32 {
    if let v = unwrap_checked(o) {
        return v;
    }
    return v;
}`)
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "undefined name 'v'")
}

func TestResolveForInitScopedToLoop(t *testing.T) {
	err := resolveSource(t, `
fn f() -> i32 {
    for (let i: i32 = 0; (i < 3); i = (i + 1)) {
        discard(i);
    }
    return i;
}`)
	require.Error(t, err)
	assert.Contains(t, err.(*CompileError).Message, "undefined name 'i'")
}

func TestResolveExternPrototype(t *testing.T) {
	err := resolveSource(t, `
extern "C" { fn puts(s: raw(u8)) -> i32; }
fn f() -> void { unsafe { discard(puts(cstr("hi"))); } }`)
	assert.NoError(t, err)
}

func TestResolveMultipleErrorsAccumulate(t *testing.T) {
	err := resolveSource(t, "fn f() -> void { discard(aaa); discard(bbb); }")
	require.Error(t, err)
	cerr := err.(*CompileError)
	require.Equal(t, ErrMultiple, cerr.Kind)
	assert.Len(t, cerr.Errors, 2)
}

// Resolving the same AST twice with fresh resolvers yields identical
// diagnostics and symbol listings.
func TestResolverIdempotence(t *testing.T) {
	source := `
enum Color { Red, Green }
fn helper(x: i32) -> i32 { return x; }
fn f() -> i32 { let y: i32 = helper(1); return missing; }`
	file, err := Parse(source, "test.fc")
	require.NoError(t, err)

	first := NewResolver(source)
	errFirst := first.Resolve(file)
	second := NewResolver(source)
	errSecond := second.Resolve(file)

	require.Error(t, errFirst)
	require.Error(t, errSecond)
	assert.Equal(t, errFirst.Error(), errSecond.Error())
	assert.Equal(t, first.Symbols().AllNames(), second.Symbols().AllNames())
}

func TestSymbolTableLookupWalksParents(t *testing.T) {
	table := NewSymbolTable()
	table.Define(&Symbol{Name: "global", Kind: SymConstant, Type: &PrimType{Kind: I32}})
	table.EnterScope()
	table.Define(&Symbol{Name: "local", Kind: SymVariable, Type: &PrimType{Kind: I32}})

	assert.NotNil(t, table.Lookup("local"))
	assert.NotNil(t, table.Lookup("global"))
	assert.Nil(t, table.LookupCurrent("global"))

	table.ExitScope()
	assert.Nil(t, table.Lookup("local"))
}
