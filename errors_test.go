package fastc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipleCollapsesSingleton(t *testing.T) {
	single := NewParseError("oops", NewSpan(0, 1), "x")
	err := Multiple([]*CompileError{single})
	assert.Same(t, single, err)
}

func TestMultipleEmptyIsNil(t *testing.T) {
	assert.Nil(t, Multiple(nil))
	assert.Nil(t, Multiple([]*CompileError{}))
}

func TestMultipleKeepsChildren(t *testing.T) {
	err := Multiple([]*CompileError{
		NewResolveError("first", NewSpan(0, 1), "ab"),
		NewResolveError("second", NewSpan(1, 2), "ab"),
	})
	require.NotNil(t, err)
	assert.Equal(t, ErrMultiple, err.Kind)
	assert.Len(t, err.Errors, 2)
	assert.Len(t, err.Flatten(), 2)
}

func TestFlattenExpandsNesting(t *testing.T) {
	inner := Multiple([]*CompileError{
		NewTypeError("a", NewSpan(0, 1), "xy"),
		NewTypeError("b", NewSpan(1, 2), "xy"),
	})
	outer := Multiple([]*CompileError{
		inner,
		NewTypeError("c", NewSpan(0, 2), "xy"),
	})
	leaves := outer.Flatten()
	require.Len(t, leaves, 3)
	assert.Equal(t, "a", leaves[0].Message)
	assert.Equal(t, "c", leaves[2].Message)
}

func TestErrorRenderingIncludesPosition(t *testing.T) {
	source := "line one\nline two"
	err := NewTypeError("bad thing", NewSpan(9, 13), source)
	rendered := err.Error()
	assert.Contains(t, rendered, "type error: bad thing")
	assert.Contains(t, rendered, "@ 2:1")
}

func TestErrorRenderingIncludesHint(t *testing.T) {
	err := NewResolveError("undefined name 'xs'", NewSpan(0, 2), "xs").
		WithHint("did you mean 'x'?")
	assert.Contains(t, err.Error(), "hint: did you mean 'x'?")
}

func TestP10ErrorRenderingIncludesCode(t *testing.T) {
	err := NewP10Error("P10-002", "while loop has no provable upper bound", NewSpan(0, 5), "while")
	assert.Contains(t, err.Error(), "[P10-002]")
}

func TestLineIndexLocations(t *testing.T) {
	li := NewLineIndex("ab\ncd\nef")
	assert.Equal(t, Location{Line: 1, Column: 1, Cursor: 0}, li.LocationAt(0))
	assert.Equal(t, Location{Line: 1, Column: 3, Cursor: 2}, li.LocationAt(2))
	assert.Equal(t, Location{Line: 2, Column: 1, Cursor: 3}, li.LocationAt(3))
	assert.Equal(t, Location{Line: 3, Column: 2, Cursor: 7}, li.LocationAt(7))
}

func TestLineIndexClampsOutOfRange(t *testing.T) {
	li := NewLineIndex("ab")
	assert.Equal(t, 0, li.LocationAt(-5).Cursor)
	assert.Equal(t, 2, li.LocationAt(99).Cursor)
}

func TestSpanHelpers(t *testing.T) {
	s := NewSpan(2, 5)
	assert.Equal(t, "2..5", s.String())
	assert.Equal(t, "cde", s.Str("abcdefg"))
	assert.True(t, s.Contains(NewSpan(3, 4)))
	assert.False(t, s.Contains(NewSpan(1, 4)))
	assert.Equal(t, "3", NewSpan(3, 3).String())
}
