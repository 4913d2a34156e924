package fastc

import (
	"fmt"
	"strings"
)

// SafetyLevel selects which Power of 10 rules are active.
type SafetyLevel int

const (
	// LevelStandard is the default FastC safety level.
	LevelStandard SafetyLevel = iota
	// LevelSafetyCritical is full Power of 10 compliance mode.
	LevelSafetyCritical
	// LevelRelaxed is for prototyping; checking is disabled.
	LevelRelaxed
)

func (l SafetyLevel) String() string {
	switch l {
	case LevelStandard:
		return "standard"
	case LevelSafetyCritical:
		return "safety-critical"
	case LevelRelaxed:
		return "relaxed"
	}
	return "unknown"
}

// ParseSafetyLevel parses a safety level name as accepted on the
// command line and in manifests.
func ParseSafetyLevel(s string) (SafetyLevel, bool) {
	switch strings.ToLower(s) {
	case "standard":
		return LevelStandard, true
	case "critical", "safety-critical", "safetycritical":
		return LevelSafetyCritical, true
	case "relaxed":
		return LevelRelaxed, true
	}
	return LevelStandard, false
}

// P10Config configures Power of 10 rule enforcement, after NASA/JPL's
// "Power of 10: Rules for Developing Safety-Critical Code" by
// Gerard J. Holzmann.
type P10Config struct {
	Level SafetyLevel

	// Rule 4: maximum lines per function.
	MaxFunctionLines int

	// Rule 5: minimum assertions per function.
	MinAssertionsPerFn int

	// Rule 9: maximum pointer dereference depth.
	MaxPointerDepth int

	// Rule 1: allow direct or indirect recursion.
	AllowRecursion bool

	// Rule 2: require provable loop bounds.
	RequireLoopBounds bool

	// Rule 3: allow runtime memory allocation.
	AllowRuntimeAlloc bool

	// Rule 10: treat all warnings as errors.
	StrictMode bool
}

// StandardP10Config enables loop-bound, allocation, function-size and
// pointer-depth checking with recursion still permitted.
func StandardP10Config() P10Config {
	return P10Config{
		Level:              LevelStandard,
		MaxFunctionLines:   60,
		MinAssertionsPerFn: 0,
		MaxPointerDepth:    1,
		AllowRecursion:     true,
		RequireLoopBounds:  true,
		AllowRuntimeAlloc:  false,
		StrictMode:         false,
	}
}

// SafetyCriticalP10Config enables the full rule set.
func SafetyCriticalP10Config() P10Config {
	return P10Config{
		Level:              LevelSafetyCritical,
		MaxFunctionLines:   60,
		MinAssertionsPerFn: 2,
		MaxPointerDepth:    1,
		AllowRecursion:     false,
		RequireLoopBounds:  true,
		AllowRuntimeAlloc:  false,
		StrictMode:         true,
	}
}

// RelaxedP10Config disables checking for prototyping.
func RelaxedP10Config() P10Config {
	return P10Config{
		Level:              LevelRelaxed,
		MaxFunctionLines:   200,
		MinAssertionsPerFn: 0,
		MaxPointerDepth:    10,
		AllowRecursion:     true,
		RequireLoopBounds:  false,
		AllowRuntimeAlloc:  true,
		StrictMode:         false,
	}
}

// P10ConfigForLevel returns the preset for a safety level.
func P10ConfigForLevel(level SafetyLevel) P10Config {
	switch level {
	case LevelSafetyCritical:
		return SafetyCriticalP10Config()
	case LevelRelaxed:
		return RelaxedP10Config()
	default:
		return StandardP10Config()
	}
}

// IsEnabled reports whether Power of 10 checking runs at all.
func (c P10Config) IsEnabled() bool {
	return c.Level != LevelRelaxed
}

// P10Violation is one rule violation.
type P10Violation struct {
	Rule    int
	Code    string // e.g. "P10-001"
	Message string
	Span    Span
	Help    string
	Note    string
}

func newViolation(rule int, message string, span Span) P10Violation {
	return P10Violation{
		Rule:    rule,
		Code:    fmt.Sprintf("P10-%03d", rule),
		Message: message,
		Span:    span,
	}
}

func (v P10Violation) withHelp(help string) P10Violation {
	v.Help = help
	return v
}

func (v P10Violation) withNote(note string) P10Violation {
	v.Note = note
	return v
}

// P10Checker runs the rule registry over a file.
type P10Checker struct {
	config   P10Config
	registry *RuleRegistry
}

func NewP10Checker(config P10Config) *P10Checker {
	return &P10Checker{config: config, registry: NewRuleRegistry()}
}

func (c *P10Checker) Config() P10Config { return c.config }

// Check collects every violation in the file; empty when the
// configuration disables checking.
func (c *P10Checker) Check(file *File, source string) []P10Violation {
	if !c.config.IsEnabled() {
		return nil
	}
	return c.registry.CheckFile(file, c.config, source)
}

// CheckAndReport converts violations into a merged CompileError.
func (c *P10Checker) CheckAndReport(file *File, source string) error {
	violations := c.Check(file, source)
	if len(violations) == 0 {
		return nil
	}
	errs := make([]*CompileError, len(violations))
	for i, v := range violations {
		errs[i] = c.violationToError(v, source)
	}
	return Multiple(errs)
}

func (c *P10Checker) violationToError(v P10Violation, source string) *CompileError {
	err := NewP10Error(v.Code, v.Message, v.Span, source)
	switch {
	case v.Help != "" && v.Note != "":
		err.WithHint(fmt.Sprintf("%s\nNote: %s", v.Help, v.Note))
	case v.Help != "":
		err.WithHint(v.Help)
	case v.Note != "":
		err.WithHint(fmt.Sprintf("Note: %s", v.Note))
	}
	return err
}

// EnabledRules lists the rules active under the current config.
func (c *P10Checker) EnabledRules() []P10Rule {
	return c.registry.EnabledRules(c.config)
}
