package fastc

import (
	"path/filepath"
	"strings"
)

// The driver composes the phases: lex, parse, module expansion, name
// resolution, type checking, Power of 10 analysis, lowering and
// emission.  Every invocation constructs fresh state; there is no
// global mutable compilation state and the pipeline is synchronous.

// Parse lexes and parses source, returning the AST.
func Parse(source, filename string) (*File, error) {
	tokens := StripComments(Tokenize(source))
	parser := NewParser(tokens, source, filename)
	return parser.ParseFile()
}

// Check runs the pipeline through Power of 10 analysis at the
// standard safety level without emitting C.
func Check(source, filename string) error {
	return CheckWithP10(source, filename, StandardP10Config())
}

// CheckWithP10 is Check with an explicit Power of 10 configuration.
func CheckWithP10(source, filename string, cfg P10Config) error {
	_, err := frontend(source, filename, cfg)
	return err
}

// Compile compiles FastC source to C11 text.
func Compile(source, filename string) (string, error) {
	cCode, _, err := CompileWithOptions(source, filename, false)
	return cCode, err
}

// CompileWithOptions compiles and optionally produces a header for
// the module named after the file stem.  The header string is empty
// when emitHeader is false.
func CompileWithOptions(source, filename string, emitHeader bool) (string, string, error) {
	return CompileWithP10(source, filename, emitHeader, StandardP10Config())
}

// CompileWithP10 is CompileWithOptions with an explicit Power of 10
// configuration.
func CompileWithP10(source, filename string, emitHeader bool, cfg P10Config) (string, string, error) {
	ast, err := frontend(source, filename, cfg)
	if err != nil {
		return "", "", err
	}

	lowerer := NewLower(source)
	cAST, err := lowerer.LowerFile(ast)
	if err != nil {
		return "", "", err
	}

	emitter := NewEmitter()
	cCode := emitter.Emit(cAST)

	header := ""
	if emitHeader {
		header = emitter.EmitHeader(cAST, moduleName(filename))
	}
	return cCode, header, nil
}

// frontend runs phases 1-6 and returns the expanded, checked AST.
func frontend(source, filename string, cfg P10Config) (*File, error) {
	tokens := StripComments(Tokenize(source))

	parser := NewParser(tokens, source, filename)
	ast, err := parser.ParseFile()
	if err != nil {
		return nil, err
	}

	// Module expansion only happens inside a project: the manifest
	// marks the root, its absence disables expansion.
	if projectRoot := findProjectRoot(filename); projectRoot != "" {
		sourceDir := filepath.Dir(filename)
		loader := NewModuleLoader(projectRoot)
		if err := loader.ExpandModules(ast, sourceDir); err != nil {
			return nil, err
		}
	}

	resolver := NewResolver(source)
	if err := resolver.Resolve(ast); err != nil {
		return nil, err
	}

	checker := NewTypeChecker(source, resolver.Symbols())
	if err := checker.Check(ast); err != nil {
		return nil, err
	}

	p10 := NewP10Checker(cfg)
	if err := p10.CheckAndReport(ast, source); err != nil {
		return nil, err
	}

	return ast, nil
}

// moduleName derives the emitted header's module name from the file
// stem.
func moduleName(filename string) string {
	stem := filepath.Base(filename)
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	if stem == "" || stem == "." {
		return "module"
	}
	return stem
}
