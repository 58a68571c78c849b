package esm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// FragmentName is the file name given to fragments in script positions and
// stack traces.
const FragmentName = "fragment"

// SyntaxError reports malformed module syntax in a fragment.
type SyntaxError struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// ErrNotExpression is returned by ParseExpression when the source holds more
// than one expression or a statement.
var ErrNotExpression = errors.New("esm: expected a single expression")

// ParseExpression parses the content of an expression fragment.
//
// Whitespace or comment-only content yields an empty Expression. Content that
// does not parse as an expression statement on its own (an object literal,
// for instance) is retried in parentheses.
func ParseExpression(src string) (*Expression, error) {
	prg, err := parser.ParseFile(nil, FragmentName, src, 0)
	if err == nil {
		switch len(prg.Body) {
		case 0:
			return &Expression{Source: src, File: prg.File}, nil
		case 1:
			if stmt, ok := prg.Body[0].(*ast.ExpressionStatement); ok {
				return &Expression{Source: src, Node: stmt.Expression, File: prg.File}, nil
			}
		}
	}

	// The trailing newline keeps a line comment from swallowing the paren.
	wrapped, werr := parser.ParseFile(nil, FragmentName, "("+src+"\n)", 0)
	if werr != nil {
		if err != nil {
			return nil, fmt.Errorf("esm: %w", err)
		}
		return nil, ErrNotExpression
	}
	if len(wrapped.Body) != 1 {
		return nil, ErrNotExpression
	}
	stmt, ok := wrapped.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, ErrNotExpression
	}
	return &Expression{Source: src, Node: stmt.Expression, File: wrapped.File}, nil
}

// ParseProgram parses a top-level fragment into import, export and plain
// declaration statements.
func ParseProgram(src string) (*Program, error) {
	prog := &Program{Source: src}
	for _, seg := range splitTopLevel(src) {
		var (
			stmts []Statement
			err   error
		)
		switch seg.keyword {
		case "import":
			stmts, err = parseImport(src, seg)
		case "export":
			stmts, err = parseExport(src, seg)
		default:
			stmts, err = parsePlain(src, seg.start, seg.end)
		}
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmts...)
	}
	return prog, nil
}

func parseImport(src string, seg segment) ([]Statement, error) {
	s := newScanner(src[:seg.end], seg.start)
	s.consume("import")
	s.skipSpace()

	decl := &ImportDeclaration{Offset: seg.start}
	if spec, ok := s.stringLiteral(); ok {
		decl.Specifier = spec
		return finishStatement(src, s, seg, decl)
	}

	clause := true
	if name := s.identifier(); name != "" {
		decl.Default = name
		s.skipSpace()
		clause = s.consume(",")
		s.skipSpace()
	}

	switch {
	case !clause:
	case s.consume("*"):
		s.skipSpace()
		if !s.keyword("as") {
			return nil, s.errorf("expected 'as' after '*' in import")
		}
		s.skipSpace()
		if decl.Namespace = s.identifier(); decl.Namespace == "" {
			return nil, s.errorf("expected namespace name in import")
		}
	case s.consume("{"):
		for {
			s.skipSpace()
			if s.consume("}") {
				break
			}
			imported := s.identifier()
			if imported == "" {
				return nil, s.errorf("expected name in import list")
			}
			local := imported
			s.skipSpace()
			if s.keyword("as") {
				s.skipSpace()
				if local = s.identifier(); local == "" {
					return nil, s.errorf("expected local name after 'as'")
				}
				s.skipSpace()
			}
			decl.Specifiers = append(decl.Specifiers, ImportSpecifier{Imported: imported, Local: local})
			if s.consume(",") {
				continue
			}
			if !s.consume("}") {
				return nil, s.errorf("expected ',' or '}' in import list")
			}
			break
		}
	default:
		return nil, s.errorf("expected import clause")
	}

	s.skipSpace()
	if !s.keyword("from") {
		return nil, s.errorf("expected 'from' in import")
	}
	s.skipSpace()
	spec, ok := s.stringLiteral()
	if !ok {
		return nil, s.errorf("expected module specifier string")
	}
	decl.Specifier = spec
	return finishStatement(src, s, seg, decl)
}

func parseExport(src string, seg segment) ([]Statement, error) {
	s := newScanner(src[:seg.end], seg.start)
	s.consume("export")
	s.skipSpace()

	switch {
	case s.keyword("default"):
		return nil, s.errorf("export default is not supported in document fragments")
	case s.peek("*"):
		return nil, s.errorf("export * requires module resolution and is not supported")
	case s.consume("{"):
		decl := &ExportNamedDeclaration{Offset: seg.start}
		for {
			s.skipSpace()
			if s.consume("}") {
				break
			}
			local := s.identifier()
			if local == "" {
				return nil, s.errorf("expected name in export list")
			}
			exported := local
			s.skipSpace()
			if s.keyword("as") {
				s.skipSpace()
				if exported = s.identifier(); exported == "" || exported == "default" {
					return nil, s.errorf("expected exported name after 'as'")
				}
				s.skipSpace()
			}
			decl.Specifiers = append(decl.Specifiers, ExportSpecifier{Local: local, Exported: exported})
			if s.consume(",") {
				continue
			}
			if !s.consume("}") {
				return nil, s.errorf("expected ',' or '}' in export list")
			}
			break
		}
		mark := *s
		s.skipSpace()
		if s.keyword("from") {
			return nil, s.errorf("re-exports require module resolution and are not supported")
		}
		*s = mark
		return finishStatement(src, s, seg, decl)
	}

	body, err := parsePlain(src, s.pos, seg.end)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, s.errorf("expected declaration after export")
	}
	inner := body[0].(*Declaration)
	if len(inner.Program.Body) == 0 || !isDeclaration(inner.Program.Body[0]) {
		return nil, s.errorf("expected declaration after export")
	}
	return []Statement{&ExportNamedDeclaration{Offset: seg.start, Declaration: inner}}, nil
}

// finishStatement consumes an optional semicolon after a module statement
// and parses whatever follows in the segment as plain script.
func finishStatement(src string, s *scanner, seg segment, stmt Statement) ([]Statement, error) {
	mark := *s
	s.skipSpace()
	if !s.consume(";") {
		*s = mark
	}
	rest, err := parsePlain(src, s.pos, seg.end)
	if err != nil {
		return nil, err
	}
	return append([]Statement{stmt}, rest...), nil
}

func parsePlain(src string, start, end int) ([]Statement, error) {
	if strings.TrimSpace(src[start:end]) == "" {
		return nil, nil
	}
	prg, err := parser.ParseFile(nil, FragmentName, blankOutside(src, start, end), 0)
	if err != nil {
		return nil, fmt.Errorf("esm: %w", err)
	}
	if len(prg.Body) == 0 {
		return nil, nil
	}
	return []Statement{&Declaration{Offset: start, Program: prg}}, nil
}

func isDeclaration(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.VariableStatement, *ast.LexicalDeclaration, *ast.FunctionDeclaration, *ast.ClassDeclaration:
		return true
	}
	return false
}
