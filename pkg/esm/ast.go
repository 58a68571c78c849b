// Package esm models the script fragments embedded in a document: single
// expressions and top-level programs made of import, export and plain
// declaration statements.
//
// The script engine only understands classic scripts, so the module syntax
// (import/export) is parsed here and everything else is handed to the goja
// parser.
package esm

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
)

// Expression is one embedded expression, the text between a pair of braces.
type Expression struct {
	// Source is the raw expression text.
	Source string

	// Node is the parsed expression. It is nil when the braces held only
	// whitespace or comments.
	Node ast.Expression

	// File is the parsed source file that Node positions refer to.
	File *file.File
}

// Empty reports whether the expression produces no value at all.
func (e *Expression) Empty() bool {
	return e == nil || e.Node == nil
}

// Program is one top-level fragment of module code.
type Program struct {
	// Source is the raw fragment text.
	Source string

	// Body holds the statements in source order.
	Body []Statement
}

// Statement is implemented by the statement kinds of a Program.
type Statement interface {
	statementNode()
	// Pos is the byte offset of the statement in the fragment source.
	Pos() int
}

// ImportDeclaration binds names from a pre-registered module.
//
//	import def, { a, b as c } from "./mod"
//	import * as ns from "./mod"
type ImportDeclaration struct {
	Offset     int
	Specifier  string
	Default    string
	Namespace  string
	Specifiers []ImportSpecifier
}

// ImportSpecifier is one entry of a named import list.
type ImportSpecifier struct {
	Imported string
	Local    string
}

// ExportNamedDeclaration wraps a declaration or a list of local names that
// the fragment exports.
type ExportNamedDeclaration struct {
	Offset      int
	Declaration *Declaration
	Specifiers  []ExportSpecifier
}

// ExportSpecifier is one entry of `export { local as exported }`.
type ExportSpecifier struct {
	Local    string
	Exported string
}

// Declaration is plain script: variable, function and class declarations or
// any other statements the engine runs as-is.
type Declaration struct {
	Offset  int
	Program *ast.Program
}

func (*ImportDeclaration) statementNode()      {}
func (*ExportNamedDeclaration) statementNode() {}
func (*Declaration) statementNode()            {}

func (s *ImportDeclaration) Pos() int      { return s.Offset }
func (s *ExportNamedDeclaration) Pos() int { return s.Offset }
func (s *Declaration) Pos() int            { return s.Offset }
