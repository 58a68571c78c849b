// Package hast is the document syntax tree shared by the parser, the
// sanitizer, the script evaluator and the renderers.
//
// Node is a closed union: the marker method is unexported, so the variants
// below are the only ones. Code that switches over node types should panic in
// its default case.
package hast

import (
	"fmt"

	"github.com/recera/mdxlite/pkg/esm"
)

// Kind identifies the variant of a Node
type Kind uint8

const (
	// KindRoot is the document root
	KindRoot Kind = iota
	// KindElement is an element with a tag, attributes and children
	KindElement
	// KindText is literal text
	KindText
	// KindRaw is unsanitized markup taken verbatim from the source
	KindRaw
	// KindExpression is an embedded script expression
	KindExpression
	// KindProgram is a top-level import/export fragment
	KindProgram
	// KindValue is the evaluated result of an expression that is not a string
	KindValue
)

var kindNames = [...]string{
	KindRoot:       "root",
	KindElement:    "element",
	KindText:       "text",
	KindRaw:        "raw",
	KindExpression: "expression",
	KindProgram:    "program",
	KindValue:      "value",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is a node of the document tree.
type Node interface {
	Kind() Kind
	hastNode()
}

// Parent is a node that owns an ordered list of children.
type Parent interface {
	Node
	// ChildList returns the node's child slice so callers can splice it in
	// place.
	ChildList() *[]Node
}

// Root is the top of a document tree.
type Root struct {
	Children []Node
}

// Element is an HTML element.
type Element struct {
	Tag      string
	Attrs    Attributes
	Children []Node
}

// Text is a run of literal text. Renderers escape it.
type Text struct {
	Value string
}

// Raw is markup copied from the source without interpretation.
type Raw struct {
	Value string
}

// Expression wraps an embedded `{...}` expression.
type Expression struct {
	Expr *esm.Expression
}

// Program wraps a top-level block of import/export statements.
type Program struct {
	Prog *esm.Program
}

// Value holds the evaluated result of an expression when it is not a
// string. The parser never produces it.
type Value struct {
	Value any
}

func (*Root) Kind() Kind       { return KindRoot }
func (*Element) Kind() Kind    { return KindElement }
func (*Text) Kind() Kind       { return KindText }
func (*Raw) Kind() Kind        { return KindRaw }
func (*Expression) Kind() Kind { return KindExpression }
func (*Program) Kind() Kind    { return KindProgram }
func (*Value) Kind() Kind      { return KindValue }

func (*Root) hastNode()       {}
func (*Element) hastNode()    {}
func (*Text) hastNode()       {}
func (*Raw) hastNode()        {}
func (*Expression) hastNode() {}
func (*Program) hastNode()    {}
func (*Value) hastNode()      {}

func (r *Root) ChildList() *[]Node    { return &r.Children }
func (e *Element) ChildList() *[]Node { return &e.Children }

// NewRoot creates a root with the given children
func NewRoot(children ...Node) *Root {
	return &Root{Children: compact(children)}
}

// NewElement creates an element. Nil children are dropped.
func NewElement(tag string, attrs Attributes, children ...Node) *Element {
	return &Element{Tag: tag, Attrs: attrs, Children: compact(children)}
}

// NewText creates a text node
func NewText(value string) *Text {
	return &Text{Value: value}
}

// NewRaw creates a raw markup node
func NewRaw(value string) *Raw {
	return &Raw{Value: value}
}

// NewExpression creates an expression fragment node
func NewExpression(expr *esm.Expression) *Expression {
	return &Expression{Expr: expr}
}

// NewProgram creates a program fragment node
func NewProgram(prog *esm.Program) *Program {
	return &Program{Prog: prog}
}

// NewValue creates a node carrying an evaluated value
func NewValue(v any) *Value {
	return &Value{Value: v}
}

func compact(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
