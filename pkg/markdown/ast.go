package markdown

import (
	gast "github.com/yuin/goldmark/ast"
)

// KindESM is the goldmark node kind of a top-level import/export block.
var KindESM = gast.NewNodeKind("ESM")

// ESM is a block of import/export statements. Its lines are kept verbatim.
type ESM struct {
	gast.BaseBlock
}

func (n *ESM) Kind() gast.NodeKind { return KindESM }
func (n *ESM) IsRaw() bool         { return true }

func (n *ESM) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

// KindFlowExpression is the goldmark node kind of a block-level expression.
var KindFlowExpression = gast.NewNodeKind("FlowExpression")

// FlowExpression is an expression that stands on lines of its own.
type FlowExpression struct {
	gast.BaseBlock

	scan   braceScanner
	closed bool
	// trailing is the source offset of content after the closing brace, or
	// zero.
	trailing int
}

func (n *FlowExpression) Kind() gast.NodeKind { return KindFlowExpression }
func (n *FlowExpression) IsRaw() bool         { return true }

func (n *FlowExpression) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

// KindTextExpression is the goldmark node kind of an inline expression.
var KindTextExpression = gast.NewNodeKind("TextExpression")

// TextExpression is an expression inside a paragraph or heading.
type TextExpression struct {
	gast.BaseInline

	// Value is the expression text including both braces.
	Value []byte
	// Offset is the source offset of the opening brace.
	Offset       int
	Unterminated bool
}

func (n *TextExpression) Kind() gast.NodeKind { return KindTextExpression }

func (n *TextExpression) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, map[string]string{"Value": string(n.Value)}, nil)
}
