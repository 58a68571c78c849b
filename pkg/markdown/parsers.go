package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Extension adds import/export blocks and {expression} syntax to a goldmark
// parser.
var Extension goldmark.Extender = &mdxExtension{}

type mdxExtension struct{}

func (e *mdxExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(
			util.Prioritized(&esmParser{}, 50),
			util.Prioritized(&flowExpressionParser{}, 60),
		),
		parser.WithInlineParsers(
			util.Prioritized(&textExpressionParser{}, 50),
		),
	)
}

// esmParser opens an ESM block on a top-level line that starts with an
// import or export statement. The block runs to the next blank line.
type esmParser struct{}

func (p *esmParser) Trigger() []byte {
	return []byte{'i', 'e'}
}

func (p *esmParser) Open(parent gast.Node, reader text.Reader, pc parser.Context) (gast.Node, parser.State) {
	if parent.Kind() != gast.KindDocument || pc.BlockIndent() != 0 {
		return nil, parser.NoChildren
	}
	line, segment := reader.PeekLine()
	if !startsModuleStatement(line) {
		return nil, parser.NoChildren
	}
	node := &ESM{}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return node, parser.NoChildren
}

func (p *esmParser) Continue(node gast.Node, reader text.Reader, pc parser.Context) parser.State {
	line, segment := reader.PeekLine()
	if util.IsBlank(line) {
		return parser.Close
	}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return parser.Continue | parser.NoChildren
}

func (p *esmParser) Close(node gast.Node, reader text.Reader, pc parser.Context) {}

func (p *esmParser) CanInterruptParagraph() bool { return false }

func (p *esmParser) CanAcceptIndentedLine() bool { return false }

func startsModuleStatement(line []byte) bool {
	for _, kw := range [][]byte{[]byte("import"), []byte("export")} {
		if !bytes.HasPrefix(line, kw) {
			continue
		}
		rest := line[len(kw):]
		if len(rest) == 0 {
			return false
		}
		if c := rest[0]; c == ' ' || c == '\t' || c == '{' || c == '*' || c == '"' || c == '\'' {
			return true
		}
	}
	return false
}

// flowExpressionParser opens a block on a line starting with '{' whose
// expression, possibly spanning several lines, is followed only by
// whitespace. A line such as "{a} and more" is left to the paragraph parser.
type flowExpressionParser struct{}

func (p *flowExpressionParser) Trigger() []byte {
	return []byte{'{'}
}

func (p *flowExpressionParser) Open(parent gast.Node, reader text.Reader, pc parser.Context) (gast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || line[pos] != '{' {
		return nil, parser.NoChildren
	}
	node := &FlowExpression{}
	if end := node.scan.feed(line[pos:]); end >= 0 {
		if !util.IsBlank(line[pos+end:]) {
			return nil, parser.NoChildren
		}
		node.closed = true
	}
	node.Lines().Append(text.NewSegment(segment.Start+pos, segment.Stop))
	reader.AdvanceToEOL()
	return node, parser.NoChildren
}

func (p *flowExpressionParser) Continue(node gast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*FlowExpression)
	if n.closed {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	if end := n.scan.feed(line); end >= 0 {
		n.closed = true
		if !util.IsBlank(line[end:]) {
			n.trailing = segment.Start + end
		}
	}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return parser.Continue | parser.NoChildren
}

func (p *flowExpressionParser) Close(node gast.Node, reader text.Reader, pc parser.Context) {}

func (p *flowExpressionParser) CanInterruptParagraph() bool { return false }

func (p *flowExpressionParser) CanAcceptIndentedLine() bool { return false }

// textExpressionParser reads an inline {expression}, which may continue
// over the following lines of the paragraph.
type textExpressionParser struct{}

func (p *textExpressionParser) Trigger() []byte {
	return []byte{'{'}
}

func (p *textExpressionParser) Parse(parent gast.Node, block text.Reader, pc parser.Context) gast.Node {
	line, segment := block.PeekLine()
	node := &TextExpression{Offset: segment.Start}

	var (
		scan  braceScanner
		value []byte
	)
	for line != nil {
		if end := scan.feed(line); end >= 0 {
			node.Value = append(value, line[:end]...)
			block.Advance(end)
			return node
		}
		value = append(value, line...)
		block.AdvanceLine()
		line, _ = block.PeekLine()
	}
	node.Value = value
	node.Unterminated = true
	return node
}
