package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	gast "github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"

	"github.com/recera/mdxlite/pkg/esm"
	"github.com/recera/mdxlite/pkg/hast"
)

type converter struct {
	source []byte
	// lineStarts holds the offset of the first byte of every line.
	lineStarts []int
}

func newConverter(source []byte) *converter {
	starts := []int{0}
	for i, c := range source {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &converter{source: source, lineStarts: starts}
}

// position turns a source offset into a 1-based line and column.
func (c *converter) position(offset int) (int, int) {
	line := sort.Search(len(c.lineStarts), func(i int) bool { return c.lineStarts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return line + 1, offset - c.lineStarts[line] + 1
}

func (c *converter) errorAt(offset int, msg string, err error) *ParseError {
	line, col := c.position(offset)
	return &ParseError{Line: line, Column: col, Message: msg, Err: err}
}

func (c *converter) root(doc gast.Node) (*hast.Root, error) {
	kids, err := c.children(doc)
	if err != nil {
		return nil, err
	}
	return hast.NewRoot(kids...), nil
}

func (c *converter) children(n gast.Node) ([]hast.Node, error) {
	var out []hast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		nodes, err := c.node(child)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			out = appendMerged(out, node)
		}
	}
	return out, nil
}

// appendMerged appends n, joining it to a preceding text node.
func appendMerged(out []hast.Node, n hast.Node) []hast.Node {
	if t, ok := n.(*hast.Text); ok && len(out) > 0 {
		if prev, ok := out[len(out)-1].(*hast.Text); ok {
			prev.Value += t.Value
			return out
		}
	}
	return append(out, n)
}

func (c *converter) element(tag string, attrs hast.Attributes, n gast.Node) ([]hast.Node, error) {
	kids, err := c.children(n)
	if err != nil {
		return nil, err
	}
	return []hast.Node{hast.NewElement(tag, attrs, kids...)}, nil
}

func (c *converter) node(n gast.Node) ([]hast.Node, error) {
	switch n := n.(type) {
	case *gast.Paragraph:
		return c.element("p", nil, n)
	case *gast.TextBlock:
		return c.children(n)
	case *gast.Heading:
		return c.element("h"+strconv.Itoa(n.Level), nil, n)
	case *gast.ThematicBreak:
		return []hast.Node{hast.NewElement("hr", nil)}, nil
	case *gast.Blockquote:
		return c.element("blockquote", nil, n)
	case *gast.List:
		if !n.IsOrdered() {
			return c.element("ul", nil, n)
		}
		var attrs hast.Attributes
		if n.Start != 1 {
			attrs.Set("start", strconv.Itoa(n.Start))
		}
		return c.element("ol", attrs, n)
	case *gast.ListItem:
		return c.element("li", nil, n)
	case *gast.FencedCodeBlock:
		var attrs hast.Attributes
		if lang := n.Language(c.source); len(lang) > 0 {
			attrs.Set("class", "language-"+string(lang))
		}
		return []hast.Node{codeBlock(attrs, c.lines(n))}, nil
	case *gast.CodeBlock:
		return []hast.Node{codeBlock(nil, c.lines(n))}, nil
	case *gast.HTMLBlock:
		raw := c.lines(n)
		if n.HasClosure() {
			raw += string(n.ClosureLine.Value(c.source))
		}
		return []hast.Node{hast.NewRaw(strings.TrimRight(raw, "\n"))}, nil
	case *gast.LinkReferenceDefinition:
		return nil, nil

	case *gast.Text:
		value := n.Value(c.source)
		if !n.IsRaw() {
			value = unescape(value)
		}
		nodes := []hast.Node{hast.NewText(string(value))}
		switch {
		case n.HardLineBreak():
			nodes = append(nodes, hast.NewElement("br", nil), hast.NewText("\n"))
		case n.SoftLineBreak():
			nodes = append(nodes, hast.NewText("\n"))
		}
		return nodes, nil
	case *gast.String:
		return []hast.Node{hast.NewText(string(n.Value))}, nil
	case *gast.CodeSpan:
		var b bytes.Buffer
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*gast.Text); ok {
				b.Write(t.Value(c.source))
			}
		}
		return []hast.Node{hast.NewElement("code", nil, hast.NewText(b.String()))}, nil
	case *gast.Emphasis:
		tag := "em"
		if n.Level == 2 {
			tag = "strong"
		}
		return c.element(tag, nil, n)
	case *gast.Link:
		attrs := hast.Attrs("href", string(unescape(n.Destination)))
		if len(n.Title) > 0 {
			attrs.Set("title", string(unescape(n.Title)))
		}
		return c.element("a", attrs, n)
	case *gast.Image:
		attrs := hast.Attrs("src", string(unescape(n.Destination)), "alt", c.plainText(n))
		if len(n.Title) > 0 {
			attrs.Set("title", string(unescape(n.Title)))
		}
		return []hast.Node{hast.NewElement("img", attrs)}, nil
	case *gast.AutoLink:
		url := string(n.URL(c.source))
		if n.AutoLinkType == gast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:") {
			url = "mailto:" + url
		}
		label := string(n.Label(c.source))
		return []hast.Node{hast.NewElement("a", hast.Attrs("href", url), hast.NewText(label))}, nil
	case *gast.RawHTML:
		return []hast.Node{hast.NewRaw(string(n.Segments.Value(c.source)))}, nil

	case *extast.Table:
		return c.table(n)
	case *extast.Strikethrough:
		return c.element("del", nil, n)
	case *extast.TaskCheckBox:
		attrs := hast.Attrs("type", "checkbox", "disabled", "")
		if n.IsChecked {
			attrs.Set("checked", "")
		}
		return []hast.Node{hast.NewElement("input", attrs)}, nil

	case *ESM:
		return c.esm(n)
	case *FlowExpression:
		return c.flowExpression(n)
	case *TextExpression:
		return c.textExpression(n)
	}
	return nil, c.errorAt(n.Pos(), fmt.Sprintf("unsupported markdown node %s", n.Kind()), nil)
}

func (c *converter) table(n *extast.Table) ([]hast.Node, error) {
	var head, body []hast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader:
			cells, err := c.tableCells(row, "th")
			if err != nil {
				return nil, err
			}
			head = append(head, hast.NewElement("tr", nil, cells...))
		case *extast.TableRow:
			cells, err := c.tableCells(row, "td")
			if err != nil {
				return nil, err
			}
			body = append(body, hast.NewElement("tr", nil, cells...))
		}
	}
	table := hast.NewElement("table", nil, hast.NewElement("thead", nil, head...))
	if len(body) > 0 {
		table.Children = append(table.Children, hast.NewElement("tbody", nil, body...))
	}
	return []hast.Node{table}, nil
}

func (c *converter) tableCells(row gast.Node, tag string) ([]hast.Node, error) {
	var cells []hast.Node
	for child := row.FirstChild(); child != nil; child = child.NextSibling() {
		cell, ok := child.(*extast.TableCell)
		if !ok {
			continue
		}
		var attrs hast.Attributes
		if cell.Alignment != extast.AlignNone {
			attrs.Set("align", cell.Alignment.String())
		}
		nodes, err := c.element(tag, attrs, cell)
		if err != nil {
			return nil, err
		}
		cells = append(cells, nodes...)
	}
	return cells, nil
}

func (c *converter) esm(n *ESM) ([]hast.Node, error) {
	src := c.lines(n)
	prog, err := esm.ParseProgram(src)
	if err != nil {
		start := n.Lines().At(0).Start
		var syntaxErr *esm.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, c.errorAt(start+syntaxErr.Offset, syntaxErr.Message, nil)
		}
		return nil, c.errorAt(start, "invalid import/export block", err)
	}
	return []hast.Node{hast.NewProgram(prog)}, nil
}

func (c *converter) flowExpression(n *FlowExpression) ([]hast.Node, error) {
	start := n.Lines().At(0).Start
	if !n.closed {
		return nil, c.errorAt(start, "unterminated expression, expected a closing '}'", nil)
	}
	if n.trailing > 0 {
		return nil, c.errorAt(n.trailing, "unexpected content after expression", nil)
	}
	src := strings.TrimRight(c.lines(n), " \t\r\n")
	return c.expression(start, src[1:len(src)-1])
}

func (c *converter) textExpression(n *TextExpression) ([]hast.Node, error) {
	if n.Unterminated {
		return nil, c.errorAt(n.Offset, "unterminated expression, expected a closing '}'", nil)
	}
	return c.expression(n.Offset, string(n.Value[1:len(n.Value)-1]))
}

func (c *converter) expression(offset int, src string) ([]hast.Node, error) {
	expr, err := esm.ParseExpression(src)
	if err != nil {
		return nil, c.errorAt(offset, "invalid expression", err)
	}
	return []hast.Node{hast.NewExpression(expr)}, nil
}

// lines joins the raw source lines of a block.
func (c *converter) lines(n gast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return b.String()
}

// plainText is the text content of n's descendants, used for image alt
// text.
func (c *converter) plainText(n gast.Node) string {
	var b strings.Builder
	_ = gast.Walk(n, func(child gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *gast.Text:
			b.Write(unescape(t.Value(c.source)))
		case *gast.String:
			b.Write(t.Value)
		}
		return gast.WalkContinue, nil
	})
	return b.String()
}

func codeBlock(attrs hast.Attributes, code string) *hast.Element {
	return hast.NewElement("pre", nil, hast.NewElement("code", attrs, hast.NewText(code)))
}

func unescape(b []byte) []byte {
	return util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(b)))
}
