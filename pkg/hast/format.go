package hast

import (
	"fmt"
	"strconv"
	"strings"
)

// Format returns a compact one-line dump of the tree under n, used in debug
// logs and test failures.
//
//	root(p(text "a" strong(text "b")))
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Root:
		b.WriteString("root")
		formatChildren(b, n.Children)
	case *Element:
		b.WriteString(n.Tag)
		for _, attr := range n.Attrs.Live() {
			fmt.Fprintf(b, "[%s=%s]", attr.Name, strconv.Quote(attr.Value))
		}
		formatChildren(b, n.Children)
	case *Text:
		b.WriteString("text ")
		b.WriteString(strconv.Quote(n.Value))
	case *Raw:
		b.WriteString("raw ")
		b.WriteString(strconv.Quote(n.Value))
	case *Expression:
		src := ""
		if n.Expr != nil {
			src = n.Expr.Source
		}
		b.WriteString("expression ")
		b.WriteString(strconv.Quote(src))
	case *Program:
		src := ""
		if n.Prog != nil {
			src = n.Prog.Source
		}
		b.WriteString("program ")
		b.WriteString(strconv.Quote(src))
	case *Value:
		fmt.Fprintf(b, "value %v", n.Value)
	default:
		panic(fmt.Sprintf("hast: unknown node type %T", n))
	}
}

func formatChildren(b *strings.Builder, kids []Node) {
	b.WriteByte('(')
	for i, kid := range kids {
		if i > 0 {
			b.WriteByte(' ')
		}
		format(b, kid)
	}
	b.WriteByte(')')
}
