package markdown

import (
	"errors"
	"testing"

	"github.com/recera/mdxlite/pkg/hast"
)

func parse(t *testing.T, src string, opts ...Option) *hast.Root {
	t.Helper()
	root, err := New(opts...).Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return root
}

func TestParse_Markdown(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "paragraph",
			src:      "hello *world*",
			expected: `root(p(text "hello " em(text "world")))`,
		},
		{
			name:     "heading and strong",
			src:      "## Title **bold**\n",
			expected: `root(h2(text "Title " strong(text "bold")))`,
		},
		{
			name:     "soft break",
			src:      "one\ntwo",
			expected: `root(p(text "one\ntwo"))`,
		},
		{
			name:     "thematic break",
			src:      "a\n\n---\n",
			expected: `root(p(text "a") hr())`,
		},
		{
			name:     "unordered list",
			src:      "- a\n- b\n",
			expected: `root(ul(li(text "a") li(text "b")))`,
		},
		{
			name:     "ordered list with start",
			src:      "3. a\n4. b\n",
			expected: `root(ol[start="3"](li(text "a") li(text "b")))`,
		},
		{
			name:     "fenced code",
			src:      "```go\nx := 1\n```\n",
			expected: `root(pre(code[class="language-go"](text "x := 1\n")))`,
		},
		{
			name:     "code span",
			src:      "use `a < b`",
			expected: `root(p(text "use " code(text "a < b")))`,
		},
		{
			name:     "link with title",
			src:      `[go](/docs "Docs")`,
			expected: `root(p(a[href="/docs"][title="Docs"](text "go")))`,
		},
		{
			name:     "image",
			src:      "![a *cat*](/cat.png)",
			expected: `root(p(img[src="/cat.png"][alt="a cat"]()))`,
		},
		{
			name:     "email autolink",
			src:      "<me@example.com>",
			expected: `root(p(a[href="mailto:me@example.com"](text "me@example.com")))`,
		},
		{
			name:     "escapes and entities",
			src:      `\*not em\* &amp; &#65;`,
			expected: `root(p(text "*not em* & A"))`,
		},
		{
			name:     "inline html",
			src:      "a <b>c</b>",
			expected: `root(p(text "a " raw "<b>" text "c" raw "</b>"))`,
		},
		{
			name:     "html block",
			src:      "<div>hi</div>\n",
			expected: `root(raw "<div>hi</div>")`,
		},
		{
			name:     "blockquote",
			src:      "> quoted\n",
			expected: `root(blockquote(p(text "quoted")))`,
		},
		{
			name:     "link reference definition",
			src:      "[x]\n\n[x]: /y\n",
			expected: `root(p(a[href="/y"](text "x")))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hast.Format(parse(t, tt.src))
			if got != tt.expected {
				t.Errorf("Parse(%q)\n got: %s\nwant: %s", tt.src, got, tt.expected)
			}
		})
	}
}

func TestParse_GFM(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "strikethrough",
			src:      "~~gone~~",
			expected: `root(p(del(text "gone")))`,
		},
		{
			name:     "table",
			src:      "| a | b |\n|:--|--:|\n| 1 | 2 |\n",
			expected: `root(table(thead(tr(th[align="left"](text "a") th[align="right"](text "b"))) tbody(tr(td[align="left"](text "1") td[align="right"](text "2")))))`,
		},
		{
			name:     "task list",
			src:      "- [x] done\n",
			expected: `root(ul(li(input[type="checkbox"][disabled=""][checked=""]() text "done")))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hast.Format(parse(t, tt.src, WithGFM()))
			if got != tt.expected {
				t.Errorf("Parse(%q)\n got: %s\nwant: %s", tt.src, got, tt.expected)
			}
		})
	}
}

func TestParse_TextExpression(t *testing.T) {
	root := parse(t, "foo: {foo}")
	if got, want := hast.Format(root), `root(p(text "foo: " expression "foo"))`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	p := root.Children[0].(*hast.Element)
	expr := p.Children[1].(*hast.Expression)
	if expr.Expr.Node == nil {
		t.Error("expression should carry a parsed node")
	}
}

func TestParse_TextExpressionBraces(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"a {({x: 1}).x} b", `root(p(text "a " expression "({x: 1}).x" text " b"))`},
		{"a {'}'} b", `root(p(text "a " expression "'}'" text " b"))`},
		{"a {`${1}}`} b", "root(p(text \"a \" expression \"`${1}}`\" text \" b\"))"},
		{"a {/* } */ 1}", `root(p(text "a " expression "/* } */ 1"))`},
		{"{a} and more", `root(p(expression "a" text " and more"))`},
		{"a {\n1 + 2\n} b", `root(p(text "a " expression "\n1 + 2\n" text " b"))`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := hast.Format(parse(t, tt.src))
			if got != tt.expected {
				t.Errorf("Parse(%q)\n got: %s\nwant: %s", tt.src, got, tt.expected)
			}
		})
	}
}

func TestParse_FlowExpression(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"{1 + 1}\n", `root(expression "1 + 1")`},
		{"{\n  1 +\n  2\n}\n", `root(expression "\n  1 +\n  2\n")`},
		{"# Hi\n\n{x}\n\ntext\n", `root(h1(text "Hi") expression "x" p(text "text"))`},
		{"{/* just a comment */}\n", `root(expression "/* just a comment */")`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := hast.Format(parse(t, tt.src))
			if got != tt.expected {
				t.Errorf("Parse(%q)\n got: %s\nwant: %s", tt.src, got, tt.expected)
			}
		})
	}
}

func TestParse_ESM(t *testing.T) {
	root := parse(t, "import {foo} from './bar'\nexport const baz = 'hello'\n\nfoo: {foo}\n")
	if len(root.Children) != 2 {
		t.Fatalf("expected program and paragraph, got %s", hast.Format(root))
	}

	prog, ok := root.Children[0].(*hast.Program)
	if !ok {
		t.Fatalf("first child is %T, want *hast.Program", root.Children[0])
	}
	if len(prog.Prog.Body) != 2 {
		t.Errorf("program has %d statements, want 2", len(prog.Prog.Body))
	}
	if _, ok := root.Children[1].(*hast.Element); !ok {
		t.Errorf("second child is %T, want *hast.Element", root.Children[1])
	}
}

func TestParse_ESMOnlyAtTopLevel(t *testing.T) {
	got := hast.Format(parse(t, "> import x from 'y'\n\nimportant\n"))
	want := `root(blockquote(p(text "import x from 'y'")) p(text "important"))`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		column int
	}{
		{"unterminated inline", "text {a", 1, 6},
		{"unterminated flow", "{a\n\nmore text\n", 1, 1},
		{"content after flow", "{a\n} b\n", 2, 2},
		{"invalid expression", "{a b}\n", 1, 1},
		{"invalid import", "para\n\nimport {a from 'b'\n", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse([]byte(tt.src))
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.src)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error %v is %T, want *ParseError", err, err)
			}
			if parseErr.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", parseErr.Line, tt.line, err)
			}
			if tt.column > 0 && parseErr.Column != tt.column {
				t.Errorf("column = %d, want %d (%v)", parseErr.Column, tt.column, err)
			}
		})
	}
}

func TestBraceScanner(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		line  int
		end   int
	}{
		{"simple", []string{"{a}"}, 0, 3},
		{"nested", []string{"{ {a: {b}} } x"}, 0, 12},
		{"double quoted", []string{`{"}"}`}, 0, 5},
		{"escaped quote", []string{`{'\'}'}`}, 0, 7},
		{"template", []string{"{`${ {a} }`}"}, 0, 12},
		{"line comment", []string{"{a // }\n", "}"}, 1, 1},
		{"block comment", []string{"{/* }\n", "*/}"}, 1, 3},
		{"multi line", []string{"{\n", "a\n", "}\n"}, 2, 1},
		{"unterminated", []string{"{a\n", "b\n"}, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s braceScanner
			line, end := -1, -1
			for i, l := range tt.lines {
				if e := s.feed([]byte(l)); e >= 0 {
					line, end = i, e
					break
				}
			}
			if line != tt.line || end != tt.end {
				t.Errorf("closed at line %d index %d, want line %d index %d", line, end, tt.line, tt.end)
			}
		})
	}
}
