package html

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"github.com/recera/mdxlite/pkg/hast"
)

func TestRender_TextNodes(t *testing.T) {
	tests := []struct {
		name     string
		node     hast.Node
		expected string
	}{
		{
			name:     "simple text",
			node:     hast.NewText("Hello World"),
			expected: "Hello World",
		},
		{
			name:     "text with HTML entities",
			node:     hast.NewText("<script>alert('xss')</script>"),
			expected: "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:     "text with quotes",
			node:     hast.NewText(`"Hello" & 'World'`),
			expected: "&#34;Hello&#34; &amp; &#39;World&#39;",
		},
		{
			name:     "raw is written as is",
			node:     hast.NewRaw("<b>bold</b>"),
			expected: "<b>bold</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderToString(tt.node, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("RenderToString() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestRender_Elements(t *testing.T) {
	tests := []struct {
		name     string
		node     hast.Node
		expected string
	}{
		{
			name:     "empty div",
			node:     hast.NewElement("div", nil),
			expected: "<div></div>",
		},
		{
			name:     "div with text",
			node:     hast.NewElement("div", nil, hast.NewText("Hello")),
			expected: "<div>Hello</div>",
		},
		{
			name:     "attributes keep their order",
			node:     hast.NewElement("div", hast.Attrs("id", "main", "class", "container")),
			expected: `<div id="main" class="container"></div>`,
		},
		{
			name: "nested elements",
			node: hast.NewElement("div", nil,
				hast.NewElement("p", nil, hast.NewText("Paragraph 1")),
				hast.NewElement("p", nil, hast.NewText("Paragraph 2")),
			),
			expected: "<div><p>Paragraph 1</p><p>Paragraph 2</p></div>",
		},
		{
			name:     "void element",
			node:     hast.NewElement("img", hast.Attrs("src", "image.jpg", "alt", "Test Image")),
			expected: `<img src="image.jpg" alt="Test Image">`,
		},
		{
			name:     "boolean attributes",
			node:     hast.NewElement("input", hast.Attrs("type", "checkbox", "checked", "")),
			expected: `<input type="checkbox" checked>`,
		},
		{
			name:     "script content is not escaped",
			node:     hast.NewElement("script", nil, hast.NewText("a < b && c")),
			expected: "<script>a < b && c</script>",
		},
		{
			name: "root renders its children",
			node: hast.NewRoot(
				hast.NewElement("h1", nil, hast.NewText("Title")),
				hast.NewElement("p", nil, hast.NewText("Content")),
			),
			expected: "<h1>Title</h1><p>Content</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderToString(tt.node, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("RenderToString() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestRender_RemovedAttributes(t *testing.T) {
	el := hast.NewElement("a", hast.Attrs("href", "javascript:x", "title", "t"), hast.NewText("x"))
	el.Attrs.Remove("href")

	result, err := RenderToString(el, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `<a title="t">x</a>` {
		t.Errorf("RenderToString() = %q", result)
	}
}

func TestRender_XSSPrevention(t *testing.T) {
	tests := []struct {
		name    string
		node    hast.Node
		notWant string
	}{
		{
			name:    "script in text",
			node:    hast.NewElement("div", nil, hast.NewText("<script>alert('xss')</script>")),
			notWant: "<script>",
		},
		{
			name:    "script in attribute",
			node:    hast.NewElement("div", hast.Attrs("title", `<script>alert('xss')</script>`)),
			notWant: "<script>",
		},
		{
			name:    "javascript URL",
			node:    hast.NewElement("a", hast.Attrs("href", " JavaScript:alert('xss')"), hast.NewText("Link")),
			notWant: "alert",
		},
		{
			name:    "string value",
			node:    hast.NewValue([]any{"<i>", int64(1)}),
			notWant: "<i>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderToString(tt.node, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Contains(result, tt.notWant) {
				t.Errorf("Result should not contain %q, got: %q", tt.notWant, result)
			}
		})
	}
}

func TestRender_Values(t *testing.T) {
	tenth, fifth := 0.1, 0.2
	tests := []struct {
		value    any
		expected string
	}{
		{nil, ""},
		{true, ""},
		{int64(9), "9"},
		{-3, "-3"},
		{1.5, "1.5"},
		{float64(100), "100"},
		{tenth + fifth, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-Infinity"},
		{math.Copysign(0, -1), "0"},
		{[]any{int64(1), "a", nil, false, []any{2.5}}, "1a2.5"},
		{[]string{"x", "y"}, "xy"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.value), func(t *testing.T) {
			result, err := RenderToString(hast.NewValue(tt.value), Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("RenderToString(%v) = %q, want %q", tt.value, result, tt.expected)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := RenderToString(hast.NewRoot(hast.NewValue(map[string]any{"a": 1})), Options{})
	var valueErr *ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("map value: got %v, want *ValueError", err)
	}

	_, err = RenderToString(hast.NewRoot(hast.NewExpression(nil)), Options{})
	var fragErr *FragmentError
	if !errors.As(err, &fragErr) || fragErr.Kind != hast.KindExpression {
		t.Errorf("expression: got %v, want *FragmentError", err)
	}
}

func TestRender_Fragment(t *testing.T) {
	root := hast.NewRoot(hast.NewElement("p", nil, hast.NewText("a")), hast.NewText("b"))

	result, err := RenderToString(root, Options{Fragment: "article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "<article><p>a</p>b</article>" {
		t.Errorf("RenderToString() = %q", result)
	}
}

func TestRender_Components(t *testing.T) {
	opts := Options{
		Components: map[string]Component{
			"h1": Rename("h2"),
			"img": func(w io.Writer, el *hast.Element, children []byte) error {
				src, _ := el.Attrs.Get("src")
				_, err := fmt.Fprintf(w, `<figure><img src="%s"></figure>`, src)
				return err
			},
		},
	}
	root := hast.NewRoot(
		hast.NewElement("h1", hast.Attrs("id", "t"), hast.NewText("Title"), hast.NewElement("em", nil, hast.NewText("!"))),
		hast.NewElement("img", hast.Attrs("src", "/a.png")),
	)

	result, err := RenderToString(root, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `<h2 id="t">Title<em>!</em></h2><figure><img src="/a.png"></figure>`
	if result != expected {
		t.Errorf("RenderToString() = %q, want %q", result, expected)
	}
}

func TestRender_ComponentError(t *testing.T) {
	boom := errors.New("boom")
	opts := Options{
		Components: map[string]Component{
			"p": func(io.Writer, *hast.Element, []byte) error { return boom },
		},
	}

	_, err := RenderToString(hast.NewElement("p", nil), opts)
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped component error", err)
	}
}

func TestRender_Policy(t *testing.T) {
	root := hast.NewRoot(
		hast.NewRaw(`<script>alert(1)</script>`),
		hast.NewRaw(`<b onclick="steal()">hi</b>`),
	)

	result, err := RenderToString(root, Options{Policy: bluemonday.UGCPolicy()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "<b>hi</b>" {
		t.Errorf("RenderToString() = %q, want %q", result, "<b>hi</b>")
	}
}

func TestRender_ComplexTree(t *testing.T) {
	root := hast.NewRoot(
		hast.NewElement("header", nil,
			hast.NewElement("h1", nil, hast.NewText("Welcome")),
		),
		hast.NewElement("main", nil,
			hast.NewElement("article", nil,
				hast.NewElement("h2", nil, hast.NewText("Article Title")),
				hast.NewElement("p", nil,
					hast.NewText("This is "),
					hast.NewElement("strong", nil, hast.NewText("important")),
					hast.NewText(" content."),
					hast.NewElement("br", nil),
					hast.NewValue(int64(42)),
				),
			),
		),
	)

	result, err := RenderToString(root, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := xhtml.Parse(strings.NewReader(result))
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}

	var tags []string
	var text strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.ElementNode:
			tags = append(tags, n.Data)
		case xhtml.TextNode:
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if got, want := strings.Join(tags, " "), "html head body header h1 main article h2 p strong br"; got != want {
		t.Errorf("tags = %q, want %q", got, want)
	}
	if got, want := text.String(), "WelcomeArticle TitleThis is important content.42"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}
