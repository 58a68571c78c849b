// Package html renders finished document trees to HTML.
package html

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/recera/mdxlite/pkg/hast"
)

// voidElements are HTML elements that cannot have children
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// booleanAttributes are HTML attributes that are boolean flags
var booleanAttributes = map[string]bool{
	"checked":   true,
	"disabled":  true,
	"readonly":  true,
	"required":  true,
	"selected":  true,
	"defer":     true,
	"async":     true,
	"multiple":  true,
	"autofocus": true,
}

// Component renders an element in place of the default markup. children is
// the already rendered content of the element.
type Component func(w io.Writer, el *hast.Element, children []byte) error

// Rename returns a Component that writes the element under another tag.
func Rename(tag string) Component {
	return func(w io.Writer, el *hast.Element, children []byte) error {
		r := &renderer{w: w}
		r.openTag(tag, el.Attrs)
		if !voidElements[tag] {
			r.writeBytes(children)
			r.closeTag(tag)
		}
		return r.err
	}
}

// Options configures rendering.
type Options struct {
	// Components replace the markup of elements by tag name.
	Components map[string]Component
	// Fragment wraps the output in an element with this tag when set.
	Fragment string
	// Policy filters the final HTML when set.
	Policy *bluemonday.Policy
}

// ValueError is returned for a value node that has no HTML rendering.
type ValueError struct {
	Value any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("html: cannot render value %v of type %T", e.Value, e.Value)
}

// FragmentError is returned when a tree still holds unevaluated fragments.
type FragmentError struct {
	Kind hast.Kind
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("html: unevaluated %s node", e.Kind)
}

type renderer struct {
	w    io.Writer
	opts Options
	err  error
}

// Render writes the HTML for the tree under n.
func Render(w io.Writer, n hast.Node, opts Options) error {
	if opts.Policy == nil {
		return render(w, n, opts)
	}

	var buf bytes.Buffer
	if err := render(&buf, n, opts); err != nil {
		return err
	}
	_, err := w.Write(opts.Policy.SanitizeBytes(buf.Bytes()))
	return err
}

func render(w io.Writer, n hast.Node, opts Options) error {
	r := &renderer{w: w, opts: opts}
	if opts.Fragment != "" {
		r.openTag(opts.Fragment, nil)
		r.renderNode(n, false)
		r.closeTag(opts.Fragment)
	} else {
		r.renderNode(n, false)
	}
	return r.err
}

// RenderToString is a convenience function to render a tree to a string
func RenderToString(n hast.Node, opts Options) (string, error) {
	var buf strings.Builder
	if err := Render(&buf, n, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// write helper that tracks errors
func (r *renderer) write(s string) {
	if r.err != nil {
		return
	}
	_, r.err = io.WriteString(r.w, s)
}

func (r *renderer) writeBytes(b []byte) {
	if r.err != nil {
		return
	}
	_, r.err = r.w.Write(b)
}

// renderNode renders a single node. Inside script and style, text is written
// without escaping.
func (r *renderer) renderNode(n hast.Node, rawText bool) {
	if r.err != nil {
		return
	}

	switch n := n.(type) {
	case *hast.Root:
		for _, child := range n.Children {
			r.renderNode(child, rawText)
		}
	case *hast.Element:
		if component, ok := r.opts.Components[n.Tag]; ok {
			r.renderComponent(component, n)
			return
		}
		r.renderElement(n)
	case *hast.Text:
		if rawText {
			r.write(n.Value)
		} else {
			r.write(html.EscapeString(n.Value))
		}
	case *hast.Raw:
		r.write(n.Value)
	case *hast.Value:
		r.renderValue(n.Value)
	case *hast.Expression, *hast.Program:
		r.err = &FragmentError{Kind: n.Kind()}
	default:
		panic(fmt.Sprintf("html: unknown node type %T", n))
	}
}

func (r *renderer) renderElement(el *hast.Element) {
	r.openTag(el.Tag, el.Attrs)

	// Void elements don't have closing tags or children
	if voidElements[el.Tag] {
		return
	}

	rawText := el.Tag == "script" || el.Tag == "style"
	for _, child := range el.Children {
		r.renderNode(child, rawText)
	}
	r.closeTag(el.Tag)
}

func (r *renderer) renderComponent(component Component, el *hast.Element) {
	var children bytes.Buffer
	inner := &renderer{w: &children, opts: r.opts}
	for _, child := range el.Children {
		inner.renderNode(child, false)
	}
	if inner.err != nil {
		r.err = inner.err
		return
	}
	if err := component(r.w, el, children.Bytes()); err != nil {
		r.err = fmt.Errorf("html: component %q: %w", el.Tag, err)
	}
}

func (r *renderer) openTag(tag string, attrs hast.Attributes) {
	r.write("<")
	r.write(tag)

	for _, attr := range attrs.Live() {
		if booleanAttributes[attr.Name] && attr.Value == "" {
			r.write(" ")
			r.write(attr.Name)
			continue
		}

		value := attr.Value
		if (attr.Name == "href" || attr.Name == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(value)), "javascript:") {
			value = "#"
		}

		r.write(" ")
		r.write(attr.Name)
		r.write(`="`)
		r.write(html.EscapeString(value))
		r.write(`"`)
	}

	r.write(">")
}

func (r *renderer) closeTag(tag string) {
	r.write("</")
	r.write(tag)
	r.write(">")
}

func (r *renderer) renderValue(v any) {
	switch v := v.(type) {
	case nil, bool:
	case string:
		r.write(html.EscapeString(v))
	case int:
		r.write(strconv.Itoa(v))
	case int32:
		r.write(strconv.FormatInt(int64(v), 10))
	case int64:
		r.write(strconv.FormatInt(v, 10))
	case uint:
		r.write(strconv.FormatUint(uint64(v), 10))
	case uint32:
		r.write(strconv.FormatUint(uint64(v), 10))
	case uint64:
		r.write(strconv.FormatUint(v, 10))
	case float32:
		r.write(FormatNumber(float64(v)))
	case float64:
		r.write(FormatNumber(v))
	case []any:
		for _, item := range v {
			r.renderValue(item)
		}
	case []string:
		for _, item := range v {
			r.write(html.EscapeString(item))
		}
	default:
		if r.err == nil {
			r.err = &ValueError{Value: v}
		}
	}
}

// FormatNumber formats f the way JavaScript converts numbers to strings.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs < 1e21 && abs >= 1e-6 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	// Go pads the exponent to two digits, JavaScript does not.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}
