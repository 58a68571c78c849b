// Package markdown parses CommonMark documents with embedded {expressions}
// and import/export blocks into a hast tree.
//
// Parsing is done by goldmark with the Extension from this package; the
// goldmark tree is then converted following the usual markdown-to-HTML
// element mapping. Inline and block HTML become hast.Raw nodes so the
// sanitizer decides what happens to them.
package markdown

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/recera/mdxlite/pkg/hast"
)

// ParseError reports malformed fragment syntax in a document.
type ParseError struct {
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("markdown: %d:%d: %s: %v", e.Line, e.Column, e.Message, e.Err)
	}
	return fmt.Sprintf("markdown: %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Option configures a Parser.
type Option func(*config)

type config struct {
	gfm        bool
	extensions []goldmark.Extender
}

// WithGFM enables GitHub Flavored Markdown: tables, strikethrough, task
// lists and bare-URL autolinks.
func WithGFM() Option {
	return func(c *config) {
		c.gfm = true
	}
}

// WithExtensions adds goldmark extensions. Nodes they produce must be ones
// the converter knows.
func WithExtensions(exts ...goldmark.Extender) Option {
	return func(c *config) {
		c.extensions = append(c.extensions, exts...)
	}
}

// Parser parses documents. It is safe for concurrent use.
type Parser struct {
	md goldmark.Markdown
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	exts := []goldmark.Extender{Extension}
	if cfg.gfm {
		exts = append(exts, extension.GFM)
	}
	exts = append(exts, cfg.extensions...)

	return &Parser{md: goldmark.New(goldmark.WithExtensions(exts...))}
}

// Parse converts source into a document tree.
func (p *Parser) Parse(source []byte) (*hast.Root, error) {
	doc := p.md.Parser().Parse(text.NewReader(source))
	c := newConverter(source)
	return c.root(doc)
}
