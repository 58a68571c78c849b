package mdx

import (
	"io"
	"log/slog"

	"github.com/recera/mdxlite/pkg/esm"
	"github.com/recera/mdxlite/pkg/hast"
	"github.com/recera/mdxlite/pkg/markdown"
	"github.com/recera/mdxlite/pkg/sanitize"
	"github.com/recera/mdxlite/pkg/script"
)

// ConfigurationError reports options that cannot be combined or a source
// that is not text. Compile returns it before any traversal.
type ConfigurationError = sanitize.ConfigurationError

// Parser turns source text into a document tree.
type Parser interface {
	Parse(source []byte) (*hast.Root, error)
}

// Evaluator runs the script fragments of one document. A compile creates
// exactly one Evaluator and drops it when done.
type Evaluator interface {
	EvaluateExpression(expr *esm.Expression) (any, error)
	EvaluateProgram(prog *esm.Program) error
}

// Interrupter is implemented by evaluators that can abort a running
// fragment. Compile uses it to honor context cancellation.
type Interrupter interface {
	Interrupt(reason error)
}

// EvaluatorFactory creates a fresh Evaluator for one compile.
type EvaluatorFactory func() (Evaluator, error)

// Options configures a compile.
type Options struct {
	// AllowedElements lists the only tags to keep. Nil means not set.
	AllowedElements []string

	// DisallowedElements lists tags to remove. It cannot be combined with
	// AllowedElements.
	DisallowedElements []string

	// AllowElement filters elements the lists keep.
	AllowElement func(el *hast.Element, index int, parent hast.Parent) bool

	// UnwrapDisallowed keeps the children of removed elements.
	UnwrapDisallowed bool

	// SkipHTML drops raw markup instead of showing it as text.
	SkipHTML bool

	// URLTransform rewrites URL attributes. Defaults to
	// sanitize.DefaultURLTransform.
	URLTransform sanitize.URLTransform

	// NewEvaluator creates the evaluator for each compile. Defaults to a
	// script.Context without modules or globals.
	NewEvaluator EvaluatorFactory

	// Parser defaults to markdown.New().
	Parser Parser

	// Logger receives debug output about each compile. Nil discards it.
	Logger *slog.Logger
}

func (o *Options) sanitizeOptions() sanitize.Options {
	return sanitize.Options{
		AllowedElements:    o.AllowedElements,
		DisallowedElements: o.DisallowedElements,
		AllowElement:       o.AllowElement,
		UnwrapDisallowed:   o.UnwrapDisallowed,
		SkipHTML:           o.SkipHTML,
		URLTransform:       o.URLTransform,
	}
}

// Validate checks the options without compiling anything.
func (o *Options) Validate() error {
	opts := o.sanitizeOptions()
	return opts.Validate()
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *Options) parser() Parser {
	if o.Parser != nil {
		return o.Parser
	}
	return markdown.New()
}

func (o *Options) newEvaluator() (Evaluator, error) {
	if o.NewEvaluator != nil {
		return o.NewEvaluator()
	}
	return ScriptEvaluator(script.Options{Logger: o.Logger})()
}

// ScriptEvaluator returns a factory that builds a new script.Context from
// opts for every compile.
func ScriptEvaluator(opts script.Options) EvaluatorFactory {
	return func() (Evaluator, error) {
		c, err := script.New(opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
