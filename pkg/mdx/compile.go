// Package mdx compiles documents that mix markdown prose with embedded
// script expressions and import/export blocks.
//
// A compile is one linear pass: the source is parsed, the tree is
// sanitized in place, every script fragment is evaluated in document order
// against one fresh Evaluator, and the finished tree is returned or handed
// to the HTML renderer. Any failure aborts the compile and no partial tree
// is returned.
package mdx

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/recera/mdxlite/pkg/hast"
	"github.com/recera/mdxlite/pkg/renderer/html"
	"github.com/recera/mdxlite/pkg/sanitize"
)

// Stage is a state of the compile pipeline. States are entered strictly in
// order.
type Stage uint8

const (
	// StageParsed means the source has been turned into a tree
	StageParsed Stage = iota + 1
	// StageSanitized means element and URL policy has been applied
	StageSanitized
	// StageEvaluated means every script fragment has been resolved
	StageEvaluated
	// StageHandedOff means the tree has been given to the renderer
	StageHandedOff
)

func (s Stage) String() string {
	switch s {
	case StageParsed:
		return "parse"
	case StageSanitized:
		return "sanitize"
	case StageEvaluated:
		return "evaluate"
	case StageHandedOff:
		return "render"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// StageError reports the stage a compile failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mdx: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Compile parses, sanitizes and evaluates source and returns the finished
// tree.
func Compile(ctx context.Context, source string, opts Options) (*hast.Root, error) {
	return compile(ctx, []byte(source), opts)
}

// CompileValue is Compile for loosely typed input, such as a decoded JSON
// field. It accepts a string, a byte slice or nil (an empty document);
// anything else is a ConfigurationError.
func CompileValue(ctx context.Context, source any, opts Options) (*hast.Root, error) {
	switch src := source.(type) {
	case string:
		return compile(ctx, []byte(src), opts)
	case []byte:
		return compile(ctx, src, opts)
	case nil:
		return compile(ctx, nil, opts)
	default:
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("unexpected value %v (%T) for source, expected string", source, source),
		}
	}
}

// Render compiles source and writes it to w as HTML.
func Render(ctx context.Context, source string, opts Options, renderOpts html.Options, w io.Writer) error {
	tree, err := Compile(ctx, source, opts)
	if err != nil {
		return err
	}
	if err := html.Render(w, tree, renderOpts); err != nil {
		return &StageError{Stage: StageHandedOff, Err: err}
	}
	opts.logger().Debug("document rendered")
	return nil
}

func compile(ctx context.Context, source []byte, opts Options) (*hast.Root, error) {
	sanitizeOpts := opts.sanitizeOptions()
	if err := sanitizeOpts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := opts.logger()
	start := time.Now()

	tree, err := opts.parser().Parse(source)
	if err != nil {
		return nil, &StageError{Stage: StageParsed, Err: err}
	}
	logger.Debug("document parsed", "stage", StageParsed, "bytes", len(source))

	if _, err := sanitize.Sanitize(tree, sanitizeOpts); err != nil {
		return nil, &StageError{Stage: StageSanitized, Err: err}
	}
	logger.Debug("document sanitized", "stage", StageSanitized)

	ev, err := opts.newEvaluator()
	if err != nil {
		return nil, &StageError{Stage: StageEvaluated, Err: fmt.Errorf("create evaluator: %w", err)}
	}
	if in, ok := ev.(Interrupter); ok {
		stop := context.AfterFunc(ctx, func() {
			in.Interrupt(context.Cause(ctx))
		})
		defer stop()
	}

	stats, err := evaluate(ctx, tree, ev)
	if err != nil {
		return nil, &StageError{Stage: StageEvaluated, Err: err}
	}
	logger.Debug("document evaluated",
		"stage", StageEvaluated,
		"expressions", stats.expressions,
		"programs", stats.programs,
		"duration", time.Since(start),
	)
	return tree, nil
}

type evalStats struct {
	expressions int
	programs    int
}

// evaluate replaces every expression fragment with its value and removes
// every program fragment after running it, in document order.
func evaluate(ctx context.Context, tree *hast.Root, ev Evaluator) (evalStats, error) {
	var (
		stats evalStats
		err   error
	)
	hast.Visit(tree, func(n hast.Node, index int, parent hast.Parent) hast.Action {
		if err != nil {
			return hast.Skip
		}
		switch n := n.(type) {
		case *hast.Root, *hast.Element, *hast.Text, *hast.Raw, *hast.Value:
			return hast.Continue
		case *hast.Expression:
			if err = ctx.Err(); err != nil {
				return hast.Skip
			}
			stats.expressions++
			var v any
			if v, err = ev.EvaluateExpression(n.Expr); err != nil {
				return hast.Skip
			}
			if node := substitute(v); node != nil {
				hast.Replace(parent, index, node)
				return hast.Skip
			}
			hast.Remove(parent, index)
			return hast.Revisit
		case *hast.Program:
			if err = ctx.Err(); err != nil {
				return hast.Skip
			}
			stats.programs++
			if err = ev.EvaluateProgram(n.Prog); err != nil {
				return hast.Skip
			}
			hast.Remove(parent, index)
			return hast.Revisit
		default:
			panic(fmt.Sprintf("mdx: unknown node type %T", n))
		}
	})
	return stats, err
}

// substitute turns an evaluated value into the node that replaces its
// expression. nil and booleans render nothing.
func substitute(v any) hast.Node {
	switch v := v.(type) {
	case nil, bool:
		return nil
	case string:
		return hast.NewText(v)
	default:
		return hast.NewValue(v)
	}
}
