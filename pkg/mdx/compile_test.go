package mdx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/recera/mdxlite/pkg/hast"
	"github.com/recera/mdxlite/pkg/markdown"
	"github.com/recera/mdxlite/pkg/renderer/html"
	"github.com/recera/mdxlite/pkg/sanitize"
	"github.com/recera/mdxlite/pkg/script"
)

const sampleDoc = `import {foo} from './bar'
export const baz = 'hello'

foo: {foo}

4+5 = {4+5}

baz: {baz}
`

func sampleOptions() Options {
	return Options{
		NewEvaluator: ScriptEvaluator(script.Options{
			Modules: map[string]script.Module{
				"./bar": {"foo": "something"},
			},
		}),
	}
}

func renderString(t *testing.T, source string, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(context.Background(), source, opts, html.Options{}, &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestRender_SampleDocument(t *testing.T) {
	got := renderString(t, sampleDoc, sampleOptions())
	want := "<p>foo: something</p><p>4+5 = 9</p><p>baz: hello</p>"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestCompile_Tree(t *testing.T) {
	tree, err := Compile(context.Background(), sampleDoc, sampleOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := `root(p(text "foo: " text "something") p(text "4+5 = " value 9) p(text "baz: " text "hello"))`
	if got := hast.Format(tree); got != want {
		t.Errorf("tree = %s, want %s", got, want)
	}

	hast.Visit(tree, func(n hast.Node, index int, parent hast.Parent) hast.Action {
		switch n.(type) {
		case *hast.Expression, *hast.Program:
			t.Errorf("unevaluated %s node left in tree", n.Kind())
		}
		return hast.Continue
	})
}

func TestCompile_ValueSubstitution(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a{null}b", `root(p(text "a" text "b"))`},
		{"a{undefined}b", `root(p(text "a" text "b"))`},
		{"a{false}b", `root(p(text "a" text "b"))`},
		{"a{/* note */}b", `root(p(text "a" text "b"))`},
		{"a{'<i>'}b", `root(p(text "a" text "<i>" text "b"))`},
		{"a{1.5}b", `root(p(text "a" value 1.5 text "b"))`},
		{"{null}\n", `root()`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tree, err := Compile(context.Background(), tt.src, Options{})
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got := hast.Format(tree); got != tt.want {
				t.Errorf("tree = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompile_BindingsAreIsolated(t *testing.T) {
	if _, err := Compile(context.Background(), "export const leaked = 1\n", Options{}); err != nil {
		t.Fatalf("first compile failed: %v", err)
	}

	got := renderString(t, "{typeof leaked}\n", Options{})
	if got != "undefined" {
		t.Errorf("second compile saw %q, want undefined", got)
	}
}

func TestCompile_EvaluationErrorAborts(t *testing.T) {
	tree, err := Compile(context.Background(), "before\n\n{missing.value}\n", Options{})
	if tree != nil {
		t.Errorf("expected no tree on failure, got %s", hast.Format(tree))
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageEvaluated {
		t.Fatalf("got %v, want a StageError at the evaluate stage", err)
	}
	var evalErr *script.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("got %v, want a script.EvaluationError", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error %q should mention the failing name", err)
	}
}

func TestCompile_ParseError(t *testing.T) {
	_, err := Compile(context.Background(), "text {open\n", Options{})

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageParsed {
		t.Fatalf("got %v, want a StageError at the parse stage", err)
	}
	var parseErr *markdown.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("got %v, want a markdown.ParseError", err)
	}
}

type countingParser struct {
	calls int
}

func (p *countingParser) Parse(source []byte) (*hast.Root, error) {
	p.calls++
	return hast.NewRoot(), nil
}

func TestCompile_ConflictingElementLists(t *testing.T) {
	parser := &countingParser{}
	opts := Options{
		AllowedElements:    []string{"p"},
		DisallowedElements: []string{"em"},
		Parser:             parser,
	}

	_, err := Compile(context.Background(), "# hi", opts)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want a ConfigurationError", err)
	}
	if parser.calls != 0 {
		t.Errorf("parser called %d times before the configuration was rejected", parser.calls)
	}
	if err := opts.Validate(); err == nil {
		t.Error("Validate should reject both element lists")
	}
}

func TestCompileValue(t *testing.T) {
	_, err := CompileValue(context.Background(), 42, Options{})
	var cfgErr *sanitize.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want a ConfigurationError", err)
	}
	if want := "unexpected value 42 (int) for source, expected string"; cfgErr.Message != want {
		t.Errorf("message = %q, want %q", cfgErr.Message, want)
	}

	tree, err := CompileValue(context.Background(), []byte("*hi*"), Options{})
	if err != nil {
		t.Fatalf("byte source: %v", err)
	}
	if got := hast.Format(tree); got != `root(p(em(text "hi")))` {
		t.Errorf("tree = %s", got)
	}

	tree, err = CompileValue(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("nil source: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("nil source should give an empty tree, got %s", hast.Format(tree))
	}
}

func TestCompile_Sanitizes(t *testing.T) {
	opts := Options{
		DisallowedElements: []string{"strong"},
		UnwrapDisallowed:   true,
	}
	got := renderString(t, "a **b** [c](javascript:alert(1)) <i>d</i>", opts)
	want := `<p>a b <a href="">c</a> &lt;i&gt;d&lt;/i&gt;</p>`
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestCompile_SanitizedBeforeEvaluation(t *testing.T) {
	// The expression inside the removed em never runs.
	opts := Options{DisallowedElements: []string{"em"}}
	got := renderString(t, "*{missing()}* {'<em>x</em>'}", opts)
	if got != "<p> &lt;em&gt;x&lt;/em&gt;</p>" {
		t.Errorf("Render() = %q", got)
	}
}

func TestCompile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := &countingParser{}
	_, err := Compile(ctx, "# hi", Options{Parser: parser})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if parser.calls != 0 {
		t.Error("parser should not run for a canceled context")
	}
}

func TestCompile_DeadlineInterruptsEvaluation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Compile(ctx, "{(() => { while (true) {} })()}\n", Options{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
	var budgetErr *script.BudgetError
	if !errors.As(err, &budgetErr) {
		t.Errorf("got %v, want a script.BudgetError", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took %s", elapsed)
	}
}

func TestCompile_FreshEvaluatorPerCompile(t *testing.T) {
	var created int
	opts := Options{
		NewEvaluator: func() (Evaluator, error) {
			created++
			return script.New(script.Options{})
		},
	}

	for i := 0; i < 3; i++ {
		if _, err := Compile(context.Background(), "{1}\n", opts); err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
	}
	if created != 3 {
		t.Errorf("created %d evaluators, want 3", created)
	}
}

func TestCompile_EvaluatorFactoryError(t *testing.T) {
	boom := errors.New("boom")
	opts := Options{
		NewEvaluator: func() (Evaluator, error) { return nil, boom },
	}

	_, err := Compile(context.Background(), "text", opts)
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want the factory error", err)
	}
}

func TestCompile_Logs(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	if _, err := Compile(context.Background(), "{1}\n\n{console.info('from script')}\n", opts); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"document parsed", "document evaluated", "expressions=2", "from script"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Components(t *testing.T) {
	var buf bytes.Buffer
	renderOpts := html.Options{
		Components: map[string]html.Component{"h1": html.Rename("h2")},
		Fragment:   "article",
	}
	if err := Render(context.Background(), "# Title {1 + 1}\n", Options{}, renderOpts, &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got, want := buf.String(), "<article><h2>Title 2</h2></article>"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestStage_String(t *testing.T) {
	stages := map[Stage]string{
		StageParsed:    "parse",
		StageSanitized: "sanitize",
		StageEvaluated: "evaluate",
		StageHandedOff: "render",
		Stage(9):       "Stage(9)",
	}
	for stage, want := range stages {
		if got := stage.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", uint8(stage), got, want)
		}
	}
}
