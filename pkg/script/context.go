// Package script runs the script fragments of one document on an isolated
// goja runtime.
//
// A Context owns exactly one runtime. Bindings declared by a program
// fragment are visible to every later fragment evaluated on the same
// Context and to nothing else, so a Context must be created per compile and
// never shared.
package script

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
	"github.com/dop251/goja/unistring"

	"github.com/recera/mdxlite/pkg/esm"
)

// tempPrefix starts every temporary result binding. ':' and '#' cannot
// appear in an identifier, so no fragment can name it in a declaration or
// reference. It stays reachable through globalThis["..."] lookups.
const tempPrefix = "mdx:value#"

// Module is the export table of a pre-registered module, keyed by export
// name. The "default" key backs default imports.
type Module map[string]any

// Options configures a Context.
type Options struct {
	// Modules maps import specifiers to their exports. Importing any other
	// specifier fails; nothing is resolved from disk or network.
	Modules map[string]Module

	// Globals are bound before the first fragment runs.
	Globals map[string]any

	// Budget bounds the wall-clock time of a single evaluation call. Zero
	// means no limit.
	Budget time.Duration

	// MaxCallStackSize bounds recursion depth. Zero keeps the goja default.
	MaxCallStackSize int

	// Logger receives console.* output from fragments. Nil discards it.
	Logger *slog.Logger
}

// Context evaluates the fragments of one document in order.
type Context struct {
	vm      *goja.Runtime
	modules map[string]Module
	budget  time.Duration
	seq     int
}

// New creates a Context with a fresh runtime seeded from opts.
func New(opts Options) (*Context, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if opts.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := vm.Set("console", newConsole(vm, logger)); err != nil {
		return nil, fmt.Errorf("script: install console: %w", err)
	}

	names := make([]string, 0, len(opts.Globals))
	for name := range opts.Globals {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := vm.Set(name, cloneSeed(opts.Globals[name])); err != nil {
			return nil, fmt.Errorf("script: seed global %q: %w", name, err)
		}
	}

	return &Context{
		vm:      vm,
		modules: opts.Modules,
		budget:  opts.Budget,
	}, nil
}

// EvaluateExpression runs expr against the bindings accumulated so far and
// returns its value exported to Go. undefined and null become nil, as does an
// empty expression, which is not run at all.
func (c *Context) EvaluateExpression(expr *esm.Expression) (any, error) {
	if expr.Empty() {
		return nil, nil
	}

	name := fmt.Sprintf("%s%d", tempPrefix, c.seq)
	c.seq++

	// <name> = <expr>
	prg := &ast.Program{
		Body: []ast.Statement{
			&ast.ExpressionStatement{
				Expression: &ast.AssignExpression{
					Operator: token.ASSIGN,
					Left: &ast.Identifier{
						Name: unistring.NewFromString(name),
						Idx:  expr.Node.Idx0(),
					},
					Right: expr.Node,
				},
			},
		},
		File: expr.File,
	}

	compiled, err := goja.CompileAST(prg, false)
	if err != nil {
		return nil, &EvaluationError{Fragment: "expression", Source: expr.Source, Err: err}
	}
	if err := c.run("expression", expr.Source, compiled); err != nil {
		return nil, err
	}

	global := c.vm.GlobalObject()
	v := global.Get(name)
	if err := global.Delete(name); err != nil {
		return nil, fmt.Errorf("script: clear %s: %w", name, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// EvaluateProgram runs the statements of prog in order so the names it
// declares become visible to later fragments. Exported declarations are
// rewritten to plain ones first; imports bind names from the registered
// modules.
func (c *Context) EvaluateProgram(prog *esm.Program) error {
	normalized := &esm.Program{Source: prog.Source, Body: slices.Clone(prog.Body)}
	if err := esm.NormalizeExports(normalized); err != nil {
		return &EvaluationError{Fragment: "program", Source: prog.Source, Err: err}
	}

	for _, stmt := range normalized.Body {
		switch stmt := stmt.(type) {
		case *esm.ImportDeclaration:
			if err := c.bindImport(stmt); err != nil {
				return &EvaluationError{Fragment: "program", Source: prog.Source, Err: err}
			}
		case *esm.Declaration:
			compiled, err := goja.CompileAST(stmt.Program, false)
			if err != nil {
				return &EvaluationError{Fragment: "program", Source: prog.Source, Err: err}
			}
			if err := c.run("program", prog.Source, compiled); err != nil {
				return err
			}
		default:
			panic(fmt.Sprintf("script: unexpected statement %T", stmt))
		}
	}
	return nil
}

// Interrupt stops the fragment that is running, or the next one to run, with
// a BudgetError whose cause is reason. It is safe to call from any goroutine.
func (c *Context) Interrupt(reason error) {
	c.vm.Interrupt(reason)
}

func (c *Context) bindImport(decl *esm.ImportDeclaration) error {
	mod, ok := c.modules[decl.Specifier]
	if !ok {
		return fmt.Errorf("cannot import %q: module is not registered", decl.Specifier)
	}

	if decl.Default != "" {
		v, ok := mod["default"]
		if !ok {
			return fmt.Errorf("module %q has no default export", decl.Specifier)
		}
		if err := c.vm.Set(decl.Default, cloneSeed(v)); err != nil {
			return err
		}
	}
	if decl.Namespace != "" {
		ns := c.vm.NewObject()
		for name, v := range mod {
			if err := ns.Set(name, cloneSeed(v)); err != nil {
				return err
			}
		}
		if err := c.vm.Set(decl.Namespace, ns); err != nil {
			return err
		}
	}
	for _, spec := range decl.Specifiers {
		v, ok := mod[spec.Imported]
		if !ok {
			return fmt.Errorf("module %q has no export named %q", decl.Specifier, spec.Imported)
		}
		if err := c.vm.Set(spec.Local, cloneSeed(v)); err != nil {
			return err
		}
	}
	return nil
}

// run executes prg under the budget. A timer that fires after the program
// has finished must not leak its interrupt into the next call.
func (c *Context) run(fragment, source string, prg *goja.Program) error {
	if c.budget > 0 {
		fired := make(chan struct{})
		timer := time.AfterFunc(c.budget, func() {
			c.vm.Interrupt(ErrBudgetExceeded)
			close(fired)
		})
		defer func() {
			if !timer.Stop() {
				<-fired
				c.vm.ClearInterrupt()
			}
		}()
	}

	_, err := c.vm.RunProgram(prg)
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause := interrupted.Unwrap()
		if cause == nil {
			cause = fmt.Errorf("%v", interrupted.Value())
		}
		return &BudgetError{Fragment: fragment, Budget: c.budget, Cause: cause}
	}
	return &EvaluationError{Fragment: fragment, Source: source, Err: err}
}

// cloneSeed deep-copies the maps, slices and arrays of a seed value, at any
// nesting and of any element type. goja wraps Go maps and slices by
// reference, so without the copy a fragment could write into a seed that
// later or concurrent compiles also see. Pointers stay shared.
func cloneSeed(v any) any {
	if m, ok := v.(Module); ok {
		v = map[string]any(m)
	}
	if v == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(v)).Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	}
	return v
}
