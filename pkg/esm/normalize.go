package esm

import (
	"fmt"

	"github.com/dop251/goja/parser"
)

// NormalizeExports rewrites every ExportNamedDeclaration in p into plain
// script so the engine can run the fragment as a classic script.
//
// An exported declaration is replaced by the declaration itself. A specifier
// list binds each renamed export to its local value; entries exported under
// their own name are already bindings and vanish.
func NormalizeExports(p *Program) error {
	body := p.Body[:0]
	for _, stmt := range p.Body {
		exp, ok := stmt.(*ExportNamedDeclaration)
		if !ok {
			body = append(body, stmt)
			continue
		}
		if exp.Declaration != nil {
			body = append(body, exp.Declaration)
			continue
		}
		for _, spec := range exp.Specifiers {
			if spec.Local == spec.Exported {
				continue
			}
			decl, err := aliasDeclaration(exp.Offset, spec)
			if err != nil {
				return err
			}
			body = append(body, decl)
		}
	}
	p.Body = body
	return nil
}

func aliasDeclaration(offset int, spec ExportSpecifier) (*Declaration, error) {
	src := fmt.Sprintf("var %s = %s;", spec.Exported, spec.Local)
	prg, err := parser.ParseFile(nil, FragmentName, src, 0)
	if err != nil {
		return nil, fmt.Errorf("esm: export alias %q: %w", spec.Exported, err)
	}
	return &Declaration{Offset: offset, Program: prg}, nil
}
