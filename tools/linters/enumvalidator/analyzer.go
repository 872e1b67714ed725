// Package enumvalidator reports string literals assigned to fields whose
// type is a string enum, such as a lead status set to "responded" instead
// of model.LeadStatusResponded.
package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "enumvalidator",
	Doc:      "reports string literals assigned to enum-typed struct fields",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodes := []ast.Node{(*ast.AssignStmt)(nil), (*ast.KeyValueExpr)(nil)}
	insp.Preorder(nodes, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.AssignStmt:
			if len(n.Lhs) != len(n.Rhs) {
				return
			}
			for i, lhs := range n.Lhs {
				sel, ok := lhs.(*ast.SelectorExpr)
				if !ok {
					continue
				}
				check(pass, sel.Sel, n.Rhs[i])
			}
		case *ast.KeyValueExpr:
			key, ok := n.Key.(*ast.Ident)
			if !ok {
				return
			}
			if _, isField := pass.TypesInfo.Uses[key].(*types.Var); !isField {
				return
			}
			check(pass, key, n.Value)
		}
	})
	return nil, nil
}

func check(pass *analysis.Pass, field *ast.Ident, value ast.Expr) {
	lit, ok := ast.Unparen(value).(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return
	}
	obj, ok := pass.TypesInfo.Uses[field].(*types.Var)
	if !ok || !obj.IsField() {
		return
	}
	if !isEnum(obj.Type()) {
		return
	}
	pass.Reportf(lit.Pos(), "enum field %s assigned string literal %s, use a declared constant", field.Name, lit.Value)
}

// isEnum is true for a named string type that has at least one constant
// declared in its package.
func isEnum(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	basic, ok := named.Underlying().(*types.Basic)
	if !ok || basic.Kind() != types.String {
		return false
	}
	pkg := named.Obj().Pkg()
	if pkg == nil {
		return false
	}
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		if c, ok := scope.Lookup(name).(*types.Const); ok && types.Identical(c.Type(), named) {
			return true
		}
	}
	return false
}
