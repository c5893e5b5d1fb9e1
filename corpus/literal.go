package corpus

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Evaluator turns the literal text on either side of a test line into the
// string that is actually sent or expected. Literals use Lua syntax: quoted
// and long strings (with their escapes), numbers, true/false/nil, unary minus
// and .. concatenation. Nothing else is accepted so a test file can't run
// code.
type Evaluator struct {
	l *lua.LState
}

// NewEvaluator returns an Evaluator. Close it when done.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		l: lua.NewState(lua.Options{SkipOpenLibs: true}),
	}
}

// Close releases the interpreter.
func (e *Evaluator) Close() {
	e.l.Close()
}

// Eval evaluates expr and returns its string form using Lua's own
// conversions (so 1.0 is "1" and true is "true").
func (e *Evaluator) Eval(expr string) (string, error) {
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("empty literal")
	}
	chunk, err := parse.Parse(strings.NewReader("return "+expr), "<literal>")
	if err != nil {
		return "", fmt.Errorf("can't parse %q: %v", expr, err)
	}
	if len(chunk) != 1 {
		return "", fmt.Errorf("%q isn't a single literal", expr)
	}
	ret, ok := chunk[0].(*ast.ReturnStmt)
	if !ok || len(ret.Exprs) != 1 {
		return "", fmt.Errorf("%q isn't a single literal", expr)
	}
	if err := checkLiteral(ret.Exprs[0]); err != nil {
		return "", fmt.Errorf("%q: %v", expr, err)
	}
	proto, err := lua.Compile(chunk, "<literal>")
	if err != nil {
		return "", fmt.Errorf("can't compile %q: %v", expr, err)
	}
	e.l.Push(e.l.NewFunctionFromProto(proto))
	if err := e.l.PCall(0, 1, nil); err != nil {
		return "", fmt.Errorf("can't evaluate %q: %v", expr, err)
	}
	v := e.l.Get(-1)
	e.l.Pop(1)
	return v.String(), nil
}

func checkLiteral(expr ast.Expr) error {
	switch ex := expr.(type) {
	case *ast.StringExpr, *ast.NumberExpr, *ast.TrueExpr, *ast.FalseExpr, *ast.NilExpr:
		return nil
	case *ast.UnaryMinusOpExpr:
		return checkLiteral(ex.Expr)
	case *ast.StringConcatOpExpr:
		if err := checkLiteral(ex.Lhs); err != nil {
			return err
		}
		return checkLiteral(ex.Rhs)
	}
	return fmt.Errorf("%T is not a literal", expr)
}
