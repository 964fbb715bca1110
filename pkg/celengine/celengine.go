package celengine

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Variables declares the typed inputs an expression may reference.
type Variables map[string]*cel.Type

func NewEnv(vars Variables) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for name, typ := range vars {
		opts = append(opts, cel.Variable(name, typ))
	}
	return cel.NewEnv(opts...)
}

// Predicate is a compiled boolean expression. It is safe for concurrent use.
type Predicate struct {
	Expr string
	prg  cel.Program
}

func Compile(env *cel.Env, expr string) (*Predicate, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return &Predicate{Expr: expr, prg: prg}, nil
}

func (p *Predicate) Eval(attrs map[string]any) (bool, error) {
	out, _, err := p.prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}

	return b, nil
}
