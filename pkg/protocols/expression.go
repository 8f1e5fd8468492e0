package protocols

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Variables available to expression rules.
const (
	ExprVarPatient    = "patient"
	ExprVarExtraction = "extraction"
)

const expressionCostLimit = 10000

// ExpressionPattern is a compiled boolean CEL expression.
type ExpressionPattern struct {
	Expression string
	program    cel.Program
}

// Describe implements Pattern.
func (p ExpressionPattern) Describe() string {
	return fmt.Sprintf("expression=%q", p.Expression)
}

// Evaluate runs the expression against vars. A pattern that was not produced
// by the loader never matches.
func (p ExpressionPattern) Evaluate(vars map[string]any) (bool, error) {
	if p.program == nil {
		return false, fmt.Errorf("expression %q was not compiled", p.Expression)
	}
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not produce a bool", p.Expression)
	}
	return val, nil
}

// NewExpressionEnv returns the CEL environment expression rules compile in.
func NewExpressionEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(ExprVarPatient, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(ExprVarExtraction, cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// CompileExpression compiles src into an ExpressionPattern. The expression
// must evaluate to a bool.
func CompileExpression(env *cel.Env, src string) (ExpressionPattern, error) {
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return ExpressionPattern{}, fmt.Errorf("compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return ExpressionPattern{}, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(expressionCostLimit),
	)
	if err != nil {
		return ExpressionPattern{}, fmt.Errorf("program: %w", err)
	}
	return ExpressionPattern{Expression: src, program: prg}, nil
}
