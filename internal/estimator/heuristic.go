package estimator

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// DefaultHeuristicExpression is the rule-based scoring policy used when
// a model cannot serve. Very large amounts and micro-amounts (card
// testing) score high, everything else scores low.
const DefaultHeuristicExpression = `amount > 2000.0 ? 0.85 : (amount > 1000.0 ? 0.65 : (amount < 10.0 ? 0.80 : 0.15))`

// Heuristic is a CEL-expression scoring policy. The expression is
// compiled once at construction and evaluated per transaction against
// the named feature variables.
type Heuristic struct {
	id      string
	program cel.Program
}

// NewHeuristic compiles a CEL expression into a scoring policy. The
// expression must return a double, int, or bool.
func NewHeuristic(id, expression string) (*Heuristic, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekend", cel.BoolType),
		cel.Variable("user_in_region", cel.BoolType),
		cel.Variable("merchant_in_region", cel.BoolType),
		cel.Variable("distance_deg", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("heuristic %s: create CEL environment: %w", id, err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("heuristic %s: compile: %w", id, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.DoubleType && outputType != cel.IntType && outputType != cel.BoolType {
		return nil, fmt.Errorf("heuristic %s: expression must return bool, int, or double, got %s", id, outputType)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("heuristic %s: create program: %w", id, err)
	}

	return &Heuristic{id: id, program: program}, nil
}

// DefaultHeuristic returns the shipped fallback policy.
func DefaultHeuristic() *Heuristic {
	h, err := NewHeuristic("heuristic-fallback", DefaultHeuristicExpression)
	if err != nil {
		// The default expression is a constant; failing to compile it
		// is a programming error.
		panic(err)
	}
	return h
}

func (h *Heuristic) ID() string { return h.id }

func (h *Heuristic) Dimensions() int { return NumFeatures }

// Score evaluates the policy expression against the feature vector.
func (h *Heuristic) Score(ctx context.Context, vec FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(vec) != NumFeatures {
		return 0, ErrFeatureShapeMismatch
	}

	activation := map[string]any{
		"amount":             vec[FeatAmount],
		"hour":               int64(vec[FeatHourOfDay]),
		"weekend":            vec[FeatWeekend] != 0,
		"user_in_region":     vec[FeatUserInRegion] != 0,
		"merchant_in_region": vec[FeatMerchantInRegion] != 0,
		"distance_deg":       vec[FeatDistanceDeg],
	}

	out, _, err := h.program.Eval(activation)
	if err != nil {
		return 0, fmt.Errorf("heuristic %s: evaluate: %w", h.id, err)
	}

	return toProbability(out), nil
}

func toProbability(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return clampProb(float64(v))
	case types.Int:
		return clampProb(float64(v))
	default:
		return 0.0
	}
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
