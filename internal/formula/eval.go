package formula

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
)

// Evaluator evaluates formulas against a single row's attribute map. It is
// stateless and safe for concurrent use.
type Evaluator struct{}

// NewEvaluator returns an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ValidationResult is the outcome of ValidateFormula.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateFormula checks that a formula parses. It is a syntax check only;
// field references are not resolved against any schema.
func (e *Evaluator) ValidateFormula(input string) ValidationResult {
	if _, err := Parse(input); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}

// Evaluate parses and evaluates a formula against row. The result is a
// float64, string, bool, or nil. Missing or null field references evaluate
// to nil and propagate through arithmetic; structural problems (bad syntax,
// division by zero, unsupported function) fail with a FormulaError.
func (e *Evaluator) Evaluate(input string, row map[string]any) (any, error) {
	expr, err := Parse(input)
	if err != nil {
		return nil, dalerrors.Wrap(dalerrors.CategoryFormula, dalerrors.CodeFormula, "invalid formula", err)
	}
	return evalExpr(expr, row)
}

func evalExpr(expr Expression, row map[string]any) (any, error) {
	switch n := expr.(type) {
	case *NumberLiteral:
		return n.Value, nil
	case *StringLiteral:
		return n.Value, nil
	case *FieldRef:
		v, ok := row[n.Name]
		if !ok || v == nil {
			return nil, nil
		}
		return v, nil
	case *UnaryOp:
		return evalUnary(n, row)
	case *BinaryOp:
		return evalBinary(n, row)
	case *Call:
		return evalCall(n, row)
	default:
		return nil, dalerrors.Formulaf("unknown expression node %T", expr)
	}
}

func evalUnary(n *UnaryOp, row map[string]any) (any, error) {
	v, err := evalExpr(n.Operand, row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	f, err := toNumber(v)
	if err != nil {
		return nil, err
	}
	return -f, nil
}

func evalBinary(n *BinaryOp, row map[string]any) (any, error) {
	left, err := evalExpr(n.Left, row)
	if err != nil {
		return nil, err
	}
	right, err := evalExpr(n.Right, row)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "=", "!=", ">", "<":
		return compare(n.Op, left, right)
	}

	// Arithmetic. A nil operand poisons the result instead of failing the
	// whole row.
	if left == nil || right == nil {
		return nil, nil
	}

	// "+" doubles as concatenation when both sides are strings.
	if n.Op == "+" {
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok && rok {
			return ls + rs, nil
		}
	}

	lf, err := toNumber(left)
	if err != nil {
		return nil, err
	}
	rf, err := toNumber(right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, dalerrors.Formula("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, dalerrors.Formula("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	default:
		return nil, dalerrors.Formulaf("unsupported operator %q", n.Op)
	}
}

func compare(op string, left, right any) (any, error) {
	switch op {
	case "=":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	// Ordered comparison: numeric when both sides coerce, lexicographic
	// otherwise. Nil never orders before or after anything.
	if left == nil || right == nil {
		return false, nil
	}
	lf, lerr := cast.ToFloat64E(left)
	rf, rerr := cast.ToFloat64E(right)
	if lerr == nil && rerr == nil {
		if op == ">" {
			return lf > rf, nil
		}
		return lf < rf, nil
	}
	ls, rs := cast.ToString(left), cast.ToString(right)
	if op == ">" {
		return ls > rs, nil
	}
	return ls < rs, nil
}

func looseEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if lf, lerr := cast.ToFloat64E(left); lerr == nil {
		if rf, rerr := cast.ToFloat64E(right); rerr == nil {
			return lf == rf
		}
	}
	return cast.ToString(left) == cast.ToString(right)
}

func evalCall(n *Call, row map[string]any) (any, error) {
	switch n.Name {
	case "UPPER", "LOWER":
		v, err := evalExpr(n.Args[0], row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		s := cast.ToString(v)
		if n.Name == "UPPER" {
			return strings.ToUpper(s), nil
		}
		return strings.ToLower(s), nil

	case "CONCAT":
		out := ""
		for _, arg := range n.Args {
			v, err := evalExpr(arg, row)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			out += stringify(v)
		}
		return out, nil

	case "IF":
		cond, err := evalExpr(n.Args[0], row)
		if err != nil {
			return nil, err
		}
		// Branches evaluate lazily so the untaken branch cannot fail the row.
		if truthy(cond) {
			return evalExpr(n.Args[1], row)
		}
		return evalExpr(n.Args[2], row)

	default:
		return nil, dalerrors.Formulaf("unsupported function %s", n.Name)
	}
}

func toNumber(v any) (float64, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, dalerrors.Formulaf("value %v is not numeric", v)
	}
	return f, nil
}

// stringify renders a value for CONCAT without the trailing zeros float
// formatting would add to whole numbers.
func stringify(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return cast.ToString(int64(f))
	}
	return cast.ToString(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
