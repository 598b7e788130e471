package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
)

func TestEvaluateArithmetic(t *testing.T) {
	e := NewEvaluator()

	got, err := e.Evaluate("{a} + {b}", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(5), got)

	got, err = e.Evaluate("2 + 3 * 4", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(14), got)

	got, err = e.Evaluate("(2 + 3) * 4", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(20), got)

	got, err = e.Evaluate("10 % 3", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = e.Evaluate("-{a} + 10", map[string]any{"a": 4})
	require.NoError(t, err)
	assert.Equal(t, float64(6), got)
}

func TestEvaluateDivisionByZero(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("{a} / {b}", map[string]any{"a": 1, "b": 0})
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeFormula))

	_, err = e.Evaluate("5 % 0", nil)
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeFormula))
}

func TestEvaluateStringFunctions(t *testing.T) {
	e := NewEvaluator()

	got, err := e.Evaluate("UPPER({name})", map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "BOB", got)

	got, err = e.Evaluate("LOWER({name})", map[string]any{"name": "BOB"})
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	got, err = e.Evaluate(`CONCAT({first}, " ", {last})`, map[string]any{"first": "Ada", "last": "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got)

	// Zero-argument CONCAT returns the empty string.
	got, err = e.Evaluate("CONCAT()", nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	// Numbers render without float formatting artifacts.
	got, err = e.Evaluate(`CONCAT("order-", {n})`, map[string]any{"n": 42})
	require.NoError(t, err)
	assert.Equal(t, "order-42", got)
}

func TestEvaluateConditional(t *testing.T) {
	e := NewEvaluator()

	got, err := e.Evaluate("IF({status} = 'active', 1, 0)", map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = e.Evaluate("IF({status} = 'active', 1, 0)", map[string]any{"status": "inactive"})
	require.NoError(t, err)
	assert.Equal(t, float64(0), got)

	got, err = e.Evaluate("IF({qty} > 10, 'bulk', 'unit')", map[string]any{"qty": 25})
	require.NoError(t, err)
	assert.Equal(t, "bulk", got)
}

func TestEvaluateNestedIf(t *testing.T) {
	e := NewEvaluator()

	formula := "IF({score} > 90, 'A', IF({score} > 80, 'B', 'C'))"

	got, err := e.Evaluate(formula, map[string]any{"score": 95})
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	got, err = e.Evaluate(formula, map[string]any{"score": 85})
	require.NoError(t, err)
	assert.Equal(t, "B", got)

	got, err = e.Evaluate(formula, map[string]any{"score": 20})
	require.NoError(t, err)
	assert.Equal(t, "C", got)
}

func TestEvaluateLazyBranches(t *testing.T) {
	e := NewEvaluator()

	// The untaken branch divides by zero but must never execute.
	got, err := e.Evaluate("IF({n} > 0, {n} * 2, 1 / 0)", map[string]any{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(6), got)
}

func TestEvaluateMissingFieldYieldsNil(t *testing.T) {
	e := NewEvaluator()

	got, err := e.Evaluate("{missing}", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Nil(t, got)

	// Nil poisons arithmetic instead of failing.
	got, err = e.Evaluate("{missing} + 1", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluateStringConcatViaPlus(t *testing.T) {
	e := NewEvaluator()

	got, err := e.Evaluate("{first} + {last}", map[string]any{"first": "foo", "last": "bar"})
	require.NoError(t, err)
	assert.Equal(t, "foobar", got)
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEvaluator()

	cases := []string{
		"",
		"IF({a},1,2",      // missing closing paren
		"{unclosed",       // unterminated field ref
		"'unterminated",   // unterminated string
		"UPPER(1, 2)",     // wrong arity
		"MEDIAN({a})",     // unsupported function
		"1 +",             // dangling operator
		"{a} {b}",         // trailing expression
	}
	for _, formula := range cases {
		_, err := e.Evaluate(formula, map[string]any{"a": 1})
		assert.Error(t, err, "formula %q", formula)
		assert.True(t, dalerrors.HasCode(err, dalerrors.CodeFormula), "formula %q", formula)
	}
}

func TestValidateFormula(t *testing.T) {
	e := NewEvaluator()

	res := e.ValidateFormula("IF({a},1,2")
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Error)

	res = e.ValidateFormula("IF({a} = 1, 'yes', 'no')")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Error)

	res = e.ValidateFormula("CONCAT(UPPER({x}), '-', {y})")
	assert.True(t, res.Valid)
}
