package formula

import (
	"fmt"
	"strings"
)

// Expression represents a node in the formula AST.
type Expression interface {
	expressionNode()
	String() string
}

// NumberLiteral is a numeric constant.
type NumberLiteral struct {
	Value float64
}

func (n *NumberLiteral) expressionNode() {}
func (n *NumberLiteral) String() string  { return fmt.Sprintf("%g", n.Value) }

// StringLiteral is a quoted string constant.
type StringLiteral struct {
	Value string
}

func (s *StringLiteral) expressionNode() {}
func (s *StringLiteral) String() string  { return fmt.Sprintf("%q", s.Value) }

// FieldRef resolves to the named attribute of the row under evaluation.
// A missing or null attribute evaluates to nil.
type FieldRef struct {
	Name string
}

func (f *FieldRef) expressionNode() {}
func (f *FieldRef) String() string  { return "{" + f.Name + "}" }

// BinaryOp applies an arithmetic or comparison operator to two operands.
type BinaryOp struct {
	Op    string // + - * / % = != > <
	Left  Expression
	Right Expression
}

func (b *BinaryOp) expressionNode() {}
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}

// UnaryOp negates a numeric operand.
type UnaryOp struct {
	Op      string // -
	Operand Expression
}

func (u *UnaryOp) expressionNode() {}
func (u *UnaryOp) String() string  { return u.Op + u.Operand.String() }

// Call invokes one of the built-in functions: UPPER, LOWER, CONCAT, IF.
type Call struct {
	Name string // upper-cased at parse time
	Args []Expression
}

func (c *Call) expressionNode() {}
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}
