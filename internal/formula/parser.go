package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError represents a parsing error with location information.
type ParseError struct {
	Message  string
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// Parser parses a formula into an AST.
//
// Grammar, lowest precedence first:
//
//	comparison  = additive { ("=" | "!=" | ">" | "<") additive }
//	additive    = multiplicative { ("+" | "-") multiplicative }
//	multiplicative = unary { ("*" | "/" | "%") unary }
//	unary       = "-" unary | primary
//	primary     = number | string | fieldref | call | "(" comparison ")"
//	call        = ident "(" [ comparison { "," comparison } ] ")"
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete formula. Trailing input is an error.
func Parse(input string) (Expression, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Message: "empty formula"}
	}
	p := NewParser(input)
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenEOF) {
		return nil, &ParseError{
			Message:  fmt.Sprintf("unexpected %q after expression", p.curToken.Literal),
			Position: p.curToken.Pos,
		}
	}
	return expr, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.curToken.Type {
		case TokenEq:
			op = "="
		case TokenNe:
			op = "!="
		case TokenGt:
			op = ">"
		case TokenLt:
			op = "<"
		default:
			return left, nil
		}
		p.nextToken()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		op := p.curToken.Literal
		p.nextToken()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) || p.curTokenIs(TokenPercent) {
		op := p.curToken.Literal
		p.nextToken()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.curTokenIs(TokenMinus) {
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	switch p.curToken.Type {
	case TokenNumber:
		val, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, &ParseError{
				Message:  fmt.Sprintf("invalid number %q", p.curToken.Literal),
				Position: p.curToken.Pos,
			}
		}
		p.nextToken()
		return &NumberLiteral{Value: val}, nil

	case TokenString:
		lit := &StringLiteral{Value: p.curToken.Literal}
		p.nextToken()
		return lit, nil

	case TokenFieldRef:
		ref := &FieldRef{Name: p.curToken.Literal}
		p.nextToken()
		return ref, nil

	case TokenIdent:
		return p.parseCall()

	case TokenLParen:
		p.nextToken()
		expr, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if !p.curTokenIs(TokenRParen) {
			return nil, &ParseError{Message: "expected closing parenthesis", Position: p.curToken.Pos}
		}
		p.nextToken()
		return expr, nil

	case TokenError:
		return nil, &ParseError{
			Message:  fmt.Sprintf("unexpected character %q", p.curToken.Literal),
			Position: p.curToken.Pos,
		}

	default:
		return nil, &ParseError{
			Message:  fmt.Sprintf("unexpected token %q", p.curToken.Literal),
			Position: p.curToken.Pos,
		}
	}
}

func (p *Parser) parseCall() (Expression, error) {
	name := strings.ToUpper(p.curToken.Literal)
	pos := p.curToken.Pos
	p.nextToken()

	if !p.curTokenIs(TokenLParen) {
		return nil, &ParseError{
			Message:  fmt.Sprintf("expected ( after function name %s", name),
			Position: p.curToken.Pos,
		}
	}
	p.nextToken()

	call := &Call{Name: name}
	if p.curTokenIs(TokenRParen) {
		p.nextToken()
		return checkArity(call, pos)
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		break
	}

	if !p.curTokenIs(TokenRParen) {
		return nil, &ParseError{Message: "expected closing parenthesis", Position: p.curToken.Pos}
	}
	p.nextToken()
	return checkArity(call, pos)
}

func checkArity(call *Call, pos int) (Expression, error) {
	switch call.Name {
	case "UPPER", "LOWER":
		if len(call.Args) != 1 {
			return nil, &ParseError{
				Message:  fmt.Sprintf("%s expects exactly one argument", call.Name),
				Position: pos,
			}
		}
	case "CONCAT":
		// any number of arguments, including zero
	case "IF":
		if len(call.Args) != 3 {
			return nil, &ParseError{Message: "IF expects exactly three arguments", Position: pos}
		}
	default:
		return nil, &ParseError{
			Message:  fmt.Sprintf("unsupported function %s", call.Name),
			Position: pos,
		}
	}
	return call, nil
}
