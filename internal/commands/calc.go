package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// evaluate computes a plain arithmetic expression (+ - * /, parentheses,
// unary minus) and phrases the result. Anything else gets an apology
// rather than an error: a bad expression is a conversation, not a fault.
func evaluate(expr string) string {
	p := &parser{input: strings.TrimSpace(expr)}
	v, err := p.parseExpr()
	if err == nil {
		p.skipSpace()
		if p.pos != len(p.input) {
			err = fmt.Errorf("trailing input at %d", p.pos)
		}
	}
	if err != nil {
		return "Sorry, I could not evaluate that expression."
	}
	return fmt.Sprintf("The result is %s.", strconv.FormatFloat(v, 'f', -1, 64))
}

// parser is a recursive-descent evaluator with the usual precedence:
// expr = term (('+'|'-') term)* ; term = factor (('*'|'/') factor)*.
type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err

	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis at %d", p.pos)
		}
		p.pos++
		return v, nil

	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.input) {
			c := p.input[p.pos]
			if (c < '0' || c > '9') && c != '.' {
				break
			}
			p.pos++
		}
		v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("bad number %q", p.input[start:p.pos])
		}
		return v, nil

	default:
		return 0, fmt.Errorf("unexpected character at %d", p.pos)
	}
}
