package parse

import (
	"bytes"
	"context"

	"tlog.app/go/errors"

	"github.com/slowlang/rbc/compiler/ast"
)

func (s *State) parseExpr(ctx context.Context, st int) (x ast.Node, i int, err error) {
	return s.parseAssign(ctx, st)
}

// parseAssign handles both plain `=` and the historical `=op` forms. The op
// must follow the `=` with no intervening whitespace: `a=-b` subtracts,
// `a = -b` assigns a negation.
func (s *State) parseAssign(ctx context.Context, st int) (x ast.Node, i int, err error) {
	lhs, i, err := s.parseTernary(ctx, st)
	if err != nil {
		return nil, i, err
	}

	j := s.skip(i)
	if s.peek(j) != '=' {
		return lhs, i, nil
	}

	j++
	op := ""

	for _, cand := range assignOps {
		if bytes.HasPrefix(s.b[j:], []byte(cand)) {
			op = cand
			j += len(cand)

			break
		}
	}

	rhs, i, err := s.parseAssign(ctx, j)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Assign(op, lhs, rhs)

	return x, i, err
}

func (s *State) parseTernary(ctx context.Context, st int) (x ast.Node, i int, err error) {
	cond, i, err := s.parseOr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	j := s.skip(i)
	if s.peek(j) != '?' {
		return cond, i, nil
	}

	then, i, err := s.parseExpr(ctx, j+1)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ':')
	if err != nil {
		return nil, i, err
	}

	els, i, err := s.parseTernary(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Ternary(cond, then, els)

	return x, i, err
}

func (s *State) parseOr(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseXor, func(i int) (string, int) {
		if s.peek(i) == '|' {
			return "|", i + 1
		}

		return "", i
	})
}

func (s *State) parseXor(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseAnd, func(i int) (string, int) {
		if s.peek(i) == '^' {
			return "^", i + 1
		}

		return "", i
	})
}

func (s *State) parseAnd(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseEq, func(i int) (string, int) {
		if s.peek(i) == '&' {
			return "&", i + 1
		}

		return "", i
	})
}

func (s *State) parseEq(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseRel, func(i int) (string, int) {
		switch {
		case s.peek(i) == '=' && s.peek(i+1) == '=':
			return "==", i + 2
		case s.peek(i) == '!' && s.peek(i+1) == '=':
			return "!=", i + 2
		}

		return "", i
	})
}

func (s *State) parseRel(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseShift, func(i int) (string, int) {
		switch c, c2 := s.peek(i), s.peek(i + 1); {
		case c == '<' && c2 == '=':
			return "<=", i + 2
		case c == '>' && c2 == '=':
			return ">=", i + 2
		case c == '<' && c2 != '<':
			return "<", i + 1
		case c == '>' && c2 != '>':
			return ">", i + 1
		}

		return "", i
	})
}

func (s *State) parseShift(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseAdd, func(i int) (string, int) {
		switch c, c2 := s.peek(i), s.peek(i + 1); {
		case c == '<' && c2 == '<':
			return "<<", i + 2
		case c == '>' && c2 == '>':
			return ">>", i + 2
		}

		return "", i
	})
}

func (s *State) parseAdd(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseMul, func(i int) (string, int) {
		switch c, c2 := s.peek(i), s.peek(i + 1); {
		case c == '+' && c2 != '+':
			return "+", i + 1
		case c == '-' && c2 != '-':
			return "-", i + 1
		}

		return "", i
	})
}

func (s *State) parseMul(ctx context.Context, st int) (ast.Node, int, error) {
	return s.parseBinary(ctx, st, s.parseUnary, func(i int) (string, int) {
		switch s.peek(i) {
		case '*':
			return "*", i + 1
		case '/':
			return "/", i + 1
		case '%':
			return "%", i + 1
		}

		return "", i
	})
}

// parseBinary is the left-to-right chain `arg { op arg }`. If the right-hand
// side of a matched operator does not parse, the operator is unread and the
// chain ends, which is what lets `a === b` reach the assignment rule.
func (s *State) parseBinary(ctx context.Context, st int, arg func(context.Context, int) (ast.Node, int, error), match func(int) (string, int)) (x ast.Node, i int, err error) {
	x, i, err = arg(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		j := s.skip(i)

		op, e := match(j)
		if op == "" {
			return x, i, nil
		}

		r, e, rerr := arg(ctx, e)
		if rerr != nil {
			return x, i, nil
		}

		x, err = s.build.Binary(op, x, r)
		if err != nil {
			return nil, j, err
		}

		i = e
	}
}

func (s *State) parseUnary(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	op := ""

	switch c, c2 := s.peek(i), s.peek(i + 1); {
	case c == '+' && c2 == '+':
		op, i = "++", i+2
	case c == '-' && c2 == '-':
		op, i = "--", i+2
	case c == '-':
		op, i = "-", i+1
	case c == '!':
		op, i = "!", i+1
	case c == '~':
		op, i = "~", i+1
	case c == '*':
		op, i = "*", i+1
	case c == '&':
		op, i = "&", i+1
	default:
		return s.parsePostfix(ctx, i)
	}

	operand, i, err := s.parseUnary(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Unary(op, operand, false)

	return x, i, err
}

func (s *State) parsePostfix(ctx context.Context, st int) (x ast.Node, i int, err error) {
	x, i, err = s.parsePrimary(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		j := s.skip(i)

		switch c, c2 := s.peek(j), s.peek(j + 1); {
		case c == '(':
			var args []ast.Node

			j = s.skip(j + 1)

			if s.peek(j) != ')' {
				for {
					var a ast.Node

					a, j, err = s.parseExpr(ctx, j)
					if err != nil {
						return nil, j, err
					}

					args = append(args, a)

					j = s.skip(j)
					if s.peek(j) != ',' {
						break
					}

					j++
				}
			}

			j, err = s.expect(j, ')')
			if err != nil {
				return nil, j, err
			}

			x, err = s.build.Call(x, args)
			if err != nil {
				return nil, j, err
			}

			i = j
		case c == '[':
			var idx ast.Node

			idx, j, err = s.parseExpr(ctx, j+1)
			if err != nil {
				return nil, j, err
			}

			j, err = s.expect(j, ']')
			if err != nil {
				return nil, j, err
			}

			x, err = s.build.Index(x, idx)
			if err != nil {
				return nil, j, err
			}

			i = j
		case c == '+' && c2 == '+':
			x, err = s.build.Unary("++", x, true)
			if err != nil {
				return nil, j, err
			}

			i = j + 2
		case c == '-' && c2 == '-':
			x, err = s.build.Unary("--", x, true)
			if err != nil {
				return nil, j, err
			}

			i = j + 2
		default:
			return x, i, nil
		}
	}
}

func (s *State) parsePrimary(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	switch c := s.peek(i); {
	case c >= '0' && c <= '9':
		text, j := s.number(i)

		x, err = s.build.Number(text)

		return x, j, err
	case c == '\'':
		chars, j, err := s.quoted(i+1, '\'')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.Char(chars)

		return x, j, err
	case c == '"':
		chars, j, err := s.quoted(i+1, '"')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.String(chars)

		return x, j, err
	case c == '(':
		x, i, err = s.parseExpr(ctx, i+1)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ')')

		return x, i, err
	case nameStart(c):
		name, j := s.name(i)
		if _, kw := keywords[name]; kw {
			return nil, i, errors.New("unexpected keyword: %v", name)
		}

		x, err = s.build.Name(name)

		return x, j, err
	default:
		return nil, i, errors.New("expression expected")
	}
}
