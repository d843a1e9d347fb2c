package parse

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler/ast"
)

var keywords = map[string]struct{}{
	"auto": {}, "extrn": {}, "if": {}, "else": {}, "while": {},
	"switch": {}, "case": {}, "default": {}, "goto": {}, "return": {}, "break": {},
}

// Compound assignment suffixes. `=` immediately followed (no whitespace) by
// one of these forms the historical `=op` operator; longest match first so
// `=<<` is not read as `=<` `<`.
var assignOps = []string{
	"<<", ">>", "==", "!=", "<=", ">=",
	"+", "-", "*", "/", "%", "|", "&", "^", "<", ">",
}

func (s *State) parseProgram(ctx context.Context, st int) (x ast.Node, i int, err error) {
	var defs []ast.Node

	i = s.skip(st)

	for i < len(s.b) {
		x, i, err = s.parseDefinition(ctx, i)
		if err != nil {
			return nil, i, err
		}

		defs = append(defs, x)

		i = s.skip(i)
	}

	x, err = s.build.Program(defs)

	return x, i, err
}

func (s *State) parseDefinition(ctx context.Context, st int) (x ast.Node, i int, err error) {
	name, i := s.name(st)
	if name == "" {
		return nil, st, errors.New("definition expected")
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("definition") {
		tr.Printw("definition", "name", name, "pos", st, "from", loc.Callers(1, 2))
	}

	j := s.skip(i)

	switch s.peek(j) {
	case '(':
		return s.parseFuncDef(ctx, name, j+1)
	case '[':
		return s.parseVectorDef(ctx, name, j+1)
	default:
		return s.parseSimpleDef(ctx, name, j)
	}
}

func (s *State) parseSimpleDef(ctx context.Context, name string, st int) (x ast.Node, i int, err error) {
	var ival ast.Node

	i = st

	if s.peek(i) != ';' {
		ival, i, err = s.parseIval(ctx, i)
		if err != nil {
			return nil, i, err
		}
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.SimpleDef(name, ival)

	return x, i, err
}

func (s *State) parseVectorDef(ctx context.Context, name string, st int) (x ast.Node, i int, err error) {
	var maxidx ast.Node
	var ivals []ast.Node

	i = s.skip(st)

	if s.peek(i) != ']' {
		maxidx, i, err = s.parseConstant(ctx, i)
		if err != nil {
			return nil, i, err
		}
	}

	i, err = s.expect(i, ']')
	if err != nil {
		return nil, i, err
	}

	if j := s.skip(i); s.peek(j) != ';' {
		for {
			var v ast.Node

			v, i, err = s.parseIval(ctx, i)
			if err != nil {
				return nil, i, err
			}

			ivals = append(ivals, v)

			j := s.skip(i)
			if s.peek(j) != ',' {
				break
			}

			i = j + 1
		}
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.VectorDef(name, maxidx, ivals)

	return x, i, err
}

func (s *State) parseFuncDef(ctx context.Context, name string, st int) (x ast.Node, i int, err error) {
	var params []string

	i = s.skip(st)

	if s.peek(i) != ')' {
		for {
			p, j := s.name(s.skip(i))
			if p == "" {
				return nil, j, errors.New("parameter name expected")
			}

			params = append(params, p)

			i = s.skip(j)
			if s.peek(i) != ',' {
				break
			}

			i++
		}
	}

	i, err = s.expect(i, ')')
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.FuncDef(name, params, body)

	return x, i, err
}

// parseIval is a global initializer: a constant, a string, or a name
// (resolved to the named symbol's address).
func (s *State) parseIval(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	switch c := s.peek(i); {
	case c == '\'' || c >= '0' && c <= '9' || c == '-':
		return s.parseConstant(ctx, i)
	case c == '"':
		chars, j, err := s.quoted(i+1, '"')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.String(chars)

		return x, j, err
	case nameStart(c):
		name, j := s.name(i)

		x, err = s.build.Name(name)

		return x, j, err
	default:
		return nil, i, errors.New("initializer expected")
	}
}

// parseConstant is a numeric or character constant.
func (s *State) parseConstant(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	neg := ""
	if s.peek(i) == '-' {
		neg = "-"
		i = s.skip(i + 1)
	}

	switch c := s.peek(i); {
	case c >= '0' && c <= '9':
		text, j := s.number(i)

		x, err = s.build.Number(neg + text)

		return x, j, err
	case c == '\'' && neg == "":
		chars, j, err := s.quoted(i+1, '\'')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.Char(chars)

		return x, j, err
	default:
		return nil, i, errors.New("constant expected")
	}
}

// Statements

func (s *State) parseStatement(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	switch s.peek(i) {
	case '{':
		stmts, j, err := s.parseStmtList(ctx, i+1)
		if err != nil {
			return nil, j, err
		}

		j, err = s.expect(j, '}')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.Compound(stmts)

		return x, j, err
	case ';':
		x, err = s.build.Null()

		return x, i + 1, err
	}

	name, j := s.name(i)

	switch name {
	case "auto":
		return s.parseAuto(ctx, j, nil)
	case "extrn":
		return s.parseExtrn(ctx, j, nil)
	case "if":
		return s.parseIf(ctx, j)
	case "while":
		return s.parseWhile(ctx, j)
	case "switch":
		return s.parseSwitch(ctx, j)
	case "case":
		return s.parseCase(ctx, j)
	case "default":
		j, err = s.expect(j, ':')
		if err != nil {
			return nil, j, err
		}

		body, j, err := s.parseStatement(ctx, j)
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.Case(nil, true, body)

		return x, j, err
	case "goto":
		return s.parseGoto(ctx, j)
	case "return":
		return s.parseReturn(ctx, j)
	case "break":
		j, err = s.expect(j, ';')
		if err != nil {
			return nil, j, err
		}

		x, err = s.build.Break()

		return x, j, err
	}

	if name != "" {
		if _, kw := keywords[name]; !kw {
			// a name followed by a colon labels the next statement
			if k := s.skip(j); s.peek(k) == ':' {
				body, e, err := s.parseStatement(ctx, k+1)
				if err != nil {
					return nil, e, err
				}

				x, err = s.build.Label(name, body)

				return x, e, err
			}
		}
	}

	return s.parseExprStmt(ctx, i)
}

// parseStmtList reads statements up to the closing brace, which is left for
// the caller. An auto or extrn statement takes the rest of the block as its
// body, giving the declared names block scope.
func (s *State) parseStmtList(ctx context.Context, st int) (stmts []ast.Node, i int, err error) {
	i = st

	for {
		j := s.skip(i)
		if j == len(s.b) || s.peek(j) == '}' {
			return stmts, j, nil
		}

		if name, nj := s.name(j); name == "auto" || name == "extrn" {
			var x ast.Node

			tail := func(ctx context.Context, st int) (ast.Node, int, error) {
				rest, e, err := s.parseStmtList(ctx, st)
				if err != nil {
					return nil, e, err
				}

				x, err := s.build.Compound(rest)

				return x, e, err
			}

			if name == "auto" {
				x, i, err = s.parseAuto(ctx, nj, tail)
			} else {
				x, i, err = s.parseExtrn(ctx, nj, tail)
			}

			if err != nil {
				return nil, i, err
			}

			return append(stmts, x), i, nil
		}

		var x ast.Node

		x, i, err = s.parseStatement(ctx, j)
		if err != nil {
			return nil, i, err
		}

		stmts = append(stmts, x)
	}
}

type tailFunc func(ctx context.Context, st int) (ast.Node, int, error)

func (s *State) parseAuto(ctx context.Context, st int, tail tailFunc) (x ast.Node, i int, err error) {
	var decls []ast.AutoDecl

	i = st

	for {
		name, j := s.name(s.skip(i))
		if name == "" {
			return nil, j, errors.New("auto declarator expected")
		}

		d := ast.AutoDecl{Name: name}

		i = s.skip(j)

		if s.peek(i) == '[' {
			d.Size, i, err = s.parseConstant(ctx, i+1)
			if err != nil {
				return nil, i, err
			}

			i, err = s.expect(i, ']')
			if err != nil {
				return nil, i, err
			}
		}

		decls = append(decls, d)

		i = s.skip(i)
		if s.peek(i) != ',' {
			break
		}

		i++
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseTail(ctx, i, tail)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Auto(decls, body)

	return x, i, err
}

func (s *State) parseExtrn(ctx context.Context, st int, tail tailFunc) (x ast.Node, i int, err error) {
	var names []string

	i = st

	for {
		name, j := s.name(s.skip(i))
		if name == "" {
			return nil, j, errors.New("extrn name expected")
		}

		names = append(names, name)

		i = s.skip(j)
		if s.peek(i) != ',' {
			break
		}

		i++
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseTail(ctx, i, tail)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Extrn(names, body)

	return x, i, err
}

func (s *State) parseTail(ctx context.Context, st int, tail tailFunc) (x ast.Node, i int, err error) {
	if tail != nil {
		return tail(ctx, st)
	}

	return s.parseStatement(ctx, st)
}

func (s *State) parseIf(ctx context.Context, st int) (x ast.Node, i int, err error) {
	cond, i, err := s.parseParen(ctx, st)
	if err != nil {
		return nil, i, err
	}

	then, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, err
	}

	var els ast.Node

	if name, j := s.name(s.skip(i)); name == "else" {
		els, i, err = s.parseStatement(ctx, j)
		if err != nil {
			return nil, i, err
		}
	}

	x, err = s.build.If(cond, then, els)

	return x, i, err
}

func (s *State) parseWhile(ctx context.Context, st int) (x ast.Node, i int, err error) {
	cond, i, err := s.parseParen(ctx, st)
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.While(cond, body)

	return x, i, err
}

func (s *State) parseSwitch(ctx context.Context, st int) (x ast.Node, i int, err error) {
	cond, i, err := s.parseParen(ctx, st)
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Switch(cond, body)

	return x, i, err
}

func (s *State) parseCase(ctx context.Context, st int) (x ast.Node, i int, err error) {
	val, i, err := s.parseConstant(ctx, st)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ':')
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Case(val, false, body)

	return x, i, err
}

func (s *State) parseGoto(ctx context.Context, st int) (x ast.Node, i int, err error) {
	label, i, err := s.parseExpr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Goto(label)

	return x, i, err
}

func (s *State) parseReturn(ctx context.Context, st int) (x ast.Node, i int, err error) {
	var val ast.Node

	i = s.skip(st)

	if s.peek(i) != ';' {
		val, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.Return(val)

	return x, i, err
}

func (s *State) parseExprStmt(ctx context.Context, st int) (x ast.Node, i int, err error) {
	e, i, err := s.parseExpr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ';')
	if err != nil {
		return nil, i, err
	}

	x, err = s.build.ExprStmt(e)

	return x, i, err
}

func (s *State) parseParen(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i, err = s.expect(st, '(')
	if err != nil {
		return nil, i, err
	}

	x, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ')')

	return x, i, err
}

func (s *State) expect(st int, c byte) (i int, err error) {
	i = s.skip(st)

	if s.peek(i) != c {
		return i, errors.New("%q expected", string(c))
	}

	return i + 1, nil
}
