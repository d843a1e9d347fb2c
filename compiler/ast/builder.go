package ast

import (
	"strconv"

	"tlog.app/go/errors"
)

type (
	// Builder constructs nodes for the parser. Each method corresponds to a
	// grammar rule and is invoked bottom-up. The default implementation
	// builds the node types of this package; alternates may return anything.
	Builder interface {
		Program(defs []Node) (Node, error)
		SimpleDef(name string, ival Node) (Node, error)
		VectorDef(name string, maxidx Node, ivals []Node) (Node, error)
		FuncDef(name string, params []string, body Node) (Node, error)

		Number(text string) (Node, error)
		Char(chars []byte) (Node, error)
		String(chars []byte) (Node, error)
		Name(ident string) (Node, error)
		Unary(op string, x Node, postfix bool) (Node, error)
		Binary(op string, l, r Node) (Node, error)
		Ternary(cond, then, els Node) (Node, error)
		Assign(op string, lhs, rhs Node) (Node, error)
		Call(fn Node, args []Node) (Node, error)
		Index(x, idx Node) (Node, error)

		Compound(stmts []Node) (Node, error)
		If(cond, then, els Node) (Node, error)
		While(cond, body Node) (Node, error)
		Return(x Node) (Node, error)
		Break() (Node, error)
		Goto(label Node) (Node, error)
		Label(name string, body Node) (Node, error)
		Switch(cond, body Node) (Node, error)
		Case(value Node, def bool, body Node) (Node, error)
		Auto(decls []AutoDecl, body Node) (Node, error)
		Extrn(names []string, body Node) (Node, error)
		ExprStmt(x Node) (Node, error)
		Null() (Node, error)
	}

	// Tree is the default Builder. It validates fields on construction so an
	// invalid node cannot enter the pipeline.
	Tree struct {
		wordBytes int
	}
)

func NewTree(wordBytes int) *Tree {
	return &Tree{wordBytes: wordBytes}
}

func (t *Tree) Program(defs []Node) (Node, error) {
	return &Program{Defs: defs}, nil
}

func (t *Tree) SimpleDef(name string, ival Node) (Node, error) {
	if name == "" {
		return nil, errors.New("simple definition without a name")
	}

	return &SimpleDef{Name: name, Ival: ival}, nil
}

func (t *Tree) VectorDef(name string, maxidx Node, ivals []Node) (Node, error) {
	if name == "" {
		return nil, errors.New("vector definition without a name")
	}

	return &VectorDef{Name: name, MaxIdx: maxidx, Ivals: ivals}, nil
}

func (t *Tree) FuncDef(name string, params []string, body Node) (Node, error) {
	if name == "" || body == nil {
		return nil, errors.New("function definition without a name or body")
	}

	return &FuncDef{Name: name, Params: params, Body: body}, nil
}

func (t *Tree) Number(text string) (Node, error) {
	digits := text
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}

	base := 10
	if len(digits) > 1 && digits[0] == '0' {
		// Real programmers think Halloween is on the same day as Christmas.
		base = 8
	}

	v, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return nil, errors.Wrap(err, "numeric literal")
	}

	return &Number{Value: v}, nil
}

func (t *Tree) Char(chars []byte) (Node, error) {
	if len(chars) > t.wordBytes {
		return nil, errors.Wrap(ErrLiteralTooWide, "%d bytes in a %d byte word", len(chars), t.wordBytes)
	}

	var v int64

	for i, c := range chars {
		v |= int64(c) << (8 * i)
	}

	return &Char{Value: v}, nil
}

func (t *Tree) String(chars []byte) (Node, error) {
	b := make([]byte, len(chars)+1)
	copy(b, chars)
	b[len(chars)] = 0x04 // EOT terminates B strings

	return &String{Bytes: b}, nil
}

func (t *Tree) Name(ident string) (Node, error) {
	if ident == "" {
		return nil, errors.New("empty name")
	}

	return &Name{Ident: ident}, nil
}

func (t *Tree) Unary(op string, x Node, postfix bool) (Node, error) {
	if _, ok := UnaryOps[op]; !ok {
		return nil, errors.New("not a unary operator: %q", op)
	}
	if postfix && op != "++" && op != "--" {
		return nil, errors.New("operator %q cannot be postfix", op)
	}
	if x == nil {
		return nil, errors.New("unary %q without operand", op)
	}

	return &Unary{Op: op, X: x, Postfix: postfix}, nil
}

func (t *Tree) Binary(op string, l, r Node) (Node, error) {
	if _, ok := BinaryOps[op]; !ok {
		return nil, errors.New("not a binary operator: %q", op)
	}
	if l == nil || r == nil {
		return nil, errors.New("binary %q without operands", op)
	}

	return &Binary{Op: op, L: l, R: r}, nil
}

func (t *Tree) Ternary(cond, then, els Node) (Node, error) {
	if cond == nil || then == nil || els == nil {
		return nil, errors.New("conditional with a missing arm")
	}

	return &Ternary{Cond: cond, Then: then, Else: els}, nil
}

func (t *Tree) Assign(op string, lhs, rhs Node) (Node, error) {
	if op != "" {
		if _, ok := BinaryOps[op]; !ok {
			return nil, errors.New("not an assignment operator: %q", "="+op)
		}
	}
	if lhs == nil || rhs == nil {
		return nil, errors.New("assignment without operands")
	}

	return &Assign{Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func (t *Tree) Call(fn Node, args []Node) (Node, error) {
	if fn == nil {
		return nil, errors.New("call without a callee")
	}

	return &Call{Fn: fn, Args: args}, nil
}

func (t *Tree) Index(x, idx Node) (Node, error) {
	if x == nil || idx == nil {
		return nil, errors.New("index without operands")
	}

	return &Index{X: x, Idx: idx}, nil
}

func (t *Tree) Compound(stmts []Node) (Node, error) {
	return &Compound{Stmts: stmts}, nil
}

func (t *Tree) If(cond, then, els Node) (Node, error) {
	if cond == nil || then == nil {
		return nil, errors.New("if without condition or body")
	}

	return &If{Cond: cond, Then: then, Else: els}, nil
}

func (t *Tree) While(cond, body Node) (Node, error) {
	if cond == nil || body == nil {
		return nil, errors.New("while without condition or body")
	}

	return &While{Cond: cond, Body: body}, nil
}

func (t *Tree) Return(x Node) (Node, error) {
	return &Return{X: x}, nil
}

func (t *Tree) Break() (Node, error) {
	return &Break{}, nil
}

func (t *Tree) Goto(label Node) (Node, error) {
	if label == nil {
		return nil, errors.New("goto without a target")
	}

	return &Goto{Label: label}, nil
}

func (t *Tree) Label(name string, body Node) (Node, error) {
	if name == "" || body == nil {
		return nil, errors.New("label without a name or statement")
	}

	return &Label{Name: name, Body: body}, nil
}

func (t *Tree) Switch(cond, body Node) (Node, error) {
	if cond == nil || body == nil {
		return nil, errors.New("switch without value or body")
	}

	return &Switch{Cond: cond, Body: body}, nil
}

func (t *Tree) Case(value Node, def bool, body Node) (Node, error) {
	if !def && value == nil || body == nil {
		return nil, errors.New("case without value or statement")
	}

	return &Case{Value: value, Default: def, Body: body}, nil
}

func (t *Tree) Auto(decls []AutoDecl, body Node) (Node, error) {
	if len(decls) == 0 || body == nil {
		return nil, errors.New("auto without declarations or body")
	}

	for _, d := range decls {
		if d.Name == "" {
			return nil, errors.New("auto declarator without a name")
		}
	}

	return &Auto{Decls: decls, Body: body}, nil
}

func (t *Tree) Extrn(names []string, body Node) (Node, error) {
	if len(names) == 0 || body == nil {
		return nil, errors.New("extrn without names or body")
	}

	return &Extrn{Names: names, Body: body}, nil
}

func (t *Tree) ExprStmt(x Node) (Node, error) {
	if x == nil {
		return nil, errors.New("expression statement without expression")
	}

	return &ExprStmt{X: x}, nil
}

func (t *Tree) Null() (Node, error) {
	return &Null{}, nil
}
