package ast

import (
	"tlog.app/go/errors"
)

type (
	// Node is an AST node. Nodes are built by a Builder, so consumers which
	// want another representation (dumpers, recording visitors) keep working
	// with the same parser.
	Node interface{}

	// Program is the root: a sequence of global definitions.
	Program struct {
		Defs []Node
	}

	// SimpleDef is `name [ival] ;`.
	SimpleDef struct {
		Name string
		Ival Node // nil if absent
	}

	// VectorDef is `name "[" [maxidx] "]" [ivals] ;`.
	// MaxIdx nil means the vector is sized by its initializer list.
	VectorDef struct {
		Name   string
		MaxIdx Node
		Ivals  []Node
	}

	// FuncDef is `name ( params ) statement`.
	FuncDef struct {
		Name   string
		Params []string
		Body   Node
	}

	Number struct {
		Value int64
	}

	// Char is a character literal packed into a word. The first character
	// occupies the least significant byte.
	Char struct {
		Value int64
	}

	// String holds the expanded bytes of a string literal with the
	// terminating EOT byte already appended.
	String struct {
		Bytes []byte
	}

	Name struct {
		Ident string
	}

	Unary struct {
		Op      string
		X       Node
		Postfix bool // only for "++" and "--"
	}

	Binary struct {
		Op   string
		L, R Node
	}

	Ternary struct {
		Cond, Then, Else Node
	}

	// Assign is `lvalue =op rvalue`. Op is "" for plain assignment or the
	// binary operator of a compound assignment (`=+` carries "+").
	Assign struct {
		Op       string
		Lhs, Rhs Node
	}

	Call struct {
		Fn   Node
		Args []Node
	}

	Index struct {
		X, Idx Node
	}

	Compound struct {
		Stmts []Node
	}

	If struct {
		Cond, Then, Else Node
	}

	While struct {
		Cond, Body Node
	}

	Return struct {
		X Node // nil if absent
	}

	Break struct{}

	Goto struct {
		Label Node
	}

	Label struct {
		Name string
		Body Node
	}

	Switch struct {
		Cond, Body Node
	}

	// Case is `case k : statement` or `default : statement`.
	Case struct {
		Value   Node // nil for default
		Default bool
		Body    Node
	}

	// AutoDecl is one declarator of an auto statement. Size is nil for a
	// plain word cell and the max index constant for `auto x[k]`.
	AutoDecl struct {
		Name string
		Size Node
	}

	// Auto declares stack cells visible in Body.
	Auto struct {
		Decls []AutoDecl
		Body  Node
	}

	// Extrn introduces module-scope names visible in Body.
	Extrn struct {
		Names []string
		Body  Node
	}

	ExprStmt struct {
		X Node
	}

	Null struct{}
)

// ErrLiteralTooWide is returned for a character literal with more bytes than
// fit in a word.
var ErrLiteralTooWide = errors.New("character literal wider than a word")

// UnaryOps and BinaryOps are the operator vocabularies nodes are validated
// against. Compound assignment accepts any binary operator.
var (
	UnaryOps  = opset("-", "!", "~", "*", "&", "++", "--")
	BinaryOps = opset("|", "^", "&", "==", "!=", "<", ">", "<=", ">=", "<<", ">>", "+", "-", "*", "/", "%")
)

func opset(ops ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ops))

	for _, op := range ops {
		m[op] = struct{}{}
	}

	return m
}
