// Package dump records the AST through its own node constructor and renders
// it as JSON or Graphviz. It exists for debugging and doubles as the proof
// that the parser is independent of the node representation.
package dump

import (
	"encoding/json"
	"fmt"
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/rbc/compiler/ast"
)

type (
	// Node is a lossless record of an AST node: its kind and its fields in
	// construction order.
	Node struct {
		Kind   string
		Fields []Field
	}

	// Field is one node field. Value is a scalar or a list of names, or nil
	// when the field is a child node or list of child nodes.
	Field struct {
		Name  string
		Value interface{}
		Kid   *Node
		Kids  []*Node
	}

	// Builder implements ast.Builder with Node as the representation.
	Builder struct{}
)

func New() Builder {
	return Builder{}
}

func (b Builder) node(kind string, fields ...Field) (ast.Node, error) {
	return &Node{Kind: kind, Fields: fields}, nil
}

func attr(name string, v interface{}) Field {
	return Field{Name: name, Value: v}
}

func kid(name string, x ast.Node) Field {
	if x == nil {
		return Field{Name: name}
	}

	return Field{Name: name, Kid: x.(*Node)}
}

func kids(name string, l []ast.Node) Field {
	f := Field{Name: name, Kids: make([]*Node, len(l))}

	for i, x := range l {
		f.Kids[i] = x.(*Node)
	}

	return f
}

func (b Builder) Program(defs []ast.Node) (ast.Node, error) {
	return b.node("Program", kids("definitions", defs))
}

func (b Builder) SimpleDef(name string, ival ast.Node) (ast.Node, error) {
	return b.node("SimpleDefinition", attr("name", name), kid("init", ival))
}

func (b Builder) VectorDef(name string, maxidx ast.Node, ivals []ast.Node) (ast.Node, error) {
	return b.node("VectorDefinition", attr("name", name), kid("maxidx", maxidx), kids("ivals", ivals))
}

func (b Builder) FuncDef(name string, params []string, body ast.Node) (ast.Node, error) {
	return b.node("FunctionDefinition", attr("name", name), attr("arg_names", params), kid("body", body))
}

func (b Builder) Number(text string) (ast.Node, error) {
	return b.node("NumericExpr", attr("value", text))
}

func (b Builder) Char(chars []byte) (ast.Node, error) {
	return b.node("CharacterExpr", attr("value", fmt.Sprintf("%q", chars)))
}

func (b Builder) String(chars []byte) (ast.Node, error) {
	return b.node("StringExpr", attr("value", fmt.Sprintf("%q", chars)))
}

func (b Builder) Name(ident string) (ast.Node, error) {
	return b.node("NameExpr", attr("name", ident))
}

func (b Builder) Unary(op string, x ast.Node, postfix bool) (ast.Node, error) {
	if postfix {
		return b.node("UnaryExpr", attr("op", op), attr("postfix", postfix), kid("operand", x))
	}

	return b.node("UnaryExpr", attr("op", op), kid("operand", x))
}

func (b Builder) Binary(op string, l, r ast.Node) (ast.Node, error) {
	return b.node("BinaryExpr", attr("op", op), kid("lhs", l), kid("rhs", r))
}

func (b Builder) Ternary(cond, then, els ast.Node) (ast.Node, error) {
	return b.node("TernaryExpr", kid("cond", cond), kid("then", then), kid("otherwise", els))
}

func (b Builder) Assign(op string, lhs, rhs ast.Node) (ast.Node, error) {
	return b.node("AssignExpr", attr("op", "="+op), kid("lhs", lhs), kid("rhs", rhs))
}

func (b Builder) Call(fn ast.Node, args []ast.Node) (ast.Node, error) {
	return b.node("CallExpr", kid("func", fn), kids("args", args))
}

func (b Builder) Index(x, idx ast.Node) (ast.Node, error) {
	return b.node("IndexExpr", kid("base", x), kid("index", idx))
}

func (b Builder) Compound(stmts []ast.Node) (ast.Node, error) {
	return b.node("CompoundStmt", kids("statements", stmts))
}

func (b Builder) If(cond, then, els ast.Node) (ast.Node, error) {
	return b.node("IfStmt", kid("cond", cond), kid("then", then), kid("otherwise", els))
}

func (b Builder) While(cond, body ast.Node) (ast.Node, error) {
	return b.node("WhileStmt", kid("cond", cond), kid("body", body))
}

func (b Builder) Return(x ast.Node) (ast.Node, error) {
	return b.node("ReturnStmt", kid("value", x))
}

func (b Builder) Break() (ast.Node, error) {
	return b.node("BreakStmt")
}

func (b Builder) Goto(label ast.Node) (ast.Node, error) {
	return b.node("GotoStmt", kid("label", label))
}

func (b Builder) Label(name string, body ast.Node) (ast.Node, error) {
	return b.node("LabelStmt", attr("label", name), kid("statement", body))
}

func (b Builder) Switch(cond, body ast.Node) (ast.Node, error) {
	return b.node("SwitchStmt", kid("rvalue", cond), kid("body", body))
}

func (b Builder) Case(value ast.Node, def bool, body ast.Node) (ast.Node, error) {
	if def {
		return b.node("CaseStmt", attr("default", def), kid("then", body))
	}

	return b.node("CaseStmt", kid("cond", value), kid("then", body))
}

func (b Builder) Auto(decls []ast.AutoDecl, body ast.Node) (ast.Node, error) {
	f := Field{Name: "decls"}

	for _, d := range decls {
		n := &Node{Kind: "AutoDecl", Fields: []Field{attr("name", d.Name)}}
		if d.Size != nil {
			n.Fields = append(n.Fields, kid("maxidx", d.Size))
		}

		f.Kids = append(f.Kids, n)
	}

	return b.node("AutoStmt", f, kid("body", body))
}

func (b Builder) Extrn(names []string, body ast.Node) (ast.Node, error) {
	return b.node("ExtrnStmt", attr("names", names), kid("body", body))
}

func (b Builder) ExprStmt(x ast.Node) (ast.Node, error) {
	return b.node("ExpressionStmt", kid("expression", x))
}

func (b Builder) Null() (ast.Node, error) {
	return b.node("NullStmt")
}

// JSON renders a recorded tree.
func JSON(x ast.Node) ([]byte, error) {
	n, ok := x.(*Node)
	if !ok {
		return nil, errors.New("dump node expected, got %T", x)
	}

	return json.MarshalIndent(n.jsonValue(), "", "  ")
}

func (n *Node) jsonValue() interface{} {
	v := map[string]interface{}{
		"_type": n.Kind,
	}

	for _, f := range n.Fields {
		switch {
		case f.Kid != nil:
			v[f.Name] = f.Kid.jsonValue()
		case f.Kids != nil:
			l := make([]interface{}, len(f.Kids))
			for i, k := range f.Kids {
				l[i] = k.jsonValue()
			}

			v[f.Name] = l
		default:
			v[f.Name] = f.Value
		}
	}

	return v
}

// Dot renders a recorded tree as a Graphviz record graph.
func Dot(x ast.Node) ([]byte, error) {
	n, ok := x.(*Node)
	if !ok {
		return nil, errors.New("dump node expected, got %T", x)
	}

	b := []byte("digraph {\ngraph [ rankdir=\"LR\" ]; node [ shape=record ];\n")

	var edges []byte

	ids := map[*Node]int{}

	b, _ = dot(b, &edges, n, ids)

	b = append(b, edges...)
	b = append(b, "\n}\n"...)

	return b, nil
}

func dot(b []byte, edges *[]byte, n *Node, ids map[*Node]int) ([]byte, int) {
	id := len(ids)
	ids[n] = id

	labels := []string{escapeLabel(n.Kind)}

	link := func(field int, kid *Node) {
		var kidID int

		b, kidID = dot(b, edges, kid, ids)

		*edges = fmt.Appendf(*edges, "Node%d:<f%d> -> Node%d:<f0> ;\n", id, field, kidID)
	}

	for _, f := range n.Fields {
		switch {
		case f.Kid != nil:
			labels = append(labels, escapeLabel(f.Name))
			link(len(labels)-1, f.Kid)
		case f.Kids != nil:
			for i, k := range f.Kids {
				labels = append(labels, escapeLabel(fmt.Sprintf("%s[%d]", f.Name, i)))
				link(len(labels)-1, k)
			}
		default:
			labels = append(labels, escapeLabel(fmt.Sprintf("%s: %v", f.Name, f.Value)))
		}
	}

	cells := make([]string, len(labels))
	for i, l := range labels {
		cells[i] = fmt.Sprintf("<f%d> %s", i, l)
	}

	b = fmt.Appendf(b, "Node%d [ label=\"%s\" ] ;\n", id, strings.Join(cells, " | "))

	return b, id
}

var labelEscaper = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`, `<`, `\<`, `>`, `\>`, `|`, `\|`, `{`, `\{`, `}`, `\}`,
)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}
