package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/rbc/compiler/ast"
)

func parseOne(t *testing.T, src string) ast.Node {
	t.Helper()

	x, err := Parse(context.Background(), []byte(src), ast.NewTree(8))
	require.NoError(t, err)

	return x
}

// mainBody digs out the statement list of `main(){ ... }`.
func mainBody(t *testing.T, x ast.Node) []ast.Node {
	t.Helper()

	p := x.(*ast.Program)
	require.NotEmpty(t, p.Defs)

	f := p.Defs[0].(*ast.FuncDef)

	return f.Body.(*ast.Compound).Stmts
}

func TestProgramShapes(t *testing.T) {
	x := parseOne(t, `
		a 23;
		v[2] 1, 2, 3;
		w[];
		greeting "hello";
		main() {
			return;
		}
	`)

	p := x.(*ast.Program)
	require.Len(t, p.Defs, 5)

	a := p.Defs[0].(*ast.SimpleDef)
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, int64(23), a.Ival.(*ast.Number).Value)

	v := p.Defs[1].(*ast.VectorDef)
	assert.Equal(t, int64(2), v.MaxIdx.(*ast.Number).Value)
	assert.Len(t, v.Ivals, 3)

	w := p.Defs[2].(*ast.VectorDef)
	assert.Nil(t, w.MaxIdx)
	assert.Empty(t, w.Ivals)

	g := p.Defs[3].(*ast.SimpleDef)
	assert.Equal(t, []byte("hello\x04"), g.Ival.(*ast.String).Bytes)

	f := p.Defs[4].(*ast.FuncDef)
	assert.Equal(t, "main", f.Name)
	assert.Empty(t, f.Params)
}

func TestAssignOpLexing(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ a = -b; a=-b; a =- b; a === b; a =<< b; }`))
	require.Len(t, stmts, 5)

	ops := []string{"", "-", "-", "==", "<<"}

	for i, st := range stmts {
		as := st.(*ast.ExprStmt).X.(*ast.Assign)
		assert.Equal(t, ops[i], as.Op, "stmt %d", i)
	}

	// plain assignment of a negation keeps the unary minus
	neg := stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	u := neg.Rhs.(*ast.Unary)
	assert.Equal(t, "-", u.Op)
}

func TestPrecedence(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ x = 2*4+5*3; y = a == b & c; }`))

	x := stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	add := x.Rhs.(*ast.Binary)
	assert.Equal(t, "+", add.Op)
	assert.Equal(t, "*", add.L.(*ast.Binary).Op)
	assert.Equal(t, "*", add.R.(*ast.Binary).Op)

	y := stmts[1].(*ast.ExprStmt).X.(*ast.Assign)
	and := y.Rhs.(*ast.Binary)
	assert.Equal(t, "&", and.Op)
	assert.Equal(t, "==", and.L.(*ast.Binary).Op)
}

func TestTernaryNesting(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ x = 0?2:3?4:5; }`))

	te := stmts[0].(*ast.ExprStmt).X.(*ast.Assign).Rhs.(*ast.Ternary)
	assert.Equal(t, int64(0), te.Cond.(*ast.Number).Value)
	assert.IsType(t, &ast.Ternary{}, te.Else)
}

func TestIndexAndCall(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ v[i++] = f(1, 'a', "s"); }`))

	as := stmts[0].(*ast.ExprStmt).X.(*ast.Assign)

	ix := as.Lhs.(*ast.Index)
	post := ix.Idx.(*ast.Unary)
	assert.Equal(t, "++", post.Op)
	assert.True(t, post.Postfix)

	call := as.Rhs.(*ast.Call)
	require.Len(t, call.Args, 3)
	assert.Equal(t, "f", call.Fn.(*ast.Name).Ident)
}

func TestAutoExtrnTail(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ auto i, v[2]; i=0; extrn putnumb; putnumb(i); }`))
	require.Len(t, stmts, 1)

	au := stmts[0].(*ast.Auto)
	require.Len(t, au.Decls, 2)
	assert.Equal(t, "i", au.Decls[0].Name)
	assert.Nil(t, au.Decls[0].Size)
	assert.Equal(t, int64(2), au.Decls[1].Size.(*ast.Number).Value)

	inner := au.Body.(*ast.Compound).Stmts
	require.Len(t, inner, 2)

	ex := inner[1].(*ast.Extrn)
	assert.Equal(t, []string{"putnumb"}, ex.Names)
	assert.Len(t, ex.Body.(*ast.Compound).Stmts, 1)
}

func TestLabelAndGoto(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ loop: x = x+1; goto loop; }`))
	require.Len(t, stmts, 2)

	lb := stmts[0].(*ast.Label)
	assert.Equal(t, "loop", lb.Name)

	gt := stmts[1].(*ast.Goto)
	assert.Equal(t, "loop", gt.Label.(*ast.Name).Ident)
}

func TestSwitchCases(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){
		switch(x) {
			case 0: f();
			case 'a': g(); break;
			default: h();
		}
	}`))

	sw := stmts[0].(*ast.Switch)
	body := sw.Body.(*ast.Compound).Stmts
	require.Len(t, body, 4) // break is a sibling of the cases

	c0 := body[0].(*ast.Case)
	assert.Equal(t, int64(0), c0.Value.(*ast.Number).Value)

	ca := body[1].(*ast.Case)
	assert.Equal(t, int64('a'), ca.Value.(*ast.Char).Value)

	assert.IsType(t, &ast.Break{}, body[2])

	def := body[3].(*ast.Case)
	assert.True(t, def.Default)
	assert.Nil(t, def.Value)
}

func TestCommentsAndNulls(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){
		extrn putchar;;
		/* a comment ** with asterisks **/
		putchar('a');
	}`))

	ex := stmts[0].(*ast.Extrn)
	inner := ex.Body.(*ast.Compound).Stmts
	require.Len(t, inner, 2)
	assert.IsType(t, &ast.Null{}, inner[0])
}

func TestStringEscapes(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){ x = "a*n*t*e*0*(*)***'*""; }`))

	str := stmts[0].(*ast.ExprStmt).X.(*ast.Assign).Rhs.(*ast.String)
	assert.Equal(t, []byte("a\n\t\x04\x00{}*'\"\x04"), str.Bytes)
}

func TestUnknownEscape(t *testing.T) {
	_, err := Parse(context.Background(), []byte(`main(){ x = '*q'; }`), ast.NewTree(8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown escape")
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Parse(context.Background(), []byte("main(){ x = ; }"), ast.NewTree(8))
	require.Error(t, err)

	var pe Error
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "at pos")
}

func TestNameCharacters(t *testing.T) {
	x := parseOne(t, `.x_1 5; main(){ extrn .x_1; y = .x_1; }`)

	p := x.(*ast.Program)
	assert.Equal(t, ".x_1", p.Defs[0].(*ast.SimpleDef).Name)
}

func TestWhileIfElse(t *testing.T) {
	stmts := mainBody(t, parseOne(t, `main(){
		while (i < 3) i =+ 1;
		if (i == 3) f(); else g();
	}`))

	w := stmts[0].(*ast.While)
	assert.Equal(t, "<", w.Cond.(*ast.Binary).Op)
	assert.Equal(t, "+", w.Body.(*ast.ExprStmt).X.(*ast.Assign).Op)

	fi := stmts[1].(*ast.If)
	assert.NotNil(t, fi.Else)
}
