package dump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/rbc/compiler/parse"
)

const src = `
v[1] 10, 20;
main() {
	extrn v, putnumb;
	auto i;
	i = 0;
	while (i < 2) putnumb(v[i++]);
}
`

// The parser does not care about the node representation: building through
// the recording Builder records every node kind the program contains.
func TestRecord(t *testing.T) {
	x, err := parse.Parse(context.Background(), []byte(src), New())
	require.NoError(t, err)

	root := x.(*Node)
	assert.Equal(t, "Program", root.Kind)
	require.Len(t, root.Fields, 1)
	require.Len(t, root.Fields[0].Kids, 2)

	kinds := map[string]int{}
	count(root, kinds)

	for _, kind := range []string{
		"VectorDefinition", "FunctionDefinition", "ExtrnStmt", "AutoStmt",
		"WhileStmt", "BinaryExpr", "IndexExpr", "CallExpr", "UnaryExpr",
		"AssignExpr", "NameExpr", "NumericExpr",
	} {
		assert.NotZero(t, kinds[kind], kind)
	}
}

func count(n *Node, kinds map[string]int) {
	kinds[n.Kind]++

	for _, f := range n.Fields {
		if f.Kid != nil {
			count(f.Kid, kinds)
		}

		for _, k := range f.Kids {
			count(k, kinds)
		}
	}
}

func TestJSON(t *testing.T) {
	x, err := parse.Parse(context.Background(), []byte(src), New())
	require.NoError(t, err)

	b, err := JSON(x)
	require.NoError(t, err)

	assert.Contains(t, string(b), `"_type": "Program"`)
	assert.Contains(t, string(b), `"_type": "WhileStmt"`)
	assert.Contains(t, string(b), `"name": "putnumb"`)
}

func TestDot(t *testing.T) {
	x, err := parse.Parse(context.Background(), []byte(src), New())
	require.NoError(t, err)

	b, err := Dot(x)
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, "digraph {")
	assert.Contains(t, s, "shape=record")
	assert.Contains(t, s, "Node0")
	assert.Contains(t, s, "->")
}
