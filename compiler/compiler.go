package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler/ast"
	"github.com/slowlang/rbc/compiler/lower"
	"github.com/slowlang/rbc/compiler/parse"
)

// Config selects the compilation target shape. The zero value targets a
// 64-bit machine.
type Config struct {
	// WordBytes is the width of the B word and of a target pointer.
	WordBytes int
}

func (c Config) wordBytes() int {
	if c.WordBytes == 0 {
		return 8
	}

	return c.WordBytes
}

func CompileFile(ctx context.Context, cfg Config, name string) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, cfg, name, text)
}

// Compile lowers B source into textual LLVM IR for the backend.
func Compile(ctx context.Context, cfg Config, name string, text []byte) (obj []byte, err error) {
	st := parse.New(ast.NewTree(cfg.wordBytes()))

	st.AddFile(ctx, name, text)

	x, err := st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	m, err := lower.Lower(ctx, lower.Config{WordBytes: cfg.wordBytes()}, x)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	return []byte(m.String()), nil
}
