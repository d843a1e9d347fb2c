package parse

import (
	"context"
	"fmt"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler/ast"
)

type (
	// State is a single parse over one or more source files. Nodes are
	// constructed through the injected ast.Builder, so the parser has no
	// opinion on the node representation.
	State struct {
		b []byte // all files concatenated

		build ast.Builder

		files []file
	}

	file struct {
		name string
		base int
		size int
	}

	// Error is a syntax error with the byte position it occurred at.
	Error struct {
		Pos int
		Err error
	}
)

func ParseFile(ctx context.Context, name string, build ast.Builder) (ast.Node, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	s := New(build)
	s.AddFile(ctx, name, data)

	return s.Parse(ctx)
}

func Parse(ctx context.Context, text []byte, build ast.Builder) (ast.Node, error) {
	s := New(build)
	s.AddFile(ctx, "", text)

	return s.Parse(ctx)
}

func New(build ast.Builder) *State {
	return &State{
		build: build,
	}
}

func (s *State) AddFile(ctx context.Context, name string, text []byte) {
	f := file{
		name: name,
		base: len(s.b),
		size: len(text),
	}

	s.b = append(s.b, text...)

	s.files = append(s.files, f)
}

// Parse consumes the whole input as a B program.
func (s *State) Parse(ctx context.Context) (x ast.Node, err error) {
	x, i, err := s.parseProgram(ctx, 0)
	if err != nil {
		return nil, wrapPos(err, i)
	}

	tlog.SpanFromContext(ctx).Printw("parsed program", "files", len(s.files), "size", len(s.b))

	return x, nil
}

func wrapPos(err error, i int) error {
	if _, ok := err.(Error); ok {
		return err
	}

	return NewError(i, err)
}

func NewError(pos int, err error) Error {
	return Error{
		Pos: pos,
		Err: err,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("at pos 0x%x: %v", e.Pos, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
