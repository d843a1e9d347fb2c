package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler"
	"github.com/slowlang/rbc/compiler/dump"
	"github.com/slowlang/rbc/compiler/parse"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile B source files to LLVM IR for the backend",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "", "write IR to the file (default: source with .ll extension)"),
			cli.NewFlag("word,w", 8, "word size in bytes: 4 or 8"),
		},
	}

	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "parse B source and dump the ast",
		Action:      parseAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("format,f", "json", "dump format: json or dot"),
		},
	}

	app := &cli.Command{
		Name:        "rbc",
		Description: "rbc is a compiler for the B programming language",
		Commands: []*cli.Command{
			compileCmd,
			parseCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg := compiler.Config{
		WordBytes: c.Int("word"),
	}

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, cfg, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out := c.String("output")
		if out == "" {
			out = strings.TrimSuffix(a, filepath.Ext(a)) + ".ll"
		}

		err = os.WriteFile(out, obj, 0o644)
		if err != nil {
			return errors.Wrap(err, "write %v", out)
		}
	}

	return nil
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, err := parse.ParseFile(ctx, a, dump.New())
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		var b []byte

		switch f := c.String("format"); f {
		case "json":
			b, err = dump.JSON(x)
		case "dot":
			b, err = dump.Dot(x)
		default:
			return errors.New("unsupported dump format: %v", f)
		}

		if err != nil {
			return errors.Wrap(err, "dump %v", a)
		}

		fmt.Printf("%s\n", b)
	}

	return nil
}
