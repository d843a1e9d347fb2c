package lower

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler/ast"
)

type (
	swCase struct {
		val int64
		blk *ir.Block
	}

	switchCtx struct {
		cases  []swCase
		def    *ir.Block
		blocks map[ast.Node]*ir.Block
	}

	// GotoError is a goto whose target is not a label of the current
	// function.
	GotoError struct {
		Label string
	}
)

// ErrBreakOutside is a break statement with no enclosing loop or switch.
var ErrBreakOutside = errors.New("break outside of a loop or switch")

func (s *state) lowerFunc(ctx context.Context, d *ast.FuncDef, f *ir.Func) (err error) {
	tlog.SpanFromContext(ctx).Printw("lower func", "name", d.Name, "params", len(d.Params))

	s.f = f
	s.b = f.NewBlock("")
	s.scope = NewScope(s.modscope)
	s.labels = make(map[string]*ir.Block)
	s.breaks = nil
	s.swtch = nil
	s.autos = make(map[*ast.Auto][]LValue)

	defer func() {
		s.f, s.b, s.scope = nil, nil, nil
	}()

	// parameters live in stack cells so they are ordinary lvalues
	for _, p := range f.Params {
		a := s.b.NewAlloca(s.wordT)
		a.Align = ir.Align(s.wordBytes)

		s.b.NewStore(p, a)

		err = s.scope.Define(p.Name(), cell{ptr: a})
		if err != nil {
			return err
		}
	}

	err = s.prepass(ctx, d.Body)
	if err != nil {
		return err
	}

	err = s.lowerStmt(ctx, d.Body)
	if err != nil {
		return err
	}

	// control which reaches the end returns 0; stranded blocks after an
	// explicit transfer get the same epilogue
	for _, b := range f.Blocks {
		if b.Term == nil {
			b.NewRet(s.wordConst(0))
		}
	}

	return nil
}

// prepass walks a function body before emission, creating entry-block cells
// for every auto declaration and a block for every label, so both forward
// gotos and autos re-entered through loops behave.
func (s *state) prepass(ctx context.Context, x ast.Node) (err error) {
	switch x := x.(type) {
	case *ast.Compound:
		for _, st := range x.Stmts {
			err = s.prepass(ctx, st)
			if err != nil {
				return err
			}
		}
	case *ast.If:
		err = s.prepass(ctx, x.Then)
		if err != nil {
			return err
		}

		if x.Else != nil {
			err = s.prepass(ctx, x.Else)
		}
	case *ast.While:
		err = s.prepass(ctx, x.Body)
	case *ast.Switch:
		err = s.prepass(ctx, x.Body)
	case *ast.Case:
		err = s.prepass(ctx, x.Body)
	case *ast.Label:
		if _, ok := s.labels[x.Name]; ok {
			return DuplicateError{Name: x.Name}
		}

		s.labels[x.Name] = s.f.NewBlock("")

		err = s.prepass(ctx, x.Body)
	case *ast.Extrn:
		err = s.prepass(ctx, x.Body)
	case *ast.Auto:
		cells := make([]LValue, len(x.Decls))

		for i, d := range x.Decls {
			cells[i], err = s.autoCell(d)
			if err != nil {
				return err
			}
		}

		s.autos[x] = cells

		err = s.prepass(ctx, x.Body)
	}

	return err
}

// autoCell allocates the entry-block storage of one auto declarator. A
// vector gets its cells plus a word holding the word-index of the first one.
func (s *state) autoCell(d ast.AutoDecl) (LValue, error) {
	a := s.b.NewAlloca(s.wordT)
	a.Align = ir.Align(s.wordBytes)

	if d.Size == nil {
		return cell{ptr: a}, nil
	}

	max, err := constValue(d.Size)
	if err != nil {
		return nil, errors.Wrap(err, "%v", d.Name)
	}

	vec := s.b.NewAlloca(types.NewArray(uint64(max+1), s.wordT))
	vec.Align = ir.Align(s.wordBytes)

	s.b.NewStore(s.ptrToWord(vec), a)

	return cell{ptr: a}, nil
}

func (s *state) lowerStmt(ctx context.Context, x ast.Node) (err error) {
	switch x := x.(type) {
	case *ast.Compound:
		for _, st := range x.Stmts {
			err = s.lowerStmt(ctx, st)
			if err != nil {
				return err
			}
		}

		return nil
	case *ast.Null:
		return nil
	case *ast.ExprStmt:
		_, err = s.rvalue(ctx, x.X)

		return err
	case *ast.If:
		return s.lowerIf(ctx, x)
	case *ast.While:
		return s.lowerWhile(ctx, x)
	case *ast.Return:
		var v value.Value = s.wordConst(0)

		if x.X != nil {
			rv, err := s.rvalue(ctx, x.X)
			if err != nil {
				return err
			}

			v = rv.v
		}

		s.b.NewRet(v)
		s.b = s.f.NewBlock("")

		return nil
	case *ast.Break:
		if len(s.breaks) == 0 {
			return ErrBreakOutside
		}

		s.b.NewBr(s.breaks[len(s.breaks)-1])
		s.b = s.f.NewBlock("")

		return nil
	case *ast.Goto:
		return s.lowerGoto(ctx, x)
	case *ast.Label:
		blk := s.labels[x.Name]

		s.b.NewBr(blk)
		s.b = blk

		return s.lowerStmt(ctx, x.Body)
	case *ast.Switch:
		return s.lowerSwitch(ctx, x)
	case *ast.Case:
		return s.lowerCase(ctx, x)
	case *ast.Auto:
		cells := s.autos[x]

		s.scope = NewScope(s.scope)
		defer func() { s.scope = s.scope.prev }()

		for i, d := range x.Decls {
			err = s.scope.Define(d.Name, cells[i])
			if err != nil {
				return err
			}
		}

		return s.lowerStmt(ctx, x.Body)
	case *ast.Extrn:
		s.scope = NewScope(s.scope)
		defer func() { s.scope = s.scope.prev }()

		for _, name := range x.Names {
			if name == bytesPerWord {
				continue // builtin, not a symbol
			}

			err = s.scope.Define(name, &lazy{name: name, scope: s.modscope})
			if err != nil {
				return err
			}
		}

		return s.lowerStmt(ctx, x.Body)
	default:
		return errors.New("statement expected, got %T", x)
	}
}

func (s *state) lowerIf(ctx context.Context, x *ast.If) (err error) {
	cond, err := s.rvalue(ctx, x.Cond)
	if err != nil {
		return err
	}

	then := s.f.NewBlock("")
	merge := s.f.NewBlock("")
	els := merge

	if x.Else != nil {
		els = s.f.NewBlock("")
	}

	s.b.NewCondBr(s.truth(cond.v), then, els)

	s.b = then

	err = s.lowerStmt(ctx, x.Then)
	if err != nil {
		return err
	}

	if s.b.Term == nil {
		s.b.NewBr(merge)
	}

	if x.Else != nil {
		s.b = els

		err = s.lowerStmt(ctx, x.Else)
		if err != nil {
			return err
		}

		if s.b.Term == nil {
			s.b.NewBr(merge)
		}
	}

	s.b = merge

	return nil
}

func (s *state) lowerWhile(ctx context.Context, x *ast.While) (err error) {
	header := s.f.NewBlock("")
	body := s.f.NewBlock("")
	exit := s.f.NewBlock("")

	s.b.NewBr(header)
	s.b = header

	cond, err := s.rvalue(ctx, x.Cond)
	if err != nil {
		return err
	}

	s.b.NewCondBr(s.truth(cond.v), body, exit)

	s.b = body
	s.breaks = append(s.breaks, exit)

	err = s.lowerStmt(ctx, x.Body)

	s.breaks = s.breaks[:len(s.breaks)-1]
	if err != nil {
		return err
	}

	if s.b.Term == nil {
		s.b.NewBr(header)
	}

	s.b = exit

	return nil
}

func (s *state) lowerGoto(ctx context.Context, x *ast.Goto) error {
	name, ok := x.Label.(*ast.Name)
	if !ok {
		return GotoError{Label: fmt.Sprintf("%T", x.Label)}
	}

	blk, ok := s.labels[name.Ident]
	if !ok {
		return GotoError{Label: name.Ident}
	}

	s.b.NewBr(blk)
	s.b = s.f.NewBlock("")

	return nil
}

// lowerSwitch evaluates the switch value, then compares it against each case
// constant in source order. Cases are labels: control entering a case body
// continues into the next statement until a break or the end of the switch.
func (s *state) lowerSwitch(ctx context.Context, x *ast.Switch) (err error) {
	cond, err := s.rvalue(ctx, x.Cond)
	if err != nil {
		return err
	}

	sw := &switchCtx{
		blocks: make(map[ast.Node]*ir.Block),
	}

	err = s.casePrepass(ctx, x.Body, sw)
	if err != nil {
		return err
	}

	exit := s.f.NewBlock("")

	for _, c := range sw.cases {
		next := s.f.NewBlock("")

		eq := s.b.NewICmp(enum.IPredEQ, cond.v, s.wordConst(c.val))
		s.b.NewCondBr(eq, c.blk, next)

		s.b = next
	}

	if sw.def != nil {
		s.b.NewBr(sw.def)
	} else {
		s.b.NewBr(exit)
	}

	// the body head is only reachable through a case label
	s.b = s.f.NewBlock("")

	prev := s.swtch
	s.swtch = sw
	s.breaks = append(s.breaks, exit)

	err = s.lowerStmt(ctx, x.Body)

	s.breaks = s.breaks[:len(s.breaks)-1]
	s.swtch = prev
	if err != nil {
		return err
	}

	if s.b.Term == nil {
		s.b.NewBr(exit)
	}

	s.b = exit

	return nil
}

// casePrepass collects the case constants of one switch body in source
// order. Nested switches keep their own cases.
func (s *state) casePrepass(ctx context.Context, x ast.Node, sw *switchCtx) (err error) {
	switch x := x.(type) {
	case *ast.Compound:
		for _, st := range x.Stmts {
			err = s.casePrepass(ctx, st, sw)
			if err != nil {
				return err
			}
		}
	case *ast.Case:
		blk := s.f.NewBlock("")
		sw.blocks[x] = blk

		if x.Default {
			if sw.def != nil {
				return errors.New("duplicate default case")
			}

			sw.def = blk
		} else {
			val, err := constValue(x.Value)
			if err != nil {
				return errors.Wrap(err, "case value")
			}

			sw.cases = append(sw.cases, swCase{val: val, blk: blk})
		}

		err = s.casePrepass(ctx, x.Body, sw)
	case *ast.If:
		err = s.casePrepass(ctx, x.Then, sw)
		if err != nil {
			return err
		}

		if x.Else != nil {
			err = s.casePrepass(ctx, x.Else, sw)
		}
	case *ast.While:
		err = s.casePrepass(ctx, x.Body, sw)
	case *ast.Label:
		err = s.casePrepass(ctx, x.Body, sw)
	case *ast.Auto:
		err = s.casePrepass(ctx, x.Body, sw)
	case *ast.Extrn:
		err = s.casePrepass(ctx, x.Body, sw)
	}

	return err
}

func (s *state) lowerCase(ctx context.Context, x *ast.Case) error {
	if s.swtch == nil {
		return errors.New("case outside of a switch")
	}

	blk, ok := s.swtch.blocks[x]
	if !ok {
		return errors.New("case not collected by the switch prepass")
	}

	if s.b.Term == nil {
		s.b.NewBr(blk) // fall through from the preceding statement
	}

	s.b = blk

	return s.lowerStmt(ctx, x.Body)
}

func (e GotoError) Error() string {
	return fmt.Sprintf("goto target is not a label of this function: %v", e.Label)
}
