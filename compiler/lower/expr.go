package lower

import (
	"context"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"

	"github.com/slowlang/rbc/compiler/ast"
)

// bytesPerWord is a builtin rvalue, not a symbol.
const bytesPerWord = "__bytes_per_word"

// rval is a word value, optionally carrying the lvalue it was fetched from
// so `&` stays definable.
type rval struct {
	v      value.Value
	origin LValue
}

// lvalue emits an expression for its storage location.
func (s *state) lvalue(ctx context.Context, x ast.Node) (LValue, error) {
	switch x := x.(type) {
	case *ast.Name:
		if x.Ident == bytesPerWord {
			return nil, errors.Wrap(ErrNotLValue, "%v", x.Ident)
		}

		lv := s.scope.Lookup(x.Ident)
		if lv == nil {
			// an undeclared name resolves like an extrn would: to an
			// external symbol used by address
			lv = symbol{name: x.Ident, sym: s.extern(x.Ident)}
		}

		return lv, nil
	case *ast.Unary:
		if x.Op != "*" {
			return nil, errors.Wrap(ErrNotLValue, "unary %v", x.Op)
		}

		rv, err := s.rvalue(ctx, x.X)
		if err != nil {
			return nil, err
		}

		return cell{ptr: s.wordToPtr(rv.v, s.wordT)}, nil
	case *ast.Index:
		// a[b] is *(a + b)
		base, err := s.rvalue(ctx, x.X)
		if err != nil {
			return nil, err
		}

		idx, err := s.rvalue(ctx, x.Idx)
		if err != nil {
			return nil, err
		}

		addr := s.b.NewAdd(base.v, idx.v)

		return cell{ptr: s.wordToPtr(addr, s.wordT)}, nil
	default:
		return nil, errors.Wrap(ErrNotLValue, "%T", x)
	}
}

// rvalue emits an expression for its word value.
func (s *state) rvalue(ctx context.Context, x ast.Node) (rval, error) {
	switch x := x.(type) {
	case *ast.Number:
		return rval{v: s.wordConst(x.Value)}, nil
	case *ast.Char:
		return rval{v: s.wordConst(x.Value)}, nil
	case *ast.String:
		g := s.stringGlobal(x.Bytes)

		return rval{v: s.ptrToWord(g)}, nil
	case *ast.Name:
		if x.Ident == bytesPerWord {
			return rval{v: s.wordConst(s.wordBytes)}, nil
		}

		lv, err := s.lvalue(ctx, x)
		if err != nil {
			return rval{}, err
		}

		v, err := lv.Fetch(s)
		if err != nil {
			return rval{}, err
		}

		return rval{v: v, origin: lv}, nil
	case *ast.Unary:
		return s.lowerUnary(ctx, x)
	case *ast.Binary:
		l, err := s.rvalue(ctx, x.L)
		if err != nil {
			return rval{}, err
		}

		r, err := s.rvalue(ctx, x.R)
		if err != nil {
			return rval{}, err
		}

		v, err := s.binop(x.Op, l.v, r.v)

		return rval{v: v}, err
	case *ast.Ternary:
		return s.lowerTernary(ctx, x)
	case *ast.Assign:
		return s.lowerAssign(ctx, x)
	case *ast.Call:
		return s.lowerCall(ctx, x)
	case *ast.Index:
		lv, err := s.lvalue(ctx, x)
		if err != nil {
			return rval{}, err
		}

		v, err := lv.Fetch(s)
		if err != nil {
			return rval{}, err
		}

		return rval{v: v, origin: lv}, nil
	default:
		return rval{}, errors.New("expression expected, got %T", x)
	}
}

func (s *state) lowerUnary(ctx context.Context, x *ast.Unary) (rval, error) {
	switch x.Op {
	case "*":
		lv, err := s.lvalue(ctx, x)
		if err != nil {
			return rval{}, err
		}

		v, err := lv.Fetch(s)
		if err != nil {
			return rval{}, err
		}

		return rval{v: v, origin: lv}, nil
	case "&":
		lv, err := s.lvalue(ctx, x.X)
		if err != nil {
			return rval{}, err
		}

		v, err := lv.Addr(s)
		if err != nil {
			return rval{}, err
		}

		return rval{v: v}, nil
	case "++", "--":
		lv, err := s.lvalue(ctx, x.X)
		if err != nil {
			return rval{}, err
		}

		old, err := lv.Fetch(s)
		if err != nil {
			return rval{}, err
		}

		var v value.Value
		if x.Op == "++" {
			v = s.b.NewAdd(old, s.wordConst(1))
		} else {
			v = s.b.NewSub(old, s.wordConst(1))
		}

		err = lv.Store(s, v)
		if err != nil {
			return rval{}, err
		}

		if x.Postfix {
			return rval{v: old}, nil
		}

		return rval{v: v}, nil
	}

	rv, err := s.rvalue(ctx, x.X)
	if err != nil {
		return rval{}, err
	}

	switch x.Op {
	case "-":
		return rval{v: s.b.NewSub(s.wordConst(0), rv.v)}, nil
	case "~":
		return rval{v: s.b.NewXor(rv.v, s.wordConst(-1))}, nil
	case "!":
		eq := s.b.NewICmp(enum.IPredEQ, rv.v, s.wordConst(0))

		return rval{v: s.b.NewZExt(eq, s.wordT)}, nil
	default:
		return rval{}, errors.New("unary operator expected, got %q", x.Op)
	}
}

func (s *state) binop(op string, l, r value.Value) (value.Value, error) {
	switch op {
	case "+":
		return s.b.NewAdd(l, r), nil
	case "-":
		return s.b.NewSub(l, r), nil
	case "*":
		return s.b.NewMul(l, r), nil
	case "/":
		return s.b.NewSDiv(l, r), nil
	case "%":
		return s.b.NewSRem(l, r), nil
	case "&":
		return s.b.NewAnd(l, r), nil
	case "|":
		return s.b.NewOr(l, r), nil
	case "^":
		return s.b.NewXor(l, r), nil
	case "<<":
		return s.b.NewShl(l, r), nil
	case ">>":
		return s.b.NewAShr(l, r), nil
	}

	var pred enum.IPred

	switch op {
	case "==":
		pred = enum.IPredEQ
	case "!=":
		pred = enum.IPredNE
	case "<":
		pred = enum.IPredSLT
	case "<=":
		pred = enum.IPredSLE
	case ">":
		pred = enum.IPredSGT
	case ">=":
		pred = enum.IPredSGE
	default:
		return nil, errors.New("binary operator expected, got %q", op)
	}

	cmp := s.b.NewICmp(pred, l, r)

	return s.b.NewZExt(cmp, s.wordT), nil
}

// lowerTernary branches on the condition and joins the arm values with a
// phi. Only the taken arm is evaluated.
func (s *state) lowerTernary(ctx context.Context, x *ast.Ternary) (rval, error) {
	cond, err := s.rvalue(ctx, x.Cond)
	if err != nil {
		return rval{}, err
	}

	then := s.f.NewBlock("")
	els := s.f.NewBlock("")
	merge := s.f.NewBlock("")

	s.b.NewCondBr(s.truth(cond.v), then, els)

	s.b = then

	tv, err := s.rvalue(ctx, x.Then)
	if err != nil {
		return rval{}, err
	}

	tpred := s.b // arms may emit blocks of their own
	s.b.NewBr(merge)

	s.b = els

	ev, err := s.rvalue(ctx, x.Else)
	if err != nil {
		return rval{}, err
	}

	epred := s.b
	s.b.NewBr(merge)

	s.b = merge

	phi := s.b.NewPhi(ir.NewIncoming(tv.v, tpred), ir.NewIncoming(ev.v, epred))

	return rval{v: phi}, nil
}

func (s *state) lowerAssign(ctx context.Context, x *ast.Assign) (rval, error) {
	lv, err := s.lvalue(ctx, x.Lhs)
	if err != nil {
		return rval{}, err
	}

	rv, err := s.rvalue(ctx, x.Rhs)
	if err != nil {
		return rval{}, err
	}

	v := rv.v

	if x.Op != "" {
		old, err := lv.Fetch(s)
		if err != nil {
			return rval{}, err
		}

		v, err = s.binop(x.Op, old, rv.v)
		if err != nil {
			return rval{}, err
		}
	}

	err = lv.Store(s, v)
	if err != nil {
		return rval{}, err
	}

	return rval{v: v, origin: lv}, nil
}

// lowerCall fetches the callee as a word, converts the word-index to a
// function pointer of the call's arity, and calls it. Arguments are
// evaluated left to right.
func (s *state) lowerCall(ctx context.Context, x *ast.Call) (rval, error) {
	fn, err := s.rvalue(ctx, x.Fn)
	if err != nil {
		return rval{}, err
	}

	origin := fn.origin
	if lz, ok := origin.(*lazy); ok {
		origin = lz.resolved
	}

	if sym, ok := origin.(symbol); ok {
		if f, ok := sym.sym.(*ir.Func); ok && len(f.Params) != len(x.Args) {
			return rval{}, errors.New("%v takes %d arguments, called with %d", sym.name, len(f.Params), len(x.Args))
		}
	}

	args := make([]value.Value, len(x.Args))

	for i, a := range x.Args {
		rv, err := s.rvalue(ctx, a)
		if err != nil {
			return rval{}, err
		}

		args[i] = rv.v
	}

	paramT := make([]types.Type, len(x.Args))

	for i := range paramT {
		paramT[i] = s.wordT
	}

	sig := types.NewFunc(s.wordT, paramT...)
	addr := s.b.NewMul(fn.v, s.wordConst(s.wordBytes))
	fptr := s.b.NewIntToPtr(addr, types.NewPointer(sig))

	return rval{v: s.b.NewCall(fptr, args...)}, nil
}
