package lower

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rbc/compiler/ast"
)

type (
	// Config selects the target shape. WordBytes is the pointer width and
	// the width of the B word; every address the emitted code manipulates is
	// a byte address divided by WordBytes.
	Config struct {
		WordBytes int
	}

	// state is the emit context threaded through one translation unit.
	state struct {
		m *ir.Module

		wordT     *types.IntType
		wordBytes int64

		modscope *Scope
		externs  map[string]*ir.Global
		fixups   []fixup
		strc     int

		// current function
		f      *ir.Func
		b      *ir.Block
		scope  *Scope
		labels map[string]*ir.Block
		breaks []*ir.Block
		swtch  *switchCtx
		autos  map[*ast.Auto][]LValue
	}

	// fixup initializes a global word with the word-indexed address of a
	// symbol. Such a value is not expressible as a relocation, so fixups
	// are applied by an emitted module constructor before b.main runs.
	fixup struct {
		dst   *ir.Global
		dstT  types.Type // pointee type of dst, for the element gep
		idx   int64      // cell index if dst is an array
		isArr bool

		sym  value.Value // resolved symbol, or
		name string      // a name resolved against module scope
	}
)

const initFuncName = "rbc.global_init"

// Mangle prefixes a B-visible symbol so it cannot collide with any C
// identifier.
func Mangle(name string) string {
	return "b." + name
}

// Lower translates a parsed program into an LLVM module.
func Lower(ctx context.Context, cfg Config, prog ast.Node) (m *ir.Module, err error) {
	if cfg.WordBytes == 0 {
		cfg.WordBytes = 8
	}
	if cfg.WordBytes != 4 && cfg.WordBytes != 8 {
		return nil, errors.New("unsupported word size: %d", cfg.WordBytes)
	}

	p, ok := prog.(*ast.Program)
	if !ok {
		return nil, errors.New("program expected, got %T", prog)
	}

	s := &state{
		m:         ir.NewModule(),
		wordT:     types.NewInt(uint64(cfg.WordBytes * 8)),
		wordBytes: int64(cfg.WordBytes),
		modscope:  NewScope(nil),
		externs:   make(map[string]*ir.Global),
	}

	// Populate the whole module scope first so bodies and initializers may
	// reference definitions further down the file.
	funcs := make(map[*ast.FuncDef]*ir.Func)

	for _, d := range p.Defs {
		switch d := d.(type) {
		case *ast.FuncDef:
			f, err := s.declareFunc(ctx, d)
			if err != nil {
				return nil, errors.Wrap(err, "%v", d.Name)
			}

			funcs[d] = f
		case *ast.SimpleDef:
			err = s.lowerSimpleDef(ctx, d)
			if err != nil {
				return nil, errors.Wrap(err, "%v", d.Name)
			}
		case *ast.VectorDef:
			err = s.lowerVectorDef(ctx, d)
			if err != nil {
				return nil, errors.Wrap(err, "%v", d.Name)
			}
		default:
			return nil, errors.New("definition expected, got %T", d)
		}
	}

	for _, d := range p.Defs {
		d, ok := d.(*ast.FuncDef)
		if !ok {
			continue
		}

		err = s.lowerFunc(ctx, d, funcs[d])
		if err != nil {
			return nil, errors.Wrap(err, "%v", d.Name)
		}
	}

	err = s.lowerFixups(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "global initializers")
	}

	tlog.SpanFromContext(ctx).Printw("lowered module", "globals", len(s.m.Globals), "funcs", len(s.m.Funcs))

	return s.m, nil
}

func (s *state) declareFunc(ctx context.Context, d *ast.FuncDef) (*ir.Func, error) {
	params := make([]*ir.Param, len(d.Params))

	for i, name := range d.Params {
		params[i] = ir.NewParam(name, s.wordT)
	}

	f := s.m.NewFunc(Mangle(d.Name), s.wordT, params...)

	// function addresses are word-indexed like any other, so functions keep
	// word alignment
	f.Align = ir.Align(s.wordBytes)

	err := s.modscope.Define(d.Name, symbol{name: d.Name, sym: f})
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (s *state) lowerSimpleDef(ctx context.Context, d *ast.SimpleDef) (err error) {
	init := constant.NewInt(s.wordT, 0)

	g := s.m.NewGlobalDef(Mangle(d.Name), init)
	g.Align = ir.Align(s.wordBytes)

	if d.Ival != nil {
		g.Init, err = s.ival(d.Ival, g, s.wordT, 0, false)
		if err != nil {
			return err
		}
	}

	return s.modscope.Define(d.Name, cell{ptr: g})
}

func (s *state) lowerVectorDef(ctx context.Context, d *ast.VectorDef) (err error) {
	cells := int64(len(d.Ivals))

	if d.MaxIdx != nil {
		max, err := constValue(d.MaxIdx)
		if err != nil {
			return err
		}

		// a vector of max index k has k+1 cells, but never fewer than its
		// initializers
		if max+1 > cells {
			cells = max + 1
		}
	}

	if cells == 0 {
		cells = 1
	}

	arrT := types.NewArray(uint64(cells), s.wordT)
	elems := make([]constant.Constant, cells)

	for i := range elems {
		elems[i] = constant.NewInt(s.wordT, 0)
	}

	data := s.m.NewGlobalDef("rbc.cells."+d.Name, constant.NewArray(arrT, elems...))
	data.Linkage = enum.LinkageInternal
	data.Align = ir.Align(s.wordBytes)

	for i, iv := range d.Ivals {
		elems[i], err = s.ival(iv, data, arrT, int64(i), true)
		if err != nil {
			return err
		}
	}

	data.Init = constant.NewArray(arrT, elems...)

	// the named global is a header holding the word-index of cell 0, so the
	// name behaves as a vector reference
	head := s.m.NewGlobalDef(Mangle(d.Name), constant.NewInt(s.wordT, 0))
	head.Align = ir.Align(s.wordBytes)

	s.fixups = append(s.fixups, fixup{dst: head, dstT: s.wordT, sym: data})

	return s.modscope.Define(d.Name, cell{ptr: head})
}

// ival resolves one global initializer. Constants initialize in place;
// strings and names require the address of a symbol as a word-index, which
// is patched in by the module constructor.
func (s *state) ival(x ast.Node, dst *ir.Global, dstT types.Type, idx int64, isArr bool) (constant.Constant, error) {
	switch x := x.(type) {
	case *ast.Number:
		return constant.NewInt(s.wordT, x.Value), nil
	case *ast.Char:
		return constant.NewInt(s.wordT, x.Value), nil
	case *ast.String:
		g := s.stringGlobal(x.Bytes)

		s.fixups = append(s.fixups, fixup{dst: dst, dstT: dstT, idx: idx, isArr: isArr, sym: g})

		return constant.NewInt(s.wordT, 0), nil
	case *ast.Name:
		s.fixups = append(s.fixups, fixup{dst: dst, dstT: dstT, idx: idx, isArr: isArr, name: x.Ident})

		return constant.NewInt(s.wordT, 0), nil
	default:
		return nil, errors.New("constant initializer expected, got %T", x)
	}
}

// stringGlobal emits an anonymous word-aligned byte array for a string
// literal. The bytes already carry the EOT terminator.
func (s *state) stringGlobal(b []byte) *ir.Global {
	g := s.m.NewGlobalDef(fmt.Sprintf("rbc.str.%d", s.strc), constant.NewCharArray(b))
	g.Linkage = enum.LinkageInternal
	g.Immutable = true
	g.Align = ir.Align(s.wordBytes)

	s.strc++

	return g
}

// lowerFixups emits the module constructor storing word-indexed symbol
// addresses into the globals which need them.
func (s *state) lowerFixups(ctx context.Context) error {
	if len(s.fixups) == 0 {
		return nil
	}

	f := s.m.NewFunc(initFuncName, types.Void)
	f.Linkage = enum.LinkageInternal

	s.f = f
	s.b = f.NewBlock("")

	for _, fx := range s.fixups {
		sym := fx.sym

		if sym == nil {
			lv := s.modscope.Lookup(fx.name)
			if lv == nil {
				return UndefinedError{Name: fx.name}
			}

			w, err := lv.Addr(s)
			if err != nil {
				return errors.Wrap(err, "%v", fx.name)
			}

			s.storeFixup(fx, w)

			continue
		}

		s.storeFixup(fx, s.ptrToWord(sym))
	}

	s.b.NewRet(nil)

	ctorT := types.NewStruct(types.I32, f.Typ, types.NewPointer(types.I8))

	ctors := s.m.NewGlobalDef("llvm.global_ctors", constant.NewArray(
		types.NewArray(1, ctorT),
		constant.NewStruct(ctorT,
			constant.NewInt(types.I32, 65535),
			f,
			constant.NewNull(types.NewPointer(types.I8)),
		),
	))
	ctors.Linkage = enum.LinkageAppending

	return nil
}

func (s *state) storeFixup(fx fixup, w value.Value) {
	dst := value.Value(fx.dst)

	if fx.isArr {
		dst = s.b.NewGetElementPtr(fx.dstT, fx.dst,
			constant.NewInt(types.I32, 0),
			constant.NewInt(types.I32, fx.idx),
		)
	}

	s.b.NewStore(w, dst)
}

// helpers

func (s *state) wordConst(v int64) *constant.Int {
	return constant.NewInt(s.wordT, v)
}

// wordToPtr converts a word-indexed address to a typed pointer. All data
// accesses go through here; lowerCall converts a callee word to a function
// pointer the same way.
func (s *state) wordToPtr(v value.Value, elem types.Type) value.Value {
	addr := s.b.NewMul(v, s.wordConst(s.wordBytes))

	return s.b.NewIntToPtr(addr, types.NewPointer(elem))
}

// ptrToWord converts a pointer to a word-indexed address. Everything is
// word-aligned, so the division is exact.
func (s *state) ptrToWord(p value.Value) value.Value {
	addr := s.b.NewPtrToInt(p, s.wordT)

	d := s.b.NewSDiv(addr, s.wordConst(s.wordBytes))
	d.Exact = true

	return d
}

// truth is the conditional test of a word.
func (s *state) truth(v value.Value) value.Value {
	return s.b.NewICmp(enum.IPredNE, v, s.wordConst(0))
}

func constValue(x ast.Node) (int64, error) {
	switch x := x.(type) {
	case *ast.Number:
		return x.Value, nil
	case *ast.Char:
		return x.Value, nil
	default:
		return 0, errors.New("constant expected, got %T", x)
	}
}
