package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
)

type (
	// LValue is a handle to a word of storage: it can be fetched, stored
	// into, and its word-indexed address taken.
	LValue interface {
		Fetch(s *state) (value.Value, error)
		Store(s *state, v value.Value) error
		Addr(s *state) (value.Value, error)
	}

	// cell is storage behind a pointer: a stack slot or a global word.
	cell struct {
		ptr value.Value
	}

	// symbol is a function or an external symbol used by address. There is
	// no word of storage behind the name, so it cannot be assigned.
	symbol struct {
		name string
		sym  value.Value
	}

	// lazy defers a name to module scope so a function may use globals
	// defined further down the file. A name still unbound once the whole
	// module scope is populated becomes an external symbol declaration.
	lazy struct {
		name     string
		scope    *Scope
		resolved LValue
	}

	// Scope maps names to lvalues. Scopes stack; the innermost is searched
	// first.
	Scope struct {
		prev *Scope
		vars map[string]LValue
	}

	// DuplicateError is a name defined twice in one scope.
	DuplicateError struct {
		Name string
	}

	// UndefinedError is a name which could not be resolved at emit time.
	UndefinedError struct {
		Name string
	}
)

// ErrNotLValue is `&` or an assignment applied to a value with no storage.
var ErrNotLValue = errors.New("not an lvalue")

func NewScope(prev *Scope) *Scope {
	return &Scope{
		prev: prev,
		vars: make(map[string]LValue),
	}
}

func (sc *Scope) Define(name string, lv LValue) error {
	if _, ok := sc.vars[name]; ok {
		return DuplicateError{Name: name}
	}

	sc.vars[name] = lv

	return nil
}

// Lookup searches the scope stack outward. It returns nil if the name is not
// bound.
func (sc *Scope) Lookup(name string) LValue {
	for q := sc; q != nil; q = q.prev {
		if lv, ok := q.vars[name]; ok {
			return lv
		}
	}

	return nil
}

func (l cell) Fetch(s *state) (value.Value, error) {
	return s.b.NewLoad(s.wordT, l.ptr), nil
}

func (l cell) Store(s *state, v value.Value) error {
	s.b.NewStore(v, l.ptr)

	return nil
}

func (l cell) Addr(s *state) (value.Value, error) {
	return s.ptrToWord(l.ptr), nil
}

func (l symbol) Fetch(s *state) (value.Value, error) {
	return s.ptrToWord(l.sym), nil
}

func (l symbol) Store(s *state, v value.Value) error {
	return errors.Wrap(ErrNotLValue, "cannot assign to %v", l.name)
}

func (l symbol) Addr(s *state) (value.Value, error) {
	return s.ptrToWord(l.sym), nil
}

func (l *lazy) resolve(s *state) (LValue, error) {
	if l.resolved != nil {
		return l.resolved, nil
	}

	if lv := l.scope.Lookup(l.name); lv != nil {
		l.resolved = lv

		return lv, nil
	}

	l.resolved = symbol{
		name: l.name,
		sym:  s.extern(l.name),
	}

	return l.resolved, nil
}

func (l *lazy) Fetch(s *state) (value.Value, error) {
	lv, err := l.resolve(s)
	if err != nil {
		return nil, err
	}

	return lv.Fetch(s)
}

func (l *lazy) Store(s *state, v value.Value) error {
	lv, err := l.resolve(s)
	if err != nil {
		return err
	}

	return lv.Store(s, v)
}

func (l *lazy) Addr(s *state) (value.Value, error) {
	lv, err := l.resolve(s)
	if err != nil {
		return nil, err
	}

	return lv.Addr(s)
}

// extern declares an external word global for a name which is not defined in
// this translation unit. Runtime symbols resolve this way.
func (s *state) extern(name string) *ir.Global {
	if g, ok := s.externs[name]; ok {
		return g
	}

	g := s.m.NewGlobal(Mangle(name), s.wordT)
	g.Align = ir.Align(s.wordBytes)

	s.externs[name] = g

	return g
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("duplicate definition: %v", e.Name)
}

func (e UndefinedError) Error() string {
	return fmt.Sprintf("undefined name: %v", e.Name)
}
