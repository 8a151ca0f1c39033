package jack

import "github.com/hmny-n2t/jackpipe/pkg/diagnostic"

// ----------------------------------------------------------------------------
// Symbol Table

// entry is one resolved binding: the Variable as declared plus its dense,
// per-kind index (the "which local/argument/field/static slot" number the VM
// segment offset is built from).
type entry struct {
	Variable
	Index uint16
}

// classScope holds STATIC and FIELD declarations for one class. It persists
// for the whole class (every subroutine of the class shares it), unlike
// subroutineScope which is reset per-subroutine.
type classScope struct {
	statics map[string]entry
	fields  map[string]entry
	nStatic uint16
	nField  uint16
}

func newClassScope() *classScope {
	return &classScope{statics: map[string]entry{}, fields: map[string]entry{}}
}

// subroutineScope holds ARG and VAR declarations for the subroutine
// currently being compiled.
type subroutineScope struct {
	args   map[string]entry
	locals map[string]entry
	nArg   uint16
	nLocal uint16
}

func newSubroutineScope() *subroutineScope {
	return &subroutineScope{args: map[string]entry{}, locals: map[string]entry{}}
}

// ScopeTable is the two-level symbol table: one class-scope table
// (STATIC, FIELD) that lives for the whole class, and one subroutine-scope
// table (ARG, VAR) that is discarded and rebuilt for every subroutine.
//
// Lookup order on Resolve is subroutine-scope first (VAR, then ARG), then
// class-scope (FIELD, then STATIC) — a local declaration shadows a field or
// static of the same name.
type ScopeTable struct {
	class *classScope
	sub   *subroutineScope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{class: newClassScope()}
}

// ResetClass discards any previous class-scope bindings, starting a fresh
// STATIC/FIELD table.
func (st *ScopeTable) ResetClass() {
	st.class = newClassScope()
}

// ResetSubroutine discards any previous subroutine-scope bindings. When
// isMethod is true, argument index 0 is reserved for the implicit 'this'
// receiver (never assigned a surface name, so Resolve can't see it) — the
// first declared parameter lands at argument index 1.
func (st *ScopeTable) ResetSubroutine(isMethod bool) {
	st.sub = newSubroutineScope()
	if isMethod {
		st.sub.nArg = 1
	}
}

// Define registers a new binding in the scope matching kind's level (STATIC
// and FIELD go to class scope, ARG and VAR go to subroutine scope) and
// returns its freshly assigned dense index.
func (st *ScopeTable) Define(name string, kind VarKind, dt DataType) uint16 {
	v := Variable{Name: name, Kind: kind, Type: dt}
	switch kind {
	case KindStatic:
		idx := st.class.nStatic
		st.class.statics[name] = entry{v, idx}
		st.class.nStatic++
		return idx
	case KindField:
		idx := st.class.nField
		st.class.fields[name] = entry{v, idx}
		st.class.nField++
		return idx
	case KindArg:
		idx := st.sub.nArg
		st.sub.args[name] = entry{v, idx}
		st.sub.nArg++
		return idx
	case KindLocal:
		idx := st.sub.nLocal
		st.sub.locals[name] = entry{v, idx}
		st.sub.nLocal++
		return idx
	default:
		panic("jack: Define called with unknown VarKind")
	}
}

// Count returns the number of bindings registered so far for 'kind' —
// callers use Count(KindField) for the constructor's 'push n, call
// Memory.alloc 1' prologue and Count(KindLocal) for the function
// declaration's local-variable count.
func (st *ScopeTable) Count(kind VarKind) uint16 {
	switch kind {
	case KindStatic:
		return st.class.nStatic
	case KindField:
		return st.class.nField
	case KindArg:
		return st.sub.nArg
	case KindLocal:
		return st.sub.nLocal
	default:
		panic("jack: Count called with unknown VarKind")
	}
}

// Resolve looks up 'name', searching subroutine scope (VAR then ARG) before
// class scope (FIELD then STATIC), and reports diagnostic.UndefinedVariable
// if no declaration is visible.
func (st *ScopeTable) Resolve(name string) (Variable, uint16, error) {
	if st.sub != nil {
		if e, ok := st.sub.locals[name]; ok {
			return e.Variable, e.Index, nil
		}
		if e, ok := st.sub.args[name]; ok {
			return e.Variable, e.Index, nil
		}
	}
	if e, ok := st.class.fields[name]; ok {
		return e.Variable, e.Index, nil
	}
	if e, ok := st.class.statics[name]; ok {
		return e.Variable, e.Index, nil
	}
	return Variable{}, 0, diagnostic.New(diagnostic.UndefinedVariable, name,
		"no declaration of %q is visible in this scope", name)
}

// Contains reports whether 'name' resolves to anything visible right now,
// without erroring — the Lowerer uses this to tell a call through a variable
// ('p.getX()') from a class-qualified one ('Memory.alloc(1)').
func (st *ScopeTable) Contains(name string) bool {
	_, _, err := st.Resolve(name)
	return err == nil
}
