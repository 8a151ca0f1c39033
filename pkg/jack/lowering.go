package jack

import (
	"fmt"

	"github.com/hmny-n2t/jackpipe/pkg/vm"
)

// ----------------------------------------------------------------------------
// Lowerer

// Lowerer walks a Program's AST and emits the VM intermediate language, one
// vm.Module per class. It interleaves code emission with the
// ScopeTable exactly the way the grammar in parser.go is driven: each
// statement/expression lowering routine both resolves names against the
// current scope and appends the VM operations that follow from the result.
type Lowerer struct {
	scopes *ScopeTable
	class  string

	nIf    uint
	nWhile uint
}

func NewLowerer() *Lowerer {
	return &Lowerer{scopes: NewScopeTable()}
}

// LowerProgram lowers every class into its own vm.Module, keyed by class
// name so 'static' addressing and per-file output naming downstream both
// have it available.
func (l *Lowerer) LowerProgram(prog Program) (vm.Program, error) {
	out := vm.Program{}
	for name, class := range prog {
		mod, err := l.LowerClass(class)
		if err != nil {
			return nil, err
		}
		out[name] = mod
	}
	return out, nil
}

// LowerClass lowers one class's field/static declarations and every
// subroutine body in source order.
func (l *Lowerer) LowerClass(class Class) (vm.Module, error) {
	l.class = class.Name
	l.scopes.ResetClass()
	for _, f := range class.Fields.Entries() {
		l.scopes.Define(f.Name, f.Kind, f.Type)
	}

	var mod vm.Module
	for _, sub := range class.Subroutines.Entries() {
		ops, err := l.lowerSubroutine(sub)
		if err != nil {
			return nil, err
		}
		mod = append(mod, ops...)
	}
	return mod, nil
}

// ----------------------------------------------------------------------------
// Subroutines

func (l *Lowerer) lowerSubroutine(sub Subroutine) ([]vm.Operation, error) {
	l.scopes.ResetSubroutine(sub.Kind == Method)
	for _, p := range sub.Params {
		l.scopes.Define(p.Name, KindArg, p.Type)
	}
	for _, v := range sub.Locals {
		l.scopes.Define(v.Name, KindLocal, v.Type)
	}
	l.nIf, l.nWhile = 0, 0

	ops := []vm.Operation{
		vm.FuncDecl{Name: l.class + "." + sub.Name, NumLocals: l.scopes.Count(KindLocal)},
	}

	switch sub.Kind {
	case Constructor:
		ops = append(ops,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: l.scopes.Count(KindField)},
			vm.FuncCallOp{Name: "Memory.alloc", NumArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	case Method:
		ops = append(ops,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	}

	body, err := l.lowerStatements(sub.Body)
	if err != nil {
		return nil, err
	}
	return append(ops, body...), nil
}

// segmentOf maps a variable's storage kind to the VM segment it lives in.
func segmentOf(kind VarKind) (vm.SegmentType, error) {
	switch kind {
	case KindStatic:
		return vm.Static, nil
	case KindField:
		return vm.This, nil
	case KindArg:
		return vm.Argument, nil
	case KindLocal:
		return vm.Local, nil
	default:
		return "", fmt.Errorf("jack: unknown variable kind %v", kind)
	}
}

// ----------------------------------------------------------------------------
// Statements

func (l *Lowerer) lowerStatements(stmts []Statement) ([]vm.Operation, error) {
	var ops []vm.Operation
	for _, s := range stmts {
		out, err := l.lowerStatement(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, out...)
	}
	return ops, nil
}

func (l *Lowerer) lowerStatement(s Statement) ([]vm.Operation, error) {
	switch st := s.(type) {
	case LetStmt:
		return l.lowerLet(st)
	case IfStmt:
		return l.lowerIf(st)
	case WhileStmt:
		return l.lowerWhile(st)
	case DoStmt:
		return l.lowerDo(st)
	case ReturnStmt:
		return l.lowerReturn(st)
	default:
		return nil, fmt.Errorf("jack: unknown statement type %T", s)
	}
}

// lowerLet: a plain assignment resolves the target and pops straight into
// its segment slot; an array assignment spills the computed value through
// 'temp 0' because evaluating it may itself use 'pointer 1'.
func (l *Lowerer) lowerLet(s LetStmt) ([]vm.Operation, error) {
	v, idx, err := l.scopes.Resolve(s.Name)
	if err != nil {
		return nil, err
	}
	seg, err := segmentOf(v.Kind)
	if err != nil {
		return nil, err
	}

	if s.Index == nil {
		value, err := l.lowerExpression(s.Value)
		if err != nil {
			return nil, err
		}
		return append(value, vm.MemoryOp{Operation: vm.Pop, Segment: seg, Offset: idx}), nil
	}

	index, err := l.lowerExpression(s.Index)
	if err != nil {
		return nil, err
	}
	value, err := l.lowerExpression(s.Value)
	if err != nil {
		return nil, err
	}

	var ops []vm.Operation
	ops = append(ops, index...)
	ops = append(ops, vm.MemoryOp{Operation: vm.Push, Segment: seg, Offset: idx})
	ops = append(ops, vm.ArithmeticOp{Operation: vm.Add})
	ops = append(ops, value...)
	ops = append(ops,
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
	)
	return ops, nil
}

// lowerIf emits the if/else label layout, with a counter scoped to the
// current subroutine (reset in lowerSubroutine).
func (l *Lowerer) lowerIf(s IfStmt) ([]vm.Operation, error) {
	k := l.nIf
	l.nIf++
	trueLabel := fmt.Sprintf("IF_TRUE_%d", k)
	falseLabel := fmt.Sprintf("IF_FALSE_%d", k)
	endLabel := fmt.Sprintf("IF_END_%d", k)

	cond, err := l.lowerExpression(s.Cond)
	if err != nil {
		return nil, err
	}
	then, err := l.lowerStatements(s.Then)
	if err != nil {
		return nil, err
	}

	var ops []vm.Operation
	ops = append(ops, cond...)
	ops = append(ops,
		vm.GotoOp{Kind: vm.Conditional, Target: trueLabel},
		vm.GotoOp{Kind: vm.Unconditional, Target: falseLabel},
		vm.LabelDecl{Name: trueLabel},
	)
	ops = append(ops, then...)

	if s.Else == nil {
		ops = append(ops, vm.LabelDecl{Name: falseLabel})
		return ops, nil
	}

	elseBody, err := l.lowerStatements(s.Else)
	if err != nil {
		return nil, err
	}
	ops = append(ops, vm.GotoOp{Kind: vm.Unconditional, Target: endLabel})
	ops = append(ops, vm.LabelDecl{Name: falseLabel})
	ops = append(ops, elseBody...)
	ops = append(ops, vm.LabelDecl{Name: endLabel})
	return ops, nil
}

// lowerWhile emits the while loop's label layout.
func (l *Lowerer) lowerWhile(s WhileStmt) ([]vm.Operation, error) {
	k := l.nWhile
	l.nWhile++
	expLabel := fmt.Sprintf("WHILE_EXP_%d", k)
	endLabel := fmt.Sprintf("WHILE_END_%d", k)

	cond, err := l.lowerExpression(s.Cond)
	if err != nil {
		return nil, err
	}
	body, err := l.lowerStatements(s.Body)
	if err != nil {
		return nil, err
	}

	var ops []vm.Operation
	ops = append(ops, vm.LabelDecl{Name: expLabel})
	ops = append(ops, cond...)
	ops = append(ops, vm.ArithmeticOp{Operation: vm.Not})
	ops = append(ops, vm.GotoOp{Kind: vm.Conditional, Target: endLabel})
	ops = append(ops, body...)
	ops = append(ops, vm.GotoOp{Kind: vm.Unconditional, Target: expLabel})
	ops = append(ops, vm.LabelDecl{Name: endLabel})
	return ops, nil
}

// lowerDo discards the callee's return value.
func (l *Lowerer) lowerDo(s DoStmt) ([]vm.Operation, error) {
	call, err := l.lowerCall(s.Call)
	if err != nil {
		return nil, err
	}
	return append(call, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

// lowerReturn: a void return still pushes a dummy value, since every VM
// function call's contract is to leave exactly one value on the stack.
func (l *Lowerer) lowerReturn(s ReturnStmt) ([]vm.Operation, error) {
	if s.Value == nil {
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}
	value, err := l.lowerExpression(s.Value)
	if err != nil {
		return nil, err
	}
	return append(value, vm.ReturnOp{}), nil
}

// ----------------------------------------------------------------------------
// Expressions

var binaryOpEmit = map[BinaryOp]vm.ArithOpType{
	BinAdd: vm.Add, BinSub: vm.Sub, BinAnd: vm.And, BinOr: vm.Or,
	BinLt: vm.Lt, BinGt: vm.Gt, BinEq: vm.Eq,
}

func (l *Lowerer) lowerExpression(e Expression) ([]vm.Operation, error) {
	switch ex := e.(type) {
	case BinaryExpr:
		return l.lowerBinary(ex)
	case UnaryExpr:
		return l.lowerUnary(ex)
	case LiteralExpr:
		return l.lowerLiteral(ex)
	case VarExpr:
		return l.lowerVar(ex)
	case ArrayExpr:
		return l.lowerArrayAccess(ex)
	case FuncCallExpr:
		return l.lowerCall(ex)
	default:
		return nil, fmt.Errorf("jack: unknown expression type %T", e)
	}
}

// lowerBinary evaluates left-to-right with no operator precedence: '*' and
// '/' lower to OS calls rather than native VM operators.
func (l *Lowerer) lowerBinary(e BinaryExpr) ([]vm.Operation, error) {
	left, err := l.lowerExpression(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := l.lowerExpression(e.Right)
	if err != nil {
		return nil, err
	}

	var ops []vm.Operation
	ops = append(ops, left...)
	ops = append(ops, right...)

	switch e.Op {
	case BinMul:
		return append(ops, vm.FuncCallOp{Name: "Math.multiply", NumArgs: 2}), nil
	case BinDiv:
		return append(ops, vm.FuncCallOp{Name: "Math.divide", NumArgs: 2}), nil
	}

	arith, ok := binaryOpEmit[e.Op]
	if !ok {
		return nil, fmt.Errorf("jack: unknown binary operator %v", e.Op)
	}
	return append(ops, vm.ArithmeticOp{Operation: arith}), nil
}

func (l *Lowerer) lowerUnary(e UnaryExpr) ([]vm.Operation, error) {
	operand, err := l.lowerExpression(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case UnaryNeg:
		return append(operand, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case UnaryNot:
		return append(operand, vm.ArithmeticOp{Operation: vm.Not}), nil
	default:
		return nil, fmt.Errorf("jack: unknown unary operator %v", e.Op)
	}
}

func (l *Lowerer) lowerLiteral(e LiteralExpr) ([]vm.Operation, error) {
	switch e.Kind {
	case LiteralInt:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: e.IntVal}}, nil
	case LiteralString:
		return l.lowerStringLiteral(e.Str), nil
	case LiteralTrue:
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ArithmeticOp{Operation: vm.Not},
		}, nil
	case LiteralFalse, LiteralNull:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil
	case LiteralThis:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	default:
		return nil, fmt.Errorf("jack: unknown literal kind %v", e.Kind)
	}
}

// lowerStringLiteral allocates via 'String.new', then appends one code unit
// at a time via 'String.appendChar'.
func (l *Lowerer) lowerStringLiteral(s string) []vm.Operation {
	ops := []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(s))},
		vm.FuncCallOp{Name: "String.new", NumArgs: 1},
	}
	for i := 0; i < len(s); i++ {
		ops = append(ops,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(s[i])},
			vm.FuncCallOp{Name: "String.appendChar", NumArgs: 2},
		)
	}
	return ops
}

func (l *Lowerer) lowerVar(e VarExpr) ([]vm.Operation, error) {
	v, idx, err := l.scopes.Resolve(e.Name)
	if err != nil {
		return nil, err
	}
	seg, err := segmentOf(v.Kind)
	if err != nil {
		return nil, err
	}
	return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: seg, Offset: idx}}, nil
}

// lowerArrayAccess handles the 'a[i]' term: compute the address, redirect
// 'that' to it, and push the pointed-at value.
func (l *Lowerer) lowerArrayAccess(e ArrayExpr) ([]vm.Operation, error) {
	index, err := l.lowerExpression(e.Index)
	if err != nil {
		return nil, err
	}
	v, idx, err := l.scopes.Resolve(e.Name)
	if err != nil {
		return nil, err
	}
	seg, err := segmentOf(v.Kind)
	if err != nil {
		return nil, err
	}

	var ops []vm.Operation
	ops = append(ops, index...)
	ops = append(ops,
		vm.MemoryOp{Operation: vm.Push, Segment: seg, Offset: idx},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	)
	return ops, nil
}

// lowerCall handles the three call shapes, disambiguated by whether the
// receiver text resolves in the current scope.
func (l *Lowerer) lowerCall(e FuncCallExpr) ([]vm.Operation, error) {
	if e.Receiver == "" {
		args, err := l.lowerArgs(e.Args)
		if err != nil {
			return nil, err
		}
		ops := []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}
		ops = append(ops, args...)
		ops = append(ops, vm.FuncCallOp{Name: l.class + "." + e.Name, NumArgs: uint16(len(e.Args) + 1)})
		return ops, nil
	}

	if l.scopes.Contains(e.Receiver) {
		v, idx, err := l.scopes.Resolve(e.Receiver)
		if err != nil {
			return nil, err
		}
		if v.Type.Kind != TypeClass {
			return nil, fmt.Errorf("jack: %q is not an object, cannot call %q on it", e.Receiver, e.Name)
		}
		seg, err := segmentOf(v.Kind)
		if err != nil {
			return nil, err
		}

		args, err := l.lowerArgs(e.Args)
		if err != nil {
			return nil, err
		}
		ops := []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: seg, Offset: idx}}
		ops = append(ops, args...)
		ops = append(ops, vm.FuncCallOp{Name: v.Type.ClassName + "." + e.Name, NumArgs: uint16(len(e.Args) + 1)})
		return ops, nil
	}

	args, err := l.lowerArgs(e.Args)
	if err != nil {
		return nil, err
	}
	return append(args, vm.FuncCallOp{Name: e.Receiver + "." + e.Name, NumArgs: uint16(len(e.Args))}), nil
}

func (l *Lowerer) lowerArgs(args []Expression) ([]vm.Operation, error) {
	var ops []vm.Operation
	for _, a := range args {
		out, err := l.lowerExpression(a)
		if err != nil {
			return nil, err
		}
		ops = append(ops, out...)
	}
	return ops, nil
}
