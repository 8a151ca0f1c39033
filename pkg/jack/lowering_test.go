package jack_test

import (
	"testing"

	"github.com/hmny-n2t/jackpipe/pkg/jack"
	"github.com/hmny-n2t/jackpipe/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, className, src string) vm.Module {
	t.Helper()
	parser, err := jack.NewParser(className+".jack", src)
	require.NoError(t, err)
	class, err := parser.ParseClass()
	require.NoError(t, err)

	program, err := jack.NewLowerer().LowerProgram(jack.Program{className: class})
	require.NoError(t, err)
	return program[className]
}

func TestLowerMinimalEmptyClass(t *testing.T) {
	mod := compile(t, "A", `class A { function void main() { return; } }`)

	require.Equal(t, vm.FuncDecl{Name: "A.main", NumLocals: 0}, mod[0])
	require.Equal(t, vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}, mod[1])
	require.Equal(t, vm.ReturnOp{}, mod[2])
	assert.Len(t, mod, 3)
}

func TestLowerMethodReturningField(t *testing.T) {
	mod := compile(t, "P", `class P { field int x; method int get() { return x; } }`)

	assert.Equal(t, []vm.Operation{
		vm.FuncDecl{Name: "P.get", NumLocals: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 0},
		vm.ReturnOp{},
	}, mod)
}

func TestLowerArrayWriteSpillsThroughTemp(t *testing.T) {
	mod := compile(t, "W", `
		class W {
			function void run() {
				var Array a;
				var int i;
				let a[i + 1] = 42;
				return;
			}
		}
	`)

	// Skip the FuncDecl; only the array-write instruction sequence matters here.
	body := mod[1 : len(mod)-2]
	assert.Equal(t, []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 42},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
	}, body)
}

func TestLowerStringLiteral(t *testing.T) {
	mod := compile(t, "S", `class S { function void run() { do Output.printString("Hi"); return; } }`)

	assert.Equal(t, []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "String.new", NumArgs: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 72},
		vm.FuncCallOp{Name: "String.appendChar", NumArgs: 2},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 105},
		vm.FuncCallOp{Name: "String.appendChar", NumArgs: 2},
	}, mod[1:7])
}

func TestLowerIfElseLabels(t *testing.T) {
	mod := compile(t, "C", `
		class C {
			function void run() {
				var boolean x;
				var int y;
				if (x) {
					let y = 1;
				} else {
					let y = 2;
				}
				return;
			}
		}
	`)

	body := mod[1 : len(mod)-2]
	assert.Equal(t, []vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.GotoOp{Kind: vm.Conditional, Target: "IF_TRUE_0"},
		vm.GotoOp{Kind: vm.Unconditional, Target: "IF_FALSE_0"},
		vm.LabelDecl{Name: "IF_TRUE_0"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 1},
		vm.GotoOp{Kind: vm.Unconditional, Target: "IF_END_0"},
		vm.LabelDecl{Name: "IF_FALSE_0"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 1},
		vm.LabelDecl{Name: "IF_END_0"},
	}, body)
}

func TestLowerConstructorPrologue(t *testing.T) {
	mod := compile(t, "Point", `
		class Point {
			field int x, y;
			constructor Point new(int ax, int ay) {
				let x = ax;
				let y = ay;
				return this;
			}
		}
	`)

	require.Equal(t, vm.FuncDecl{Name: "Point.new", NumLocals: 0}, mod[0])
	assert.Equal(t, vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2}, mod[1])
	assert.Equal(t, vm.FuncCallOp{Name: "Memory.alloc", NumArgs: 1}, mod[2])
	assert.Equal(t, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0}, mod[3])
}

func TestLowerMethodCallDisambiguation(t *testing.T) {
	mod := compile(t, "Caller", `
		class Caller {
			method void run(Point p) {
				do p.getX();
				do Memory.alloc(1);
				do doIt();
				return;
			}
		}
	`)

	calls := []vm.Operation{}
	for _, op := range mod {
		if call, ok := op.(vm.FuncCallOp); ok {
			calls = append(calls, call)
		}
	}

	assert.Equal(t, []vm.Operation{
		vm.FuncCallOp{Name: "Point.getX", NumArgs: 1},
		vm.FuncCallOp{Name: "Memory.alloc", NumArgs: 1},
		vm.FuncCallOp{Name: "Caller.doIt", NumArgs: 1},
	}, calls)
}
