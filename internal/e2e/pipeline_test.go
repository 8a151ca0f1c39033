// Package e2e exercises the full Jack-to-assembly pipeline against small,
// self-contained fixtures kept inline (rather than drawn from an external
// course-materials tree), snapshotting the textual output of each stage.
package e2e

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/require"

	"github.com/hmny-n2t/jackpipe/pkg/asm"
	"github.com/hmny-n2t/jackpipe/pkg/jack"
	"github.com/hmny-n2t/jackpipe/pkg/vm"
)

func compileToVM(t *testing.T, className, source string) []string {
	t.Helper()

	parser, err := jack.NewParser(className+".jack", source)
	require.NoError(t, err)
	class, err := parser.ParseClass()
	require.NoError(t, err)

	program, err := jack.NewLowerer().LowerProgram(jack.Program{className: class})
	require.NoError(t, err)

	codegen := vm.NewCodeGenerator(program)
	compiled, err := codegen.Generate()
	require.NoError(t, err)
	return compiled[className]
}

func TestMinimalEmptyClassCompilesToVM(t *testing.T) {
	lines := compileToVM(t, "A", `class A { function void main() { return; } }`)
	snaps.MatchSnapshot(t, strings.Join(lines, "\n"))
}

func TestMethodReturningFieldCompilesToVM(t *testing.T) {
	lines := compileToVM(t, "P", `class P { field int x; method int get() { return x; } }`)
	snaps.MatchSnapshot(t, strings.Join(lines, "\n"))
}

func TestStringLiteralCompilesToVM(t *testing.T) {
	lines := compileToVM(t, "S", `
		class S {
			function void run() {
				do Output.printString("Hi");
				return;
			}
		}
	`)
	snaps.MatchSnapshot(t, strings.Join(lines, "\n"))
}

func TestIfElseCompilesToVM(t *testing.T) {
	lines := compileToVM(t, "C", `
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
	snaps.MatchSnapshot(t, strings.Join(lines, "\n"))
}

// TestCallSiteSchematicTranslatesToAssembly covers scenario 6: a 'call f 2'
// site inside function 'Foo.bar', translated all the way to Hack assembly,
// verifying the saved-frame push sequence and the per-call-site return label.
func TestCallSiteSchematicTranslatesToAssembly(t *testing.T) {
	program := vm.Program{
		"Foo": vm.Module{
			vm.FuncDecl{Name: "Foo.bar", NumLocals: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
			vm.FuncCallOp{Name: "f", NumArgs: 2},
			vm.ReturnOp{},
		},
	}

	lowerer := vm.NewLowerer()
	asmProgram, err := lowerer.Lower(program)
	require.NoError(t, err)

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	require.NoError(t, err)

	joined := strings.Join(compiled, "\n")
	require.True(t, strings.Contains(joined, "Foo.bar$ret.0"),
		fmt.Sprintf("expected a unique return label for the call site, got:\n%s", joined))

	snaps.MatchSnapshot(t, joined)
}
