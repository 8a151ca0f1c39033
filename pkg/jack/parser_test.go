package jack_test

import (
	"testing"

	"github.com/hmny-n2t/jackpipe/pkg/jack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassWithFieldsAndStaticVars(t *testing.T) {
	src := `
		class Point {
			field int x, y;
			static int count;

			constructor Point new(int ax, int ay) {
				let x = ax;
				let y = ay;
				let count = count + 1;
				return this;
			}

			method int getX() {
				return x;
			}
		}
	`

	parser, err := jack.NewParser("Point.jack", src)
	require.NoError(t, err)

	class, err := parser.ParseClass()
	require.NoError(t, err)

	assert.Equal(t, "Point", class.Name)
	assert.Equal(t, 2, class.Subroutines.Size())

	xField, found := class.Fields.Get("x")
	require.True(t, found)
	assert.Equal(t, jack.KindField, xField.Kind)

	ctor, found := class.Subroutines.Get("new")
	require.True(t, found)
	assert.Equal(t, jack.Constructor, ctor.Kind)
	assert.Len(t, ctor.Params, 2)
	assert.Len(t, ctor.Body, 4)
}

func TestParseIfWhileAndDo(t *testing.T) {
	src := `
		class Loop {
			function void run(int n) {
				var int i;
				let i = 0;
				while (i < n) {
					if (i = 0) {
						do Output.printString("zero");
					} else {
						do Output.printInt(i);
					}
					let i = i + 1;
				}
				return;
			}
		}
	`

	parser, err := jack.NewParser("Loop.jack", src)
	require.NoError(t, err)

	class, err := parser.ParseClass()
	require.NoError(t, err)

	sub, found := class.Subroutines.Get("run")
	require.True(t, found)

	require.Len(t, sub.Body, 3)
	whileStmt, ok := sub.Body[1].(jack.WhileStmt)
	require.True(t, ok)

	ifStmt, ok := whileStmt.Body[0].(jack.IfStmt)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)

	doStmt, ok := ifStmt.Then[0].(jack.DoStmt)
	require.True(t, ok)
	assert.Equal(t, "Output", doStmt.Call.Receiver)
	assert.Equal(t, "printString", doStmt.Call.Name)
}

func TestParseArrayAccessAndUnaryExpressions(t *testing.T) {
	src := `
		class Arr {
			function void set(Array a, int i) {
				let a[i] = -i;
				let a[i + 1] = ~true;
				return;
			}
		}
	`

	parser, err := jack.NewParser("Arr.jack", src)
	require.NoError(t, err)

	class, err := parser.ParseClass()
	require.NoError(t, err)

	sub, found := class.Subroutines.Get("set")
	require.True(t, found)

	first, ok := sub.Body[0].(jack.LetStmt)
	require.True(t, ok)
	assert.Equal(t, "a", first.Name)
	require.NotNil(t, first.Index)

	unary, ok := first.Value.(jack.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, jack.UnaryNeg, unary.Op)
}

func TestParseRejectsUnexpectedToken(t *testing.T) {
	src := `class Broken { method void oops( { return; } }`

	parser, err := jack.NewParser("Broken.jack", src)
	require.NoError(t, err)

	_, err = parser.ParseClass()
	assert.Error(t, err)
}

func TestParseCallShapes(t *testing.T) {
	src := `
		class Caller {
			method void run() {
				do doIt();
				do Memory.alloc(1);
				do other.compute(1, 2);
				return;
			}
		}
	`

	parser, err := jack.NewParser("Caller.jack", src)
	require.NoError(t, err)

	class, err := parser.ParseClass()
	require.NoError(t, err)

	sub, found := class.Subroutines.Get("run")
	require.True(t, found)

	implicit := sub.Body[0].(jack.DoStmt).Call
	assert.Equal(t, "", implicit.Receiver)
	assert.Equal(t, "doIt", implicit.Name)

	qualified := sub.Body[1].(jack.DoStmt).Call
	assert.Equal(t, "Memory", qualified.Receiver)
	assert.Equal(t, "alloc", qualified.Name)
	assert.Len(t, qualified.Args, 1)

	onReceiver := sub.Body[2].(jack.DoStmt).Call
	assert.Equal(t, "other", onReceiver.Receiver)
	assert.Equal(t, "compute", onReceiver.Name)
	assert.Len(t, onReceiver.Args, 2)
}
