package vm

import (
	"fmt"

	"github.com/hmny-n2t/jackpipe/pkg/asm"
	"github.com/hmny-n2t/jackpipe/pkg/diagnostic"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// Lowerer walks a vm.Program (one module per translation unit) and produces
// its asm.Program counterpart, implementing the Hack calling convention:
// the saved-frame layout for call/return, the eight memory segments'
// addressing modes, and per-function label scoping for goto/if-goto.
//
// Label uniqueness needs two kinds of counters that a single pass over one
// operation at a time can't provide on its own: a fresh comparison label
// per eq/gt/lt emission (two 'eq' ops in the same function must not
// collide), and a fresh return label per call site, named after the calling
// function with a per-caller counter ('Foo.bar$ret.0', 'Foo.bar$ret.1', ...)
// so that two call sites in the same function don't collide either. Both live on the Lowerer, not the Program, since they are
// bookkeeping for code generation, not part of the VM language itself.
type Lowerer struct {
	currentModule string // the class/file name, used for 'static' addressing
	currentFunc   string
	nCompare      uint
	nCallSite     map[string]uint
}

func NewLowerer() *Lowerer {
	return &Lowerer{nCallSite: map[string]uint{}}
}

// Bootstrap returns the fixed preamble every Hack program begins with: set
// the stack pointer to 256 (just past the Hack memory map's reserved
// region) then call Sys.init.
func (l *Lowerer) Bootstrap() asm.Program {
	out := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	return append(out, l.lowerCall(FuncCallOp{Name: "Sys.init", NumArgs: 0})...)
}

// Lower translates every module of 'p' into one flat asm.Program. The VM
// calling convention has no notion of cross-module ordering requirements
// beyond 'Sys.init' being reachable, so modules are simply concatenated, in
// Go map iteration order (which is not defined).
func (l *Lowerer) Lower(p Program) (asm.Program, error) {
	var out asm.Program
	for name, module := range p {
		lowered, err := l.LowerModule(name, module)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (l *Lowerer) LowerModule(name string, m Module) (asm.Program, error) {
	l.currentModule = name
	var out asm.Program
	for _, op := range m {
		switch o := op.(type) {
		case MemoryOp:
			lowered, err := l.lowerMemoryOp(o)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)
		case ArithmeticOp:
			lowered, err := l.lowerArithmeticOp(o)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)
		case LabelDecl:
			out = append(out, asm.LabelDecl{Name: l.scopedLabel(o.Name)})
		case GotoOp:
			out = append(out, l.lowerGoto(o)...)
		case FuncDecl:
			l.currentFunc = o.Name
			out = append(out, l.lowerFuncDecl(o)...)
		case FuncCallOp:
			out = append(out, l.lowerCall(o)...)
		case ReturnOp:
			out = append(out, l.lowerReturn()...)
		default:
			return nil, diagnostic.New(diagnostic.VMInvalidCommand, fmt.Sprintf("%T", o), "unrecognized VM operation")
		}
	}
	return out, nil
}

// scopedLabel prefixes a label/goto target with the enclosing function's
// name so that two functions may reuse the same surface label text.
func (l *Lowerer) scopedLabel(name string) string {
	if l.currentFunc == "" {
		return name
	}
	return fmt.Sprintf("%s$%s", l.currentFunc, name)
}

// ----------------------------------------------------------------------------
// Stack primitives

// pushD appends the sequence that pushes the D register onto the stack:
// *SP = D; SP++.
func pushD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
}

// popToD appends the sequence that pops the stack's top into D: SP--; D = *SP.
func popToD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory segment addressing

// pointerBase names the segments addressed indirectly through a base
// register (the value at the base register is itself an address).
var pointerBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

func (l *Lowerer) lowerMemoryOp(op MemoryOp) (asm.Program, error) {
	switch op.Segment {
	case Constant:
		if op.Operation == Pop {
			return nil, diagnostic.New(diagnostic.VMInvalidSegment, "constant", "cannot pop into the constant segment")
		}
		out := asm.Program{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
		return append(out, pushD()...), nil

	case Local, Argument, This, That:
		return l.indirectSegment(op, pointerBase[op.Segment])

	case Temp:
		if op.Offset > 7 {
			return nil, diagnostic.New(diagnostic.VMInvalidSegment, "temp",
				"offset %d out of range for 'temp' (valid: 0-7)", op.Offset)
		}
		return l.fixedBaseSegment(op, 5), nil

	case Pointer:
		if op.Offset > 1 {
			return nil, diagnostic.New(diagnostic.VMInvalidSegment, "pointer",
				"offset %d out of range for 'pointer' (valid: 0-1)", op.Offset)
		}
		target := "THIS"
		if op.Offset == 1 {
			target = "THAT"
		}
		return l.namedLocation(op, target), nil

	case Static:
		return l.namedLocation(op, fmt.Sprintf("%s.%d", l.currentModule, op.Offset)), nil

	default:
		return nil, diagnostic.New(diagnostic.VMInvalidSegment, string(op.Segment), "unrecognized memory segment")
	}
}

// indirectSegment handles local/argument/this/that: address = M[base] + offset.
func (l *Lowerer) indirectSegment(op MemoryOp, base string) (asm.Program, error) {
	if op.Operation == Push {
		out := asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(out, pushD()...), nil
	}

	out := asm.Program{
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	out = append(out, popToD()...)
	out = append(out,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
	return out, nil
}

// fixedBaseSegment handles temp: address = baseAddr + offset, with baseAddr
// known at compile time so no pointer indirection through R13 is needed.
func (l *Lowerer) fixedBaseSegment(op MemoryOp, baseAddr uint16) asm.Program {
	addr := fmt.Sprint(baseAddr + op.Offset)
	if op.Operation == Push {
		out := asm.Program{
			asm.AInstruction{Location: addr},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(out, pushD()...)
	}
	out := popToD()
	return append(out,
		asm.AInstruction{Location: addr},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
}

// namedLocation handles pointer/static: a single fixed symbolic address.
func (l *Lowerer) namedLocation(op MemoryOp, symbol string) asm.Program {
	if op.Operation == Push {
		out := asm.Program{
			asm.AInstruction{Location: symbol},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(out, pushD()...)
	}
	out := popToD()
	return append(out,
		asm.AInstruction{Location: symbol},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
}

// ----------------------------------------------------------------------------
// Arithmetic and logical ops

// binaryCompTable names the single-instruction computation for each binary
// arithmetic/bitwise op, stored back as 'M=<comp>' after popping y into D, x
// into M (by decrementing A) — the two-operand ops share this shape. The
// comps are spelled as in the Hack comp table (the one pkg/asm's parser
// accepts), so commutative ops put D first.
var binaryCompTable = map[ArithOpType]string{
	Add: "D+M",
	Sub: "M-D",
	And: "D&M",
	Or:  "D|M",
}

// comparisonJumpTable names the jump mnemonic used to test 'x - y' for each
// comparison op.
var comparisonJumpTable = map[ArithOpType]string{
	Eq: "JEQ",
	Gt: "JGT",
	Lt: "JLT",
}

func (l *Lowerer) lowerArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Neg, Not:
		comp := "-M"
		if op.Operation == Not {
			comp = "!M"
		}
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil

	case Add, Sub, And, Or:
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: binaryCompTable[op.Operation]},
		}, nil

	case Eq, Gt, Lt:
		return l.lowerComparison(op.Operation), nil

	default:
		return nil, diagnostic.New(diagnostic.VMInvalidCommand, string(op.Operation), "unrecognized arithmetic operation")
	}
}

// lowerComparison expands eq/gt/lt into: compute x-y, jump to a 'true'
// branch if the comparison holds, otherwise fall through pushing false;
// both branches converge on a fresh 'end' label. Two emissions of the same
// op in one function must not reuse labels, hence the Lowerer-wide counter.
func (l *Lowerer) lowerComparison(op ArithOpType) asm.Program {
	id := l.nCompare
	l.nCompare++
	trueLabel := fmt.Sprintf("__CMP_TRUE_%d", id)
	endLabel := fmt.Sprintf("__CMP_END_%d", id)

	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: trueLabel},
		asm.CInstruction{Comp: "D", Jump: comparisonJumpTable[op]},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: endLabel},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: trueLabel},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},
		asm.LabelDecl{Name: endLabel},
	}
}

// ----------------------------------------------------------------------------
// Branching

func (l *Lowerer) lowerGoto(op GotoOp) asm.Program {
	target := l.scopedLabel(op.Target)
	if op.Kind == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}
	}
	out := popToD()
	return append(out,
		asm.AInstruction{Location: target},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	)
}

// ----------------------------------------------------------------------------
// Functions, calls and returns

// lowerFuncDecl emits the label and NumLocals zero-initialized local pushes.
func (l *Lowerer) lowerFuncDecl(op FuncDecl) asm.Program {
	out := asm.Program{asm.LabelDecl{Name: op.Name}}
	for i := uint16(0); i < op.NumLocals; i++ {
		out = append(out,
			asm.AInstruction{Location: "0"},
			asm.CInstruction{Dest: "D", Comp: "A"},
		)
		out = append(out, pushD()...)
	}
	return out
}

// lowerCall pushes a per-call-site return address plus the caller's
// LCL/ARG/THIS/THAT, repositions ARG/LCL for the callee, jumps, then
// declares the return label the callee will land on.
func (l *Lowerer) lowerCall(op FuncCallOp) asm.Program {
	retLabel := fmt.Sprintf("%s$ret.%d", l.currentFunc, l.nCallSite[l.currentFunc])
	l.nCallSite[l.currentFunc]++

	out := asm.Program{asm.AInstruction{Location: retLabel}, asm.CInstruction{Dest: "D", Comp: "A"}}
	out = append(out, pushD()...)
	for _, seg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		out = append(out,
			asm.AInstruction{Location: seg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		out = append(out, pushD()...)
	}

	out = append(out,
		// ARG = SP - 5 - nArgs
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(5 + op.NumArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto callee
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// return label
		asm.LabelDecl{Name: retLabel},
	)
	return out
}

// lowerReturn uses the R13 (frame)/R14 (return address) scratch registers:
// save the frame pointer and the pre-computed return address before the
// frame is overwritten by repositioning the return value, then restore
// THAT/THIS/ARG/LCL from the saved frame before jumping back.
func (l *Lowerer) lowerReturn() asm.Program {
	savedSeg := func(offsetFromEnd uint16, dest string) asm.Program {
		return asm.Program{
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offsetFromEnd)},
			asm.CInstruction{Dest: "A", Comp: "D-A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: dest},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
	}

	out := asm.Program{
		// R13 = LCL (the frame base)
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 = *(frame - 5), the return address
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	out = append(out, popToD()...)
	out = append(out,
		// *ARG = pop()
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	out = append(out, savedSeg(1, "THAT")...)
	out = append(out, savedSeg(2, "THIS")...)
	out = append(out, savedSeg(3, "ARG")...)
	out = append(out, savedSeg(4, "LCL")...)

	out = append(out,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)
	return out
}
