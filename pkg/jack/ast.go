package jack

import "github.com/hmny-n2t/jackpipe/pkg/utils"

// ----------------------------------------------------------------------------
// Class-level AST

// Program is the full set of classes making up one compilation: everything
// from a single '.jack' file, or from every '.jack' file in a directory when
// cross-class method/constructor resolution requires the whole set.
type Program map[string]Class

type Class struct {
	Name        string
	Fields      utils.OrderedMap[string, Variable] // STATIC and FIELD declarations, in source order
	Subroutines utils.OrderedMap[string, Subroutine]
}

type SubroutineKind uint8

const (
	Constructor SubroutineKind = iota
	Function
	Method
)

func (k SubroutineKind) String() string {
	switch k {
	case Constructor:
		return "constructor"
	case Function:
		return "function"
	case Method:
		return "method"
	default:
		return "unknown"
	}
}

type Subroutine struct {
	Name      string
	Kind      SubroutineKind
	Class     string // owning class, filled in by the Parser
	Return    DataType
	Params    []Variable
	Locals    []Variable
	Body      []Statement
}

// VarKind is the storage kind a Variable is declared with, matching the four
// kinds the symbol table tracks.
type VarKind uint8

const (
	KindStatic VarKind = iota
	KindField
	KindArg
	KindLocal
)

func (k VarKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindField:
		return "field"
	case KindArg:
		return "argument"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// DataTypeKind is the primitive/class distinction a Jack type carries.
type DataTypeKind uint8

const (
	TypeInt DataTypeKind = iota
	TypeChar
	TypeBoolean
	TypeClass
	TypeVoid // only valid as a subroutine's Return type
)

// DataType names a Jack value's static type: either one of the three
// primitives, 'void' (return type only), or a reference to a class, in which
// case ClassName carries the class's identifier.
type DataType struct {
	Kind      DataTypeKind
	ClassName string // set iff Kind == TypeClass
}

func (dt DataType) String() string {
	switch dt.Kind {
	case TypeInt:
		return "int"
	case TypeChar:
		return "char"
	case TypeBoolean:
		return "boolean"
	case TypeVoid:
		return "void"
	case TypeClass:
		return dt.ClassName
	default:
		return "unknown"
	}
}

// Variable is one declared name: a class field/static, a subroutine
// parameter, or a subroutine local.
type Variable struct {
	Name string
	Kind VarKind
	Type DataType
}

// ----------------------------------------------------------------------------
// Statements

// Statement is any of the five Jack statement forms.
type Statement interface{ statementNode() }

type LetStmt struct {
	Name  string
	Index Expression // non-nil iff this is an array-element assignment
	Value Expression
}

type IfStmt struct {
	Cond Expression
	Then []Statement
	Else []Statement // nil when there is no else-branch
}

type WhileStmt struct {
	Cond Expression
	Body []Statement
}

type DoStmt struct {
	Call FuncCallExpr
}

type ReturnStmt struct {
	Value Expression // nil for a bare 'return;'
}

func (LetStmt) statementNode()    {}
func (IfStmt) statementNode()     {}
func (WhileStmt) statementNode()  {}
func (DoStmt) statementNode()     {}
func (ReturnStmt) statementNode() {}

// ----------------------------------------------------------------------------
// Expressions

// Expression is any Jack term or binary/unary combination of terms.
type Expression interface{ expressionNode() }

// VarExpr references a declared variable name, resolved against the
// ScopeTable during lowering.
type VarExpr struct {
	Name string
}

// ArrayExpr indexes a variable: 'name[index]'.
type ArrayExpr struct {
	Name  string
	Index Expression
}

type LiteralKind uint8

const (
	LiteralInt LiteralKind = iota
	LiteralString
	LiteralTrue
	LiteralFalse
	LiteralNull
	LiteralThis
)

type LiteralExpr struct {
	Kind   LiteralKind
	IntVal uint16
	Str    string
}

type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
}

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinAnd
	BinOr
	BinLt
	BinGt
	BinEq
)

type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expression
}

// FuncCallExpr covers all three call shapes: an implicit-this method call
// ('doIt(1)'), a class-qualified call ('Foo.doIt(1)', either a static
// function/constructor or a method through a variable named 'Foo'), and a
// call on an explicit receiver expression is represented the same way with
// Receiver set to the variable name.
type FuncCallExpr struct {
	Receiver string // variable or class name before the dot; "" for implicit-this
	Name     string
	Args     []Expression
}

func (VarExpr) expressionNode()     {}
func (ArrayExpr) expressionNode()   {}
func (LiteralExpr) expressionNode() {}
func (UnaryExpr) expressionNode()   {}
func (BinaryExpr) expressionNode()  {}
func (FuncCallExpr) expressionNode() {}
