package jack

import (
	"fmt"

	"github.com/hmny-n2t/jackpipe/pkg/diagnostic"
	"github.com/hmny-n2t/jackpipe/pkg/utils"
)

// ----------------------------------------------------------------------------
// Parser

// Parser is a hand-rolled recursive-descent parser over the Tokenizer,
// building the class AST one declaration and statement at a time, one parse
// routine per grammar production. It keeps no symbol table: names are only
// recorded in the AST, and the Lowerer resolves them against its ScopeTable.
type Parser struct {
	file string
	tz   *Tokenizer
}

func NewParser(file string, source string) (*Parser, error) {
	tz, err := NewTokenizer(source)
	if err != nil {
		return nil, attachFile(err, file)
	}
	return &Parser{file: file, tz: tz}, nil
}

// ParseClass parses exactly one compilation unit: 'class <name> { ... }'.
func (p *Parser) ParseClass() (Class, error) {
	if err := p.expectKeyword(KwClass); err != nil {
		return Class{}, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return Class{}, err
	}
	if err := p.expectSymbol('{'); err != nil {
		return Class{}, err
	}

	class := Class{Name: name, Fields: utils.NewOrderedMap[string, Variable](), Subroutines: utils.NewOrderedMap[string, Subroutine]()}

	for p.atKeyword(KwStatic) || p.atKeyword(KwField) {
		if err := p.parseClassVarDecl(&class); err != nil {
			return Class{}, err
		}
	}

	for p.atKeyword(KwConstructor) || p.atKeyword(KwFunction) || p.atKeyword(KwMethod) {
		sub, err := p.parseSubroutine(name)
		if err != nil {
			return Class{}, err
		}
		class.Subroutines.Set(sub.Name, sub)
	}

	if err := p.expectSymbol('}'); err != nil {
		return Class{}, err
	}
	return class, nil
}

// ----------------------------------------------------------------------------
// Class-level declarations

func (p *Parser) parseClassVarDecl(class *Class) error {
	kind := KindField
	if p.atKeyword(KwStatic) {
		kind = KindStatic
	}
	p.tz.Advance() // consume 'static'/'field'

	dt, err := p.parseType()
	if err != nil {
		return err
	}

	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return err
		}
		class.Fields.Set(name, Variable{Name: name, Kind: kind, Type: dt})

		if p.atSymbol(',') {
			p.tz.Advance()
			continue
		}
		break
	}
	return p.expectSymbol(';')
}

func (p *Parser) parseSubroutine(className string) (Subroutine, error) {
	var kind SubroutineKind
	switch {
	case p.atKeyword(KwConstructor):
		kind = Constructor
	case p.atKeyword(KwFunction):
		kind = Function
	case p.atKeyword(KwMethod):
		kind = Method
	}
	p.tz.Advance()

	ret, err := p.parseReturnType()
	if err != nil {
		return Subroutine{}, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return Subroutine{}, err
	}

	if err := p.expectSymbol('('); err != nil {
		return Subroutine{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return Subroutine{}, err
	}
	if err := p.expectSymbol(')'); err != nil {
		return Subroutine{}, err
	}

	if err := p.expectSymbol('{'); err != nil {
		return Subroutine{}, err
	}
	var locals []Variable
	for p.atKeyword(KwVar) {
		decl, err := p.parseVarDecl()
		if err != nil {
			return Subroutine{}, err
		}
		locals = append(locals, decl...)
	}
	body, err := p.parseStatements()
	if err != nil {
		return Subroutine{}, err
	}
	if err := p.expectSymbol('}'); err != nil {
		return Subroutine{}, err
	}

	return Subroutine{Name: name, Kind: kind, Class: className, Return: ret, Params: params, Locals: locals, Body: body}, nil
}

func (p *Parser) parseParamList() ([]Variable, error) {
	var params []Variable
	if p.atSymbol(')') {
		return params, nil
	}
	for {
		dt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		params = append(params, Variable{Name: name, Kind: KindArg, Type: dt})

		if p.atSymbol(',') {
			p.tz.Advance()
			continue
		}
		break
	}
	return params, nil
}

func (p *Parser) parseVarDecl() ([]Variable, error) {
	p.tz.Advance() // consume 'var'
	dt, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var out []Variable
	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		out = append(out, Variable{Name: name, Kind: KindLocal, Type: dt})

		if p.atSymbol(',') {
			p.tz.Advance()
			continue
		}
		break
	}
	return out, p.expectSymbol(';')
}

func (p *Parser) parseType() (DataType, error) {
	if !p.tz.HasMoreTokens() {
		return DataType{}, p.unexpectedEOF("a type")
	}
	p.tz.Advance()
	tok := p.tz.Current()
	switch {
	case tok.Type == TokenKeyword && tok.Keyword() == KwInt:
		return DataType{Kind: TypeInt}, nil
	case tok.Type == TokenKeyword && tok.Keyword() == KwChar:
		return DataType{Kind: TypeChar}, nil
	case tok.Type == TokenKeyword && tok.Keyword() == KwBoolean:
		return DataType{Kind: TypeBoolean}, nil
	case tok.Type == TokenIdentifier:
		return DataType{Kind: TypeClass, ClassName: tok.Identifier()}, nil
	default:
		return DataType{}, p.unexpected(tok, "a type")
	}
}

func (p *Parser) parseReturnType() (DataType, error) {
	if p.atKeyword(KwVoid) {
		p.tz.Advance()
		return DataType{Kind: TypeVoid}, nil
	}
	return p.parseType()
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseStatements() ([]Statement, error) {
	var out []Statement
	for p.atKeyword(KwLet) || p.atKeyword(KwIf) || p.atKeyword(KwWhile) || p.atKeyword(KwDo) || p.atKeyword(KwReturn) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.atKeyword(KwLet):
		return p.parseLet()
	case p.atKeyword(KwIf):
		return p.parseIf()
	case p.atKeyword(KwWhile):
		return p.parseWhile()
	case p.atKeyword(KwDo):
		return p.parseDo()
	case p.atKeyword(KwReturn):
		return p.parseReturn()
	default:
		p.tz.Advance()
		return nil, p.unexpected(p.tz.Current(), "a statement")
	}
}

func (p *Parser) parseLet() (Statement, error) {
	p.tz.Advance() // 'let'
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	var index Expression
	if p.atSymbol('[') {
		p.tz.Advance()
		index, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(']'); err != nil {
			return nil, err
		}
	}

	if err := p.expectSymbol('='); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return LetStmt{Name: name, Index: index, Value: value}, p.expectSymbol(';')
}

func (p *Parser) parseIf() (Statement, error) {
	p.tz.Advance() // 'if'
	if err := p.expectSymbol('('); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(')'); err != nil {
		return nil, err
	}
	if err := p.expectSymbol('{'); err != nil {
		return nil, err
	}
	then, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol('}'); err != nil {
		return nil, err
	}

	var elseBody []Statement
	if p.atKeyword(KwElse) {
		p.tz.Advance()
		if err := p.expectSymbol('{'); err != nil {
			return nil, err
		}
		elseBody, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol('}'); err != nil {
			return nil, err
		}
	}

	return IfStmt{Cond: cond, Then: then, Else: elseBody}, nil
}

func (p *Parser) parseWhile() (Statement, error) {
	p.tz.Advance() // 'while'
	if err := p.expectSymbol('('); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(')'); err != nil {
		return nil, err
	}
	if err := p.expectSymbol('{'); err != nil {
		return nil, err
	}
	body, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	return WhileStmt{Cond: cond, Body: body}, p.expectSymbol('}')
}

func (p *Parser) parseDo() (Statement, error) {
	p.tz.Advance() // 'do'
	call, err := p.parseCallExpr()
	if err != nil {
		return nil, err
	}
	return DoStmt{Call: call}, p.expectSymbol(';')
}

func (p *Parser) parseReturn() (Statement, error) {
	p.tz.Advance() // 'return'
	if p.atSymbol(';') {
		p.tz.Advance()
		return ReturnStmt{}, nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ReturnStmt{Value: value}, p.expectSymbol(';')
}

// ----------------------------------------------------------------------------
// Expressions

var binOpTable = map[byte]BinaryOp{
	'+': BinAdd, '-': BinSub, '*': BinMul, '/': BinDiv,
	'&': BinAnd, '|': BinOr, '<': BinLt, '>': BinGt, '=': BinEq,
}

func (p *Parser) parseExpression() (Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for len(p.tz.Peek()) == 1 {
		op, ok := binOpTable[p.tz.Peek()[0]]
		if !ok {
			break
		}
		p.tz.Advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (Expression, error) {
	if !p.tz.HasMoreTokens() {
		return nil, p.unexpectedEOF("an expression")
	}
	p.tz.Advance()
	tok := p.tz.Current()

	switch tok.Type {
	case TokenIntConst:
		return LiteralExpr{Kind: LiteralInt, IntVal: tok.IntVal()}, nil

	case TokenStringConst:
		return LiteralExpr{Kind: LiteralString, Str: tok.StringVal()}, nil

	case TokenKeyword:
		switch tok.Keyword() {
		case KwTrue:
			return LiteralExpr{Kind: LiteralTrue}, nil
		case KwFalse:
			return LiteralExpr{Kind: LiteralFalse}, nil
		case KwNull:
			return LiteralExpr{Kind: LiteralNull}, nil
		case KwThis:
			return LiteralExpr{Kind: LiteralThis}, nil
		default:
			return nil, p.unexpected(tok, "an expression")
		}

	case TokenSymbol:
		switch tok.Symbol() {
		case '(':
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return expr, p.expectSymbol(')')
		case '-':
			operand, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			return UnaryExpr{Op: UnaryNeg, Operand: operand}, nil
		case '~':
			operand, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			return UnaryExpr{Op: UnaryNot, Operand: operand}, nil
		default:
			return nil, p.unexpected(tok, "an expression")
		}

	case TokenIdentifier:
		name := tok.Identifier()
		switch p.tz.Peek() {
		case "[":
			p.tz.Advance() // consume '['
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return ArrayExpr{Name: name, Index: idx}, p.expectSymbol(']')
		case "(", ".":
			return p.parseCallExprFrom(name)
		default:
			return VarExpr{Name: name}, nil
		}

	default:
		return nil, p.unexpected(tok, "an expression")
	}
}

// parseCallExpr parses a full call starting fresh (used by 'do').
func (p *Parser) parseCallExpr() (FuncCallExpr, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return FuncCallExpr{}, err
	}
	expr, err := p.parseCallExprFrom(name)
	if err != nil {
		return FuncCallExpr{}, err
	}
	return expr.(FuncCallExpr), nil
}

// parseCallExprFrom continues a call expression whose leading identifier
// 'name' has already been consumed — either 'name(args)' (implicit-this) or
// 'name.sub(args)' (class-qualified or receiver-qualified).
func (p *Parser) parseCallExprFrom(name string) (Expression, error) {
	receiver := ""
	subName := name

	if p.atSymbol('.') {
		p.tz.Advance()
		var err error
		subName, err = p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		receiver = name
	}

	if err := p.expectSymbol('('); err != nil {
		return nil, err
	}
	args, err := p.parseExpressionList()
	if err != nil {
		return nil, err
	}
	return FuncCallExpr{Receiver: receiver, Name: subName, Args: args}, p.expectSymbol(')')
}

func (p *Parser) parseExpressionList() ([]Expression, error) {
	var args []Expression
	if p.atSymbol(')') {
		return args, nil
	}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, expr)
		if p.atSymbol(',') {
			p.tz.Advance()
			continue
		}
		break
	}
	return args, nil
}

// ----------------------------------------------------------------------------
// Token-matching helpers

// atKeyword reports whether the upcoming (not-yet-consumed) token is the
// keyword 'kw'. Jack keywords' raw lexeme always equals their string value
// and never collides with an identifier (the tokenizer always classifies a
// reserved word as TokenKeyword), so a raw-text comparison is sufficient.
func (p *Parser) atKeyword(kw Keyword) bool {
	return p.tz.Peek() == string(kw)
}

func (p *Parser) atSymbol(sym byte) bool {
	return p.tz.Peek() == string(rune(sym))
}

func (p *Parser) expectSymbol(sym byte) error {
	if !p.tz.HasMoreTokens() {
		return p.unexpectedEOF(fmt.Sprintf("%q", string(rune(sym))))
	}
	p.tz.Advance()
	tok := p.tz.Current()
	if tok.Type != TokenSymbol || tok.Symbol() != sym {
		return p.unexpected(tok, fmt.Sprintf("%q", string(rune(sym))))
	}
	return nil
}

func (p *Parser) expectKeyword(kw Keyword) error {
	if !p.tz.HasMoreTokens() {
		return p.unexpectedEOF(string(kw))
	}
	p.tz.Advance()
	tok := p.tz.Current()
	if tok.Type != TokenKeyword || tok.Keyword() != kw {
		return p.unexpected(tok, string(kw))
	}
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	if !p.tz.HasMoreTokens() {
		return "", p.unexpectedEOF("an identifier")
	}
	p.tz.Advance()
	tok := p.tz.Current()
	if tok.Type != TokenIdentifier {
		return "", p.unexpected(tok, "an identifier")
	}
	return tok.Identifier(), nil
}

func (p *Parser) unexpected(tok Token, want string) error {
	return attachFile(
		diagnostic.New(diagnostic.ParseUnexpectedToken, tok.Raw, "expected %s, found %s", want, tok.Type).
			WithPos(tok.Line, tok.Col),
		p.file,
	)
}

func (p *Parser) unexpectedEOF(want string) error {
	return attachFile(
		diagnostic.New(diagnostic.ParseUnexpectedToken, "", "expected %s, found end of file", want),
		p.file,
	)
}

func attachFile(err error, file string) error {
	if d, ok := err.(*diagnostic.Diagnostic); ok {
		return d.WithFile(file)
	}
	return err
}
