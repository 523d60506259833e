// Package parser is a recursive-descent reader over internal/lexer's
// token stream. It never builds a tree itself; every construct it
// recognizes is reported to an internal/astbuild.Builder as one "Out"
// protocol event, in the order that event's doc comment promises.
package parser

import (
	"fmt"

	"nettle/internal/astbuild"
	"nettle/internal/errors"
	"nettle/internal/ir"
	"nettle/internal/lexer"
	"nettle/internal/symbol"
)

// precedence ranks binary operator tokens, lowest first. Parsed with
// precedence climbing: parseBinary(minPrec) only folds in an operator
// whose rank is at least minPrec, recursing with prec+1 for the right
// operand so same-rank chains (e.g. a - b - c) associate left.
var precedence = map[lexer.TokenType]int{
	lexer.TokenDoubleEqual: 3,
	lexer.TokenNotEqual:    3,
	lexer.TokenLT:          3,
	lexer.TokenGT:          3,
	lexer.TokenLE:          3,
	lexer.TokenGE:          3,
	lexer.TokenPipe:        4,
	lexer.TokenCaret:       4,
	lexer.TokenAmp:         5,
	lexer.TokenShl:         6,
	lexer.TokenShr:         6,
	lexer.TokenPlus:        7,
	lexer.TokenMinus:       7,
	lexer.TokenStar:        8,
	lexer.TokenSlash:       8,
	lexer.TokenPercent:     8,
}

var binaryOps = map[lexer.TokenType]ir.Op2{
	lexer.TokenPlus:        ir.Op2Add,
	lexer.TokenMinus:       ir.Op2Sub,
	lexer.TokenStar:        ir.Op2Mul,
	lexer.TokenSlash:       ir.Op2Div,
	lexer.TokenPercent:     ir.Op2Rem,
	lexer.TokenAmp:         ir.Op2BitAnd,
	lexer.TokenPipe:        ir.Op2BitOr,
	lexer.TokenCaret:       ir.Op2BitXor,
	lexer.TokenShl:         ir.Op2Shl,
	lexer.TokenShr:         ir.Op2Shr,
	lexer.TokenDoubleEqual: ir.Op2CmpEq,
	lexer.TokenNotEqual:    ir.Op2CmpNe,
	lexer.TokenLT:          ir.Op2CmpLt,
	lexer.TokenLE:          ir.Op2CmpLe,
	lexer.TokenGT:          ir.Op2CmpGt,
	lexer.TokenGE:          ir.Op2CmpGe,
}

// Parser reads tokens and drives a Builder. Errors are reported by
// panicking with an *errors.NettleError; Parse recovers and returns it.
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
	b       *astbuild.Builder
}

func New(tokens []lexer.Token, file string, b *astbuild.Builder) *Parser {
	return &Parser{tokens: tokens, file: file, b: b}
}

// Parse reads every top-level function definition, feeding events to
// the Builder, and returns the first error encountered (if any).
func (p *Parser) Parse() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ne, ok := r.(*errors.NettleError); ok {
				err = ne
				return
			}
			panic(r)
		}
	}()
	for !p.isAtEnd() {
		p.function()
	}
	return nil
}

func (p *Parser) function() {
	p.consume(lexer.TokenFn, "expect 'fn'")
	nameTok := p.consume(lexer.TokenIdent, "expect function name")
	name := symbol.Intern(nameTok.Lexeme)

	p.consume(lexer.TokenLParen, "expect '(' after function name")
	var nArgs uint32
	if !p.check(lexer.TokenRParen) {
		p.parameter()
		nArgs++
		for p.match(lexer.TokenComma) {
			p.parameter()
			nArgs++
		}
	}
	p.consume(lexer.TokenRParen, "expect ')' after parameters")

	if p.match(lexer.TokenArrow) {
		p.consume(lexer.TokenColon, "expect ':' before return type")
		p.consume(lexer.TokenIdent, "expect return type name")
	}

	p.consume(lexer.TokenLBrace, "expect '{' before function body")
	nBody := p.blockStatements()
	p.consume(lexer.TokenRBrace, "expect '}' after function body")

	p.b.OnFun(name, nArgs, nBody)
}

func (p *Parser) parameter() {
	tok := p.consume(lexer.TokenIdent, "expect parameter name")
	sym := symbol.Intern(tok.Lexeme)
	p.b.OnBinding(&sym)
}

// blockStatements parses statements up to (not including) the closing
// brace the caller consumes, and returns how many it pushed.
func (p *Parser) blockStatements() uint32 {
	var n uint32
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		p.statement()
		n++
	}
	return n
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.TokenLet):
		p.letStatement()
	case p.match(lexer.TokenVar):
		p.varStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenBreak):
		p.breakStatement()
	case p.match(lexer.TokenContinue):
		p.consumeOptSemicolon()
		p.b.OnContinue()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.check(lexer.TokenIdent):
		p.identifierLedStatement()
	default:
		p.exprStatement()
	}
}

func (p *Parser) letStatement() {
	var n uint32
	p.bindingName()
	n++
	for p.match(lexer.TokenComma) {
		p.bindingName()
		n++
	}
	p.consume(lexer.TokenEqual, "expect '=' after let binding(s)")
	p.expression()
	for i := uint32(1); i < n; i++ {
		p.consume(lexer.TokenComma, "expect ',' between let values")
		p.expression()
	}
	p.consumeOptSemicolon()
	p.b.OnLet(n)
}

func (p *Parser) bindingName() {
	tok := p.consume(lexer.TokenIdent, "expect binding name")
	if tok.Lexeme == "_" {
		p.b.OnBinding(nil)
		return
	}
	sym := symbol.Intern(tok.Lexeme)
	p.b.OnBinding(&sym)
}

func (p *Parser) varStatement() {
	tok := p.consume(lexer.TokenIdent, "expect variable name")
	p.consume(lexer.TokenEqual, "expect '=' after variable name")
	p.expression()
	p.consumeOptSemicolon()
	p.b.OnVar(symbol.Intern(tok.Lexeme))
}

func (p *Parser) returnStatement() {
	n := p.optionalExprList()
	p.consumeOptSemicolon()
	p.b.OnReturn(n)
}

func (p *Parser) breakStatement() {
	n := p.optionalExprList()
	p.consumeOptSemicolon()
	p.b.OnBreak(n)
}

// optionalExprList parses zero or more comma-separated expressions,
// stopping at ';', '}', or EOF, and returns how many it pushed.
func (p *Parser) optionalExprList() uint32 {
	if p.check(lexer.TokenSemicolon) || p.check(lexer.TokenRBrace) || p.isAtEnd() {
		return 0
	}
	p.expression()
	n := uint32(1)
	for p.match(lexer.TokenComma) {
		p.expression()
		n++
	}
	return n
}

func (p *Parser) whileStatement() {
	p.expression()
	p.consume(lexer.TokenLBrace, "expect '{' before while body")
	n := p.blockStatements()
	p.consume(lexer.TokenRBrace, "expect '}' after while body")
	p.b.OnWhile(n)
}

// identifierLedStatement disambiguates plain-ident-prefixed statements:
// set, set-field, set-index, and expression statements (a bare variable
// reference may simply feed into a call/field/index chain instead).
func (p *Parser) identifierLedStatement() {
	saved := p.current
	tok := p.advance()
	sym := symbol.Intern(tok.Lexeme)

	switch {
	case p.match(lexer.TokenEqual):
		p.expression()
		p.consumeOptSemicolon()
		p.b.OnSet(sym)
		return
	case p.match(lexer.TokenDot):
		fieldTok := p.consume(lexer.TokenIdent, "expect field name")
		if p.match(lexer.TokenEqual) {
			p.b.OnVariable(sym)
			p.expression()
			p.consumeOptSemicolon()
			p.b.OnSetField(symbol.Intern(fieldTok.Lexeme))
			return
		}
		p.current = saved
	case p.check(lexer.TokenLBracket):
		// A plain index read feeding a call/field chain is also legal
		// here, so this only commits to SetIndex once a raw scan (no
		// builder events yet) confirms '=' immediately follows the
		// matching ']' — the builder has no way to undo a pushed event,
		// so nothing is emitted until the shape is certain.
		closePos := p.matchingCloseBracket(p.current)
		if closePos != -1 && closePos+1 < len(p.tokens) && p.tokens[closePos+1].Type == lexer.TokenEqual {
			p.advance() // '['
			p.b.OnVariable(sym)
			p.expression()
			p.consume(lexer.TokenRBracket, "expect ']' after index")
			p.consume(lexer.TokenEqual, "expect '=' after index")
			p.expression()
			p.consumeOptSemicolon()
			p.b.OnSetIndex()
			return
		}
		p.current = saved
	default:
		p.current = saved
	}
	p.exprStatement()
}

// matchingCloseBracket returns the index of the bracket/paren/brace that
// closes the opening one at openPos, tracking all three nesting kinds
// since an index expression may itself contain calls or nested indices.
// Returns -1 if the source never closes it.
func (p *Parser) matchingCloseBracket(openPos int) int {
	depth := 0
	for i := openPos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (p *Parser) exprStatement() {
	p.expression()
	p.consumeOptSemicolon()
	p.b.OnStmtExprList(1)
}

func (p *Parser) consumeOptSemicolon() {
	p.match(lexer.TokenSemicolon)
}

// --- expressions ---

func (p *Parser) expression() {
	p.ternary()
}

func (p *Parser) ternary() {
	p.logicalOr()
	if p.match(lexer.TokenQuestion) {
		p.expression()
		p.consume(lexer.TokenColon, "expect ':' in ternary expression")
		p.expression()
		p.b.OnTernary()
	}
}

func (p *Parser) logicalOr() {
	p.logicalAnd()
	for p.match(lexer.TokenOrOr) {
		p.logicalAnd()
		p.b.OnOr()
	}
}

func (p *Parser) logicalAnd() {
	p.parseBinary(3)
	for p.match(lexer.TokenAndAnd) {
		p.parseBinary(3)
		p.b.OnAnd()
	}
}

func (p *Parser) parseBinary(minPrec int) {
	p.unary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Type]
		if !ok || prec < minPrec {
			return
		}
		op, ok := binaryOps[tok.Type]
		if !ok {
			return
		}
		p.advance()
		p.parseBinary(prec + 1)
		p.b.OnOp2(op)
	}
}

func (p *Parser) unary() {
	switch {
	case p.match(lexer.TokenMinus):
		p.unary()
		p.b.OnOp1(ir.Op1Neg)
	case p.match(lexer.TokenNot):
		p.unary()
		p.b.OnOp1(ir.Op1Not)
	case p.match(lexer.TokenPlusPlus):
		p.unary()
		p.b.OnPreOp(ir.Op1Inc)
	case p.match(lexer.TokenMinusMinus):
		p.unary()
		p.b.OnPreOp(ir.Op1Dec)
	default:
		p.postfix()
	}
}

func (p *Parser) postfix() {
	p.primary()
	for {
		switch {
		case p.match(lexer.TokenLParen):
			p.finishCall()
		case p.match(lexer.TokenLBracket):
			p.expression()
			p.consume(lexer.TokenRBracket, "expect ']' after index")
			p.b.OnIndex()
		case p.match(lexer.TokenDot):
			tok := p.consume(lexer.TokenIdent, "expect field name after '.'")
			p.b.OnField(symbol.Intern(tok.Lexeme))
		case p.match(lexer.TokenPlusPlus):
			p.b.OnPostOp(ir.Op1Inc)
		case p.match(lexer.TokenMinusMinus):
			p.b.OnPostOp(ir.Op1Dec)
		default:
			return
		}
	}
}

func (p *Parser) finishCall() {
	var n uint32
	if !p.check(lexer.TokenRParen) {
		p.expression()
		n++
		for p.match(lexer.TokenComma) {
			p.expression()
			n++
		}
	}
	p.consume(lexer.TokenRParen, "expect ')' after arguments")
	p.b.OnCall(n)
}

func (p *Parser) primary() {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenInt:
		var v int64
		fmt.Sscanf(tok.Lexeme, "%d", &v)
		p.b.OnLiteralInt(v)
	case lexer.TokenFloat:
		var v float64
		fmt.Sscanf(tok.Lexeme, "%g", &v)
		p.b.OnLiteralFloat(v)
	case lexer.TokenTrue:
		p.b.OnLiteralBool(true)
	case lexer.TokenFalse:
		p.b.OnLiteralBool(false)
	case lexer.TokenUndef:
		p.b.OnUndefined()
	case lexer.TokenIdent:
		p.b.OnVariable(symbol.Intern(tok.Lexeme))
	case lexer.TokenLParen:
		p.expression()
		p.consume(lexer.TokenRParen, "expect ')' after expression")
	case lexer.TokenIf:
		p.ifExpr()
	case lexer.TokenLoop:
		p.consume(lexer.TokenLBrace, "expect '{' before loop body")
		n := p.blockStatements()
		p.consume(lexer.TokenRBrace, "expect '}' after loop body")
		p.b.OnLoop(n)
	default:
		p.errorAt(tok, fmt.Sprintf("unexpected token in expression: %q", tok.Lexeme))
	}
}

func (p *Parser) ifExpr() {
	p.expression()
	p.consume(lexer.TokenLBrace, "expect '{' before if body")
	nThen := p.blockStatements()
	p.consume(lexer.TokenRBrace, "expect '}' after if body")

	if !p.match(lexer.TokenElse) {
		p.b.OnIf(nThen)
		return
	}
	if p.check(lexer.TokenIf) {
		p.advance()
		p.ifExpr()
		// ifExpr pushed an expression, not a statement; OnIfElse's else
		// arm pops statements, so wrap it as a one-statement block.
		p.b.OnStmtExprList(1)
		p.b.OnIfElse(nThen, 1)
		return
	}
	p.consume(lexer.TokenLBrace, "expect '{' before else body")
	nElse := p.blockStatements()
	p.consume(lexer.TokenRBrace, "expect '}' after else body")
	p.b.OnIfElse(nThen, nElse)
}

// --- token utilities ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorAt(p.peek(), fmt.Sprintf("%s (got %q)", msg, p.peek().Lexeme))
	panic("unreachable")
}

func (p *Parser) check(t lexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	panic(errors.NewSyntaxError(msg, p.file, tok.Line, 0))
}
