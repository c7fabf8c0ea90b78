// Package parser builds a pkg/ast.Command tree from a pkg/token
// sequence using recursive descent. Precedence, loosest to tightest:
// sequence (;, &&, ||, &) > pipe (|) > redirect > simple. All four
// sequence-level operators share one precedence and fold
// left-associatively in a single loop (spec.md §4.2's flat
// `sequence ::= pipe ((';'|'&&'|'||') pipe | '&')*` production): '&'
// backgrounds whatever has accumulated so far, not just the pipe that
// immediately precedes it, so `a ; b &` parses as
// Background{Sequence{a,b}} and the whole chain runs asynchronously.
package parser

import (
	"fmt"

	"github.com/tmilner/posh/pkg/ast"
	"github.com/tmilner/posh/pkg/lexer"
	"github.com/tmilner/posh/pkg/token"
)

// Error reports a parse failure with the offending token.
type Error struct {
	Got  token.Token
	Want string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unexpected %s, want %s", e.Got, e.Want)
}

// Parser consumes a fixed token slice produced by the lexer.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New creates a Parser over an already-lexed token sequence.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseLine lexes and parses a single input line in one step.
func ParseLine(line string) (ast.Command, error) {
	toks, err := lexer.Tokenize(line)
	if err != nil {
		return nil, err
	}
	return New(toks).Parse()
}

// Parse consumes the whole token sequence and returns its Command tree.
// A line holding no words (blank or pure whitespace) returns (nil, nil).
func (p *Parser) Parse() (ast.Command, error) {
	if p.peek().Type == token.End {
		return nil, nil
	}
	cmd, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != token.End {
		return nil, &Error{Got: p.peek(), Want: token.End.String()}
	}
	return cmd, nil
}

func (p *Parser) peek() token.Token { return p.tokens[p.pos] }

func (p *Parser) advance() token.Token {
	t := p.tokens[p.pos]
	if t.Type != token.End {
		p.pos++
	}
	return t
}

// parseSequence parses one or more pipe-level commands joined by ';',
// '&&', '||', or a trailing '&', all at one flat left-associative
// precedence level: a; b && c -> Conditional{Sequence{a,b}, c, And},
// and a ; b & -> Background{Sequence{a,b}} (the '&' backgrounds
// everything accumulated in `left` so far, not just the last operand).
func (p *Parser) parseSequence() (ast.Command, error) {
	left, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case token.Semicolon:
			p.advance()
			if p.peek().Type == token.End {
				return left, nil
			}
			right, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			left = &ast.Sequence{First: left, Second: right}
		case token.AndIf:
			p.advance()
			right, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			left = &ast.Conditional{Left: left, Right: right, Op: ast.And}
		case token.OrIf:
			p.advance()
			right, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			left = &ast.Conditional{Left: left, Right: right, Op: ast.Or}
		case token.Background:
			p.advance()
			left = &ast.Background{Child: left}
		default:
			return left, nil
		}
	}
}

// parsePipe parses redirect-level commands joined by '|',
// left-associative: a | b | c -> Pipe{Pipe{a,b}, c}.
func (p *Parser) parsePipe() (ast.Command, error) {
	left, err := p.parseRedirect()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.Pipe {
		p.advance()
		right, err := p.parseRedirect()
		if err != nil {
			return nil, err
		}
		left = &ast.Pipe{Left: left, Right: right}
	}
	return left, nil
}

// parseRedirect parses a simple command followed by zero or more
// redirections, each nesting the previous as Child.
func (p *Parser) parseRedirect() (ast.Command, error) {
	cmd, err := p.parseSimple()
	if err != nil {
		return nil, err
	}
	for {
		var kind ast.RedirectKind
		switch p.peek().Type {
		case token.RedirectIn:
			kind = ast.RedirIn
		case token.RedirectOut:
			kind = ast.RedirOut
		case token.RedirectAppend:
			kind = ast.RedirAppend
		default:
			return cmd, nil
		}
		p.advance()
		target, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		cmd = &ast.Redirect{Child: cmd, Kind_: kind, Target: target}
	}
}

// parseSimple parses a command name followed by its argument words.
func (p *Parser) parseSimple() (ast.Command, error) {
	name, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	args := []string{name}
	for p.isWordLike(p.peek()) {
		w, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		args = append(args, w)
	}
	return &ast.Simple{Command: name, Arguments: args}, nil
}

func (p *Parser) isWordLike(t token.Token) bool {
	return t.Type == token.Word || t.Type == token.StringLiteral
}

// expectWord consumes a Word or StringLiteral token and returns its text.
func (p *Parser) expectWord() (string, error) {
	t := p.peek()
	if !p.isWordLike(t) {
		return "", &Error{Got: t, Want: "word"}
	}
	p.advance()
	return t.Text, nil
}
