// Package lexer implements the posh tokenizer: a four-state machine
// (Idle, ReadingWord, ReadingLiteral, AfterOperator) that turns one
// input line into a token sequence terminated by token.End, or an
// Error.
package lexer

import (
	"strings"
	"unicode"

	"github.com/tmilner/posh/pkg/token"
)

type state int

const (
	stateIdle state = iota
	stateReadingWord
	stateReadingLiteral
	stateAfterOperator
)

// Lexer holds the state machine over a single input line.
type Lexer struct {
	input   []rune
	pos     int
	state   state
	current strings.Builder
	tokens  []token.Token
}

// New creates a Lexer over the given line.
func New(input string) *Lexer {
	return &Lexer{input: []rune(input), tokens: make([]token.Token, 0, 16)}
}

// Tokenize runs the state machine to completion and returns the token
// sequence ending in token.End, or the first Error encountered.
func Tokenize(input string) ([]token.Token, error) {
	return New(input).Tokenize()
}

// Tokenize drives the lexer over its input line.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		var err error
		switch {
		case ch == ' ' || ch == '\t':
			err = l.onSpace()
		case ch == '"':
			err = l.onQuote()
		case ch == '\\':
			err = l.onBackslash()
		case ch == '>' || ch == '&' || ch == '|':
			err = l.onDoublableOperator(ch)
		case ch == '<' || ch == ';':
			err = l.onSingleOperator(ch)
		default:
			err = l.onOther(ch)
		}
		if err != nil {
			return nil, err
		}
	}

	switch l.state {
	case stateReadingWord:
		l.emitWord()
	case stateReadingLiteral:
		return nil, &Error{Kind: ErrUnterminatedStringLiteral}
	case stateAfterOperator, stateIdle:
		// accept: trailing operator or idle whitespace needs no flush.
	}

	l.tokens = append(l.tokens, token.Token{Type: token.End})
	return l.tokens, nil
}

func (l *Lexer) emitWord() {
	l.tokens = append(l.tokens, token.Token{Type: token.Word, Text: l.current.String()})
	l.current.Reset()
	l.state = stateIdle
}

func (l *Lexer) onSpace() error {
	switch l.state {
	case stateIdle:
		l.pos++
	case stateReadingLiteral:
		l.current.WriteRune(' ')
		l.pos++
	case stateReadingWord:
		l.emitWord()
		l.pos++
	case stateAfterOperator:
		l.state = stateIdle
		l.pos++
	}
	return nil
}

func (l *Lexer) onQuote() error {
	switch l.state {
	case stateIdle, stateAfterOperator:
		l.state = stateReadingLiteral
		l.pos++
	case stateReadingLiteral:
		l.tokens = append(l.tokens, token.Token{Type: token.StringLiteral, Text: l.current.String()})
		l.current.Reset()
		l.state = stateIdle
		l.pos++
	case stateReadingWord:
		return unexpected('"')
	}
	return nil
}

// translateEscape maps the character following a backslash to its
// literal value: n -> newline, t -> tab, backslash -> backslash,
// anything else passes through unchanged.
func translateEscape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case '\\':
		return '\\'
	default:
		return ch
	}
}

func (l *Lexer) onBackslash() error {
	switch l.state {
	case stateReadingWord, stateReadingLiteral:
		l.pos++
		if l.pos >= len(l.input) {
			return &Error{Kind: ErrIncompleteEscapeSequence}
		}
		l.current.WriteRune(translateEscape(l.input[l.pos]))
		l.pos++
	case stateIdle:
		l.pos++
		if l.pos >= len(l.input) {
			return &Error{Kind: ErrIncompleteEscapeSequence}
		}
		escaped := l.input[l.pos]
		l.pos++
		if unicode.IsSpace(escaped) {
			// drop: an escaped space at the start of a word is discarded.
			return nil
		}
		l.current.WriteRune(translateEscape(escaped))
		l.state = stateReadingWord
	case stateAfterOperator:
		return unexpected('\\')
	}
	return nil
}

// onDoublableOperator handles '>', '&' and '|', each of which doubles
// into RedirectAppend, AndIf or OrIf when immediately repeated.
func (l *Lexer) onDoublableOperator(ch rune) error {
	switch l.state {
	case stateIdle:
		l.emitOperator(ch)
	case stateReadingWord:
		l.emitWord()
		l.emitOperator(ch)
	case stateReadingLiteral:
		l.current.WriteRune(ch)
		l.pos++
		return nil
	case stateAfterOperator:
		return unexpected(ch)
	}
	return nil
}

func (l *Lexer) emitOperator(ch rune) {
	l.pos++
	doubled := l.pos < len(l.input) && l.input[l.pos] == ch
	var typ token.Type
	switch {
	case ch == '>' && doubled:
		typ = token.RedirectAppend
	case ch == '&' && doubled:
		typ = token.AndIf
	case ch == '|' && doubled:
		typ = token.OrIf
	case ch == '>':
		typ = token.RedirectOut
	case ch == '&':
		typ = token.Background
	case ch == '|':
		typ = token.Pipe
	}
	if doubled {
		l.pos++
	}
	l.tokens = append(l.tokens, token.Token{Type: typ})
	l.state = stateAfterOperator
}

// onSingleOperator handles '<' and ';', neither of which has a doubled form.
func (l *Lexer) onSingleOperator(ch rune) error {
	switch l.state {
	case stateIdle:
		l.emitSingle(ch)
	case stateReadingWord:
		l.emitWord()
		l.emitSingle(ch)
	case stateReadingLiteral:
		l.current.WriteRune(ch)
		l.pos++
	case stateAfterOperator:
		return unexpected(ch)
	}
	return nil
}

func (l *Lexer) emitSingle(ch rune) {
	typ := token.RedirectIn
	if ch == ';' {
		typ = token.Semicolon
	}
	l.tokens = append(l.tokens, token.Token{Type: typ})
	l.pos++
	l.state = stateAfterOperator
}

func (l *Lexer) onOther(ch rune) error {
	switch l.state {
	case stateIdle:
		l.current.WriteRune(ch)
		l.state = stateReadingWord
		l.pos++
	case stateReadingLiteral, stateReadingWord:
		l.current.WriteRune(ch)
		l.pos++
	case stateAfterOperator:
		return unexpected(ch)
	}
	return nil
}
