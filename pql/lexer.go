package pql

import (
	"errors"
	"unicode"
)

type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF
	TOKEN_IDENT
	TOKEN_EQUALS
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_STRING
	TOKEN_COMMA
	TOKEN_AT
	TOKEN_SLASH
	TOKEN_PARAM
)

func tokenName(i TokenType) string {
	switch i {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_IDENT:
		return "IDENT"
	case TOKEN_EQUALS:
		return "EQUALS"
	case TOKEN_LPAREN:
		return "LPAREN"
	case TOKEN_RPAREN:
		return "RPAREN"
	case TOKEN_LBRACE:
		return "LBRACE"
	case TOKEN_RBRACE:
		return "RBRACE"
	case TOKEN_STRING:
		return "STRING"
	case TOKEN_COMMA:
		return "COMMA"
	case TOKEN_AT:
		return "AT"
	case TOKEN_SLASH:
		return "SLASH"
	case TOKEN_PARAM:
		return "PARAM"
	}
	return "ILLEGAL"
}

type Token struct {
	Type    TokenType
	Literal string
}

type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' || l.ch == '-' {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readString reads a double quoted string. A backslash escapes the next
// character.
func (l *Lexer) readString() (string, error) {
	var out []byte
	for {
		l.readChar()
		switch l.ch {
		case 0:
			return "", errors.New("unterminated string")
		case '\\':
			l.readChar()
			if l.ch == 0 {
				return "", errors.New("unterminated string")
			}
		case '"':
			return string(out), nil
		}
		out = append(out, l.ch)
	}
}

func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	switch l.ch {
	case '=':
		tok = Token{TOKEN_EQUALS, string(l.ch)}
	case '(':
		tok = Token{TOKEN_LPAREN, string(l.ch)}
	case ')':
		tok = Token{TOKEN_RPAREN, string(l.ch)}
	case '{':
		tok = Token{TOKEN_LBRACE, string(l.ch)}
	case '}':
		tok = Token{TOKEN_RBRACE, string(l.ch)}
	case ',':
		tok = Token{TOKEN_COMMA, string(l.ch)}
	case '@':
		tok = Token{TOKEN_AT, string(l.ch)}
	case '/':
		tok = Token{TOKEN_SLASH, string(l.ch)}
	case '?':
		tok = Token{TOKEN_PARAM, string(l.ch)}
	case '"':
		if str, err := l.readString(); err == nil {
			tok = Token{TOKEN_STRING, str}
		} else {
			tok = Token{TOKEN_ILLEGAL, ""}
		}
	case 0:
		tok = Token{TOKEN_EOF, ""}
	default:
		// numbers, including negative ones, and object ids starting with
		// a digit are read as identifiers too
		if isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || (l.ch == '-' && isDigit(l.peekChar())) {
			tok.Literal = l.readIdentifier()
			tok.Type = TOKEN_IDENT
			return tok
		}
		tok = Token{TOKEN_ILLEGAL, string(l.ch)}
	}

	l.readChar()
	return tok
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return unicode.IsDigit(rune(ch))
}
