package sql

import "strings"

// Lexer tokenizes SQL input.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
}

// NewLexer creates a new lexer instance.
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

// NextToken scans the input and returns the next token. After the input is
// exhausted it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	switch {
	case l.ch == 0 && l.position >= len(l.input):
		return Token{Type: EOF, Position: len(l.input)}
	case isLetter(l.ch):
		pos := l.position
		lit := l.readIdentifier()
		return Token{Type: lookupIdent(lit), Literal: lit, Position: pos}
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		pos := l.position
		typ, lit := l.readNumber()
		return Token{Type: typ, Literal: lit, Position: pos}
	case l.ch == '\'':
		return l.readQuoted(STRING)
	case l.ch == '"':
		// Double quotes delimit identifiers, never keywords.
		return l.readQuoted(IDENT)
	}

	tok := l.readOperator()
	l.readChar()
	return tok
}

// readOperator recognizes one- and two-character operators and delimiters.
// The caller consumes the final character.
func (l *Lexer) readOperator() Token {
	pos := l.position
	two := func(t TokenType) Token {
		lit := l.input[pos : pos+2]
		l.readChar()
		return Token{Type: t, Literal: lit, Position: pos}
	}
	one := func(t TokenType) Token {
		return Token{Type: t, Literal: string(l.ch), Position: pos}
	}

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			return two(EQ)
		}
		return one(EQ)
	case '!':
		if l.peekChar() == '=' {
			return two(NE)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			return two(LE)
		case '>':
			return two(NE)
		}
		return one(LT)
	case '>':
		if l.peekChar() == '=' {
			return two(GE)
		}
		return one(GT)
	case '+':
		return one(PLUS)
	case '-':
		return one(MINUS)
	case '*':
		return one(MULT)
	case '/':
		return one(DIV)
	case '%':
		return one(MOD)
	case ',':
		return one(COMMA)
	case ';':
		return one(SEMICOLON)
	case '(':
		return one(LPAREN)
	case ')':
		return one(RPAREN)
	}
	return one(ILLEGAL)
}

// skipWhitespaceAndComments skips blanks and "--" line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.position < len(l.input) {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer or a float with optional fraction and exponent.
func (l *Lexer) readNumber() (TokenType, string) {
	position := l.position
	tokenType := INT

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tokenType = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			tokenType = FLOAT
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return tokenType, l.input[position:l.position]
}

// readQuoted reads text delimited by the current quote character. A doubled
// quote inside the text stands for one quote. An unterminated literal is
// returned as ILLEGAL.
func (l *Lexer) readQuoted(typ TokenType) Token {
	quote := l.ch
	pos := l.position
	var sb strings.Builder

	l.readChar()
	for {
		if l.position >= len(l.input) {
			return Token{Type: ILLEGAL, Literal: l.input[pos:], Position: pos}
		}
		if l.ch == quote {
			if l.peekChar() != quote {
				break
			}
			l.readChar()
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar()
	return Token{Type: typ, Literal: sb.String(), Position: pos}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
