package sql

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a SQL token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	IDENT  // column, table and function names
	INT    // 42
	FLOAT  // 4.2, 1e3
	STRING // 'text'

	SELECT
	FROM
	WHERE
	GROUP
	BY
	HAVING
	ORDER
	ASC
	DESC
	LIMIT
	OFFSET
	AS
	AND
	OR
	NOT
	IS
	NULL
	TRUE
	FALSE

	EQ    // = or ==
	NE    // != or <>
	LT    // <
	LE    // <=
	GT    // >
	GE    // >=
	PLUS  // +
	MINUS // -
	MULT  // *
	DIV   // /
	MOD   // %

	COMMA     // ,
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
)

var tokenNames = [...]string{
	EOF:       "end of input",
	ILLEGAL:   "illegal",
	IDENT:     "identifier",
	INT:       "integer",
	FLOAT:     "float",
	STRING:    "string",
	SELECT:    "SELECT",
	FROM:      "FROM",
	WHERE:     "WHERE",
	GROUP:     "GROUP",
	BY:        "BY",
	HAVING:    "HAVING",
	ORDER:     "ORDER",
	ASC:       "ASC",
	DESC:      "DESC",
	LIMIT:     "LIMIT",
	OFFSET:    "OFFSET",
	AS:        "AS",
	AND:       "AND",
	OR:        "OR",
	NOT:       "NOT",
	IS:        "IS",
	NULL:      "NULL",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	LE:        "<=",
	GT:        ">",
	GE:        ">=",
	PLUS:      "+",
	MINUS:     "-",
	MULT:      "*",
	DIV:       "/",
	MOD:       "%",
	COMMA:     ",",
	SEMICOLON: ";",
	LPAREN:    "(",
	RPAREN:    ")",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a single SQL token. Position is the byte offset of its
// first character.
type Token struct {
	Type     TokenType
	Literal  string
	Position int
}

var keywords = map[string]TokenType{
	"SELECT": SELECT,
	"FROM":   FROM,
	"WHERE":  WHERE,
	"GROUP":  GROUP,
	"BY":     BY,
	"HAVING": HAVING,
	"ORDER":  ORDER,
	"ASC":    ASC,
	"DESC":   DESC,
	"LIMIT":  LIMIT,
	"OFFSET": OFFSET,
	"AS":     AS,
	"AND":    AND,
	"OR":     OR,
	"NOT":    NOT,
	"IS":     IS,
	"NULL":   NULL,
	"TRUE":   TRUE,
	"FALSE":  FALSE,
}

// lookupIdent checks if identifier is a keyword. Keywords are case-insensitive.
func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return IDENT
}
