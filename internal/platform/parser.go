package platform

import (
	"errors"
	"fmt"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	identifierToken
	stringToken
	openToken
	closeToken
	commaToken
	equalToken
	anyToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var identifierMatcher = parsly.NewToken(identifierToken, "Identifier", &identifierMatch{})
var stringMatcher = parsly.NewToken(stringToken, "String", matcher.NewBlock('"', '"', '\\'))
var openMatcher = parsly.NewToken(openToken, "(", matcher.NewByte('('))
var closeMatcher = parsly.NewToken(closeToken, ")", matcher.NewByte(')'))
var commaMatcher = parsly.NewToken(commaToken, ",", matcher.NewByte(','))
var equalMatcher = parsly.NewToken(equalToken, "=", matcher.NewByte('='))
var anyMatcher = parsly.NewToken(anyToken, "Any", &anyMatch{})

type identifierMatch struct{}

func (i *identifierMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize {
		return 0
	}
	if !isIdentifierStart(cursor.Input[cursor.Pos]) {
		return 0
	}
	pos := cursor.Pos + 1
	for pos < cursor.InputSize && isIdentifierPart(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

func isIdentifierStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isIdentifierPart(b byte) bool {
	return isIdentifierStart(b) || (b >= '0' && b <= '9')
}

type anyMatch struct{}

func (a *anyMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos < cursor.InputSize {
		return 1
	}
	return 0
}

// ParseExpr parses the body of a `cfg(...)` filter, e.g.
// `any(windows, target_os = "android")`.
func ParseExpr(s string) (*Expr, error) {
	cursor := parsly.NewCursor("", []byte(s), 0)
	expr, err := parseExpr(cursor)
	if err != nil {
		return nil, err
	}
	if matched := cursor.MatchAfterOptional(whitespaceMatcher, anyMatcher); matched.Code != parsly.EOF {
		return nil, fmt.Errorf("unexpected trailing input at offset %d", cursor.Pos-1)
	}
	return expr, nil
}

func parseExpr(cursor *parsly.Cursor) (*Expr, error) {
	matched := cursor.MatchAfterOptional(whitespaceMatcher, identifierMatcher)
	switch matched.Code {
	case identifierToken:
	case parsly.EOF:
		return nil, errors.New("expected cfg predicate, found end of input")
	default:
		return nil, cursor.NewError(identifierMatcher)
	}
	name := matched.Text(cursor)

	var op Op
	switch name {
	case "all":
		op = OpAll
	case "any":
		op = OpAny
	case "not":
		op = OpNot
	}
	if op != OpValue {
		if cursor.MatchAfterOptional(whitespaceMatcher, openMatcher).Code == openToken {
			args, err := parseList(cursor)
			if err != nil {
				return nil, fmt.Errorf("%s(): %w", name, err)
			}
			if op == OpNot && len(args) != 1 {
				return nil, fmt.Errorf("not() takes exactly one predicate, got %d", len(args))
			}
			return &Expr{Op: op, Args: args}, nil
		}
	}

	if cursor.MatchAfterOptional(whitespaceMatcher, equalMatcher).Code == equalToken {
		value := cursor.MatchAfterOptional(whitespaceMatcher, stringMatcher)
		if value.Code != stringToken {
			return nil, cursor.NewError(stringMatcher)
		}
		text := value.Text(cursor)
		return KeyPair(name, text[1:len(text)-1]), nil
	}
	return Name(name), nil
}

// parseList parses a comma separated predicate list up to and including the
// closing parenthesis. A trailing comma is accepted.
func parseList(cursor *parsly.Cursor) ([]*Expr, error) {
	var args []*Expr
	for {
		if cursor.MatchAfterOptional(whitespaceMatcher, closeMatcher).Code == closeToken {
			return args, nil
		}
		arg, err := parseExpr(cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		matched := cursor.MatchAfterOptional(whitespaceMatcher, commaMatcher, closeMatcher)
		switch matched.Code {
		case commaToken:
		case closeToken:
			return args, nil
		case parsly.EOF:
			return nil, errors.New("unterminated predicate list")
		default:
			return nil, cursor.NewError(commaMatcher, closeMatcher)
		}
	}
}
