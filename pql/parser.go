package pql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aep/parsekit/api"
)

type Parser struct {
	l        *Lexer
	curToken Token
	params   []any
	consumed int
}

func NewParser(l *Lexer, params ...any) *Parser {
	p := &Parser{l: l, params: params}
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.l.NextToken()
}

// Parse reads a query of the form
//
//	[(opts)] Class[(filters)] [{ includes }]
//
// Every ? in a filter value is replaced by the next element of params.
func Parse(input string, params ...any) (*Query, error) {
	p := NewParser(NewLexer(input), params...)
	q, err := p.ParseQuery()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected %s after query", tokenName(p.curToken.Type))
	}
	return q, nil
}

func (p *Parser) ParseQuery() (*Query, error) {
	query := &Query{}

	if p.curToken.Type == TOKEN_LPAREN {
		opts, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		if err := query.Options.set(opts); err != nil {
			return nil, err
		}
	}

	if p.curToken.Type != TOKEN_IDENT {
		return nil, fmt.Errorf("expected class name, got %s", tokenName(p.curToken.Type))
	}
	query.Class = p.curToken.Literal
	p.nextToken()

	if p.curToken.Type == TOKEN_LPAREN {
		filters, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		query.Filters = filters
	}

	if p.curToken.Type == TOKEN_LBRACE {
		includes, err := p.parseIncludes()
		if err != nil {
			return nil, err
		}
		query.Includes = includes
	}

	return query, nil
}

// parseConditions reads a parenthesized list of key=value pairs.
func (p *Parser) parseConditions() ([]Condition, error) {
	var conditions []Condition
	seen := make(map[string]bool)

	p.nextToken() // consume (

	for p.curToken.Type != TOKEN_RPAREN && p.curToken.Type != TOKEN_EOF {
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}

		if p.curToken.Type != TOKEN_IDENT {
			return nil, fmt.Errorf("expected identifier in filter, got %s", tokenName(p.curToken.Type))
		}
		key := p.curToken.Literal
		if seen[key] {
			return nil, fmt.Errorf("%s specified twice", key)
		}
		seen[key] = true
		p.nextToken()

		if p.curToken.Type != TOKEN_EQUALS {
			return nil, fmt.Errorf("expected = after %s, got %s", key, tokenName(p.curToken.Type))
		}
		p.nextToken()

		value, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		conditions = append(conditions, Condition{Key: key, Value: value})
	}

	if p.curToken.Type != TOKEN_RPAREN {
		return nil, errors.New("expected )")
	}
	p.nextToken()

	return conditions, nil
}

func (p *Parser) parseValue() (any, error) {
	switch p.curToken.Type {
	case TOKEN_STRING:
		value := p.curToken.Literal
		p.nextToken()
		return value, nil

	case TOKEN_IDENT:
		value := Literal(p.curToken.Literal)
		p.nextToken()
		return value, nil

	case TOKEN_PARAM:
		if p.consumed >= len(p.params) {
			return nil, fmt.Errorf("missing parameter %d", p.consumed+1)
		}
		value := p.params[p.consumed]
		p.consumed++
		p.nextToken()
		return value, nil

	case TOKEN_AT:
		p.nextToken()
		if p.curToken.Type != TOKEN_IDENT {
			return nil, fmt.Errorf("expected class name after @, got %s", tokenName(p.curToken.Type))
		}
		className := p.curToken.Literal
		p.nextToken()

		if p.curToken.Type != TOKEN_SLASH {
			return nil, fmt.Errorf("expected / after @%s, got %s", className, tokenName(p.curToken.Type))
		}
		p.nextToken()

		if p.curToken.Type != TOKEN_IDENT && p.curToken.Type != TOKEN_STRING {
			return nil, fmt.Errorf("expected object id after @%s/, got %s", className, tokenName(p.curToken.Type))
		}
		objectID := p.curToken.Literal
		p.nextToken()

		return api.NewPointer(className, objectID), nil
	}

	return nil, fmt.Errorf("expected value, got %s", tokenName(p.curToken.Type))
}

// literal interprets an unquoted value: booleans, null, integers and
// floats. Anything else is a plain string.
// Literal converts an unquoted value the way the parser does: true,
// false and null, then integers and floats, anything else stays a
// string. Only text starting with a digit, or - and a digit, is a number.
func Literal(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if !numeric(s) {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func numeric(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	return s != "" && isDigit(s[0])
}

// parseIncludes reads the pointer fields to inline. Each may itself list
// includes but takes no filters or options.
func (p *Parser) parseIncludes() ([]*Query, error) {
	var includes []*Query

	p.nextToken() // consume {

	for p.curToken.Type != TOKEN_RBRACE && p.curToken.Type != TOKEN_EOF {
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}

		nested, err := p.ParseQuery()
		if err != nil {
			return nil, err
		}
		if len(nested.Filters) > 0 || !nested.Options.empty() {
			return nil, fmt.Errorf("include %s cannot be filtered", nested.Class)
		}
		if strings.Contains(nested.Class, ".") {
			return nil, fmt.Errorf("include %s: nest includes with braces instead of dots", nested.Class)
		}
		includes = append(includes, nested)
	}

	if p.curToken.Type != TOKEN_RBRACE {
		return nil, errors.New("expected }")
	}
	p.nextToken()

	return includes, nil
}
