// Package selector parses the CSS selector subset emitted by the scanner and
// compiles it to XPath for DOM backends that have no native CSS engine.
package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// Group is a comma separated list of complex selectors ("h1, h2 .title").
type Group []Complex

// Complex is a sequence of compound selectors joined by combinators ("div > p").
type Complex struct {
	Steps []Step
}

// Step pairs a compound selector with the combinator that precedes it.
type Step struct {
	Combinator Combinator
	Compound   Compound
}

// Compound is the part of a selector between combinators (div#id.a[x="1"]:nth-of-type(2)).
type Compound struct {
	TagName    string
	ID         string
	Classes    []string
	Attributes []Attribute
	// NthOfType is the 1-based :nth-of-type index, zero when absent.
	NthOfType int
}

// Attribute represents `[name]` or `[name op "value"]`.
type Attribute struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// Combinator defines the relationship between compound selectors.
type Combinator int

const (
	CombinatorNone            Combinator = iota // first step
	CombinatorDescendant                        // whitespace
	CombinatorChild                             // >
	CombinatorAdjacentSibling                   // +
	CombinatorGeneralSibling                    // ~
)

// IsEmpty reports whether the compound carries no constraint at all.
func (c Compound) IsEmpty() bool {
	return c.TagName == "" && c.ID == "" && len(c.Classes) == 0 && len(c.Attributes) == 0 && c.NthOfType == 0
}

// ParseError describes where a selector stopped making sense.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid selector %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parser holds the state of the selector parser.
type Parser struct {
	input string
	pos   int
}

// NewParser creates a parser for a single selector string.
func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// Parse parses the whole input as a selector group. Unlike a stylesheet
// parser it does not skip garbage: any unsupported syntax is an error.
func Parse(input string) (Group, error) {
	return NewParser(input).Parse()
}

// Parse analyzes the input and builds a Group.
func (p *Parser) Parse() (Group, error) {
	var group Group
	for {
		p.consumeWhitespace()
		complex, err := p.parseComplex()
		if err != nil {
			return nil, err
		}
		group = append(group, complex)

		p.consumeWhitespace()
		if p.eof() {
			return group, nil
		}
		if p.currentChar() != ',' {
			return nil, p.errorf("unexpected %q", p.currentChar())
		}
		p.consumeChar()
	}
}

func (p *Parser) parseComplex() (Complex, error) {
	var complex Complex
	combinator := CombinatorNone

	for {
		compound, err := p.parseCompound()
		if err != nil {
			return Complex{}, err
		}
		complex.Steps = append(complex.Steps, Step{Combinator: combinator, Compound: compound})

		hadSpace := p.consumeWhitespace()
		if p.eof() || p.currentChar() == ',' {
			return complex, nil
		}

		switch p.currentChar() {
		case '>':
			combinator = CombinatorChild
			p.consumeChar()
		case '+':
			combinator = CombinatorAdjacentSibling
			p.consumeChar()
		case '~':
			combinator = CombinatorGeneralSibling
			p.consumeChar()
		default:
			if !hadSpace {
				return Complex{}, p.errorf("unexpected %q", p.currentChar())
			}
			combinator = CombinatorDescendant
		}
		p.consumeWhitespace()
	}
}

// parseCompound parses a single selector component (e.g., div#id.class1[x]).
func (p *Parser) parseCompound() (Compound, error) {
	var c Compound

	if !p.eof() {
		ch := p.currentChar()
		if ch == '*' {
			p.consumeChar()
			c.TagName = "*"
		} else if isValidIdentifierStart(ch) {
			c.TagName = strings.ToLower(p.parseIdentifier())
		}
	}

	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			id := p.parseIdentifier()
			if id == "" {
				return c, p.errorf("empty id")
			}
			c.ID = id
		case '.':
			p.consumeChar()
			class := p.parseIdentifier()
			if class == "" {
				return c, p.errorf("empty class")
			}
			c.Classes = append(c.Classes, class)
		case '[':
			p.consumeChar()
			attr, err := p.parseAttribute()
			if err != nil {
				return c, err
			}
			c.Attributes = append(c.Attributes, attr)
		case ':':
			p.consumeChar()
			if err := p.parsePseudo(&c); err != nil {
				return c, err
			}
		default:
			goto done
		}
	}

done:
	if c.IsEmpty() {
		return c, p.errorf("expected a selector")
	}
	return c, nil
}

// parsePseudo handles the positional pseudo classes the scanner emits.
func (p *Parser) parsePseudo(c *Compound) error {
	name := strings.ToLower(p.parseIdentifier())
	switch name {
	case "first-of-type":
		c.NthOfType = 1
		return nil
	case "nth-of-type":
	default:
		return p.errorf("unsupported pseudo class :%s", name)
	}

	if p.eof() || p.currentChar() != '(' {
		return p.errorf("expected '(' after :nth-of-type")
	}
	p.consumeChar()
	p.consumeWhitespace()
	start := p.pos
	for !p.eof() && p.currentChar() >= '0' && p.currentChar() <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil || n < 1 {
		return p.errorf(":nth-of-type requires a positive integer")
	}
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != ')' {
		return p.errorf("expected ')'")
	}
	p.consumeChar()
	c.NthOfType = n
	return nil
}

// parseAttribute parses the contents of `[...]`.
func (p *Parser) parseAttribute() (Attribute, error) {
	p.consumeWhitespace()
	name := strings.ToLower(p.parseIdentifier())
	if name == "" {
		return Attribute{}, p.errorf("expected attribute name")
	}
	p.consumeWhitespace()

	if p.eof() {
		return Attribute{}, p.errorf("unexpected end of attribute selector")
	}
	if p.currentChar() == ']' {
		p.consumeChar()
		return Attribute{Name: name}, nil
	}

	var operator string
	switch ch := p.consumeChar(); ch {
	case '=':
		operator = "="
	case '~', '|', '^', '$', '*':
		if p.eof() || p.currentChar() != '=' {
			return Attribute{}, p.errorf("expected '=' after %q", ch)
		}
		p.consumeChar()
		operator = string(ch) + "="
	default:
		return Attribute{}, p.errorf("unexpected %q in attribute selector", ch)
	}

	p.consumeWhitespace()
	var value string
	if !p.eof() && (p.currentChar() == '"' || p.currentChar() == '\'') {
		v, err := p.parseQuoted()
		if err != nil {
			return Attribute{}, err
		}
		value = v
	} else {
		value = p.parseIdentifier()
		if value == "" {
			return Attribute{}, p.errorf("expected attribute value")
		}
	}
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ']' {
		return Attribute{}, p.errorf("expected ']' to close attribute selector")
	}
	p.consumeChar()
	return Attribute{Name: name, Operator: operator, Value: value}, nil
}

// parseQuoted reads a quoted CSS string, resolving backslash escapes.
func (p *Parser) parseQuoted() (string, error) {
	quote := p.consumeChar()
	var sb strings.Builder
	for !p.eof() {
		ch := p.consumeChar()
		switch {
		case ch == quote:
			return sb.String(), nil
		case ch == '\\':
			if p.eof() {
				return "", p.errorf("dangling escape")
			}
			if isHexDigit(p.currentChar()) {
				sb.WriteRune(p.parseHexEscape())
				continue
			}
			sb.WriteByte(p.consumeChar())
		default:
			sb.WriteByte(ch)
		}
	}
	return "", p.errorf("unterminated string")
}

// parseHexEscape reads up to six hex digits plus one optional trailing space.
func (p *Parser) parseHexEscape() rune {
	start := p.pos
	for !p.eof() && p.pos-start < 6 && isHexDigit(p.currentChar()) {
		p.pos++
	}
	code, _ := strconv.ParseUint(p.input[start:p.pos], 16, 32)
	if !p.eof() && p.currentChar() == ' ' {
		p.pos++
	}
	if code == 0 || code > 0x10FFFF {
		return '�'
	}
	return rune(code)
}

// --- Lexer-like Helpers ---

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *Parser) consumeWhitespace() bool {
	start := p.pos
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
	return p.pos > start
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
