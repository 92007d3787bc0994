package expr

import (
	"errors"
	"fmt"
)

type parser struct {
	tokens []token
	pos    int
}

func parse(src string) (node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, errors.New("expr: empty expression")
	}
	p := &parser{tokens: tokens}
	root, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("expr: unexpected token %q at %d", tok.raw, tok.pos)
	}
	return root, nil
}

func (p *parser) current() token {
	if p.pos >= len(p.tokens) {
		return token{kind: tokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) match(punct ...string) (string, bool) {
	tok := p.current()
	if tok.kind != tokenPunct {
		return "", false
	}
	for _, want := range punct {
		if tok.raw == want {
			p.pos++
			return want, true
		}
	}
	return "", false
}

func (p *parser) expect(punct string) error {
	if _, ok := p.match(punct); ok {
		return nil
	}
	tok := p.current()
	if tok.kind == tokenEOF {
		return fmt.Errorf("expr: expected %q, got end of input", punct)
	}
	return fmt.Errorf("expr: expected %q, got %q at %d", punct, tok.raw, tok.pos)
}

func (p *parser) parseTernary() (node, error) {
	cond, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	if _, ok := p.match("?"); !ok {
		return cond, nil
	}
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	otherwise, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return ternaryNode{cond: cond, then: then, otherwise: otherwise}, nil
}

func (p *parser) parseCoalesce() (node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.match("??"); !ok {
			return left, nil
		}
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: "??", left: left, right: right}
	}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.match("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.match("&&"); !ok {
			return left, nil
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.match("===", "!==", "==", "!=")
		if !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.match("<=", ">=", "<", ">")
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.match("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.match("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.match("!", "-", "+"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	target, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peekPunct("."):
			p.pos++
			tok := p.current()
			if tok.kind != tokenIdentifier {
				return nil, fmt.Errorf("expr: expected property name after '.' at %d", tok.pos)
			}
			p.pos++
			target = memberNode{object: target, name: tok.raw}
		case p.peekPunct("["):
			p.pos++
			index, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			target = indexNode{object: target, index: index}
		case p.peekPunct("("):
			ident, ok := target.(identNode)
			if !ok {
				return nil, errors.New("expr: only named functions can be called")
			}
			p.pos++
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			target = callNode{name: ident.name, args: args}
		default:
			return target, nil
		}
	}
}

func (p *parser) peekPunct(punct string) bool {
	tok := p.current()
	return tok.kind == tokenPunct && tok.raw == punct
}

func (p *parser) parseList(closing string) ([]node, error) {
	var items []node
	if _, ok := p.match(closing); ok {
		return items, nil
	}
	for {
		item, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if _, ok := p.match(","); ok {
			continue
		}
		if err := p.expect(closing); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current()
	switch tok.kind {
	case tokenNumber:
		p.pos++
		return literalNode{value: tok.num}, nil
	case tokenString:
		p.pos++
		return literalNode{value: tok.raw}, nil
	case tokenIdentifier:
		p.pos++
		switch tok.raw {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null", "undefined", "nil":
			return literalNode{value: nil}, nil
		}
		return identNode{name: tok.raw}, nil
	case tokenEOF:
		return nil, errors.New("expr: unexpected end of input")
	}

	switch tok.raw {
	case "(":
		p.pos++
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case "[":
		p.pos++
		items, err := p.parseList("]")
		if err != nil {
			return nil, err
		}
		return arrayNode{items: items}, nil
	case "{":
		p.pos++
		return p.parseObject()
	}
	return nil, fmt.Errorf("expr: unexpected token %q at %d", tok.raw, tok.pos)
}

func (p *parser) parseObject() (node, error) {
	obj := objectNode{}
	if _, ok := p.match("}"); ok {
		return obj, nil
	}
	for {
		tok := p.current()
		if tok.kind != tokenIdentifier && tok.kind != tokenString {
			return nil, fmt.Errorf("expr: expected object key at %d", tok.pos)
		}
		p.pos++
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, tok.raw)
		obj.values = append(obj.values, value)
		if _, ok := p.match(","); ok {
			continue
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return obj, nil
	}
}
