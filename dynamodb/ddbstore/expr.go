package ddbstore

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// The store understands the conjunctive subset of the DynamoDB expression
// language that key conditions and create-only writes need:
//
//	cond    := term { AND term }
//	term    := "(" cond ")"
//	         | operand op operand
//	         | operand BETWEEN operand AND operand
//	         | begins_with "(" operand "," operand ")"
//	         | attribute_exists "(" operand ")"
//	         | attribute_not_exists "(" operand ")"
//	op      := "=" | "<>" | "<" | "<=" | ">" | ">="
//	operand := attribute name | #name | :value
//
// This covers what the expression builder generates for KeyCondition and for
// AttributeExists/AttributeNotExists conditions.

type operator string

const (
	opEqual      operator = "="
	opNotEqual   operator = "<>"
	opLess       operator = "<"
	opLessEq     operator = "<="
	opGreater    operator = ">"
	opGreaterEq  operator = ">="
	opBetween    operator = "BETWEEN"
	opBeginsWith operator = "begins_with"
	opExists     operator = "attribute_exists"
	opNotExists  operator = "attribute_not_exists"
)

// operand is an attribute path or a value placeholder, resolved at parse time.
type operand struct {
	attribute string
	value     types.AttributeValue
}

func (o operand) isAttribute() bool {
	return o.value == nil
}

type comparison struct {
	op       operator
	operands []operand
}

// condition is a conjunction of comparisons.
type condition []comparison

type exprParams struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func parseCondition(expr string, p exprParams) (condition, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, validationError("invalid expression %q: %v", expr, err)
	}
	ps := &exprParser{toks: toks, params: p}
	cond, err := ps.parseConjunction()
	if err == nil && !ps.done() {
		err = fmt.Errorf("unexpected %q", ps.peek())
	}
	if err != nil {
		return nil, validationError("invalid expression %q: %v", expr, err)
	}
	return cond, nil
}

type exprParser struct {
	toks   []string
	pos    int
	params exprParams
}

func (p *exprParser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *exprParser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) expect(tok string) error {
	if got := p.next(); !strings.EqualFold(got, tok) {
		if got == "" {
			return fmt.Errorf("expected %q, got end of expression", tok)
		}
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *exprParser) parseConjunction() (condition, error) {
	var out condition
	for {
		terms, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		out = append(out, terms...)
		if !strings.EqualFold(p.peek(), "AND") {
			return out, nil
		}
		p.next()
	}
}

func (p *exprParser) parseTerm() (condition, error) {
	switch tok := p.peek(); {
	case tok == "(":
		p.next()
		cond, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		return cond, p.expect(")")
	case tok == string(opBeginsWith), tok == string(opExists), tok == string(opNotExists):
		p.next()
		return p.parseFunction(operator(tok))
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok := p.next()
	if strings.EqualFold(tok, string(opBetween)) {
		lower, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if err := p.expect("AND"); err != nil {
			return nil, err
		}
		upper, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return condition{{op: opBetween, operands: []operand{left, lower, upper}}}, nil
	}
	switch op := operator(tok); op {
	case opEqual, opNotEqual, opLess, opLessEq, opGreater, opGreaterEq:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return condition{{op: op, operands: []operand{left, right}}}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", tok)
}

func (p *exprParser) parseFunction(op operator) (condition, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	arg, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	args := []operand{arg}
	if op == opBeginsWith {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		prefix, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		args = append(args, prefix)
	}
	if !args[0].isAttribute() {
		return nil, fmt.Errorf("%s requires an attribute as first argument", op)
	}
	return condition{{op: op, operands: args}}, p.expect(")")
}

func (p *exprParser) parseOperand() (operand, error) {
	tok := p.next()
	switch {
	case tok == "":
		return operand{}, fmt.Errorf("expected operand, got end of expression")
	case strings.HasPrefix(tok, ":"):
		v, ok := p.params.values[tok]
		if !ok {
			return operand{}, fmt.Errorf("value placeholder %s is not defined", tok)
		}
		return operand{value: v}, nil
	case strings.HasPrefix(tok, "#"):
		name, ok := p.params.names[tok]
		if !ok {
			return operand{}, fmt.Errorf("name placeholder %s is not defined", tok)
		}
		return operand{attribute: name}, nil
	case isIdentifier(tok):
		return operand{attribute: tok}, nil
	}
	return operand{}, fmt.Errorf("unexpected %q", tok)
}

func isIdentifier(tok string) bool {
	for i, r := range tok {
		if !(unicode.IsLetter(r) || r == '_' || i > 0 && unicode.IsDigit(r)) {
			return false
		}
	}
	return tok != ""
}

func tokenize(expr string) ([]string, error) {
	var toks []string
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == ',' || r == '=':
			toks = append(toks, string(r))
			i++
		case r == '<' || r == '>':
			if i+1 < len(rs) && (rs[i+1] == '=' || r == '<' && rs[i+1] == '>') {
				toks = append(toks, string(rs[i:i+2]))
				i += 2
			} else {
				toks = append(toks, string(r))
				i++
			}
		case r == '#' || r == ':' || unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, string(rs[i:j]))
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return toks, nil
}

// eval reports whether item satisfies every comparison of c.
func (c condition) eval(item map[string]types.AttributeValue) (bool, error) {
	for _, cmp := range c {
		ok, err := cmp.eval(item)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c comparison) eval(item map[string]types.AttributeValue) (bool, error) {
	switch c.op {
	case opExists:
		_, ok := item[c.operands[0].attribute]
		return ok, nil
	case opNotExists:
		_, ok := item[c.operands[0].attribute]
		return !ok, nil
	}

	vals := make([]types.AttributeValue, len(c.operands))
	for i, o := range c.operands {
		if !o.isAttribute() {
			vals[i] = o.value
			continue
		}
		v, ok := item[o.attribute]
		if !ok {
			return false, nil
		}
		vals[i] = v
	}

	switch c.op {
	case opBeginsWith:
		return beginsWith(vals[0], vals[1])
	case opBetween:
		lo, err := compareValues(vals[0], vals[1])
		if err != nil {
			return false, nil
		}
		hi, err := compareValues(vals[0], vals[2])
		if err != nil {
			return false, nil
		}
		return lo >= 0 && hi <= 0, nil
	}

	cmp, err := compareValues(vals[0], vals[1])
	if err != nil {
		return c.op == opNotEqual, nil
	}
	switch c.op {
	case opEqual:
		return cmp == 0, nil
	case opNotEqual:
		return cmp != 0, nil
	case opLess:
		return cmp < 0, nil
	case opLessEq:
		return cmp <= 0, nil
	case opGreater:
		return cmp > 0, nil
	case opGreaterEq:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %s", c.op)
}

// compareValues orders two scalar values of the same type the way DynamoDB
// orders keys: numbers numerically, strings and binaries by their bytes.
func compareValues(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value), nil
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, okx := new(big.Float).SetString(av.Value)
			y, oky := new(big.Float).SetString(bv.Value)
			if !okx || !oky {
				return 0, fmt.Errorf("invalid number")
			}
			return x.Cmp(y), nil
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func beginsWith(v, prefix types.AttributeValue) (bool, error) {
	switch pv := prefix.(type) {
	case *types.AttributeValueMemberS:
		s, ok := v.(*types.AttributeValueMemberS)
		return ok && strings.HasPrefix(s.Value, pv.Value), nil
	case *types.AttributeValueMemberB:
		b, ok := v.(*types.AttributeValueMemberB)
		return ok && bytes.HasPrefix(b.Value, pv.Value), nil
	}
	return false, validationError("begins_with requires a string or binary prefix, got %T", prefix)
}

// keyCondition is a query's key condition split into its two parts.
type keyCondition struct {
	partition types.AttributeValue
	sort      *comparison
}

// parseKeyCondition checks that expr is an equality on the partition key,
// optionally combined with one condition on the sort key.
func parseKeyCondition(expr string, p exprParams, enc *keyEncoder) (*keyCondition, error) {
	cond, err := parseCondition(expr, p)
	if err != nil {
		return nil, err
	}
	kc := &keyCondition{}
	for i := range cond {
		cmp := cond[i]
		if len(cmp.operands) < 2 || !cmp.operands[0].isAttribute() {
			return nil, validationError("invalid key condition %q", expr)
		}
		for _, o := range cmp.operands[1:] {
			if o.isAttribute() {
				return nil, validationError("key condition %q compares two attributes", expr)
			}
		}
		switch name := cmp.operands[0].attribute; {
		case name == enc.keys.PartitionKey.Name:
			if cmp.op != opEqual || kc.partition != nil {
				return nil, validationError("partition key %s must be matched with a single equality", name)
			}
			kc.partition = cmp.operands[1].value
		case enc.keys.HasSortKey() && name == enc.keys.SortKey.Name:
			if kc.sort != nil || cmp.op == opNotEqual {
				return nil, validationError("invalid sort key condition on %s", name)
			}
			kc.sort = &cmp
		default:
			return nil, validationError("%s is not a key attribute", name)
		}
	}
	if kc.partition == nil {
		return nil, validationError("key condition %q does not match the partition key %s", expr, enc.keys.PartitionKey.Name)
	}
	return kc, nil
}
