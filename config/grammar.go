package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/CatConfLang/pytestgen/domain"
	"github.com/CatConfLang/pytestgen/types"
)

// maxRangeSize bounds the eager expansion of lo~hi literals.
const maxRangeSize = 1 << 20

// typeExpr is a parsed type descriptor.
type typeExpr struct {
	kind     types.Kind
	alphabet string
	elem     *typeExpr
	val      *typeExpr
}

// descExpr is a parsed domain descriptor, shaped like the type it was
// parsed against.
type descExpr struct {
	lit  literal
	elem *descExpr
	val  *descExpr
}

// literal is either an explicit (v1, v2, ...) list or an inclusive lo~hi range.
type literal struct {
	items   []item
	isRange bool
	lo, hi  int64
	offset  int
}

type item struct {
	text   string
	offset int
}

type scanner struct {
	src   string
	pos   int
	field string
}

func (s *scanner) errorf(typ string, offset int, format string, args ...any) *ConfigError {
	return &ConfigError{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
		Param:   -1,
		Field:   s.field,
		Offset:  offset,
	}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) describeNext() string {
	if s.pos >= len(s.src) {
		return "end of input"
	}
	return strconv.QuoteRune(rune(s.src[s.pos]))
}

func (s *scanner) expect(typ string, c byte) error {
	s.skipSpace()
	if s.peek() != c {
		return s.errorf(typ, s.pos, "expected %q, found %s", c, s.describeNext())
	}
	s.pos++
	return nil
}

func (s *scanner) expectEnd(typ string) error {
	s.skipSpace()
	if s.pos != len(s.src) {
		return s.errorf(typ, s.pos, "unexpected %s after descriptor", s.describeNext())
	}
	return nil
}

// token reads up to the next space or stop character.
func (s *scanner) token(stop string) string {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if unicode.IsSpace(rune(c)) || strings.IndexByte(stop, c) >= 0 {
			break
		}
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) ident() string {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] >= 'a' && s.src[s.pos] <= 'z' {
		s.pos++
	}
	return s.src[start:s.pos]
}

func parseTypeDescriptor(src string) (*typeExpr, error) {
	s := &scanner{src: src, field: FieldTypes}
	t, err := s.typeExpr()
	if err != nil {
		return nil, err
	}
	if err := s.expectEnd(ErrTypeInvalidType); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *scanner) typeExpr() (*typeExpr, error) {
	s.skipSpace()
	start := s.pos
	name := s.ident()

	switch name {
	case "int":
		return &typeExpr{kind: types.KindInt}, nil
	case "bool":
		return &typeExpr{kind: types.KindBool}, nil
	case "float":
		return &typeExpr{kind: types.KindFloat}, nil
	case "str":
		if err := s.expect(ErrTypeInvalidType, '('); err != nil {
			return nil, err
		}
		end := strings.IndexByte(s.src[s.pos:], ')')
		if end < 0 {
			return nil, s.errorf(ErrTypeInvalidType, start, "unterminated str alphabet")
		}
		alphabet := strings.TrimSpace(s.src[s.pos : s.pos+end])
		s.pos += end + 1
		return &typeExpr{kind: types.KindStr, alphabet: alphabet}, nil
	case "list", "set", "tuple":
		kind := map[string]types.Kind{"list": types.KindList, "set": types.KindSet, "tuple": types.KindTuple}[name]
		if err := s.expect(ErrTypeInvalidType, '('); err != nil {
			return nil, err
		}
		elemStart := s.pos
		elem, err := s.typeExpr()
		if err != nil {
			return nil, err
		}
		if kind == types.KindSet && !elem.hashable() {
			return nil, s.errorf(ErrTypeInvalidType, elemStart, "set members must be hashable, found %s", elem.kind)
		}
		if err := s.expect(ErrTypeInvalidType, ')'); err != nil {
			return nil, err
		}
		return &typeExpr{kind: kind, elem: elem}, nil
	case "dict":
		if err := s.expect(ErrTypeInvalidType, '('); err != nil {
			return nil, err
		}
		keyStart := s.pos
		key, err := s.typeExpr()
		if err != nil {
			return nil, err
		}
		if !key.hashable() {
			return nil, s.errorf(ErrTypeInvalidType, keyStart, "dict keys must be hashable, found %s", key.kind)
		}
		if err := s.expect(ErrTypeInvalidType, ':'); err != nil {
			return nil, err
		}
		val, err := s.typeExpr()
		if err != nil {
			return nil, err
		}
		if err := s.expect(ErrTypeInvalidType, ')'); err != nil {
			return nil, err
		}
		return &typeExpr{kind: types.KindDict, elem: key, val: val}, nil
	case "":
		return nil, s.errorf(ErrTypeInvalidType, start, "expected a type keyword, found %s", s.describeNext())
	default:
		return nil, s.errorf(ErrTypeInvalidType, start, "unknown type %q", name)
	}
}

// hashable reports whether Python can use values of t as set members or
// dict keys.
func (t *typeExpr) hashable() bool {
	switch t.kind {
	case types.KindList, types.KindSet, types.KindDict:
		return false
	case types.KindTuple:
		return t.elem.hashable()
	}
	return true
}

func parseDomainDescriptor(t *typeExpr, src, field string) (*descExpr, error) {
	s := &scanner{src: src, field: field}
	d, err := s.descExpr(t)
	if err != nil {
		return nil, err
	}
	if err := s.expectEnd(ErrTypeInvalidDomain); err != nil {
		return nil, err
	}
	return d, nil
}

// descExpr parses a domain descriptor against t. Leaf and str descriptors
// are a single literal; other containers are a length literal followed by
// the parenthesized child descriptor, with a colon between key and value
// descriptors for dicts.
func (s *scanner) descExpr(t *typeExpr) (*descExpr, error) {
	lit, err := s.literal()
	if err != nil {
		return nil, err
	}
	d := &descExpr{lit: lit}

	switch t.kind {
	case types.KindInt, types.KindBool, types.KindFloat, types.KindStr:
		return d, nil
	case types.KindList, types.KindSet, types.KindTuple:
		if err := s.expect(ErrTypeInvalidDomain, '('); err != nil {
			return nil, err
		}
		if d.elem, err = s.descExpr(t.elem); err != nil {
			return nil, err
		}
		if err := s.expect(ErrTypeInvalidDomain, ')'); err != nil {
			return nil, err
		}
		return d, nil
	case types.KindDict:
		if err := s.expect(ErrTypeInvalidDomain, '('); err != nil {
			return nil, err
		}
		if d.elem, err = s.descExpr(t.elem); err != nil {
			return nil, err
		}
		if err := s.expect(ErrTypeInvalidDomain, ':'); err != nil {
			return nil, err
		}
		if d.val, err = s.descExpr(t.val); err != nil {
			return nil, err
		}
		if err := s.expect(ErrTypeInvalidDomain, ')'); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, s.errorf(ErrTypeInvalidType, s.pos, "unsupported type %s", t.kind)
}

func (s *scanner) literal() (literal, error) {
	s.skipSpace()
	lit := literal{offset: s.pos}

	if s.peek() == '(' {
		s.pos++
		for {
			s.skipSpace()
			start := s.pos
			text := s.token(",()~:")
			if text == "" {
				return literal{}, s.errorf(ErrTypeInvalidDomain, start, "expected a domain entry, found %s", s.describeNext())
			}
			lit.items = append(lit.items, item{text: text, offset: start})

			s.skipSpace()
			switch s.peek() {
			case ',':
				s.pos++
			case ')':
				s.pos++
				return lit, nil
			default:
				return literal{}, s.errorf(ErrTypeInvalidDomain, s.pos, "expected ',' or ')', found %s", s.describeNext())
			}
		}
	}

	loText := s.token("~(),:")
	if loText == "" {
		return literal{}, s.errorf(ErrTypeInvalidDomain, lit.offset, "expected a domain literal, found %s", s.describeNext())
	}
	s.skipSpace()
	if s.peek() != '~' {
		return literal{}, s.errorf(ErrTypeInvalidDomain, s.pos, "expected '~' after %q; explicit domains must be parenthesized", loText)
	}
	s.pos++
	s.skipSpace()
	hiStart := s.pos
	hiText := s.token("~(),:")

	lo, err := strconv.ParseInt(loText, 10, 64)
	if err != nil {
		return literal{}, s.errorf(ErrTypeInvalidDomain, lit.offset, "range bound %q is not an integer", loText)
	}
	hi, err := strconv.ParseInt(hiText, 10, 64)
	if err != nil {
		return literal{}, s.errorf(ErrTypeInvalidDomain, hiStart, "range bound %q is not an integer", hiText)
	}
	if lo > hi {
		return literal{}, s.errorf(ErrTypeInvalidDomain, lit.offset, "range %d~%d is empty", lo, hi)
	}
	if uint64(hi-lo) >= maxRangeSize {
		return literal{}, s.errorf(ErrTypeInvalidDomain, lit.offset, "range %d~%d has more than %d entries", lo, hi, maxRangeSize)
	}
	lit.isRange, lit.lo, lit.hi = true, lo, hi
	return lit, nil
}

func (l literal) ints(field string) (domain.Domain[int64], error) {
	if l.isRange {
		return domain.Range(l.lo, l.hi), nil
	}
	entries := make([]int64, len(l.items))
	for i, it := range l.items {
		v, err := strconv.ParseInt(it.text, 10, 64)
		if err != nil {
			return domain.Domain[int64]{}, &ConfigError{
				Type:    ErrTypeInvalidDomain,
				Message: fmt.Sprintf("%q is not an integer", it.text),
				Param:   -1,
				Field:   field,
				Offset:  it.offset,
				Cause:   err,
			}
		}
		entries[i] = v
	}
	return domain.NewDomain(entries...), nil
}

func (l literal) floats(field string) (domain.Domain[float64], error) {
	if l.isRange {
		ints := domain.Range(l.lo, l.hi).Entries()
		entries := make([]float64, len(ints))
		for i, v := range ints {
			entries[i] = float64(v)
		}
		return domain.NewDomain(entries...), nil
	}
	entries := make([]float64, len(l.items))
	for i, it := range l.items {
		v, err := strconv.ParseFloat(it.text, 64)
		if err != nil {
			return domain.Domain[float64]{}, &ConfigError{
				Type:    ErrTypeInvalidDomain,
				Message: fmt.Sprintf("%q is not a float", it.text),
				Param:   -1,
				Field:   field,
				Offset:  it.offset,
				Cause:   err,
			}
		}
		entries[i] = v
	}
	return domain.NewDomain(entries...), nil
}

// build composes the domain tree bottom-up from a type and the exhaustive
// and random descriptors parsed against it.
func build(t *typeExpr, ex, rnd *descExpr) (domain.Node, error) {
	var (
		node domain.Node
		err  error
	)

	switch t.kind {
	case types.KindInt, types.KindBool:
		exD, rndD, derr := intDomains(ex, rnd)
		if derr != nil {
			return nil, derr
		}
		if t.kind == types.KindInt {
			node, err = domain.NewIntNode(exD, rndD)
		} else {
			node, err = domain.NewBoolNode(exD, rndD)
		}
	case types.KindFloat:
		exD, derr := ex.lit.floats(FieldExhaustiveDomain)
		if derr != nil {
			return nil, derr
		}
		rndD, derr := rnd.lit.floats(FieldRandomDomain)
		if derr != nil {
			return nil, derr
		}
		node, err = domain.NewFloatNode(exD, rndD)
	case types.KindStr:
		exD, rndD, derr := intDomains(ex, rnd)
		if derr != nil {
			return nil, derr
		}
		node, err = domain.NewStrNode(t.alphabet, exD, rndD)
	case types.KindList, types.KindSet, types.KindTuple:
		exD, rndD, derr := intDomains(ex, rnd)
		if derr != nil {
			return nil, derr
		}
		elem, berr := build(t.elem, ex.elem, rnd.elem)
		if berr != nil {
			return nil, berr
		}
		switch t.kind {
		case types.KindList:
			node, err = domain.NewListNode(elem, exD, rndD)
		case types.KindSet:
			node, err = domain.NewSetNode(elem, exD, rndD)
		default:
			node, err = domain.NewTupleNode(elem, exD, rndD)
		}
	case types.KindDict:
		exD, rndD, derr := intDomains(ex, rnd)
		if derr != nil {
			return nil, derr
		}
		key, berr := build(t.elem, ex.elem, rnd.elem)
		if berr != nil {
			return nil, berr
		}
		val, berr := build(t.val, ex.val, rnd.val)
		if berr != nil {
			return nil, berr
		}
		node, err = domain.NewDictNode(key, val, exD, rndD)
	default:
		return nil, &ConfigError{Type: ErrTypeInvalidType, Message: "unsupported type " + t.kind.String(), Param: -1, Offset: -1}
	}

	if err != nil {
		return nil, &ConfigError{
			Type:    ErrTypeInvalidDomain,
			Message: fmt.Sprintf("%s: %v", t.kind, err),
			Param:   -1,
			Offset:  -1,
			Cause:   err,
		}
	}
	return node, nil
}

func intDomains(ex, rnd *descExpr) (domain.Domain[int64], domain.Domain[int64], error) {
	exD, err := ex.lit.ints(FieldExhaustiveDomain)
	if err != nil {
		return domain.Domain[int64]{}, domain.Domain[int64]{}, err
	}
	rndD, err := rnd.lit.ints(FieldRandomDomain)
	if err != nil {
		return domain.Domain[int64]{}, domain.Domain[int64]{}, err
	}
	return exD, rndD, nil
}
