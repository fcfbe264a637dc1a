// Package types defines the value model for generated Python arguments:
// immutable, by-value comparable scalars and containers that render as exact
// Python literals.
package types

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInconsistent reports a container built from members it cannot hold,
// such as a non-char inside a Str or a non-pair inside a Dict.
var ErrInconsistent = errors.New("inconsistent value")

// Kind identifies the Python type a Value models
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindFloat
	KindChar
	KindList
	KindTuple
	KindSet
	KindDict
	KindStr
)

var kindNames = [...]string{
	KindInt:   "int",
	KindBool:  "bool",
	KindFloat: "float",
	KindChar:  "char",
	KindList:  "list",
	KindTuple: "tuple",
	KindSet:   "set",
	KindDict:  "dict",
	KindStr:   "str",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a generated argument. The set of implementations is closed:
// Int, Bool, Float, Char, Str, *List, *Tuple, *Set and *Dict.
type Value interface {
	// Kind reports which Python type the value models.
	Kind() Kind
	// Literal renders the value exactly as Python source would spell it.
	Literal() string
	// Key is a canonical encoding; two values are equal iff their keys are.
	Key() string

	sealed()
}

// Int is a Python int.
type Int int64

// Bool is a Python bool.
type Bool bool

// Float is a Python float.
type Float float64

// Char is a single-character Python str, produced as a member of Str values.
type Char rune

// Str is a Python str. Its members are Chars.
type Str string

func (Int) Kind() Kind   { return KindInt }
func (Bool) Kind() Kind  { return KindBool }
func (Float) Kind() Kind { return KindFloat }
func (Char) Kind() Kind  { return KindChar }
func (Str) Kind() Kind   { return KindStr }

func (Int) sealed()   {}
func (Bool) sealed()  {}
func (Float) sealed() {}
func (Char) sealed()  {}
func (Str) sealed()   {}

func (v Int) Literal() string { return strconv.FormatInt(int64(v), 10) }

func (v Bool) Literal() string {
	if v {
		return "True"
	}
	return "False"
}

func (v Float) Literal() string { return FloatRepr(float64(v)) }
func (v Char) Literal() string  { return StrRepr(string(rune(v))) }
func (v Str) Literal() string   { return StrRepr(string(v)) }

func (v Int) Key() string { return "i" + strconv.FormatInt(int64(v), 10) }

func (v Bool) Key() string {
	if v {
		return "b1"
	}
	return "b0"
}

func (v Float) Key() string {
	if v == 0 {
		// -0.0 == 0.0
		return "f0"
	}
	return "f" + strconv.FormatFloat(float64(v), 'g', -1, 64)
}

func (v Char) Key() string { return "c" + strconv.QuoteRune(rune(v)) }
func (v Str) Key() string  { return "s" + strconv.Quote(string(v)) }

// Chars returns the members of the string.
func (v Str) Chars() []Value {
	out := make([]Value, 0, len(v))
	for _, r := range string(v) {
		out = append(out, Char(r))
	}
	return out
}

// List is a Python list.
type List struct{ elems []Value }

// Tuple is a Python tuple.
type Tuple struct{ elems []Value }

// Set is a Python set. Members are unique and kept in canonical order.
type Set struct{ elems []Value }

// Dict is a Python dict. Keys are unique and kept in canonical order.
type Dict struct {
	keys []Value
	vals []Value
}

// NewList copies elems into a list.
func NewList(elems ...Value) *List { return &List{elems: slices.Clone(elems)} }

// NewTuple copies elems into a tuple.
func NewTuple(elems ...Value) *Tuple { return &Tuple{elems: slices.Clone(elems)} }

// NewSet builds a set, collapsing repeated members.
func NewSet(elems ...Value) *Set {
	sorted := slices.Clone(elems)
	slices.SortStableFunc(sorted, Compare)
	sorted = slices.CompactFunc(sorted, Equal)
	return &Set{elems: sorted}
}

// NewStr joins chars into a string. Every member must be a Char.
func NewStr(chars ...Value) (Str, error) {
	var b strings.Builder
	for i, c := range chars {
		ch, ok := c.(Char)
		if !ok {
			return "", fmt.Errorf("%w: str member %d is %s", ErrInconsistent, i, c.Kind())
		}
		b.WriteRune(rune(ch))
	}
	return Str(b.String()), nil
}

// Pair builds the two-tuple used as a dict entry.
func Pair(key, val Value) *Tuple { return &Tuple{elems: []Value{key, val}} }

// NewDict builds a dict from two-tuples. A repeated key keeps the last value,
// as a Python dict literal does.
func NewDict(pairs ...Value) (*Dict, error) {
	type entry struct{ k, v Value }
	entries := make([]entry, 0, len(pairs))
	for i, p := range pairs {
		t, ok := p.(*Tuple)
		if !ok || len(t.elems) != 2 {
			return nil, fmt.Errorf("%w: dict member %d is not a pair", ErrInconsistent, i)
		}
		entries = append(entries, entry{t.elems[0], t.elems[1]})
	}

	// Reverse before the stable sort so that compacting keeps the last write.
	slices.Reverse(entries)
	slices.SortStableFunc(entries, func(a, b entry) int { return Compare(a.k, b.k) })
	entries = slices.CompactFunc(entries, func(a, b entry) bool { return Equal(a.k, b.k) })

	d := &Dict{keys: make([]Value, len(entries)), vals: make([]Value, len(entries))}
	for i, e := range entries {
		d.keys[i], d.vals[i] = e.k, e.v
	}
	return d, nil
}

func (*List) Kind() Kind  { return KindList }
func (*Tuple) Kind() Kind { return KindTuple }
func (*Set) Kind() Kind   { return KindSet }
func (*Dict) Kind() Kind  { return KindDict }

func (*List) sealed()  {}
func (*Tuple) sealed() {}
func (*Set) sealed()   {}
func (*Dict) sealed()  {}

// Elems returns the members in order. The slice must not be modified.
func (v *List) Elems() []Value  { return v.elems }
func (v *Tuple) Elems() []Value { return v.elems }
func (v *Set) Elems() []Value   { return v.elems }

// Len returns the number of entries.
func (v *Dict) Len() int { return len(v.keys) }

// Entry returns the i-th key and value in canonical order.
func (v *Dict) Entry(i int) (Value, Value) { return v.keys[i], v.vals[i] }

func (v *List) Literal() string { return "[" + joinLiterals(v.elems) + "]" }

func (v *Tuple) Literal() string {
	if len(v.elems) == 1 {
		return "(" + v.elems[0].Literal() + ",)"
	}
	return "(" + joinLiterals(v.elems) + ")"
}

func (v *Set) Literal() string {
	if len(v.elems) == 0 {
		return "set()"
	}
	return "{" + joinLiterals(v.elems) + "}"
}

func (v *Dict) Literal() string {
	parts := make([]string, len(v.keys))
	for i := range v.keys {
		parts[i] = v.keys[i].Literal() + ": " + v.vals[i].Literal()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v *List) Key() string  { return "l[" + joinKeys(v.elems) + "]" }
func (v *Tuple) Key() string { return "t[" + joinKeys(v.elems) + "]" }
func (v *Set) Key() string   { return "e[" + joinKeys(v.elems) + "]" }

func (v *Dict) Key() string {
	var b strings.Builder
	b.WriteString("d[")
	for i := range v.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.keys[i].Key())
		b.WriteByte('=')
		b.WriteString(v.vals[i].Key())
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports whether a and b have the same kind and recursively equal
// contents.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare is a total order over values: by kind first, then by content.
// It returns 0 exactly when the values are equal.
func Compare(a, b Value) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch x := a.(type) {
	case Int:
		return cmp.Compare(x, b.(Int))
	case Bool:
		return cmp.Compare(boolRank(bool(x)), boolRank(bool(b.(Bool))))
	case Float:
		return cmp.Compare(x, b.(Float))
	case Char:
		return cmp.Compare(x, b.(Char))
	case Str:
		return strings.Compare(string(x), string(b.(Str)))
	case *List:
		return slices.CompareFunc(x.elems, b.(*List).elems, Compare)
	case *Tuple:
		return slices.CompareFunc(x.elems, b.(*Tuple).elems, Compare)
	case *Set:
		return slices.CompareFunc(x.elems, b.(*Set).elems, Compare)
	case *Dict:
		y := b.(*Dict)
		if c := slices.CompareFunc(x.keys, y.keys, Compare); c != 0 {
			return c
		}
		return slices.CompareFunc(x.vals, y.vals, Compare)
	}
	panic(fmt.Sprintf("types: unknown value %T", a))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinLiterals(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Literal()
	}
	return strings.Join(parts, ", ")
}

func joinKeys(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Key()
	}
	return strings.Join(parts, ",")
}
