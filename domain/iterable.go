package domain

import (
	"fmt"
	"math/rand/v2"

	"github.com/CatConfLang/pytestgen/types"
)

// IterableNode generates lists, sets, tuples, strs and dicts. Its domains are
// length domains. For a dict the length counts key/value pairs, and each pair
// combines a value of the key node with a value of the value node.
type IterableNode struct {
	kind    types.Kind
	elem    Node
	val     Node
	ex, rnd Domain[int64]
}

func newIterable(kind types.Kind, elem, val Node, ex, rnd Domain[int64]) (*IterableNode, error) {
	if err := validateLengths(ex); err != nil {
		return nil, fmt.Errorf("exhaustive domain: %w", err)
	}
	if err := validateLengths(rnd); err != nil {
		return nil, fmt.Errorf("random domain: %w", err)
	}
	return &IterableNode{kind: kind, elem: elem, val: val, ex: ex, rnd: rnd}, nil
}

// NewListNode builds a list node over elem.
func NewListNode(elem Node, ex, rnd Domain[int64]) (*IterableNode, error) {
	return newIterable(types.KindList, elem, nil, ex, rnd)
}

// NewSetNode builds a set node over elem.
func NewSetNode(elem Node, ex, rnd Domain[int64]) (*IterableNode, error) {
	return newIterable(types.KindSet, elem, nil, ex, rnd)
}

// NewTupleNode builds a tuple node over elem.
func NewTupleNode(elem Node, ex, rnd Domain[int64]) (*IterableNode, error) {
	return newIterable(types.KindTuple, elem, nil, ex, rnd)
}

// NewStrNode builds a str node whose characters come from alphabet.
func NewStrNode(alphabet string, ex, rnd Domain[int64]) (*IterableNode, error) {
	n, err := newIterable(types.KindStr, NewCharNode(alphabet), nil, ex, rnd)
	if err != nil {
		return nil, err
	}
	if alphabet == "" && (n.ex.Max() > 0 || n.rnd.Max() > 0) {
		return nil, ErrEmptyAlphabet
	}
	return n, nil
}

// NewDictNode builds a dict node whose pairs combine key and val.
func NewDictNode(key, val Node, ex, rnd Domain[int64]) (*IterableNode, error) {
	return newIterable(types.KindDict, key, val, ex, rnd)
}

func (n *IterableNode) Kind() types.Kind { return n.kind }
func (*IterableNode) sealed()            {}

func (n *IterableNode) Type() string {
	switch n.kind {
	case types.KindStr:
		return n.elem.Type()
	case types.KindDict:
		return "dict(" + n.elem.Type() + ":" + n.val.Type() + ")"
	default:
		return n.kind.String() + "(" + n.elem.Type() + ")"
	}
}

// Elem returns the element node, or the key node of a dict.
func (n *IterableNode) Elem() Node { return n.elem }

// Value returns the value node of a dict, nil otherwise.
func (n *IterableNode) Value() Node { return n.val }

// ExhaustiveLengths returns the lengths enumerated in full.
func (n *IterableNode) ExhaustiveLengths() Domain[int64] { return n.ex }

// RandomLengths returns the lengths sampled from.
func (n *IterableNode) RandomLengths() Domain[int64] { return n.rnd }

// Exhaustive enumerates every sequence over the child's exhaustive values
// whose length is in the exhaustive domain, wraps each in the container and
// removes duplicates. Sets and dicts can collapse distinct sequences into one
// value, so the result may be shorter than the number of sequences.
func (n *IterableNode) Exhaustive() ([]types.Value, error) {
	inner, err := n.innerExhaustive()
	if err != nil {
		return nil, err
	}

	var seqs [][]types.Value
	if n.ex.Contiguous() {
		seqs = sequences(inner, int(n.ex.Min()), int(n.ex.Max()))
	} else {
		for _, length := range n.ex.Distinct() {
			seqs = append(seqs, sequences(inner, int(length), int(length))...)
		}
	}

	seen := make(map[string]bool, len(seqs))
	out := make([]types.Value, 0, len(seqs))
	for _, seq := range seqs {
		v, err := n.wrap(seq)
		if err != nil {
			return nil, err
		}
		key := v.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}

// Random draws a length from the random domain and fills it with random
// child values.
func (n *IterableNode) Random(r *rand.Rand) (types.Value, error) {
	length := n.rnd.Pick(r)
	seq := make([]types.Value, 0, length)
	for i := int64(0); i < length; i++ {
		v, err := n.innerRandom(r)
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
	return n.wrap(seq)
}

func (n *IterableNode) innerExhaustive() ([]types.Value, error) {
	keys, err := n.elem.Exhaustive()
	if err != nil {
		return nil, err
	}
	if n.kind != types.KindDict {
		return keys, nil
	}
	vals, err := n.val.Exhaustive()
	if err != nil {
		return nil, err
	}
	pairs := make([]types.Value, 0, len(keys)*len(vals))
	for _, k := range keys {
		for _, v := range vals {
			pairs = append(pairs, types.Pair(k, v))
		}
	}
	return pairs, nil
}

func (n *IterableNode) innerRandom(r *rand.Rand) (types.Value, error) {
	k, err := n.elem.Random(r)
	if err != nil {
		return nil, err
	}
	if n.kind != types.KindDict {
		return k, nil
	}
	v, err := n.val.Random(r)
	if err != nil {
		return nil, err
	}
	return types.Pair(k, v), nil
}

func (n *IterableNode) wrap(seq []types.Value) (types.Value, error) {
	switch n.kind {
	case types.KindList:
		return types.NewList(seq...), nil
	case types.KindTuple:
		return types.NewTuple(seq...), nil
	case types.KindSet:
		return types.NewSet(seq...), nil
	case types.KindStr:
		return types.NewStr(seq...)
	case types.KindDict:
		return types.NewDict(seq...)
	}
	return nil, fmt.Errorf("%w: %s is not an iterable kind", types.ErrInconsistent, n.kind)
}

// sequences returns every sequence over inner with a length in [lo, hi]. It
// makes a single pass from length 0 upward: each round extends every sequence
// of the previous length by one more inner value, and every round at or
// above lo is kept as output.
func sequences(inner []types.Value, lo, hi int) [][]types.Value {
	frontier := [][]types.Value{{}}
	var out [][]types.Value
	for length := 0; ; length++ {
		if length >= lo {
			out = append(out, frontier...)
		}
		if length == hi || len(frontier) == 0 {
			return out
		}

		next := make([][]types.Value, 0, len(frontier)*len(inner))
		for _, seq := range frontier {
			for _, v := range inner {
				ext := make([]types.Value, length+1)
				copy(ext, seq)
				ext[length] = v
				next = append(next, ext)
			}
		}
		frontier = next
	}
}
