package domain

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/CatConfLang/pytestgen/types"
)

// Node describes how values for one parameter, or one element position of a
// container, are generated. The implementations are IntNode, BoolNode,
// FloatNode, CharNode and IterableNode.
type Node interface {
	// Kind reports the kind of value the node generates.
	Kind() types.Kind
	// Type renders the node as a type descriptor, e.g. "list(int)".
	Type() string
	// Exhaustive returns every value in the exhaustive domain, without
	// duplicates, in a deterministic order.
	Exhaustive() ([]types.Value, error)
	// Random draws one value from the random domain.
	Random(r *rand.Rand) (types.Value, error)

	sealed()
}

// IntNode generates Python ints.
type IntNode struct {
	ex, rnd Domain[int64]
}

// NewIntNode builds an int node.
func NewIntNode(ex, rnd Domain[int64]) (*IntNode, error) {
	if err := ex.validate(); err != nil {
		return nil, fmt.Errorf("exhaustive domain: %w", err)
	}
	if err := rnd.validate(); err != nil {
		return nil, fmt.Errorf("random domain: %w", err)
	}
	return &IntNode{ex: ex, rnd: rnd}, nil
}

func (*IntNode) Kind() types.Kind { return types.KindInt }
func (*IntNode) Type() string     { return "int" }
func (*IntNode) sealed()          {}

// ExhaustiveDomain returns the values enumerated in full.
func (n *IntNode) ExhaustiveDomain() Domain[int64] { return n.ex }

// RandomDomain returns the values sampled from.
func (n *IntNode) RandomDomain() Domain[int64] { return n.rnd }

func (n *IntNode) Exhaustive() ([]types.Value, error) {
	distinct := n.ex.Distinct()
	out := make([]types.Value, len(distinct))
	for i, e := range distinct {
		out[i] = types.Int(e)
	}
	return out, nil
}

func (n *IntNode) Random(r *rand.Rand) (types.Value, error) {
	return types.Int(n.rnd.Pick(r)), nil
}

// BoolNode generates Python bools from 0/1 encoded domains.
type BoolNode struct {
	ex, rnd Domain[int64]
}

// NewBoolNode builds a bool node. Every entry must be 0 or 1.
func NewBoolNode(ex, rnd Domain[int64]) (*BoolNode, error) {
	for _, d := range []struct {
		name string
		dom  Domain[int64]
	}{{"exhaustive", ex}, {"random", rnd}} {
		if err := d.dom.validate(); err != nil {
			return nil, fmt.Errorf("%s domain: %w", d.name, err)
		}
		for _, e := range d.dom.entries {
			if e != 0 && e != 1 {
				return nil, fmt.Errorf("%s domain: %w, got %d", d.name, ErrInvalidBool, e)
			}
		}
	}
	return &BoolNode{ex: ex, rnd: rnd}, nil
}

func (*BoolNode) Kind() types.Kind { return types.KindBool }
func (*BoolNode) Type() string     { return "bool" }
func (*BoolNode) sealed()          {}

// ExhaustiveDomain returns the 0/1 entries enumerated in full.
func (n *BoolNode) ExhaustiveDomain() Domain[int64] { return n.ex }

// RandomDomain returns the 0/1 entries sampled from.
func (n *BoolNode) RandomDomain() Domain[int64] { return n.rnd }

func (n *BoolNode) Exhaustive() ([]types.Value, error) {
	distinct := n.ex.Distinct()
	out := make([]types.Value, len(distinct))
	for i, e := range distinct {
		out[i] = types.Bool(e == 1)
	}
	return out, nil
}

func (n *BoolNode) Random(r *rand.Rand) (types.Value, error) {
	return types.Bool(n.rnd.Pick(r) == 1), nil
}

// FloatNode generates Python floats.
type FloatNode struct {
	ex, rnd Domain[float64]
}

// NewFloatNode builds a float node.
func NewFloatNode(ex, rnd Domain[float64]) (*FloatNode, error) {
	if err := ex.validate(); err != nil {
		return nil, fmt.Errorf("exhaustive domain: %w", err)
	}
	if err := rnd.validate(); err != nil {
		return nil, fmt.Errorf("random domain: %w", err)
	}
	return &FloatNode{ex: ex, rnd: rnd}, nil
}

func (*FloatNode) Kind() types.Kind { return types.KindFloat }
func (*FloatNode) Type() string     { return "float" }
func (*FloatNode) sealed()          {}

// ExhaustiveDomain returns the values enumerated in full.
func (n *FloatNode) ExhaustiveDomain() Domain[float64] { return n.ex }

// RandomDomain returns the values sampled from.
func (n *FloatNode) RandomDomain() Domain[float64] { return n.rnd }

func (n *FloatNode) Exhaustive() ([]types.Value, error) {
	distinct := n.ex.Distinct()
	out := make([]types.Value, len(distinct))
	for i, e := range distinct {
		out[i] = types.Float(e)
	}
	return out, nil
}

func (n *FloatNode) Random(r *rand.Rand) (types.Value, error) {
	return types.Float(n.rnd.Pick(r)), nil
}

// CharNode generates single characters from an alphabet. It is the element
// node of every str node; both of its domains are the alphabet.
type CharNode struct {
	alphabet []rune
}

// NewCharNode builds a char node over the distinct characters of alphabet.
func NewCharNode(alphabet string) *CharNode {
	seen := make(map[rune]bool)
	var runes []rune
	for _, r := range alphabet {
		if !seen[r] {
			seen[r] = true
			runes = append(runes, r)
		}
	}
	return &CharNode{alphabet: runes}
}

func (*CharNode) Kind() types.Kind { return types.KindChar }
func (*CharNode) sealed()          {}

// Type renders the alphabet wrapped in the str descriptor that owns it.
func (n *CharNode) Type() string { return "str(" + string(n.alphabet) + ")" }

// Alphabet returns the admissible characters.
func (n *CharNode) Alphabet() string { return string(n.alphabet) }

func (n *CharNode) Exhaustive() ([]types.Value, error) {
	out := make([]types.Value, len(n.alphabet))
	for i, r := range n.alphabet {
		out[i] = types.Char(r)
	}
	return out, nil
}

func (n *CharNode) Random(r *rand.Rand) (types.Value, error) {
	if len(n.alphabet) == 0 {
		return nil, fmt.Errorf("%w: cannot draw a char", ErrEmptyAlphabet)
	}
	return types.Char(n.alphabet[r.IntN(len(n.alphabet))]), nil
}

// Describe renders a node tree with its domains, one line per node, for
// diagnostics and the validate command.
func Describe(n Node) string {
	var b strings.Builder
	describe(&b, n, 0)
	return b.String()
}

func describe(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := n.(type) {
	case *IntNode:
		fmt.Fprintf(b, "%sint exhaustive=%s random=%s\n", indent, formatInts(x.ex), formatInts(x.rnd))
	case *BoolNode:
		fmt.Fprintf(b, "%sbool exhaustive=%s random=%s\n", indent, formatInts(x.ex), formatInts(x.rnd))
	case *FloatNode:
		fmt.Fprintf(b, "%sfloat exhaustive=%s random=%s\n", indent, formatFloats(x.ex), formatFloats(x.rnd))
	case *CharNode:
		fmt.Fprintf(b, "%schar alphabet=%s\n", indent, strconv.Quote(x.Alphabet()))
	case *IterableNode:
		fmt.Fprintf(b, "%s%s lengths exhaustive=%s random=%s\n", indent, x.kind, formatInts(x.ex), formatInts(x.rnd))
		describe(b, x.elem, depth+1)
		if x.val != nil {
			describe(b, x.val, depth+1)
		}
	}
}

func formatInts(d Domain[int64]) string {
	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = strconv.FormatInt(e, 10)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatFloats(d Domain[float64]) string {
	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = types.FloatRepr(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
