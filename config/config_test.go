package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CatConfLang/pytestgen/domain"
	"github.com/CatConfLang/pytestgen/types"
)

var nodeComparer = cmp.AllowUnexported(
	domain.IntNode{}, domain.BoolNode{}, domain.FloatNode{}, domain.CharNode{},
	domain.IterableNode{}, domain.Domain[int64]{}, domain.Domain[float64]{},
)

func exhaustiveLiterals(t *testing.T, n domain.Node) []string {
	t.Helper()
	vals, err := n.Exhaustive()
	if err != nil {
		t.Fatalf("Exhaustive failed: %v", err)
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Literal()
	}
	return out
}

func requireConfigError(t *testing.T, err error, wantType string) *ConfigError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a %s ConfigError, got nil", wantType)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Type != wantType {
		t.Fatalf("expected error type %s, got %s (%v)", wantType, cfgErr.Type, err)
	}
	return cfgErr
}

func TestParseDocument_JSON(t *testing.T) {
	data := []byte(`{
		"function name": "add",
		"random sample count": 3,
		"types": ["int", "list(bool)"],
		"exhaustive domain": ["(0, 1)", "0~1((0,1))"],
		"random domain": ["0~5", "(2)((1))"]
	}`)

	spec, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if spec.FunctionName != "add" {
		t.Errorf("expected function name add, got %s", spec.FunctionName)
	}
	if spec.RandomSampleCount != 3 {
		t.Errorf("expected 3 random samples, got %d", spec.RandomSampleCount)
	}
	if len(spec.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(spec.Params))
	}
	if got := spec.Params[1].Type(); got != "list(bool)" {
		t.Errorf("expected list(bool), got %s", got)
	}
}

func TestParseDocument_YAML(t *testing.T) {
	data := []byte(`
function name: f
random sample count: 0
types:
  - "dict(str(ab):float)"
exhaustive domain:
  - "1~1(1~1:(0.5, 2))"
random domain:
  - "(1)(0~2:(1.5))"
`)

	spec, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	got := exhaustiveLiterals(t, spec.Params[0])
	want := []string{"{'a': 0.5}", "{'a': 2.0}", "{'b': 0.5}", "{'b': 2.0}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("exhaustive values mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDocument_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType string
	}{
		{"not a document", `[1, 2]`, ErrTypeInvalidDocument},
		{"malformed", `{"function name": `, ErrTypeInvalidDocument},
		{"empty", ``, ErrTypeInvalidDocument},
		{"missing key", `{"function name": "f", "random sample count": 0, "types": [], "exhaustive domain": []}`, ErrTypeInvalidDocument},
		{"extra key", `{"function name": "f", "random sample count": 0, "types": [], "exhaustive domain": [], "random domain": [], "seed": 1}`, ErrTypeInvalidDocument},
		{"legacy keys", `{"fname": "f", "num random": 0, "types": [], "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidDocument},
		{"name not string", `{"function name": 3, "random sample count": 0, "types": [], "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidField},
		{"count not integer", `{"function name": "f", "random sample count": "3", "types": [], "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidField},
		{"count float", `{"function name": "f", "random sample count": 1.5, "types": [], "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidField},
		{"count negative", `{"function name": "f", "random sample count": -1, "types": [], "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidField},
		{"types not list", `{"function name": "f", "random sample count": 0, "types": "int", "exhaustive domain": [], "random domain": []}`, ErrTypeInvalidField},
		{"entry not string", `{"function name": "f", "random sample count": 0, "types": [1], "exhaustive domain": ["(1)"], "random domain": ["(1)"]}`, ErrTypeInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.data))
			requireConfigError(t, err, tt.wantType)
		})
	}
}

func TestParse_LengthMismatch(t *testing.T) {
	_, err := Parse(Document{
		FunctionName:     "f",
		Types:            []string{"int", "int"},
		ExhaustiveDomain: []string{"(1)", "(2)"},
		RandomDomain:     []string{"(1)"},
	})
	requireConfigError(t, err, ErrTypeLengthMismatch)
}

func TestParse_ErrorCarriesParamIndex(t *testing.T) {
	_, err := Parse(Document{
		FunctionName:     "f",
		Types:            []string{"int", "bool"},
		ExhaustiveDomain: []string{"(1)", "(0, 1, 2)"},
		RandomDomain:     []string{"(1)", "(0)"},
	})
	cfgErr := requireConfigError(t, err, ErrTypeInvalidDomain)
	if cfgErr.Param != 1 {
		t.Errorf("expected parameter index 1, got %d", cfgErr.Param)
	}
	if !errors.Is(err, domain.ErrInvalidBool) {
		t.Errorf("expected the cause to be ErrInvalidBool, got %v", err)
	}
	if !strings.Contains(err.Error(), "parameter 1") {
		t.Errorf("error message should name the parameter: %v", err)
	}
}

func TestParseParam_Valid(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		ex       string
		rnd      string
		wantType string
		want     []string
	}{
		{"int list", "int", "(0, 1)", "0~5", "int", []string{"0", "1"}},
		{"int range", "int", "-1~1", "(0)", "int", []string{"-1", "0", "1"}},
		{"bool", "bool", "(0,1)", "(1)", "bool", []string{"False", "True"}},
		{"float list", "float", "(1.5, -2)", "(0)", "float", []string{"1.5", "-2.0"}},
		{"float range", "float", "1~2", "(0)", "float", []string{"1.0", "2.0"}},
		{"whitespace", "  list ( int )  ", " 1 ~ 1 ( ( 7 ) ) ", "(0)((1))", "list(int)", []string{"[7]"}},
		{"str", "str(xy)", "(1)", "0~3", "str(xy)", []string{"'x'", "'y'"}},
		{"str alphabet trimmed", "str( ab )", "(1)", "(1)", "str(ab)", []string{"'a'", "'b'"}},
		{"empty str alphabet", "str()", "(0)", "(0)", "str()", []string{"''"}},
		{"set", "set(int)", "(2)((0,1))", "(1)((0))", "set(int)", []string{"{0}", "{0, 1}", "{1}"}},
		{"tuple", "tuple(bool)", "(1)((1))", "(1)((1))", "tuple(bool)", []string{"(True,)"}},
		{"dict", "dict(int:bool)", "(1)((0):(0,1))", "(1)((0):(1))", "dict(int:bool)", []string{"{0: False}", "{0: True}"}},
		{"nested", "list(tuple(int))", "(1)((1)((0,1)))", "(0)((0)((0)))", "list(tuple(int))", []string{"[(0,)]", "[(1,)]"}},
		{"dict of lists", "dict(int:list(int))", "(1)((0):(1)((5)))", "(0)((0):(0)((0)))", "dict(int:list(int))", []string{"{0: [5]}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := ParseParam(tt.typ, tt.ex, tt.rnd)
			if err != nil {
				t.Fatalf("ParseParam failed: %v", err)
			}
			if node.Type() != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, node.Type())
			}
			if diff := cmp.Diff(tt.want, exhaustiveLiterals(t, node)); diff != "" {
				t.Errorf("exhaustive values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseParam_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		ex       string
		rnd      string
		wantType string
	}{
		{"unknown type", "integer", "(1)", "(1)", ErrTypeInvalidType},
		{"uppercase keyword", "Int", "(1)", "(1)", ErrTypeInvalidType},
		{"empty type", "", "(1)", "(1)", ErrTypeInvalidType},
		{"leaf with params", "int(int)", "(1)", "(1)", ErrTypeInvalidType},
		{"list missing paren", "list int", "(1)((1))", "(1)((1))", ErrTypeInvalidType},
		{"list unclosed", "list(int", "(1)((1))", "(1)((1))", ErrTypeInvalidType},
		{"dict missing colon", "dict(int)", "(1)((1))", "(1)((1))", ErrTypeInvalidType},
		{"list with colon", "list(int:int)", "(1)((1))", "(1)((1))", ErrTypeInvalidType},
		{"unterminated alphabet", "str(abc", "(1)", "(1)", ErrTypeInvalidType},
		{"set of lists", "set(list(int))", "(1)((1)((0)))", "(1)((1)((0)))", ErrTypeInvalidType},
		{"set of tuples of sets", "set(tuple(set(int)))", "(1)((1)((1)((0))))", "(1)((1)((1)((0))))", ErrTypeInvalidType},
		{"dict with list keys", "dict(list(int):int)", "(1)((1)((0)):(0))", "(1)((1)((0)):(0))", ErrTypeInvalidType},
		{"dict with dict keys", "dict(dict(int:int):int)", "(1)((1)((0):(0)):(0))", "(1)((1)((0):(0)):(0))", ErrTypeInvalidType},
		{"bool out of range", "bool", "(0,1,2)", "(0)", ErrTypeInvalidDomain},
		{"bool range out of range", "bool", "(0)", "0~2", ErrTypeInvalidDomain},
		{"bare number", "int", "5", "(1)", ErrTypeInvalidDomain},
		{"empty explicit", "int", "()", "(1)", ErrTypeInvalidDomain},
		{"trailing comma", "int", "(1,)", "(1)", ErrTypeInvalidDomain},
		{"not an int", "int", "(1.5)", "(1)", ErrTypeInvalidDomain},
		{"not a float", "float", "(abc)", "(1)", ErrTypeInvalidDomain},
		{"inverted range", "int", "5~1", "(1)", ErrTypeInvalidDomain},
		{"float range bounds", "float", "0.5~2", "(1)", ErrTypeInvalidDomain},
		{"huge range", "int", "0~100000000", "(1)", ErrTypeInvalidDomain},
		{"leaf with nested", "int", "(1)((2))", "(1)", ErrTypeInvalidDomain},
		{"leaf with colon", "int", "(1):(2)", "(1)", ErrTypeInvalidDomain},
		{"list without nested", "list(int)", "(1)", "(1)((1))", ErrTypeInvalidDomain},
		{"list unclosed nested", "list(int)", "(1)((1)", "(1)((1))", ErrTypeInvalidDomain},
		{"negative length", "list(int)", "(-1)((1))", "(1)((1))", ErrTypeInvalidDomain},
		{"str with nested", "str(ab)", "(1)((1))", "(1)", ErrTypeInvalidDomain},
		{"empty alphabet positive length", "str()", "(1)", "(0)", ErrTypeInvalidDomain},
		{"dict without colon", "dict(int:int)", "(1)((1))", "(1)((1):(1))", ErrTypeInvalidDomain},
		{"dict key with nested", "dict(int:int)", "(1)((1)(2):(1))", "(1)((1):(1))", ErrTypeInvalidDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParam(tt.typ, tt.ex, tt.rnd)
			requireConfigError(t, err, tt.wantType)
		})
	}
}

func TestParseParam_UnhashableMembers(t *testing.T) {
	_, err := ParseParam("set(list(int))", "(1)((1)((0)))", "(1)((1)((0)))")
	cfgErr := requireConfigError(t, err, ErrTypeInvalidType)
	if cfgErr.Offset != 4 {
		t.Errorf("expected offset 4, got %d", cfgErr.Offset)
	}
	if !strings.Contains(cfgErr.Message, "hashable") {
		t.Errorf("expected a hashability message, got %q", cfgErr.Message)
	}

	// Tuples of hashable members are fine as members and keys.
	node, err := ParseParam("dict(tuple(int):set(tuple(bool)))", "(1)((1)((0)):(1)((1)((1))))", "(0)((0)((0)):(0)((0)((0))))")
	if err != nil {
		t.Fatalf("ParseParam failed: %v", err)
	}
	if diff := cmp.Diff([]string{"{(0,): {(True,)}}"}, exhaustiveLiterals(t, node)); diff != "" {
		t.Errorf("exhaustive values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseParam_ErrorOffsets(t *testing.T) {
	_, err := ParseParam("list(int)", "(1)((1, x))", "(1)((1))")
	cfgErr := requireConfigError(t, err, ErrTypeInvalidDomain)
	if cfgErr.Field != FieldExhaustiveDomain {
		t.Errorf("expected field %q, got %q", FieldExhaustiveDomain, cfgErr.Field)
	}
	if cfgErr.Offset != 8 {
		t.Errorf("expected offset 8, got %d", cfgErr.Offset)
	}

	_, err = ParseParam("list(int)", "(1)((1))", "(1)((1))  junk")
	cfgErr = requireConfigError(t, err, ErrTypeInvalidDomain)
	if cfgErr.Field != FieldRandomDomain || cfgErr.Offset != 10 {
		t.Errorf("expected random domain offset 10, got %q offset %d", cfgErr.Field, cfgErr.Offset)
	}
}

func TestParse_ReferentiallyTransparent(t *testing.T) {
	doc := Document{
		FunctionName:      "f",
		RandomSampleCount: 5,
		Types:             []string{"int", "dict(str(ab):set(float))", "tuple(bool)"},
		ExhaustiveDomain:  []string{"0~3", "0~1((1):0~1((1.5)))", "(0,2)((0,1))"},
		RandomDomain:      []string{"(9)", "(1)(0~2:(1)((2.5, 3)))", "(1)((1))"},
	}

	first, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	second, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(first.Params) != len(doc.Types) {
		t.Errorf("expected %d params, got %d", len(doc.Types), len(first.Params))
	}
	if diff := cmp.Diff(first, second, nodeComparer); diff != "" {
		t.Errorf("parsing the same document twice produced different trees:\n%s", diff)
	}
}

func TestParse_ScalarScenario(t *testing.T) {
	spec, err := ParseDocument([]byte(`{"types": ["int"], "exhaustive domain": ["(0,1)"], "random domain": ["0~5"], "random sample count": 0, "function name": "f"}`))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	node, ok := spec.Params[0].(*domain.IntNode)
	if !ok {
		t.Fatalf("expected *domain.IntNode, got %T", spec.Params[0])
	}
	if got := node.RandomDomain().Entries(); len(got) != 6 {
		t.Errorf("expected 0~5 to expand to 6 entries, got %v", got)
	}
	if node.Kind() != types.KindInt {
		t.Errorf("expected int kind, got %s", node.Kind())
	}
}
