package codec_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"

	"mercator-hq/ruleengine/pkg/rule/ast"
	. "mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/rule/parser"
)

func mustParse(t testing.TB, text string) *ast.Node {
	t.Helper()
	n, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return n
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestSerialize_Golden(t *testing.T) {
	combined, err := compose.All(
		mustParse(t, "age > 30 AND department == 'Sales'"),
		mustParse(t, "salary > 50000 OR experience > 5"),
	)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}

	tests := []struct {
		name string
		rule *ast.Node
	}{
		{"age_and_department", mustParse(t, "age > 30 AND department == 'Sales'")},
		{"combined_rules", combined},
		{"not_or_float_bool", mustParse(t, "NOT (ratio <= 0.5 OR active != false)")},
		{"float_formats", mustParse(t, "salary >= 50000.0 AND tiny < 0.000001 AND big > 1e21 AND neg == -2.5")},
		{"string_escapes", ast.Condition("note", ast.CmpNotEqual, ast.StringValue("a\x01\"\\\n\t/é<"))},
	}

	g := newGoldie(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Serialize(tt.rule)
			if err != nil {
				t.Fatalf("Serialize() failed: %v", err)
			}
			g.Assert(t, tt.name, enc)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rules := []string{
		"age > 30 AND department == 'Sales'",
		"(a>1 OR b>2) AND NOT c==3",
		"x == 1 OR y == 2 OR z == 3",
		"a == 1 AND (b == 2 AND c == 3)",
		"NOT NOT flag == true",
		"salary >= 50000.0 AND ratio < 1e-9 AND id != -9223372036854775808",
		`name == 'O\'Brien "the" \\ first' OR note != ''`,
		"user.tier == 'gold' AND score <= 9223372036854775807",
	}

	for _, text := range rules {
		t.Run(text, func(t *testing.T) {
			rule := mustParse(t, text)
			enc, err := Serialize(rule)
			if err != nil {
				t.Fatalf("Serialize() failed: %v", err)
			}
			back, err := Deserialize(enc)
			if err != nil {
				t.Fatalf("Deserialize(%s) failed: %v", enc, err)
			}
			if !ast.Equal(rule, back) {
				t.Errorf("round trip changed the tree:\n got %s\nwant %s", back, rule)
			}

			again, err := Serialize(back)
			if err != nil {
				t.Fatalf("Serialize() of decoded tree failed: %v", err)
			}
			if !bytes.Equal(enc, again) {
				t.Errorf("encoding not stable:\n%s\n%s", enc, again)
			}
		})
	}
}

func TestRoundTrip_PreservesEvaluation(t *testing.T) {
	rule := mustParse(t, "age > 30 AND department == 'Sales' OR NOT salary < 50000.0")
	enc, err := Serialize(rule)
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	back, err := Deserialize(enc)
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}

	contexts := []map[string]any{
		{"age": 35, "department": "Sales", "salary": 10},
		{"age": 25, "department": "Sales", "salary": 10},
		{"age": 25, "department": "HR", "salary": 60000},
		{"age": 31, "department": "HR", "salary": 49999.5},
	}
	for _, c := range contexts {
		ctx := eval.MustContext(c)
		want, werr := eval.Evaluate(rule, ctx)
		got, gerr := eval.Evaluate(back, ctx)
		if want != got || (werr == nil) != (gerr == nil) {
			t.Errorf("context %v: original = %v, %v; decoded = %v, %v", c, want, werr, got, gerr)
		}
	}
}

func TestSerialize_Errors(t *testing.T) {
	if _, err := Serialize(nil); !errors.Is(err, ErrNilNode) {
		t.Errorf("Serialize(nil) error = %v, want ErrNilNode", err)
	}

	bad := ast.Condition("note", ast.CmpEqual, ast.StringValue("a\xffb"))
	if _, err := Serialize(bad); !errors.Is(err, ErrInvalidUTF) {
		t.Errorf("Serialize() error = %v, want ErrInvalidUTF", err)
	}

	leaf := ast.Condition("x", ast.CmpEqual, ast.IntValue(1))
	deep := leaf
	for i := 1; i < MaxDepth; i++ {
		deep = ast.Not(deep)
	}
	if _, err := Serialize(deep); err != nil {
		t.Errorf("Serialize() at MaxDepth failed: %v", err)
	}
	if _, err := Serialize(ast.Not(deep)); !errors.Is(err, ErrTooDeep) {
		t.Errorf("Serialize() above MaxDepth error = %v, want ErrTooDeep", err)
	}
}

func TestDeserialize_MaxDepth(t *testing.T) {
	leaf := ast.Condition("x", ast.CmpEqual, ast.IntValue(1))
	deep := leaf
	for i := 1; i < MaxDepth; i++ {
		deep = ast.Not(deep)
	}
	enc, err := Serialize(deep)
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	back, err := Deserialize(enc)
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	if ast.Depth(back) != MaxDepth {
		t.Errorf("Depth() = %d, want %d", ast.Depth(back), MaxDepth)
	}

	// One level deeper, built by hand
	tooDeep := `{"kind":"operator","op":"NOT","left":` + enc.String() + `}`
	if _, err := Deserialize(Encoding(tooDeep)); !errors.Is(err, ErrMalformed) {
		t.Errorf("Deserialize() error = %v, want ErrMalformed", err)
	}
}

func TestDeserialize_Errors(t *testing.T) {
	const (
		age  = `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30}}`
		dept = `{"kind":"operand","field":"department","cmp":"==","literal":{"t":"string","v":"Sales"}}`
	)

	tests := []struct {
		name  string
		input string
		want  error
		path  string
	}{
		// Arity
		{"and without right", `{"kind":"operator","op":"AND","left":` + age + `}`, ErrArityMismatch, "$"},
		{"or without right", `{"kind":"operator","op":"OR","left":` + age + `}`, ErrArityMismatch, "$"},
		{"and without left", `{"kind":"operator","op":"AND","right":` + age + `}`, ErrArityMismatch, "$"},
		{"not with right", `{"kind":"operator","op":"NOT","left":` + age + `,"right":` + dept + `}`, ErrArityMismatch, "$"},
		{"nested arity", `{"kind":"operator","op":"OR","left":` + age + `,"right":{"kind":"operator","op":"NOT"}}`, ErrArityMismatch, "$.right"},

		// Unknown tags
		{"unknown kind", `{"kind":"leaf"}`, ErrUnknownTag, "$.kind"},
		{"unknown op", `{"kind":"operator","op":"XOR","left":` + age + `,"right":` + dept + `}`, ErrUnknownTag, "$.op"},
		{"lowercase op", `{"kind":"operator","op":"and","left":` + age + `,"right":` + dept + `}`, ErrUnknownTag, "$.op"},
		{"unknown cmp", `{"kind":"operand","field":"age","cmp":"=","literal":{"t":"int","v":30}}`, ErrUnknownTag, "$.cmp"},
		{"unknown literal type", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"decimal","v":30}}`, ErrUnknownTag, "$.literal.t"},

		// Malformed
		{"invalid json", `{"kind":`, ErrMalformed, ""},
		{"empty input", ``, ErrMalformed, ""},
		{"trailing data", age + ` {}`, ErrMalformed, ""},
		{"not an object", `[1,2]`, ErrMalformed, "$"},
		{"missing kind", `{"op":"AND"}`, ErrMalformed, "$"},
		{"kind not a string", `{"kind":1}`, ErrMalformed, "$.kind"},
		{"operand with left", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30},"left":` + age + `}`, ErrMalformed, "$"},
		{"operator with field", `{"kind":"operator","op":"NOT","left":` + age + `,"field":"age"}`, ErrMalformed, "$"},
		{"unknown key", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30},"extra":true}`, ErrMalformed, "$"},
		{"duplicate key", `{"kind":"operand","field":"age","field":"age","cmp":">","literal":{"t":"int","v":30}}`, ErrMalformed, "$"},
		{"missing field", `{"kind":"operand","cmp":">","literal":{"t":"int","v":30}}`, ErrMalformed, "$"},
		{"invalid field name", `{"kind":"operand","field":"1age","cmp":">","literal":{"t":"int","v":30}}`, ErrMalformed, "$.field"},
		{"reserved field name", `{"kind":"operand","field":"AND","cmp":">","literal":{"t":"int","v":30}}`, ErrMalformed, "$.field"},
		{"missing cmp", `{"kind":"operand","field":"age","literal":{"t":"int","v":30}}`, ErrMalformed, "$"},
		{"missing literal", `{"kind":"operand","field":"age","cmp":">"}`, ErrMalformed, "$"},
		{"literal not an object", `{"kind":"operand","field":"age","cmp":">","literal":30}`, ErrMalformed, "$.literal"},
		{"missing literal value", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int"}}`, ErrMalformed, "$.literal"},
		{"extra literal key", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30,"u":1}}`, ErrMalformed, "$.literal"},
		{"int with fraction", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30.5}}`, ErrMalformed, "$.literal.v"},
		{"int with exponent", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":3e1}}`, ErrMalformed, "$.literal.v"},
		{"int overflow", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":9223372036854775808}}`, ErrMalformed, "$.literal.v"},
		{"int as string", `{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":"30"}}`, ErrMalformed, "$.literal.v"},
		{"float nan", `{"kind":"operand","field":"r","cmp":">","literal":{"t":"float","v":NaN}}`, ErrMalformed, "$.literal.v"},
		{"float inf", `{"kind":"operand","field":"r","cmp":">","literal":{"t":"float","v":-Inf}}`, ErrMalformed, "$.literal.v"},
		{"float overflow", `{"kind":"operand","field":"r","cmp":">","literal":{"t":"float","v":1e999}}`, ErrMalformed, "$.literal.v"},
		{"bool as string", `{"kind":"operand","field":"b","cmp":"==","literal":{"t":"bool","v":"true"}}`, ErrMalformed, "$.literal.v"},
		{"string as number", `{"kind":"operand","field":"s","cmp":"==","literal":{"t":"string","v":1}}`, ErrMalformed, "$.literal.v"},
		{"null value", `{"kind":"operand","field":"s","cmp":"==","literal":{"t":"string","v":null}}`, ErrMalformed, "$.literal.v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Deserialize(Encoding(tt.input))
			if node != nil {
				t.Errorf("Deserialize() returned a tree alongside error %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Deserialize() error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
			if de.Path != tt.path {
				t.Errorf("Path = %q, want %q (%v)", de.Path, tt.path, err)
			}
		})
	}
}

func TestDecodeError_Is(t *testing.T) {
	err := error(&DecodeError{Kind: KindUnknownTag, Path: "$.op", Message: "unknown operator"})
	if !errors.Is(err, ErrUnknownTag) {
		t.Error("errors.Is(err, ErrUnknownTag) = false")
	}
	if errors.Is(err, ErrMalformed) || errors.Is(err, ErrArityMismatch) {
		t.Error("DecodeError matched a different kind")
	}
	if !errors.Is(err, &DecodeError{}) {
		t.Error("empty kind target should match any DecodeError")
	}
	if !strings.Contains(err.Error(), "$.op") || !strings.Contains(err.Error(), "unknown_tag") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDeserialize_KeyOrderIndependent(t *testing.T) {
	enc := `{"right":{"literal":{"v":"Sales","t":"string"},"cmp":"==","field":"department","kind":"operand"},` +
		`"left":{"cmp":">","kind":"operand","literal":{"t":"int","v":30},"field":"age"},"op":"AND","kind":"operator"}`
	got, err := Deserialize(Encoding(enc))
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	want := mustParse(t, "age > 30 AND department == 'Sales'")
	if !ast.Equal(got, want) {
		t.Errorf("Deserialize() = %s, want %s", got, want)
	}
}

func TestDeserialize_Concurrent(t *testing.T) {
	enc, err := Serialize(mustParse(t, "(a > 1 OR b == 'x') AND NOT c <= 2.5"))
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	want, _ := Deserialize(enc)

	var wg sync.WaitGroup
	var failures sync.Map
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := Deserialize(enc)
				if err != nil || !ast.Equal(got, want) {
					failures.Store(i, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	failures.Range(func(k, v any) bool {
		t.Errorf("goroutine %v: decode mismatch (err %v)", k, v)
		return true
	})
}

func BenchmarkSerialize(b *testing.B) {
	rule := mustParse(b, "age > 30 AND department == 'Sales' OR (salary >= 50000.0 AND NOT experience < 5)")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(rule); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeserialize(b *testing.B) {
	enc, err := Serialize(mustParse(b, "age > 30 AND department == 'Sales' OR (salary >= 50000.0 AND NOT experience < 5)"))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Deserialize(enc); err != nil {
			b.Fatal(err)
		}
	}
}
