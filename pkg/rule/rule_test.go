package rule

import (
	"errors"
	"testing"

	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/eval"
)

func mustParse(t *testing.T, text string) *Node {
	t.Helper()
	r, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return r
}

// TestScenario_ParseAndEvaluate parses a conjunction and evaluates it twice
func TestScenario_ParseAndEvaluate(t *testing.T) {
	r := mustParse(t, "age > 30 AND department == 'Sales'")

	want := ast.And(
		ast.Condition("age", ast.CmpGreater, ast.IntValue(30)),
		ast.Condition("department", ast.CmpEqual, ast.StringValue("Sales")),
	)
	if !ast.Equal(r, want) {
		t.Fatalf("Parse() = %s, want %s", r, want)
	}

	tests := []struct {
		ctx  map[string]any
		want bool
	}{
		{map[string]any{"age": 35, "department": "Sales"}, true},
		{map[string]any{"age": 25, "department": "Sales"}, false},
	}
	for _, tt := range tests {
		got, err := Evaluate(r, MustContext(tt.ctx))
		if err != nil {
			t.Fatalf("Evaluate() failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.ctx, got, tt.want)
		}
	}
}

// TestScenario_CombineAndRoundTrip combines two rules, evaluates the result,
// and checks the decoded encoding evaluates the same way
func TestScenario_CombineAndRoundTrip(t *testing.T) {
	ageAndSales := mustParse(t, "age > 30 AND department == 'Sales'")
	salaryOrExperience := mustParse(t, "salary > 50000 OR experience > 5")
	ctx := MustContext(map[string]any{"age": 40, "salary": 55000, "department": "Sales", "experience": 6})

	combined, err := Combine(ageAndSales, salaryOrExperience)
	if err != nil {
		t.Fatalf("Combine() failed: %v", err)
	}
	if combined.Left() != ageAndSales || combined.Right() != salaryOrExperience {
		t.Error("Combine() copied its inputs")
	}

	got, err := Evaluate(combined, ctx)
	if err != nil || !got {
		t.Fatalf("Evaluate(combined) = %v, %v, want true", got, err)
	}

	enc, err := Serialize(combined)
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	decoded, err := Deserialize(enc)
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	again, err := Evaluate(decoded, ctx)
	if err != nil || again != got {
		t.Errorf("Evaluate(decoded) = %v, %v, want %v", again, err, got)
	}
}

// TestScenario_Precedence checks NOT binds tighter than AND inside a group
func TestScenario_Precedence(t *testing.T) {
	got, err := ParseAndEvaluate("(a>1 OR b>2) AND NOT c==3", MustContext(map[string]any{"a": 0, "b": 5, "c": 1}))
	if err != nil {
		t.Fatalf("ParseAndEvaluate() failed: %v", err)
	}
	if !got {
		t.Error("ParseAndEvaluate() = false, want true")
	}
}

// TestScenario_DecodeArityMismatch rejects an AND encoding without a right child
func TestScenario_DecodeArityMismatch(t *testing.T) {
	enc := Encoding(`{"kind":"operator","op":"AND","left":{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30}}}`)
	r, err := Deserialize(enc)
	if r != nil {
		t.Error("Deserialize() returned a tree")
	}
	if !errors.Is(err, codec.ErrArityMismatch) {
		t.Errorf("Deserialize() error = %v, want ArityMismatch", err)
	}
}

func TestParseAndEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		ctx  map[string]any
		want error
	}{
		{"parse error", "age >", map[string]any{"age": 1}, &ruleErrors.ParseError{Kind: ruleErrors.KindMissingOperand}},
		{"missing field", "age > 1", map[string]any{}, eval.ErrMissingField},
		{"type mismatch", "age > 1", map[string]any{"age": "old"}, eval.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAndEvaluate(tt.text, MustContext(tt.ctx))
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseAndEvaluate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCombine_Laws(t *testing.T) {
	if _, err := Combine(); !errors.Is(err, compose.ErrEmpty) {
		t.Errorf("Combine() error = %v, want ErrEmpty", err)
	}

	r := mustParse(t, "x == 1")
	single, err := Combine(r)
	if err != nil || single != r {
		t.Errorf("Combine(r) = %p, %v, want the same tree", single, err)
	}

	// Combined rules hold exactly when every input holds
	rules := []*Node{mustParse(t, "x > 0"), mustParse(t, "y == 'a'"), mustParse(t, "NOT z == true")}
	combined, err := Combine(rules...)
	if err != nil {
		t.Fatalf("Combine() failed: %v", err)
	}
	for _, c := range []map[string]any{
		{"x": 1, "y": "a", "z": false},
		{"x": 1, "y": "a", "z": true},
		{"x": 0, "y": "a", "z": false},
		{"x": 1, "y": "b", "z": false},
	} {
		ctx := MustContext(c)
		all := true
		for _, r := range rules {
			ok, err := Evaluate(r, ctx)
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			all = all && ok
		}
		got, err := Evaluate(combined, ctx)
		if err != nil || got != all {
			t.Errorf("context %v: combined = %v, %v; want %v", c, got, err, all)
		}
	}
}
