package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"

	"mercator-hq/ruleengine/pkg/rule/ast"
)

// Context is the data record a rule is evaluated against. It maps field
// names, including dotted names such as "user.age", to typed values.
// A Context is read-only during evaluation and may be shared between
// concurrent evaluations.
type Context map[string]ast.Value

// Get returns the value of a field and whether it is present.
func (c Context) Get(field string) (ast.Value, bool) {
	v, ok := c[field]
	return v, ok && v.IsValid()
}

// Fields returns the field names in sorted order.
func (c Context) Fields() []string {
	fields := make([]string, 0, len(c))
	for k := range c {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// NewContext converts native Go values into a Context. Supported types are
// all signed and unsigned integer types, float32, float64, bool, string,
// json.Number and ast.Value. Unsigned values above math.MaxInt64 are
// rejected rather than wrapped.
func NewContext(values map[string]any) (Context, error) {
	ctx := make(Context, len(values))
	for field, raw := range values {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidContext, field, err)
		}
		ctx[field] = v
	}
	return ctx, nil
}

// MustContext is like NewContext but panics on error. It is intended for
// tests and literals known to be valid.
func MustContext(values map[string]any) Context {
	ctx, err := NewContext(values)
	if err != nil {
		panic(err)
	}
	return ctx
}

func toValue(raw any) (ast.Value, error) {
	switch v := raw.(type) {
	case ast.Value:
		if !v.IsValid() {
			return ast.Value{}, fmt.Errorf("zero ast.Value")
		}
		return v, nil
	case int:
		return ast.IntValue(int64(v)), nil
	case int8:
		return ast.IntValue(int64(v)), nil
	case int16:
		return ast.IntValue(int64(v)), nil
	case int32:
		return ast.IntValue(int64(v)), nil
	case int64:
		return ast.IntValue(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return ast.IntValue(int64(v)), nil
	case uint16:
		return ast.IntValue(int64(v)), nil
	case uint32:
		return ast.IntValue(int64(v)), nil
	case uint64:
		return fromUint(v)
	case float32:
		return ast.FloatValue(float64(v)), nil
	case float64:
		return ast.FloatValue(v), nil
	case bool:
		return ast.BoolValue(v), nil
	case string:
		return ast.StringValue(v), nil
	case json.Number:
		return numberValue(string(v))
	case nil:
		return ast.Value{}, fmt.Errorf("null values are not supported")
	}
	return ast.Value{}, fmt.Errorf("unsupported type %T", raw)
}

func fromUint(v uint64) (ast.Value, error) {
	if v > math.MaxInt64 {
		return ast.Value{}, fmt.Errorf("%d overflows int64", v)
	}
	return ast.IntValue(int64(v)), nil
}

// numberValue types a textual JSON number: integral text becomes an int,
// text with a fraction or exponent becomes a float.
func numberValue(raw string) (ast.Value, error) {
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return ast.IntValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ast.Value{}, fmt.Errorf("invalid number %q", raw)
	}
	return ast.FloatValue(f), nil
}

// ParseContextJSON parses a flat JSON object into a Context. Numbers without
// a fraction or exponent become integers (falling back to floats when they
// overflow int64), other numbers become floats. Nested objects, arrays and
// null are rejected.
func ParseContextJSON(data []byte) (Context, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}

	obj, err := root.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: record must be a JSON object, got %s", ErrInvalidContext, root.Type())
	}

	ctx := make(Context, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		field := string(key)
		if _, dup := ctx[field]; dup {
			visitErr = fmt.Errorf("%w: duplicate field %q", ErrInvalidContext, field)
			return
		}
		value, err := jsonValue(v)
		if err != nil {
			visitErr = fmt.Errorf("%w: field %q: %v", ErrInvalidContext, field, err)
			return
		}
		ctx[field] = value
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return ctx, nil
}

func jsonValue(v *fastjson.Value) (ast.Value, error) {
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return ast.StringValue(string(b)), nil
	case fastjson.TypeNumber:
		return numberValue(v.String())
	case fastjson.TypeTrue:
		return ast.BoolValue(true), nil
	case fastjson.TypeFalse:
		return ast.BoolValue(false), nil
	}
	return ast.Value{}, fmt.Errorf("unsupported JSON type %s", v.Type())
}
