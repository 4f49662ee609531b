package codec

import (
	"math"
	"strconv"

	"github.com/valyala/fastjson"

	"mercator-hq/ruleengine/pkg/rule/ast"
)

var parserPool fastjson.ParserPool

// Deserialize decodes an encoding into a tree. The encoding is validated
// strictly; on failure the error is a *DecodeError and no tree is returned.
func Deserialize(enc Encoding) (*ast.Node, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	root, err := p.ParseBytes(enc)
	if err != nil {
		return nil, decodeErr(KindMalformed, "", "invalid JSON: %v", err)
	}

	d := decoder{}
	node, derr := d.node(root, "$", 1)
	if derr != nil {
		return nil, derr
	}
	return node, nil
}

// decoder copies everything it needs out of the fastjson values, which are
// only valid until the parser is reused.
type decoder struct{}

// object is a decoded JSON object with its keys in document order.
type object struct {
	members map[string]*fastjson.Value
	keys    []string
}

// fields indexes the members of a JSON object, rejecting duplicate keys.
func (d decoder) fields(v *fastjson.Value, path, what string) (object, *DecodeError) {
	obj, err := v.Object()
	if err != nil {
		return object{}, decodeErr(KindMalformed, path, "%s must be a JSON object, got %s", what, v.Type())
	}

	o := object{
		members: make(map[string]*fastjson.Value, obj.Len()),
		keys:    make([]string, 0, obj.Len()),
	}
	var dup string
	obj.Visit(func(key []byte, val *fastjson.Value) {
		k := string(key)
		if _, seen := o.members[k]; seen {
			if dup == "" {
				dup = k
			}
			return
		}
		o.members[k] = val
		o.keys = append(o.keys, k)
	})
	if dup != "" {
		return object{}, decodeErr(KindMalformed, path, "duplicate key %q", dup)
	}
	return o, nil
}

func (d decoder) str(o object, key, path string) (string, bool, *DecodeError) {
	v, ok := o.members[key]
	if !ok {
		return "", false, nil
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", true, decodeErr(KindMalformed, path+"."+key, "%q must be a string, got %s", key, v.Type())
	}
	return string(b), true, nil
}

func (d decoder) node(v *fastjson.Value, path string, depth int) (*ast.Node, *DecodeError) {
	if depth > MaxDepth {
		return nil, decodeErr(KindMalformed, path, "rule is deeper than %d levels", MaxDepth)
	}

	o, err := d.fields(v, path, "node")
	if err != nil {
		return nil, err
	}

	kind, ok, err := d.str(o, "kind", path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, decodeErr(KindMalformed, path, `missing "kind"`)
	}

	switch kind {
	case kindOperator:
		return d.operator(o, path, depth)
	case kindOperand:
		return d.operand(o, path)
	}
	return nil, decodeErr(KindUnknownTag, path+".kind", "unknown node kind %q", kind)
}

func (d decoder) operator(o object, path string, depth int) (*ast.Node, *DecodeError) {
	for _, key := range o.keys {
		switch key {
		case "kind", "op", "left", "right":
		case "field", "cmp", "literal":
			return nil, decodeErr(KindMalformed, path, "operator node must not carry operand key %q", key)
		default:
			return nil, decodeErr(KindMalformed, path, "unknown key %q", key)
		}
	}

	opName, ok, err := d.str(o, "op", path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, decodeErr(KindMalformed, path, `operator node missing "op"`)
	}
	op := ast.Op(opName)
	if !op.IsValid() {
		return nil, decodeErr(KindUnknownTag, path+".op", "unknown operator %q", opName)
	}

	leftV, hasLeft := o.members["left"]
	rightV, hasRight := o.members["right"]
	switch {
	case !hasLeft:
		return nil, decodeErr(KindArityMismatch, path, `%s operator missing "left"`, op)
	case op.Arity() == 2 && !hasRight:
		return nil, decodeErr(KindArityMismatch, path, `%s operator missing "right"`, op)
	case op.Arity() == 1 && hasRight:
		return nil, decodeErr(KindArityMismatch, path, `%s operator takes one operand but has "right"`, op)
	}

	left, err := d.node(leftV, path+".left", depth+1)
	if err != nil {
		return nil, err
	}
	children := []*ast.Node{left}
	if hasRight {
		right, err := d.node(rightV, path+".right", depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}

	node, cerr := ast.NewOperator(op, children...)
	if cerr != nil {
		return nil, decodeErr(KindArityMismatch, path, "%v", cerr)
	}
	return node, nil
}

func (d decoder) operand(o object, path string) (*ast.Node, *DecodeError) {
	for _, key := range o.keys {
		switch key {
		case "kind", "field", "cmp", "literal":
		case "left", "right", "op":
			return nil, decodeErr(KindMalformed, path, "operand node must not carry operator key %q", key)
		default:
			return nil, decodeErr(KindMalformed, path, "unknown key %q", key)
		}
	}

	field, ok, err := d.str(o, "field", path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, decodeErr(KindMalformed, path, `operand node missing "field"`)
	}
	if !ast.IsValidField(field) {
		return nil, decodeErr(KindMalformed, path+".field", "invalid field name %q", field)
	}

	cmpName, ok, err := d.str(o, "cmp", path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, decodeErr(KindMalformed, path, `operand node missing "cmp"`)
	}
	cmp := ast.Comparator(cmpName)
	if !cmp.IsValid() {
		return nil, decodeErr(KindUnknownTag, path+".cmp", "unknown comparator %q", cmpName)
	}

	litV, ok := o.members["literal"]
	if !ok {
		return nil, decodeErr(KindMalformed, path, `operand node missing "literal"`)
	}
	value, err := d.literal(litV, path+".literal")
	if err != nil {
		return nil, err
	}

	node, cerr := ast.NewOperand(field, cmp, value)
	if cerr != nil {
		return nil, decodeErr(KindMalformed, path, "%v", cerr)
	}
	return node, nil
}

func (d decoder) literal(v *fastjson.Value, path string) (ast.Value, *DecodeError) {
	o, err := d.fields(v, path, "literal")
	if err != nil {
		return ast.Value{}, err
	}
	for _, key := range o.keys {
		if key != "t" && key != "v" {
			return ast.Value{}, decodeErr(KindMalformed, path, "unknown key %q", key)
		}
	}

	typ, ok, err := d.str(o, "t", path)
	if err != nil {
		return ast.Value{}, err
	}
	if !ok {
		return ast.Value{}, decodeErr(KindMalformed, path, `literal missing "t"`)
	}
	switch typ {
	case typeInt, typeFloat, typeBool, typeString:
	default:
		return ast.Value{}, decodeErr(KindUnknownTag, path+".t", "unknown literal type %q", typ)
	}

	raw, ok := o.members["v"]
	if !ok {
		return ast.Value{}, decodeErr(KindMalformed, path, `literal missing "v"`)
	}
	vpath := path + ".v"

	switch typ {
	case typeInt:
		if raw.Type() == fastjson.TypeNumber {
			if i, perr := strconv.ParseInt(raw.String(), 10, 64); perr == nil {
				return ast.IntValue(i), nil
			}
		}
		return ast.Value{}, decodeErr(KindMalformed, vpath, "int literal must be an integer in int64 range, got %s", describe(raw))

	case typeFloat:
		if raw.Type() == fastjson.TypeNumber {
			text := raw.String()
			f, perr := strconv.ParseFloat(text, 64)
			// fastjson lets NaN and Inf through as numbers
			if perr == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return ast.FloatValue(f), nil
			}
		}
		return ast.Value{}, decodeErr(KindMalformed, vpath, "float literal must be a finite number, got %s", describe(raw))

	case typeBool:
		switch raw.Type() {
		case fastjson.TypeTrue:
			return ast.BoolValue(true), nil
		case fastjson.TypeFalse:
			return ast.BoolValue(false), nil
		}
		return ast.Value{}, decodeErr(KindMalformed, vpath, "bool literal must be true or false, got %s", describe(raw))

	default:
		b, serr := raw.StringBytes()
		if serr != nil {
			return ast.Value{}, decodeErr(KindMalformed, vpath, "string literal must be a string, got %s", describe(raw))
		}
		return ast.StringValue(string(b)), nil
	}
}

// describe renders a JSON value for error messages, truncated.
func describe(v *fastjson.Value) string {
	s := v.String()
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return v.Type().String() + " " + s
}
