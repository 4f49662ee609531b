package codec

import (
	"strconv"
	"sync"
	"unicode/utf8"

	"mercator-hq/ruleengine/pkg/rule/ast"
)

// MaxDepth is the deepest tree Serialize and Deserialize accept.
const MaxDepth = 256

// Encoding is the serialized form of a rule tree.
type Encoding []byte

// String returns the encoding as text.
func (e Encoding) String() string {
	return string(e)
}

// Tag values used in encodings.
const (
	kindOperator = "operator"
	kindOperand  = "operand"

	typeInt    = "int"
	typeFloat  = "float"
	typeBool   = "bool"
	typeString = "string"
)

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Serialize encodes a tree. The output is compact JSON with keys in a fixed
// order, so equal trees produce byte-identical encodings.
func Serialize(node *ast.Node) (Encoding, error) {
	if node == nil {
		return nil, ErrNilNode
	}
	if ast.Depth(node) > MaxDepth {
		return nil, ErrTooDeep
	}

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	buf, err := appendNode((*bp)[:0], node)
	if err != nil {
		return nil, err
	}
	*bp = buf

	out := make(Encoding, len(buf))
	copy(out, buf)
	return out, nil
}

func appendNode(dst []byte, n *ast.Node) ([]byte, error) {
	var err error
	if n.IsOperator() {
		dst = append(dst, `{"kind":"operator","op":`...)
		dst = appendString(dst, string(n.Op()))
		dst = append(dst, `,"left":`...)
		if dst, err = appendNode(dst, n.Left()); err != nil {
			return nil, err
		}
		if n.Right() != nil {
			dst = append(dst, `,"right":`...)
			if dst, err = appendNode(dst, n.Right()); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	}

	dst = append(dst, `{"kind":"operand","field":`...)
	dst = appendString(dst, n.Field())
	dst = append(dst, `,"cmp":`...)
	dst = appendString(dst, string(n.Comparator()))
	dst = append(dst, `,"literal":{"t":`...)

	v := n.Value()
	switch v.Type() {
	case ast.ValueTypeInt:
		dst = appendString(dst, typeInt)
		dst = append(dst, `,"v":`...)
		dst = strconv.AppendInt(dst, v.Int(), 10)
	case ast.ValueTypeFloat:
		dst = appendString(dst, typeFloat)
		dst = append(dst, `,"v":`...)
		dst = strconv.AppendFloat(dst, v.Float(), 'g', -1, 64)
	case ast.ValueTypeBool:
		dst = appendString(dst, typeBool)
		dst = append(dst, `,"v":`...)
		dst = strconv.AppendBool(dst, v.Bool())
	case ast.ValueTypeString:
		if !utf8.ValidString(v.Str()) {
			return nil, ErrInvalidUTF
		}
		dst = appendString(dst, typeString)
		dst = append(dst, `,"v":`...)
		dst = appendString(dst, v.Str())
	}
	return append(dst, "}}"...), nil
}

const hexDigits = "0123456789abcdef"

// appendString appends s as a JSON string. Only the characters JSON requires
// are escaped; s must be valid UTF-8.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}
