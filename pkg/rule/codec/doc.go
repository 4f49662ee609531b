// Package codec converts rule trees to and from their portable JSON encoding.
//
// Every node is a JSON object. Operators carry their children under "left"
// and "right" ("right" is absent for NOT); operands carry a field, a
// comparator and a typed literal:
//
//	{"kind":"operator","op":"AND",
//	 "left":{"kind":"operand","field":"age","cmp":">","literal":{"t":"int","v":30}},
//	 "right":{"kind":"operand","field":"department","cmp":"==","literal":{"t":"string","v":"Sales"}}}
//
// Serialize emits keys in a fixed order without whitespace, so equal trees
// always produce identical bytes. Deserialize validates strictly: a tree is
// only returned when every node has the shape its kind requires. Failures are
// reported as *DecodeError with one of three kinds (ArityMismatch, UnknownTag,
// Malformed) and a path to the offending node, such as $.left.right.literal.
//
// Encodings are bounded by MaxDepth levels of nesting in both directions.
package codec
