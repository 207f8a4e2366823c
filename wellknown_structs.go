//go:build darwin

package bridge

import "fmt"

// wellKnownFields maps a struct's ObjC runtime name to its canonical,
// declaration-order field names, used when the encoding carries no quoted
// field names of its own (spec.md §3: "otherwise from a built-in table of
// well-known Apple types").
var wellKnownFields = map[string][]string{
	"CGPoint":          {"x", "y"},
	"NSPoint":          {"x", "y"},
	"CGSize":           {"width", "height"},
	"NSSize":           {"width", "height"},
	"CGRect":           {"origin", "size"},
	"NSRect":           {"origin", "size"},
	"CGVector":         {"dx", "dy"},
	"NSRange":          {"location", "length"},
	"_NSRange":         {"location", "length"},
	"NSEdgeInsets":     {"top", "left", "bottom", "right"},
	"UIEdgeInsets":     {"top", "left", "bottom", "right"},
	"CGAffineTransform": {"a", "b", "c", "d", "tx", "ty"},
	"CATransform3D": {
		"m11", "m12", "m13", "m14",
		"m21", "m22", "m23", "m24",
		"m31", "m32", "m33", "m34",
		"m41", "m42", "m43", "m44",
	},
}

// wellKnownFieldName returns the canonical field name for position idx of
// struct structName, falling back to positional naming ("field0",
// "field1", ...) per spec.md §3.
func wellKnownFieldName(structName string, idx int) string {
	if names, ok := wellKnownFields[structName]; ok && idx < len(names) {
		return names[idx]
	}
	return fmt.Sprintf("field%d", idx)
}

// fastPathStructs lists the well-known structs C2 special-cases with a
// direct field-by-offset codec instead of the generic recursive walker
// (spec.md §4.2, "struct pack/unpack fast paths").
var fastPathStructs = map[string]bool{
	"CGRect": true, "NSRect": true,
	"CGPoint": true, "NSPoint": true,
	"CGSize": true, "NSSize": true,
	"NSRange": true, "_NSRange": true,
}
