package impact

import (
	"strings"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// The predicates below stand in for real type resolution. They match on
// names and type text only and over-approximate on purpose; swapping one
// for a semantic check does not touch the traversal code.

// IsSignatureVariant reports whether candidate looks like another version
// of method: same simple name, different signature, and a signature text
// that mentions the name. Used by the field query.
func IsSignatureVariant(method, candidate *graph.Node) bool {
	return candidate.Name == method.Name &&
		candidate.Signature != method.Signature &&
		strings.Contains(candidate.Signature, method.Name)
}

// IsOverrideCandidate reports whether candidate may override or overload
// method: same simple name, different signature.
func IsOverrideCandidate(method, candidate *graph.Node) bool {
	return candidate.Name == method.Name && candidate.Signature != method.Signature
}

// MethodReferencesType reports whether a method's return or parameter
// type text contains className.
func MethodReferencesType(method *graph.Node, className string) bool {
	if strings.Contains(method.ReturnType, className) {
		return true
	}
	for _, p := range method.ParameterTypes {
		if strings.Contains(p, className) {
			return true
		}
	}
	return false
}

// FieldReferencesType reports whether any declared type of field contains
// className.
func FieldReferencesType(field *graph.Node, className string) bool {
	for _, t := range field.FieldTypes {
		if strings.Contains(t, className) {
			return true
		}
	}
	return false
}
