package graph

import "strings"

// NodeKind represents the type of a code element
type NodeKind string

const (
	NodeKindFile   NodeKind = "File"
	NodeKindClass  NodeKind = "Class"
	NodeKindField  NodeKind = "Field"
	NodeKindMethod NodeKind = "Method"
)

// Node represents a code element in the reference graph.
//
// Keys are global per kind: a Class is keyed by its simple name, a Field by
// its name and a Method by its signature. Two unrelated declarations sharing
// a key collapse into one node; the impact heuristics rely on that.
type Node struct {
	ID   int64    `json:"id"`
	Kind NodeKind `json:"kind"`
	Key  string   `json:"key"`
	Name string   `json:"name"`

	AbsolutePath string `json:"absolutePath,omitempty"` // File
	FilePath     string `json:"filePath,omitempty"`     // Class, first non-empty path wins

	FieldTypes []string `json:"fieldTypes,omitempty"` // Field, distinct declared types

	Signature      string   `json:"signature,omitempty"` // Method
	ReturnType     string   `json:"returnType,omitempty"`
	ParameterTypes []string `json:"parameterTypes,omitempty"`
}

// MethodName returns the simple name of a method signature, the text
// before the opening parenthesis.
func MethodName(signature string) string {
	if i := strings.IndexByte(signature, '('); i >= 0 {
		return signature[:i]
	}
	return signature
}

// FormatSignature renders name(T1,T2).
func FormatSignature(name string, paramTypes []string) string {
	return name + "(" + strings.Join(paramTypes, ",") + ")"
}
