package impact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

func method(sig string) *graph.Node {
	return &graph.Node{Kind: graph.NodeKindMethod, Name: graph.MethodName(sig), Signature: sig}
}

func TestSignaturePredicates(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		candidate string
		variant   bool
		override  bool
	}{
		{"overload", "save(User)", "save(User,boolean)", true, true},
		{"same signature", "save(User)", "save(User)", false, false},
		{"different name", "save(User)", "store(User)", false, false},
		{"no params", "run()", "run(int)", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c := method(tt.method), method(tt.candidate)
			assert.Equal(t, tt.variant, IsSignatureVariant(m, c))
			assert.Equal(t, tt.override, IsOverrideCandidate(m, c))
		})
	}
}

func TestTypeReferencePredicates(t *testing.T) {
	m := method("find(String,int)")
	m.ReturnType = "List<Account>"
	m.ParameterTypes = []string{"String", "int"}

	assert.True(t, MethodReferencesType(m, "Account"))
	assert.True(t, MethodReferencesType(m, "String"))
	assert.False(t, MethodReferencesType(m, "User"))

	f := &graph.Node{Kind: graph.NodeKindField, Name: "owners", FieldTypes: []string{"Map<String,User>"}}
	assert.True(t, FieldReferencesType(f, "User"))
	assert.False(t, FieldReferencesType(f, "Account"))
}

func TestReport_Format(t *testing.T) {
	r := &Report{
		Target: Target{Kind: "field", Name: "x", ClassName: "A"},
		Files: []FileResponse{{
			Name:         "B.java",
			AbsolutePath: "/src/pkg/B.java",
			Types: []TypeResponse{{
				Name:       "B",
				LineNumber: 1,
				Fields:     []FieldRef{},
				Members: []MemberResponse{{
					Name: "m", Signature: "m()", LineNumber: 5,
					CalledMethods: []CallRef{},
					ReadFields:    []FieldRef{{Name: "x", LineNumber: 6}},
					WrittenFields: []FieldRef{},
				}},
			}},
		}},
	}

	tree := r.FormatTree()
	assert.Contains(t, tree, "field impact: A.x")
	assert.Contains(t, tree, "pkg/B.java")
	assert.Contains(t, tree, "reads x :6")

	md := r.FormatMarkdown()
	assert.True(t, strings.HasPrefix(md, "## Change impact: A.x"))
	assert.Contains(t, md, "| `m()` | 5 | - | x:6 | - |")

	assert.Equal(t, "Target: A.x, Files: 1, Types: 1, Members: 1", r.Summary())
}
