package impact

// CallRef is a call from a member to another impacted method.
type CallRef struct {
	Name       string `json:"name"`
	Signature  string `json:"signature"`
	LineNumber int    `json:"lineNumber"`
}

// FieldRef is a field declaration or access with its line.
type FieldRef struct {
	Name       string `json:"name"`
	LineNumber int    `json:"lineNumber"`
}

// MemberResponse is an impacted method of a type.
type MemberResponse struct {
	Name          string     `json:"name"`
	Signature     string     `json:"signature"`
	LineNumber    int        `json:"lineNumber"`
	CalledMethods []CallRef  `json:"calledMethods"`
	ReadFields    []FieldRef `json:"readFields"`
	WrittenFields []FieldRef `json:"writtenFields"`
}

// TypeResponse is a type with its impacted fields and members.
type TypeResponse struct {
	Name       string           `json:"name"`
	LineNumber int              `json:"lineNumber"`
	Fields     []FieldRef       `json:"fields"`
	Members    []MemberResponse `json:"members"`
}

// FileResponse groups impacted types by declaring file.
type FileResponse struct {
	Name         string         `json:"name"`
	AbsolutePath string         `json:"absolutePath"`
	Types        []TypeResponse `json:"types"`
}

// Target identifies what a full impact query was asked about.
type Target struct {
	Kind      string `json:"kind"` // field, method or class
	Name      string `json:"name"`
	ClassName string `json:"className"`
	Signature string `json:"signature,omitempty"`
}

// Report is the result of a full impact query.
type Report struct {
	Target    Target         `json:"target"`
	Files     []FileResponse `json:"files"`
	Truncated bool           `json:"truncated,omitempty"`
}

// MethodDescriptor is one entry of a flat query result.
type MethodDescriptor struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	FilePath  string `json:"filePath"`
}

// MethodList is the result of a flat query.
type MethodList struct {
	Methods   []MethodDescriptor `json:"methods"`
	Truncated bool               `json:"truncated,omitempty"`
}
