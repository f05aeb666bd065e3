package graph

// Sink receives source facts from a fact producer. *Builder implements it.
type Sink interface {
	UpsertFile(name, absolutePath string) (int64, error)
	UpsertType(name, filePath string) (int64, error)
	UpsertField(name string) (int64, error)
	UpsertMethod(signature string) (int64, error)

	SetFieldType(fieldID int64, typeText string) error
	SetMethodTypes(methodID int64, returnType string, paramTypes []string) error

	DeclareType(fileID, classID int64, line int) error
	DeclareField(classID, fieldID int64, line int) error
	DeclareMethod(classID, methodID int64, line int) error

	RecordCall(callerID, calleeID int64, line int) error
	RecordRead(methodID, fieldID int64, line int) error
	RecordWrite(methodID, fieldID int64, line int) error
}

var _ Sink = (*Builder)(nil)
