// Package mcp exposes impact queries and index control as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/impact"
	"github.com/felipestanzani/beyondsight/internal/indexer"
)

// Version is reported to MCP clients.
var Version = "dev"

// Server implements the MCP tool surface for beyondsight
type Server struct {
	engine    *impact.Engine
	indexer   *indexer.Indexer
	logger    *slog.Logger
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server
func NewServer(engine *impact.Engine, ix *indexer.Indexer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		indexer: ix,
		logger:  logger,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "beyondsight",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server started", "transport", "stdio")
	err := s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Arguments structs

type FieldReferencesArgs struct {
	FieldName string `json:"fieldName" jsonschema:"the name of the field to analyze"`
	ClassName string `json:"className" jsonschema:"the simple name of the class declaring the field"`
}

type MethodReferencesArgs struct {
	MethodSignature string `json:"methodSignature" jsonschema:"the method signature, e.g. deposit(long)"`
	ClassName       string `json:"className" jsonschema:"the simple name of the class declaring the method"`
}

type ClassReferencesArgs struct {
	ClassName string `json:"className" jsonschema:"the simple name of the class to analyze"`
}

type FieldArgs struct {
	FieldName string `json:"fieldName" jsonschema:"the name of the field"`
}

type MethodNameArgs struct {
	MethodName string `json:"methodName" jsonschema:"the simple method name; every overload is included"`
}

type MethodSignatureArgs struct {
	MethodSignature string `json:"methodSignature" jsonschema:"the exact method signature, e.g. deposit(long)"`
}

type RescanArgs struct {
	Path string `json:"path" jsonschema:"absolute path of the project root to index"`
}

type StatusArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getFieldReferences",
		Description: "Full change impact of a field: every file, type and member affected by changing it, with the calls, reads and writes that connect them",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FieldReferencesArgs) (*mcp.CallToolResult, any, error) {
		report, err := s.engine.FieldImpact(ctx, args.FieldName, args.ClassName)
		return s.result("getFieldReferences", report, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getMethodReferences",
		Description: "Full change impact of a method: transitive callers and callees, co-accessors of the fields it touches and same-name overloads",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args MethodReferencesArgs) (*mcp.CallToolResult, any, error) {
		report, err := s.engine.MethodImpact(ctx, args.MethodSignature, args.ClassName)
		return s.result("getMethodReferences", report, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getClassReferences",
		Description: "Full change impact of a class: callers of its methods, overrides, and members whose types reference it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ClassReferencesArgs) (*mcp.CallToolResult, any, error) {
		report, err := s.engine.ClassImpact(ctx, args.ClassName)
		return s.result("getClassReferences", report, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getFieldWriters",
		Description: "Methods that directly write a field",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FieldArgs) (*mcp.CallToolResult, any, error) {
		list, err := s.engine.FieldWriters(ctx, args.FieldName)
		return s.result("getFieldWriters", list, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getFieldReaders",
		Description: "Methods that directly read a field",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FieldArgs) (*mcp.CallToolResult, any, error) {
		list, err := s.engine.FieldReaders(ctx, args.FieldName)
		return s.result("getFieldReaders", list, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getUpstreamCallers",
		Description: "Every method that transitively calls a method with the given name",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args MethodNameArgs) (*mcp.CallToolResult, any, error) {
		list, err := s.engine.UpstreamCallers(ctx, args.MethodName)
		return s.result("getUpstreamCallers", list, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getDownstreamCallees",
		Description: "Every method transitively called by the method with the given signature",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args MethodSignatureArgs) (*mcp.CallToolResult, any, error) {
		list, err := s.engine.DownstreamCallees(ctx, args.MethodSignature)
		return s.result("getDownstreamCallees", list, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rescanProject",
		Description: "Rebuilds the reference graph for a project in the background; fails while a rebuild is running",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RescanArgs) (*mcp.CallToolResult, any, error) {
		status, err := s.indexer.Rescan(ctx, args.Path)
		return s.result("rescanProject", status, err), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "getParseStatus",
		Description: "Returns the state of the latest rebuild",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
		return s.result("getParseStatus", s.indexer.Status(), nil), nil, nil
	})
}

// result renders a successful value as JSON text, or err as a tool error
// carrying its code.
func (s *Server) result(tool string, v any, err error) *mcp.CallToolResult {
	if err != nil {
		if bserrors.CodeOf(err) == bserrors.Internal {
			s.logger.Error("tool failed", "tool", tool, "err", err)
		}
		return errorResult(err.Error())
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode tool result", "tool", tool, "err", err)
		return errorResult(bserrors.Wrap(bserrors.Internal, "failed to encode result", err).Error())
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
