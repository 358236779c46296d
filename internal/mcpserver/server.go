// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dossier tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/repository"
)

// ContractURI identifies the dossier format resource.
const ContractURI = "rhs://dossier-format"

// Server wraps the MCP server with dossier tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *dossierservice.Service
	fetcher *Fetcher
}

// New creates a new MCP server with all dossier tools registered.
func New(svc *dossierservice.Service, version string) *Server {
	s := &Server{svc: svc, fetcher: NewFetcher()}

	s.mcp = server.NewMCPServer(
		"Research Dossier",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_dossiers",
		mcp.WithDescription("List stored dossiers, most recently updated first, with the active dossier id."),
	), s.listDossiers)

	s.mcp.AddTool(mcp.NewTool("read_dossier",
		mcp.WithDescription("Read the stored JSON document of a dossier exactly as persisted."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dossier id")),
	), s.readDossier)

	s.mcp.AddTool(mcp.NewTool("read_step",
		mcp.WithDescription("Read one step of a dossier, migrated to the current payload generation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dossier id")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step id, e.g. 1-4")),
	), s.readStep)

	s.mcp.AddTool(mcp.NewTool("write_step",
		mcp.WithDescription("Replace the payload of one step. Any payload generation is accepted "+
			"and stored in the current one. Read the contract first via the get_dossier_contract "+
			"tool or the "+ContractURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dossier id")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step id, e.g. 1-6")),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Step payload as a JSON object")),
	), s.writeStep)

	s.mcp.AddTool(mcp.NewTool("dossier_summary",
		mcp.WithDescription("Progress, lead metrics, evidence and gate decision of a dossier."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dossier id")),
		mcp.WithString("format", mcp.Description("json (default) or text for the printable summary"),
			mcp.Enum("json", "text")),
	), s.dossierSummary)

	s.mcp.AddTool(mcp.NewTool("export_dossier",
		mcp.WithDescription("Export a dossier as its stored JSON text with a download filename."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dossier id")),
	), s.exportDossier)

	s.mcp.AddTool(mcp.NewTool("import_dossier",
		mcp.WithDescription("Import a dossier and make it active. Pass the JSON text in content, "+
			"or a source that is a base64 data: URI or an http(s) URL."),
		mcp.WithString("content", mcp.Description("Dossier JSON text")),
		mcp.WithString("source", mcp.Description("data:application/json;base64,... or https://... URL")),
		mcp.WithBoolean("new_id", mcp.Description("Store under a freshly allocated id")),
	), s.importDossier)

	s.mcp.AddTool(mcp.NewTool("get_dossier_contract",
		mcp.WithDescription("Returns the dossier document and step payload contract. "+
			"Call this before writing steps or importing dossiers."),
	), s.getDossierContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Dossier Format Contract",
			mcp.WithResourceDescription("Stored dossier document layout and step payload generations."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrUnknownStep):
		return mcp.NewToolResultError("unknown step")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type listResult struct {
	ActiveID string               `json:"activeId,omitempty"`
	Dossiers []repository.Summary `json:"dossiers"`
}

func (s *Server) listDossiers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := listResult{Dossiers: s.svc.List(ctx)}
	if d, err := s.svc.Active(ctx); err == nil {
		res.ActiveID = d.ID
	}
	return jsonResult(res), nil
}

func (s *Server) readDossier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, _, _, err := s.svc.Export(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) readStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	step, err := req.RequireString("step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.ReadStep(ctx, id, step)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(v), nil
}

func (s *Server) writeStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	step, err := req.RequireString("step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.WriteStep(ctx, id, step, []byte(payload), "")
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(v), nil
}

func (s *Server) dossierSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.EqualFold(req.GetString("format", "json"), "text") {
		text, err := s.svc.PrintSummary(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(text), nil
	}
	rep, err := s.svc.Report(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rep), nil
}

type exportResult struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

func (s *Server) exportDossier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, filename, sum, err := s.svc.Export(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(exportResult{Filename: filename, Checksum: sum, Content: text}), nil
}

func (s *Server) importDossier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	source := req.GetString("source", "")
	switch {
	case content != "" && source != "":
		return mcp.NewToolResultError("pass either content or source, not both"), nil
	case source != "":
		data, err := s.fetcher.Fetch(ctx, source)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content = string(data)
	case content == "":
		return mcp.NewToolResultError("content or source is required"), nil
	}

	d, err := s.svc.Import(ctx, content, repository.ImportOptions{NewID: req.GetBool("new_id", false)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %s", d.ID)), nil
}

func (s *Server) getDossierContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DossierFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     DossierFormatContract,
		},
	}, nil
}
