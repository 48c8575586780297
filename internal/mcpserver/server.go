// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio document tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/lifecycle"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
)

const contractURI = "folio://document-format"

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp      *server.MCPServer
	docs     *docservice.Service
	machine  *lifecycle.Machine
	restorer *restore.Engine
}

// New creates a new MCP server with all Folio tools registered.
func New(docs *docservice.Service, machine *lifecycle.Machine, restorer *restore.Engine) *Server {
	s := &Server{docs: docs, machine: machine, restorer: restorer}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through titles and bodies of posts and pages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List posts and pages, optionally filtered by type, state or tag."),
		mcp.WithString("type", mcp.Description("post or page"), mcp.Enum("post", "page")),
		mcp.WithString("state", mcp.Description("draft, published or active"), mcp.Enum("draft", "published", "active")),
		mcp.WithString("tag", mcp.Description("Only documents carrying this tag")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document as stored on disk, front matter included."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document ID, e.g. post/hello-world")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a post (as a draft) or a page. Read the format contract "+
			"first via get_document_contract or the "+contractURI+" resource."),
		mcp.WithString("type", mcp.Required(), mcp.Enum("post", "page")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("body", mcp.Description("Markdown body without front matter")),
		mcp.WithString("slug", mcp.Description("Optional slug; derived from the title when empty")),
	), s.createDocument)

	for _, action := range []models.Action{models.ActionPublish, models.ActionUnpublish, models.ActionDiscard} {
		s.mcp.AddTool(mcp.NewTool(string(action)+"_document",
			mcp.WithDescription(actionDescriptions[action]),
			mcp.WithString("id", mcp.Required(), mcp.Description("Document ID, e.g. post/hello-world")),
		), s.transition(action))
	}

	s.mcp.AddTool(mcp.NewTool("list_recycle",
		mcp.WithDescription("List discarded documents waiting in the recycle bin."),
		mcp.WithString("type", mcp.Description("post or page"), mcp.Enum("post", "page")),
		mcp.WithString("query", mcp.Description("Filter by title or slug")),
	), s.listRecycle)

	s.mcp.AddTool(mcp.NewTool("restore_documents",
		mcp.WithDescription("Restore recycle entries. Each entry succeeds or fails on its own."),
		mcp.WithString("entry_ids", mcp.Required(), mcp.Description("Comma-separated recycle entry IDs")),
		mcp.WithString("strategy", mcp.Required(), mcp.Enum("keepBoth", "overwrite", "rename"),
			mcp.Description("What to do when the original name is taken")),
		mcp.WithString("new_name", mcp.Description("Target file name for the rename strategy")),
	), s.restoreDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the Folio document format contract. "+
			"Call this before creating documents to learn the layout and lifecycle rules."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Format Contract",
			mcp.WithResourceDescription("Layout and lifecycle rules for Folio documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

var actionDescriptions = map[models.Action]string{
	models.ActionPublish:   "Publish a draft post, moving it from _drafts to _posts.",
	models.ActionUnpublish: "Turn a published post back into a draft.",
	models.ActionDiscard:   "Move a post or page to the recycle bin.",
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.docs.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.DocumentFilter{
		Type:  models.DocType(req.GetString("type", "")),
		State: models.State(req.GetString("state", "")),
		Tag:   req.GetString("tag", ""),
	}
	items, _, err := s.docs.ListDocuments(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", it.ID, it.State, it.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", id, err)), nil
	}
	data, err := frontmatter.Render(doc.Title, doc.Meta, doc.Body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.CreateDocument(ctx, models.NewDocument{
		Type:  models.DocType(typ),
		Title: title,
		Slug:  req.GetString("slug", ""),
		Body:  req.GetString("body", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", doc.ID, doc.Path)), nil
}

func (s *Server) transition(action models.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		doc, err := s.docs.GetDocument(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s %s: %v", action, id, err)), nil
		}
		next, err := s.machine.Apply(ctx, doc, action)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if next.IsDiscarded {
			return mcp.NewToolResultText(fmt.Sprintf("discarded: %s (entry %s)", next.ID, next.RecycleEntryID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s: %s (%s)", next.State(), next.ID, next.Path)), nil
	}
}

func (s *Server) listRecycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing, err := s.docs.ListRecycleEntries(ctx, models.RecycleFilter{
		Type:  models.DocType(req.GetString("type", "")),
		Query: req.GetString("query", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(listing.Entries) == 0 {
		return mcp.NewToolResultText("recycle bin is empty"), nil
	}
	return jsonResult(listing), nil
}

func (s *Server) restoreDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("entry_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := req.RequireString("strategy")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r := restore.Request{Strategy: restore.Strategy(strategy), NewName: req.GetString("new_name", "")}
	if err := r.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("entry_ids is empty"), nil
	}

	var lines []string
	failed := 0
	for _, res := range s.restorer.RestoreBatch(ctx, ids, r) {
		if res.Err != nil {
			failed++
			lines = append(lines, fmt.Sprintf("%s: error: %v", res.EntryID, res.Err))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: restored as %s", res.EntryID, res.Document.ID))
	}
	text := strings.Join(lines, "\n")
	if failed == len(ids) {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
