package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/antariksh/spacebot/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Manager
	Store    *session.Store
	Gateway  Gateway
}

// NewMCPServer creates an MCP server with the spacebot tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"spacebot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("spacebot — ISRO assistant gateway with per-user saved chat history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Send a question to the ISRO assistant and return its answer."),
			mcp.WithString("query", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_chats",
			mcp.WithDescription("List saved conversations for the logged-in user, newest first."),
		),
		mcpListChats(deps),
	)

	s.AddTool(
		mcp.NewTool("view_chat",
			mcp.WithDescription("Return the full transcript of a saved conversation."),
			mcp.WithString("id", mcp.Description("Conversation ID"), mcp.Required()),
		),
		mcpViewChat(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_chat",
			mcp.WithDescription("Delete a saved conversation by ID."),
			mcp.WithString("id", mcp.Description("Conversation ID"), mcp.Required()),
		),
		mcpDeleteChat(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		if strings.TrimSpace(query) == "" {
			return mcpError("query is required"), nil
		}

		lines, err := deps.Gateway.Ask(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		return mcpText(strings.Join(lines, "\n")), nil
	}
}

func mcpListChats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := deps.Sessions.Current()
		if !ok {
			return mcpError("not logged in"), nil
		}

		convs, err := deps.Store.ListConversations(id)
		if err != nil {
			return mcpError(fmt.Sprintf("listing chats failed: %v", err)), nil
		}

		type chatSummary struct {
			ID       string   `json:"id"`
			SavedAt  string   `json:"saved_at"`
			Messages int      `json:"messages"`
			Preview  []string `json:"preview"`
		}

		summaries := make([]chatSummary, len(convs))
		for i, c := range convs {
			summaries[i] = chatSummary{
				ID:       c.ID,
				SavedAt:  c.Timestamp.Format(time.RFC3339),
				Messages: len(c.Messages),
				Preview:  c.Preview(),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summaries: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpViewChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		convID, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		id, ok := deps.Sessions.Current()
		if !ok {
			return mcpError("not logged in"), nil
		}

		conv, err := deps.Store.GetConversation(id, convID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return mcpError(fmt.Sprintf("no conversation with id %s", convID)), nil
			}
			return mcpError(fmt.Sprintf("loading chat failed: %v", err)), nil
		}

		b, err := json.Marshal(conv)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal conversation: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpDeleteChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		convID, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		id, ok := deps.Sessions.Current()
		if !ok {
			return mcpError("not logged in"), nil
		}

		if err := deps.Store.DeleteConversation(id, convID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return mcpError(fmt.Sprintf("no conversation with id %s", convID)), nil
			}
			return mcpError(fmt.Sprintf("deleting chat failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Deleted conversation %s", convID)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
