package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/gateway"
	"github.com/antariksh/spacebot/internal/session"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *session.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := session.Open(":memory:", log)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mgr, err := session.NewManager(t.TempDir(), nil, log)
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	if _, err := mgr.Login("Asha", "asha@example.in", ""); err != nil {
		t.Fatalf("login: %v", err)
	}

	return MCPDeps{
		Sessions: mgr,
		Store:    store,
		Gateway:  &fakeGateway{lines: []string{"test answer"}},
	}, store
}

func seedConversation(t *testing.T, deps MCPDeps, convID, question string) {
	t.Helper()
	id, ok := deps.Sessions.Current()
	if !ok {
		t.Fatal("no identity")
	}
	conv := chat.Conversation{ID: convID}
	conv.AppendGreeting()
	conv.Append(chat.SenderUser, question, false)
	conv.Append(chat.SenderBot, "an answer", false)
	if err := deps.Store.SaveCurrent(id, conv); err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Gateway = &fakeGateway{lines: []string{"First line.", "Second line."}}
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"query": "tell me about mangalyaan",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "First line.\nSecond line." {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestMCPTool_Ask_MissingQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestMCPTool_Ask_GatewayFailure(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Gateway = &fakeGateway{askErr: &gateway.Error{Detail: "service returned status 500"}}
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"query": "hello",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCPTool_ListChats(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	seedConversation(t, deps, "c1", "what is pslv?")
	seedConversation(t, deps, "c2", "what is gslv?")
	handler := mcpListChats(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_chats", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var summaries []struct {
		ID       string   `json:"id"`
		Messages int      `json:"messages"`
		Preview  []string `json:"preview"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &summaries); err != nil {
		t.Fatalf("parsing summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(summaries))
	}
	if summaries[0].ID != "c2" || summaries[1].ID != "c1" {
		t.Fatalf("expected newest first, got %s then %s", summaries[0].ID, summaries[1].ID)
	}
	if summaries[0].Messages != 3 {
		t.Fatalf("expected 3 messages, got %d", summaries[0].Messages)
	}
}

func TestMCPTool_ListChats_NotLoggedIn(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if err := deps.Sessions.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	handler := mcpListChats(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_chats", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when not logged in")
	}
}

func TestMCPTool_ViewChat(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	seedConversation(t, deps, "c1", "what is pslv?")
	handler := mcpViewChat(deps)

	result, err := handler(context.Background(), makeCallToolRequest("view_chat", map[string]interface{}{
		"id": "c1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var conv chat.Conversation
	if err := json.Unmarshal([]byte(toolText(t, result)), &conv); err != nil {
		t.Fatalf("parsing conversation: %v", err)
	}
	if conv.ID != "c1" || len(conv.Messages) != 3 {
		t.Fatalf("unexpected conversation: id=%s messages=%d", conv.ID, len(conv.Messages))
	}
}

func TestMCPTool_ViewChat_NotFound(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpViewChat(deps)

	result, err := handler(context.Background(), makeCallToolRequest("view_chat", map[string]interface{}{
		"id": "missing",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing conversation")
	}
}

func TestMCPTool_DeleteChat(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedConversation(t, deps, "c1", "what is pslv?")
	handler := mcpDeleteChat(deps)

	result, err := handler(context.Background(), makeCallToolRequest("delete_chat", map[string]interface{}{
		"id": "c1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	id, _ := deps.Sessions.Current()
	convs, err := store.ListConversations(id)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected empty history, got %d", len(convs))
	}
}
