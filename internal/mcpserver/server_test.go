package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/muesli/termenv"

	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/testutil"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func testServer(t *testing.T, gen llm.Generator) *Server {
	t.Helper()
	return New(testutil.Session(t, gen), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_blocks":
		result, err = srv.listBlocks(ctx, req)
	case "read_tree":
		result, err = srv.readTree(ctx, req)
	case "create_block":
		result, err = srv.createBlock(ctx, req)
	case "update_block":
		result, err = srv.updateBlock(ctx, req)
	case "inject_node":
		result, err = srv.injectNode(ctx, req)
	case "execute_block":
		result, err = srv.executeBlock(ctx, req)
	case "search_blocks":
		result, err = srv.searchBlocks(ctx, req)
	case "list_nodes":
		result, err = srv.listNodes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func unavailable() llm.Generator { return llm.Unavailable{} }

func TestListBlocks(t *testing.T) {
	srv := testServer(t, unavailable())
	var out []blockSummary
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_blocks", nil))), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 5 || out[0].ID != "root" {
		t.Errorf("blocks = %+v", out)
	}
}

func TestCreateAndUpdateBlock(t *testing.T) {
	srv := testServer(t, unavailable())

	r := callTool(t, srv, "create_block", map[string]any{"type": "text", "parent_id": "b1"})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId"`
	}
	_ = json.Unmarshal([]byte(resultText(r)), &created)
	if created.ParentID != "b1" || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	r = callTool(t, srv, "update_block", map[string]any{"id": created.ID, "content": "hello [[Output Dispatch]]"})
	if r.IsError || !strings.HasPrefix(resultText(r), "updated: "+created.ID) {
		t.Errorf("update result = %q", resultText(r))
	}

	r = callTool(t, srv, "update_block", map[string]any{"id": created.ID, "content": "x", "version": "stale"})
	if !r.IsError {
		t.Error("expected version conflict")
	}
}

func TestCreateBlock_InvalidType(t *testing.T) {
	srv := testServer(t, unavailable())
	r := callTool(t, srv, "create_block", map[string]any{"type": "poem"})
	if !r.IsError {
		t.Error("expected error for invalid type")
	}
}

func TestUpdateBlock_TooLong(t *testing.T) {
	srv := testServer(t, unavailable())
	r := callTool(t, srv, "update_block", map[string]any{"id": "b1", "content": strings.Repeat("a", 501)})
	if !r.IsError || !strings.Contains(resultText(r), "rejected") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestReadTree(t *testing.T) {
	srv := testServer(t, unavailable())
	text := resultText(callTool(t, srv, "read_tree", map[string]any{}))
	if !strings.Contains(text, "root") || !strings.Contains(text, "  ? b2") {
		t.Errorf("tree = %q", text)
	}

	r := callTool(t, srv, "read_tree", map[string]any{"from": "missing"})
	if !r.IsError {
		t.Error("expected error for unknown start")
	}
}

func TestInjectNode(t *testing.T) {
	srv := testServer(t, unavailable())
	r := callTool(t, srv, "inject_node", map[string]any{"node_id": "init-event"})
	if r.IsError || !strings.Contains(resultText(r), "[[Initial Input Event]]") {
		t.Errorf("inject result = %q", resultText(r))
	}
	r = callTool(t, srv, "inject_node", map[string]any{"node_id": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown node")
	}
}

func TestExecuteBlock_MissingCredential(t *testing.T) {
	srv := testServer(t, unavailable())
	r := callTool(t, srv, "execute_block", map[string]any{"id": "b2"})
	if r.IsError {
		t.Fatalf("execute failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "CORE_CONNECTION_FAILED") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestExecuteBlock_Result(t *testing.T) {
	srv := testServer(t, testutil.Reply(`{"pong": true}`))
	var out struct {
		Result map[string]any `json:"result"`
		Error  string         `json:"error"`
	}
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "execute_block", map[string]any{"id": "b3"}))), &out)
	if out.Result["pong"] != true || out.Error != "" {
		t.Errorf("out = %+v", out)
	}
}

func TestExecuteBlock_TextRejected(t *testing.T) {
	srv := testServer(t, unavailable())
	if r := callTool(t, srv, "execute_block", map[string]any{"id": "b1"}); !r.IsError {
		t.Error("expected error for text block")
	}
}

func TestSearchBlocks(t *testing.T) {
	srv := testServer(t, unavailable())
	var out []blockSummary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "search_blocks", map[string]any{"query": "db"}))), &out)
	if len(out) != 2 || out[0].ID != "b1" {
		t.Errorf("hits = %+v", out)
	}
}

func TestListNodes(t *testing.T) {
	srv := testServer(t, unavailable())
	text := resultText(callTool(t, srv, "list_nodes", nil))
	if !strings.Contains(text, `"reduxMapping"`) {
		t.Error("extra node fields should be preserved")
	}
}

func TestQueryGuideResource(t *testing.T) {
	srv := testServer(t, unavailable())
	res, err := srv.readQueryGuide(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := res[0].(mcp.TextResourceContents)
	if !ok || tc.URI != QueryGuideURI || !strings.Contains(tc.Text, "PARSE_FAILURE") {
		t.Errorf("resource = %+v", res[0])
	}
}
