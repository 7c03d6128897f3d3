package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/testutil"
)

func pong() llm.Generator { return testutil.Reply(`{"pong": true}`) }

// testEnv sets up a seeded session and router for testing. A non-empty
// authToken switches the router to token mode.
func testEnv(t *testing.T, authToken string) (*blockservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, pong(), nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, gen llm.Generator, sseHandler http.Handler) (*blockservice.Service, http.Handler) {
	t.Helper()

	svc := testutil.Session(t, gen)
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestListBlocks(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/blocks", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[BlockListResponse](t, w)
	if resp.Total != 5 || resp.Blocks[0].ID != "root" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateAndGetBlock(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/blocks", map[string]string{"type": "dispatch"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[BlockDetail](t, w)
	if created.ParentID != "root" || !strings.Contains(created.Content, "float.dispatch") {
		t.Errorf("created = %+v", created.Block)
	}

	w = do(t, router, http.MethodGet, "/blocks/"+created.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+created.Version+`"` {
		t.Errorf("ETag = %q, want version %q", etag, created.Version)
	}
}

func TestCreateBlock_LeafChildrenIsArray(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/blocks", map[string]string{"type": "text"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"children":[]`) {
		t.Errorf("body = %s, want \"children\":[]", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/blocks", nil, nil)
	if strings.Contains(w.Body.String(), `"children":null`) {
		t.Errorf("list body has null children: %s", w.Body.String())
	}
}

func TestCreateBlock_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/blocks", map[string]string{"type": "poem"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid type = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/blocks", map[string]string{}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing type = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/blocks", map[string]string{"type": "text", "parentId": "ghost"}, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown parent = %d, want 404", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/blocks/b1", nil, nil)
	etag := w.Header().Get("ETag")

	w = do(t, router, http.MethodPut, "/blocks/b1", map[string]string{"content": "v2"}, map[string]string{"If-Match": `"deadbeef"`})
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/blocks/b1", map[string]string{"content": "v2"}, map[string]string{"If-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[BlockDetail](t, w); got.Content != "v2" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/blocks/b1", map[string]string{"content": ""}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("clear content = %d, want 200", w.Code)
	}
}

func TestUpdateBlock_Errors(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPut, "/blocks/b1", map[string]string{"content": strings.Repeat("x", 501)}, nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("too long = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/blocks/b1", map[string]string{}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/blocks/ghost", map[string]string{"content": "x"}, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing block = %d, want 404", w.Code)
	}
}

func TestGetBlock_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/blocks/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing block = %d, want 404", w.Code)
	}
}

func TestExecuteBlock_Async(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/blocks/b2/execute", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("execute = %d, body = %s", w.Code, w.Body.String())
	}
	svc.Wait()

	got := decode[BlockDetail](t, do(t, router, http.MethodGet, "/blocks/b2", nil, nil))
	res, ok := got.Result.(map[string]any)
	if !ok || res["pong"] != true || got.LastRun == nil || got.Error != "" {
		t.Errorf("block = %+v", got.Block)
	}

	runs := decode[RunListResponse](t, do(t, router, http.MethodGet, "/blocks/b2/runs", nil, nil))
	if len(runs.Runs) != 1 || runs.Runs[0].Outcome != "done" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestExecuteBlock_Wait(t *testing.T) {
	_, router := testEnvFull(t, false, "", llm.Unavailable{}, nil)
	w := do(t, router, http.MethodPost, "/blocks/b3/execute?wait=true", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("execute = %d", w.Code)
	}
	if got := decode[BlockDetail](t, w); got.Error != "CORE_CONNECTION_FAILED" || got.Result != nil {
		t.Errorf("block = %+v", got.Block)
	}
}

func TestExecuteBlock_Rejections(t *testing.T) {
	release := make(chan struct{})
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		<-release
		return "{}", nil
	})
	svc, router := testEnvFull(t, false, "", gen, nil)
	defer svc.Wait()
	defer close(release)

	if w := do(t, router, http.MethodPost, "/blocks/b1/execute", nil, nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("text block = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/blocks/ghost/execute", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing block = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/blocks/b4/execute", nil, nil); w.Code != http.StatusAccepted {
		t.Fatalf("first = %d, want 202", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/blocks/b4/execute", nil, nil); w.Code != http.StatusConflict {
		t.Errorf("in flight = %d, want 409", w.Code)
	}
}

func TestTreeEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	resp := decode[TreeResponse](t, do(t, router, http.MethodGet, "/tree", nil, nil))
	if len(resp.Entries) != 5 || resp.Entries[2].ID != "b2" || resp.Entries[2].Depth != 1 {
		t.Errorf("entries = %+v", resp.Entries)
	}

	sub := decode[TreeResponse](t, do(t, router, http.MethodGet, "/tree?from=b3", nil, nil))
	if len(sub.Entries) != 1 || sub.Entries[0].Depth != 0 {
		t.Errorf("subtree = %+v", sub.Entries)
	}

	if w := do(t, router, http.MethodGet, "/tree?from=ghost", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown start = %d, want 404", w.Code)
	}

	w := do(t, router, http.MethodGet, "/tree?format=text", nil, nil)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") || !strings.Contains(w.Body.String(), "b4") {
		t.Errorf("text tree = %q", w.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	resp := decode[SearchResponse](t, do(t, router, http.MethodGet, "/search?q=DB", nil, nil))
	if len(resp.Results) != 2 || resp.Results[0].ID != "b1" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=%20%20", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("blank search = %d, want 200", w.Code)
	}
	if resp := decode[SearchResponse](t, w); resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %#v, want empty list", resp.Results)
	}
}

func TestNodesAndInject(t *testing.T) {
	_, router := testEnv(t, "")

	nodes := decode[NodeListResponse](t, do(t, router, http.MethodGet, "/nodes", nil, nil))
	if len(nodes.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(nodes.Nodes))
	}

	w := do(t, router, http.MethodPost, "/nodes/output-dispatch/inject", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("inject = %d", w.Code)
	}
	injected := decode[BlockDetail](t, w)
	if !strings.HasSuffix(injected.Content, "[marker::{io::write}]") {
		t.Errorf("content = %q", injected.Content)
	}

	root := decode[BlockDetail](t, do(t, router, http.MethodGet, "/blocks/root", nil, nil))
	if root.Children[0] != injected.ID {
		t.Errorf("root children = %v", root.Children)
	}

	if w := do(t, router, http.MethodPost, "/nodes/ghost/inject", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown node = %d, want 404", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	g := decode[GraphResponse](t, do(t, router, http.MethodGet, "/graph", nil, nil))
	if g.Stats.Nodes != 4 || len(g.Edges) != 3 || len(g.Markers) == 0 {
		t.Errorf("graph = %+v", g.Stats)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	stats := decode[map[string]any](t, do(t, router, http.MethodGet, "/stats", nil, nil))
	if stats["blocks"] != 5.0 {
		t.Errorf("stats = %v", stats)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/blocks", map[string]string{"type": "text"}, map[string]string{"Authorization": "Bearer secret123"})
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/blocks", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/blocks", nil, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/blocks", nil, nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", pong(), sseStub)

	if w := do(t, router, http.MethodGet, "/events", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvFull(t, false, "", pong(), sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", pong(), sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
