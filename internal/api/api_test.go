package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/gridchat/internal/chat"
	"github.com/kalambet/gridchat/internal/sheet"
	"github.com/kalambet/gridchat/internal/storage"
	"github.com/kalambet/gridchat/internal/tools"
)

const testToken = "test-token"

// stubRunner satisfies TurnRunner with a canned turn.
type stubRunner struct {
	turn      chat.Turn
	err       error
	gotThread string
	gotText   string
}

func (s *stubRunner) RunTurn(_ context.Context, threadID, text string, sink chat.Sink) (chat.Turn, error) {
	s.gotThread, s.gotText = threadID, text
	if s.err != nil {
		return chat.Turn{}, s.err
	}
	if sink != nil {
		sink(chat.Event{Type: "assistant", ThreadID: s.turn.ThreadID, Text: s.turn.Reply})
	}
	return s.turn, nil
}

type testAPI struct {
	handler  http.Handler
	store    *storage.Store
	grid     *sheet.Store
	registry *tools.Registry
	runner   *stubRunner
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	grid, err := sheet.Open(filepath.Join(t.TempDir(), "workbook.json"))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := tools.New(tools.Deps{Store: db, Grid: grid, Log: log})
	runner := &stubRunner{}

	handler := NewHandler(Deps{
		Store:        db,
		Grid:         grid,
		Orchestrator: runner,
		Actions:      reg,
		Token:        testToken,
		Log:          log,
	})

	return &testAPI{handler: handler, store: db, grid: grid, registry: reg, runner: runner}
}

func (a *testAPI) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Authorization", "Bearer "+testToken)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealthNoAuth(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/threads", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	// Query-parameter token, for EventSource and websocket clients.
	req = httptest.NewRequest(http.MethodGet, "/threads?access_token="+testToken, nil)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want 200", rec.Code)
	}
}

func TestThreadLifecycle(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/threads", `{"title":"Budget"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created thread has no id: %v", created)
	}

	rec = a.do(t, http.MethodGet, "/threads", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	list := decodeBody(t, rec)
	threads, _ := list["threads"].([]any)
	if len(threads) != 1 {
		t.Errorf("listed %d threads, want 1", len(threads))
	}

	rec = a.do(t, http.MethodPatch, "/threads/"+id, `{"title":"Budget 2026"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if renamed := decodeBody(t, rec); renamed["title"] != "Budget 2026" {
		t.Errorf("renamed title = %v", renamed["title"])
	}

	if _, err := a.store.CreateMessage("m1", id, "user", "hello", ""); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	rec = a.do(t, http.MethodGet, "/threads/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	messages, _ := got["messages"].([]any)
	if len(messages) != 1 {
		t.Errorf("got %d messages, want 1", len(messages))
	}

	rec = a.do(t, http.MethodDelete, "/threads/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec = a.do(t, http.MethodGet, "/threads/"+id, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestRenameThreadNotFound(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPatch, "/threads/missing", `{"title":"x"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatJSON(t *testing.T) {
	a := newTestAPI(t)
	a.runner.turn = chat.Turn{ThreadID: "t1", Reply: "The total is 11000."}

	rec := a.do(t, http.MethodPost, "/chat", `{"threadId":"t1","message":"what's the total?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody(t, rec)
	if resp["threadId"] != "t1" || resp["reply"] != "The total is 11000." {
		t.Errorf("response = %v", resp)
	}
	if a.runner.gotThread != "t1" || a.runner.gotText != "what's the total?" {
		t.Errorf("runner got thread=%q text=%q", a.runner.gotThread, a.runner.gotText)
	}
}

func TestChatMissingMessage(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/chat", `{"threadId":"t1","message":"  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatUnknownThread(t *testing.T) {
	a := newTestAPI(t)
	a.runner.err = fmt.Errorf("resolving thread: %w", storage.ErrNotFound)

	rec := a.do(t, http.MethodPost, "/chat", `{"threadId":"missing","message":"hi"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatSSE(t *testing.T) {
	a := newTestAPI(t)
	a.runner.turn = chat.Turn{ThreadID: "t1", Reply: "done deal"}

	header := http.Header{}
	header.Set("Accept", "text/event-stream")
	rec := a.do(t, http.MethodPost, "/chat", `{"threadId":"t1","message":"hi"}`, header)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type":"assistant"`) {
		t.Errorf("missing assistant event in stream: %s", body)
	}
	if !strings.Contains(body, `"type":"done"`) || !strings.Contains(body, "done deal") {
		t.Errorf("missing done event in stream: %s", body)
	}
}

func TestSheetsEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/sheets", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sheets: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Sheet1") {
		t.Errorf("sheet list = %s", rec.Body.String())
	}

	rec = a.do(t, http.MethodGet, "/sheets/Sheet1/range?from=A1&to=D6", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("range: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var td sheet.TableData
	if err := json.Unmarshal(rec.Body.Bytes(), &td); err != nil {
		t.Fatalf("decoding table: %v", err)
	}
	if len(td.Headers) != 4 || td.Headers[0] != "Name" || len(td.Rows) != 5 {
		t.Errorf("table = %+v", td)
	}

	rec = a.do(t, http.MethodGet, "/sheets/Sheet1/cells/D2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cell: status = %d", rec.Code)
	}
	var cd sheet.CellData
	json.Unmarshal(rec.Body.Bytes(), &cd)
	if cd.Formula != "C2*0.1" {
		t.Errorf("cell = %+v", cd)
	}

	rec = a.do(t, http.MethodGet, "/sheets/Sheet1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sheet data: status = %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/sheets/Nope/range?from=A1&to=B2", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing sheet: status = %d, want 404", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/sheets/Sheet1/cells/notacell", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed cell: status = %d, want 400", rec.Code)
	}
}

func TestConfirmActionFlow(t *testing.T) {
	a := newTestAPI(t)

	result := a.registry.Dispatch(context.Background(), tools.ToolUpdateCell,
		json.RawMessage(`{"sheet":"Sheet1","cell":"A1","value":"Renamed","confirmed":false}`))
	d, ok := result.(tools.Deflected)
	if !ok {
		t.Fatalf("result = %#v, want Deflected", result)
	}

	rec := a.do(t, http.MethodPost, "/actions/"+d.PendingActionID+"/confirm", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["success"] != true {
		t.Errorf("confirm response = %v", resp)
	}

	cd, _ := a.grid.ReadCell("Sheet1", "A1")
	if cd.Value != "Renamed" {
		t.Errorf("value = %v, want Renamed", cd.Value)
	}

	// Single-use token.
	rec = a.do(t, http.MethodPost, "/actions/"+d.PendingActionID+"/confirm", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second confirm: status = %d, want 404", rec.Code)
	}
}

func TestRejectActionFlow(t *testing.T) {
	a := newTestAPI(t)

	result := a.registry.Dispatch(context.Background(), tools.ToolUpdateCell,
		json.RawMessage(`{"sheet":"Sheet1","cell":"A1","value":"Renamed","confirmed":false}`))
	d := result.(tools.Deflected)

	rec := a.do(t, http.MethodPost, "/actions/"+d.PendingActionID+"/reject", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: status = %d", rec.Code)
	}

	cd, _ := a.grid.ReadCell("Sheet1", "A1")
	if cd.Value != "Name" {
		t.Errorf("cell changed after rejection: %v", cd.Value)
	}

	rec = a.do(t, http.MethodPost, "/actions/"+d.PendingActionID+"/confirm", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("confirm after reject: status = %d, want 404", rec.Code)
	}
}

func TestConfirmUnknownAction(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/actions/missing/confirm", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
