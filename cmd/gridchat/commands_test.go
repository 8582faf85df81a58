package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSendChat_PlainReply(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"threadId":"t1","reply":"The total is 11000.","toolResults":[]}`,
	})

	reply, pending, err := sendChat(ctx, ts.client(), "", "What is the total?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply != "The total is 11000." {
		t.Errorf("reply = %q", reply)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none", pending)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["message"] != "What is the total?" {
		t.Errorf("body.message = %v", body["message"])
	}
	if _, ok := body["threadId"]; ok {
		t.Error("threadId should be omitted when starting a new thread")
	}
}

func TestSendChat_ThreadIDForwarded(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"threadId":"t1","reply":"ok","toolResults":[]}`,
	})

	if _, _, err := sendChat(ctx, ts.client(), "t1", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["threadId"] != "t1" {
		t.Errorf("body.threadId = %v, want t1", body["threadId"])
	}
}

func TestSendChat_CollectsPendingProposals(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{
			"threadId": "t1",
			"reply": "I need your approval for that.",
			"toolResults": [
				{"callId":"c1","toolName":"readCell","result":{"success":true,"message":"Cell D4 contains 500"}},
				{"callId":"c2","toolName":"updateCell","result":{
					"success": false,
					"requiresConfirmation": true,
					"pendingActionId": "pa-42",
					"action": "update",
					"description": "Update cell Sheet1!D4 to 200"
				}}
			]
		}`,
	})

	_, pending, err := sendChat(ctx, ts.client(), "", "set D4 to 200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("pending = %v, want exactly one proposal", pending)
	}
	if pending[0].ID != "pa-42" {
		t.Errorf("pending ID = %q, want pa-42", pending[0].ID)
	}
	if pending[0].Description != "Update cell Sheet1!D4 to 200" {
		t.Errorf("description = %q", pending[0].Description)
	}
}

func TestSendChat_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, _, err := sendChat(ctx, ts.client(), "", "hi")
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
}

func TestDecodeJSON_ErrorBody(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v map[string]any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404 body")
	}
	if got := err.Error(); !bytes.Contains([]byte(got), []byte("404")) {
		t.Errorf("error = %q, want status code mentioned", got)
	}
}
