// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"arrange-orchestrator/internal/agent"
	"arrange-orchestrator/internal/agent/planner"
	"arrange-orchestrator/internal/agent/tools"
	"arrange-orchestrator/internal/api/http/middleware"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/pkg/config"
)

func buildRouterForTest(t *testing.T) *server.Hertz {
	t.Helper()
	orch := agent.New(session.NewManager(session.NewMemoryStore(), 0), tools.NewBuiltinRegistry(), planner.NewRulePlanner(), agent.Options{})
	r := NewRouter(NewHandler(orch), middleware.NewMiddleware(config.CORSConfig{Enable: true}))
	return r.Build(":0")
}

func perform(s *server.Hertz, method, path string, body []byte) (int, []byte) {
	w := ut.PerformRequest(s.Engine, method, path, &ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	return resp.StatusCode(), resp.Body()
}

func decode(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func createSession(t *testing.T, s *server.Hertz) string {
	t.Helper()
	status, body := perform(s, "POST", "/api/sessions", nil)
	if status != 201 {
		t.Fatalf("create session status = %d, body %s", status, body)
	}
	var info struct {
		ID string `json:"session_id"`
	}
	decode(t, body, &info)
	if info.ID == "" {
		t.Fatalf("empty session id: %s", body)
	}
	return info.ID
}

func TestHealthCheck(t *testing.T) {
	s := buildRouterForTest(t)
	status, body := perform(s, "GET", "/api/health", nil)
	if status != 200 {
		t.Fatalf("health status = %d", status)
	}
	if !bytes.Contains(body, []byte(`"status":"ok"`)) || !bytes.Contains(body, []byte(`"planner":"rule"`)) {
		t.Errorf("health body: %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := buildRouterForTest(t)
	status, body := perform(s, "GET", "/metrics", nil)
	if status != 200 {
		t.Fatalf("metrics status = %d", status)
	}
	if !bytes.Contains(body, []byte("orchestrator_")) {
		t.Errorf("metrics body missing orchestrator metrics: %.200s", body)
	}
}

func TestToolsAndCapabilities(t *testing.T) {
	s := buildRouterForTest(t)
	status, body := perform(s, "GET", "/api/tools", nil)
	if status != 200 || !bytes.Contains(body, []byte(`"write_notes"`)) {
		t.Fatalf("tools: %d %s", status, body)
	}
	status, body = perform(s, "GET", "/api/capabilities", nil)
	if status != 200 || !bytes.Contains(body, []byte(`"create_track"`)) {
		t.Fatalf("capabilities: %d %s", status, body)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	s := buildRouterForTest(t)
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/context", "/api/sessions/nope/snapshots"} {
		if status, body := perform(s, "GET", path, nil); status != 404 {
			t.Errorf("GET %s status = %d, want 404 (%s)", path, status, body)
		}
	}
}

func TestIntentFlow(t *testing.T) {
	s := buildRouterForTest(t)
	id := createSession(t, s)

	status, body := perform(s, "POST", "/api/sessions/"+id+"/intents", []byte(`{"message":"make a techno beat"}`))
	if status != 200 {
		t.Fatalf("intent status = %d, body %s", status, body)
	}
	var res struct {
		Success        bool   `json:"success"`
		BeforeSnapshot string `json:"before_snapshot"`
		AfterSnapshot  string `json:"after_snapshot"`
	}
	decode(t, body, &res)
	if !res.Success || res.BeforeSnapshot == "" || res.AfterSnapshot == "" {
		t.Fatalf("intent result: %s", body)
	}

	status, body = perform(s, "GET", "/api/sessions/"+id+"/project", nil)
	if status != 200 || !bytes.Contains(body, []byte(`"Drums"`)) {
		t.Fatalf("project: %d %s", status, body)
	}

	status, body = perform(s, "GET", "/api/sessions/"+id+"/diff?from="+res.BeforeSnapshot+"&to="+res.AfterSnapshot, nil)
	if status != 200 || !bytes.Contains(body, []byte(`"tracks_added":["Drums"]`)) {
		t.Fatalf("diff: %d %s", status, body)
	}

	status, body = perform(s, "POST", "/api/sessions/"+id+"/snapshots/"+res.BeforeSnapshot+"/revert", nil)
	if status != 200 {
		t.Fatalf("revert: %d %s", status, body)
	}
	_, body = perform(s, "GET", "/api/sessions/"+id+"/project", nil)
	if bytes.Contains(body, []byte(`"Drums"`)) {
		t.Fatalf("project still has Drums after revert: %s", body)
	}
}

func TestIntentValidation(t *testing.T) {
	s := buildRouterForTest(t)
	id := createSession(t, s)
	if status, _ := perform(s, "POST", "/api/sessions/"+id+"/intents", []byte(`{}`)); status != 400 {
		t.Errorf("missing message status = %d, want 400", status)
	}
	if status, _ := perform(s, "POST", "/api/sessions/"+id+"/role", []byte(`{"role":"conductor"}`)); status != 400 {
		t.Errorf("unknown role status = %d, want 400", status)
	}
	if status, _ := perform(s, "GET", "/api/sessions/"+id+"/diff?from=x", nil); status != 400 {
		t.Errorf("diff without to status = %d, want 400", status)
	}
	if status, _ := perform(s, "GET", "/api/sessions/"+id+"/snapshots/snap-missing", nil); status != 404 {
		t.Errorf("unknown snapshot status = %d, want 404", status)
	}
}

func TestSequenceAndNotes(t *testing.T) {
	s := buildRouterForTest(t)
	id := createSession(t, s)

	seq := []byte(`{"optimize":true,"tool_sequence":[{"tool":"write_notes","params":{"track_name":"Bass","notes":[{"start_ticks":0,"key":36}]}}]}`)
	status, body := perform(s, "POST", "/api/sessions/"+id+"/sequences", seq)
	if status != 200 || !bytes.Contains(body, []byte(`"success":true`)) {
		t.Fatalf("sequence: %d %s", status, body)
	}

	if status, body := perform(s, "POST", "/api/sessions/"+id+"/role", []byte(`{"role":"rhythm"}`)); status != 200 {
		t.Fatalf("role: %d %s", status, body)
	}
	status, body = perform(s, "POST", "/api/sessions/"+id+"/notes", []byte(`{"notes":[{"start_ticks":0,"key":36}]}`))
	if status != 200 || !bytes.Contains(body, []byte(`"success":true`)) {
		t.Fatalf("notes: %d %s", status, body)
	}
	_, body = perform(s, "GET", "/api/sessions/"+id+"/context", nil)
	if !bytes.Contains(body, []byte(`"Drums"`)) || !bytes.Contains(body, []byte(`"Bass"`)) {
		t.Fatalf("context tracks: %s", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := buildRouterForTest(t)
	id := createSession(t, s)
	if status, _ := perform(s, "POST", "/api/sessions/"+id+"/reset", nil); status != 200 {
		t.Fatalf("reset status = %d", status)
	}
	if status, _ := perform(s, "POST", "/api/sessions/"+id+"/cancel", nil); status != 200 {
		t.Fatalf("cancel status = %d", status)
	}
	_, body := perform(s, "GET", "/api/sessions", nil)
	if !bytes.Contains(body, []byte(id)) {
		t.Fatalf("list missing session: %s", body)
	}
	if status, _ := perform(s, "DELETE", "/api/sessions/"+id, nil); status != 200 {
		t.Fatalf("delete status = %d", status)
	}
	if status, _ := perform(s, "GET", "/api/sessions/"+id, nil); status != 404 {
		t.Fatalf("deleted session status = %d, want 404", status)
	}
}
