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
package planner

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/model/llm"
	"arrange-orchestrator/pkg/config"
)

// mockLLMClient 记录 system 提示词，按顺序返回预设回复
type mockLLMClient struct {
	lastSystemPrompt string
	lastUserPrompt   string
	replies          []string
	errs             []error
	calls            int
}

func (m *mockLLMClient) ChatWithContext(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			m.lastSystemPrompt = msg.Content
		case "user":
			m.lastUserPrompt = msg.Content
		}
	}
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", fmt.Errorf("no reply")
}

func (m *mockLLMClient) Model() string           { return "mock" }
func (m *mockLLMClient) Provider() string        { return "mock" }
func (m *mockLLMClient) SetModel(model string)   {}
func (m *mockLLMClient) SetAPIKey(apiKey string) {}

const orchestrationReply = "```json\n" + `{
  "analysis": {"musical_style": "deep house", "tempo": 124},
  "orchestration_plan": [
    {"step": 1, "tool": "set_tempo", "params": {"bpm": 124}, "reasoning": "house tempo"},
    {"step": 2, "tool": "create_track", "params": {"type": "instrument", "name": "Drums"}, "reasoning": "drums first"}
  ],
  "expected_outcome": "a house groove"
}` + "\n```"

func newTestPlanner(client llm.Client) (*LLMPlanner, *[]time.Duration) {
	p := NewLLMPlanner(client, LLMOptions{MaxRetries: 3, Backoff: time.Second})
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func TestLLMPlanner_OrchestrationPlan(t *testing.T) {
	mock := &mockLLMClient{replies: []string{orchestrationReply}}
	p, _ := newTestPlanner(mock)
	resp, err := p.Plan(context.Background(), Request{
		Goal:        "make a deep house beat",
		ToolsJSON:   []byte(`[{"name":"set_tempo"}]`),
		Instruments: []string{"kicker"},
		Context:     map[string]any{"errorCount": 0},
	})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	assert.True(t, resp.AIGenerated)
	assert.Equal(t, []string{"set_tempo", "create_track"}, resp.ToolSequence.Names())
	assert.Equal(t, "house tempo", resp.ToolSequence[0].Reasoning)
	assert.Equal(t, "deep house", resp.MusicalStyle())
	assert.Equal(t, "a house groove", resp.ExpectedOutcome)

	assert.Contains(t, mock.lastSystemPrompt, "set_tempo")
	assert.Contains(t, mock.lastSystemPrompt, "kicker")
	assert.True(t, strings.Contains(mock.lastUserPrompt, "deep house beat"))
	assert.Contains(t, mock.lastUserPrompt, "errorCount")
}

func TestLLMPlanner_BareToolSequence(t *testing.T) {
	mock := &mockLLMClient{replies: []string{`{"tool_sequence":[{"tool":"read_project","params":{}}]}`}}
	p, _ := newTestPlanner(mock)
	resp, err := p.Plan(context.Background(), Request{Goal: "what is in my project"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read_project"}, resp.ToolSequence.Names())
}

func TestLLMPlanner_RetriesWithProgressiveBackoff(t *testing.T) {
	mock := &mockLLMClient{
		errs:    []error{fmt.Errorf("503"), nil, nil},
		replies: []string{"", "not json at all", orchestrationReply},
	}
	p, waits := newTestPlanner(mock)
	resp, err := p.Plan(context.Background(), Request{Goal: "house"})
	require.NoError(t, err)
	assert.False(t, resp.Failed())
	assert.Equal(t, 3, mock.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestLLMPlanner_FinalFailure(t *testing.T) {
	mock := &mockLLMClient{errs: []error{fmt.Errorf("a"), fmt.Errorf("b"), fmt.Errorf("c")}}
	p, waits := newTestPlanner(mock)
	resp, err := p.Plan(context.Background(), Request{Goal: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Failed())
	assert.Equal(t, "AI orchestration failed", resp.Error)
	assert.Equal(t, "Unable to process request with AI system. Check API key configuration.", resp.Message)
	assert.Len(t, *waits, 2)
}

func TestLLMPlanner_NilClient(t *testing.T) {
	p := NewLLMPlanner(nil, LLMOptions{})
	resp, err := p.Plan(context.Background(), Request{Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, ErrorOrchestrationFailed, resp.Error)
}

func TestLLMPlanner_ContextCancelled(t *testing.T) {
	mock := &mockLLMClient{errs: []error{fmt.Errorf("a"), fmt.Errorf("b"), fmt.Errorf("c")}}
	p := NewLLMPlanner(mock, LLMOptions{Backoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := p.Plan(ctx, Request{Goal: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseReply_Invalid(t *testing.T) {
	_, err := ParseReply(`{"analysis":{}}`)
	assert.Error(t, err)
	_, err = ParseReply(`garbage`)
	assert.Error(t, err)
}

func TestNew_FromConfig(t *testing.T) {
	p, err := New(config.PlannerConfig{Type: "rule"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rule", p.Name())

	p, err = New(config.PlannerConfig{Type: "llm"}, nil)
	require.NoError(t, err)
	resp, err := p.Plan(context.Background(), Request{Goal: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Failed())

	p, err = New(config.PlannerConfig{Type: "llm", APIKey: "sk-test", RequestsPerMinute: 60, MaxConcurrent: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "llm", p.Name())
	lp, ok := p.(*LLMPlanner)
	require.True(t, ok)
	_, limited := lp.client.(*llm.RateLimitedClient)
	assert.True(t, limited, "requests_per_minute wraps the client with a limiter")

	_, err = New(config.PlannerConfig{Type: "oracle"}, nil)
	assert.Error(t, err)
}
