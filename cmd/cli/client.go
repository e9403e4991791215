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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("ARRANGE_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// apiClient 编排服务 HTTP 客户端
type apiClient struct {
	r *resty.Client
}

func newClient(baseURL string) *apiClient {
	return &apiClient{r: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120 * time.Second).
		SetHeader("Content-Type", "application/json")}
}

// apiError 非 2xx 响应
type apiError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// do 发送请求并把 JSON 响应解到 map
func (c *apiClient) do(method, path string, body any) (map[string]any, error) {
	var out map[string]any
	req := c.r.R().SetResult(&out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &apiError{Method: method, Path: path, Status: resp.StatusCode(), Body: resp.String()}
	}
	return out, nil
}

func (c *apiClient) health() (map[string]any, error) {
	return c.do(http.MethodGet, "/api/health", nil)
}

func (c *apiClient) createSession() (string, error) {
	out, err := c.do(http.MethodPost, "/api/sessions", nil)
	if err != nil {
		return "", err
	}
	id, _ := out["session_id"].(string)
	return id, nil
}

func (c *apiClient) listSessions() (map[string]any, error) {
	return c.do(http.MethodGet, "/api/sessions", nil)
}

func (c *apiClient) resetSession(id string) (map[string]any, error) {
	return c.do(http.MethodPost, "/api/sessions/"+id+"/reset", nil)
}

func (c *apiClient) deleteSession(id string) (map[string]any, error) {
	return c.do(http.MethodDelete, "/api/sessions/"+id, nil)
}

func (c *apiClient) say(id, message string) (map[string]any, error) {
	return c.do(http.MethodPost, "/api/sessions/"+id+"/intents", map[string]string{"message": message})
}

func (c *apiClient) run(id string, sequence json.RawMessage, optimize bool) (map[string]any, error) {
	body := map[string]any{"tool_sequence": sequence, "optimize": optimize}
	return c.do(http.MethodPost, "/api/sessions/"+id+"/sequences", body)
}

func (c *apiClient) cancel(id string) (map[string]any, error) {
	return c.do(http.MethodPost, "/api/sessions/"+id+"/cancel", nil)
}

func (c *apiClient) context(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/api/sessions/"+id+"/context", nil)
}

func (c *apiClient) snapshots(id string) (map[string]any, error) {
	return c.do(http.MethodGet, "/api/sessions/"+id+"/snapshots", nil)
}

func (c *apiClient) capture(id, label string) (map[string]any, error) {
	return c.do(http.MethodPost, "/api/sessions/"+id+"/snapshots", map[string]string{"label": label})
}

func (c *apiClient) snapshot(id, snapID string) (map[string]any, error) {
	return c.do(http.MethodGet, "/api/sessions/"+id+"/snapshots/"+snapID, nil)
}

func (c *apiClient) diff(id, from, to string) (map[string]any, error) {
	q := url.Values{"from": {from}, "to": {to}}
	return c.do(http.MethodGet, "/api/sessions/"+id+"/diff?"+q.Encode(), nil)
}

func (c *apiClient) revert(id, snapID string) (map[string]any, error) {
	return c.do(http.MethodPost, "/api/sessions/"+id+"/snapshots/"+snapID+"/revert", nil)
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
