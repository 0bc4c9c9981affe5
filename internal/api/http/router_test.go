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
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pipeline/internal/api/http/middleware"
	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/pipeline"
	"agent-pipeline/internal/storage/prompt"
)

// echoClient 按 system prompt 返回固定输出，可注入错误
type echoClient struct {
	mu    sync.Mutex
	calls int
	out   map[string]string
	err   map[string]error
}

func (c *echoClient) Invoke(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	sys := req.Messages[0].Content
	if err, ok := c.err[sys]; ok {
		return nil, err
	}
	if out, ok := c.out[sys]; ok {
		return json.RawMessage(out), nil
	}
	return json.RawMessage(`{}`), nil
}

func seededStore(t *testing.T) *prompt.MemoryStore {
	t.Helper()
	store := prompt.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, &prompt.Prompt{
		Name:         "literature-summarizer",
		SystemPrompt: "summarize",
		OutputSchema: json.RawMessage(`{"name":"summary","parameters":{"type":"object"}}`),
	}))
	require.NoError(t, store.Upsert(ctx, &prompt.Prompt{
		Name:         "result-analyzer",
		SystemPrompt: "analyze",
	}))
	return store
}

func buildServer(t *testing.T, client llm.ReasoningClient, opts ...HandlerOption) (*server.Hertz, *prompt.MemoryStore) {
	t.Helper()
	store := seededStore(t)
	h := NewHandler(store, client, opts...)
	r := NewRouter(h, middleware.NewMiddleware())
	return r.Build(":0"), store
}

func perform(s *server.Hertz, method, path string, body []byte, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine, method, path, &ut.Body{Body: bytes.NewReader(body), Len: len(body)}, headers...)
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out), string(w.Result().Body()))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := buildServer(t, &echoClient{})
	for _, path := range []string{"/health", "/api/health"} {
		w := perform(s, "GET", path, nil)
		require.Equal(t, 200, w.Result().StatusCode(), path)
		body := decode(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.NotZero(t, body["timestamp"])
	}
}

func TestRunPipeline_Success(t *testing.T) {
	client := &echoClient{out: map[string]string{
		"summarize": `{"summary":"three papers"}`,
		"analyze":   `{"verdict":"significant"}`,
	}}
	s, _ := buildServer(t, client)

	body := []byte(`{"steps":[
		{"name":"Literature Review","promptName":"literature-summarizer","input":{"topic":"CRISPR"}},
		{"name":"Analysis","promptName":"result-analyzer","input":{"p":0.01}}
	]}`)
	w := perform(s, "POST", "/api/pipeline", body)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	assert.NotEmpty(t, w.Result().Header.Get("X-Run-ID"))

	var resp struct {
		Steps []pipeline.Step `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &resp))
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, "Literature Review", resp.Steps[0].Name)
	assert.JSONEq(t, `{"summary":"three papers"}`, string(resp.Steps[0].Output))
	assert.JSONEq(t, `{"verdict":"significant"}`, string(resp.Steps[1].Output))
	assert.Equal(t, 2, client.calls)
}

func TestRunPipeline_EmptySteps(t *testing.T) {
	client := &echoClient{}
	s, _ := buildServer(t, client)

	w := perform(s, "POST", "/api/pipeline", []byte(`{"steps":[]}`))
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"steps":[]}`, string(w.Result().Body()))
	assert.Zero(t, client.calls)
}

func TestRunPipeline_BadRequest(t *testing.T) {
	s, _ := buildServer(t, &echoClient{})
	cases := map[string]string{
		"malformed json":     `{"steps":`,
		"missing steps":      `{}`,
		"null step":          `{"steps":[null]}`,
		"missing promptName": `{"steps":[{"name":"a"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := perform(s, "POST", "/api/pipeline", []byte(body))
			require.Equal(t, 400, w.Result().StatusCode())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestRunPipeline_PromptNotFound(t *testing.T) {
	client := &echoClient{out: map[string]string{"summarize": `{"ok":true}`}}
	s, _ := buildServer(t, client)

	body := []byte(`{"steps":[
		{"name":"Literature Review","promptName":"literature-summarizer"},
		{"name":"Missing","promptName":"nope"},
		{"name":"Analysis","promptName":"result-analyzer"}
	]}`)
	w := perform(s, "POST", "/api/pipeline", body)
	require.Equal(t, 500, w.Result().StatusCode())

	var resp runErrorResponse
	require.NoError(t, json.Unmarshal(w.Result().Body(), &resp))
	assert.Equal(t, pipeline.CodePromptNotFound, resp.Code)
	assert.Equal(t, "Missing", resp.Step)
	assert.Contains(t, resp.Error, "nope")
	require.Len(t, resp.Steps, 3)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Steps[0].Output))
	assert.Nil(t, resp.Steps[1].Output)
	assert.Nil(t, resp.Steps[2].Output)
	assert.Equal(t, 1, client.calls)
}

func TestRunPipeline_ReasoningFailure(t *testing.T) {
	client := &echoClient{err: map[string]error{
		"summarize": &llm.TransportError{Provider: "gemini", StatusCode: 502, Err: errors.New("bad gateway")},
	}}
	s, _ := buildServer(t, client)

	w := perform(s, "POST", "/api/pipeline", []byte(`{"steps":[{"name":"Literature Review","promptName":"literature-summarizer"}]}`))
	require.Equal(t, 500, w.Result().StatusCode())
	body := decode(t, w)
	assert.Equal(t, pipeline.CodeReasoningService, body["code"])
	assert.Equal(t, "Literature Review", body["step"])
}

func TestRunPipeline_SchemaMismatch(t *testing.T) {
	client := &echoClient{out: map[string]string{"summarize": `"not an object"`}}
	s, _ := buildServer(t, client, WithValidator(pipeline.NewSchemaValidator()))

	w := perform(s, "POST", "/api/pipeline", []byte(`{"steps":[{"name":"Literature Review","promptName":"literature-summarizer"}]}`))
	require.Equal(t, 500, w.Result().StatusCode())
	assert.Equal(t, pipeline.CodeSchemaMismatch, decode(t, w)["code"])
}

func TestPrompts_CRUD(t *testing.T) {
	s, store := buildServer(t, &echoClient{})

	w := perform(s, "GET", "/api/prompts", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = perform(s, "GET", "/api/prompts/result-analyzer", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "analyze", decode(t, w)["system_prompt"])

	w = perform(s, "GET", "/api/prompts/nope", nil)
	assert.Equal(t, 404, w.Result().StatusCode())

	put := []byte(`{"system_prompt":"plan experiments","function_schema":{"name":"plan","parameters":{"type":"object"}}}`)
	w = perform(s, "PUT", "/api/prompts/planner", put)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	got, err := store.Get(context.Background(), "planner")
	require.NoError(t, err)
	assert.Equal(t, "plan experiments", got.SystemPrompt)
	assert.JSONEq(t, `{"name":"plan","parameters":{"type":"object"}}`, string(got.OutputSchema))

	w = perform(s, "PUT", "/api/prompts/planner", []byte(`{"system_prompt":"x","function_schema":[1,2]}`))
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(s, "DELETE", "/api/prompts/planner", nil)
	assert.Equal(t, 204, w.Result().StatusCode())
	w = perform(s, "DELETE", "/api/prompts/planner", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestMetricsRoute(t *testing.T) {
	s, _ := buildServer(t, &echoClient{})
	perform(s, "POST", "/api/pipeline", []byte(`{"steps":[{"name":"a","promptName":"result-analyzer"}]}`))

	w := perform(s, "GET", "/metrics", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "agentpipe_run_total")

	h := NewHandler(prompt.NewMemoryStore(), &echoClient{})
	r := NewRouter(h, middleware.NewMiddleware())
	r.SetMetricsEnabled(false)
	w = perform(r.Build(":0"), "GET", "/metrics", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestRouter_JWTGuardsAPI(t *testing.T) {
	store := seededStore(t)
	h := NewHandler(store, &echoClient{})
	r := NewRouter(h, middleware.NewMiddleware())
	jwtAuth, err := middleware.NewJWTAuth([]byte("test-key"), 0, 0, map[string]string{"alice": "secret"})
	require.NoError(t, err)
	r.SetJWT(jwtAuth)
	s := r.Build(":0")

	w := perform(s, "GET", "/api/prompts", nil)
	assert.Equal(t, 401, w.Result().StatusCode())

	w = perform(s, "GET", "/api/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())

	w = perform(s, "POST", "/api/auth/login", []byte(`{"username":"alice","password":"wrong"}`),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	assert.Equal(t, 401, w.Result().StatusCode())

	w = perform(s, "POST", "/api/auth/login", []byte(`{"username":"alice","password":"secret"}`),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	w = perform(s, "GET", "/api/prompts", nil, ut.Header{Key: "Authorization", Value: "Bearer " + token})
	assert.Equal(t, 200, w.Result().StatusCode())
}
