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
	"time"

	"github.com/go-resty/resty/v2"

	"agent-pipeline/internal/pipeline"
	"agent-pipeline/internal/storage/prompt"
)

// apiClient agent-pipeline HTTP API 的薄封装
type apiClient struct {
	rc *resty.Client
}

// apiError API 返回的错误体
type apiError struct {
	Status  int
	Message string `json:"error"`
	Code    string `json:"code"`
	Step    string `json:"step"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	return msg
}

func newAPIClient(baseURL, token string) *apiClient {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Minute).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &apiClient{rc: rc}
}

func (c *apiClient) check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	e := &apiError{Status: resp.StatusCode()}
	if jerr := json.Unmarshal(resp.Body(), e); jerr != nil || e.Message == "" {
		e.Message = resp.String()
	}
	return e
}

// Health GET /api/health
func (c *apiClient) Health() (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.check(c.rc.R().SetResult(&out).Get("/api/health"))
	return out, err
}

// RunPipeline POST /api/pipeline
func (c *apiClient) RunPipeline(steps []*pipeline.Step) ([]*pipeline.Step, error) {
	var out struct {
		Steps []*pipeline.Step `json:"steps"`
	}
	err := c.check(c.rc.R().
		SetBody(map[string]interface{}{"steps": steps}).
		SetResult(&out).
		Post("/api/pipeline"))
	return out.Steps, err
}

// ListPrompts GET /api/prompts
func (c *apiClient) ListPrompts() ([]*prompt.Prompt, error) {
	var out struct {
		Prompts []*prompt.Prompt `json:"prompts"`
	}
	err := c.check(c.rc.R().SetResult(&out).Get("/api/prompts"))
	return out.Prompts, err
}

// GetPrompt GET /api/prompts/:name
func (c *apiClient) GetPrompt(name string) (*prompt.Prompt, error) {
	var out prompt.Prompt
	err := c.check(c.rc.R().SetPathParam("name", name).SetResult(&out).Get("/api/prompts/{name}"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PutPrompt PUT /api/prompts/:name
func (c *apiClient) PutPrompt(name, systemPrompt string, schema json.RawMessage) (*prompt.Prompt, error) {
	body := map[string]interface{}{"system_prompt": systemPrompt}
	if len(schema) > 0 {
		body["function_schema"] = schema
	}
	var out prompt.Prompt
	err := c.check(c.rc.R().SetPathParam("name", name).SetBody(body).SetResult(&out).Put("/api/prompts/{name}"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePrompt DELETE /api/prompts/:name
func (c *apiClient) DeletePrompt(name string) error {
	resp, err := c.rc.R().SetPathParam("name", name).Delete("/api/prompts/{name}")
	if err == nil && resp.StatusCode() == http.StatusNoContent {
		return nil
	}
	return c.check(resp, err)
}
