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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultGeminiEndpoint 默认聊天端点
	DefaultGeminiEndpoint = "https://api.gemini.com/v2/chat"
	// DefaultGeminiModel 默认模型
	DefaultGeminiModel = "gemini-2.5-pro"
)

// HTTPConfig 推理服务的端点与凭证，由配置层注入
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// GeminiClient 通过 HTTP 调用 Gemini 聊天端点，请求带函数定义，响应体原样返回
type GeminiClient struct {
	provider string
	model    string
	apiKey   string
	endpoint string
	client   *resty.Client
}

// NewGeminiClient 创建新的 Gemini 客户端；重试由 RetryingClient 负责，此处不开启 resty 重试
func NewGeminiClient(cfg HTTPConfig) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGeminiEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	return &GeminiClient{
		provider: "gemini",
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client:   client,
	}
}

type chatRequest struct {
	Model        string            `json:"model"`
	Messages     []Message         `json:"messages"`
	FunctionCall string            `json:"function_call,omitempty"`
	Functions    []json.RawMessage `json:"functions,omitempty"`
}

// Invoke 发送请求并返回响应 JSON
func (c *GeminiClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	out, err := c.invoke(ctx, req)
	observe(c.provider, err)
	return out, err
}

func (c *GeminiClient) invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: req.Messages,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if len(req.Function) > 0 {
		body.FunctionCall = "auto"
		body.Functions = []json.RawMessage{req.Function}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, &TransportError{Provider: c.provider, Err: err}
	}

	if !response.IsSuccess() {
		return nil, &TransportError{
			Provider:   c.provider,
			StatusCode: response.StatusCode(),
			Body:       truncate(response.String()),
		}
	}

	raw := bytes.TrimSpace(response.Body())
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, &ParseError{Provider: c.provider, Body: truncate(string(raw))}
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return c.provider
}
