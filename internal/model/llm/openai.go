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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	goopenai "github.com/meguminnnnnnnnn/go-openai"
)

// DefaultOpenAIModel openai provider 未配置模型时使用
const DefaultOpenAIModel = "gpt-4o-mini"

// ToolCallingClient 基于 Eino ToolCallingChatModel：函数 schema 绑定为工具，
// 输出取工具调用参数；模型未调用工具时取消息内容（须为合法 JSON）。
type ToolCallingClient struct {
	provider string
	cm       model.ToolCallingChatModel
}

// NewOpenAIClient 创建 OpenAI 兼容的 ToolCallingClient；Endpoint 作为 BaseURL
func NewOpenAIClient(ctx context.Context, cfg HTTPConfig) (*ToolCallingClient, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return NewToolCallingClient("openai", cm), nil
}

// NewToolCallingClient 用任意 ToolCallingChatModel 构造客户端
func NewToolCallingClient(provider string, cm model.ToolCallingChatModel) *ToolCallingClient {
	return &ToolCallingClient{provider: provider, cm: cm}
}

// Provider 返回提供商名称
func (c *ToolCallingClient) Provider() string { return c.provider }

// Invoke 实现 ReasoningClient
func (c *ToolCallingClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	out, err := c.invoke(ctx, req)
	observe(c.provider, err)
	return out, err
}

func (c *ToolCallingClient) invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	cm := c.cm
	if len(req.Function) > 0 {
		info, err := ToolInfoFromFunction(req.Function)
		if err != nil {
			return nil, &TransportError{Provider: c.provider, Err: fmt.Errorf("invalid function schema: %w", err), Permanent: true}
		}
		bound, err := c.cm.WithTools([]*schema.ToolInfo{info})
		if err != nil {
			return nil, &TransportError{Provider: c.provider, Err: fmt.Errorf("bind tools: %w", err), Permanent: true}
		}
		cm = bound
	}

	msgs := make([]*schema.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}

	var opts []model.Option
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}
	resp, err := cm.Generate(ctx, msgs, opts...)
	if err != nil {
		te := &TransportError{Provider: c.provider, Err: err}
		te.StatusCode, te.Body = statusFromError(err)
		return nil, te
	}
	if resp == nil {
		return nil, &ParseError{Provider: c.provider, Body: ""}
	}
	for _, tc := range resp.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			continue
		}
		if !json.Valid([]byte(args)) {
			return nil, &ParseError{Provider: c.provider, Body: truncate(args)}
		}
		return json.RawMessage(args), nil
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" || !json.Valid([]byte(content)) {
		return nil, &ParseError{Provider: c.provider, Body: truncate(content)}
	}
	return json.RawMessage(content), nil
}

// statusFromError 取出 go-openai 错误链中的 HTTP 状态码；未收到响应时为 0
func statusFromError(err error) (int, string) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, truncate(apiErr.Message)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, truncate(string(reqErr.Body))
	}
	return 0, ""
}

// functionDef OpenAI 风格的函数定义
type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolInfoFromFunction 将函数定义转换为 Eino ToolInfo。
// 既接受 {name, description, parameters}，也接受直接给出的对象 JSON Schema。
func ToolInfoFromFunction(raw json.RawMessage) (*schema.ToolInfo, error) {
	var def functionDef
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	params := def.Parameters
	if len(params) == 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		if _, ok := fields["properties"]; ok {
			params = raw
		}
	}
	name := def.Name
	if name == "" {
		name = "structured_output"
	}
	info := &schema.ToolInfo{Name: name, Desc: def.Description}
	if len(params) > 0 {
		var js jsonschema.Schema
		if err := json.Unmarshal(params, &js); err != nil {
			return nil, fmt.Errorf("parameters: %w", err)
		}
		info.ParamsOneOf = schema.NewParamsOneOfByJSONSchema(&js)
	}
	return info, nil
}
