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
)

// Role 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request 一次推理调用：消息列表 + 作为输出约束的函数 schema
type Request struct {
	// Model 为空时使用客户端配置的模型
	Model    string
	Messages []Message
	// Function 函数/工具定义（name、description、parameters），为空则不附带
	Function json.RawMessage
}

// NewRequest 构造 system + user 两条消息的请求
func NewRequest(systemPrompt, userContent string, function json.RawMessage) Request {
	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userContent},
		},
		Function: function,
	}
}

// ReasoningClient 推理服务客户端。Invoke 阻塞直到远端返回，
// 成功时返回远端的 JSON 响应；失败时返回 *TransportError 或 *ParseError（或 ctx 错误）。
type ReasoningClient interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

// Named 可选接口，返回提供商名称，用于指标与日志
type Named interface {
	Provider() string
}

// ProviderName 返回客户端的提供商名称，未实现 Named 时为 "unknown"
func ProviderName(c ReasoningClient) string {
	if n, ok := c.(Named); ok {
		return n.Provider()
	}
	return "unknown"
}
