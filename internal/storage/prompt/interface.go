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

// Package prompt 提供命名 prompt 配置（system prompt + 输出函数 schema）的存储。
// Pipeline 引擎只读 Get；Upsert/List/Delete 供管理接口使用。
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgerrors "agent-pipeline/pkg/errors"
)

// ErrNotFound prompt 不存在
var ErrNotFound = fmt.Errorf("prompt %w", pkgerrors.ErrNotFound)

// Prompt 一条命名的 prompt 配置；JSON 字段名与 prompts 表列名一致
type Prompt struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	SystemPrompt string          `json:"system_prompt"`
	OutputSchema json.RawMessage `json:"function_schema,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate 校验名称非空，schema（若有）须为 JSON 对象；JSON null 规范化为未设置
func (p *Prompt) Validate() error {
	if p == nil {
		return pkgerrors.InvalidArgf("prompt is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return pkgerrors.InvalidArgf("prompt name is required")
	}
	if trimmed := bytes.TrimSpace(p.OutputSchema); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.OutputSchema = nil
	}
	if len(p.OutputSchema) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(p.OutputSchema, &obj); err != nil {
			return pkgerrors.InvalidArgf("function_schema of %q must be a JSON object", p.Name)
		}
	}
	return nil
}

// Clone 深拷贝，存储实现借此避免调用方修改内部状态
func (p *Prompt) Clone() *Prompt {
	if p == nil {
		return nil
	}
	out := *p
	if p.OutputSchema != nil {
		out.OutputSchema = append(json.RawMessage(nil), p.OutputSchema...)
	}
	return &out
}

// Store prompt 存储接口
type Store interface {
	// Get 按名称读取，不存在时返回 ErrNotFound
	Get(ctx context.Context, name string) (*Prompt, error)
	// Upsert 按名称插入或覆盖，回填 ID 与时间戳
	Upsert(ctx context.Context, p *Prompt) error
	// List 按名称排序列出全部 prompt
	List(ctx context.Context) ([]*Prompt, error)
	// Delete 按名称删除，不存在时返回 ErrNotFound
	Delete(ctx context.Context, name string) error
	// Close 释放连接
	Close() error
}
