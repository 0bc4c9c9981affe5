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

package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseStore 通过 Supabase PostgREST 接口读写 prompts 表
type SupabaseStore struct {
	client *resty.Client
	path   string
}

// SupabaseConfig Supabase 连接参数
type SupabaseConfig struct {
	URL     string // 项目地址，如 https://xyz.supabase.co
	Key     string // anon 或 service role key
	Table   string
	Timeout time.Duration
}

// NewSupabaseStore 创建 SupabaseStore；不做连通性检查
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if cfg.Table == "" {
		cfg.Table = "prompts"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.Key).
		SetHeader("Accept", "application/json")
	if cfg.Key != "" {
		client.SetAuthToken(cfg.Key)
	}
	return &SupabaseStore{client: client, path: "/rest/v1/" + cfg.Table}, nil
}

func (s *SupabaseStore) Close() error { return nil }

// supabaseRow 写入时只提交业务列，id 与时间戳由数据库生成
type supabaseRow struct {
	Name         string          `json:"name"`
	SystemPrompt string          `json:"system_prompt"`
	OutputSchema json.RawMessage `json:"function_schema"`
}

func (s *SupabaseStore) Get(ctx context.Context, name string) (*Prompt, error) {
	var rows []*Prompt
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select": "*",
			"name":   "eq." + name,
			"limit":  "1",
		}).
		SetResult(&rows).
		Get(s.path)
	if err := checkResponse("get", resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return normalize(rows[0]), nil
}

func (s *SupabaseStore) Upsert(ctx context.Context, p *Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := supabaseRow{Name: p.Name, SystemPrompt: p.SystemPrompt, OutputSchema: p.OutputSchema}
	if len(row.OutputSchema) == 0 {
		row.OutputSchema = json.RawMessage("null")
	}
	var rows []*Prompt
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "resolution=merge-duplicates,return=representation").
		SetQueryParam("on_conflict", "name").
		SetBody([]supabaseRow{row}).
		SetResult(&rows).
		Post(s.path)
	if err := checkResponse("upsert", resp, err); err != nil {
		return err
	}
	if len(rows) > 0 {
		p.ID, p.CreatedAt, p.UpdatedAt = rows[0].ID, rows[0].CreatedAt, rows[0].UpdatedAt
	}
	return nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]*Prompt, error) {
	var rows []*Prompt
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"select": "*", "order": "name.asc"}).
		SetResult(&rows).
		Get(s.path)
	if err := checkResponse("list", resp, err); err != nil {
		return nil, err
	}
	for _, p := range rows {
		normalize(p)
	}
	return rows, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, name string) error {
	var rows []*Prompt
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("name", "eq."+name).
		SetResult(&rows).
		Delete(s.path)
	if err := checkResponse("delete", resp, err); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("supabase %s: %w", op, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("supabase %s: status %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

// normalize 将 JSON null 的 function_schema 视为未设置
func normalize(p *Prompt) *Prompt {
	if p != nil && strings.TrimSpace(string(p.OutputSchema)) == "null" {
		p.OutputSchema = nil
	}
	return p
}
