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
	"fmt"
	"log/slog"
	"time"

	"agent-pipeline/internal/storage/cache"
	"agent-pipeline/pkg/config"
)

const cacheKeyPrefix = "agentpipe:prompt:"

// NewStore 根据配置创建 prompt 存储，按需包一层缓存
func NewStore(ctx context.Context, cfg config.PromptsConfig, logger *slog.Logger) (Store, error) {
	var store Store
	switch cfg.Type {
	case "", "memory":
		store = NewMemoryStore()
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("prompts.type=postgres 时 prompts.dsn 必填")
		}
		s, err := NewPostgresStore(ctx, cfg.DSN, cfg.Table, cfg.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("连接 prompt 数据库失败: %w", err)
		}
		store = s
	case "supabase":
		s, err := NewSupabaseStore(SupabaseConfig{URL: cfg.URL, Key: cfg.Key, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("不支持的 prompt 存储类型: %s", cfg.Type)
	}

	switch cfg.Cache.Type {
	case "", "none":
		return store, nil
	default:
		c, err := cache.NewCache(cfg.Cache, cacheKeyPrefix)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		ttl := config.ParseDuration(cfg.Cache.TTL, 5*time.Minute)
		return NewCachedStore(store, c, ttl, logger), nil
	}
}
