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
	"errors"
	"log/slog"
	"time"

	"agent-pipeline/internal/storage/cache"
	"agent-pipeline/pkg/metrics"
)

// CachedStore 读穿缓存：Get 先查缓存，未命中再查底层并回填；写操作使对应键失效。
// 不存在的 prompt 不缓存。
type CachedStore struct {
	inner  Store
	cache  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore 包装 inner；logger 为 nil 时使用 slog.Default
func NewCachedStore(inner Store, c cache.Store, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedStore) Get(ctx context.Context, name string) (*Prompt, error) {
	var p Prompt
	err := s.cache.Get(ctx, name, &p)
	if err == nil {
		metrics.PromptCacheTotal.WithLabelValues("hit").Inc()
		return &p, nil
	}
	metrics.PromptCacheTotal.WithLabelValues("miss").Inc()
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("prompt 缓存读取失败，回退到存储", "prompt", name, "error", err)
	}

	got, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, name, got, s.ttl); err != nil {
		s.logger.Warn("prompt 缓存写入失败", "prompt", name, "error", err)
	}
	return got, nil
}

func (s *CachedStore) Upsert(ctx context.Context, p *Prompt) error {
	if err := s.inner.Upsert(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p.Name)
	return nil
}

func (s *CachedStore) List(ctx context.Context) ([]*Prompt, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) Delete(ctx context.Context, name string) error {
	err := s.inner.Delete(ctx, name)
	s.invalidate(ctx, name)
	return err
}

func (s *CachedStore) invalidate(ctx context.Context, name string) {
	if err := s.cache.Delete(ctx, name); err != nil {
		s.logger.Warn("prompt 缓存失效失败", "prompt", name, "error", err)
	}
}

// Close 关闭缓存与底层存储
func (s *CachedStore) Close() error {
	return errors.Join(s.cache.Close(), s.inner.Close())
}
