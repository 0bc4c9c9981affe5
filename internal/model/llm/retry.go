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
	"time"

	"github.com/cenkalti/backoff/v4"

	"agent-pipeline/pkg/metrics"
)

// RetryConfig 推理调用重试策略
type RetryConfig struct {
	MaxAttempts     int // 含首次；<=1 不重试
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryingClient 对瞬时 TransportError 做指数退避重试，其余错误直接返回
type RetryingClient struct {
	inner    ReasoningClient
	cfg      RetryConfig
	provider string
}

// NewRetryingClient 包装 inner；零值间隔使用 500ms / 5s
func NewRetryingClient(inner ReasoningClient, cfg RetryConfig) *RetryingClient {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	return &RetryingClient{inner: inner, cfg: cfg, provider: ProviderName(inner)}
}

// Provider 返回底层 Client 的提供商名称
func (c *RetryingClient) Provider() string { return c.provider }

// Invoke 实现 ReasoningClient
func (c *RetryingClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	if c.cfg.MaxAttempts <= 1 {
		return c.inner.Invoke(ctx, req)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	var out json.RawMessage
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.ReasoningRetriesTotal.WithLabelValues(c.provider).Inc()
		}
		res, err := c.inner.Invoke(ctx, req)
		if err != nil {
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}
