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

	"agent-pipeline/pkg/metrics"
)

// RateLimitedClient 包装任意 ReasoningClient，在真实调用前后执行限流控制。
type RateLimitedClient struct {
	inner       ReasoningClient
	rateLimiter *RateLimiter
	provider    string
}

// NewRateLimitedClient 创建带限流的客户端。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner ReasoningClient, rateLimiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter, provider: ProviderName(inner)}
}

// Provider 返回底层 Client 的提供商名称。
func (c *RateLimitedClient) Provider() string { return c.provider }

// Invoke 实现 ReasoningClient，调用前等待许可，返回后释放。
func (c *RateLimitedClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	if c.rateLimiter != nil {
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		waited := time.Since(start)
		if waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", c.provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release()
	}
	return c.inner.Invoke(ctx, req)
}
