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
	"fmt"
)

// Config 构造推理客户端所需的全部参数
type Config struct {
	Provider string // gemini | openai
	HTTP     HTTPConfig
	Retry    RetryConfig
	Limit    LimitConfig
}

// NewClient 按 provider 创建客户端，并依次包装限流与重试：
// 重试在外层，每次尝试都重新经过限流。
func NewClient(ctx context.Context, cfg Config) (ReasoningClient, error) {
	var base ReasoningClient
	switch cfg.Provider {
	case "", "gemini":
		base = NewGeminiClient(cfg.HTTP)
	case "openai":
		c, err := NewOpenAIClient(ctx, cfg.HTTP)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Provider)
	}

	var client ReasoningClient = base
	if limiter := NewRateLimiter(cfg.Limit); limiter != nil {
		client = NewRateLimitedClient(client, limiter)
	}
	if cfg.Retry.MaxAttempts > 1 {
		client = NewRetryingClient(client, cfg.Retry)
	}
	return client, nil
}
