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

	"golang.org/x/time/rate"
)

// LimitConfig 推理调用限流配置，字段为 0 表示该维度不限
type LimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 每分钟请求数
	MaxConcurrent     int     `mapstructure:"max_concurrent"`      // 最大并发请求数
}

// RateLimiter 请求速率 + 并发双重限制
type RateLimiter struct {
	requestLimiter *rate.Limiter // RPS 限流器
	semaphore      chan struct{} // 并发控制
	config         LimitConfig
}

// NewRateLimiter 创建限流器；两个维度都为 0 时返回 nil
func NewRateLimiter(config LimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 && config.MaxConcurrent <= 0 {
		return nil
	}
	l := &RateLimiter{config: config}

	if config.RequestsPerMinute > 0 {
		rps := config.RequestsPerMinute / 60.0
		burst := int(rps * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if config.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, config.MaxConcurrent)
	}
	return l
}

// Wait 等待获取执行许可（阻塞直到可以执行或 ctx 结束）。成功后须调用 Release
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return fmt.Errorf("concurrency limit wait failed: %w", ctx.Err())
		}
	}
	return nil
}

// Release 释放并发 slot（在调用完成后调用）
func (l *RateLimiter) Release() {
	if l.semaphore == nil {
		return
	}
	select {
	case <-l.semaphore:
	default:
	}
}

// Stats 获取限流统计信息
func (l *RateLimiter) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"requests_per_minute": l.config.RequestsPerMinute,
		"max_concurrent":      l.config.MaxConcurrent,
	}
	if l.semaphore != nil {
		stats["current_concurrent"] = len(l.semaphore)
		stats["available_slots"] = cap(l.semaphore) - len(l.semaphore)
	}
	return stats
}
