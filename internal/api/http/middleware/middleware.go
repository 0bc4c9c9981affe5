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

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"agent-pipeline/pkg/metrics"
)

// Middleware 通用中间件集合
type Middleware struct {
	allowOrigins []string
}

// NewMiddleware 创建中间件集合；allowOrigins 为空时放行所有来源
func NewMiddleware(allowOrigins ...string) *Middleware {
	return &Middleware{allowOrigins: allowOrigins}
}

// CORS 跨域中间件，OPTIONS 预检直接返回 204
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		if allowed := m.allowOrigin(origin); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			// 浏览器拒绝 * 与 credentials 同时出现
			if allowed != "*" {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.allowOrigins) == 0 {
		return "*"
	}
	for _, o := range m.allowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// RateLimit 全局限流，超出 rps 返回 429；rps <= 0 时不限流
func (m *Middleware) RateLimit(rps int) app.HandlerFunc {
	if rps <= 0 {
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	return func(ctx context.Context, c *app.RequestContext) {
		if !limiter.Allow() {
			metrics.RateLimitWaitSeconds.WithLabelValues("api", "rejected").Observe(0)
			c.JSON(consts.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// Logger 访问日志
func (m *Middleware) Logger() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		hlog.CtxInfof(ctx, "%s %s %d %s", c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start))
	}
}
