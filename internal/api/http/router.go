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

package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"agent-pipeline/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	audit      *middleware.AuditMiddleware
	jwt        *middleware.JWTAuth
	rateLimit  int
	metrics    bool
}

// NewRouter 创建路由器；默认开启 /metrics，不启用认证与限流
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
		metrics:    true,
	}
}

// SetJWT 启用 JWT，/api 下除健康检查与登录外的路由都需要 token
func (r *Router) SetJWT(jwt *middleware.JWTAuth) { r.jwt = jwt }

// SetAudit 启用审计日志
func (r *Router) SetAudit(audit *middleware.AuditMiddleware) { r.audit = audit }

// SetRateLimit 设置全局每秒请求上限，<= 0 关闭
func (r *Router) SetRateLimit(rps int) { r.rateLimit = rps }

// SetMetricsEnabled 控制是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enable bool) { r.metrics = enable }

// Build 创建 Hertz 实例并注册路由，addr 如 ":4000"
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)

	h.Use(r.middleware.Logger(), r.middleware.CORS())
	if r.rateLimit > 0 {
		h.Use(r.middleware.RateLimit(r.rateLimit))
	}

	h.GET("/health", r.handler.HealthCheck)
	if r.metrics {
		h.GET("/metrics", r.handler.Metrics)
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	if r.jwt != nil {
		api.POST("/auth/login", r.jwt.LoginHandler())
		api.GET("/auth/refresh", r.jwt.RefreshHandler())
	}

	var guarded []app.HandlerFunc
	if r.jwt != nil {
		guarded = append(guarded, r.jwt.MiddlewareFunc())
	}
	if r.audit != nil {
		guarded = append(guarded, r.audit.AuditAccess())
	}
	protected := api.Group("", guarded...)
	protected.POST("/pipeline", r.handler.RunPipeline)
	protected.GET("/prompts", r.handler.ListPrompts)
	protected.GET("/prompts/:name", r.handler.GetPrompt)
	protected.PUT("/prompts/:name", r.handler.PutPrompt)
	protected.DELETE("/prompts/:name", r.handler.DeletePrompt)

	return h
}
