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
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
)

// AuditMiddleware 审计 pipeline 与 prompt 相关操作
type AuditMiddleware struct {
	logger *slog.Logger
}

// AuditLog 一条审计记录
type AuditLog struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Success      bool
	Status       int
	DurationMS   int64
}

// NewAuditMiddleware 创建审计中间件，logger 为 nil 时使用 slog.Default
func NewAuditMiddleware(logger *slog.Logger) *AuditMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditMiddleware{logger: logger}
}

// AuditAccess 请求结束后记录审计日志；无法识别的路由不记录
func (a *AuditMiddleware) AuditAccess() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		entry := AuditLog{
			UserID:     IdentityFrom(c),
			Action:     determineAction(string(c.Method()), string(c.Path())),
			Status:     c.Response.StatusCode(),
			Success:    c.Response.StatusCode() < 400,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if entry.Action == "unknown" {
			return
		}
		entry.ResourceType, entry.ResourceID = extractResource(string(c.Path()))
		a.logger.InfoContext(ctx, "audit",
			"user_id", entry.UserID,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"success", entry.Success,
			"status", entry.Status,
			"duration_ms", entry.DurationMS,
		)
	}
}

// determineAction 根据 HTTP 方法和路径确定操作类型
func determineAction(method string, path string) string {
	path = strings.TrimSuffix(path, "/")
	switch {
	case path == "/api/pipeline" && method == "POST":
		return "run_pipeline"
	case path == "/api/prompts" && method == "GET":
		return "list_prompts"
	case strings.HasPrefix(path, "/api/prompts/"):
		switch method {
		case "GET":
			return "view_prompt"
		case "PUT":
			return "upsert_prompt"
		case "DELETE":
			return "delete_prompt"
		}
	}
	return "unknown"
}

// extractResource 从路径提取资源类型和 ID
func extractResource(path string) (resourceType string, resourceID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 {
		switch parts[1] {
		case "pipeline":
			return "pipeline", ""
		case "prompts":
			if len(parts) >= 3 {
				return "prompt", parts[2]
			}
			return "prompt", ""
		}
	}
	return "unknown", ""
}
