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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/pipeline"
	"agent-pipeline/internal/storage/prompt"
	pkgerrors "agent-pipeline/pkg/errors"
	"agent-pipeline/pkg/metrics"
)

// Handler HTTP 处理器；每个 pipeline 请求构造一个新的 Engine
type Handler struct {
	prompts   prompt.Store
	client    llm.ReasoningClient
	validator *pipeline.SchemaValidator
	timeout   time.Duration
	logger    *slog.Logger
}

// HandlerOption Handler 选项
type HandlerOption func(*Handler)

// WithValidator 开启输出 schema 校验
func WithValidator(v *pipeline.SchemaValidator) HandlerOption {
	return func(h *Handler) { h.validator = v }
}

// WithRunTimeout 限定单次 pipeline 运行时长，0 表示不限
func WithRunTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.timeout = d }
}

// WithLogger 设置引擎日志
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler 创建 HTTP 处理器
func NewHandler(prompts prompt.Store, client llm.ReasoningClient, opts ...HandlerOption) *Handler {
	h := &Handler{
		prompts: prompts,
		client:  client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// runRequest POST /api/pipeline 请求体
type runRequest struct {
	Steps []*pipeline.Step `json:"steps"`
}

// runErrorResponse pipeline 失败时的响应体
type runErrorResponse struct {
	Error string           `json:"error"`
	Code  string           `json:"code"`
	Step  string           `json:"step,omitempty"`
	Steps []*pipeline.Step `json:"steps"`
}

// promptRequest PUT /api/prompts/:name 请求体
type promptRequest struct {
	SystemPrompt   string          `json:"system_prompt"`
	FunctionSchema json.RawMessage `json:"function_schema"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// RunPipeline 顺序执行请求中的步骤并返回带输出的步骤列表
func (h *Handler) RunPipeline(ctx context.Context, c *app.RequestContext) {
	var req runRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := pipeline.ValidateSteps(req.Steps); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	runCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	runID := string(c.GetHeader("X-Request-ID"))
	if runID == "" {
		runID = uuid.NewString()
	}
	c.Header("X-Run-ID", runID)

	engine := pipeline.NewEngine(req.Steps, h.prompts, h.client,
		pipeline.WithRunID(runID),
		pipeline.WithLogger(h.logger),
		pipeline.WithValidator(h.validator),
	)
	steps, err := engine.Run(runCtx)
	if err != nil {
		hlog.CtxErrorf(ctx, "pipeline run %s failed: %v", runID, err)
		resp := runErrorResponse{
			Error: err.Error(),
			Code:  pipeline.ErrorCode(err),
			Steps: req.Steps,
		}
		resp.Step, _ = pipeline.FailedStep(err)
		c.JSON(consts.StatusInternalServerError, resp)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"steps": steps})
}

// ListPrompts 列出全部 prompt
func (h *Handler) ListPrompts(ctx context.Context, c *app.RequestContext) {
	list, err := h.prompts.List(ctx)
	if err != nil {
		hlog.CtxErrorf(ctx, "list prompts: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*prompt.Prompt{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"prompts": list, "total": len(list)})
}

// GetPrompt 按名称读取 prompt
func (h *Handler) GetPrompt(ctx context.Context, c *app.RequestContext) {
	name := c.Param("name")
	p, err := h.prompts.Get(ctx, name)
	if err != nil {
		h.storeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// PutPrompt 按名称插入或覆盖 prompt
func (h *Handler) PutPrompt(ctx context.Context, c *app.RequestContext) {
	var req promptRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	p := &prompt.Prompt{
		Name:         c.Param("name"),
		SystemPrompt: req.SystemPrompt,
	}
	if len(req.FunctionSchema) > 0 && !bytes.Equal(bytes.TrimSpace(req.FunctionSchema), []byte("null")) {
		p.OutputSchema = req.FunctionSchema
	}
	if err := p.Validate(); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.prompts.Upsert(ctx, p); err != nil {
		h.storeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// DeletePrompt 按名称删除 prompt
func (h *Handler) DeletePrompt(ctx context.Context, c *app.RequestContext) {
	if err := h.prompts.Delete(ctx, c.Param("name")); err != nil {
		h.storeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

func (h *Handler) storeError(ctx context.Context, c *app.RequestContext, err error) {
	switch {
	case pkgerrors.IsNotFound(err):
		c.JSON(consts.StatusNotFound, map[string]string{"error": err.Error()})
	case pkgerrors.IsInvalidArg(err):
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		hlog.CtxErrorf(ctx, "prompt store: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
