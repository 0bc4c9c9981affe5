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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/storage/prompt"
	pkgerrors "agent-pipeline/pkg/errors"
	"agent-pipeline/pkg/metrics"
	"agent-pipeline/pkg/tracing"
)

// PromptLookup 引擎对 prompt 存储的唯一依赖
type PromptLookup interface {
	Get(ctx context.Context, name string) (*prompt.Prompt, error)
}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志；默认丢弃
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRunID 指定运行 ID；默认生成 UUID
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}

// WithValidator 开启输出校验，v 为 nil 时关闭
func WithValidator(v *SchemaValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// Engine 顺序执行一组 step：查 prompt → 构造请求 → 调推理服务 → 写回 Output。
// 任一 step 失败即中止整个运行。一个 Engine 只能 Run 一次。
type Engine struct {
	steps     []*Step
	prompts   PromptLookup
	client    llm.ReasoningClient
	validator *SchemaValidator
	logger    *slog.Logger
	runID     string

	state   atomic.Int32
	current atomic.Int32 // 正在执行（或失败）的 step 下标；成功后等于 len(steps)
}

// NewEngine 创建引擎；steps 可为空，构造时不校验 prompt 名称
func NewEngine(steps []*Step, prompts PromptLookup, client llm.ReasoningClient, opts ...Option) *Engine {
	e := &Engine{
		steps:   steps,
		prompts: prompts,
		client:  client,
		logger:  slog.New(slog.DiscardHandler),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID 返回运行 ID
func (e *Engine) RunID() string { return e.runID }

// Steps 返回引擎持有的 step 列表（与构造时同一切片）
func (e *Engine) Steps() []*Step { return e.steps }

// State 返回当前运行状态
func (e *Engine) State() RunState { return RunState(e.state.Load()) }

// StepState 返回第 i 个 step 的状态
func (e *Engine) StepState(i int) StepState {
	if i < 0 || i >= len(e.steps) {
		return StepPending
	}
	state := e.State()
	cur := int(e.current.Load())
	switch {
	case state == StateIdle:
		return StepPending
	case i < cur:
		return StepCompleted
	case i == cur && state == StateRunning:
		return StepRunning
	default:
		return StepPending
	}
}

// Run 按顺序执行全部 step。成功时返回同一切片（Output 已填充）；
// 失败时返回 (nil, err)，调用方持有的 step 中失败点之前的 Output 保留，之后的保持 nil。
func (e *Engine) Run(ctx context.Context) ([]*Step, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRun
	}

	start := time.Now()
	ctx, span := tracing.StartRunSpan(ctx, e.runID, len(e.steps))
	logger := e.logger.With("run_id", e.runID)
	logger.Info("pipeline 开始运行", "steps", len(e.steps))

	var err error
	for i, step := range e.steps {
		e.current.Store(int32(i))
		if err = e.runStep(ctx, logger, i, step); err != nil {
			break
		}
	}

	status := StateSucceeded
	if err != nil {
		status = StateFailed
	} else {
		e.current.Store(int32(len(e.steps)))
	}
	e.state.Store(int32(status))

	elapsed := time.Since(start)
	metrics.RunTotal.WithLabelValues(status.String()).Inc()
	metrics.RunDuration.WithLabelValues(status.String()).Observe(elapsed.Seconds())
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Warn("pipeline 运行失败", "code", ErrorCode(err), "duration", elapsed, "error", err)
		return nil, err
	}
	logger.Info("pipeline 运行完成", "duration", elapsed)
	return e.steps, nil
}

func (e *Engine) runStep(ctx context.Context, logger *slog.Logger, i int, step *Step) (err error) {
	if step == nil {
		return fmt.Errorf("step %d is nil", i)
	}
	start := time.Now()
	ctx, span := tracing.StartStepSpan(ctx, i, step.Name, step.PromptName)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = ErrorCode(err)
		}
		metrics.StepDuration.WithLabelValues(step.PromptName, outcome).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	p, err := e.prompts.Get(ctx, step.PromptName)
	if err != nil || p == nil {
		nf := &PromptNotFoundError{Step: step.Name, PromptName: step.PromptName}
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			nf.Err = err
		}
		return nf
	}

	user, err := step.Input.encode()
	if err != nil {
		return &ReasoningServiceError{Step: step.Name, PromptName: step.PromptName, Err: fmt.Errorf("encode input: %w", err)}
	}
	out, err := e.client.Invoke(ctx, llm.NewRequest(p.SystemPrompt, user, p.OutputSchema))
	if err != nil {
		return &ReasoningServiceError{Step: step.Name, PromptName: step.PromptName, Err: err}
	}
	if e.validator != nil {
		if verr := e.validator.Validate(p.OutputSchema, out); verr != nil {
			return &SchemaMismatchError{Step: step.Name, PromptName: step.PromptName, Err: verr}
		}
	}

	step.Output = out
	logger.Debug("step 完成", "index", i, "step", step.Name, "prompt", step.PromptName, "duration", time.Since(start))
	return nil
}
