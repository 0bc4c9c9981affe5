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
	"errors"
	"fmt"

	"agent-pipeline/internal/storage/prompt"
	pkgerrors "agent-pipeline/pkg/errors"
)

// ErrAlreadyRun 引擎已运行过（成功或失败），不可再次 Run
var ErrAlreadyRun = errors.New("pipeline: engine has already run")

// 错误码，供 HTTP / gRPC 边界使用
const (
	CodePromptNotFound   = "prompt_not_found"
	CodeReasoningService = "reasoning_service_error"
	CodeSchemaMismatch   = "schema_mismatch"
	CodeInternal         = "internal"
)

// PromptNotFoundError step 引用的 prompt 无法解析。
// Err 仅在查询本身失败（如存储不可达）时设置。
type PromptNotFoundError struct {
	Step       string
	PromptName string
	Err        error
}

// Error 实现 error 接口
func (e *PromptNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %q: prompt %q not found: %v", e.Step, e.PromptName, e.Err)
	}
	return fmt.Sprintf("step %q: prompt %q not found", e.Step, e.PromptName)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *PromptNotFoundError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, prompt.ErrNotFound) 与 errors.Is(err, pkg/errors.ErrNotFound) 成立
func (e *PromptNotFoundError) Is(target error) bool {
	return target == prompt.ErrNotFound || target == pkgerrors.ErrNotFound
}

// ReasoningServiceError 推理调用失败；Err 为 *llm.TransportError、*llm.ParseError 或 ctx 错误
type ReasoningServiceError struct {
	Step       string
	PromptName string
	Err        error
}

// Error 实现 error 接口
func (e *ReasoningServiceError) Error() string {
	return fmt.Sprintf("step %q (prompt %q): reasoning service call failed: %v", e.Step, e.PromptName, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *ReasoningServiceError) Unwrap() error { return e.Err }

// SchemaMismatchError 开启输出校验时，响应不符合 prompt 的输出 schema
type SchemaMismatchError struct {
	Step       string
	PromptName string
	Err        error
}

// Error 实现 error 接口
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("step %q (prompt %q): output does not match schema: %v", e.Step, e.PromptName, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// ErrorCode 返回 err 对应的机器可读错误码
func ErrorCode(err error) string {
	var pnf *PromptNotFoundError
	var rse *ReasoningServiceError
	var sme *SchemaMismatchError
	switch {
	case errors.As(err, &pnf):
		return CodePromptNotFound
	case errors.As(err, &rse):
		return CodeReasoningService
	case errors.As(err, &sme):
		return CodeSchemaMismatch
	default:
		return CodeInternal
	}
}

// FailedStep 返回失败 step 的名称；err 不是 step 级错误时 ok 为 false
func FailedStep(err error) (string, bool) {
	var pnf *PromptNotFoundError
	if errors.As(err, &pnf) {
		return pnf.Step, true
	}
	var rse *ReasoningServiceError
	if errors.As(err, &rse) {
		return rse.Step, true
	}
	var sme *SchemaMismatchError
	if errors.As(err, &sme) {
		return sme.Step, true
	}
	return "", false
}
