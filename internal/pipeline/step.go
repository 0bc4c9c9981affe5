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
	"encoding/json"
	"strings"

	pkgerrors "agent-pipeline/pkg/errors"
)

// Payload step 的输入，任意 JSON 对象；nil 与空 map 序列化为 {}
type Payload map[string]any

// encode 序列化为推理请求中的 user 消息内容
func (p Payload) encode() (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Step pipeline 中的一个步骤。Output 在执行前为 nil，执行成功后为推理服务返回的原始 JSON。
type Step struct {
	Name       string          `json:"name"`
	PromptName string          `json:"promptName"`
	Input      Payload         `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// ValidateSteps 校验外部传入的步骤列表：列表须存在（可为空），每个 step 须指定 promptName
func ValidateSteps(steps []*Step) error {
	if steps == nil {
		return pkgerrors.InvalidArgf("steps is required")
	}
	for i, s := range steps {
		if s == nil {
			return pkgerrors.InvalidArgf("steps[%d] must be an object", i)
		}
		if strings.TrimSpace(s.PromptName) == "" {
			return pkgerrors.InvalidArgf("steps[%d].promptName is required", i)
		}
	}
	return nil
}

// StepState 由引擎进度推导出的 step 状态
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepCompleted
)

func (s StepState) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// RunState 引擎运行状态：Idle → Running → Succeeded | Failed，两个终态不可再运行
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
