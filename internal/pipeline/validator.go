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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaValidator 按 prompt 的函数 schema 校验推理输出。编译结果按 schema 文本缓存，可被多个引擎共享。
type SchemaValidator struct {
	mu       sync.Mutex
	resolved map[string]*jsonschema.Resolved
}

// NewSchemaValidator 创建校验器
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{resolved: make(map[string]*jsonschema.Resolved)}
}

// Validate 校验 output。函数 schema 为空或不含参数 schema 时直接通过。
// 被校验的实例依次取自 choices[0].message.function_call.arguments、
// choices[0].message.tool_calls[0].function.arguments，否则为 output 本身。
func (v *SchemaValidator) Validate(function, output json.RawMessage) error {
	params, err := parametersOf(function)
	if err != nil || params == nil {
		return err
	}
	rs, err := v.resolve(params)
	if err != nil {
		return err
	}
	instance, err := extractInstance(output)
	if err != nil {
		return err
	}
	return rs.Validate(instance)
}

func (v *SchemaValidator) resolve(params json.RawMessage) (*jsonschema.Resolved, error) {
	key := string(params)
	v.mu.Lock()
	defer v.mu.Unlock()
	if rs, ok := v.resolved[key]; ok {
		return rs, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(params, &s); err != nil {
		return nil, fmt.Errorf("invalid output schema: %w", err)
	}
	rs, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("invalid output schema: %w", err)
	}
	v.resolved[key] = rs
	return rs, nil
}

// parametersOf 从 {name, description, parameters} 中取 parameters；
// 没有 parameters 但自身像对象 schema（含 type 或 properties）时返回自身。
func parametersOf(function json.RawMessage) (json.RawMessage, error) {
	if len(function) == 0 {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(function, &fields); err != nil {
		return nil, fmt.Errorf("invalid output schema: %w", err)
	}
	if p, ok := fields["parameters"]; ok && len(p) > 0 && string(p) != "null" {
		return p, nil
	}
	_, hasType := fields["type"]
	_, hasProps := fields["properties"]
	if hasType || hasProps {
		return function, nil
	}
	return nil, nil
}

type chatEnvelope struct {
	Choices []struct {
		Message struct {
			FunctionCall *struct {
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function_call"`
			ToolCalls []struct {
				Function struct {
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func extractInstance(output json.RawMessage) (any, error) {
	var env chatEnvelope
	if err := json.Unmarshal(output, &env); err == nil && len(env.Choices) > 0 {
		msg := env.Choices[0].Message
		var raw json.RawMessage
		if msg.FunctionCall != nil {
			raw = msg.FunctionCall.Arguments
		} else if len(msg.ToolCalls) > 0 {
			raw = msg.ToolCalls[0].Function.Arguments
		}
		args, err := argumentsJSON(raw)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			var instance any
			if err := json.Unmarshal(args, &instance); err != nil {
				return nil, errors.New("function call arguments are not valid JSON")
			}
			return instance, nil
		}
	}
	var instance any
	if err := json.Unmarshal(output, &instance); err != nil {
		return nil, errors.New("output is not valid JSON")
	}
	return instance, nil
}

// argumentsJSON 兼容两种 arguments：JSON 字符串（OpenAI 格式）或直接内嵌的对象
func argumentsJSON(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, errors.New("function call arguments are not valid JSON")
	}
	return []byte(strings.TrimSpace(s)), nil
}
