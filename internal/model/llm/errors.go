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
	"errors"
	"fmt"
	"net/http"

	"agent-pipeline/pkg/metrics"
)

const maxErrorBody = 512

// TransportError 网络错误、超时或非 2xx 响应
type TransportError struct {
	Provider   string
	StatusCode int // 0 表示未收到响应
	Body       string
	Err        error
	// Permanent 请求本身无效（如函数 schema 非法），重发不会成功
	Permanent bool
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("reasoning service %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("reasoning service %s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient 是否值得重试：网络错误、408、429、5xx；ctx 取消与超时不重试
func (e *TransportError) Transient() bool {
	if e.Permanent {
		return false
	}
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// ParseError 响应体不是合法 JSON
type ParseError struct {
	Provider string
	Body     string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reasoning service %s returned unparseable response: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("reasoning service %s returned unparseable response: %q", e.Provider, e.Body)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransient 判断 err 是否为可重试的传输错误
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Transient()
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}

// observe 记录一次推理请求的结果
func observe(provider string, err error) {
	outcome := "ok"
	var te *TransportError
	var pe *ParseError
	switch {
	case err == nil:
	case errors.As(err, &te):
		outcome = "transport_error"
	case errors.As(err, &pe):
		outcome = "parse_error"
	default:
		outcome = "error"
	}
	metrics.ReasoningRequestsTotal.WithLabelValues(provider, outcome).Inc()
}
