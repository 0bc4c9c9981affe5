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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry 进程内指标注册表，/metrics 与 CLI 均从此导出
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RunTotal, RunDuration, StepDuration,
		ReasoningRequestsTotal, ReasoningRetriesTotal,
		PromptCacheTotal, RateLimitWaitSeconds,
	)
}

// RunTotal pipeline 运行总数（按终态）
var RunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentpipe_run_total",
		Help: "pipeline 运行总数（按终态）",
	},
	[]string{"status"}, // succeeded | failed
)

// RunDuration pipeline 单次运行耗时（秒）
var RunDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agentpipe_run_duration_seconds",
		Help:    "pipeline 单次运行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status"},
)

// StepDuration 单个 step 耗时（秒），含 prompt 查询与推理调用
var StepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agentpipe_step_duration_seconds",
		Help:    "单个 step 耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"prompt", "outcome"},
)

// ReasoningRequestsTotal 推理服务请求数（按 provider 与结果）
var ReasoningRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentpipe_reasoning_requests_total",
		Help: "推理服务请求数",
	},
	[]string{"provider", "outcome"}, // ok | transport_error | parse_error
)

// ReasoningRetriesTotal 推理调用重试次数
var ReasoningRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentpipe_reasoning_retries_total",
		Help: "推理调用重试次数",
	},
	[]string{"provider"},
)

// PromptCacheTotal prompt 缓存命中/未命中
var PromptCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentpipe_prompt_cache_total",
		Help: "prompt 缓存查询次数",
	},
	[]string{"result"}, // hit | miss
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agentpipe_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
	},
	[]string{"scope", "name"}, // scope: llm | api
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
