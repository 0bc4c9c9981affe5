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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"agent-pipeline/internal/app"
	"agent-pipeline/internal/pipeline"
	"agent-pipeline/pkg/config"
	"agent-pipeline/pkg/tracing"
)

var (
	runFile    string
	runLocal   bool
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "运行 steps 文件中定义的 pipeline",
	Long: `从 YAML/JSON 文件读取步骤列表并按顺序执行。

文件格式：
  steps:
    - name: Literature Review
      promptName: literature-summarizer
      input: {topic: CRISPR}`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "steps 文件（YAML 或 JSON）")
	runCmd.Flags().BoolVar(&runLocal, "local", false, "不经过 API，直接在本进程内运行")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "--local 模式的运行超时，默认取配置 api.timeout")
	_ = runCmd.MarkFlagRequired("file")
}

// stepsFile steps 文件格式
type stepsFile struct {
	Steps []*pipeline.Step `json:"steps"`
}

// readStepsFile 读取 steps 文件；顶层可以是 {steps: [...]} 或直接是列表
func readStepsFile(path string) ([]*pipeline.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	var steps []*pipeline.Step
	var f stepsFile
	if err := json.Unmarshal(jsonData, &f); err == nil {
		steps = f.Steps
	} else if err := json.Unmarshal(jsonData, &steps); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	if err := pipeline.ValidateSteps(steps); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return steps, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	steps, err := readStepsFile(runFile)
	if err != nil {
		return err
	}
	if !runLocal {
		out, err := newAPIClient(apiURL, apiToken).RunPipeline(steps)
		if err != nil {
			return err
		}
		return printSteps(cmd.OutOrStdout(), out)
	}
	return runPipelineLocal(cmd.Context(), cmd.OutOrStdout(), steps)
}

func runPipelineLocal(ctx context.Context, w io.Writer, steps []*pipeline.Step) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadAPIConfig()
	}
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if t := cfg.Monitoring.Tracing; t.Enable {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    t.ServiceName,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			return fmt.Errorf("初始化 tracing 失败: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	timeout := runTimeout
	if timeout <= 0 {
		timeout = b.RunTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	engine := b.NewEngine(steps)
	if _, err := engine.Run(ctx); err != nil {
		_ = printSteps(w, steps)
		return err
	}
	return printSteps(w, steps)
}

func printSteps(w io.Writer, steps []*pipeline.Step) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(map[string]interface{}{"steps": steps})
	}
	for i, s := range steps {
		out := "-"
		if s.Output != nil {
			out = string(s.Output)
		}
		fmt.Fprintf(w, "[%d] %s (%s)\n    %s\n", i+1, s.Name, s.PromptName, out)
	}
	return nil
}

func printResult(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !jsonOutput {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
