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

// Package main 提供 agentctl 命令行：运行 pipeline、管理 prompt、检查服务健康。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version 构建时可通过 -ldflags 覆盖
var version = "0.1.0"

// 全局参数
var (
	apiURL     string
	apiToken   string
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Agent pipeline 命令行工具",
	Long: `agentctl 调用 agent-pipeline API 运行多步推理 pipeline，并管理 prompt。

Examples:
  agentctl run -f steps.yaml           # 通过 API 运行
  agentctl run -f steps.yaml --local   # 在本进程内运行
  agentctl prompts list
  agentctl prompts set result-analyzer --system "..." --schema schema.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentctl %s\n", version)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "检查 API 服务健康状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newAPIClient(apiURL, apiToken).Health()
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL(), "API 地址（环境变量 AGENTCTL_API_URL）")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("AGENTCTL_TOKEN"), "JWT token（环境变量 AGENTCTL_TOKEN）")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "--local 模式使用的配置文件，默认 configs/api.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(promptsCmd)
}

func defaultAPIURL() string {
	if u := os.Getenv("AGENTCTL_API_URL"); u != "" {
		return u
	}
	return "http://localhost:4000"
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
