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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	promptSystem     string
	promptSchemaFile string
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "管理 prompt",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部 prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newAPIClient(apiURL, apiToken).ListPrompts()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printResult(cmd, list)
		}
		for _, p := range list {
			schema := "no schema"
			if len(p.OutputSchema) > 0 {
				schema = "schema"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", p.Name, schema)
		}
		return nil
	},
}

var promptsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "查看 prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newAPIClient(apiURL, apiToken).GetPrompt(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p)
	},
}

var promptsSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "创建或覆盖 prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readSchemaFile(promptSchemaFile)
		if err != nil {
			return err
		}
		p, err := newAPIClient(apiURL, apiToken).PutPrompt(args[0], promptSystem, schema)
		if err != nil {
			return err
		}
		return printResult(cmd, p)
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "删除 prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient(apiURL, apiToken).DeletePrompt(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	promptsSetCmd.Flags().StringVar(&promptSystem, "system", "", "system prompt 文本")
	promptsSetCmd.Flags().StringVar(&promptSchemaFile, "schema", "", "函数 schema 文件（YAML 或 JSON）")
	_ = promptsSetCmd.MarkFlagRequired("system")

	promptsCmd.AddCommand(promptsListCmd, promptsGetCmd, promptsSetCmd, promptsDeleteCmd)
}

// readSchemaFile 读取 schema 文件并转为 JSON；path 为空时返回 nil
func readSchemaFile(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("解析 schema 文件失败: %w", err)
	}
	return out, nil
}
