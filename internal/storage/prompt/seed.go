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

package prompt

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// SeedFile 种子文件格式，YAML 或 JSON 均可
type SeedFile struct {
	Prompts []*Prompt `json:"prompts"`
}

// LoadSeedFile 读取并校验种子文件
func LoadSeedFile(path string) ([]*Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 prompt 种子文件失败: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析 prompt 种子文件失败: %w", err)
	}
	for i, p := range f.Prompts {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("prompts[%d]: %w", i, err)
		}
	}
	return f.Prompts, nil
}

// Seed 将种子文件中的 prompt 逐条 Upsert，返回写入条数
func Seed(ctx context.Context, store Store, path string) (int, error) {
	prompts, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	for _, p := range prompts {
		if err := store.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("写入 prompt %q 失败: %w", p.Name, err)
		}
	}
	return len(prompts), nil
}
