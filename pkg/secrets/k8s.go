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

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// K8sConfig 以目录挂载的 Kubernetes Secret 配置
type K8sConfig struct {
	// SecretsPath secret 挂载目录，每个文件名即 key，默认 /etc/secrets
	SecretsPath string `mapstructure:"secrets_path"`
}

// k8sStore 只读：Set/Delete 返回错误，secret 由集群侧管理
type k8sStore struct {
	secretsPath string
}

// NewK8sStore 创建基于挂载目录的 Store；目录不存在时返回错误
func NewK8sStore(config K8sConfig) (Store, error) {
	path := config.SecretsPath
	if path == "" {
		path = "/etc/secrets"
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("kubernetes secrets path not available: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kubernetes secrets path is not a directory: %s", path)
	}
	return &k8sStore{secretsPath: path}, nil
}

func (k *k8sStore) Get(ctx context.Context, key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid secret key: %s", key)
	}
	data, err := os.ReadFile(filepath.Join(k.secretsPath, key))
	if err != nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (k *k8sStore) Set(ctx context.Context, key string, value string) error {
	return fmt.Errorf("kubernetes secrets are read-only: %s", key)
}

func (k *k8sStore) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("kubernetes secrets are read-only: %s", key)
}

func (k *k8sStore) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(k.secretsPath)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		// 挂载目录中的 ..data 等为 kubelet 内部链接
		if e.IsDir() || strings.HasPrefix(e.Name(), "..") {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}
