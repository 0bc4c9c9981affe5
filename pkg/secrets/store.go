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
	"strings"
)

// RefPrefix 配置中引用 secret 的前缀，如 secret://reasoning/api_key
const RefPrefix = "secret://"

// Store 凭证读写接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config secret provider 配置
type Config struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault | k8s
	Config   map[string]string `mapstructure:"config"`   // Provider-specific config
}

// NewStore 根据 provider 创建 Store，空 provider 等同 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    config.Config["address"],
			Token:      config.Config["token"],
			PathPrefix: config.Config["path_prefix"],
		})
	case "k8s":
		return NewK8sStore(K8sConfig{SecretsPath: config.Config["secrets_path"]})
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// IsRef 判断配置值是否为 secret 引用
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve 将 secret://key 形式的值替换为 store 中的实际值，其余值原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, RefPrefix)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if store == nil {
		return "", fmt.Errorf("secret %q referenced but no secret store configured", key)
	}
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", key, err)
	}
	return v, nil
}
