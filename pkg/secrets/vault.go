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
	"errors"
	"fmt"
	"sort"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault KV v2 配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`     // 如 http://vault:8200
	Token      string `mapstructure:"token"`       // 空则沿用 VAULT_TOKEN
	PathPrefix string `mapstructure:"path_prefix"` // KV v2 挂载点，默认 secret
}

// vaultStore 每个 key 对应 KV v2 中的一条 secret，值存于 data.value
type vaultStore struct {
	kv    *vault.KVv2
	raw   *vault.Client
	mount string
}

// NewVaultStore 创建 Vault Store，创建时做一次健康检查
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}

	mount := "secret"
	if config.PathPrefix != "" {
		mount = strings.Trim(config.PathPrefix, "/")
	}
	return &vaultStore{kv: client.KVv2(mount), raw: client, mount: mount}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", fmt.Errorf("secret not found: %s", key)
		}
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if val, ok := secret.Data["value"].(string); ok {
		return val, nil
	}
	// 没有 value 字段时取排序后第一个字符串值，保证结果稳定
	fields := make([]string, 0, len(secret.Data))
	for k := range secret.Data {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if str, ok := secret.Data[k].(string); ok {
			return str, nil
		}
	}
	return "", fmt.Errorf("secret value not found: %s", key)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	if _, err := v.kv.Put(ctx, key, map[string]interface{}{"value": value}); err != nil {
		return fmt.Errorf("failed to write secret to vault: %w", err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if err := v.kv.DeleteMetadata(ctx, key); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

func (v *vaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir, base := "", prefix
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir, base = prefix[:i+1], prefix[i+1:]
	}
	secret, err := v.raw.Logical().ListWithContext(ctx, v.mount+"/metadata/"+dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets from vault: %w", err)
	}
	if secret == nil {
		return nil, nil
	}
	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}
	var result []string
	for _, k := range keys {
		if str, ok := k.(string); ok && strings.HasPrefix(str, base) {
			result = append(result, dir+str)
		}
	}
	return result, nil
}
