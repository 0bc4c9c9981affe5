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
	"sort"
	"strings"
)

// envStore 以环境变量作为 secret 来源，key 中的 / . - 映射为 _ 并转大写
type envStore struct{}

func NewEnvStore() Store {
	return &envStore{}
}

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer("/", "_", ".", "_", "-", "_").Replace(key))
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(envName(key))
	if value == "" {
		return "", fmt.Errorf("environment variable not set: %s", envName(key))
	}
	return value, nil
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(envName(key), value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(envName(key))
}

func (e *envStore) List(ctx context.Context, prefix string) ([]string, error) {
	p := envName(prefix)
	var keys []string
	for _, env := range os.Environ() {
		name, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(name, p) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
