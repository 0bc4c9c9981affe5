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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pipeline/pkg/config"
)

const seedYAML = `
prompts:
  - name: literature
    system_prompt: Survey prior art for the given topic.
    function_schema:
      name: literature_review
      parameters:
        type: object
        properties:
          papers:
            type: array
            items: {type: string}
        required: [papers]
  - name: analysis
    system_prompt: Analyse the findings.
`

func TestSeed_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	ctx := context.Background()
	s := NewMemoryStore()
	n, err := Seed(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lit, err := s.Get(ctx, "literature")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"literature_review","parameters":{"type":"object","properties":{"papers":{"type":"array","items":{"type":"string"}}},"required":["papers"]}}`, string(lit.OutputSchema))

	an, err := s.Get(ctx, "analysis")
	require.NoError(t, err)
	assert.Nil(t, an.OutputSchema)
}

func TestSeed_NullSchemaStoredAsUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompts:\n  - name: free\n    system_prompt: Answer freely.\n    function_schema: null\n"), 0644))

	ctx := context.Background()
	s := NewMemoryStore()
	_, err := Seed(ctx, s, path)
	require.NoError(t, err)

	p, err := s.Get(ctx, "free")
	require.NoError(t, err)
	assert.Nil(t, p.OutputSchema)
}

func TestLoadSeedFile_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prompts":[{"system_prompt":"no name"}]}`), 0644))
	_, err := LoadSeedFile(path)
	assert.Error(t, err)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewStore_Factory(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, config.PromptsConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(ctx, config.PromptsConfig{Type: "memory", Cache: config.CacheConfig{Type: "memory", TTL: "1m"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	s, err = NewStore(ctx, config.PromptsConfig{Type: "supabase", URL: "https://example.supabase.co"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SupabaseStore{}, s)

	_, err = NewStore(ctx, config.PromptsConfig{Type: "postgres"}, nil)
	assert.Error(t, err, "postgres without dsn")

	_, err = NewStore(ctx, config.PromptsConfig{Type: "mongo"}, nil)
	assert.Error(t, err)
}
