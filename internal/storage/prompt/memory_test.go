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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "agent-pipeline/pkg/errors"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "literature")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, pkgerrors.IsNotFound(err))

	p := &Prompt{
		Name:         "literature",
		SystemPrompt: "Survey the literature.",
		OutputSchema: json.RawMessage(`{"name":"lit","parameters":{"type":"object"}}`),
	}
	require.NoError(t, s.Upsert(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	firstID, created := p.ID, p.CreatedAt

	got, err := s.Get(ctx, "literature")
	require.NoError(t, err)
	assert.Equal(t, "Survey the literature.", got.SystemPrompt)
	assert.JSONEq(t, `{"name":"lit","parameters":{"type":"object"}}`, string(got.OutputSchema))

	// 覆盖写保留 ID 与创建时间
	update := &Prompt{Name: "literature", SystemPrompt: "v2"}
	require.NoError(t, s.Upsert(ctx, update))
	assert.Equal(t, firstID, update.ID)
	assert.Equal(t, created, update.CreatedAt)
	got, _ = s.Get(ctx, "literature")
	assert.Equal(t, "v2", got.SystemPrompt)
	assert.Nil(t, got.OutputSchema)

	require.NoError(t, s.Upsert(ctx, &Prompt{Name: "analysis"}))
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "analysis", list[0].Name)
	assert.Equal(t, "literature", list[1].Name)

	require.NoError(t, s.Delete(ctx, "analysis"))
	assert.ErrorIs(t, s.Delete(ctx, "analysis"), ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, &Prompt{Name: "a", SystemPrompt: "orig", OutputSchema: json.RawMessage(`{"x":1}`)}))

	got, _ := s.Get(ctx, "a")
	got.SystemPrompt = "mutated"
	got.OutputSchema[1] = 'y'

	again, _ := s.Get(ctx, "a")
	assert.Equal(t, "orig", again.SystemPrompt)
	assert.JSONEq(t, `{"x":1}`, string(again.OutputSchema))
}

func TestPrompt_Validate(t *testing.T) {
	cases := []struct {
		name string
		p    *Prompt
		ok   bool
	}{
		{"nil", nil, false},
		{"empty name", &Prompt{Name: "  "}, false},
		{"array schema", &Prompt{Name: "a", OutputSchema: json.RawMessage(`[1]`)}, false},
		{"invalid json", &Prompt{Name: "a", OutputSchema: json.RawMessage(`{`)}, false},
		{"no schema", &Prompt{Name: "a"}, true},
		{"object schema", &Prompt{Name: "a", OutputSchema: json.RawMessage(`{"name":"f"}`)}, true},
		{"null schema", &Prompt{Name: "a", OutputSchema: json.RawMessage(` null `)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArg))
		})
	}
}

func TestPrompt_ValidateNullSchema(t *testing.T) {
	p := &Prompt{Name: "free", OutputSchema: json.RawMessage(` null `)}
	require.NoError(t, p.Validate())
	assert.Nil(t, p.OutputSchema)

	s := NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), &Prompt{Name: "free", OutputSchema: json.RawMessage(`null`)}))
	got, err := s.Get(context.Background(), "free")
	require.NoError(t, err)
	assert.Nil(t, got.OutputSchema)
}
