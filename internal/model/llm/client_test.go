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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Providers(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, Config{Provider: "gemini"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)
	assert.Equal(t, "gemini", ProviderName(c))

	c, err = NewClient(ctx, Config{
		Provider: "gemini",
		Retry:    RetryConfig{MaxAttempts: 3},
		Limit:    LimitConfig{MaxConcurrent: 4},
	})
	require.NoError(t, err)
	r, ok := c.(*RetryingClient)
	require.True(t, ok, "retry should be the outermost wrapper")
	assert.IsType(t, &RateLimitedClient{}, r.inner)
	assert.Equal(t, "gemini", ProviderName(c))

	c, err = NewClient(ctx, Config{Provider: "openai", HTTP: HTTPConfig{APIKey: "sk-test"}})
	require.NoError(t, err)
	assert.Equal(t, "openai", ProviderName(c))

	_, err = NewClient(ctx, Config{Provider: "bogus"})
	assert.Error(t, err)
}

func TestTransportError_Transient(t *testing.T) {
	cases := []struct {
		err  *TransportError
		want bool
	}{
		{&TransportError{Err: errors.New("reset")}, true},
		{&TransportError{StatusCode: http.StatusRequestTimeout}, true},
		{&TransportError{StatusCode: http.StatusTooManyRequests}, true},
		{&TransportError{StatusCode: http.StatusInternalServerError}, true},
		{&TransportError{StatusCode: http.StatusNotFound}, false},
		{&TransportError{Err: context.Canceled}, false},
		{&TransportError{Err: errors.New("invalid function schema"), Permanent: true}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Transient(), tc.err.Error())
	}
	assert.False(t, IsTransient(&ParseError{Body: "x"}))
	assert.False(t, IsTransient(nil))
}

func TestProviderName_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", ProviderName(anonymousClient{}))
}

type anonymousClient struct{}

func (anonymousClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	return nil, nil
}
