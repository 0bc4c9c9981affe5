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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient 按顺序返回预设错误，用尽后成功
type scriptedClient struct {
	errs  []error
	calls atomic.Int32
}

func (s *scriptedClient) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) {
		return nil, s.errs[n]
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (s *scriptedClient) Provider() string { return "scripted" }

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryingClient_RetriesTransient(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		&TransportError{Provider: "scripted", Err: errors.New("connection reset")},
		&TransportError{Provider: "scripted", StatusCode: http.StatusBadGateway},
	}}
	out, err := NewRetryingClient(inner, fastRetry(3)).Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryingClient_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := &TransportError{Provider: "scripted", StatusCode: http.StatusTooManyRequests}
	inner := &scriptedClient{errs: []error{transient, transient, transient, transient}}
	_, err := NewRetryingClient(inner, fastRetry(3)).Invoke(context.Background(), Request{})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryingClient_PermanentErrorsNotRetried(t *testing.T) {
	cases := map[string]error{
		"parse":      &ParseError{Provider: "scripted", Body: "nope"},
		"bad status": &TransportError{Provider: "scripted", StatusCode: http.StatusBadRequest},
		"permanent":  &TransportError{Provider: "scripted", Err: errors.New("bind tools"), Permanent: true},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			inner := &scriptedClient{errs: []error{e}}
			_, err := NewRetryingClient(inner, fastRetry(5)).Invoke(context.Background(), Request{})
			require.Error(t, err)
			assert.Same(t, e, err)
			assert.Equal(t, int32(1), inner.calls.Load())
		})
	}
}

func TestRetryingClient_SingleAttempt(t *testing.T) {
	inner := &scriptedClient{errs: []error{&TransportError{Provider: "scripted", Err: errors.New("reset")}}}
	_, err := NewRetryingClient(inner, fastRetry(1)).Invoke(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetryingClient_StopsOnContextCancel(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		&TransportError{Provider: "scripted", Err: errors.New("reset")},
		&TransportError{Provider: "scripted", Err: errors.New("reset")},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewRetryingClient(inner, RetryConfig{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Second})
	_, err := c.Invoke(ctx, Request{})
	require.Error(t, err)
	assert.LessOrEqual(t, inner.calls.Load(), int32(1))
}

func TestRetryingClient_ProviderName(t *testing.T) {
	assert.Equal(t, "scripted", NewRetryingClient(&scriptedClient{}, fastRetry(2)).Provider())
}
