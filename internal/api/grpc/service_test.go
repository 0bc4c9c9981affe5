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

package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/pipeline"
	"agent-pipeline/internal/storage/prompt"
)

type fixedClient struct {
	out map[string]string
	err error
}

func (c fixedClient) Invoke(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	if c.err != nil {
		return nil, c.err
	}
	return json.RawMessage(c.out[req.Messages[0].Content]), nil
}

func dial(t *testing.T, client llm.ReasoningClient, validator *pipeline.SchemaValidator) *PipelineClient {
	t.Helper()
	store := prompt.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), &prompt.Prompt{
		Name:         "literature-summarizer",
		SystemPrompt: "summarize",
		OutputSchema: json.RawMessage(`{"name":"summary","parameters":{"type":"object","required":["summary"]}}`),
	}))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewServer(store, client, validator, 0, nil).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewPipelineClient(conn)
}

func request(t *testing.T, body string) *structpb.Struct {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRun_Success(t *testing.T) {
	c := dial(t, fixedClient{out: map[string]string{"summarize": `{"summary":"ok"}`}}, nil)

	out, err := c.Run(context.Background(), request(t, `{"steps":[{"name":"Literature Review","promptName":"literature-summarizer","input":{"topic":"CRISPR"}}]}`))
	require.NoError(t, err)

	steps := out.AsMap()["steps"].([]interface{})
	require.Len(t, steps, 1)
	step := steps[0].(map[string]interface{})
	assert.Equal(t, "Literature Review", step["name"])
	assert.Equal(t, map[string]interface{}{"summary": "ok"}, step["output"])
}

func TestRun_ErrorCodes(t *testing.T) {
	cases := []struct {
		name      string
		client    llm.ReasoningClient
		validator *pipeline.SchemaValidator
		body      string
		want      codes.Code
	}{
		{"missing steps", fixedClient{}, nil, `{}`, codes.InvalidArgument},
		{"missing prompt name", fixedClient{}, nil, `{"steps":[{"name":"a"}]}`, codes.InvalidArgument},
		{"unknown prompt", fixedClient{}, nil, `{"steps":[{"name":"a","promptName":"nope"}]}`, codes.NotFound},
		{"reasoning failure", fixedClient{err: &llm.TransportError{Provider: "gemini", StatusCode: 503, Err: errors.New("down")}}, nil,
			`{"steps":[{"name":"a","promptName":"literature-summarizer"}]}`, codes.Unavailable},
		{"schema mismatch", fixedClient{out: map[string]string{"summarize": `{"other":1}`}}, pipeline.NewSchemaValidator(),
			`{"steps":[{"name":"a","promptName":"literature-summarizer"}]}`, codes.FailedPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := dial(t, tc.client, tc.validator)
			_, err := c.Run(context.Background(), request(t, tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.want, status.Code(err))
		})
	}
}
