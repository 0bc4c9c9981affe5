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

// Package grpc 提供 gRPC 服务端，与 HTTP 的 POST /api/pipeline 对齐。
// 请求与响应均为 google.protobuf.Struct，结构与 HTTP 请求体一致，无需生成代码。
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/pipeline"
	pkgerrors "agent-pipeline/pkg/errors"
)

const (
	// ServiceName gRPC 服务全名
	ServiceName = "agentpipeline.v1.PipelineService"
	runMethod   = "/" + ServiceName + "/Run"
)

// PipelineServer PipelineService 服务端接口
type PipelineServer interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc PipelineService 描述，供 grpc.Server.RegisterService 使用
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentpipeline/v1/pipeline.proto",
}

func runHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PipelineServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server gRPC 服务端，每次 Run 构造一个新的 Engine
type Server struct {
	prompts   pipeline.PromptLookup
	client    llm.ReasoningClient
	validator *pipeline.SchemaValidator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewServer 创建 gRPC Server；validator 可为 nil，timeout 为 0 表示不限时
func NewServer(prompts pipeline.PromptLookup, client llm.ReasoningClient, validator *pipeline.SchemaValidator, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		prompts:   prompts,
		client:    client,
		validator: validator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Register 注册 PipelineService 到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// Run 实现 PipelineService.Run
func (s *Server) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Steps []*pipeline.Step `json:"steps"`
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := pipeline.ValidateSteps(req.Steps); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	engine := pipeline.NewEngine(req.Steps, s.prompts, s.client,
		pipeline.WithLogger(s.logger),
		pipeline.WithValidator(s.validator),
	)
	steps, err := engine.Run(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"steps": steps})
}

// toStatus 将 pipeline 错误映射为 gRPC 状态码
func toStatus(err error) error {
	var (
		notFound *pipeline.PromptNotFoundError
		mismatch *pipeline.SchemaMismatchError
		service  *pipeline.ReasoningServiceError
	)
	switch {
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &mismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.As(err, &service):
		return status.Error(codes.Unavailable, err.Error())
	case pkgerrors.IsInvalidArg(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct 经 JSON 往返，使 json.RawMessage 输出展开为结构化值
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// PipelineClient PipelineService 客户端
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

// NewPipelineClient 基于已建立的连接创建客户端
func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

// Run 调用 PipelineService.Run
func (c *PipelineClient) Run(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
