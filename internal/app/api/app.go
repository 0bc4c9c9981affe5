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

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	apigrpc "agent-pipeline/internal/api/grpc"
	"agent-pipeline/internal/api/http"
	"agent-pipeline/internal/api/http/middleware"
	"agent-pipeline/internal/app"
	"agent-pipeline/pkg/config"
	"agent-pipeline/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选的 gRPC 服务）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	logger := bootstrap.Logger.Logger

	handler := http.NewHandler(bootstrap.Prompts, bootstrap.Reasoning,
		http.WithValidator(bootstrap.Validator),
		http.WithRunTimeout(bootstrap.RunTimeout()),
		http.WithLogger(logger),
	)

	var origins []string
	if cfg.API.CORS.Enable {
		origins = cfg.API.CORS.AllowOrigins
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(origins...))
	router.SetMetricsEnabled(cfg.Monitoring.Prometheus.Enable)
	router.SetAudit(middleware.NewAuditMiddleware(logger))
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS)
	}
	if cfg.API.Middleware.Auth {
		timeout := config.ParseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := config.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh, cfg.API.Middleware.Users)
		if err != nil {
			return nil, fmt.Errorf("初始化 JWT 认证失败: %w", err)
		}
		router.SetJWT(jwtAuth)
	}

	appObj := &App{
		config: bootstrap,
		router: router,
	}
	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs, err := startGRPC(bootstrap, cfg.API.Grpc.Port)
		if err != nil {
			bootstrap.Logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			appObj.grpcServer = gs
			bootstrap.Logger.Info("gRPC 服务已启动", "port", cfg.API.Grpc.Port)
		}
	}
	return appObj, nil
}

// Addr 根据配置返回 HTTP 监听地址
func (a *App) Addr() string {
	cfg := a.config.Config
	port := cfg.API.Port
	if port <= 0 {
		port = 4000
	}
	return fmt.Sprintf("%s:%d", cfg.API.Host, port)
}

// Run 启动 HTTP 服务，addr 如 ":4000"；阻塞直到服务关闭
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	output, err := hertzLogOutput(a.config.Config.Log.File)
	if err != nil {
		return err
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(a.config.Config.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	tracing := a.config.Config.Monitoring.Tracing
	if tracing.Enable {
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "agent-pipeline"
		}
		exportEndpoint := tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tracing.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, cfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(cfg))
		a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

func hertzLogOutput(file string) (io.Writer, error) {
	if file == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Close()
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve），返回 grpcRun 以便 Shutdown 时 GracefulStop
func startGRPC(bootstrap *app.Bootstrap, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	apigrpc.NewServer(bootstrap.Prompts, bootstrap.Reasoning, bootstrap.Validator, bootstrap.RunTimeout(), bootstrap.Logger.Logger).Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}
