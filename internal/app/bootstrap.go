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

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-pipeline/internal/model/llm"
	"agent-pipeline/internal/pipeline"
	"agent-pipeline/internal/storage/prompt"
	"agent-pipeline/pkg/config"
	"agent-pipeline/pkg/log"
	"agent-pipeline/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Secrets   secrets.Store
	Prompts   prompt.Store
	Reasoning llm.ReasoningClient
	Validator *pipeline.SchemaValidator
}

// NewBootstrap 根据配置创建 Bootstrap：日志、secret 解析、推理客户端、prompt 存储与种子数据
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{Provider: cfg.Secrets.Provider, Config: cfg.Secrets.Config})
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
	}
	if err := resolveSecrets(ctx, store, cfg); err != nil {
		_ = logger.Close()
		return nil, err
	}

	client, err := llm.NewClient(ctx, ReasoningConfig(cfg.Reasoning))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("初始化推理客户端失败: %w", err)
	}

	prompts, err := prompt.NewStore(ctx, cfg.Prompts, logger.Logger)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("初始化 prompt 存储失败: %w", err)
	}
	if cfg.Prompts.SeedFile != "" {
		n, err := prompt.Seed(ctx, prompts, cfg.Prompts.SeedFile)
		if err != nil {
			_ = prompts.Close()
			_ = logger.Close()
			return nil, fmt.Errorf("导入 prompt 种子失败: %w", err)
		}
		logger.Info("prompt 种子已导入", "file", cfg.Prompts.SeedFile, "count", n)
	}

	b := &Bootstrap{
		Config:    cfg,
		Logger:    logger,
		Secrets:   store,
		Prompts:   prompts,
		Reasoning: client,
	}
	if cfg.Reasoning.ValidateOutput {
		b.Validator = pipeline.NewSchemaValidator()
	}
	logger.Info("bootstrap 完成",
		"reasoning_provider", llm.ProviderName(client),
		"prompts_type", cfg.Prompts.Type,
		"prompts_cache", cfg.Prompts.Cache.Type,
		"validate_output", cfg.Reasoning.ValidateOutput,
	)
	return b, nil
}

// ReasoningConfig 将配置文件中的推理配置转换为 llm.Config
func ReasoningConfig(rc config.ReasoningConfig) llm.Config {
	return llm.Config{
		Provider: rc.Provider,
		HTTP: llm.HTTPConfig{
			Endpoint: rc.Endpoint,
			APIKey:   rc.APIKey,
			Model:    rc.Model,
			Timeout:  config.ParseDuration(rc.Timeout, 60*time.Second),
		},
		Retry: llm.RetryConfig{
			MaxAttempts:     rc.Retry.MaxAttempts,
			InitialInterval: config.ParseDuration(rc.Retry.InitialInterval, 500*time.Millisecond),
			MaxInterval:     config.ParseDuration(rc.Retry.MaxInterval, 5*time.Second),
		},
		Limit: llm.LimitConfig{
			RequestsPerMinute: rc.RateLimit.RequestsPerMinute,
			MaxConcurrent:     rc.RateLimit.MaxConcurrent,
		},
	}
}

// resolveSecrets 将凭据字段中的 secret:// 引用替换为实际值
func resolveSecrets(ctx context.Context, store secrets.Store, cfg *config.Config) error {
	fields := map[string]*string{
		"reasoning.api_key":      &cfg.Reasoning.APIKey,
		"reasoning.endpoint":     &cfg.Reasoning.Endpoint,
		"prompts.dsn":            &cfg.Prompts.DSN,
		"prompts.key":            &cfg.Prompts.Key,
		"prompts.cache.password": &cfg.Prompts.Cache.Password,
		"api.middleware.jwt_key": &cfg.API.Middleware.JWTKey,
	}
	for name, field := range fields {
		if !secrets.IsRef(*field) {
			continue
		}
		v, err := secrets.Resolve(ctx, store, *field)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = v
	}
	return nil
}

// NewEngine 用 bootstrap 中的依赖为一组 step 创建引擎
func (b *Bootstrap) NewEngine(steps []*pipeline.Step, opts ...pipeline.Option) *pipeline.Engine {
	base := []pipeline.Option{
		pipeline.WithLogger(b.Logger.Logger),
		pipeline.WithValidator(b.Validator),
	}
	return pipeline.NewEngine(steps, b.Prompts, b.Reasoning, append(base, opts...)...)
}

// RunTimeout 单次 pipeline 运行超时，未配置时为 5 分钟
func (b *Bootstrap) RunTimeout() time.Duration {
	return config.ParseDuration(b.Config.API.Timeout, 5*time.Minute)
}

// Close 释放 prompt 存储与日志文件
func (b *Bootstrap) Close() error {
	var errs []error
	if b.Prompts != nil {
		errs = append(errs, b.Prompts.Close())
	}
	if b.Logger != nil {
		errs = append(errs, b.Logger.Close())
	}
	return errors.Join(errs...)
}
