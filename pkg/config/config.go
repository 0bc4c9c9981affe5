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

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Reasoning  ReasoningConfig  `mapstructure:"reasoning"`
	Prompts    PromptsConfig    `mapstructure:"prompts"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"` // 单次 pipeline 运行的超时，如 "2m"
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool              `mapstructure:"auth"`
	RateLimit     bool              `mapstructure:"rate_limit"`
	RateLimitRPS  int               `mapstructure:"rate_limit_rps"`
	JWTKey        string            `mapstructure:"jwt_key"`
	JWTTimeout    string            `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string            `mapstructure:"jwt_max_refresh"` // 如 "1h"
	Users         map[string]string `mapstructure:"users"`           // 登录账号 -> 密码，仅 auth 开启时使用
}

// ReasoningConfig 推理服务（LLM 后端）配置
type ReasoningConfig struct {
	Provider       string          `mapstructure:"provider"` // gemini | openai
	Endpoint       string          `mapstructure:"endpoint"`
	APIKey         string          `mapstructure:"api_key"`
	Model          string          `mapstructure:"model"`
	Timeout        string          `mapstructure:"timeout"`
	ValidateOutput bool            `mapstructure:"validate_output"` // 按 prompt 的 function_schema 校验输出
	Retry          RetryConfig     `mapstructure:"retry"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RetryConfig 推理调用重试配置，仅对瞬时传输错误生效
type RetryConfig struct {
	MaxAttempts     int    `mapstructure:"max_attempts"` // 含首次，1 表示不重试
	InitialInterval string `mapstructure:"initial_interval"`
	MaxInterval     string `mapstructure:"max_interval"`
}

// RateLimitConfig 推理调用限流配置，0 表示不限制
type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// PromptsConfig prompt 存储配置
type PromptsConfig struct {
	Type     string      `mapstructure:"type"` // memory | postgres | supabase，空则按 url 推断
	DSN      string      `mapstructure:"dsn"`  // type=postgres 时必填
	PoolSize int         `mapstructure:"pool_size"`
	URL      string      `mapstructure:"url"` // type=supabase 时必填
	Key      string      `mapstructure:"key"`
	Table    string      `mapstructure:"table"`
	SeedFile string      `mapstructure:"seed_file"`
	Cache    CacheConfig `mapstructure:"cache"`
}

// CacheConfig prompt 读缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // none | memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"`
}

// SecretsConfig 凭证解析配置，形如 secret://key 的值通过该 provider 读取
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// legacyEnv 早期部署使用的环境变量名，显式绑定以保持兼容
var legacyEnv = map[string][]string{
	"reasoning.endpoint": {"REASONING_ENDPOINT", "GEMINI_API_URL"},
	"reasoning.api_key":  {"REASONING_API_KEY", "GEMINI_API_KEY"},
	"prompts.url":        {"PROMPTS_URL", "SUPABASE_URL"},
	"prompts.key":        {"PROMPTS_KEY", "SUPABASE_KEY"},
	"api.port":           {"API_PORT", "PORT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 4000)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.timeout", "5m")
	v.SetDefault("api.cors.enable", true)
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.auth", false)
	v.SetDefault("api.middleware.rate_limit", false)
	v.SetDefault("api.middleware.rate_limit_rps", 50)
	v.SetDefault("api.middleware.jwt_key", "")
	v.SetDefault("api.middleware.jwt_timeout", "1h")
	v.SetDefault("api.middleware.jwt_max_refresh", "1h")
	v.SetDefault("api.grpc.enable", false)
	v.SetDefault("api.grpc.port", 9090)

	v.SetDefault("reasoning.provider", "gemini")
	v.SetDefault("reasoning.endpoint", "")
	v.SetDefault("reasoning.api_key", "")
	v.SetDefault("reasoning.model", "")
	v.SetDefault("reasoning.timeout", "60s")
	v.SetDefault("reasoning.validate_output", false)
	v.SetDefault("reasoning.retry.max_attempts", 3)
	v.SetDefault("reasoning.retry.initial_interval", "500ms")
	v.SetDefault("reasoning.retry.max_interval", "5s")
	v.SetDefault("reasoning.rate_limit.requests_per_minute", 0)
	v.SetDefault("reasoning.rate_limit.max_concurrent", 0)

	v.SetDefault("prompts.type", "")
	v.SetDefault("prompts.dsn", "")
	v.SetDefault("prompts.pool_size", 5)
	v.SetDefault("prompts.url", "")
	v.SetDefault("prompts.key", "")
	v.SetDefault("prompts.table", "prompts")
	v.SetDefault("prompts.seed_file", "")
	v.SetDefault("prompts.cache.type", "none")
	v.SetDefault("prompts.cache.addr", "localhost:6379")
	v.SetDefault("prompts.cache.db", 0)
	v.SetDefault("prompts.cache.password", "")
	v.SetDefault("prompts.cache.ttl", "5m")

	v.SetDefault("secrets.provider", "env")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.enable", false)
	v.SetDefault("monitoring.tracing.service_name", "agent-pipeline")
	v.SetDefault("monitoring.tracing.export_endpoint", "localhost:4318")
	v.SetDefault("monitoring.tracing.insecure", true)
}

// LoadConfig 加载配置文件；文件不存在或不可解析时返回错误
func LoadConfig(configPath string) (*Config, error) {
	return load(configPath, false)
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml），文件缺失时仅使用默认值与环境变量
func LoadAPIConfig() (*Config, error) {
	path := os.Getenv("AGENT_PIPELINE_CONFIG")
	if path == "" {
		path = "configs/api.yaml"
	}
	return load(path, true)
}

// Default 返回仅由默认值与环境变量构成的配置
func Default() (*Config, error) {
	return load("", true)
}

func load(configPath string, optional bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !optional || !isMissingFile(err) {
				return nil, fmt.Errorf("无法读取配置文件: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	replaceEnvVars(&config)

	if config.Prompts.Type == "" {
		if config.Prompts.URL != "" {
			config.Prompts.Type = "supabase"
		} else {
			config.Prompts.Type = "memory"
		}
	}
	return &config, nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// replaceEnvVars 将凭证类字段中的 ${VAR} 占位符替换为环境变量值；变量未设置时保留原值
func replaceEnvVars(config *Config) {
	fields := []*string{
		&config.Reasoning.Endpoint,
		&config.Reasoning.APIKey,
		&config.Prompts.DSN,
		&config.Prompts.URL,
		&config.Prompts.Key,
		&config.Prompts.Cache.Password,
		&config.API.Middleware.JWTKey,
	}
	for _, f := range fields {
		*f = expandEnvRef(*f)
	}
	for k, val := range config.Secrets.Config {
		config.Secrets.Config[k] = expandEnvRef(val)
	}
	for k, val := range config.API.Middleware.Users {
		config.API.Middleware.Users[k] = expandEnvRef(val)
	}
}

func expandEnvRef(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// ParseDuration 解析配置中的时长字符串，为空或非法时返回 def
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
