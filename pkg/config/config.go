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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ExecutorConfig 工具序列执行器配置
type ExecutorConfig struct {
	StepTimeout       string `mapstructure:"step_timeout"`       // 单步超时，如 "30s"，空则默认 30s
	StepDelay         string `mapstructure:"step_delay"`         // 步骤间延迟，如 "100ms"，空则默认 100ms
	BreakerThreshold  int    `mapstructure:"breaker_threshold"`  // 会话累计错误数超过该值即熔断，<=0 默认 5
	RecoveryThreshold int    `mapstructure:"recovery_threshold"` // 错误数不超过该值才尝试恢复，<=0 默认 3
	RecentActions     int    `mapstructure:"recent_actions"`     // recentActions 上限，<=0 默认 20
}

// SnapshotConfig 快照存储配置
type SnapshotConfig struct {
	MaxSnapshots int           `mapstructure:"max_snapshots"` // 每会话保留的快照数（LRU），<=0 默认 64
	Persist      PersistConfig `mapstructure:"persist"`
}

// PersistConfig 快照持久化配置
type PersistConfig struct {
	Type     string `mapstructure:"type"` // none | redis | postgres
	DSN      string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
	Addr     string `mapstructure:"addr"` // Redis 地址，type=redis 时必填
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      string `mapstructure:"ttl"` // Redis 过期时间，如 "24h"，空则不过期
}

// PlannerConfig 规划器配置
type PlannerConfig struct {
	Type       string `mapstructure:"type"` // llm | rule
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"` // <=0 默认 3
	Backoff    string `mapstructure:"backoff"`     // 第 n 次失败后等待 n*backoff，空则默认 1s
	Timeout    string `mapstructure:"timeout"`

	// LLM 调用限流
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	MaxConcurrent     int `mapstructure:"max_concurrent"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	Tools map[string]ToolRateLimitConfig `mapstructure:"tools"`
}

// ToolRateLimitConfig 单个 Tool 的限流配置
type ToolRateLimitConfig struct {
	QPS           float64 `mapstructure:"qps"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	Burst         int     `mapstructure:"burst"`
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
	Exporter       string `mapstructure:"exporter"` // provider（OTLP gRPC，默认）| otlphttp
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// 默认值
const (
	DefaultStepTimeout  = 30 * time.Second
	DefaultStepDelay    = 100 * time.Millisecond
	DefaultBackoff      = time.Second
	DefaultMaxSnapshots = 64
)

// envFiles 启动时按序加载的 dotenv 文件，已存在的环境变量不会被覆盖
var envFiles = []string{".env", ".envs"}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	replaceEnvVars(&config)

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// replaceEnvVars 替换配置中的 ${VAR} 形式的密钥
func replaceEnvVars(config *Config) {
	config.Planner.APIKey = expandEnv(config.Planner.APIKey)
	config.Snapshot.Persist.DSN = expandEnv(config.Snapshot.Persist.DSN)
	config.Snapshot.Persist.Password = expandEnv(config.Snapshot.Persist.Password)
	if config.Planner.APIKey == "" {
		config.Planner.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return ""
}

// ParseDuration 解析配置中的时长，空或非法时返回 def
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
