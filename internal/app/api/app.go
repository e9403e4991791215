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
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"arrange-orchestrator/internal/agent"
	"arrange-orchestrator/internal/agent/executor"
	"arrange-orchestrator/internal/agent/planner"
	"arrange-orchestrator/internal/agent/tools"
	"arrange-orchestrator/internal/api/http"
	"arrange-orchestrator/internal/api/http/middleware"
	"arrange-orchestrator/internal/app"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/pkg/config"
	"arrange-orchestrator/pkg/log"
	"arrange-orchestrator/pkg/tracing"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 Orchestrator、Router、Handler、Middleware）
type App struct {
	config       *app.Bootstrap
	orch         *agent.Orchestrator
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	pl, err := planner.New(cfg.Planner, bootstrap.Logger)
	if err != nil {
		return nil, fmt.Errorf("初始化规划器失败: %w", err)
	}
	bootstrap.Logger.Info("规划器已就绪", "planner", pl.Name())

	execOpts := executor.OptionsFromConfig(cfg)
	execOpts.Logger = bootstrap.Logger
	orch := agent.New(
		session.NewManager(session.NewMemoryStore(), cfg.Executor.RecentActions),
		tools.NewBuiltinRegistry(),
		pl,
		agent.Options{
			Executor:     execOpts,
			MaxSnapshots: cfg.Snapshot.MaxSnapshots,
			Persister:    bootstrap.Persister,
			Logger:       bootstrap.Logger,
		},
	)

	handler := http.NewHandler(orch)
	router := http.NewRouter(handler, middleware.NewMiddleware(cfg.API.CORS))
	return &App{config: bootstrap, orch: orch, router: router}, nil
}

// Orchestrator 编排器
func (a *App) Orchestrator() *agent.Orchestrator { return a.orch }

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	cfg := a.config.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tr := cfg.Monitoring.Tracing
	endpoint := tr.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tr.Enable && endpoint != "" {
		serviceName := tr.ServiceName
		if serviceName == "" {
			serviceName = "arrange-orchestrator"
		}
		if err := a.initTracing(serviceName, endpoint, tr); err != nil {
			return err
		}
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", endpoint, "exporter", tr.Exporter)
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// initTracing provider 走 hertz-contrib 的 OTLP gRPC；otlphttp 走 pkg/tracing
func (a *App) initTracing(serviceName, endpoint string, tr config.TracingConfig) error {
	if tr.Exporter == "otlphttp" {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: endpoint,
			Insecure:       tr.Insecure,
		})
		if err != nil {
			return fmt.Errorf("初始化链路追踪失败: %w", err)
		}
		a.otelProvider = tp
		return nil
	}
	opts := []provider.Option{
		provider.WithServiceName(serviceName),
		provider.WithExportEndpoint(endpoint),
	}
	if tr.Insecure {
		opts = append(opts, provider.WithInsecure())
	}
	a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
	return nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.config.Close()
}
