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
	"fmt"

	"arrange-orchestrator/internal/runtime/snapshot"
	"arrange-orchestrator/pkg/config"
	"arrange-orchestrator/pkg/log"
)

// Bootstrap 统一初始化：日志与快照持久化，供 cmd 层复用
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Persister snapshot.Persister
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var persister snapshot.Persister
	if cfg != nil {
		persister, err = snapshot.NewPersister(ctx, cfg.Snapshot.Persist)
		if err != nil {
			return nil, fmt.Errorf("初始化快照持久化失败: %w", err)
		}
		if persister != nil {
			logger.Info("快照持久化已启用", "type", cfg.Snapshot.Persist.Type)
		}
	}

	return &Bootstrap{Config: cfg, Logger: logger, Persister: persister}, nil
}

// Close 释放持久化连接与日志文件
func (b *Bootstrap) Close() error {
	var first error
	if b.Persister != nil {
		first = b.Persister.Close()
	}
	if err := b.Logger.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
