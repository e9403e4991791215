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
package snapshot

import (
	"context"
	"fmt"
	"time"

	"arrange-orchestrator/pkg/config"
)

// Persister 快照持久化层；Load 未找到时返回 nil, nil
type Persister interface {
	Save(ctx context.Context, snap *ProjectSnapshot) error
	Load(ctx context.Context, sessionID, id string) (*ProjectSnapshot, error)
	Close() error
}

// NewPersister 按配置创建持久化层；type 为空或 none 时返回 nil
func NewPersister(ctx context.Context, cfg config.PersistConfig) (Persister, error) {
	switch cfg.Type {
	case "", "none", "memory":
		return nil, nil
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("snapshot persist: redis addr 不能为空")
		}
		ttl := config.ParseDuration(cfg.TTL, 0)
		return NewRedisPersister(ctx, cfg.Addr, cfg.Password, cfg.DB, ttl)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("snapshot persist: postgres dsn 不能为空")
		}
		return NewPostgresPersister(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("snapshot persist: 不支持的类型 %q", cfg.Type)
	}
}

// ttlOrZero 负数视为不过期
func ttlOrZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
