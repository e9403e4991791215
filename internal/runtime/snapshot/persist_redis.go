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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister 以 JSON 形式把快照写入 Redis
type RedisPersister struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPersister 连接 Redis 并校验可用
func NewRedisPersister(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPersister{client: client, ttl: ttlOrZero(ttl)}, nil
}

func redisKey(sessionID, id string) string {
	return "snapshot:" + sessionID + ":" + id
}

// Save 写入快照；快照不可变，已存在时不覆盖
func (p *RedisPersister) Save(ctx context.Context, snap *ProjectSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.client.SetNX(ctx, redisKey(snap.SessionID, snap.ID), data, p.ttl).Err()
}

// Load 读取快照
func (p *RedisPersister) Load(ctx context.Context, sessionID, id string) (*ProjectSnapshot, error) {
	data, err := p.client.Get(ctx, redisKey(sessionID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snap ProjectSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close 关闭连接
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
