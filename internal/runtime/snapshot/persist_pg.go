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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS project_snapshots (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL,
    label         TEXT NOT NULL DEFAULT '',
    timestamp_ms  BIGINT NOT NULL,
    content_hash  TEXT NOT NULL,
    session_state JSONB NOT NULL,
    track_list    JSONB NOT NULL,
    payload       JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_project_snapshots_session ON project_snapshots (session_id, created_at DESC);
`

// PostgresPersister 基于 pgxpool 的快照持久化
type PostgresPersister struct {
	pool *pgxpool.Pool
}

// NewPostgresPersister 创建连接池并确保表存在
func NewPostgresPersister(ctx context.Context, dsn string) (*PostgresPersister, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresPersister{pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema 建表
func (p *PostgresPersister) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, snapshotSchema)
	return err
}

// Save 写入快照（幂等）
func (p *PostgresPersister) Save(ctx context.Context, snap *ProjectSnapshot) error {
	state, err := json.Marshal(snap.SessionState)
	if err != nil {
		return err
	}
	tracks, err := json.Marshal(snap.TrackList)
	if err != nil {
		return err
	}
	var payload []byte
	if len(snap.Payload) > 0 {
		payload = snap.Payload
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO project_snapshots (id, session_id, label, timestamp_ms, content_hash, session_state, track_list, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		snap.ID, snap.SessionID, snap.Label, snap.TimestampMs, snap.ContentHash, state, tracks, payload,
	)
	return err
}

// Load 读取快照，不存在返回 nil, nil
func (p *PostgresPersister) Load(ctx context.Context, sessionID, id string) (*ProjectSnapshot, error) {
	var (
		snap          ProjectSnapshot
		state, tracks []byte
		payload       []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, session_id, label, timestamp_ms, content_hash, session_state, track_list, payload
		 FROM project_snapshots WHERE session_id = $1 AND id = $2`,
		sessionID, id,
	).Scan(&snap.ID, &snap.SessionID, &snap.Label, &snap.TimestampMs, &snap.ContentHash, &state, &tracks, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(state, &snap.SessionState); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tracks, &snap.TrackList); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		snap.Payload = json.RawMessage(payload)
	}
	return &snap, nil
}

// Close 关闭连接池
func (p *PostgresPersister) Close() error {
	p.pool.Close()
	return nil
}
