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
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/pkg/config"
)

func sampleSnapshot(sessionID string) *ProjectSnapshot {
	st := State{
		SessionState: map[string]any{"tempo": 126.0, "name": "demo"},
		TrackList:    []map[string]any{{"name": "Drums", "type": "instrument"}},
		Payload:      []byte(`{"name":"demo","tempo":126}`),
	}
	return &ProjectSnapshot{
		ID:           "snap-" + uuid.New().String(),
		SessionID:    sessionID,
		Label:        "test",
		TimestampMs:  time.Now().UnixMilli(),
		SessionState: st.SessionState,
		TrackList:    st.TrackList,
		ContentHash:  HashState(st),
		Payload:      st.Payload,
	}
}

func TestNewPersister_Types(t *testing.T) {
	ctx := context.Background()
	p, err := NewPersister(ctx, config.PersistConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewPersister(ctx, config.PersistConfig{Type: "redis"})
	assert.Error(t, err)
	_, err = NewPersister(ctx, config.PersistConfig{Type: "postgres"})
	assert.Error(t, err)
	_, err = NewPersister(ctx, config.PersistConfig{Type: "s3"})
	assert.Error(t, err)
}

func TestRedisPersister_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	p, err := NewRedisPersister(ctx, addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer p.Close()

	snap := sampleSnapshot("sess-redis")
	require.NoError(t, p.Save(ctx, snap))
	got, err := p.Load(ctx, snap.SessionID, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ContentHash, got.ContentHash)
	assert.JSONEq(t, string(snap.Payload), string(got.Payload))

	missing, err := p.Load(ctx, snap.SessionID, "snap-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgresPersister_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	p, err := NewPostgresPersister(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()

	snap := sampleSnapshot("sess-pg")
	require.NoError(t, p.Save(ctx, snap))
	// 重复写入不报错
	require.NoError(t, p.Save(ctx, snap))

	got, err := p.Load(ctx, snap.SessionID, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ContentHash, got.ContentHash)
	assert.Equal(t, 126.0, got.SessionState["tempo"])
	assert.Equal(t, HashState(State{SessionState: got.SessionState, TrackList: got.TrackList}), got.ContentHash)

	missing, err := p.Load(ctx, "sess-pg", "snap-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
