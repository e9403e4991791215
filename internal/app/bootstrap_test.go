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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/pkg/config"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	b, err := NewBootstrap(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.NotNil(t, b.Logger)
	assert.Nil(t, b.Persister)
	assert.NoError(t, b.Close())
}

func TestNewBootstrap_UnknownPersister(t *testing.T) {
	cfg := &config.Config{}
	cfg.Snapshot.Persist.Type = "cassandra"
	_, err := NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)
}
