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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/app"
	"arrange-orchestrator/pkg/config"
)

func TestNewApp_RulePlanner(t *testing.T) {
	cfg := &config.Config{}
	cfg.Planner.Type = "rule"
	b, err := app.NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)

	a, err := NewApp(b)
	require.NoError(t, err)
	assert.Equal(t, "rule", a.Orchestrator().Planner().Name())

	sess, err := a.Orchestrator().CreateSession(context.Background())
	require.NoError(t, err)
	res, err := a.Orchestrator().ProcessIntent(context.Background(), sess.ID, "trance beat")
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	require.NoError(t, a.Shutdown(context.Background()))
}
