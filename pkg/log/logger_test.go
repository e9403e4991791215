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

package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_JSONAndText(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info"})
	l.Info("sequence finished", "state", "succeeded")
	assert.Contains(t, buf.String(), `"state":"succeeded"`)

	buf.Reset()
	l = NewWithWriter(&buf, &Config{Level: "info", Format: "text"})
	l.With("session_id", "s1").Info("hello")
	assert.Contains(t, buf.String(), "session_id=s1")

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.log")
	l, err := NewLogger(&Config{Level: "debug", File: path})
	require.NoError(t, err)
	l.Debug("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	assert.NoError(t, l.Close())
}
