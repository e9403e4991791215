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
package tools

import (
	"context"
	"fmt"
	"strings"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

type executeFunc func(ctx context.Context, proj *project.Project, params *toolcall.Params) (Output, error)

// builtinTool 以函数实现的内置工具
type builtinTool struct {
	name   string
	desc   string
	schema map[string]any
	cap    *capability.Capability
	fn     executeFunc
}

func (b *builtinTool) Name() string           { return b.name }
func (b *builtinTool) Description() string    { return b.desc }
func (b *builtinTool) Schema() map[string]any { return b.schema }

func (b *builtinTool) Execute(ctx context.Context, proj *project.Project, params *toolcall.Params) (Output, error) {
	return b.fn(ctx, proj, params)
}

// capabilityTool 额外声明能力条目的内置工具
type capabilityTool struct {
	*builtinTool
}

func (c capabilityTool) Capability() capability.Capability { return *c.cap }

func newTool(name, desc string, schema map[string]any, c *capability.Capability, fn executeFunc) Tool {
	b := &builtinTool{name: name, desc: desc, schema: schema, cap: c, fn: fn}
	if c != nil {
		c.Name = name
		return capabilityTool{b}
	}
	return b
}

// RegisterBuiltin 注册全部内置工具
func RegisterBuiltin(reg *Registry) {
	if reg == nil {
		return
	}
	for _, t := range builtinTools() {
		reg.Register(t)
	}
}

func builtinTools() []Tool {
	return []Tool{
		newReadProject(),
		newSetTempo(),
		newSetTimeSignature(),
		newCreateSection(),
		newCreateTrack(),
		newModifyTrack(),
		newMixerControl(),
		newAddEffect(),
		newCreateMIDIClip(),
		newWriteNotes(),
		newMoveClip(),
		newDuplicateClip(),
		newQuantizeNotes(),
	}
}

// objectSchema 构造 JSON Schema 对象
func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

// trackParam 兼容 track_name 与 track 两种写法
func trackParam(p *toolcall.Params) string {
	if s := p.StringOr("track_name", ""); s != "" {
		return s
	}
	return p.StringOr("track", "")
}

func trackNotFound(s *project.State, name string) error {
	names := s.TrackNames()
	if len(names) == 0 {
		return fmt.Errorf("Track not found: %q (no tracks in project)", name)
	}
	return fmt.Errorf("Track not found: %q (available tracks: %s)", name, strings.Join(names, ", "))
}

func trackTarget(name string) string {
	return "track:" + name
}

func clipTarget(track string, idx int) string {
	return fmt.Sprintf("track:%s/clip:%d", track, idx)
}
