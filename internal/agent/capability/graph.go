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
// Package capability 描述工具的前置条件、效果与依赖，用于序列校验与前置步骤补全。
package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"arrange-orchestrator/internal/agent/toolcall"
)

// Capability 单个工具的能力声明
type Capability struct {
	Name          string   `json:"name"`
	Requires      []string `json:"requires"`
	Effects       []string `json:"effects"`
	Complexity    int      `json:"complexity"`
	EstimatedCost float64  `json:"estimated_cost"`
	DependsOn     []string `json:"depends_on"`
}

// effectSatisfies 效果标签到前置条件标签的映射；同名标签总是满足自身
var effectSatisfies = map[string]string{
	"new_track":     "track_exists",
	"new_clip":      "clip_exists",
	"notes_written": "notes_exist",
	"effect_added":  "effect_exists",
	"project_tempo": "tempo_set",
}

// trackScoped 这些前置条件按目标轨道区分；调用未指明轨道时退化为全局判断
var trackScoped = map[string]bool{
	"track_exists": true,
	"clip_exists":  true,
	"notes_exist":  true,
}

// ScopedTag 轨道限定标签，形如 track_exists@Drums
func ScopedTag(tag, track string) string {
	return tag + "@" + track
}

// SatisfiedBy 返回某效果标签满足的前置条件标签集合
func SatisfiedBy(effect string) []string {
	if mapped, ok := effectSatisfies[effect]; ok {
		return []string{effect, mapped}
	}
	return []string{effect}
}

// PreconditionError 序列中第一个前置条件不满足的位置
type PreconditionError struct {
	Index   int
	Tool    string
	Missing []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("step %d (%s): unmet preconditions %s", e.Index, e.Tool, strings.Join(e.Missing, ", "))
}

// PrerequisiteBuilder 为 forCall 构造前置工具 tool 的调用
type PrerequisiteBuilder func(tool string, forCall toolcall.Call) toolcall.Call

// Graph 工具能力与兼容关系图，可并发读
type Graph struct {
	mu       sync.RWMutex
	caps     map[string]Capability
	order    []string
	compat   map[string]map[string]bool
	declared map[string]map[string]bool
	critical map[string]bool
	builder  PrerequisiteBuilder
}

// NewGraph 创建空图
func NewGraph() *Graph {
	return &Graph{
		caps:     make(map[string]Capability),
		compat:   make(map[string]map[string]bool),
		declared: make(map[string]map[string]bool),
		critical: make(map[string]bool),
		builder:  DefaultPrerequisite,
	}
}

// Register 注册或覆盖工具能力，并重新推导兼容关系
func (g *Graph) Register(c Capability) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.caps[c.Name]; !exists {
		g.order = append(g.order, c.Name)
	}
	g.caps[c.Name] = c
	g.deriveLocked()
}

// Declare 显式声明 a -> b 兼容，不依赖效果推导
func (g *Graph) Declare(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declared[a] == nil {
		g.declared[a] = make(map[string]bool)
	}
	g.declared[a][b] = true
	g.deriveLocked()
}

// deriveLocked a 的某个效果满足 b 的某个前置条件时 a -> b 兼容
func (g *Graph) deriveLocked() {
	compat := make(map[string]map[string]bool, len(g.caps))
	for _, a := range g.caps {
		satisfied := make(map[string]bool)
		for _, eff := range a.Effects {
			for _, tag := range SatisfiedBy(eff) {
				satisfied[tag] = true
			}
		}
		for _, b := range g.caps {
			for _, req := range b.Requires {
				if satisfied[req] {
					if compat[a.Name] == nil {
						compat[a.Name] = make(map[string]bool)
					}
					compat[a.Name][b.Name] = true
					break
				}
			}
		}
	}
	for a, bs := range g.declared {
		for b := range bs {
			if compat[a] == nil {
				compat[a] = make(map[string]bool)
			}
			compat[a][b] = true
		}
	}
	g.compat = compat
}

// SetPrerequisiteBuilder 替换前置调用构造器
func (g *Graph) SetPrerequisiteBuilder(b PrerequisiteBuilder) {
	if b == nil {
		return
	}
	g.mu.Lock()
	g.builder = b
	g.mu.Unlock()
}

// MarkCritical 标记关键工具
func (g *Graph) MarkCritical(names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range names {
		g.critical[n] = true
	}
}

// IsCritical 是否为关键工具
func (g *Graph) IsCritical(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.critical[name]
}

// Get 按名称获取能力
func (g *Graph) Get(name string) (Capability, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.caps[name]
	return c, ok
}

// List 按注册顺序返回所有能力
func (g *Graph) List() []Capability {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Capability, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.caps[n])
	}
	return out
}

// DependenciesOf 返回工具声明的依赖；未注册的工具返回 nil
func (g *Graph) DependenciesOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.caps[name]
	if !ok || len(c.DependsOn) == 0 {
		return nil
	}
	return append([]string(nil), c.DependsOn...)
}

// AreCompatible a 的效果是否满足 b 的前置条件；未推导也未声明的组合视为不兼容
func (g *Graph) AreCompatible(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.compat[a][b]
}

// Compatible 返回与 a 兼容的后继工具（字典序）
func (g *Graph) Compatible(a string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.compat[a]))
	for b := range g.compat[a] {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// EstimateCost 序列预估成本之和；未注册工具计 0
func (g *Graph) EstimateCost(seq toolcall.Sequence) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var total float64
	for _, c := range seq {
		total += g.caps[c.Name].EstimatedCost
	}
	return total
}

// ValidateToolSequence 序列是否满足所有前置条件（初始状态为空）
func (g *Graph) ValidateToolSequence(seq toolcall.Sequence) bool {
	return g.Validate(seq) == nil
}

// Validate 从左到右累积已满足标签，返回第一个前置条件不满足的步骤。
// initial 为项目当前已满足的标签（如已有轨道时传 track_exists 与 track_exists@<轨道名>）。
// 指明了轨道的调用只认该轨道的限定标签。
// 未注册的工具不声明前置条件与效果。
func (g *Graph) Validate(seq toolcall.Sequence, initial ...string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	satisfied := newTagSet(initial)
	for i, call := range seq {
		c, ok := g.caps[call.Name]
		if !ok {
			continue
		}
		track := TrackScope(call)
		if missing := satisfied.missing(c.Requires, track); len(missing) > 0 {
			return &PreconditionError{Index: i, Tool: call.Name, Missing: missing}
		}
		satisfied.apply(c.Effects, track)
	}
	return nil
}

// OptimizeToolExecution 在需要的调用之前插入缺失的前置调用（按 DependsOn 递归）。
// 效果已满足的前置不会插入，因此对结果再次优化得到相同序列。
func (g *Graph) OptimizeToolExecution(seq toolcall.Sequence, initial ...string) toolcall.Sequence {
	g.mu.RLock()
	defer g.mu.RUnlock()
	satisfied := newTagSet(initial)
	out := make(toolcall.Sequence, 0, len(seq))
	for _, call := range seq {
		out = g.ensureLocked(out, call, satisfied, map[string]bool{})
		out = append(out, call)
		if c, ok := g.caps[call.Name]; ok {
			satisfied.apply(c.Effects, TrackScope(call))
		}
	}
	return out
}

func (g *Graph) ensureLocked(out toolcall.Sequence, call toolcall.Call, satisfied tagSet, visiting map[string]bool) toolcall.Sequence {
	c, ok := g.caps[call.Name]
	if !ok || visiting[call.Name] {
		return out
	}
	visiting[call.Name] = true
	defer delete(visiting, call.Name)
	track := TrackScope(call)
	for _, req := range c.Requires {
		if satisfied.has(req, track) {
			continue
		}
		provider, ok := g.providerLocked(c, req)
		if !ok {
			continue
		}
		pre := g.builder(provider, call)
		pre.Origin = toolcall.OriginPrerequisite
		if pre.Reasoning == "" {
			pre.Reasoning = "prerequisite for " + call.Name
		}
		out = g.ensureLocked(out, pre, satisfied, visiting)
		out = append(out, pre)
		satisfied.apply(g.caps[provider].Effects, TrackScope(pre))
	}
	return out
}

// providerLocked 在 DependsOn 中找到效果能满足 req 的工具
func (g *Graph) providerLocked(c Capability, req string) (string, bool) {
	for _, dep := range c.DependsOn {
		d, ok := g.caps[dep]
		if !ok {
			continue
		}
		for _, eff := range d.Effects {
			for _, tag := range SatisfiedBy(eff) {
				if tag == req {
					return dep, true
				}
			}
		}
	}
	return "", false
}

type tagSet map[string]bool

func newTagSet(initial []string) tagSet {
	s := make(tagSet, len(initial))
	for _, t := range initial {
		for _, tag := range SatisfiedBy(t) {
			s[tag] = true
		}
	}
	return s
}

func (s tagSet) has(req, track string) bool {
	if track != "" && trackScoped[req] {
		return s[ScopedTag(req, track)]
	}
	return s[req]
}

func (s tagSet) missing(reqs []string, track string) []string {
	var out []string
	for _, r := range reqs {
		if !s.has(r, track) {
			out = append(out, r)
		}
	}
	return out
}

func (s tagSet) apply(effects []string, track string) {
	for _, eff := range effects {
		for _, tag := range SatisfiedBy(eff) {
			s[tag] = true
			if track != "" && trackScoped[tag] {
				s[ScopedTag(tag, track)] = true
			}
		}
	}
}
