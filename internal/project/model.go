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
// Package project 内存中的多轨编曲模型：轨道、MIDI 片段、音符、效果与段落。
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// TicksPerBar 4/4 拍下每小节的 tick 数
const TicksPerBar = 192

// 轨道类型
const (
	TrackInstrument = "instrument"
	TrackSample     = "sample"
)

// Note 单个 MIDI 音符
type Note struct {
	Key         int `json:"key"`
	Velocity    int `json:"velocity"`
	StartTicks  int `json:"start_ticks"`
	LengthTicks int `json:"length_ticks"`
}

// Clip MIDI 片段
type Clip struct {
	StartTicks  int    `json:"start_ticks"`
	LengthTicks int    `json:"length_ticks"`
	Notes       []Note `json:"notes"`
}

// Track 轨道
type Track struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Instrument string   `json:"instrument,omitempty"`
	Muted      bool     `json:"muted"`
	Solo       bool     `json:"solo"`
	Volume     float64  `json:"volume"`
	Pan        float64  `json:"pan"`
	Clips      []Clip   `json:"clips"`
	Effects    []string `json:"effects"`
}

// Section 命名段落（如 intro、drop）
type Section struct {
	Name        string `json:"name"`
	StartTicks  int    `json:"start_ticks"`
	LengthTicks int    `json:"length_ticks"`
}

// State 编曲完整状态
type State struct {
	Name         string    `json:"name"`
	Tempo        float64   `json:"tempo"`
	TimeSigNum   int       `json:"time_sig_numerator"`
	TimeSigDen   int       `json:"time_sig_denominator"`
	MasterVolume float64   `json:"master_volume"`
	Tracks       []Track   `json:"tracks"`
	Sections     []Section `json:"sections"`
}

// TimeSignature 形如 "4/4"
func (s *State) TimeSignature() string {
	return fmt.Sprintf("%d/%d", s.TimeSigNum, s.TimeSigDen)
}

// FindTrack 按名称查找轨道（第一个匹配）
func (s *State) FindTrack(name string) (*Track, bool) {
	for i := range s.Tracks {
		if s.Tracks[i].Name == name {
			return &s.Tracks[i], true
		}
	}
	return nil, false
}

// TrackNames 轨道名列表
func (s *State) TrackNames() []string {
	names := make([]string, len(s.Tracks))
	for i := range s.Tracks {
		names[i] = s.Tracks[i].Name
	}
	return names
}

// FindSection 按名称查找段落
func (s *State) FindSection(name string) (int, bool) {
	for i := range s.Sections {
		if s.Sections[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Clone 深拷贝
func (s State) Clone() State {
	out := s
	out.Tracks = make([]Track, len(s.Tracks))
	for i, t := range s.Tracks {
		ct := t
		ct.Effects = append([]string(nil), t.Effects...)
		ct.Clips = make([]Clip, len(t.Clips))
		for j, c := range t.Clips {
			cc := c
			cc.Notes = append([]Note(nil), c.Notes...)
			ct.Clips[j] = cc
		}
		out.Tracks[i] = ct
	}
	out.Sections = append([]Section(nil), s.Sections...)
	return out
}

// Project 可并发访问的编曲
type Project struct {
	mu    sync.RWMutex
	state State
}

// New 创建空编曲：120 BPM、4/4
func New(name string) *Project {
	if name == "" {
		name = "untitled"
	}
	return &Project{state: State{
		Name:         name,
		Tempo:        120,
		TimeSigNum:   4,
		TimeSigDen:   4,
		MasterVolume: 100,
	}}
}

// State 返回状态副本
func (p *Project) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Update 在副本上执行 fn，fn 成功才提交，失败时状态不变
func (p *Project) Update(fn func(s *State) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	p.state = next
	return nil
}

// UpdateContext 同 Update，提交前检查 ctx；超时或取消后的修改一律丢弃
func (p *Project) UpdateContext(ctx context.Context, fn func(s *State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.state = next
	return nil
}

// Restore 整体覆盖状态
func (p *Project) Restore(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s.Clone()
}

// MarshalState 序列化当前状态
func (p *Project) MarshalState() ([]byte, error) {
	return json.Marshal(p.State())
}

// Summary 供执行上下文使用的状态摘要
func (p *Project) Summary() map[string]any {
	s := p.State()
	clips := 0
	for _, t := range s.Tracks {
		clips += len(t.Clips)
	}
	sections := make([]string, len(s.Sections))
	for i := range s.Sections {
		sections[i] = s.Sections[i].Name
	}
	return map[string]any{
		"name":           s.Name,
		"tempo":          s.Tempo,
		"time_signature": s.TimeSignature(),
		"master_volume":  s.MasterVolume,
		"track_count":    len(s.Tracks),
		"clip_count":     clips,
		"sections":       sections,
	}
}

// Tags 当前状态已满足的能力标签，用于序列校验的初始状态。
// 全局标签在前，随后是每条轨道的限定标签（tag@轨道名）。
func (p *Project) Tags() []string {
	s := p.State()
	var tags, scoped []string
	hasClip, hasNotes := false, false
	for _, t := range s.Tracks {
		scoped = append(scoped, "track_exists@"+t.Name)
		trackNotes := false
		for _, c := range t.Clips {
			if len(c.Notes) > 0 {
				trackNotes = true
			}
		}
		if len(t.Clips) > 0 {
			hasClip = true
			scoped = append(scoped, "clip_exists@"+t.Name)
		}
		if trackNotes {
			hasNotes = true
			scoped = append(scoped, "notes_exist@"+t.Name)
		}
	}
	if len(s.Tracks) > 0 {
		tags = append(tags, "track_exists")
	}
	if hasClip {
		tags = append(tags, "clip_exists")
	}
	if hasNotes {
		tags = append(tags, "notes_exist")
	}
	return append(tags, scoped...)
}

// Instruments 可加载的乐器插件
var Instruments = []string{
	"kicker", "tripleoscillator", "lb302", "bitinvader", "audiofileprocessor",
	"sf2player", "organic", "monstro", "watsyn", "nes", "sid", "opulenz", "zynaddsubfx",
}

// Effects 可添加的效果插件
var Effects = []string{
	"Reverb", "Delay", "EQ", "Compressor", "Bitcrush", "Flanger", "Amplifier", "Stereo Enhancer", "Dynamics Processor",
}

// KnownEffect 效果名是否在目录中（大小写不敏感），返回规范名
func KnownEffect(name string) (string, bool) {
	for _, e := range Effects {
		if strings.EqualFold(e, name) {
			return e, true
		}
	}
	return "", false
}
