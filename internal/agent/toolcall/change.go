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

package toolcall

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// 变更类型
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// ChangeOperation 单条工具产生的变更；Rollback 为针对 Target 的逆操作记录
type ChangeOperation struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Target      string         `json:"target"`
	Changes     map[string]any `json:"changes"`
	Rollback    map[string]any `json:"rollback_data"`
	ContentHash string         `json:"content_hash"`
}

// NewChange 构造变更记录，rollback 为 nil 时写入空对象
func NewChange(typ, target string, changes, rollback map[string]any) ChangeOperation {
	if changes == nil {
		changes = map[string]any{}
	}
	if rollback == nil {
		rollback = map[string]any{}
	}
	op := ChangeOperation{
		ID:       "chg-" + uuid.New().String(),
		Type:     typ,
		Target:   target,
		Changes:  changes,
		Rollback: rollback,
	}
	op.ContentHash = ContentHash(map[string]any{
		"type":    typ,
		"target":  target,
		"changes": changes,
	})
	return op
}

// ContentHash 对值的规范 JSON（map 键有序）求 SHA-256
func ContentHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}
