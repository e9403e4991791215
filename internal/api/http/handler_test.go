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

package http

import (
	"context"
	"fmt"
	"testing"

	"arrange-orchestrator/pkg/errors"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.Wrap(errors.ErrNotFound, "session x"), 404},
		{errors.Wrapf(errors.ErrInvalidArg, "bad role"), 400},
		{errors.Wrap(errors.ErrBusy, "executing"), 409},
		{errors.ErrUnavailable, 503},
		{context.DeadlineExceeded, 408},
		{fmt.Errorf("boom"), 500},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Errorf("statusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
