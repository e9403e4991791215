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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"arrange-orchestrator/pkg/config"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], newClient(apiBaseURL()), os.Stdin, os.Stdout, os.Stderr))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: arrange <command> [args]")
	fmt.Fprintln(w, "  version                       - 显示版本")
	fmt.Fprintln(w, "  health                        - 健康检查")
	fmt.Fprintln(w, "  config [path]                 - 显示配置概要")
	fmt.Fprintln(w, "  session new|list              - 创建或列出会话")
	fmt.Fprintln(w, "  session reset|delete <id>     - 重置或删除会话")
	fmt.Fprintln(w, "  say <id> [message]            - 发送意图；不带 message 时进入交互模式")
	fmt.Fprintln(w, "  run <id> <file> [--optimize]  - 执行 JSON 文件中的工具序列")
	fmt.Fprintln(w, "  snapshots <id>                - 列出快照")
	fmt.Fprintln(w, "  snapshot <id> [label]         - 捕获快照")
	fmt.Fprintln(w, "  snapshot <id> --show <snap>   - 查看快照")
	fmt.Fprintln(w, "  diff <id> <from> <to>         - 比较两个快照")
	fmt.Fprintln(w, "  revert <id> <snap>            - 回滚到快照")
	fmt.Fprintln(w, "  cancel <id>                   - 取消正在执行的序列")
	fmt.Fprintln(w, "  context <id>                  - 查看执行上下文")
}

// run 执行一条命令并返回退出码
func run(argv []string, c *apiClient, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(argv) < 1 {
		printUsage(stdout)
		return 0
	}
	cmd, args := argv[0], argv[1:]

	// need 检查参数个数，不足时打印用法
	need := func(n int, usage string) bool {
		if len(args) < n {
			fmt.Fprintf(stderr, "Usage: arrange %s\n", usage)
			return false
		}
		return true
	}
	emit := func(v any, err error) int {
		if err != nil {
			fmt.Fprintf(stderr, "%s 失败: %v\n", cmd, err)
			return 1
		}
		fmt.Fprintln(stdout, prettyJSON(v))
		return 0
	}

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, "arrange cli "+version)
		return 0
	case "health":
		return emit(c.health())
	case "config":
		path := "configs/api.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		return runConfig(path, stdout, stderr)
	case "session":
		if !need(1, "session new|list|reset <id>|delete <id>") {
			return 1
		}
		switch args[0] {
		case "new":
			id, err := c.createSession()
			if err != nil {
				return emit(nil, err)
			}
			fmt.Fprintln(stdout, id)
			return 0
		case "list":
			return emit(c.listSessions())
		case "reset", "delete":
			if len(args) < 2 {
				fmt.Fprintf(stderr, "Usage: arrange session %s <id>\n", args[0])
				return 1
			}
			if args[0] == "reset" {
				return emit(c.resetSession(args[1]))
			}
			return emit(c.deleteSession(args[1]))
		}
		fmt.Fprintf(stderr, "unknown session command %q\n", args[0])
		return 1
	case "say":
		if !need(1, "say <id> [message]") {
			return 1
		}
		if len(args) > 1 {
			return emit(c.say(args[0], strings.Join(args[1:], " ")))
		}
		return runChat(c, args[0], stdin, stdout, stderr)
	case "run":
		if !need(2, "run <id> <file> [--optimize]") {
			return 1
		}
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return emit(nil, err)
		}
		seq, err := sequenceFromFile(raw)
		if err != nil {
			return emit(nil, err)
		}
		optimize := len(args) > 2 && args[2] == "--optimize"
		return emit(c.run(args[0], seq, optimize))
	case "snapshots":
		if !need(1, "snapshots <id>") {
			return 1
		}
		return emit(c.snapshots(args[0]))
	case "snapshot":
		if !need(1, "snapshot <id> [label] | snapshot <id> --show <snap>") {
			return 1
		}
		if len(args) > 2 && args[1] == "--show" {
			return emit(c.snapshot(args[0], args[2]))
		}
		label := "manual"
		if len(args) > 1 {
			label = strings.Join(args[1:], " ")
		}
		return emit(c.capture(args[0], label))
	case "diff":
		if !need(3, "diff <id> <from> <to>") {
			return 1
		}
		return emit(c.diff(args[0], args[1], args[2]))
	case "revert":
		if !need(2, "revert <id> <snap>") {
			return 1
		}
		return emit(c.revert(args[0], args[1]))
	case "cancel":
		if !need(1, "cancel <id>") {
			return 1
		}
		return emit(c.cancel(args[0]))
	case "context":
		if !need(1, "context <id>") {
			return 1
		}
		return emit(c.context(args[0]))
	}
	printUsage(stderr)
	return 1
}

// sequenceFromFile 接受裸数组或 {"tool_sequence": [...]}
func sequenceFromFile(raw []byte) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.RawMessage(trimmed), nil
	}
	var wrapper struct {
		Sequence json.RawMessage `json:"tool_sequence"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("解析序列文件失败: %w", err)
	}
	if len(wrapper.Sequence) == 0 {
		return nil, fmt.Errorf("序列文件缺少 tool_sequence")
	}
	return wrapper.Sequence, nil
}

func runChat(c *apiClient, id string, stdin io.Reader, stdout, stderr io.Writer) int {
	reader := bufio.NewReader(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return 0
		}
		if msg != "" {
			out, sendErr := c.say(id, msg)
			if sendErr != nil {
				fmt.Fprintf(stderr, "发送失败: %v\n", sendErr)
			} else {
				summary, _ := out["message"].(string)
				fmt.Fprintf(stdout, "%v %s\n", out["success"], summary)
			}
		}
		if err != nil {
			return 0
		}
	}
}

func runConfig(path string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "api.port=%d\n", cfg.API.Port)
	fmt.Fprintf(stdout, "api.host=%s\n", cfg.API.Host)
	fmt.Fprintf(stdout, "planner.type=%s\n", cfg.Planner.Type)
	fmt.Fprintf(stdout, "planner.model=%s\n", cfg.Planner.Model)
	fmt.Fprintf(stdout, "planner.api_key_set=%t\n", cfg.Planner.APIKey != "")
	fmt.Fprintf(stdout, "snapshot.persist=%s\n", cfg.Snapshot.Persist.Type)
	return 0
}
