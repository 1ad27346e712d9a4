package agent

import (
	"encoding/json"
	"strings"
)

// CodexParser decodes the Codex CLI's JSON-stream dialect: thread and
// item lifecycle events ("thread.started", "item.started",
// "item.completed") alongside flatter "message"/"tool_call"/"done"
// events for older Codex builds.
type CodexParser struct{}

func NewCodexParser() *CodexParser {
	return &CodexParser{}
}

func (p *CodexParser) Reset() {}

func (p *CodexParser) ParseLine(line string) (*AgentEvent, error) {
	return firstOrNil(p.ParseLineMulti(line))
}

type codexItem struct {
	Id               string `json:"id"`
	Type             string `json:"item_type"`
	Text             string `json:"text"`
	Command          string `json:"command"`
	ExitCode         *int   `json:"exit_code"`
	AggregatedOutput string `json:"aggregated_output"`
}

type codexLine struct {
	Type      string          `json:"type"`
	Content   string          `json:"content"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	CallId    string          `json:"call_id"`
	Output    string          `json:"output"`
	Result    string          `json:"result"`
	Message   string          `json:"message"`
	ThreadId  string          `json:"thread_id"`
	Item      *codexItem      `json:"item"`
}

func (p *CodexParser) ParseLineMulti(line string) ([]AgentEvent, error) {
	if line == "" {
		return nil, nil
	}

	var parsed codexLine
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return []AgentEvent{NewTextContent(line)}, nil
	}

	switch parsed.Type {
	case "message":
		if parsed.Content != "" {
			return []AgentEvent{NewTextContent(parsed.Content)}, nil
		}
	case "item.started":
		if parsed.Item != nil && parsed.Item.Type == "command_execution" {
			display := truncateCommand(parsed.Item.Command)
			id := parsed.Item.Id
			return []AgentEvent{NewToolStarted(ToolStartedPayload{
				Name:         "command_execution",
				DisplayName:  display,
				InputPreview: display,
				ToolUseId:    &id,
			})}, nil
		}
	case "item.completed":
		if parsed.Item != nil {
			switch parsed.Item.Type {
			case "agent_message":
				return []AgentEvent{NewTextContent(parsed.Item.Text)}, nil
			case "command_execution":
				lines, hasMore := firstNLines(parsed.Item.AggregatedOutput, 5)
				isError := parsed.Item.ExitCode != nil && *parsed.Item.ExitCode != 0
				return []AgentEvent{NewToolResult(ToolResultPayload{
					ToolUseId:    parsed.Item.Id,
					IsError:      isError,
					ContentLines: lines,
					HasMore:      hasMore,
				})}, nil
			}
		}
	case "tool_call":
		return []AgentEvent{NewToolStarted(ToolStartedPayload{
			Name:         parsed.Name,
			DisplayName:  parsed.Name,
			InputPreview: truncateASCII(string(parsed.Arguments), 200),
		})}, nil
	case "tool_result":
		lines, hasMore := firstNLines(parsed.Output, 5)
		return []AgentEvent{NewToolResult(ToolResultPayload{
			ToolUseId:    parsed.CallId,
			ContentLines: lines,
			HasMore:      hasMore,
		})}, nil
	case "done":
		result := parsed.Result
		return []AgentEvent{NewResult(ResultPayload{Output: &result})}, nil
	case "error":
		return []AgentEvent{NewError(parsed.Message)}, nil
	case "thread.started":
		return []AgentEvent{NewConversationIdCaptured(parsed.ThreadId)}, nil
	}

	if parsed.Content != "" {
		return []AgentEvent{NewTextContent(parsed.Content)}, nil
	}
	return nil, nil
}

var codexBashWrapperPrefixes = []string{
	"/bin/bash -lc ",
	"/bin/bash -c ",
	"bash -lc ",
	"bash -c ",
}

// truncateCommand strips a bash -lc/-c wrapper and surrounding quotes off
// a shell command, then caps its length for display.
func truncateCommand(cmd string) string {
	return truncateASCII(stripBashWrapper(cmd), 50)
}

func stripBashWrapper(cmd string) string {
	for _, prefix := range codexBashWrapperPrefixes {
		if strings.HasPrefix(cmd, prefix) {
			return unquote(cmd[len(prefix):])
		}
	}
	return cmd
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
