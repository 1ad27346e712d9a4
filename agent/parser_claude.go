package agent

import "encoding/json"

// ClaudeParser decodes the Claude Code CLI's --output-format
// stream-json dialect: one flat JSON object per line, discriminated by
// a top-level "type" field, with usage and result data appearing as
// independent top-level fields rather than nested inside "type".
type ClaudeParser struct{}

func NewClaudeParser() *ClaudeParser {
	return &ClaudeParser{}
}

func (p *ClaudeParser) Reset() {}

func (p *ClaudeParser) ParseLine(line string) (*AgentEvent, error) {
	return firstOrNil(p.ParseLineMulti(line))
}

type claudeLine struct {
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	Id         string          `json:"id"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	ToolUseId  string          `json:"tool_use_id"`
	IsError    bool            `json:"is_error"`
	Result     *string         `json:"result"`
	CostUsd    *float64        `json:"cost_usd"`
	SessionId  string          `json:"session_id"`
	Usage      *claudeUsage    `json:"usage"`
	Message    string          `json:"message"`
}

type claudeUsage struct {
	InputTokens              uint64 `json:"input_tokens"`
	OutputTokens             uint64 `json:"output_tokens"`
	CacheCreationInputTokens uint64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     uint64 `json:"cache_read_input_tokens"`
}

func (p *ClaudeParser) ParseLineMulti(line string) ([]AgentEvent, error) {
	if line == "" {
		return nil, nil
	}

	var parsed claudeLine
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return []AgentEvent{NewTextContent(line)}, nil
	}

	var events []AgentEvent

	switch parsed.Type {
	case "message":
		if parsed.Content != "" {
			events = append(events, NewTextContent(parsed.Content))
		}
	case "tool_use":
		var toolUseId *string
		if parsed.Id != "" {
			id := parsed.Id
			toolUseId = &id
		}
		events = append(events, NewToolStarted(ToolStartedPayload{
			Name:         parsed.Name,
			DisplayName:  parsed.Name,
			InputPreview: truncateASCII(string(parsed.Input), 200),
			ToolUseId:    toolUseId,
		}))
	case "tool_result":
		lines, hasMore := firstNLines(parsed.Content, 5)
		events = append(events, NewToolResult(ToolResultPayload{
			ToolUseId:    parsed.ToolUseId,
			IsError:      parsed.IsError,
			ContentLines: lines,
			HasMore:      hasMore,
		}))
	case "error":
		msg := parsed.Message
		if msg == "" {
			msg = parsed.Content
		}
		events = append(events, NewError(msg))
	case "result":
		events = append(events, NewResult(ResultPayload{
			Output:  parsed.Result,
			Cost:    parsed.CostUsd,
			IsError: parsed.IsError,
		}))
	case "system":
		if parsed.SessionId != "" {
			events = append(events, NewConversationIdCaptured(parsed.SessionId))
		}
	}

	if parsed.Usage != nil {
		events = append(events, NewTokenUsage(TokenUsagePayload{
			InputTokens:         parsed.Usage.InputTokens,
			OutputTokens:        parsed.Usage.OutputTokens,
			CacheCreationTokens: parsed.Usage.CacheCreationInputTokens,
			CacheReadTokens:     parsed.Usage.CacheReadInputTokens,
		}))
	}

	if len(events) == 0 && parsed.Type == "" {
		return []AgentEvent{NewTextContent(line)}, nil
	}
	return events, nil
}
