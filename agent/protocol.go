// Package agent runs external LLM CLI tools as subprocesses and turns
// their heterogeneous stdout streams into a single unified event
// protocol the phase controller consumes.
package agent

// AgentEvent is the closed union every dialect parser normalizes into.
// Exactly one payload field is set per event, selected by Kind.
type AgentEvent struct {
	Kind AgentEventKind

	TextContent            *string
	ToolStarted            *ToolStartedPayload
	ToolResult             *ToolResultPayload
	Error                  *string
	ConversationIdCaptured *string
	TokenUsage             *TokenUsagePayload
	Result                 *ResultPayload
}

// AgentEventKind discriminates the AgentEvent union.
type AgentEventKind string

const (
	AgentEventTextContent            AgentEventKind = "text_content"
	AgentEventToolStarted            AgentEventKind = "tool_started"
	AgentEventToolResult             AgentEventKind = "tool_result"
	AgentEventError                  AgentEventKind = "error"
	AgentEventConversationIdCaptured AgentEventKind = "conversation_id_captured"
	AgentEventTokenUsage             AgentEventKind = "token_usage"
	AgentEventResult                 AgentEventKind = "result"
)

// ToolStartedPayload describes one tool invocation the agent began.
type ToolStartedPayload struct {
	Name         string
	DisplayName  string
	InputPreview string
	ToolUseId    *string
}

// ToolResultPayload describes the outcome of one tool invocation.
type ToolResultPayload struct {
	ToolUseId    string
	IsError      bool
	ContentLines []string
	HasMore      bool
}

// TokenUsagePayload reports one usage accounting update.
type TokenUsagePayload struct {
	InputTokens         uint64
	OutputTokens        uint64
	CacheCreationTokens uint64
	CacheReadTokens     uint64
}

// ResultPayload is the agent's final outcome for the invocation.
type ResultPayload struct {
	Output  *string
	Cost    *float64
	IsError bool
}

func NewTextContent(text string) AgentEvent {
	return AgentEvent{Kind: AgentEventTextContent, TextContent: &text}
}

func NewToolStarted(p ToolStartedPayload) AgentEvent {
	return AgentEvent{Kind: AgentEventToolStarted, ToolStarted: &p}
}

func NewToolResult(p ToolResultPayload) AgentEvent {
	return AgentEvent{Kind: AgentEventToolResult, ToolResult: &p}
}

func NewError(message string) AgentEvent {
	return AgentEvent{Kind: AgentEventError, Error: &message}
}

func NewConversationIdCaptured(id string) AgentEvent {
	return AgentEvent{Kind: AgentEventConversationIdCaptured, ConversationIdCaptured: &id}
}

func NewTokenUsage(p TokenUsagePayload) AgentEvent {
	return AgentEvent{Kind: AgentEventTokenUsage, TokenUsage: &p}
}

func NewResult(p ResultPayload) AgentEvent {
	return AgentEvent{Kind: AgentEventResult, Result: &p}
}

// StreamParser turns one line of an agent's stdout into zero or more
// AgentEvents. ParseLine is a convenience wrapper for callers that only
// care about the first event a line produces; ParseLineMulti is the
// primitive every dialect actually implements, since a single JSON line
// can fan out into several events (e.g. Gemini's candidates array).
type StreamParser interface {
	ParseLine(line string) (*AgentEvent, error)
	ParseLineMulti(line string) ([]AgentEvent, error)
	Reset()
}

func firstOrNil(events []AgentEvent, err error) (*AgentEvent, error) {
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// truncateASCII truncates s to at most max characters, appending "..." if
// truncated. Used by dialects that cap tool-input previews.
func truncateASCII(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func firstNLines(s string, n int) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	all := splitLines(s)
	if len(all) <= n {
		return all, false
	}
	return all[:n], true
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
