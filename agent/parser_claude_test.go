package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeParserMessage(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"message","content":"plan drafted"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "plan drafted", *events[0].TextContent)
}

func TestClaudeParserToolUse(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"tool_use","id":"tu-1","name":"Read","input":{"file_path":"a.go"}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AgentEventToolStarted, events[0].Kind)
	assert.Equal(t, "Read", events[0].ToolStarted.Name)
	require.NotNil(t, events[0].ToolStarted.ToolUseId)
	assert.Equal(t, "tu-1", *events[0].ToolStarted.ToolUseId)
}

func TestClaudeParserToolResult(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"tool_result","tool_use_id":"tu-1","content":"output here","is_error":false}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tu-1", events[0].ToolResult.ToolUseId)
	assert.False(t, events[0].ToolResult.IsError)
}

func TestClaudeParserResult(t *testing.T) {
	p := NewClaudeParser()
	cost := 0.05
	events, err := p.ParseLineMulti(`{"type":"result","result":"final answer","cost_usd":0.05,"is_error":false}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Result.Output)
	assert.Equal(t, "final answer", *events[0].Result.Output)
	require.NotNil(t, events[0].Result.Cost)
	assert.InDelta(t, cost, *events[0].Result.Cost, 0.0001)
}

func TestClaudeParserError(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"error","message":"tool failed"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tool failed", *events[0].Error)
}

func TestClaudeParserSystemSessionId(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"system","session_id":"sess-1"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sess-1", *events[0].ConversationIdCaptured)
}

func TestClaudeParserUsageAlongsideMessage(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti(`{"type":"message","content":"hi","usage":{"input_tokens":5,"output_tokens":7}}`)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, AgentEventTextContent, events[0].Kind)
	assert.Equal(t, AgentEventTokenUsage, events[1].Kind)
	assert.Equal(t, uint64(5), events[1].TokenUsage.InputTokens)
}

func TestClaudeParserRawTextFallback(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti("plain stdout line")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "plain stdout line", *events[0].TextContent)
}

func TestClaudeParserEmptyLine(t *testing.T) {
	p := NewClaudeParser()
	events, err := p.ParseLineMulti("")
	require.NoError(t, err)
	assert.Empty(t, events)
}
