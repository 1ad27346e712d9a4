package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiParserDirectResponse(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"response":"hello world"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hello world", *events[0].TextContent)
}

func TestGeminiParserCandidatesStructure(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"candidates":[{"content":{"parts":[{"text":"part one"},{"text":"part two"}]}}]}`)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "part one", *events[0].TextContent)
	assert.Equal(t, "part two", *events[1].TextContent)
}

func TestGeminiParserFunctionCall(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"functionCall":{"name":"search","args":{"query":"go modules"}}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AgentEventToolStarted, events[0].Kind)
	assert.Equal(t, "search", events[0].ToolStarted.Name)
}

func TestGeminiParserFunctionResponse(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"functionResponse":{"name":"search","response":"result line"}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AgentEventToolResult, events[0].Kind)
	assert.Equal(t, "search", events[0].ToolResult.ToolUseId)
	assert.False(t, events[0].ToolResult.IsError)
}

func TestGeminiParserFunctionResponseWithError(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"functionResponse":{"name":"search","response":"","error":{"message":"failed"}}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].ToolResult.IsError)
}

func TestGeminiParserError(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"error":{"message":"quota exceeded"}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AgentEventError, events[0].Kind)
	assert.Equal(t, "quota exceeded", *events[0].Error)
}

func TestGeminiParserErrorAsString(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"error":"plain error string"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "plain error string", *events[0].Error)
}

func TestGeminiParserUsageMetadata(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":20}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AgentEventTokenUsage, events[0].Kind)
	assert.Equal(t, uint64(10), events[0].TokenUsage.InputTokens)
	assert.Equal(t, uint64(20), events[0].TokenUsage.OutputTokens)
}

func TestGeminiParserRawText(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti("not json")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "not json", *events[0].TextContent)
}

func TestGeminiParserEmptyLine(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti("")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGeminiParserMultipleShapesInOneLine(t *testing.T) {
	p := NewGeminiParser()
	events, err := p.ParseLineMulti(`{"response":"text plus usage","usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":2}}`)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, AgentEventTextContent, events[0].Kind)
	assert.Equal(t, AgentEventTokenUsage, events[1].Kind)
}

func TestGeminiParserReset(t *testing.T) {
	p := NewGeminiParser()
	assert.NotPanics(t, func() { p.Reset() })
}
