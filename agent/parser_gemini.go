package agent

import "encoding/json"

// GeminiParser decodes the Gemini CLI's JSON-stream dialect. Unlike the
// other dialects, a single Gemini line is not discriminated by a "type"
// field - it is checked against several independent, non-exclusive
// shapes (direct text, candidates, function call/response, error, usage)
// and every shape that matches contributes its own event.
type GeminiParser struct{}

func NewGeminiParser() *GeminiParser {
	return &GeminiParser{}
}

func (p *GeminiParser) Reset() {}

func (p *GeminiParser) ParseLine(line string) (*AgentEvent, error) {
	return firstOrNil(p.ParseLineMulti(line))
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
	} `json:"content"`
}

type geminiFunctionCall struct {
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	Arguments json.RawMessage `json:"arguments"`
}

type geminiFunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
}

type geminiUsage struct {
	PromptTokenCount     uint64 `json:"promptTokenCount"`
	CandidatesTokenCount uint64 `json:"candidatesTokenCount"`
}

type geminiLine struct {
	Response string `json:"response"`
	Text     string `json:"text"`
	Content  string `json:"content"`
	Output   string `json:"output"`
	Result   string `json:"result"`

	Candidates []geminiCandidate `json:"candidates"`

	FunctionCall      *geminiFunctionCall `json:"functionCall"`
	FunctionCallSnake *geminiFunctionCall `json:"function_call"`

	FunctionResponse      *geminiFunctionResponse `json:"functionResponse"`
	FunctionResponseSnake *geminiFunctionResponse `json:"function_response"`

	Error json.RawMessage `json:"error"`

	UsageMetadata *geminiUsage `json:"usageMetadata"`
}

func (p *GeminiParser) ParseLineMulti(line string) ([]AgentEvent, error) {
	if line == "" {
		return nil, nil
	}

	var parsed geminiLine
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return []AgentEvent{NewTextContent(line)}, nil
	}

	var events []AgentEvent

	if text := firstNonEmpty(parsed.Response, parsed.Text, parsed.Content, parsed.Output, parsed.Result); text != "" {
		events = append(events, NewTextContent(text))
	}

	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				events = append(events, NewTextContent(part.Text))
			}
		}
	}

	if call := firstFunctionCall(parsed.FunctionCall, parsed.FunctionCallSnake); call != nil {
		args := call.Args
		if len(args) == 0 {
			args = call.Arguments
		}
		events = append(events, NewToolStarted(ToolStartedPayload{
			Name:         call.Name,
			DisplayName:  call.Name,
			InputPreview: truncateASCII(string(args), 100),
		}))
	}

	if resp := firstFunctionResponse(parsed.FunctionResponse, parsed.FunctionResponseSnake); resp != nil {
		lines, hasMore := firstNLines(string(resp.Response), 5)
		events = append(events, NewToolResult(ToolResultPayload{
			ToolUseId:    resp.Name,
			IsError:      len(resp.Error) > 0 && string(resp.Error) != "null",
			ContentLines: lines,
			HasMore:      hasMore,
		}))
	}

	if len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		events = append(events, NewError(decodeErrorMessage(parsed.Error)))
	}

	if parsed.UsageMetadata != nil {
		events = append(events, NewTokenUsage(TokenUsagePayload{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		}))
	}

	return events, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFunctionCall(candidates ...*geminiFunctionCall) *geminiFunctionCall {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func firstFunctionResponse(candidates ...*geminiFunctionResponse) *geminiFunctionResponse {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func decodeErrorMessage(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Message != "" {
		return asObject.Message
	}
	return string(raw)
}
