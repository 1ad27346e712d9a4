package agent

// TextParser is the fallback dialect for agents that emit plain text
// instead of a structured stream: every non-empty line becomes a
// TextContent event verbatim.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Reset() {}

func (p *TextParser) ParseLine(line string) (*AgentEvent, error) {
	return firstOrNil(p.ParseLineMulti(line))
}

func (p *TextParser) ParseLineMulti(line string) ([]AgentEvent, error) {
	if line == "" {
		return nil, nil
	}
	return []AgentEvent{NewTextContent(line)}, nil
}
