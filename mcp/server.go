package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

const serverVersion = "0.1.0"

// StdioServer is the --internal-mcp-server process: a short-lived MCP
// server exposing exactly two tools, get_plan and submit_review, to
// whichever reviewer agent spawned it. It exits once the reviewer has
// submitted its verdict.
type StdioServer struct {
	planContent  string
	reviewPrompt string
	logger       *slog.Logger

	review   chan SubmittedReview
	reviewed bool
}

// NewStdioServer creates a server that hands out planContent and
// reviewPrompt and reports the eventual verdict on the returned
// channel.
func NewStdioServer(planContent, reviewPrompt string, logger *slog.Logger) (*StdioServer, <-chan SubmittedReview) {
	if logger == nil {
		logger = slog.Default()
	}
	review := make(chan SubmittedReview, 1)
	return &StdioServer{
		planContent:  planContent,
		reviewPrompt: reviewPrompt,
		logger:       logger,
		review:       review,
	}, review
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted, submit_review is called, or an
// unrecoverable read error occurs.
func (s *StdioServer) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeResponse(w, ErrorResponse(nil, ErrCodeParseError, err.Error())); writeErr != nil {
				return writeErr
			}
			continue
		}

		resp, done := s.handle(req)
		if req.Id != nil {
			if err := writeResponse(w, resp); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
	}
	return scanner.Err()
}

// handle dispatches one request and reports whether the server should
// stop serving after this response (true once submit_review lands).
func (s *StdioServer) handle(req Request) (Response, bool) {
	switch req.Method {
	case "initialize":
		return SuccessResponse(req.Id, InitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
			ServerInfo:      ServerInfo{Name: "planning-agent-review", Version: serverVersion},
		}), false
	case "notifications/initialized":
		return Response{}, false
	case "tools/list":
		return SuccessResponse(req.Id, ToolsListResult{Tools: s.tools()}), false
	case "tools/call":
		return s.handleToolCall(req)
	default:
		return ErrorResponse(req.Id, ErrCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method)), false
	}
}

func (s *StdioServer) tools() []Tool {
	return []Tool{
		{
			Name:        "get_plan",
			Description: "Fetch the plan and review instructions under review.",
			InputSchema: GetPlanSchema(),
		},
		{
			Name:        "submit_review",
			Description: "Submit the final verdict for the plan under review.",
			InputSchema: SubmitReviewSchema(),
		},
	}
}

func (s *StdioServer) handleToolCall(req Request) (Response, bool) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.Id, ErrCodeInvalidParams, err.Error()), false
	}

	switch params.Name {
	case "get_plan":
		text := s.planContent
		if s.reviewPrompt != "" {
			text = s.reviewPrompt + "\n\n---\n\n" + s.planContent
		}
		return SuccessResponse(req.Id, TextToolResult(text)), false

	case "submit_review":
		if s.reviewed {
			return SuccessResponse(req.Id, ErrorToolResult("submit_review was already called")), false
		}
		var submitted SubmittedReview
		if err := json.Unmarshal(params.Arguments, &submitted); err != nil {
			return SuccessResponse(req.Id, ErrorToolResult(fmt.Sprintf("invalid submit_review arguments: %v", err))), false
		}
		if _, err := submitted.Verdict.ToDomainVerdict(); err != nil {
			return SuccessResponse(req.Id, ErrorToolResult(err.Error())), false
		}

		s.reviewed = true
		s.review <- submitted
		close(s.review)
		return SuccessResponse(req.Id, TextToolResult("review recorded")), true

	default:
		return SuccessResponse(req.Id, ErrorToolResult(fmt.Sprintf("unknown tool %q", params.Name))), false
	}
}

func writeResponse(w io.Writer, resp Response) error {
	resp.JSONRPC = JSONRPCVersion
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
