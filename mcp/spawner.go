package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ServerConfig describes an MCP server invocation a reviewer agent can
// be pointed at: the planning agent re-execs itself with
// --internal-mcp-server and the plan/prompt baked into base64 flags, so
// no temp files or shared state are needed.
type ServerConfig struct {
	ServerName string
	Command    string
	Args       []string
}

// NewServerConfig builds a ServerConfig for one review round, re-using
// the currently running executable as the MCP server command.
func NewServerConfig(planContent, reviewPrompt string) (ServerConfig, error) {
	exe, err := os.Executable()
	if err != nil {
		return ServerConfig{}, fmt.Errorf("resolve current executable: %w", err)
	}

	return ServerConfig{
		ServerName: GenerateUniqueServerName(),
		Command:    exe,
		Args: []string{
			"--internal-mcp-server",
			"--plan-content-b64", base64.StdEncoding.EncodeToString([]byte(planContent)),
			"--review-prompt-b64", base64.StdEncoding.EncodeToString([]byte(reviewPrompt)),
		},
	}, nil
}

// GenerateUniqueServerName returns a collision-free MCP server name.
func GenerateUniqueServerName() string {
	return "planning-agent-review-" + uuid.NewString()
}

// ToClaudeJSON renders the --mcp-config payload Claude expects.
func (c ServerConfig) ToClaudeJSON() (string, error) {
	return c.marshalMCPServers(false)
}

// ToGeminiSettingsJSON renders the settings.json payload Gemini expects.
func (c ServerConfig) ToGeminiSettingsJSON() (string, error) {
	return c.marshalMCPServers(true)
}

func (c ServerConfig) marshalMCPServers(pretty bool) (string, error) {
	payload := map[string]any{
		"mcpServers": map[string]any{
			c.ServerName: map[string]any{
				"command": c.Command,
				"args":    c.Args,
			},
		},
	}
	if pretty {
		b, err := json.MarshalIndent(payload, "", "  ")
		return string(b), err
	}
	b, err := json.Marshal(payload)
	return string(b), err
}

// ToCodexConfigTOML renders the config.toml fragment Codex's
// ~/.codex/config.toml expects under [mcp_servers.<name>].
func (c ServerConfig) ToCodexConfigTOML() string {
	escapedCommand := strings.ReplaceAll(c.Command, `\`, `\\`)

	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		escaped := strings.ReplaceAll(arg, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		args[i] = `"` + escaped + `"`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Temporary MCP server configuration for planning-agent review\n")
	fmt.Fprintf(&b, "[mcp_servers.%s]\n", c.ServerName)
	fmt.Fprintf(&b, "command = \"%s\"\n", escapedCommand)
	fmt.Fprintf(&b, "args = [%s]\n", strings.Join(args, ", "))
	return b.String()
}

// DecodePlanContent decodes a base64-encoded plan passed via
// --plan-content-b64.
func DecodePlanContent(b64 string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode plan content: %w", err)
	}
	return string(b), nil
}

// DecodeReviewPrompt decodes a base64-encoded prompt passed via
// --review-prompt-b64.
func DecodeReviewPrompt(b64 string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode review prompt: %w", err)
	}
	return string(b), nil
}
