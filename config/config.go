// Package config provides configuration loading and management for the
// planning agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete workflow configuration: which agents
// exist, how they're sequenced through planning/review/implementation,
// and the optional verification loop.
type Config struct {
	Agents         map[string]AgentConfig `yaml:"agents"`
	Workflow       WorkflowConfig         `yaml:"workflow"`
	Implementation ImplementationConfig   `yaml:"implementation"`
	Verification   VerificationConfig     `yaml:"verification"`

	ClaudeMode *ModeConfig `yaml:"claude_mode,omitempty"`
	CodexMode  *ModeConfig `yaml:"codex_mode,omitempty"`
	GeminiMode *ModeConfig `yaml:"gemini_mode,omitempty"`
}

// AgentConfig describes how to launch one named agent.
type AgentConfig struct {
	Command            string                   `yaml:"command"`
	Args               []string                 `yaml:"args,omitempty"`
	AllowedTools       []string                 `yaml:"allowed_tools,omitempty"`
	SessionPersistence SessionPersistenceConfig `yaml:"session_persistence"`
}

// SessionPersistenceConfig controls whether an agent resumes its prior
// conversation across invocations, and how.
type SessionPersistenceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Strategy string `yaml:"strategy,omitempty"`
}

// WorkflowConfig groups the planning and reviewing stages.
type WorkflowConfig struct {
	Planning  PlanningConfig  `yaml:"planning"`
	Reviewing ReviewingConfig `yaml:"reviewing"`
}

// PlanningConfig names the agent that drafts and revises the plan.
type PlanningConfig struct {
	Agent    string `yaml:"agent"`
	MaxTurns int    `yaml:"max_turns,omitempty"`
}

// ReviewingConfig lists the reviewers for a planning cycle and how their
// verdicts combine into one approve/reject decision.
type ReviewingConfig struct {
	Agents      []ReviewerRef `yaml:"agents"`
	Sequential  bool          `yaml:"sequential,omitempty"`
	Aggregation string        `yaml:"aggregation"`
}

// ReviewerRef names one reviewer. It may appear in YAML as a bare agent
// name or as an object carrying a distinct id, prompt, or skill.
type ReviewerRef struct {
	Agent  string `yaml:"agent"`
	Id     string `yaml:"id,omitempty"`
	Prompt string `yaml:"prompt,omitempty"`
	Skill  string `yaml:"skill,omitempty"`
}

// UnmarshalYAML accepts either a scalar agent name or an object with
// agent/id/prompt/skill fields.
func (r *ReviewerRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Agent = node.Value
		r.Id = node.Value
		return nil
	}

	var aux struct {
		Agent  string `yaml:"agent"`
		Id     string `yaml:"id"`
		Prompt string `yaml:"prompt"`
		Skill  string `yaml:"skill"`
	}
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("reviewing.agents entry: %w", err)
	}
	r.Agent = aux.Agent
	r.Id = aux.Id
	if r.Id == "" {
		r.Id = r.Agent
	}
	r.Prompt = aux.Prompt
	r.Skill = aux.Skill
	return nil
}

// ImplementationConfig controls the optional implementation phase that
// runs after a plan is approved.
type ImplementationConfig struct {
	Enabled      bool                `yaml:"enabled"`
	Implementing *ImplementingConfig `yaml:"implementing,omitempty"`
	Reviewing    *AgentRoleConfig    `yaml:"reviewing,omitempty"`
}

// ImplementingConfig names the agent that writes code.
type ImplementingConfig struct {
	Agent    string `yaml:"agent"`
	MaxTurns int    `yaml:"max_turns,omitempty"`
}

// AgentRoleConfig names an agent filling a single-purpose role
// (implementation review, verification, fixing).
type AgentRoleConfig struct {
	Agent string `yaml:"agent"`
}

// VerificationConfig controls the optional post-implementation
// verify/fix loop.
type VerificationConfig struct {
	Enabled       bool             `yaml:"enabled"`
	MaxIterations int              `yaml:"max_iterations"`
	Verifying     *AgentRoleConfig `yaml:"verifying,omitempty"`
	Fixing        *AgentRoleConfig `yaml:"fixing,omitempty"`
}

// ModeConfig describes an agent-family preset (claude_mode, codex_mode,
// gemini_mode). Applying a mode merges its agents into the config, then
// substitutes agent references throughout, then overrides the
// reviewing/implementation sections wholesale if the mode provides them.
type ModeConfig struct {
	Agents         map[string]AgentConfig `yaml:"agents,omitempty"`
	Substitutions  map[string]string      `yaml:"substitutions,omitempty"`
	Reviewing      *ReviewingConfig       `yaml:"reviewing,omitempty"`
	Implementation *ImplementationConfig  `yaml:"implementation,omitempty"`
}

// DefaultConfig returns a minimal single-agent configuration: one agent
// named "claude" drafts the plan with no reviewers and implementation
// and verification both disabled.
func DefaultConfig() *Config {
	return &Config{
		Agents: map[string]AgentConfig{
			"claude": {
				Command: "claude",
				Args:    []string{"--print", "--output-format", "stream-json", "--verbose"},
			},
		},
		Workflow: WorkflowConfig{
			Planning:  PlanningConfig{Agent: "claude"},
			Reviewing: ReviewingConfig{Aggregation: "any_rejects"},
		},
		Implementation: ImplementationConfig{Enabled: false},
		Verification:   VerificationConfig{Enabled: false},
	}
}

// Validate checks that every agent reference in the config names an
// entry in Agents, and that enumerated fields carry recognized values.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("agents: at least one agent must be configured")
	}

	requireAgent := func(field, name string) error {
		if name == "" {
			return fmt.Errorf("%s: agent reference is required", field)
		}
		if _, ok := c.Agents[name]; !ok {
			return fmt.Errorf("%s: agent %q is not defined in agents", field, name)
		}
		return nil
	}

	if err := requireAgent("workflow.planning.agent", c.Workflow.Planning.Agent); err != nil {
		return err
	}
	for i, reviewer := range c.Workflow.Reviewing.Agents {
		if err := requireAgent(fmt.Sprintf("workflow.reviewing.agents[%d]", i), reviewer.Agent); err != nil {
			return err
		}
	}
	switch c.Workflow.Reviewing.Aggregation {
	case "", "any_rejects", "all_reject", "majority":
	default:
		return fmt.Errorf("workflow.reviewing.aggregation: unrecognized value %q", c.Workflow.Reviewing.Aggregation)
	}

	if c.Implementation.Enabled {
		if c.Implementation.Implementing == nil {
			return fmt.Errorf("implementation.implementing: required when implementation.enabled is true")
		}
		if err := requireAgent("implementation.implementing.agent", c.Implementation.Implementing.Agent); err != nil {
			return err
		}
		if c.Implementation.Reviewing != nil {
			if err := requireAgent("implementation.reviewing.agent", c.Implementation.Reviewing.Agent); err != nil {
				return err
			}
		}
	}

	if c.Verification.Enabled {
		if c.Verification.MaxIterations <= 0 {
			return fmt.Errorf("verification.max_iterations: must be positive when verification.enabled is true")
		}
		if c.Verification.Verifying == nil {
			return fmt.Errorf("verification.verifying: required when verification.enabled is true")
		}
		if err := requireAgent("verification.verifying.agent", c.Verification.Verifying.Agent); err != nil {
			return err
		}
		if c.Verification.Fixing != nil {
			if err := requireAgent("verification.fixing.agent", c.Verification.Fixing.Agent); err != nil {
				return err
			}
		}
	}

	return nil
}

// ApplyMode merges a mode's agents into the config, substitutes agent
// references throughout the workflow and implementation sections
// according to its substitutions map, then overrides the reviewing and
// implementation sections wholesale if the mode supplies them. A
// substitution target that names an agent absent from both the base
// config and the mode's own agents is an error.
func (c *Config) ApplyMode(mode *ModeConfig) error {
	if mode == nil {
		return nil
	}

	for name, agentCfg := range mode.Agents {
		c.Agents[name] = agentCfg
	}

	substitute := func(field, name string) (string, error) {
		to, ok := mode.Substitutions[name]
		if !ok {
			return name, nil
		}
		if _, exists := c.Agents[to]; !exists {
			return "", fmt.Errorf("%s: substitution target %q is not defined in agents", field, to)
		}
		return to, nil
	}

	var err error
	c.Workflow.Planning.Agent, err = substitute("workflow.planning.agent", c.Workflow.Planning.Agent)
	if err != nil {
		return err
	}
	for i := range c.Workflow.Reviewing.Agents {
		c.Workflow.Reviewing.Agents[i].Agent, err = substitute(
			fmt.Sprintf("workflow.reviewing.agents[%d]", i), c.Workflow.Reviewing.Agents[i].Agent)
		if err != nil {
			return err
		}
	}
	if c.Implementation.Implementing != nil {
		c.Implementation.Implementing.Agent, err = substitute(
			"implementation.implementing.agent", c.Implementation.Implementing.Agent)
		if err != nil {
			return err
		}
	}
	if c.Implementation.Reviewing != nil {
		c.Implementation.Reviewing.Agent, err = substitute(
			"implementation.reviewing.agent", c.Implementation.Reviewing.Agent)
		if err != nil {
			return err
		}
	}

	if mode.Reviewing != nil {
		c.Workflow.Reviewing = *mode.Reviewing
	}
	if mode.Implementation != nil {
		c.Implementation = *mode.Implementation
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one; other's agents and
// sections take precedence when non-empty.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	for name, agentCfg := range other.Agents {
		c.Agents[name] = agentCfg
	}

	if other.Workflow.Planning.Agent != "" {
		c.Workflow.Planning = other.Workflow.Planning
	}
	if len(other.Workflow.Reviewing.Agents) > 0 {
		c.Workflow.Reviewing = other.Workflow.Reviewing
	}

	if other.Implementation.Enabled {
		c.Implementation = other.Implementation
	}
	if other.Verification.Enabled {
		c.Verification = other.Verification
	}

	if other.ClaudeMode != nil {
		c.ClaudeMode = other.ClaudeMode
	}
	if other.CodexMode != nil {
		c.CodexMode = other.CodexMode
	}
	if other.GeminiMode != nil {
		c.GeminiMode = other.GeminiMode
	}
}
