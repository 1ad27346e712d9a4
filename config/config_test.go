package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Workflow.Planning.Agent != "claude" {
		t.Errorf("expected default planning agent claude, got %s", cfg.Workflow.Planning.Agent)
	}
	if _, ok := cfg.Agents["claude"]; !ok {
		t.Error("expected default agents map to define claude")
	}
	if cfg.Implementation.Enabled {
		t.Error("expected implementation disabled by default")
	}
	if cfg.Verification.Enabled {
		t.Error("expected verification disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "no agents configured",
			modify:  func(c *Config) { c.Agents = nil },
			wantErr: true,
		},
		{
			name:    "planning agent not defined",
			modify:  func(c *Config) { c.Workflow.Planning.Agent = "ghost" },
			wantErr: true,
		},
		{
			name: "reviewer not defined",
			modify: func(c *Config) {
				c.Workflow.Reviewing.Agents = []ReviewerRef{{Agent: "ghost"}}
			},
			wantErr: true,
		},
		{
			name:    "unrecognized aggregation policy",
			modify:  func(c *Config) { c.Workflow.Reviewing.Aggregation = "consensus" },
			wantErr: true,
		},
		{
			name: "implementation enabled without implementing agent",
			modify: func(c *Config) {
				c.Implementation.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "implementation enabled with valid agent",
			modify: func(c *Config) {
				c.Implementation.Enabled = true
				c.Implementation.Implementing = &ImplementingConfig{Agent: "claude"}
			},
			wantErr: false,
		},
		{
			name: "verification enabled without max_iterations",
			modify: func(c *Config) {
				c.Verification.Enabled = true
				c.Verification.Verifying = &AgentRoleConfig{Agent: "claude"}
			},
			wantErr: true,
		},
		{
			name: "verification enabled with valid settings",
			modify: func(c *Config) {
				c.Verification.Enabled = true
				c.Verification.MaxIterations = 3
				c.Verification.Verifying = &AgentRoleConfig{Agent: "claude"}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
agents:
  claude:
    command: claude
    args: ["--print", "--output-format", "stream-json"]
    session_persistence:
      enabled: true
      strategy: conversation_resume
  reviewer-a:
    command: codex
workflow:
  planning:
    agent: claude
  reviewing:
    agents:
      - reviewer-a
      - agent: claude
        id: claude-second-pass
        prompt: "double-check the architecture"
    sequential: true
    aggregation: all_reject
implementation:
  enabled: true
  implementing:
    agent: claude
    max_turns: 40
  reviewing:
    agent: reviewer-a
verification:
  enabled: true
  max_iterations: 5
  verifying:
    agent: reviewer-a
  fixing:
    agent: claude
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config failed validation: %v", err)
	}

	if cfg.Agents["claude"].Command != "claude" {
		t.Errorf("expected claude command claude, got %s", cfg.Agents["claude"].Command)
	}
	if !cfg.Agents["claude"].SessionPersistence.Enabled {
		t.Error("expected claude session persistence enabled")
	}
	if len(cfg.Workflow.Reviewing.Agents) != 2 {
		t.Fatalf("expected 2 reviewers, got %d", len(cfg.Workflow.Reviewing.Agents))
	}
	if cfg.Workflow.Reviewing.Agents[0].Agent != "reviewer-a" || cfg.Workflow.Reviewing.Agents[0].Id != "reviewer-a" {
		t.Errorf("expected first reviewer to default its id to its agent name, got %+v", cfg.Workflow.Reviewing.Agents[0])
	}
	if cfg.Workflow.Reviewing.Agents[1].Id != "claude-second-pass" {
		t.Errorf("expected second reviewer id claude-second-pass, got %s", cfg.Workflow.Reviewing.Agents[1].Id)
	}
	if !cfg.Workflow.Reviewing.Sequential {
		t.Error("expected sequential reviewing")
	}
	if cfg.Workflow.Reviewing.Aggregation != "all_reject" {
		t.Errorf("expected aggregation all_reject, got %s", cfg.Workflow.Reviewing.Aggregation)
	}
	if !cfg.Implementation.Enabled || cfg.Implementation.Implementing.MaxTurns != 40 {
		t.Errorf("expected implementation enabled with max_turns 40, got %+v", cfg.Implementation)
	}
	if !cfg.Verification.Enabled || cfg.Verification.MaxIterations != 5 {
		t.Errorf("expected verification enabled with max_iterations 5, got %+v", cfg.Verification)
	}
}

func TestConfigApplyMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.Reviewing.Agents = []ReviewerRef{{Agent: "claude", Id: "claude"}}

	mode := &ModeConfig{
		Agents: map[string]AgentConfig{
			"codex": {Command: "codex"},
		},
		Substitutions: map[string]string{
			"claude": "codex",
		},
	}

	if err := cfg.ApplyMode(mode); err != nil {
		t.Fatalf("ApplyMode() error = %v", err)
	}

	if cfg.Workflow.Planning.Agent != "codex" {
		t.Errorf("expected planning agent substituted to codex, got %s", cfg.Workflow.Planning.Agent)
	}
	if cfg.Workflow.Reviewing.Agents[0].Agent != "codex" {
		t.Errorf("expected reviewer substituted to codex, got %s", cfg.Workflow.Reviewing.Agents[0].Agent)
	}
}

func TestConfigApplyModeRejectsMissingSubstitutionTarget(t *testing.T) {
	cfg := DefaultConfig()
	mode := &ModeConfig{
		Substitutions: map[string]string{"claude": "ghost"},
	}

	if err := cfg.ApplyMode(mode); err == nil {
		t.Error("expected ApplyMode to reject a substitution target with no matching agent")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Agents: map[string]AgentConfig{
			"codex": {Command: "codex"},
		},
		Workflow: WorkflowConfig{
			Planning: PlanningConfig{Agent: "codex"},
		},
	}

	base.Merge(override)

	if base.Workflow.Planning.Agent != "codex" {
		t.Errorf("expected planning agent codex, got %s", base.Workflow.Planning.Agent)
	}
	if _, ok := base.Agents["claude"]; !ok {
		t.Error("expected base's claude agent to survive the merge")
	}
	if _, ok := base.Agents["codex"]; !ok {
		t.Error("expected override's codex agent to be merged in")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Workflow.Planning.Agent = "claude"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Workflow.Planning.Agent != "claude" {
		t.Errorf("expected planning agent claude, got %s", loaded.Workflow.Planning.Agent)
	}
}
