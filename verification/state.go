// Package verification implements the post-implementation
// verify/fix loop: after a feature is implemented and approved, a
// verifying agent checks the result against the original plan and, if
// it finds problems, a fixing agent addresses them before the next
// verification pass.
package verification

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metjm/planning-agent/domain"
)

// Phase is a step in the verification workflow, distinct from the
// planning workflow's own Phase enum.
type Phase string

const (
	PhaseVerifying Phase = "verifying"
	PhaseFixing    Phase = "fixing"
	PhaseComplete  Phase = "complete"
)

// StateFileName is the file a State is persisted under, inside the
// plan's own directory.
const StateFileName = "verification_state.json"

// State tracks one plan's verify/fix loop. It is stored separately
// from the planning workflow's event-sourced state since verification
// runs after the planning workflow has already concluded.
type State struct {
	PlanPath            string    `json:"plan_path"`
	WorkingDir          string    `json:"working_dir"`
	Phase               Phase     `json:"phase"`
	Iteration           uint32    `json:"iteration"`
	MaxIterations       uint32    `json:"max_iterations"`
	LastVerdict         string    `json:"last_verdict,omitempty"`
	WorkflowSessionId   string    `json:"workflow_session_id"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// New creates a State starting in PhaseVerifying at iteration 1. An
// empty sessionID generates a fresh one.
func New(planPath, workingDir string, maxIterations uint32, sessionID string) *State {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &State{
		PlanPath:          planPath,
		WorkingDir:        workingDir,
		Phase:             PhaseVerifying,
		Iteration:         1,
		MaxIterations:     maxIterations,
		WorkflowSessionId: sessionID,
		UpdatedAt:         time.Now(),
	}
}

// StateFilePath returns the path a State for planPath is stored at.
func StateFilePath(planPath string) string {
	return filepath.Join(planPath, StateFileName)
}

// ReportPath returns the path of this iteration's verification report.
func (s *State) ReportPath() string {
	return filepath.Join(s.PlanPath, fmt.Sprintf("verification_%d.md", s.Iteration))
}

// PlanFilePath returns the path of the plan document being verified.
func (s *State) PlanFilePath() string {
	return filepath.Join(s.PlanPath, "plan.md")
}

// ShouldContinue reports whether another verify/fix round should run.
func (s *State) ShouldContinue() bool {
	if s.Phase == PhaseComplete {
		return false
	}
	return s.Iteration <= s.MaxIterations
}

// Transition moves the state to a new phase, validating the edge.
// Valid transitions: Verifying->Fixing, Verifying->Complete,
// Fixing->Verifying (which also increments Iteration).
func (s *State) Transition(to Phase) error {
	valid := (s.Phase == PhaseVerifying && to == PhaseFixing) ||
		(s.Phase == PhaseVerifying && to == PhaseComplete) ||
		(s.Phase == PhaseFixing && to == PhaseVerifying)
	if !valid {
		return fmt.Errorf("invalid verification transition from %s to %s", s.Phase, to)
	}

	if s.Phase == PhaseFixing && to == PhaseVerifying {
		s.Iteration++
	}
	s.Phase = to
	s.UpdatedAt = time.Now()
	return nil
}

// Load reads a State from planPath's verification_state.json, if one
// exists. A missing file is not an error; it returns (nil, nil).
func Load(planPath string) (*State, error) {
	content, err := os.ReadFile(StateFilePath(planPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("read verification state", err)
	}

	var state State
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, domain.NewStorageError("decode verification state", err)
	}
	return &state, nil
}

// Save persists the state via write-then-rename so a crash never
// leaves a half-written state file in place.
func (s *State) Save() error {
	statePath := StateFilePath(s.PlanPath)
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return domain.NewStorageError("create plan directory", err)
	}

	content, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return domain.NewStorageError("encode verification state", err)
	}

	tmpPath := statePath + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return domain.NewStorageError("write verification state temp file", err)
	}
	if err := os.Rename(tmpPath, statePath); err != nil {
		return domain.NewStorageError("rename verification state into place", err)
	}
	return nil
}

// NormalizePlanPath accepts either a plan folder or a path to its
// plan.md file and returns the folder path in both cases.
func NormalizePlanPath(path string) string {
	if strings.HasSuffix(path, "plan.md") {
		dir := filepath.Dir(path)
		return dir
	}
	return path
}
