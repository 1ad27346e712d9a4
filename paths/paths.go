// Package paths centralizes every on-disk location the planning agent
// reads or writes under its home directory: session event logs and
// snapshots, plans and feedback, implementation and verification
// artifacts, and daemon bookkeeping files.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const planningAgentDirName = ".planning-agent"

// homeOverride lets tests pin the home directory without mutating
// process environment. Set only through WithHomeOverride.
var homeOverride string

// WithHomeOverride pins the planning agent home directory for the
// duration of a test and returns a restore function.
func WithHomeOverride(dir string) (restore func()) {
	previous := homeOverride
	homeOverride = dir
	return func() { homeOverride = previous }
}

// HomeDir returns the planning agent home directory, creating it if
// necessary. Resolution order: WithHomeOverride, then the
// PLANNING_AGENT_HOME environment variable, then ~/.planning-agent.
func HomeDir() (string, error) {
	if homeOverride != "" {
		if err := os.MkdirAll(homeOverride, 0755); err != nil {
			return "", fmt.Errorf("create home override directory: %w", err)
		}
		return homeOverride, nil
	}

	dir := os.Getenv("PLANNING_AGENT_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine home directory: %w", err)
		}
		dir = filepath.Join(home, planningAgentDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create planning agent home %s: %w", dir, err)
	}
	return dir, nil
}

// SessionsDir returns ~/.planning-agent/sessions, creating it if needed.
func SessionsDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create sessions directory: %w", err)
	}
	return dir, nil
}

// LogsDir returns ~/.planning-agent/logs, creating it if needed.
func LogsDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create logs directory: %w", err)
	}
	return dir, nil
}

// DebugLogPath returns ~/.planning-agent/logs/debug.log.
func DebugLogPath() (string, error) {
	dir, err := LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// StartupLogPath returns ~/.planning-agent/logs/startup.log, used for
// logging that happens before a session exists. Its entries are not
// copied into any session log.
func StartupLogPath() (string, error) {
	dir, err := LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "startup.log"), nil
}

// UpdateMarkerPath returns ~/.planning-agent/update-installed.
func UpdateMarkerPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "update-installed"), nil
}

// SessiondPortFilePath returns ~/.planning-agent/sessiond-port.json,
// where the daemon publishes its loopback port and auth token.
func SessiondPortFilePath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "sessiond-port.json"), nil
}

// WorkingDirHash computes a 12-hex-character fingerprint of a working
// directory: SHA-256 of its canonicalized path (falling back to the raw
// path on a canonicalization failure, e.g. a deleted directory),
// truncated to the first 6 bytes.
func WorkingDirHash(workingDir string) string {
	bytes := []byte(workingDir)
	if canonical, err := filepath.Abs(workingDir); err == nil {
		if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
			bytes = []byte(resolved)
		} else {
			bytes = []byte(canonical)
		}
	}
	sum := sha256.Sum256(bytes)
	return hex.EncodeToString(sum[:6])
}

// Session is the full set of on-disk paths for one workflow session,
// rooted at ~/.planning-agent/sessions/<session_id>/.
type Session struct {
	Dir string
}

// ForSession returns the Session path helper for a session id, creating
// its directory if needed.
func ForSession(sessionID string) (Session, error) {
	sessionsDir, err := SessionsDir()
	if err != nil {
		return Session{}, err
	}
	dir := filepath.Join(sessionsDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Session{}, fmt.Errorf("create session directory %s: %w", dir, err)
	}
	return Session{Dir: dir}, nil
}

// EventsLog returns events.jsonl: the append-only event log.
func (s Session) EventsLog() string { return filepath.Join(s.Dir, "events.jsonl") }

// Snapshot returns snapshot.json: the latest folded aggregate snapshot.
func (s Session) Snapshot() string { return filepath.Join(s.Dir, "snapshot.json") }

// Info returns session_info.json: daemon-facing session metadata.
func (s Session) Info() string { return filepath.Join(s.Dir, "session_info.json") }

// Plan returns plan.md.
func (s Session) Plan() string { return filepath.Join(s.Dir, "plan.md") }

// Feedback returns feedback_<iteration>.md, or
// feedback_<iteration>_<agent>.md when agent is non-empty (one file per
// reviewer in a sequential or parallel cycle).
func (s Session) Feedback(iteration int, agent string) string {
	if agent == "" {
		return filepath.Join(s.Dir, fmt.Sprintf("feedback_%d.md", iteration))
	}
	return filepath.Join(s.Dir, fmt.Sprintf("feedback_%d_%s.md", iteration, agent))
}

// ImplementationLog returns implementation_<iteration>.log.
func (s Session) ImplementationLog(iteration int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("implementation_%d.log", iteration))
}

// ImplementationReview returns implementation_review_<iteration>.md.
func (s Session) ImplementationReview(iteration int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("implementation_review_%d.md", iteration))
}

// VerificationState returns verification_state.json.
func (s Session) VerificationState() string {
	return filepath.Join(s.Dir, "verification_state.json")
}

// VerificationReport returns verification_<iteration>.md.
func (s Session) VerificationReport(iteration int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("verification_%d.md", iteration))
}

// LogsDir returns the session's own logs directory, creating it if
// needed.
func (s Session) LogsDir() (string, error) {
	dir := filepath.Join(s.Dir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session logs directory %s: %w", dir, err)
	}
	return dir, nil
}

// SessionLog returns logs/session.log.
func (s Session) SessionLog() (string, error) {
	dir, err := s.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.log"), nil
}

// AgentStreamLog returns logs/agent-stream.log: the text content the
// stream parsers extract from every agent invocation in this session.
// Raw stdout/stderr lines are not written to it.
func (s Session) AgentStreamLog() (string, error) {
	dir, err := s.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agent-stream.log"), nil
}
