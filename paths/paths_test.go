package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingDirHashConsistency(t *testing.T) {
	dir := t.TempDir()

	hash1 := WorkingDirHash(dir)
	hash2 := WorkingDirHash(dir)

	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 12)
}

func TestWorkingDirHashDifferentPaths(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	assert.NotEqual(t, WorkingDirHash(dir1), WorkingDirHash(dir2))
}

func TestHomeDirUsesOverride(t *testing.T) {
	restore := WithHomeOverride(t.TempDir())
	defer restore()

	home, err := HomeDir()
	require.NoError(t, err)
	assert.DirExists(t, home)
}

func TestSessionsDirNestsUnderHome(t *testing.T) {
	restore := WithHomeOverride(t.TempDir())
	defer restore()

	home, err := HomeDir()
	require.NoError(t, err)

	dir, err := SessionsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sessions"), dir)
	assert.DirExists(t, dir)
}

func TestForSessionLayout(t *testing.T) {
	restore := WithHomeOverride(t.TempDir())
	defer restore()

	session, err := ForSession("sess-123")
	require.NoError(t, err)
	assert.DirExists(t, session.Dir)

	assert.Equal(t, filepath.Join(session.Dir, "events.jsonl"), session.EventsLog())
	assert.Equal(t, filepath.Join(session.Dir, "plan.md"), session.Plan())
	assert.Equal(t, filepath.Join(session.Dir, "feedback_2.md"), session.Feedback(2, ""))
	assert.Equal(t, filepath.Join(session.Dir, "feedback_2_rev-a.md"), session.Feedback(2, "rev-a"))
	assert.Equal(t, filepath.Join(session.Dir, "implementation_1.log"), session.ImplementationLog(1))
	assert.Equal(t, filepath.Join(session.Dir, "implementation_review_1.md"), session.ImplementationReview(1))
	assert.Equal(t, filepath.Join(session.Dir, "verification_state.json"), session.VerificationState())
	assert.Equal(t, filepath.Join(session.Dir, "verification_3.md"), session.VerificationReport(3))

	sessionLog, err := session.SessionLog()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(session.Dir, "logs", "session.log"), sessionLog)

	streamLog, err := session.AgentStreamLog()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(session.Dir, "logs", "agent-stream.log"), streamLog)
}

func TestDebugAndStartupLogPaths(t *testing.T) {
	restore := WithHomeOverride(t.TempDir())
	defer restore()

	home, err := HomeDir()
	require.NoError(t, err)

	debugPath, err := DebugLogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs", "debug.log"), debugPath)

	startupPath, err := StartupLogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs", "startup.log"), startupPath)
}

func TestUpdateMarkerAndSessiondPortPaths(t *testing.T) {
	restore := WithHomeOverride(t.TempDir())
	defer restore()

	home, err := HomeDir()
	require.NoError(t, err)

	markerPath, err := UpdateMarkerPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "update-installed"), markerPath)

	portPath, err := SessiondPortFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sessiond-port.json"), portPath)
}
