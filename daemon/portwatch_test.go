package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForConcurrentStartupDetectsPortFileAppearing(t *testing.T) {
	dir := t.TempDir()
	portFile := filepath.Join(dir, "sessiond-port.json")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(portFile, []byte(`{"port":1}`), 0o644)
	}()

	appeared, err := WaitForConcurrentStartup(context.Background(), portFile, 2*time.Second)
	assert.NoError(t, err)
	assert.True(t, appeared)
}

func TestWaitForConcurrentStartupTimesOutWhenNothingAppears(t *testing.T) {
	dir := t.TempDir()
	portFile := filepath.Join(dir, "sessiond-port.json")

	appeared, err := WaitForConcurrentStartup(context.Background(), portFile, 100*time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, appeared)
}
