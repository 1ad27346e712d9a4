package daemon

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForConcurrentStartup watches portFilePath's parent directory for a
// short window after this process decides the port file doesn't exist
// yet and before it has bound its own listener. If another daemon
// process wins the race and creates the port file during that window,
// this reports true so the caller can back off instead of trying to
// bind a second listener.
func WaitForConcurrentStartup(ctx context.Context, portFilePath string, window time.Duration) (bool, error) {
	dir := filepath.Dir(portFilePath)
	base := filepath.Base(portFilePath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return false, err
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return false, nil
			}
			if filepath.Base(event.Name) == base && (event.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				return true, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return false, nil
			}
			return false, err
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
