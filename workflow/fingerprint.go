package workflow

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs are never descended into by the non-git fingerprint walk.
// The git path hashes every file git reports and does not consult them.
var excludedDirs = map[string]bool{
	".git":             true,
	"target":           true,
	"node_modules":     true,
	".planning-agent":  true,
}

// ComputeChangeFingerprint hashes the current state of working_dir's
// changes so the implementation loop can detect a NeedsRevision verdict
// that produced no actual change - its circuit breaker against an agent
// stuck repeating the same no-op round.
func ComputeChangeFingerprint(workingDir string) (uint64, error) {
	if isGitRepo(workingDir) {
		return computeGitFingerprint(workingDir)
	}
	return computeFilesystemFingerprint(workingDir)
}

func isGitRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func computeGitFingerprint(workingDir string) (uint64, error) {
	changed := make(map[string]struct{})

	if out, err := runGit(workingDir, "status", "--porcelain"); err == nil {
		for _, line := range strings.Split(out, "\n") {
			if len(line) <= 3 {
				continue
			}
			name := strings.TrimSpace(line[3:])
			if name != "" {
				changed[name] = struct{}{}
			}
		}
	}

	if out, err := runGit(workingDir, "diff", "--name-only", "--diff-filter=ACDMRT"); err == nil {
		for _, line := range strings.Split(out, "\n") {
			name := strings.TrimSpace(line)
			if name != "" {
				changed[name] = struct{}{}
			}
		}
	}

	files := make([]string, 0, len(changed))
	for f := range changed {
		files = append(files, f)
	}
	sort.Strings(files)

	hasher := sha256.New()
	for _, file := range files {
		filePath := filepath.Join(workingDir, file)
		hasher.Write([]byte(file))
		hasher.Write([]byte{0})

		if info, err := os.Stat(filePath); err == nil {
			var size [8]byte
			binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
			hasher.Write(size[:])
			if content, err := os.ReadFile(filePath); err == nil {
				hasher.Write(content)
			}
		} else {
			hasher.Write([]byte("DELETED"))
		}
		hasher.Write([]byte{'\n'})
	}

	return fingerprintFromDigest(hasher.Sum(nil)), nil
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func computeFilesystemFingerprint(workingDir string) (uint64, error) {
	entries := make(map[string]struct{})
	if err := collectFiles(workingDir, workingDir, entries); err != nil {
		return 0, err
	}

	rel := make([]string, 0, len(entries))
	for r := range entries {
		rel = append(rel, r)
	}
	sort.Strings(rel)

	hasher := sha256.New()
	for _, relPath := range rel {
		filePath := filepath.Join(workingDir, relPath)
		hasher.Write([]byte(relPath))
		hasher.Write([]byte{0})

		if info, err := os.Stat(filePath); err == nil {
			var size [8]byte
			binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
			hasher.Write(size[:])

			var mtime [8]byte
			binary.LittleEndian.PutUint64(mtime[:], uint64(info.ModTime().Unix()))
			hasher.Write(mtime[:])
		}
		hasher.Write([]byte{'\n'})
	}

	return fingerprintFromDigest(hasher.Sum(nil)), nil
}

func collectFiles(base, dir string, entries map[string]struct{}) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range dirEntries {
		name := entry.Name()
		if excludedDirs[name] {
			continue
		}
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if err := collectFiles(base, path, entries); err != nil {
				return err
			}
			continue
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			continue
		}
		entries[filepath.ToSlash(relPath)] = struct{}{}
	}
	return nil
}

func fingerprintFromDigest(digest []byte) uint64 {
	return binary.LittleEndian.Uint64(digest[:8])
}
