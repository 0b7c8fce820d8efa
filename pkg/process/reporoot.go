package process

import (
	"os"
	"path/filepath"
	"sync"
)

// RootMarkers are the names that identify the repository root. A directory
// containing any of them is taken as the root.
var RootMarkers = []string{
	"GatewayIDE.sln",
	"go.mod",
	".git",
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

var (
	repoRootMutex  sync.Mutex
	repoRootCached string
)

// RepoRoot returns the repository root for child processes. It walks up from
// the executable's directory, then from the current working directory, and
// falls back to the working directory. The result is cached for the process
// lifetime unless the cached directory disappears.
func RepoRoot() string {
	repoRootMutex.Lock()
	defer repoRootMutex.Unlock()

	if repoRootCached != "" {
		if info, err := os.Stat(repoRootCached); err == nil && info.IsDir() {
			return repoRootCached
		}
	}

	starts := make([]string, 0, 2)
	if exe, err := os.Executable(); err == nil {
		starts = append(starts, filepath.Dir(exe))
	}
	cwd, err := os.Getwd()
	if err == nil {
		starts = append(starts, cwd)
	}

	root, ok := FindRepoRoot(starts...)
	if !ok {
		root = cwd
	}
	repoRootCached = root
	return root
}

// FindRepoRoot walks upward from each start directory in order and returns
// the first directory that holds a root marker.
func FindRepoRoot(starts ...string) (string, bool) {
	for _, start := range starts {
		if start == "" {
			continue
		}
		dir, err := filepath.Abs(start)
		if err != nil {
			continue
		}
		for {
			if hasRootMarker(dir) {
				return dir, true
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return "", false
}

func hasRootMarker(dir string) bool {
	for _, marker := range RootMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
