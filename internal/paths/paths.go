// Package paths provides repo-root discovery and path canonicalization.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDirName is the per-repository directory remedy keeps its state in.
const ConfigDirName = ".remedy"

// FindRepoRoot walks upward from the working directory looking for a
// .remedy directory, falling back to the nearest .git directory. Returns
// an error when neither exists.
func FindRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRepoRootFrom(cwd)
}

// FindRepoRootFrom walks upward from dir. See FindRepoRoot.
func FindRepoRootFrom(dir string) (string, error) {
	gitRoot := ""
	for current := dir; ; {
		if dirExists(filepath.Join(current, ConfigDirName)) {
			return current, nil
		}
		if gitRoot == "" && dirExists(filepath.Join(current, ".git")) {
			gitRoot = current
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	if gitRoot != "" {
		return gitRoot, nil
	}
	return "", fmt.Errorf("no %s or .git directory found above %s (run 'remedy init')", ConfigDirName, dir)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CanonicalizePath converts an absolute path to a repo-relative canonical
// path with forward slashes, resolving symlinks where the file exists.
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a path is within the repository root. The safe
// application engine refuses to touch files outside the repo.
func IsWithinRepo(path string, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(canonical, "..")
}
