package include

import (
	"path/filepath"
	"strings"

	tserrors "github.com/conneroisu/tessera/internal/errors"
)

// ResolvePath turns a directive target into a cleaned absolute path. Targets
// starting with "/" are taken from root; anything else is relative to the
// directory of currentPath (or root when currentPath is empty). The result
// must stay within root.
func ResolvePath(root, currentPath, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsRune(target, 0) {
		return "", tserrors.ErrUnsafePath(target)
	}

	var resolved string
	if strings.HasPrefix(target, "/") {
		resolved = filepath.Join(root, filepath.FromSlash(target))
	} else {
		dir := root
		if currentPath != "" {
			dir = filepath.Dir(currentPath)
		}
		resolved = filepath.Join(dir, filepath.FromSlash(target))
	}

	if !Within(root, resolved) {
		return "", tserrors.ErrUnsafePath(target)
	}
	return resolved, nil
}

// Within reports whether path is root itself or lies underneath it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RootRelative returns path relative to root with forward slashes.
func RootRelative(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
