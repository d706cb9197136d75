package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ResolveRoots returns the primary root followed by the extra roots that are
// existing directories, all made absolute. Extras equal to or nested inside
// the primary or an earlier extra are dropped, as are entries that cannot be
// resolved. An extra that contains an earlier root is kept; Scan does not
// descend into the inner root from it.
func ResolveRoots(primary string, extras []string) ([]string, error) {
	abs, err := absPath(primary)
	if err != nil {
		return nil, err
	}

	roots := []string{abs}
	seen := map[string]struct{}{abs: {}}

	for _, extra := range extras {
		extra = strings.TrimSpace(extra)
		if extra == "" {
			continue
		}
		p, err := absPath(extra)
		if err != nil {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		if outer, nested := containingRoot(roots, p); nested {
			slog.Debug("skipping nested extra root", "path", p, "root", outer)
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		seen[p] = struct{}{}
		roots = append(roots, p)
	}

	return roots, nil
}

// SplitPathList splits a list of paths joined with os.PathListSeparator
func SplitPathList(list string) []string {
	if list == "" {
		return nil
	}
	return filepath.SplitList(list)
}

func containingRoot(roots []string, path string) (string, bool) {
	for _, root := range roots {
		if within(root, path) {
			return root, true
		}
	}
	return "", false
}

// within reports whether path lies strictly below root
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Relative returns path relative to the first root that contains it, or path
// unchanged when no root does.
func Relative(roots []string, path string) string {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return rel
	}
	return path
}

func absPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}
