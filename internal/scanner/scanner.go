package scanner

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is the largest file, in bytes, that is considered for indexing
	MaxFileSize = 2 * 1024 * 1024

	// sniffSize is how much of a file is inspected for NUL bytes
	sniffSize = 2048

	// progressEvery controls how often discovery progress is logged
	progressEvery = 1000
)

// ExcludedDirs lists directory names that are never descended into, at any depth
var ExcludedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	".git":         {},
	"__pycache__":  {},
	".venv":        {},
	".direnv":      {},
}

// SourceFile is a candidate file found during a scan
type SourceFile struct {
	Path    string // Absolute path
	ModTime int64  // Modification time in unix seconds
	Size    int64
}

// Scan walks each root in order and returns the files that look like text
// sources. Unreadable entries are skipped silently; a root that cannot be
// walked contributes nothing. A root nested inside another is walked only as
// itself, so every file is returned once. Scan stops early when ctx is
// cancelled.
func Scan(ctx context.Context, roots []string) []SourceFile {
	var out []SourceFile

	isRoot := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		isRoot[root] = struct{}{}
	}

	for _, root := range roots {
		slog.Debug("scanning for source files", "root", root, "excluded", len(ExcludedDirs))

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root {
					return err
				}
				// Permission errors or races: skip the entry
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, other := isRoot[path]; other || IsExcludedDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			file, ok := inspect(path, d)
			if !ok {
				return nil
			}
			out = append(out, file)

			if len(out)%progressEvery == 0 {
				slog.Debug("discovered candidate files", "count", len(out), "latest", path)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				slog.Debug("scan cancelled", "root", root, "error", err)
				break
			}
			slog.Warn("failed to scan root", "root", root, "error", err)
		}
	}

	slog.Debug("scanning completed", "files", len(out), "roots", len(roots))
	return out
}

// IsExcludedDir reports whether a directory with the given base name is pruned
func IsExcludedDir(name string) bool {
	_, ok := ExcludedDirs[name]
	return ok
}

// inspect applies the per-file filters. Any stat/open/read error excludes the file.
func inspect(path string, d fs.DirEntry) (SourceFile, bool) {
	if strings.EqualFold(filepath.Ext(path), ".log") {
		return SourceFile{}, false
	}

	info, err := d.Info()
	if err != nil {
		return SourceFile{}, false
	}
	if info.Size() > MaxFileSize {
		return SourceFile{}, false
	}

	binary, err := looksBinary(path)
	if err != nil || binary {
		return SourceFile{}, false
	}

	return SourceFile{
		Path:    path,
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
	}, true
}

// looksBinary reports whether the first sniffSize bytes contain a NUL byte
func looksBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
