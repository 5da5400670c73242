// Package pathkey normalizes filesystem paths into stable comparison and
// storage keys shared by the scheduler, pixmap cache, and thumbnail store.
package pathkey

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Normalize cleans path into its canonical absolute form. Relative paths
// are resolved against base (typically the caller's current folder, not
// the process working directory). Home-directory expansion mirrors the
// teacher's own navigation handling: "~" and "~/..." resolve against
// home.
func Normalize(path, base, home string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return filepath.Clean(base)
	}

	if strings.HasPrefix(path, "~") {
		if path == "~" {
			return filepath.Clean(home)
		}
		if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~\\") {
			return filepath.Clean(filepath.Join(home, path[2:]))
		}
	}

	if isAbsolute(path) {
		return filepath.Clean(path)
	}

	return filepath.Clean(filepath.Join(base, path))
}

func isAbsolute(path string) bool {
	if len(path) == 0 {
		return false
	}
	if path[0] == '/' {
		return true
	}
	if runtime.GOOS == "windows" {
		if len(path) >= 2 && isLetter(path[0]) && path[1] == ':' {
			return true
		}
		if len(path) >= 2 && path[0] == '\\' && path[1] == '\\' {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Key is the canonical form of a path used for map lookups and database
// rows. On case-insensitive filesystems (Windows) it folds case so that
// two spellings of the same file collapse to one entry; elsewhere it is
// the cleaned path unchanged.
func Key(path string) string {
	cleaned := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		return strings.ToLower(cleaned)
	}
	return cleaned
}

// Equal reports whether two paths denote the same Key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
