package folder

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/pixcore/internal/pathkey"
)

// imageExtensions is the set of file extensions the folder model
// enumerates, matching the codec's supported formats plus HEIC/HEIF.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".gif": true, ".webp": true,
	".heic": true, ".heif": true,
}

// FileInfo is one enumerated image file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// scanDir enumerates direct image-file children of dir (depth 1,
// symlink-following), the same single-level fastwalk shape the
// teacher's directory fetch uses.
func scanDir(dir string) ([]FileInfo, error) {
	var (
		mu      sync.Mutex
		results []FileInfo
	)

	conf := &fastwalk.Config{Follow: true}
	dirLen := len(dir)

	err := fastwalk.Walk(conf, dir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if fullPath == dir {
			return nil
		}

		relStart := dirLen
		if relStart < len(fullPath) && (fullPath[relStart] == '/' || fullPath[relStart] == '\\') {
			relStart++
		}
		rel := fullPath[relStart:]
		if strings.ContainsAny(rel, "/\\") {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(fullPath))
		if !imageExtensions[ext] {
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			info, err = os.Lstat(fullPath)
			if err != nil {
				return nil
			}
		}

		mu.Lock()
		results = append(results, FileInfo{
			Path: pathkey.Key(fullPath), Name: d.Name(), Size: info.Size(), ModTime: info.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
