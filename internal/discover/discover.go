// Package discover enumerates dataset files and reads their raw JSON
// records. It understands three file layouts (JSON array, JSON Lines,
// single object) plus the topic-keyed recording format, and can survey
// a dataset without fully parsing it.
package discover

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

// FindFiles locates the dataset's JSON files under root. With explicit
// scenarioDirs (relative to root) only those directories are listed,
// non-recursively. Otherwise any scenarios/<name>.json anywhere under
// root is taken; datasets without that convention fall back to every
// JSON file in the tree. The result is sorted.
func FindFiles(fsys fsutil.FileSystem, root string, scenarioDirs []string) ([]string, error) {
	if len(scenarioDirs) > 0 {
		var files []string
		for _, dir := range scenarioDirs {
			full := filepath.Join(root, dir)
			if !fsys.Exists(full) {
				log.Printf("scenario directory not found: %s", full)
				continue
			}
			entries, err := listJSON(fsys, full, false)
			if err != nil {
				return nil, err
			}
			log.Printf("found %d files in %s", len(entries), dir)
			files = append(files, entries...)
		}
		sort.Strings(files)
		return files, nil
	}

	if !fsys.Exists(root) {
		return nil, fmt.Errorf("input directory not found: %s", root)
	}

	var files []string
	err := fsys.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "scenarios" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	if len(files) == 0 {
		files, err = listJSON(fsys, root, true)
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// listJSON returns the JSON files under dir, recursing only when asked.
func listJSON(fsys fsutil.FileSystem, dir string, recursive bool) ([]string, error) {
	dir = filepath.Clean(dir)
	var files []string
	err := fsys.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && filepath.Clean(path) != dir {
				return fs.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}
