package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	sqlExt  = ".sql"
	downExt = ".down.sql"
)

// File is one migration unit on disk. Tag is the filename without the .sql
// extension and doubles as the ordering key: tags are expected to carry a
// sortable prefix (0000_, 0001_, or a timestamp).
type File struct {
	Tag  string
	Path string
}

// ReadSQL returns the full statement batch for the migration.
func (f File) ReadSQL() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", f.Path, err)
	}
	return string(data), nil
}

// DownPath returns the path of the paired down migration for this file.
func (f File) DownPath() string {
	return strings.TrimSuffix(f.Path, sqlExt) + downExt
}

// ReadDownSQL returns the undo statement batch for the migration. The down
// file is authored separately; re-running the forward SQL is never a valid
// undo.
func (f File) ReadDownSQL() (string, error) {
	path := f.DownPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read down migration %s: %w", path, err)
	}
	return string(data), nil
}

// Discover lists migration files in dir sorted lexicographically ascending by
// filename. Down files and anything under meta/ are skipped. A missing or
// unreadable directory is valid fresh-setup state and yields an empty list.
func Discover(dir string) []File {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, sqlExt) || strings.HasSuffix(name, downExt) {
			continue
		}
		files = append(files, File{
			Tag:  strings.TrimSuffix(name, sqlExt),
			Path: filepath.Join(dir, name),
		})
	}

	// Order comes from the filename alone. os.ReadDir already sorts, but the
	// ordering contract is load-bearing enough to not depend on that.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Tag < files[j].Tag
	})
	return files
}
