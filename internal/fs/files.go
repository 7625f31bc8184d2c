package fs

import (
	"errors"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ListFiles returns the slash-separated paths of the regular files below
// root, sorted, keeping only those accepted by match (nil accepts all). If
// root is itself a file, it is the only candidate. A missing root yields no
// files.
func ListFiles(fsys fs.FS, root string, match func(name string) bool) ([]string, error) {
	root = path.Clean(strings.TrimPrefix(root, "./"))

	var files []string
	err := fs.WalkDir(fsys, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if match == nil || match(name) {
			files = append(files, name)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// FilterFS hides the files of an underlying fs.FS that do not pass its
// inclusion and exclusion glob patterns. Patterns are matched against
// slash-separated paths relative to the root of the file system.
type FilterFS struct {
	fsys     fs.FS
	included []glob.Glob
	excluded []glob.Glob
}

// NewFilterFS wraps fsys. With no inclusion patterns every file not excluded
// is visible.
func NewFilterFS(fsys fs.FS, included, excluded []string) (*FilterFS, error) {
	f := &FilterFS{fsys: fsys}
	var err error
	if f.included, err = compile(included); err != nil {
		return nil, err
	}
	if f.excluded, err = compile(excluded); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Visible reports whether the file called name passes the filters.
func (f *FilterFS) Visible(name string) bool {
	matches := func(g glob.Glob) bool { return g.Match(name) }
	if slices.ContainsFunc(f.excluded, matches) {
		return false
	}
	return len(f.included) == 0 || slices.ContainsFunc(f.included, matches)
}

func (f *FilterFS) Open(name string) (fs.File, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if !fi.IsDir() && !f.Visible(name) {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return file, nil
}

func (f *FilterFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(f.fsys, name)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(entries, func(e fs.DirEntry) bool {
		return !e.IsDir() && !f.Visible(path.Join(name, e.Name()))
	}), nil
}

