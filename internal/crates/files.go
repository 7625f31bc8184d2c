package crates

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	c2g_fs "github.com/crate2gn/crate2gn/internal/fs"
)

// CrateFiles lists the absolute paths of the files a crate's rules consume.
type CrateFiles struct {
	Sources            []string
	Inputs             []string
	NativeLibs         []string
	BuildScriptSources []string
	BuildScriptInputs  []string
}

// FileRoots are the configured extra directories, relative to the crate
// directory, and the exclusion patterns applied to everything collected.
type FileRoots struct {
	ExtraSrcRoots              []string
	ExtraInputRoots            []string
	NativeLibsRoots            []string
	ExtraBuildScriptSrcRoots   []string
	ExtraBuildScriptInputRoots []string
	ExcludedFiles              []string
}

func isRust(name string) bool {
	return strings.HasSuffix(name, ".rs")
}

// CollectFiles gathers the files of the crate rooted at dir. fsys must expose
// the contents of dir at its root. targetRoots are the absolute source roots
// of the crate's library and binary targets; buildScript is the absolute path
// of the build script or empty.
func CollectFiles(fsys fs.FS, dir string, targetRoots []string, buildScript string, roots FileRoots) (*CrateFiles, error) {
	filtered, err := c2g_fs.NewFilterFS(fsys, nil, roots.ExcludedFiles)
	if err != nil {
		return nil, fmt.Errorf("excluded files: %w", err)
	}

	c := collector{fsys: filtered, dir: dir}

	var srcDirs []string
	for _, root := range targetRoots {
		rel, err := c.rel(root)
		if err != nil {
			return nil, err
		}
		srcDirs = append(srcDirs, path.Dir(rel))
	}
	srcDirs = append(srcDirs, roots.ExtraSrcRoots...)

	files := &CrateFiles{}
	if files.Sources, err = c.collect(srcDirs, isRust); err != nil {
		return nil, err
	}
	if files.Inputs, err = c.collect(roots.ExtraInputRoots, nil); err != nil {
		return nil, err
	}
	if files.NativeLibs, err = c.collect(roots.NativeLibsRoots, nil); err != nil {
		return nil, err
	}

	if buildScript != "" {
		if _, err := c.rel(buildScript); err != nil {
			return nil, err
		}
		if files.BuildScriptSources, err = c.collect(roots.ExtraBuildScriptSrcRoots, isRust); err != nil {
			return nil, err
		}
		files.BuildScriptSources = insertSorted(files.BuildScriptSources, filepath.Clean(buildScript))
		if files.BuildScriptInputs, err = c.collect(roots.ExtraBuildScriptInputRoots, nil); err != nil {
			return nil, err
		}
	}

	return files, nil
}

type collector struct {
	fsys fs.FS
	dir  string
}

func (c collector) rel(abs string) (string, error) {
	rel, err := filepath.Rel(c.dir, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside of crate directory %s", abs, c.dir)
	}
	return rel, nil
}

func (c collector) collect(dirs []string, match func(string) bool) ([]string, error) {
	var result []string
	for _, d := range dirs {
		names, err := c2g_fs.ListFiles(c.fsys, d, match)
		if err != nil {
			return nil, fmt.Errorf("collect files in %s: %w", filepath.Join(c.dir, d), err)
		}
		for _, name := range names {
			result = insertSorted(result, filepath.Join(c.dir, filepath.FromSlash(name)))
		}
	}
	return result, nil
}

func insertSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}
