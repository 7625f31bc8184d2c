package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/crate2gn/crate2gn/internal/jsonpatch"
)

var configExtensions = []string{".yaml", ".yml", ".json"}

// Merge reads the given files, descending into directories, and merges them
// into a single YAML document. Mappings are merged recursively. For any other
// value the last file wins unless conflictError is set, in which case
// differing values are an error.
func Merge(configFiles []string, conflictError bool) ([]byte, error) {
	paths, err := configPaths(configFiles)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	for _, path := range paths {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(bs, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration file %s: %w", path, err)
		}
		if err := mergeInto(merged, doc, "", conflictError); err != nil {
			return nil, err
		}
	}

	bs, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %w", err)
	}
	return bs, nil
}

// configPaths expands directories into the configuration files below them.
// Files named explicitly are kept whatever their extension.
func configPaths(configFiles []string) ([]string, error) {
	var paths []string
	for _, root := range configFiles {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			switch {
			case err != nil:
				return err
			case d.IsDir():
				return nil
			case path == root || slices.Contains(configExtensions, filepath.Ext(path)):
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func mergeInto(dst, src map[string]any, path string, conflictError bool) error {
	// Sorted so that conflict errors are deterministic.
	for _, key := range slices.Sorted(maps.Keys(src)) {
		value, keyPath := src[key], path+"/"+key
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}

		existingMap, ok1 := existing.(map[string]any)
		valueMap, ok2 := value.(map[string]any)
		if ok1 && ok2 {
			if err := mergeInto(existingMap, valueMap, keyPath, conflictError); err != nil {
				return err
			}
			continue
		}

		if conflictError && !reflect.DeepEqual(existing, value) {
			return fmt.Errorf("conflict for config path %s", keyPath)
		}
		dst[key] = value
	}
	return nil
}

// LoadOptions describe where the configuration comes from.
type LoadOptions struct {
	Files         []string
	ConflictError bool
	PatchFile     string
}

// Load merges the configuration files, applies the optional patch and parses
// the result. Without any file it returns an empty configuration.
func Load(opts LoadOptions) (*Root, error) {
	if len(opts.Files) == 0 && opts.PatchFile == "" {
		return &Root{}, nil
	}

	var bs []byte
	if len(opts.Files) > 0 {
		var err error
		bs, err = Merge(opts.Files, opts.ConflictError)
		if err != nil {
			return nil, err
		}
	}

	if opts.PatchFile != "" {
		p, err := jsonpatch.DecodeFile(opts.PatchFile)
		if err != nil {
			return nil, err
		}
		bs, err = jsonpatch.Apply(p, bs)
		if err != nil {
			return nil, fmt.Errorf("failed to apply configuration patch: %w", err)
		}
	}

	return Parse(bs)
}
