package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ArtifactExtensions are the file types read back as artifacts.
var ArtifactExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".css"}

// LoadArtifacts reads every artifact file under dir, keyed by slash-separated
// path relative to dir. node_modules and dot directories are skipped.
func LoadArtifacts(dir string) (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isArtifact(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteArtifacts writes artifacts under dir and returns the written paths in
// name order. Names escaping dir are rejected.
func WriteArtifacts(dir string, artifacts map[string]string) ([]string, error) {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			return written, fmt.Errorf("artifact %q escapes %s", name, dir)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return written, err
		}
		if err := os.WriteFile(path, []byte(artifacts[name]), 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func isArtifact(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range ArtifactExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
