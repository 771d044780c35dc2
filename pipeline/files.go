package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

func artifactPath(dir, name string) string {
	return filepath.Join(dir, name)
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

// writeArtifacts stages every file as a temp file in dir and renames them
// into place only after all writes succeed.
func writeArtifacts(dir string, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	staged := make(map[string]string, len(names))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, name := range names {
		tmp, err := writeTemp(dir, name, files[name])
		if err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", name, err)
		}
		staged[name] = tmp
	}
	for _, name := range names {
		if err := os.Rename(staged[name], filepath.Join(dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", name, err)
		}
		delete(staged, name)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// writeFileAtomic replaces path with data through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := writeTemp(dir, name, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
