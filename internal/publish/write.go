package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

type WriteOptions struct {
	Overwrite bool
}

// WriteFile writes a rendered report to path, creating parent directories.
func WriteFile(path, content string, opt WriteOptions) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("missing --out")
	}
	path = filepath.Clean(path)
	if !opt.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
