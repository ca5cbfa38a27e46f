package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanPath returns the absolute, cleaned form of path.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("invalid path: empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// JoinPath joins name under base and rejects results that escape base.
// Script names come from configuration, so "../x.sql" must not reach outside
// the scripts directory.
func JoinPath(base, name string) (string, error) {
	cleanedBase, err := CleanPath(base)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(cleanedBase, name)
	rel, err := filepath.Rel(cleanedBase, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside %s", name, cleanedBase)
	}
	return joined, nil
}

// RegularFile resolves path and checks that it names an existing regular file.
func RegularFile(path string) (string, error) {
	cleaned, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", cleaned)
	}
	return cleaned, nil
}
