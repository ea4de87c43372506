package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FS writes payloads to the local filesystem.
type FS struct {
	root string
}

// NewFS returns a filesystem store rooted at dir.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

// Put writes the payload to root/key, creating parent directories as needed.
func (s *FS) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create archive dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write archive %s: %w", target, err)
	}
	return target, nil
}
