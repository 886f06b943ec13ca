package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SaveAttachmentFile writes data under dir with a collision-free name derived
// from name and returns the path relative to dir.
func SaveAttachmentFile(dir string, data []byte, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachments dir: %w", err)
	}
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "attachment"
	}
	ref := uuid.NewString() + "_" + base
	if err := os.WriteFile(filepath.Join(dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return ref, nil
}
