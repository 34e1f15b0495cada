// Package fileutil writes exported recordings to disk.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileVerified writes data to dst through a temporary file in the same
// directory, verifies the written size and SHA256, then renames it into
// place. dst is left untouched on failure.
func WriteFileVerified(dst string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(tmp, io.TeeReader(bytes.NewReader(data), srcHasher))
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if written != int64(len(data)) {
		return fmt.Errorf("write size mismatch: expected %d bytes, wrote %d bytes", len(data), written)
	}

	sum, size, err := hashFile(tmpPath)
	if err != nil {
		return err
	}
	if size != written {
		return fmt.Errorf("write size mismatch: expected %d bytes, found %d bytes", written, size)
	}
	if !bytes.Equal(sum, srcHasher.Sum(nil)) {
		return fmt.Errorf("write hash mismatch: file corrupted during write")
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reopen for verify: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, fmt.Errorf("verify read: %w", err)
	}
	return h.Sum(nil), n, nil
}
