package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CheckDir verifies that path exists and is a directory.
// The error wraps ErrNotFound or ErrNotADirectory.
func CheckDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotADirectory)
	}
	return nil
}

// SameDir reports whether two folder paths refer to the same directory
func SameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// SplitExt splits a filename into its base name and extension ("x.jpg" -> "x", ".jpg")
func SplitExt(filename string) (string, string) {
	ext := filepath.Ext(filename)
	return filename[:len(filename)-len(ext)], ext
}

// CopyFile copies a file atomically using a .part temporary file.
// Returns the number of bytes written.
func CopyFile(srcPath, destPath string, cfg *RetryConfig) (int64, error) {
	if err := RetryableMkdirAll(filepath.Dir(destPath), 0755, cfg); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(dest, src)
	closeErr := dest.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to copy: %w", err)
	}

	if info, statErr := os.Stat(srcPath); statErr == nil {
		os.Chtimes(tempPath, info.ModTime(), info.ModTime())
	}

	if err := RetryableRename(tempPath, destPath, cfg); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	return written, nil
}

// WriteFileAtomic writes data to path through a .part temporary file
func WriteFileAtomic(path string, data []byte, cfg *RetryConfig) error {
	tempPath := path + ".part"
	if err := RetryableWriteFile(tempPath, data, cfg); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := RetryableRename(tempPath, path, cfg); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
