package sidecar

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/dataset-curator/internal/util"
)

// TextName returns the sidecar filename of an image ("x.jpg" -> "x.txt")
func TextName(imageFilename string) string {
	base, _ := util.SplitExt(imageFilename)
	return base + ".txt"
}

// TextPath returns the sidecar path of an image inside folder
func TextPath(folder, imageFilename string) string {
	return filepath.Join(folder, TextName(imageFilename))
}

// ReadText returns the trimmed sidecar description of an image.
// ok is false when there is no sidecar file.
func ReadText(folder, imageFilename string) (string, bool, error) {
	data, err := os.ReadFile(TextPath(folder, imageFilename))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteText writes the sidecar description of an image
func WriteText(folder, imageFilename, description string, cfg *util.RetryConfig) error {
	return util.WriteFileAtomic(TextPath(folder, imageFilename), []byte(description), cfg)
}

// RemoveText deletes the sidecar of an image. Returns true if a file was removed.
func RemoveText(folder, imageFilename string, cfg *util.RetryConfig) (bool, error) {
	path := TextPath(folder, imageFilename)
	if !util.FileExists(path) {
		return false, nil
	}
	if err := util.RetryableRemove(path, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// CopyText copies the sidecar of srcImage in srcFolder to the sidecar of
// destImage in destFolder. Returns false when the source has no sidecar.
func CopyText(srcFolder, srcImage, destFolder, destImage string, cfg *util.RetryConfig) (bool, error) {
	src := TextPath(srcFolder, srcImage)
	if !util.FileExists(src) {
		return false, nil
	}
	if _, err := util.CopyFile(src, TextPath(destFolder, destImage), cfg); err != nil {
		return false, err
	}
	return true, nil
}

// WriteConsolidated writes the {folder}_descriptions.json export
func WriteConsolidated(folder string, entries []Entry, cfg *util.RetryConfig) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := EncodeJSON(entries)
	if err != nil {
		return "", err
	}
	path := filepath.Join(folder, ConsolidatedName(folder))
	if err := util.WriteFileAtomic(path, data, cfg); err != nil {
		return "", err
	}
	return path, nil
}
