package bulk

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/util"
)

// prepareOutput resolves the output folder ("" = project folder) and
// creates it when missing
func (o *Orchestrator) prepareOutput(output string) (string, error) {
	if output == "" {
		return o.project.Folder(), nil
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", err
	}
	if util.FileExists(abs) {
		if err := util.CheckDir(abs); err != nil {
			return "", err
		}
		return abs, nil
	}
	if err := util.RetryableMkdirAll(abs, 0755, o.retry); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}
	return abs, nil
}

// encodeReplace encodes img next to dest and renames it into place, so a
// failed encode never clobbers an existing file
func (o *Orchestrator) encodeReplace(dest string, img image.Image) (int64, error) {
	tmp := filepath.Join(filepath.Dir(dest), ".dsc-tmp-"+filepath.Base(dest))
	if err := o.processor.Encode(tmp, img); err != nil {
		return 0, err
	}
	if err := util.RetryableRename(tmp, dest, o.retry); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move %s into place: %w", filepath.Base(dest), err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}

// copyText copies the .txt sidecar of srcImage, if any, next to destImage
func (o *Orchestrator) copyText(srcImage, destFolder, destImage string) {
	if _, err := sidecar.CopyText(o.project.Folder(), srcImage, destFolder, destImage, o.retry); err != nil {
		util.WarnLog("Could not copy %s: %v", sidecar.TextName(srcImage), err)
	}
}

// copyMetadata copies every JSON file of folder into output
func (o *Orchestrator) copyMetadata(folder, output string) {
	names, err := sidecar.ListJSONFiles(folder)
	if err != nil {
		util.WarnLog("Could not list metadata files: %v", err)
		return
	}
	for _, name := range names {
		if _, err := util.CopyFile(filepath.Join(folder, name), filepath.Join(output, name), o.retry); err != nil {
			util.WarnLog("Could not copy %s: %v", name, err)
			continue
		}
		util.DebugLog("Copied %s to %s", name, output)
	}
}
