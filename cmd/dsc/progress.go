package main

import (
	"os"
	"time"

	"github.com/franz/dataset-curator/internal/bulk"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/schollz/progressbar/v3"
)

// progressLogEvery is the item interval for progress lines when no bar is shown
const progressLogEvery = 25

// newProgress returns a progress callback for a bulk run and a function that
// finishes the display. A bar is drawn only on a terminal and when not quiet.
func newProgress(description string) (bulk.ProgressFunc, func()) {
	// Check if stderr is a terminal (disable progress bar if piped/redirected)
	if !util.IsTerminal(os.Stderr.Fd()) || util.IsQuiet() {
		return func(done, total int, filename string) {
			if done == total || done%progressLogEvery == 0 {
				util.InfoLog("%s: %d/%d (%.1f%%)", description, done, total, float64(done)/float64(total)*100)
			} else {
				util.DebugLog("%s: %s", description, filename)
			}
		}, func() {}
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int, filename string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetRenderBlankState(true),
			)
		}
		bar.Set(done)
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}
	return progress, finish
}
