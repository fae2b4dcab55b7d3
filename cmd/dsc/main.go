package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes
const (
	exitOK      = 0
	exitPartial = 1 // some items failed, the batch completed
	exitHard    = 2 // invalid arguments or nothing could be done
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "dsc",
		Short: "Dataset Curator - tag, group and augment image datasets",
		Long: `dsc (Dataset Curator) manages folders of training images for
generative-image models. It keeps per-image tags and descriptions, image
groups and the .txt/.json sidecar files in sync, and runs bulk operations:
resizing, augmentation by duplication, mass renaming, tag scrambling and
rephrasing through a local text-generation service.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/dsc.yaml)")
	rootCmd.PersistentFlags().StringP("folder", "f", "", "dataset folder")
	rootCmd.PersistentFlags().String("journal", "dsc-journal.db", "operation journal database file")
	rootCmd.PersistentFlags().String("events-dir", "artifacts", "directory for event logs and reports")
	rootCmd.PersistentFlags().Int("retry-attempts", 1, "attempts for file operations (raise for network shares)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, name := range []string{"folder", "journal", "events-dir", "retry-attempts", "verbose", "quiet"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("dsc")
		viper.SetConfigType("yaml")
	}

	// DSC_FOLDER, DSC_EVENTS_DIR, DSC_REPHRASE_HOST, ...
	viper.SetEnvPrefix("DSC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

// exitError carries the process exit code of a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// usageError reports invalid arguments (exit 2)
func usageError(err error) error {
	return &exitError{code: exitHard, err: err}
}

// partialFailure reports a batch that completed with failed items (exit 1)
func partialFailure(format string, args ...interface{}) error {
	return &exitError{code: exitPartial, err: fmt.Errorf(format, args...)}
}

// exitCode maps a command error onto the process exit code. Errors without
// an explicit code are hard failures.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitHard
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
