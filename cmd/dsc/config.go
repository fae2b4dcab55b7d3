package main

import (
	"fmt"
	"time"

	"github.com/franz/dataset-curator/internal/project"
	"github.com/franz/dataset-curator/internal/rephrase"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/viper"
)

func setDefaults() {
	viper.SetDefault("rephrase.host", "localhost")
	viper.SetDefault("rephrase.port", 11434)
	viper.SetDefault("rephrase.timeout", "30s")
	viper.SetDefault("rephrase.prompt", rephrase.DefaultPrompt)
	viper.SetDefault("event-level", "info")
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (DSC_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value ("30s", "2m")
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

func setupLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// retryConfig builds the file-operation retry settings
func retryConfig() *util.RetryConfig {
	return util.RetryConfigWithAttempts(GetConfigInt("retry-attempts", 1))
}

// projectFolder returns the dataset folder from --folder / DSC_FOLDER / config
func projectFolder() (string, error) {
	folder := GetConfigString("folder", "")
	if folder == "" {
		return "", usageError(fmt.Errorf("no dataset folder: use --folder, DSC_FOLDER or 'folder' in the config file"))
	}
	return folder, nil
}

// openProject opens the configured dataset folder. Open errors are hard
// failures.
func openProject() (*project.Project, error) {
	folder, err := projectFolder()
	if err != nil {
		return nil, err
	}
	return openProjectAt(folder)
}

func openProjectAt(folder string) (*project.Project, error) {
	var sink util.LogSink
	if util.IsVerbose() {
		sink = util.ConsoleSink{}
	}
	p, result, err := project.Open(folder, project.Options{Retry: retryConfig(), Sink: sink})
	if err != nil {
		return nil, usageError(fmt.Errorf("failed to open %s: %w", folder, err))
	}
	util.DebugLog("Opened %s: %d images, tag mode %t", p.Folder(), result.Images, result.TagMode)
	return p, nil
}

// rephraseConfig builds the rephrase client settings
func rephraseConfig() rephrase.Config {
	def := rephrase.DefaultConfig()
	return rephrase.Config{
		Host:    GetConfigString("rephrase.host", def.Host),
		Port:    GetConfigInt("rephrase.port", def.Port),
		Model:   GetConfigString("rephrase.model", ""),
		Timeout: GetConfigDuration("rephrase.timeout", def.Timeout),
		Prompt:  GetConfigString("rephrase.prompt", def.Prompt),
	}
}
