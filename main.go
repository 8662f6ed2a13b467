package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	var programID string
	var version string
	var urlTemplate string
	var configPath string
	var loggerType string
	var downloadDir string
	var mirrorTimeout time.Duration
	var noProgress bool

	flags := flag.NewFlagSet("setup-updater", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&programID, "p", "", "Program name")
	flags.StringVar(&version, "v", "", "Version number of the installer executable")
	flags.StringVar(&urlTemplate, "url", "", "Installer URL template containing "+VERSION_PLACEHOLDER+", used instead of the program's mirrors")
	flags.StringVar(&configPath, "config-path", "", "Path to a configuration file adding or overriding mirrors")
	flags.StringVar(&loggerType, "logger-type", "development", "Logger type (development or production)")
	flags.StringVar(&downloadDir, "download-dir", "", "Directory the installer is downloaded to")
	flags.DurationVar(&mirrorTimeout, "timeout", -1, "Timeout for downloading from a single mirror, 0 disables it")
	flags.BoolVar(&noProgress, "no-progress", false, "Do not show a progress bar while downloading")
	flags.Usage = func() {
		showHelp(stderr, flags)
	}

	if len(args) == 0 {
		showHelp(stderr, flags)
		return EXIT_NO_ARGUMENTS
	}
	err := flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return EXIT_OK
	}
	if err != nil {
		return EXIT_NO_ARGUMENTS
	}
	if programID == "" || version == "" {
		fmt.Fprintln(stderr, "Invalid command line options.")
		showHelp(stderr, flags)
		return EXIT_NO_ARGUMENTS
	}
	// the program name ends up in a file name in the download directory
	err = ValidateProgramID(programID)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return EXIT_NO_ARGUMENTS
	}
	if !StringInSlice(loggerType, []string{"development", "production"}) {
		fmt.Fprintf(stderr, "%s is not a valid logger type\n", loggerType)
		return EXIT_NO_ARGUMENTS
	}

	var logger *zap.Logger
	if loggerType == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(stderr, "unable to create logger: %v\n", err)
		return EXIT_FAILURE
	}
	defer logger.Sync()
	sugar = logger.Sugar()

	config, err := LoadConfig(configPath)
	if err != nil {
		sugar.Errorf("error loading configuration: %v", err)
		return EXIT_FAILURE
	}
	if downloadDir != "" {
		config.DownloadDir = downloadDir
	}
	if mirrorTimeout >= 0 {
		config.MirrorTimeout = mirrorTimeout
	}
	if urlTemplate != "" {
		err = ValidateTemplate(urlTemplate)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return EXIT_NO_ARGUMENTS
		}
		program := config.Programs[programID]
		program.Mirrors = []string{urlTemplate}
		config.Programs[programID] = program
	}

	processes, err := NewProcessController(config.ProcessControl, runtime.GOOS)
	if err != nil {
		sugar.Errorf("error selecting process controller: %v", err)
		return EXIT_FAILURE
	}
	var progress ProgressReporter = NewBarProgress(stderr)
	if noProgress {
		progress = noopProgress{}
	}

	resolver := NewMirrorResolver(config.Programs)
	updater := NewUpdater(config, resolver, NewDownloader(config, progress), processes, detachedLauncher{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err = updater.Run(ctx, programID, version)
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "Finished successfully.")
	case errors.Is(err, ErrUnknownProgram):
		fmt.Fprintln(stdout, "Unknown program. Aborting update!")
		fmt.Fprintf(stdout, "Known programs: %s\n", strings.Join(resolver.ProgramIDs(), ", "))
	case errors.Is(err, ErrBadInput):
		fmt.Fprintln(stderr, err)
		showHelp(stderr, flags)
	case errors.Is(err, ErrAllMirrorsExhausted):
		fmt.Fprintln(stdout, "No update found. Giving up.")
	case errors.Is(err, ErrCannotStopRunningInstance):
		fmt.Fprintf(stdout, "Unable to stop the running %s. Close it and try again.\n", programID)
	default:
		fmt.Fprintf(stdout, "Update failed: %v\n", err)
	}
	return ExitCodeForError(err)
}

func showHelp(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "############ Program updater #################")
	fmt.Fprintln(w, "Command line options:")
	fmt.Fprintln(w, "-v version  : Version number of the installer executable")
	fmt.Fprintln(w, "-p name     : Program name")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All options:")
	flags.PrintDefaults()
}

// LoadConfig reads the built-in mirror table and, if configPath is set, the
// configuration file on top of it. Programs in the file replace built-in
// programs of the same name.
func LoadConfig(configPath string) (config Configuration, err error) {
	var raw configRaw
	err = yaml.Unmarshal(defaultMirrorTable, &raw)
	if err != nil {
		return config, fmt.Errorf("error parsing built-in mirror table: %w", err)
	}

	if configPath != "" {
		configData, err := os.ReadFile(configPath)
		if err != nil {
			return config, err
		}
		var fileRaw configRaw
		err = yaml.Unmarshal(configData, &fileRaw)
		if err != nil {
			return config, err
		}
		raw = mergeConfigRaw(raw, fileRaw)
	}

	return configurationFromRaw(raw)
}

func mergeConfigRaw(base configRaw, override configRaw) configRaw {
	merged := base
	if override.DownloadDir != "" {
		merged.DownloadDir = override.DownloadDir
	}
	if override.MirrorTimeout != nil {
		merged.MirrorTimeout = override.MirrorTimeout
	}
	if override.TerminateWait != nil {
		merged.TerminateWait = override.TerminateWait
	}
	if override.ProcessControl != "" {
		merged.ProcessControl = override.ProcessControl
	}
	if override.UserAgent != "" {
		merged.UserAgent = override.UserAgent
	}
	if override.S3Endpoint != "" {
		merged.S3Endpoint = override.S3Endpoint
	}

	merged.Programs = make(map[string]ProgramMirrorConfiguration, len(base.Programs)+len(override.Programs))
	for id, p := range base.Programs {
		merged.Programs[id] = p
	}
	for id, p := range override.Programs {
		merged.Programs[id] = p
	}
	return merged
}

func configurationFromRaw(raw configRaw) (config Configuration, err error) {
	config = Configuration{
		DownloadDir:    raw.DownloadDir,
		MirrorTimeout:  DEFAULT_MIRROR_TIMEOUT,
		TerminateWait:  DEFAULT_TERMINATE_WAIT,
		ProcessControl: strings.ToLower(raw.ProcessControl),
		UserAgent:      raw.UserAgent,
		S3Endpoint:     raw.S3Endpoint,
		Programs:       make(map[string]Program, len(raw.Programs)),
	}
	if config.DownloadDir == "" {
		config.DownloadDir = filepath.Join(os.TempDir(), DEFAULT_DOWNLOAD_DIR)
	}
	if raw.MirrorTimeout != nil {
		config.MirrorTimeout = *raw.MirrorTimeout
	}
	if raw.TerminateWait != nil {
		config.TerminateWait = *raw.TerminateWait
	}
	if config.MirrorTimeout < 0 || config.TerminateWait < 0 {
		return config, fmt.Errorf("mirror_timeout and terminate_wait must not be negative")
	}
	if config.ProcessControl == "" {
		config.ProcessControl = PROCESS_CONTROL_AUTO
	}
	if !StringInSlice(config.ProcessControl, []string{PROCESS_CONTROL_AUTO, PROCESS_CONTROL_ALWAYS, PROCESS_CONTROL_NEVER}) {
		return config, fmt.Errorf("%s is not a known process control mode", raw.ProcessControl)
	}

	for id, p := range raw.Programs {
		if len(p.Mirrors) == 0 {
			return config, fmt.Errorf("program %s has no mirrors", id)
		}
		for _, template := range p.Mirrors {
			err = ValidateTemplate(template)
			if err != nil {
				return config, fmt.Errorf("program %s: %w", id, err)
			}
		}
		if p.VersionRange != "" {
			_, err = semver.ParseRange(p.VersionRange)
			if err != nil {
				return config, fmt.Errorf("program %s has an invalid version range %q: %w", id, p.VersionRange, err)
			}
		}
		config.Programs[id] = Program{
			ID:           id,
			VersionRange: p.VersionRange,
			Mirrors:      append([]string(nil), p.Mirrors...),
		}
	}

	return config, nil
}
