package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var pollSleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Updater downloads, verifies and launches the installer of a program, trying
// the program's mirrors one at a time.
type Updater struct {
	resolver      *MirrorResolver
	fetcher       ArtifactFetcher
	processes     ProcessController
	launcher      Launcher
	staging       installerStaging
	mirrorTimeout time.Duration
	terminateWait time.Duration
	pollInterval  time.Duration

	state         UpdateState
	onStateChange func(from UpdateState, to UpdateState)
}

func NewUpdater(config Configuration, resolver *MirrorResolver, fetcher ArtifactFetcher, processes ProcessController, launcher Launcher) *Updater {
	return &Updater{
		resolver:      resolver,
		fetcher:       fetcher,
		processes:     processes,
		launcher:      launcher,
		staging:       NewInstallerStaging(config.DownloadDir),
		mirrorTimeout: config.MirrorTimeout,
		terminateWait: config.TerminateWait,
		pollInterval:  TERMINATE_POLL_PERIOD,
		state:         STATE_IDLE,
	}
}

func (u *Updater) State() UpdateState {
	return u.state
}

func (u *Updater) Run(ctx context.Context, programID string, version string) (*UpdateResult, error) {
	log := sugar.With("run", uuid.NewString(), "program", programID, "version", version)
	u.state = STATE_IDLE

	err := ValidateProgramID(programID)
	if err != nil {
		return nil, u.fail(log, err)
	}

	u.transition(log, STATE_RESOLVING_MIRRORS)
	program, err := u.resolver.Program(programID)
	if err != nil {
		return nil, u.fail(log, err)
	}
	err = ValidateVersion(program, version)
	if err != nil {
		return nil, u.fail(log, err)
	}
	attempts, err := u.resolver.Attempts(programID, version)
	if err != nil {
		return nil, u.fail(log, err)
	}
	err = u.staging.Prepare()
	if err != nil {
		return nil, u.fail(log, err)
	}

	var lastErr error
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return nil, u.fail(log, fmt.Errorf("update cancelled: %w", ctx.Err()))
		}

		u.transition(log, STATE_ATTEMPTING_MIRROR)
		download, err := u.attemptMirror(ctx, log, programID, attempt)
		if err != nil {
			lastErr = err
			log.Warnf("%s failed, trying next mirror: %v", attempt, err)
			continue
		}

		err = u.stopRunningInstance(ctx, log, programID)
		if err != nil {
			return nil, u.fail(log, err)
		}

		u.transition(log, STATE_LAUNCHING)
		err = u.launcher.Launch(download.Path)
		if err != nil {
			return nil, u.fail(log, fmt.Errorf("%w: %w", ErrLaunchFailed, err))
		}

		u.transition(log, STATE_SUCCEEDED)
		log.Infof("update of %s to %s handed over to %s", programID, version, download.Path)
		return &UpdateResult{
			ProgramID:     programID,
			Version:       version,
			MirrorURL:     attempt.InstallerURL,
			InstallerPath: download.Path,
			Bytes:         download.Bytes,
			Attempts:      attempt.Index + 1,
		}, nil
	}

	if ctx.Err() != nil {
		return nil, u.fail(log, fmt.Errorf("update cancelled: %w", ctx.Err()))
	}
	return nil, u.fail(log, fmt.Errorf("%w: tried %d mirrors for %s %s, last error: %v", ErrAllMirrorsExhausted, len(attempts), programID, version, lastErr))
}

// attemptMirror fetches the installer and its checksum from one mirror and
// verifies them against each other. On any failure the installer file is removed.
func (u *Updater) attemptMirror(ctx context.Context, log *zap.SugaredLogger, programID string, attempt MirrorAttempt) (DownloadResult, error) {
	if u.mirrorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.mirrorTimeout)
		defer cancel()
	}

	destPath := u.staging.InstallerPath(programID, attempt.InstallerURL)
	log.Infof("downloading setup file from %s", attempt.InstallerURL)
	download, err := u.fetcher.Fetch(ctx, attempt.InstallerURL, destPath)
	if err != nil {
		u.staging.Discard(destPath)
		return DownloadResult{}, err
	}

	log.Debugf("downloading checksum from %s", attempt.ChecksumURL)
	remoteDigest, err := u.fetcher.FetchText(ctx, attempt.ChecksumURL)
	if err != nil {
		u.staging.Discard(download.Path)
		return DownloadResult{}, fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	if strings.TrimSpace(remoteDigest) == "" {
		u.staging.Discard(download.Path)
		return DownloadResult{}, fmt.Errorf("%w: %s is empty", ErrChecksumUnavailable, attempt.ChecksumURL)
	}

	u.transition(log, STATE_VERIFYING)
	localDigest, err := Digest(download.Path)
	if err != nil {
		u.staging.Discard(download.Path)
		return DownloadResult{}, err
	}
	if !Verify(localDigest, remoteDigest) {
		u.staging.Discard(download.Path)
		return DownloadResult{}, fmt.Errorf("%w: %s does not match the digest of %s", ErrChecksumMismatch, attempt.ChecksumURL, attempt.InstallerURL)
	}

	log.Infof("checksum OK for %s (%d bytes)", attempt.InstallerURL, download.Bytes)
	return download, nil
}

// The installer must never run next to a live instance of the program, so the
// kill is repeated until the instance is gone or terminateWait has passed.
func (u *Updater) stopRunningInstance(ctx context.Context, log *zap.SugaredLogger, programID string) error {
	u.transition(log, STATE_TERMINATING)

	polls := 1
	if u.pollInterval > 0 && u.terminateWait > u.pollInterval {
		polls = int(u.terminateWait / u.pollInterval)
	}

	for poll := 0; ; poll++ {
		err := u.processes.Terminate(ctx, programID)
		if err != nil {
			log.Warnf("unable to terminate %s: %v", programID, err)
		}

		running, err := u.processes.IsRunning(ctx, programID)
		if ctx.Err() != nil {
			return fmt.Errorf("update cancelled: %w", ctx.Err())
		}
		if err != nil {
			return fmt.Errorf("%w: unable to tell whether %s is running: %w", ErrCannotStopRunningInstance, programID, err)
		}
		if !running {
			return nil
		}
		if poll >= polls {
			return fmt.Errorf("%w: %s is still running", ErrCannotStopRunningInstance, programID)
		}

		log.Debugf("%s is still running, waiting %s", programID, u.pollInterval)
		err = pollSleep(ctx, u.pollInterval)
		if err != nil {
			return fmt.Errorf("update cancelled: %w", err)
		}
	}
}

func (u *Updater) transition(log *zap.SugaredLogger, to UpdateState) {
	from := u.state
	u.state = to
	log.Debugf("state %s -> %s", from, to)
	if u.onStateChange != nil {
		u.onStateChange(from, to)
	}
}

func (u *Updater) fail(log *zap.SugaredLogger, err error) error {
	u.transition(log, STATE_FAILED)
	log.Errorf("update failed: %v", err)
	return err
}
