package main

import "fmt"

// types used when resolving mirrors
type Program struct {
	ID           string
	VersionRange string
	Mirrors      []string
}

type MirrorAttempt struct {
	Index        int
	Template     string
	InstallerURL string
	ChecksumURL  string
}

func (ma MirrorAttempt) String() string {
	return fmt.Sprintf("mirror #%d (%s)", ma.Index+1, ma.InstallerURL)
}

// types used when downloading
type DownloadResult struct {
	URL   string
	Path  string
	Bytes int64
}

type FetchFailureReason int

const (
	FETCH_NOT_FOUND FetchFailureReason = iota
	FETCH_TRANSPORT_ERROR
	FETCH_SIZE_MISMATCH
)

func (r FetchFailureReason) String() string {
	switch r {
	case FETCH_NOT_FOUND:
		return "NotFound"
	case FETCH_TRANSPORT_ERROR:
		return "TransportError"
	case FETCH_SIZE_MISMATCH:
		return "SizeMismatch"
	default:
		return fmt.Sprintf("FetchFailureReason(%d)", int(r))
	}
}

// types used by the orchestrator
type UpdateState int

const (
	STATE_IDLE UpdateState = iota
	STATE_RESOLVING_MIRRORS
	STATE_ATTEMPTING_MIRROR
	STATE_VERIFYING
	STATE_TERMINATING
	STATE_LAUNCHING
	STATE_SUCCEEDED
	STATE_FAILED
)

func (s UpdateState) String() string {
	switch s {
	case STATE_IDLE:
		return "Idle"
	case STATE_RESOLVING_MIRRORS:
		return "ResolvingMirrors"
	case STATE_ATTEMPTING_MIRROR:
		return "AttemptingMirror"
	case STATE_VERIFYING:
		return "Verifying"
	case STATE_TERMINATING:
		return "Terminating"
	case STATE_LAUNCHING:
		return "Launching"
	case STATE_SUCCEEDED:
		return "Succeeded"
	case STATE_FAILED:
		return "Failed"
	default:
		return fmt.Sprintf("UpdateState(%d)", int(s))
	}
}

type UpdateResult struct {
	ProgramID     string
	Version       string
	MirrorURL     string
	InstallerPath string
	Bytes         int64
	Attempts      int
}
