package main

import "time"

const (
	VERSION_PLACEHOLDER   = "{version}"
	CHECKSUM_SUFFIX       = "-sha512.sha"
	DEFAULT_INSTALLER_EXT = ".exe"
	DOWNLOAD_BLOCK_SIZE   = 32 * 1024
	DIGEST_BLOCK_SIZE     = 64 * 1024
	MAX_CHECKSUM_SIZE     = 4 * 1024
	DEFAULT_USER_AGENT    = "setup-updater"
	DEFAULT_DOWNLOAD_DIR  = "updater"
)

const (
	DEFAULT_MIRROR_TIMEOUT = 5 * time.Minute
	DEFAULT_TERMINATE_WAIT = 5 * time.Second
	TERMINATE_POLL_PERIOD  = 500 * time.Millisecond
)

const (
	PROCESS_CONTROL_AUTO   = "auto"
	PROCESS_CONTROL_ALWAYS = "always"
	PROCESS_CONTROL_NEVER  = "never"
)

// process exit codes
const (
	EXIT_OK              = 0
	EXIT_FAILURE         = 1
	EXIT_UNREACHABLE     = 2
	EXIT_STILL_RUNNING   = 3
	EXIT_NO_ARGUMENTS    = 4
	EXIT_UNKNOWN_PROGRAM = 5
)
