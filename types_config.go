package main

import "time"

// types used for the config
type ProgramMirrorConfiguration struct {
	VersionRange string   `yaml:"version_range"`
	Mirrors      []string `yaml:"mirrors"`
}

type configRaw struct {
	DownloadDir    string                                `yaml:"download_dir"`
	MirrorTimeout  *time.Duration                        `yaml:"mirror_timeout"`
	TerminateWait  *time.Duration                        `yaml:"terminate_wait"`
	ProcessControl string                                `yaml:"process_control"`
	UserAgent      string                                `yaml:"user_agent"`
	S3Endpoint     string                                `yaml:"s3_endpoint"`
	Programs       map[string]ProgramMirrorConfiguration `yaml:"programs"`
}

type Configuration struct {
	DownloadDir    string
	MirrorTimeout  time.Duration
	TerminateWait  time.Duration
	ProcessControl string
	UserAgent      string
	S3Endpoint     string
	Programs       map[string]Program
}
