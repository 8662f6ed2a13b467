package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// the staging area owns the installer file for the duration of one mirror attempt
type installerStaging struct {
	downloadRoot string
}

func NewInstallerStaging(downloadRoot string) installerStaging {
	return installerStaging{downloadRoot: downloadRoot}
}

func (s installerStaging) Prepare() error {
	err := os.MkdirAll(s.downloadRoot, os.FileMode(0755))
	if err != nil {
		return fmt.Errorf("error creating download directory %s: %w", s.downloadRoot, err)
	}
	return nil
}

// The installer keeps the extension of the file it was downloaded as, so that
// the platform knows how to start it.
func (s installerStaging) InstallerPath(programID string, installerURL string) string {
	ext := DEFAULT_INSTALLER_EXT
	if u, err := url.Parse(installerURL); err == nil {
		if e := installerExtension(u.Path); e != "" {
			ext = e
		}
	}
	return filepath.Join(s.downloadRoot, fmt.Sprintf("%s-setup%s", programID, ext))
}

func (s installerStaging) Discard(filePath string) {
	removeIfExists(filePath)
}
