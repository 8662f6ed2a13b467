//go:build unix

package main

import (
	"fmt"
	"os"
	"syscall"
)

func detachedProcessAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// downloads are written without the executable bit
func prepareExecutable(installerPath string) error {
	if err := os.Chmod(installerPath, os.FileMode(0755)); err != nil {
		return fmt.Errorf("error making %s executable: %w", installerPath, err)
	}
	return nil
}
