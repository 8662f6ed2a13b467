package main

import (
	"fmt"
	"os/exec"
)

// Launcher starts a verified installer without waiting for it.
type Launcher interface {
	Launch(installerPath string) error
}

type detachedLauncher struct{}

func (detachedLauncher) Launch(installerPath string) error {
	if err := prepareExecutable(installerPath); err != nil {
		return err
	}
	cmd := exec.Command(installerPath)
	cmd.SysProcAttr = detachedProcessAttributes()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting %s: %w", installerPath, err)
	}
	sugar.Infof("started installer %s as process %d", installerPath, cmd.Process.Pid)
	return cmd.Process.Release()
}
