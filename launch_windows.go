//go:build windows

package main

import "syscall"

const detachedProcess = 0x00000008

func detachedProcessAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}

func prepareExecutable(string) error {
	return nil
}
