//go:build !unix && !windows

package main

import "syscall"

func detachedProcessAttributes() *syscall.SysProcAttr {
	return nil
}

func prepareExecutable(string) error {
	return nil
}
