//go:build unix

package buildlog

import (
	"os"
	"syscall"
)

// setCloseOnExec marks f's file descriptor close-on-exec, so a spawned
// build command never inherits our open log handle.
func setCloseOnExec(f *os.File) {
	syscall.CloseOnExec(int(f.Fd()))
}
