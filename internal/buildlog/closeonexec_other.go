//go:build !unix

package buildlog

import "os"

// setCloseOnExec is a no-op on platforms without POSIX fd flags.
func setCloseOnExec(f *os.File) {}
