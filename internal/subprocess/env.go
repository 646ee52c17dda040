package subprocess

import "os"

// baseEnviron returns the host process's environment, the inheritance
// point build commands are layered onto.
func baseEnviron() []string {
	return os.Environ()
}
