//go:build unix

package main

import (
	"os"
	"syscall"
)

// refreshSignals trigger an immediate poll of every watched job. SIGCONT is
// delivered when a suspended process resumes.
var refreshSignals = []os.Signal{syscall.SIGCONT}
