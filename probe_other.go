//go:build !unix

package ccfeatures

import (
	"os/exec"
	"time"
)

const processWaitDelay = 2 * time.Second

// configureProcess relies on the default kill of the compiler process.
func configureProcess(cmd *exec.Cmd) {
	cmd.WaitDelay = processWaitDelay
}
