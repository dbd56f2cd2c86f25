//go:build !windows

package video

import (
	"fmt"
	"os/exec"
)

// FindRuntime locates an external binary in PATH
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", NewRuntimeError(fmt.Sprintf("`%s` not found in PATH: %s", runtime, err))
	}

	return binPath, nil
}
