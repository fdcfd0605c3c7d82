//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

func setProcAttr(_ *exec.Cmd) {}

// terminate has no graceful variant without signals.
func terminate(p *os.Process) error {
	return kill(p)
}

func kill(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func exitResult(ps *os.ProcessState) ExitResult {
	if ps == nil {
		return ExitResult{Code: -1}
	}
	return ExitResult{Code: ps.ExitCode()}
}
