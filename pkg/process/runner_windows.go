//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// setupProcessAttributes isolates the child in a new process group so
// console signals aimed at the server do not reach it
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessTree uses taskkill /T to take down every descendant,
// falling back to killing the leader only
func killProcessTree(process *os.Process) error {
	taskkill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(process.Pid))
	if err := taskkill.Run(); err != nil {
		return process.Kill()
	}
	return nil
}
