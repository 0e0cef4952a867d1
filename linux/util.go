//go:build linux
// +build linux

package linux

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CommandError is returned when an external command exits non-zero.
type CommandError struct {
	Args   []string
	Stdout []byte
	Stderr []byte
	RC     int
}

func (e *CommandError) Error() string {
	return cmdString(e.Args, e.Stdout, e.Stderr, e.RC)
}

func cmdString(args []string, out []byte, err []byte, rc int) string {
	tlen := len(err)
	if tlen == 0 || err[tlen-1] != '\n' {
		err = append(err, '\n')
	}

	tlen = len(out)
	if tlen == 0 || out[tlen-1] != '\n' {
		out = append(out, '\n')
	}

	return fmt.Sprintf(
		"command returned %d:\n cmd: %v\n out: %s err: %s",
		rc, args, out, err)
}

func getCommandErrorRCDefault(err error, rcError int) int {
	if err == nil {
		return 0
	}

	exitError, ok := err.(*exec.ExitError)
	if ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}

	return rcError
}

func getCommandErrorRC(err error) int {
	return getCommandErrorRCDefault(err, 127)
}

func cmdError(args []string, out []byte, err []byte, rc int) error {
	if rc == 0 {
		return nil
	}

	return &CommandError{Args: args, Stdout: out, Stderr: err, RC: rc}
}

func runCommandWithOutputErrorRc(args ...string) ([]byte, []byte, int) {
	log.WithField("cmd", args).Debug("running")

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	return stdout.Bytes(), stderr.Bytes(), getCommandErrorRC(err)
}

func runCommand(args ...string) error {
	out, err, rc := runCommandWithOutputErrorRc(args...)
	return cmdError(args, out, err, rc)
}

// runCommandAllowRC runs args and treats any of the exit codes in okRCs
// as success.
func runCommandAllowRC(okRCs []int, args ...string) error {
	out, err, rc := runCommandWithOutputErrorRc(args...)

	for _, ok := range okRCs {
		if rc == ok {
			if rc != 0 {
				log.WithFields(log.Fields{"cmd": args, "rc": rc}).Info("command exited with accepted status")
			}

			return nil
		}
	}

	return cmdError(args, out, err, rc)
}

func udevSettle() error {
	return runCommand("udevadm", "settle")
}

func pathExists(d string) bool {
	_, err := os.Stat(d)
	if err != nil && os.IsNotExist(err) {
		return false
	}

	return true
}

func blockDeviceExists(bpath string) (bool, error) {
	info, err := os.Stat(bpath)

	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return info.Mode()&os.ModeDevice != 0, nil
}

func getBlockDevSize(sysBlock, dev string) (uint64, error) {
	path := path.Join(sysBlock, path.Base(dev), "queue/logical_block_size")

	content, err := ioutil.ReadFile(path)
	if err != nil {
		return uint64(0), errors.Wrapf(err, "Failed to read size for '%s'", dev)
	}

	d := strings.TrimSpace(string(content))

	v, err := strconv.Atoi(d)
	if err != nil {
		return uint64(0),
			errors.Wrapf(err,
				"getBlockDevSize(%s): failed to convert '%s' to int", dev, d)
	}

	return uint64(v), nil
}
