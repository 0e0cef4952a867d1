//go:build linux && !skipIntegration
// +build linux,!skipIntegration

package linux_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// commandError is a command that failed, with what it printed.
type commandError struct {
	args   []string
	stdout []byte
	stderr []byte
	rc     int
	err    error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s: exit %d (%v)\n stdout: %s\n stderr: %s",
		strings.Join(e.args, " "), e.rc, e.err,
		bytes.TrimSpace(e.stdout), bytes.TrimSpace(e.stderr))
}

// run runs args and returns what the command wrote to stdout.
func run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		rc := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rc = exitErr.ExitCode()
		}

		return stdout.String(), &commandError{args: args, stdout: stdout.Bytes(), stderr: stderr.Bytes(), rc: rc, err: err}
	}

	return stdout.String(), nil
}

// newImage returns the path of a sparse image file of size bytes that is
// removed when the test ends.
func newImage(t *testing.T, size int64) string {
	image := filepath.Join(t.TempDir(), "disk.img")

	if err := os.WriteFile(image, nil, 0o600); err != nil {
		t.Fatalf("failed to create %s: %s", image, err)
	}

	if err := os.Truncate(image, size); err != nil {
		t.Fatalf("failed to size %s: %s", image, err)
	}

	return image
}

// attachLoop connects image to a free loop device with partition scanning
// and returns the device path. The device is detached when the test ends.
func attachLoop(t *testing.T, image string) string {
	out, err := run("losetup", "--find", "--show", "--partscan", image)
	if err != nil {
		inUse, _ := run("losetup", "--all")
		t.Fatalf("failed loop attach: %s\nloop devices:\n%s", err, inUse)
	}

	dev := strings.TrimSpace(out)

	t.Cleanup(func() {
		if _, err := run("losetup", "--detach", dev); err != nil {
			t.Logf("failed to detach %s: %s", dev, err)
		}
	})

	if err := waitForSize(dev, 30*time.Second); err != nil {
		t.Fatal(err)
	}

	return dev
}

// waitForSize waits for a freshly attached block device to report a size.
func waitForSize(devPath string, timeout time.Duration) error {
	fp, err := os.Open(devPath)
	if err != nil {
		return err
	}
	defer fp.Close()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		size, err := fp.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}

		if size != 0 {
			return nil
		}

		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("%s still has no size after %v", devPath, timeout)
}

// hostSupports returns nil if the test runs as root, every device in
// charDevs is a writable character device and every command is in PATH.
func hostSupports(charDevs []string, commands ...string) error {
	if uid := os.Geteuid(); uid != 0 {
		return fmt.Errorf("not root (euid=%d)", uid)
	}

	for _, dev := range charDevs {
		fi, err := os.Stat(dev)
		if err != nil {
			return err
		}

		if fi.Mode()&os.ModeCharDevice == 0 {
			return fmt.Errorf("%s: not a character device", dev)
		}

		if err := unix.Access(dev, unix.W_OK); err != nil {
			return fmt.Errorf("%s: not writable: %w", dev, err)
		}
	}

	for _, name := range commands {
		if _, err := exec.LookPath(name); err != nil {
			return err
		}
	}

	return nil
}

func skipIfNoLoop(t *testing.T) {
	if err := hostSupports([]string{"/dev/loop-control"}, "losetup", "sgdisk"); err != nil {
		t.Skip(err)
	}
}

func skipIfNoLVM(t *testing.T) {
	skipIfNoLoop(t)

	if err := hostSupports([]string{"/dev/mapper/control"}, "lvm"); err != nil {
		t.Skip(err)
	}
}
