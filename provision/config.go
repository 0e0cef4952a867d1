// Package provision runs the one-shot disk provisioning pipeline: find the
// marked root partition, shrink its filesystem, split the partition in two,
// turn the second half into an LVM volume group, restore the boot
// configuration and reboot.
package provision

import (
	"time"

	"machinerun.io/diskprep"
)

// Config holds the fixed paths and limits the pipeline works with. Paths
// inside the root filesystem are relative to its mount point.
type Config struct {
	// VGName is the volume group created on the data partition.
	VGName string

	// Marker is the file whose presence marks the partition to provision.
	Marker string

	// BootConfig is the active boot loader configuration.
	BootConfig string

	// BootBackup is the saved boot loader configuration restored over
	// BootConfig.
	BootBackup string

	// MinRootSize is the smallest size in bytes the root filesystem is
	// shrunk to.
	MinRootSize uint64

	// WaitAttempts and WaitInterval bound the wait for the data partition's
	// device node.
	WaitAttempts int
	WaitInterval time.Duration

	// Reboot the system at the end of the run.
	Reboot bool
}

// DefaultConfig returns the configuration used on a provisioning boot.
func DefaultConfig() Config {
	return Config{
		VGName:       diskprep.DefaultVGName,
		Marker:       "/etc/diskprep/provision",
		BootConfig:   "/boot/grub/grub.cfg",
		BootBackup:   "/boot/grub/grub.cfg.diskprep",
		MinRootSize:  diskprep.MinRootSize,
		WaitAttempts: 60,
		WaitInterval: time.Second,
		Reboot:       true,
	}
}
