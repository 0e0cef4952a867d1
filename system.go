package diskprep

// FSInfo is a usage sample of a mounted filesystem, in filesystem blocks.
type FSInfo struct {
	// BlockSize is the filesystem block size in bytes.
	BlockSize uint64 `json:"blockSize"`

	// Blocks is the total number of blocks in the filesystem.
	Blocks uint64 `json:"blocks"`

	// UsedBlocks is the number of blocks in use.
	UsedBlocks uint64 `json:"usedBlocks"`
}

// System interface provides the system level disk and filesystem operations
// that are implemented by the specific system.
type System interface {
	// ListPartitions returns the kernel names of all partitions known to the
	// kernel, excluding memory backed devices (loop, ram, zram) and
	// device-mapper nodes.
	ListPartitions() ([]string, error)

	// Mount mounts the block device at a fresh scratch directory and returns
	// the directory. readOnly mounts the filesystem read only.
	Mount(devPath string, readOnly bool) (string, error)

	// Unmount unmounts a directory returned by Mount and removes it.
	Unmount(mountPoint string) error

	// FSInfo returns the block size and usage of the filesystem mounted at
	// mountPoint.
	FSInfo(mountPoint string) (FSInfo, error)

	// CheckFS forces a consistency check of the unmounted filesystem on
	// devPath.
	CheckFS(devPath string) error

	// ResizeFS resizes the unmounted filesystem on devPath to blocks
	// filesystem blocks.
	ResizeFS(devPath string, blocks uint64) error

	// ScanDisk reads the partition table of the disk at devPath.
	ScanDisk(devPath string) (Disk, error)

	// DeletePartition removes partition number from the disk's table.
	DeletePartition(d Disk, number uint) error

	// CreatePartition adds p to the disk's table. The partition contents are
	// left untouched.
	CreatePartition(d Disk, p Partition) error

	// ReloadPartitions makes the kernel re-read the disk's partition table.
	ReloadPartitions(d Disk) error

	// BlockDeviceExists returns true if devPath exists and is a block device.
	BlockDeviceExists(devPath string) (bool, error)

	// Reboot reboots the system.
	Reboot() error
}
