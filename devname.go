package diskprep

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//nolint:gochecknoglobals
var (
	// sda1, vdb12, xvda1, hda3
	plainPartRegex = regexp.MustCompile(`^([a-z]+[a-z])([0-9]+)$`)

	// nvme0n1p2, mmcblk0p1, loop0p1, nbd0p1
	sepPartRegex = regexp.MustCompile(`^([a-z]+[0-9]+(?:n[0-9]+)?)p([0-9]+)$`)

	// whole disks whose names end in a digit; never split as sda1 is.
	numberedDiskRegex = regexp.MustCompile(`^(mmcblk|loop|nbd|md)$`)
)

// DeviceName identifies a partition by the kernel name of its disk and its
// partition number.
type DeviceName struct {
	Disk   string `json:"disk"`
	Number uint   `json:"number"`
}

// ParseDeviceName splits a partition kernel name (or /dev path) into its disk
// and partition number. Disks whose name ends in a digit use a 'p' separator
// before the partition number (nvme0n1p2); all others have the number
// appended directly (sda1).
func ParseDeviceName(name string) (DeviceName, error) {
	kname := strings.TrimPrefix(name, "/dev/")

	var m []string
	if m = sepPartRegex.FindStringSubmatch(kname); m == nil {
		m = plainPartRegex.FindStringSubmatch(kname)
		if m != nil && numberedDiskRegex.MatchString(m[1]) {
			m = nil
		}
	}

	if m == nil {
		return DeviceName{}, fmt.Errorf("%w: %q", ErrBadDeviceName, name)
	}

	num, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil || num == 0 {
		return DeviceName{}, fmt.Errorf("%w: %q has invalid partition number", ErrBadDeviceName, name)
	}

	return DeviceName{Disk: m[1], Number: uint(num)}, nil
}

// PartitionKname returns the kernel name of partition num on diskName.
func PartitionKname(diskName string, num uint) string {
	sep := ""

	if n := len(diskName); n > 0 && diskName[n-1] >= '0' && diskName[n-1] <= '9' {
		sep = "p"
	}

	return fmt.Sprintf("%s%s%d", diskName, sep, num)
}

// Kname returns the kernel name of the partition.
func (d DeviceName) Kname() string {
	return PartitionKname(d.Disk, d.Number)
}

// Path returns the /dev path of the partition.
func (d DeviceName) Path() string {
	return "/dev/" + d.Kname()
}

// DiskPath returns the /dev path of the disk.
func (d DeviceName) DiskPath() string {
	return "/dev/" + d.Disk
}

// Sibling returns the partition with number num on the same disk.
func (d DeviceName) Sibling(num uint) DeviceName {
	return DeviceName{Disk: d.Disk, Number: num}
}

func (d DeviceName) String() string {
	return d.Kname()
}
