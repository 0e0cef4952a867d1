// Package diskprep holds the data model and sizing arithmetic used to split a
// freshly imaged single-partition OS disk into a right-sized root partition
// and an LVM data partition.
package diskprep

import "errors"

const (
	// Kibibyte is 1024 bytes.
	Kibibyte = 1024

	// Mebibyte is 1024 Kibibytes.
	Mebibyte = Kibibyte * 1024

	// Gibibyte is 1024 Mebibytes.
	Gibibyte = Mebibyte * 1024
)

const (
	// MinRootSize is the smallest size the root filesystem is shrunk to.
	MinRootSize = 5 * Gibibyte

	// HeadroomDivisor gives the root filesystem used/HeadroomDivisor blocks of
	// growth room on top of what is in use.
	HeadroomDivisor = 5

	// DefaultVGName is the volume group created on the data partition. Its
	// existence marks a disk as provisioned.
	DefaultVGName = "data"
)

var (
	// ErrNoMarker is returned when no partition carries the provisioning marker.
	ErrNoMarker = errors.New("no partition carries the provisioning marker")

	// ErrMultipleMarkers is returned when more than one partition carries the
	// provisioning marker.
	ErrMultipleMarkers = errors.New("more than one partition carries the provisioning marker")

	// ErrDeviceTimeout is returned when a block device node does not appear in time.
	ErrDeviceTimeout = errors.New("timed out waiting for block device")

	// ErrBadDeviceName is returned when a partition kernel name cannot be split
	// into disk and partition number.
	ErrBadDeviceName = errors.New("bad partition device name")

	// ErrNoPartitionTable is returned if there is no partition table.
	ErrNoPartitionTable = errors.New("no Partition Table Found")

	// ErrNoRoom is returned when a partition cannot be split because the
	// target size leaves nothing for the data partition.
	ErrNoRoom = errors.New("no room left for a data partition")
)
