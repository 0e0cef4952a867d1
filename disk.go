package diskprep

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TableType enumerates the partition table types.
type TableType string

const (
	// TableNone - no partition table.
	TableNone TableType = "NONE"

	// MBR - Master Boot Record style partition table.
	MBR TableType = "MBR"

	// GPT - Guid Partition Table style partition table.
	GPT TableType = "GPT"
)

// Disk wraps the disk level information needed to rewrite its partition
// table.
type Disk struct {
	// Name is the kernel name of the disk (sda, nvme0n1).
	Name string `json:"name"`

	// Path is the device path of the disk.
	Path string `json:"path"`

	// Size is the size of the disk in bytes.
	Size uint64 `json:"size"`

	// SectorSize is the logical sector size of the device in bytes.
	SectorSize uint `json:"sectorSize"`

	// Table is the type of partition table on the disk.
	Table TableType `json:"table"`

	// Partitions is the set of partitions on this disk.
	Partitions PartitionSet `json:"partitions"`
}

func (d Disk) String() string {
	return fmt.Sprintf("%s (%s) Size=%d SectorSize=%d Table=%s NumParts=%d",
		d.Name, d.Path, d.Size, d.SectorSize, d.Table, len(d.Partitions))
}

// Details returns a table of the disk's partitions in sector units.
func (d Disk) Details() string {
	lfmt := "[%2s  %12s %12s %12s %-16s]\n"
	buf := fmt.Sprintf(lfmt, "#", "Start", "Last", "Sectors", "Name")

	for _, n := range d.Partitions.Numbers() {
		p := d.Partitions[n]
		buf += fmt.Sprintf(lfmt, fmt.Sprintf("%d", p.Number),
			fmt.Sprintf("%d", p.Start), fmt.Sprintf("%d", p.Last),
			fmt.Sprintf("%d", p.Size()), p.Name)
	}

	return buf
}

// PartitionSet is a map of partition number to the partition.
type PartitionSet map[uint]Partition

// Numbers returns the partition numbers in the set in ascending order.
func (ps PartitionSet) Numbers() []uint {
	nums := make([]uint, 0, len(ps))
	for n := range ps {
		nums = append(nums, n)
	}

	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	return nums
}

// Partition wraps the disk partition information. Start and Last are
// inclusive sector numbers in units of the disk's logical sector size.
type Partition struct {
	// Start is the first sector of the partition.
	Start uint64 `json:"start"`

	// Last is the last sector of the partition.
	Last uint64 `json:"last"`

	// ID is the partition id (GPT only).
	ID GUID `json:"id"`

	// Type is the partition type.
	Type PartType `json:"type"`

	// Name is the GPT partition name.
	Name string `json:"name"`

	// Number is the partition number.
	Number uint `json:"number"`

	// Attributes are the GPT attribute flags.
	Attributes uint64 `json:"attributes,omitempty"`
}

// AttrLegacyBIOSBootable is the GPT attribute bit that marks a partition as
// bootable for legacy BIOS.
const AttrLegacyBIOSBootable uint64 = 1 << 2

// Size returns the number of sectors in the partition.
func (p Partition) Size() uint64 {
	return p.Last - p.Start + 1
}

func (p Partition) String() string {
	return fmt.Sprintf("partition %d [%d-%d]", p.Number, p.Start, p.Last)
}

// PartType represents a GPT Partition GUID.
type PartType GUID

func (p PartType) String() string {
	return GUIDToString(GUID(p))
}

// MarshalJSON encodes the type as its GUID string.
func (p PartType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a GUID string.
func (p *PartType) UnmarshalJSON(b []byte) error {
	var g GUID
	if err := g.UnmarshalJSON(b); err != nil {
		return err
	}

	*p = PartType(g)

	return nil
}
