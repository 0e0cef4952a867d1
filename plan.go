package diskprep

import "fmt"

// TargetBlocks returns the number of filesystem blocks the root filesystem is
// shrunk to: used blocks plus used/HeadroomDivisor of growth room, but never
// fewer blocks than it takes to hold minBytes.
func TargetBlocks(used, blockSize, minBytes uint64) uint64 {
	target := used + used/HeadroomDivisor
	minBlocks := Ceiling(minBytes, blockSize) / blockSize

	if target < minBlocks {
		return minBlocks
	}

	return target
}

// AlignBlocks rounds blocks up so that they fill whole disk sectors. Only
// block sizes smaller than the sector size need it.
func AlignBlocks(blocks, blockSize, sectorSize uint64) uint64 {
	if blockSize == 0 || blockSize >= sectorSize || sectorSize%blockSize != 0 {
		return blocks
	}

	return Ceiling(blocks, sectorSize/blockSize)
}

// TargetSectors converts a filesystem block count to disk sectors. The block
// count should be aligned with AlignBlocks first; anything left over is
// truncated.
func TargetSectors(blocks, blockSize, sectorSize uint64) uint64 {
	return blocks * blockSize / sectorSize
}

// CheckFit returns an error if sectors cannot hold blocks.
func CheckFit(blocks, blockSize, sectors, sectorSize uint64) error {
	if sectors*sectorSize < blocks*blockSize {
		return fmt.Errorf("%w: %d sectors of %d bytes cannot hold %d blocks of %d bytes",
			ErrNoRoom, sectors, sectorSize, blocks, blockSize)
	}

	return nil
}

// SplitPlan describes how a single partition is cut in two: the original
// partition keeps its number and start, and a new partition with the next
// number takes the remainder of its sector range.
type SplitPlan struct {
	Original   Partition `json:"original"`
	RootLast   uint64    `json:"rootLast"`
	DataNumber uint      `json:"dataNumber"`
	DataStart  uint64    `json:"dataStart"`
	DataLast   uint64    `json:"dataLast"`
}

// PlanSplit computes the split of p so that the first targetSectors sectors
// stay with p.
func PlanSplit(p Partition, targetSectors uint64) (SplitPlan, error) {
	if targetSectors == 0 {
		return SplitPlan{}, fmt.Errorf("%w: target size of %s is 0 sectors", ErrNoRoom, p)
	}

	if p.Last < p.Start || targetSectors >= p.Size() {
		return SplitPlan{}, fmt.Errorf("%w: %s has %d sectors, target is %d",
			ErrNoRoom, p, p.Size(), targetSectors)
	}

	plan := SplitPlan{
		Original:   p,
		RootLast:   p.Start + targetSectors - 1,
		DataNumber: p.Number + 1,
		DataStart:  p.Start + targetSectors,
		DataLast:   p.Last,
	}

	return plan, plan.Verify()
}

// Root returns the shrunk root partition. Type, ID, Name and Attributes are
// carried over from the original.
func (s SplitPlan) Root() Partition {
	root := s.Original
	root.Last = s.RootLast

	return root
}

// Data returns the new data partition. It is typed as Linux LVM and gets a
// fresh GUID.
func (s SplitPlan) Data(lvmType PartType) Partition {
	return Partition{
		Start:  s.DataStart,
		Last:   s.DataLast,
		ID:     GenGUID(),
		Type:   lvmType,
		Name:   "data",
		Number: s.DataNumber,
	}
}

// Verify checks that root and data partitions are contiguous and together
// cover exactly the original partition.
func (s SplitPlan) Verify() error {
	o := s.Original

	if s.RootLast < o.Start || s.DataStart > s.DataLast {
		return fmt.Errorf("split of %s is empty: root [%d-%d] data [%d-%d]",
			o, o.Start, s.RootLast, s.DataStart, s.DataLast)
	}

	if s.RootLast+1 != s.DataStart || s.DataLast != o.Last {
		return fmt.Errorf("split of %s is not contiguous: root [%d-%d] data [%d-%d]",
			o, o.Start, s.RootLast, s.DataStart, s.DataLast)
	}

	gaps := findRangeGaps([]uRange{{o.Start, s.RootLast}, {s.DataStart, s.DataLast}}, o.Start, o.Last)
	if len(gaps) != 0 {
		return fmt.Errorf("split of %s leaves gaps %v", o, gaps)
	}

	return nil
}

func (s SplitPlan) String() string {
	return fmt.Sprintf("root %d [%d-%d] data %d [%d-%d]",
		s.Original.Number, s.Original.Start, s.RootLast,
		s.DataNumber, s.DataStart, s.DataLast)
}
