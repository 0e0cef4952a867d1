//go:build linux
// +build linux

package linux

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"machinerun.io/diskprep"
	"machinerun.io/diskprep/partid"
)

const (
	sectorSize512 = 512
	sectorSize4k  = 4096

	mbrMaxPartNum = 4
)

// toGPTPartition - convert the Partition type into a gpt.Partition
func toGPTPartition(p diskprep.Partition) gpt.Partition {
	var flags gpt.Flags

	binary.LittleEndian.PutUint64(flags[:], p.Attributes)

	return gpt.Partition{
		Type:          gpt.PartType(p.Type),
		Id:            gpt.Guid(p.ID),
		FirstLBA:      p.Start,
		LastLBA:       p.Last,
		Flags:         flags,
		PartNameUTF16: getPartName(p.Name),
		TrailingBytes: []byte{},
	}
}

func readGPTTableSearch(fp io.ReadSeeker, sizes []uint) (gpt.Table, uint, error) {
	const noGptFound = "Bad GPT signature"
	var gptTable gpt.Table
	var err error
	var size uint

	for _, size = range sizes {
		// consider seek failure to be fatal
		if _, err := fp.Seek(int64(size), io.SeekStart); err != nil {
			return gpt.Table{}, size, err
		}

		if gptTable, err = gpt.ReadTable(fp, uint64(size)); err != nil {
			if err.Error() == noGptFound {
				continue
			}

			return gpt.Table{}, size, err
		}

		return gptTable, size, nil
	}

	return gpt.Table{}, size, diskprep.ErrNoPartitionTable
}

func readGPTTable(fp io.ReadSeeker) (gpt.Table, uint, error) {
	return readGPTTableSearch(fp, []uint{sectorSize512, sectorSize4k})
}

func readMBRTable(fp io.ReadSeeker) (diskprep.PartitionSet, error) {
	parts := diskprep.PartitionSet{}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return parts, err
	}

	mbrTable, err := mbr.Read(fp)
	if err == mbr.ErrorBadMbrSign {
		return parts, diskprep.ErrNoPartitionTable
	} else if err != nil {
		return parts, err
	}

	for i, p := range mbrTable.GetAllPartitions() {
		if p.IsEmpty() {
			continue
		}

		part := diskprep.Partition{
			Start:  uint64(p.GetLBAStart()),
			Last:   uint64(p.GetLBALast()),
			Type:   diskprep.PartType(partid.FromMBR(byte(p.GetType()))),
			Number: uint(i + 1),
		}
		parts[part.Number] = part
	}

	return parts, nil
}

// findPartitions reads the partition table from fp. Start and Last of the
// returned partitions are in sectors of the returned sector size (always 512
// for MBR).
func findPartitions(fp io.ReadSeeker) (diskprep.PartitionSet, diskprep.TableType, uint, error) {
	var err error
	var ssize uint
	var gptTable gpt.Table

	gptTable, ssize, err = readGPTTable(fp)
	if err == diskprep.ErrNoPartitionTable {
		parts, err := readMBRTable(fp)
		if err == diskprep.ErrNoPartitionTable {
			return parts, diskprep.TableNone, ssize, nil
		}

		return parts, diskprep.MBR, sectorSize512, err
	}

	if err != nil {
		return diskprep.PartitionSet{}, diskprep.GPT, ssize, err
	}

	parts := diskprep.PartitionSet{}

	for n, p := range gptTable.Partitions {
		if p.IsEmpty() {
			continue
		}

		part := diskprep.Partition{
			Start:      p.FirstLBA,
			Last:       p.LastLBA,
			ID:         diskprep.GUID(p.Id),
			Type:       diskprep.PartType(p.Type),
			Name:       p.Name(),
			Number:     uint(n + 1),
			Attributes: binary.LittleEndian.Uint64(p.Flags[:]),
		}
		parts[part.Number] = part
	}

	return parts, diskprep.GPT, ssize, nil
}

func getPartName(s string) [72]byte {
	codes := utf16.Encode([]rune(s))
	b := [72]byte{}

	for i, r := range codes {
		if i*2+1 >= len(b) {
			break
		}

		b[i*2] = byte(r)
		b[i*2+1] = byte(r >> 8) //nolint:gomnd
	}

	return b
}

// updateGPT clears the entries in del and then writes the entries in add.
// Added entries must land on unused slots inside the usable LBA range.
func updateGPT(fp io.ReadWriteSeeker, d diskprep.Disk, del []uint, add diskprep.PartitionSet) error {
	gptTable, _, err := readGPTTableSearch(fp, []uint{d.SectorSize})
	if err != nil {
		return err
	}

	numParts := uint(len(gptTable.Partitions))
	emptyPart := toGPTPartition(diskprep.Partition{Type: partid.Empty})

	for _, pNum := range del {
		if pNum < 1 || pNum > numParts {
			return fmt.Errorf("cannot delete partition %d from %s: out of range (1-%d)", pNum, d.Name, numParts)
		}

		gptTable.Partitions[pNum-1] = emptyPart
	}

	for _, p := range add {
		if p.Number < 1 || p.Number > numParts {
			return fmt.Errorf("partition number %d is out of range (1-%d) for %s", p.Number, numParts, d.Name)
		}

		if p.Start < gptTable.Header.FirstUsableLBA {
			return fmt.Errorf("partition %d start (%d) is too low. Must be >= %d",
				p.Number, p.Start, gptTable.Header.FirstUsableLBA)
		}

		if p.Last > gptTable.Header.LastUsableLBA || p.Last < p.Start {
			return fmt.Errorf("partition %d Last (%d) is out of range. Must be in %d-%d",
				p.Number, p.Last, p.Start, gptTable.Header.LastUsableLBA)
		}

		if !gptTable.Partitions[p.Number-1].IsEmpty() {
			return fmt.Errorf("partition %d already exists on %s", p.Number, d.Name)
		}

		gptTable.Partitions[p.Number-1] = toGPTPartition(p)
	}

	_, err = writeGPTTable(fp, gptTable)

	return err
}

// updateMBR is updateGPT for MBR tables. Only primary partitions 1-4 are
// supported. The boot indicator of a slot is left as it was.
func updateMBR(fp io.ReadWriteSeeker, d diskprep.Disk, del []uint, add diskprep.PartitionSet) error {
	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	mbrTable, err := mbr.Read(fp)
	if err != nil {
		return err
	}

	for _, pNum := range del {
		if pNum < 1 || pNum > mbrMaxPartNum {
			return fmt.Errorf("cannot delete partition %d from MBR. Invalid number", pNum)
		}

		pt := mbrTable.GetPartition(int(pNum))
		pt.SetType(mbr.PART_EMPTY)
		pt.SetLBAStart(0)
		pt.SetLBALen(0)
	}

	for _, p := range add {
		if p.Number < 1 || p.Number > mbrMaxPartNum {
			return fmt.Errorf("partition number %d is out of range (1-%d) for MBR", p.Number, mbrMaxPartNum)
		}

		if p.Start == 0 || p.Last < p.Start || p.Last > 0xFFFFFFFF {
			return fmt.Errorf("partition %d [%d-%d] is out of range for MBR", p.Number, p.Start, p.Last)
		}

		mType, ok := partid.ToMBR(p.Type)
		if !ok {
			return fmt.Errorf("partition type %s has no MBR equivalent", p.Type)
		}

		pt := mbrTable.GetPartition(int(p.Number))
		if !pt.IsEmpty() {
			return fmt.Errorf("partition %d already exists on %s", p.Number, d.Name)
		}

		pt.SetLBAStart(uint32(p.Start))
		pt.SetLBALen(uint32(p.Size()))
		pt.SetType(mbr.PartitionType(mType))
	}

	if err := mbrTable.Check(); err != nil {
		return errors.Wrapf(err, "new MBR for %s is invalid", d.Name)
	}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	return mbrTable.Write(fp)
}

func updateTable(fp io.ReadWriteSeeker, d diskprep.Disk, del []uint, add diskprep.PartitionSet) error {
	switch d.Table {
	case diskprep.GPT:
		return updateGPT(fp, d, del, add)
	case diskprep.MBR:
		return updateMBR(fp, d, del, add)
	}

	return fmt.Errorf("cannot change partitions on disk %s with table type %s", d.Name, d.Table)
}

// updatePartitions opens the disk under an exclusive lock and applies
// updateTable. Caller's responsibility to reload the kernel's view.
func updatePartitions(d diskprep.Disk, del []uint, add diskprep.PartitionSet) error {
	fp, err := os.OpenFile(d.Path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer fp.Close()

	if err := unix.Flock(int(fp.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock %s: %s", d.Path, err)
	}

	if err := updateTable(fp, d, del, add); err != nil {
		return err
	}

	return fp.Sync()
}

func writeGPTTable(fp io.ReadWriteSeeker, table gpt.Table) (gpt.Table, error) {
	if err := table.Write(fp); err != nil {
		log.Errorf("Failed write to table: %s", err)
		return gpt.Table{}, err
	}

	if err := table.CreateOtherSideTable().Write(fp); err != nil {
		log.Errorf("Failed write other side table: %s", err)
		return gpt.Table{}, err
	}

	if _, err := fp.Seek(
		int64(table.Header.HeaderStartLBA*table.SectorSize),
		io.SeekStart); err != nil {
		return gpt.Table{}, err
	}

	return gpt.ReadTable(io.ReadSeeker(fp), table.SectorSize)
}
