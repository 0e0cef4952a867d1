//go:build linux
// +build linux

package linux

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	"machinerun.io/diskprep"
)

// writeNewGPTTable writes an empty GPT with a protective MBR to a disk image.
func writeNewGPTTable(fp io.ReadWriteSeeker, sectorSize uint, diskSize uint64) (gpt.Table, error) {
	ntArgs := gpt.NewTableArgs{
		SectorSize: uint64(sectorSize),
		DiskGuid:   gpt.Guid(diskprep.GenGUID())}
	gptTable := gpt.NewTable(diskSize, &ntArgs)

	if err := writeProtectiveMBR(fp, sectorSize, diskSize); err != nil {
		return gptTable, err
	}

	return writeGPTTable(fp, gptTable)
}

// writeProtectiveMBR - add a ProtectiveMBR spanning the disk.
// This preserves anything in the first sector that is outside of the partition table.
func writeProtectiveMBR(fp io.ReadWriteSeeker, sectorSize uint, diskSize uint64) error {
	buf := make([]byte, sectorSize)

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if _, err := io.ReadFull(fp, buf); err != nil {
		return err
	}

	m, err := newProtectiveMBR(buf, sectorSize, diskSize)
	if err != nil {
		return err
	}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	return m.Write(fp)
}

// newProtectiveMBR - return a Protective MBR for the disk.
func newProtectiveMBR(buf []byte, sectorSize uint, diskSize uint64) (mbr.MBR, error) {
	if len(buf) < int(sectorSize) {
		return mbr.MBR{},
			fmt.Errorf("buffer too small. Must be sectorSize(%d)", sectorSize)
	}

	// partition table takes up 446 (0x1BE) to 511 (0x1FF).  We zero locations
	// of the partitions, and leave the rest.
	for offset, i := 0x1BE, 0; i < 16*4; i++ {
		buf[offset+i] = 0
	}
	// then explicitly write the mbr signature
	buf[0x1FE] = 0x55
	buf[0x1FF] = 0xAA

	myMBR, err := mbr.Read(bytes.NewReader(buf))
	if err != nil {
		return mbr.MBR{}, err
	}

	pt := myMBR.GetPartition(1)
	pt.SetType(mbr.PART_GPT)
	pt.SetLBAStart(1)
	pt.SetLBALen(uint32(diskSize/uint64(sectorSize)) - 2) // nolint: gomnd

	for pnum := 2; pnum <= 4; pnum++ {
		pt := myMBR.GetPartition(pnum)
		pt.SetType(mbr.PART_EMPTY)
		pt.SetLBAStart(0)
		pt.SetLBALen(0)
	}

	return *myMBR, myMBR.Check()
}
