//go:build linux
// +build linux

package linux

import (
	"os"
	"path"
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"machinerun.io/diskprep"
)

func fakeSysBlock(t *testing.T, disk string, content string) string {
	t.Helper()

	sysd := t.TempDir()
	qdir := path.Join(sysd, disk, "queue")

	if err := os.MkdirAll(qdir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path.Join(qdir, "logical_block_size"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return sysd
}

func TestGetBlockDevSize(t *testing.T) {
	ast := assert.New(t)
	sysd := fakeSysBlock(t, "nvme0n1", "4096\n")

	size, err := getBlockDevSize(sysd, "/dev/nvme0n1")
	ast.NoError(err)
	ast.Equal(uint64(4096), size)

	_, err = getBlockDevSize(sysd, "sdz")
	ast.Error(err)

	sysd = fakeSysBlock(t, "sda", "garbage\n")
	_, err = getBlockDevSize(sysd, "sda")
	ast.Error(err)
}

func TestSectorSizeCached(t *testing.T) {
	ast := assert.New(t)
	sysd := fakeSysBlock(t, "sda", "512\n")
	ls := &linuxSystem{sysBlock: sysd, sectorSizes: cache.New(cache.NoExpiration, 0)}

	size, err := ls.sectorSize("sda")
	ast.NoError(err)
	ast.Equal(uint(512), size)

	// a cached value does not go back to sysfs.
	ast.NoError(os.RemoveAll(path.Join(sysd, "sda")))

	size, err = ls.sectorSize("sda")
	ast.NoError(err)
	ast.Equal(uint(512), size)

	_, err = ls.sectorSize("sdb")
	ast.Error(err)
}

func TestFSInfo(t *testing.T) {
	ast := assert.New(t)
	ls := System(t.TempDir())

	info, err := ls.FSInfo(t.TempDir())
	ast.NoError(err)
	ast.NotZero(info.BlockSize)
	ast.NotZero(info.Blocks)
	ast.LessOrEqual(info.UsedBlocks, info.Blocks)

	_, err = ls.FSInfo("/non/existent/dir")
	ast.Error(err)
}

func TestScanDiskFile(t *testing.T) {
	ast := assert.New(t)

	orig, err := genTempGptDisk(t.TempDir(), 400000)
	if err != nil {
		t.Fatalf("Creation of temp disk failed: %s", err)
	}

	disk, err := System(t.TempDir()).ScanDisk(orig.Path)
	ast.NoError(err)
	ast.Equal(diskprep.GPT, disk.Table)
	ast.Equal(uint(sectorSize512), disk.SectorSize)
	ast.Equal(uint64(testDiskSize), disk.Size)
	ast.Equal("mydisk", disk.Name)
	ast.Equal(orig.Partitions, disk.Partitions)
}
