//go:build linux
// +build linux

package linux

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"strconv"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"machinerun.io/diskprep"
)

const (
	procPartitions = "/proc/partitions"
	sysClassBlock  = "/sys/class/block"
	sysBlock       = "/sys/block"
)

// e2fsck exit codes 0 (clean) and 1 (errors corrected) both leave a usable
// filesystem.
var e2fsckOK = []int{0, 1} //nolint:gochecknoglobals

type linuxSystem struct {
	scratchBase   string
	sysClassBlock string
	sysBlock      string
	sectorSizes   *cache.Cache
}

// System returns a linux specific implementation of diskprep.System. Scratch
// mount points are created under scratchBase.
func System(scratchBase string) diskprep.System {
	return &linuxSystem{
		scratchBase:   scratchBase,
		sysClassBlock: sysClassBlock,
		sysBlock:      sysBlock,
		sectorSizes:   cache.New(cache.NoExpiration, 0),
	}
}

func (ls *linuxSystem) ListPartitions() ([]string, error) {
	content, err := ioutil.ReadFile(procPartitions)
	if err != nil {
		return []string{}, err
	}

	return filterPartitions(parseProcPartitions(content), ls.isPartition), nil
}

func (ls *linuxSystem) Mount(devPath string, readOnly bool) (string, error) {
	if err := os.MkdirAll(ls.scratchBase, 0o755); err != nil {
		return "", err
	}

	dir, err := ioutil.TempDir(ls.scratchBase, "mnt-")
	if err != nil {
		return "", err
	}

	args := []string{"mount"}
	if readOnly {
		args = append(args, "-o", "ro")
	}

	args = append(args, devPath, dir)

	if err := runCommand(args...); err != nil {
		os.Remove(dir)
		return "", err
	}

	return dir, nil
}

func (ls *linuxSystem) Unmount(mountPoint string) error {
	if err := runCommand("umount", mountPoint); err != nil {
		return err
	}

	return os.Remove(mountPoint)
}

func (ls *linuxSystem) FSInfo(mountPoint string) (diskprep.FSInfo, error) {
	var st unix.Statfs_t

	if err := unix.Statfs(mountPoint, &st); err != nil {
		return diskprep.FSInfo{}, errors.Wrapf(err, "statfs %s", mountPoint)
	}

	if st.Bsize <= 0 || st.Bfree > st.Blocks {
		return diskprep.FSInfo{}, fmt.Errorf("statfs %s returned bad sizes: bsize=%d blocks=%d free=%d",
			mountPoint, st.Bsize, st.Blocks, st.Bfree)
	}

	return diskprep.FSInfo{
		BlockSize:  uint64(st.Bsize),
		Blocks:     st.Blocks,
		UsedBlocks: st.Blocks - st.Bfree,
	}, nil
}

func (ls *linuxSystem) CheckFS(devPath string) error {
	return runCommandAllowRC(e2fsckOK, "e2fsck", "-f", "-y", devPath)
}

func (ls *linuxSystem) ResizeFS(devPath string, blocks uint64) error {
	// with no unit suffix resize2fs takes the size in filesystem blocks.
	return runCommand("resize2fs", devPath, strconv.FormatUint(blocks, 10))
}

// sectorSize returns the logical sector size of disk kname.
func (ls *linuxSystem) sectorSize(kname string) (uint, error) {
	if v, found := ls.sectorSizes.Get(kname); found {
		return v.(uint), nil
	}

	size, err := getBlockDevSize(ls.sysBlock, kname)
	if err != nil {
		return 0, err
	}

	ls.sectorSizes.Set(kname, uint(size), cache.DefaultExpiration)

	return uint(size), nil
}

func (ls *linuxSystem) ScanDisk(devPath string) (diskprep.Disk, error) {
	name := path.Base(devPath)
	disk := diskprep.Disk{
		Name:       name,
		Path:       devPath,
		SectorSize: sectorSize512,
	}

	isBlock, err := blockDeviceExists(devPath)
	if err != nil {
		return disk, err
	}

	if isBlock {
		ssize, err := ls.sectorSize(name)
		if err != nil {
			return disk, err
		}

		disk.SectorSize = ssize
	}

	fh, err := os.Open(devPath)
	if err != nil {
		return disk, err
	}
	defer fh.Close()

	size, err := getFileSize(fh)
	if err != nil {
		return disk, err
	}

	disk.Size = size

	parts, table, ssize, err := findPartitions(fh)
	if err != nil {
		return disk, errors.Wrapf(err, "reading partition table of %s", devPath)
	}

	disk.Table = table
	disk.Partitions = parts

	if table == diskprep.TableNone {
		return disk, nil
	}

	if table == diskprep.GPT && ssize != disk.SectorSize {
		if isBlock {
			return disk, fmt.Errorf(
				"disk %s has sector size %d and partition table sector size %d",
				disk.Path, disk.SectorSize, ssize)
		}

		disk.SectorSize = ssize
	}

	return disk, nil
}

func (ls *linuxSystem) DeletePartition(d diskprep.Disk, number uint) error {
	return updatePartitions(d, []uint{number}, nil)
}

func (ls *linuxSystem) CreatePartition(d diskprep.Disk, p diskprep.Partition) error {
	return updatePartitions(d, nil, diskprep.PartitionSet{p.Number: p})
}

func (ls *linuxSystem) ReloadPartitions(d diskprep.Disk) error {
	fp, err := os.Open(d.Path)
	if err != nil {
		return err
	}

	ioctlErr := unix.IoctlSetInt(int(fp.Fd()), unix.BLKRRPART, 0)
	fp.Close()

	if ioctlErr != nil {
		log.WithFields(log.Fields{"disk": d.Path, "error": ioctlErr}).Warn("BLKRRPART failed, trying partx")

		if err := runCommand("partx", "--update", d.Path); err != nil {
			return errors.Wrapf(err, "re-reading partition table of %s (BLKRRPART: %s)", d.Path, ioctlErr)
		}
	}

	return udevSettle()
}

func (ls *linuxSystem) BlockDeviceExists(devPath string) (bool, error) {
	return blockDeviceExists(devPath)
}

func (ls *linuxSystem) Reboot() error {
	unix.Sync()
	return runCommand("reboot")
}

func getFileSize(file *os.File) (uint64, error) {
	var err error
	var cur, pos int64

	// read the current position so we can set it back before return
	if cur, err = file.Seek(0, io.SeekCurrent); err != nil {
		return 0, err
	}

	if pos, err = file.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}

	if _, err = file.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}

	return uint64(pos), nil
}
