// Package mockos is an in-memory implementation of diskprep.System and
// diskprep.VolumeManager for tests. Every call is recorded in a journal.
package mockos

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path"
	"sort"
	"strings"

	"machinerun.io/diskprep"
)

// Filesystem is a mock filesystem on a partition. Root is a real directory
// that stands in for the mounted filesystem.
type Filesystem struct {
	Root   string          `json:"root"`
	FSInfo diskprep.FSInfo `json:"fsInfo"`

	// Checked is set by CheckFS and cleared by a mount.
	Checked bool `json:"-"`
}

// MockSystem implements diskprep.System.
type MockSystem struct {
	Disks       map[string]*diskprep.Disk `json:"disks"`
	Filesystems map[string]*Filesystem    `json:"filesystems"`

	// DeviceDelay is the number of BlockDeviceExists polls a newly created
	// partition reports as missing. Negative means it never appears.
	DeviceDelay int `json:"deviceDelay"`

	// Fail maps an operation name to the error it returns.
	Fail map[string]error `json:"-"`

	// Journal is every operation performed, in order.
	Journal []string `json:"-"`

	// Rebooted is set by Reboot.
	Rebooted bool `json:"-"`

	pending map[string]int
	mounts  map[string]string
}

// System returns a mock system loaded from the JSON layout file. It panics if
// the layout cannot be read.
func System(layout string) *MockSystem {
	file, err := ioutil.ReadFile(layout)
	if err != nil {
		panic(err)
	}

	sys := NewSystem()

	if err := json.Unmarshal(file, sys); err != nil {
		panic(err)
	}

	return sys
}

// NewSystem returns an empty mock system.
func NewSystem() *MockSystem {
	return &MockSystem{
		Disks:       map[string]*diskprep.Disk{},
		Filesystems: map[string]*Filesystem{},
		Fail:        map[string]error{},
		pending:     map[string]int{},
		mounts:      map[string]string{},
	}
}

// AddDisk adds a disk to the system.
func (ms *MockSystem) AddDisk(d diskprep.Disk) {
	if d.Partitions == nil {
		d.Partitions = diskprep.PartitionSet{}
	}

	ms.Disks[d.Name] = &d
}

// AddFilesystem puts a filesystem on partition kname.
func (ms *MockSystem) AddFilesystem(kname string, fs Filesystem) {
	ms.Filesystems[kname] = &fs
}

// Ops returns the journal entries that start with one of the prefixes.
func (ms *MockSystem) Ops(prefixes ...string) []string {
	found := []string{}

	for _, op := range ms.Journal {
		for _, p := range prefixes {
			if strings.HasPrefix(op, p) {
				found = append(found, op)
				break
			}
		}
	}

	return found
}

// Mounted returns the number of file systems currently mounted.
func (ms *MockSystem) Mounted() int {
	return len(ms.mounts)
}

func (ms *MockSystem) record(op string, args ...interface{}) error {
	entry := op
	for _, a := range args {
		entry += fmt.Sprintf(" %v", a)
	}

	ms.Journal = append(ms.Journal, entry)

	if err, ok := ms.Fail[op]; ok {
		return err
	}

	return nil
}

// findPartition returns the disk and partition for a partition kname.
func (ms *MockSystem) findPartition(kname string) (*diskprep.Disk, diskprep.Partition, bool) {
	dn, err := diskprep.ParseDeviceName(kname)
	if err != nil {
		return nil, diskprep.Partition{}, false
	}

	d, ok := ms.Disks[dn.Disk]
	if !ok {
		return nil, diskprep.Partition{}, false
	}

	p, ok := d.Partitions[dn.Number]

	return d, p, ok
}

func (ms *MockSystem) ListPartitions() ([]string, error) {
	if err := ms.record("list"); err != nil {
		return nil, err
	}

	names := []string{}

	for _, d := range ms.Disks {
		for n := range d.Partitions {
			names = append(names, diskprep.PartitionKname(d.Name, n))
		}
	}

	sort.Strings(names)

	return names, nil
}

func (ms *MockSystem) Mount(devPath string, readOnly bool) (string, error) {
	kname := path.Base(devPath)
	if err := ms.record("mount", kname, readOnly); err != nil {
		return "", err
	}

	if _, _, ok := ms.findPartition(kname); !ok {
		return "", fmt.Errorf("%s: no such device", devPath)
	}

	fs, ok := ms.Filesystems[kname]
	if !ok || fs.Root == "" {
		return "", fmt.Errorf("%s: wrong fs type, bad superblock", devPath)
	}

	if _, ok := ms.mounts[fs.Root]; ok {
		return "", fmt.Errorf("%s already mounted", devPath)
	}

	fs.Checked = false
	ms.mounts[fs.Root] = kname

	return fs.Root, nil
}

func (ms *MockSystem) Unmount(mountPoint string) error {
	if err := ms.record("unmount", ms.mounts[mountPoint]); err != nil {
		return err
	}

	if _, ok := ms.mounts[mountPoint]; !ok {
		return fmt.Errorf("%s: not mounted", mountPoint)
	}

	delete(ms.mounts, mountPoint)

	return nil
}

func (ms *MockSystem) FSInfo(mountPoint string) (diskprep.FSInfo, error) {
	kname, ok := ms.mounts[mountPoint]
	if err := ms.record("fsinfo", kname); err != nil {
		return diskprep.FSInfo{}, err
	}

	if !ok {
		return diskprep.FSInfo{}, fmt.Errorf("%s: not mounted", mountPoint)
	}

	return ms.Filesystems[kname].FSInfo, nil
}

func (ms *MockSystem) unmountedFS(devPath string) (*Filesystem, error) {
	kname := path.Base(devPath)

	fs, ok := ms.Filesystems[kname]
	if !ok {
		return nil, fmt.Errorf("%s: no filesystem", devPath)
	}

	if _, mounted := ms.mounts[fs.Root]; mounted {
		return nil, fmt.Errorf("%s is mounted", devPath)
	}

	return fs, nil
}

func (ms *MockSystem) CheckFS(devPath string) error {
	if err := ms.record("checkfs", path.Base(devPath)); err != nil {
		return err
	}

	fs, err := ms.unmountedFS(devPath)
	if err != nil {
		return err
	}

	fs.Checked = true

	return nil
}

func (ms *MockSystem) ResizeFS(devPath string, blocks uint64) error {
	if err := ms.record("resizefs", path.Base(devPath), blocks); err != nil {
		return err
	}

	fs, err := ms.unmountedFS(devPath)
	if err != nil {
		return err
	}

	if !fs.Checked {
		return fmt.Errorf("please run 'e2fsck -f %s' first", devPath)
	}

	if blocks < fs.FSInfo.UsedBlocks {
		return fmt.Errorf("%s: new size %d is smaller than minimum (%d)", devPath, blocks, fs.FSInfo.UsedBlocks)
	}

	fs.FSInfo.Blocks = blocks

	return nil
}

func (ms *MockSystem) ScanDisk(devPath string) (diskprep.Disk, error) {
	name := path.Base(devPath)
	if err := ms.record("scandisk", name); err != nil {
		return diskprep.Disk{}, err
	}

	d, ok := ms.Disks[name]
	if !ok {
		return diskprep.Disk{}, fmt.Errorf("disk %s not found", devPath)
	}

	found := *d
	found.Partitions = diskprep.PartitionSet{}

	for n, p := range d.Partitions {
		found.Partitions[n] = p
	}

	return found, nil
}

func (ms *MockSystem) DeletePartition(d diskprep.Disk, n uint) error {
	if err := ms.record("delete", d.Name, n); err != nil {
		return err
	}

	md, ok := ms.Disks[d.Name]
	if !ok {
		return fmt.Errorf("disk %s not found", d.Name)
	}

	if _, ok := md.Partitions[n]; !ok {
		return fmt.Errorf("partition %d does not exist", n)
	}

	delete(md.Partitions, n)

	return nil
}

func (ms *MockSystem) CreatePartition(d diskprep.Disk, p diskprep.Partition) error {
	if err := ms.record("create", d.Name, p.Number, p.Start, p.Last); err != nil {
		return err
	}

	md, ok := ms.Disks[d.Name]
	if !ok {
		return fmt.Errorf("disk %s not found", d.Name)
	}

	if _, ok := md.Partitions[p.Number]; ok {
		return fmt.Errorf("partition %d already exists", p.Number)
	}

	if p.Last < p.Start || (p.Last+1)*uint64(md.SectorSize) > md.Size {
		return fmt.Errorf("partition %d [%d-%d] does not fit on %s", p.Number, p.Start, p.Last, d.Name)
	}

	for _, o := range md.Partitions {
		if p.Start <= o.Last && o.Start <= p.Last {
			return fmt.Errorf("partition %d [%d-%d] overlaps partition %d [%d-%d]",
				p.Number, p.Start, p.Last, o.Number, o.Start, o.Last)
		}
	}

	md.Partitions[p.Number] = p
	ms.pending[diskprep.PartitionKname(d.Name, p.Number)] = ms.DeviceDelay

	return nil
}

func (ms *MockSystem) ReloadPartitions(d diskprep.Disk) error {
	return ms.record("reload", d.Name)
}

func (ms *MockSystem) BlockDeviceExists(devPath string) (bool, error) {
	kname := path.Base(devPath)
	if err := ms.record("exists", kname); err != nil {
		return false, err
	}

	if _, ok := ms.Disks[kname]; ok {
		return true, nil
	}

	if _, _, ok := ms.findPartition(kname); !ok {
		return false, nil
	}

	remaining, ok := ms.pending[kname]
	if !ok || remaining == 0 {
		return true, nil
	}

	if remaining > 0 {
		ms.pending[kname] = remaining - 1
	}

	return false, nil
}

func (ms *MockSystem) Reboot() error {
	if err := ms.record("reboot"); err != nil {
		return err
	}

	ms.Rebooted = true

	return nil
}
