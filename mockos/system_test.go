package mockos_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"machinerun.io/diskprep"
	"machinerun.io/diskprep/mockos"
	"machinerun.io/diskprep/partid"
)

//nolint: funlen, gomnd
func TestSystem(t *testing.T) {
	myID, _ := diskprep.StringToGUID("01234567-89AB-CDEF-0123-456789ABCDEF")

	Convey("testing System Model", t, func() {
		So(func() { mockos.System("unknown") }, ShouldPanic)

		sys := mockos.System("testdata/model_sys.json")
		So(sys, ShouldNotBeNil)

		Convey("ListPartitions returns every partition sorted", func() {
			names, err := sys.ListPartitions()
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"sda1", "sdb1"})
		})

		Convey("ScanDisk on /dev/sda returns the layout", func() {
			disk, err := sys.ScanDisk("/dev/sda")
			So(err, ShouldBeNil)
			So(disk.Name, ShouldEqual, "sda")
			So(disk.Table, ShouldEqual, diskprep.GPT)
			So(disk.SectorSize, ShouldEqual, 512)
			So(disk.Partitions[1].ID, ShouldEqual, myID)
			So(disk.Partitions[1].Type, ShouldEqual, diskprep.PartType(partid.LinuxFS))
			So(disk.Partitions[1].Last, ShouldEqual, 20971486)
		})

		Convey("ScanDisk returns a copy", func() {
			disk, err := sys.ScanDisk("/dev/sda")
			So(err, ShouldBeNil)

			delete(disk.Partitions, 1)

			again, err := sys.ScanDisk("/dev/sda")
			So(err, ShouldBeNil)
			So(again.Partitions, ShouldContainKey, uint(1))
		})

		Convey("ScanDisk on a path with no disk fails", func() {
			_, err := sys.ScanDisk("path/with/no/disk")
			So(err, ShouldNotBeNil)
		})

		Convey("Mount returns the filesystem root and FSInfo samples it", func() {
			mp, err := sys.Mount("/dev/sda1", true)
			So(err, ShouldBeNil)
			So(mp, ShouldEqual, "testdata/sda1")
			So(sys.Mounted(), ShouldEqual, 1)

			_, err = os.Stat(filepath.Join(mp, "etc/diskprep/provision"))
			So(err, ShouldBeNil)

			info, err := sys.FSInfo(mp)
			So(err, ShouldBeNil)
			So(info.BlockSize, ShouldEqual, 4096)
			So(info.UsedBlocks, ShouldEqual, 1000000)

			Convey("a second mount of the same device fails", func() {
				_, err := sys.Mount("/dev/sda1", false)
				So(err, ShouldNotBeNil)
			})

			Convey("CheckFS refuses a mounted filesystem", func() {
				So(sys.CheckFS("/dev/sda1"), ShouldNotBeNil)
			})

			So(sys.Unmount(mp), ShouldBeNil)
			So(sys.Mounted(), ShouldEqual, 0)
			So(sys.Unmount(mp), ShouldNotBeNil)

			_, err = sys.FSInfo(mp)
			So(err, ShouldNotBeNil)
		})

		Convey("Mount of an unknown partition fails", func() {
			_, err := sys.Mount("/dev/sdc1", true)
			So(err, ShouldNotBeNil)
		})

		Convey("ResizeFS requires a check first", func() {
			So(sys.ResizeFS("/dev/sda1", 1310720), ShouldNotBeNil)
			So(sys.CheckFS("/dev/sda1"), ShouldBeNil)
			So(sys.ResizeFS("/dev/sda1", 999999), ShouldNotBeNil)
			So(sys.ResizeFS("/dev/sda1", 1310720), ShouldBeNil)
			So(sys.Filesystems["sda1"].FSInfo.Blocks, ShouldEqual, 1310720)
			So(sys.Ops("checkfs", "resizefs"), ShouldResemble, []string{
				"resizefs sda1 1310720", "checkfs sda1", "resizefs sda1 999999", "resizefs sda1 1310720"})
		})

		Convey("CreatePartition adds a partition that appears after the device delay", func() {
			disk, err := sys.ScanDisk("/dev/sdb")
			So(err, ShouldBeNil)

			So(sys.DeletePartition(disk, 1), ShouldBeNil)
			So(sys.DeletePartition(disk, 1), ShouldNotBeNil)

			root := diskprep.Partition{Start: 256, Last: 131071, Type: diskprep.PartType(partid.LinuxFS), Number: 1}
			data := diskprep.Partition{Start: 131072, Last: 262143, Type: diskprep.PartType(partid.LinuxLVM), Number: 2}

			So(sys.CreatePartition(disk, root), ShouldBeNil)
			So(sys.CreatePartition(disk, data), ShouldBeNil)
			So(sys.ReloadPartitions(disk), ShouldBeNil)

			for i := 0; i < 2; i++ {
				found, err := sys.BlockDeviceExists("/dev/sdb2")
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			}

			found, err := sys.BlockDeviceExists("/dev/sdb2")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)

			found, err = sys.BlockDeviceExists("/dev/sdb3")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("CreatePartition rejects overlaps and out of range partitions", func() {
			disk, err := sys.ScanDisk("/dev/sdb")
			So(err, ShouldBeNil)

			overlap := diskprep.Partition{Start: 1000, Last: 2000, Number: 2}
			So(sys.CreatePartition(disk, overlap), ShouldNotBeNil)

			existing := diskprep.Partition{Start: 1000, Last: 2000, Number: 1}
			So(sys.CreatePartition(disk, existing), ShouldNotBeNil)

			So(sys.DeletePartition(disk, 1), ShouldBeNil)

			oob := diskprep.Partition{Start: 256, Last: 262144, Number: 1}
			So(sys.CreatePartition(disk, oob), ShouldNotBeNil)
		})

		Convey("A negative device delay never exposes the device", func() {
			sys.DeviceDelay = -1

			disk, err := sys.ScanDisk("/dev/sda")
			So(err, ShouldBeNil)
			So(sys.DeletePartition(disk, 1), ShouldBeNil)
			So(sys.CreatePartition(disk, diskprep.Partition{Start: 2048, Last: 4095, Number: 2}), ShouldBeNil)

			for i := 0; i < 10; i++ {
				found, err := sys.BlockDeviceExists("/dev/sda2")
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			}
		})

		Convey("Fail injects an error and still records the call", func() {
			boom := errors.New("boom")
			sys.Fail["reboot"] = boom

			So(sys.Reboot(), ShouldEqual, boom)
			So(sys.Rebooted, ShouldBeFalse)
			So(sys.Ops("reboot"), ShouldResemble, []string{"reboot"})

			delete(sys.Fail, "reboot")
			So(sys.Reboot(), ShouldBeNil)
			So(sys.Rebooted, ShouldBeTrue)
		})
	})
}

func TestNewSystem(t *testing.T) {
	Convey("a Go built system", t, func() {
		sys := mockos.NewSystem()
		sys.AddDisk(diskprep.Disk{Name: "nvme0n1", Path: "/dev/nvme0n1", Size: 1 << 30, SectorSize: 512, Table: diskprep.GPT})

		disk, err := sys.ScanDisk("/dev/nvme0n1")
		So(err, ShouldBeNil)
		So(sys.CreatePartition(disk, diskprep.Partition{Start: 2048, Last: 4095, Number: 1}), ShouldBeNil)

		names, err := sys.ListPartitions()
		So(err, ShouldBeNil)
		So(names, ShouldResemble, []string{"nvme0n1p1"})

		Convey("mounting a partition without a filesystem fails", func() {
			_, err := sys.Mount("/dev/nvme0n1p1", true)
			So(err, ShouldNotBeNil)
		})

		Convey("mounting a partition with a filesystem returns its root", func() {
			root := t.TempDir()
			sys.AddFilesystem("nvme0n1p1", mockos.Filesystem{Root: root})

			mp, err := sys.Mount("/dev/nvme0n1p1", false)
			So(err, ShouldBeNil)
			So(mp, ShouldEqual, root)
			So(sys.Unmount(mp), ShouldBeNil)
		})
	})
}
