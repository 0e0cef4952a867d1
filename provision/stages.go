package provision

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"machinerun.io/diskprep"
	"machinerun.io/diskprep/partid"
)

// Gate returns true if the volume group already exists, in which case the
// disk has been provisioned and only Restore and Reboot are left to do.
func Gate(vm diskprep.VolumeManager, cfg Config) (bool, error) {
	found, err := vm.HasVG(cfg.VGName)
	if err != nil {
		return false, errors.Wrapf(err, "looking up volume group %s", cfg.VGName)
	}

	return found, nil
}

type candidate struct {
	kname string
	info  diskprep.FSInfo
}

// Discover finds the one partition that carries the marker and computes how
// far its filesystem and partition are shrunk. Every partition is mounted
// read only and unmounted again before the next one is looked at.
func Discover(sys diskprep.System, cfg Config) (State, error) {
	names, err := sys.ListPartitions()
	if err != nil {
		return State{}, errors.Wrap(err, "listing partitions")
	}

	found := []candidate{}

	for _, kname := range names {
		info, marked, err := probe(sys, kname, cfg.Marker)
		if err != nil {
			return State{}, err
		}

		if marked {
			found = append(found, candidate{kname: kname, info: info})
		}
	}

	switch len(found) {
	case 0:
		return State{}, fmt.Errorf("%w: %s not found on any of %s",
			diskprep.ErrNoMarker, cfg.Marker, strings.Join(names, ", "))
	case 1:
	default:
		knames := make([]string, len(found))
		for i, c := range found {
			knames[i] = c.kname
		}

		return State{}, fmt.Errorf("%w: %s found on %s",
			diskprep.ErrMultipleMarkers, cfg.Marker, strings.Join(knames, ", "))
	}

	return size(sys, found[0], cfg)
}

// probe mounts kname and reports whether it carries the marker. Partitions
// that do not mount are not candidates.
func probe(sys diskprep.System, kname, marker string) (diskprep.FSInfo, bool, error) {
	devPath := "/dev/" + kname

	mp, err := sys.Mount(devPath, true)
	if err != nil {
		log.WithFields(log.Fields{"device": devPath, "error": err}).Debug("skipping partition")
		return diskprep.FSInfo{}, false, nil
	}

	info, marked, err := sampleMarked(sys, mp, marker)

	if uerr := sys.Unmount(mp); uerr != nil {
		return info, false, errors.Wrapf(uerr, "unmounting %s from %s", devPath, mp)
	}

	if err != nil {
		return info, false, errors.Wrapf(err, "probing %s", devPath)
	}

	log.WithFields(log.Fields{"device": devPath, "marked": marked}).Debug("probed partition")

	return info, marked, nil
}

func sampleMarked(sys diskprep.System, mp, marker string) (diskprep.FSInfo, bool, error) {
	fi, err := os.Stat(filepath.Join(mp, marker))
	if os.IsNotExist(err) {
		return diskprep.FSInfo{}, false, nil
	} else if err != nil {
		return diskprep.FSInfo{}, false, err
	}

	if !fi.Mode().IsRegular() {
		return diskprep.FSInfo{}, false, nil
	}

	info, err := sys.FSInfo(mp)
	if err != nil {
		return info, false, err
	}

	return info, true, nil
}

// size fills in the sizes and split of the marked partition.
func size(sys diskprep.System, c candidate, cfg Config) (State, error) {
	dn, err := diskprep.ParseDeviceName(c.kname)
	if err != nil {
		return State{}, err
	}

	st := State{
		Root:         dn,
		BlockSize:    c.info.BlockSize,
		UsedBlocks:   c.info.UsedBlocks,
		TargetBlocks: diskprep.TargetBlocks(c.info.UsedBlocks, c.info.BlockSize, cfg.MinRootSize),
	}

	disk, err := sys.ScanDisk(dn.DiskPath())
	if err != nil {
		return st, errors.Wrapf(err, "scanning %s", dn.DiskPath())
	}

	if disk.Table == diskprep.TableNone {
		return st, fmt.Errorf("%w on %s", diskprep.ErrNoPartitionTable, disk.Path)
	}

	p, ok := disk.Partitions[dn.Number]
	if !ok {
		return st, fmt.Errorf("partition %d not in the partition table of %s", dn.Number, disk.Path)
	}

	st.SectorSize = uint64(disk.SectorSize)
	st.TargetBlocks = diskprep.AlignBlocks(st.TargetBlocks, st.BlockSize, st.SectorSize)
	st.TargetSectors = diskprep.TargetSectors(st.TargetBlocks, st.BlockSize, st.SectorSize)

	if err := diskprep.CheckFit(st.TargetBlocks, st.BlockSize, st.TargetSectors, st.SectorSize); err != nil {
		return st, errors.Wrapf(err, "sizing %s", dn)
	}

	plan, err := diskprep.PlanSplit(p, st.TargetSectors)
	if err != nil {
		return st, err
	}

	st.Plan = plan

	log.WithFields(st.Fields()).Info("found root partition")

	return st, nil
}

// Shrink checks the root filesystem and shrinks it to the target size.
func Shrink(sys diskprep.System, st State) error {
	devPath := st.Root.Path()

	if err := sys.CheckFS(devPath); err != nil {
		return errors.Wrapf(err, "checking filesystem on %s", devPath)
	}

	if err := sys.ResizeFS(devPath, st.TargetBlocks); err != nil {
		return errors.Wrapf(err, "resizing filesystem on %s to %d blocks", devPath, st.TargetBlocks)
	}

	log.WithFields(st.Fields()).Info("shrunk root filesystem")

	return nil
}

// Surgery rewrites the partition table so that the root partition ends at the
// planned sector and a new data partition covers the rest of its old range.
// It returns once the data partition's device node exists.
func Surgery(sys diskprep.System, st State, cfg Config) (State, error) {
	diskPath := st.Root.DiskPath()

	disk, err := sys.ScanDisk(diskPath)
	if err != nil {
		return st, errors.Wrapf(err, "scanning %s", diskPath)
	}

	orig := st.Plan.Original

	p, ok := disk.Partitions[st.Root.Number]
	if !ok || p.Start != orig.Start || p.Last != orig.Last {
		return st, fmt.Errorf("%s changed on %s since it was discovered", orig, diskPath)
	}

	if used, ok := disk.Partitions[st.Plan.DataNumber]; ok {
		return st, fmt.Errorf("partition %d is needed for data but is in use by %s", st.Plan.DataNumber, used)
	}

	if disk.Table == diskprep.MBR && st.Plan.DataNumber > 4 {
		return st, fmt.Errorf("partition %d is not a primary MBR partition", st.Plan.DataNumber)
	}

	root := st.Plan.Root()
	data := st.Plan.Data(diskprep.PartType(partid.LinuxLVM))
	fields := st.Fields()

	if err := sys.DeletePartition(disk, root.Number); err != nil {
		return st, errors.Wrapf(err, "deleting %s", orig)
	}

	log.WithFields(fields).Info("deleted root partition")

	if err := sys.CreatePartition(disk, root); err != nil {
		return st, errors.Wrapf(err, "creating root %s", root)
	}

	if err := sys.CreatePartition(disk, data); err != nil {
		return st, errors.Wrapf(err, "creating data %s", data)
	}

	log.WithFields(fields).Info("created root and data partitions")

	if err := sys.ReloadPartitions(disk); err != nil {
		return st, errors.Wrapf(err, "reloading partitions of %s", diskPath)
	}

	st.Data = st.Root.Sibling(data.Number)

	if err := waitForDevice(sys, st.Data.Path(), cfg.WaitAttempts, cfg.WaitInterval); err != nil {
		return st, err
	}

	return st, nil
}

// waitForDevice polls for devPath at most attempts times.
func waitForDevice(sys diskprep.System, devPath string, attempts int, interval time.Duration) error {
	for i := 0; i < attempts; i++ {
		found, err := sys.BlockDeviceExists(devPath)
		if err != nil {
			return errors.Wrapf(err, "waiting for %s", devPath)
		}

		if found {
			log.WithFields(log.Fields{"device": devPath, "attempts": i + 1}).Debug("device appeared")
			return nil
		}

		if i+1 < attempts {
			time.Sleep(interval)
		}
	}

	return fmt.Errorf("%w: %s did not appear after %d attempts %s apart",
		diskprep.ErrDeviceTimeout, devPath, attempts, interval)
}

// ProvisionLVM makes the data partition a physical volume and creates the
// volume group on it.
func ProvisionLVM(vm diskprep.VolumeManager, st State, cfg Config) error {
	devPath := st.Data.Path()

	pv, err := vm.CreatePV(devPath)
	if err != nil {
		return errors.Wrapf(err, "creating physical volume on %s", devPath)
	}

	vg, err := vm.CreateVG(cfg.VGName, pv)
	if err != nil {
		return errors.Wrapf(err, "creating volume group %s on %s", cfg.VGName, devPath)
	}

	log.WithFields(st.Fields()).WithFields(log.Fields{"vg": vg.Name, "size": vg.Size}).Info("created volume group")

	return nil
}

// Restore mounts the root partition, puts the saved boot configuration back
// and removes the marker.
func Restore(sys diskprep.System, root diskprep.DeviceName, cfg Config) (err error) {
	devPath := root.Path()

	mp, err := sys.Mount(devPath, false)
	if err != nil {
		return errors.Wrapf(err, "mounting %s", devPath)
	}

	defer func() {
		if uerr := sys.Unmount(mp); uerr != nil && err == nil {
			err = errors.Wrapf(uerr, "unmounting %s", devPath)
		}
	}()

	src := filepath.Join(mp, cfg.BootBackup)
	dest := filepath.Join(mp, cfg.BootConfig)

	if err := copyFile(src, dest); err != nil {
		return errors.Wrapf(err, "restoring %s from %s", cfg.BootConfig, cfg.BootBackup)
	}

	if err := os.Remove(filepath.Join(mp, cfg.Marker)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", cfg.Marker)
	}

	log.WithFields(log.Fields{"device": devPath, "bootConfig": cfg.BootConfig}).Info("restored boot configuration")

	return nil
}

// copyFile replaces dest with the contents of src. The copy is written next to
// dest and renamed over it.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dest + ".tmp"

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)

		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)

		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}

// Reboot reboots the system unless cfg turns it off.
func Reboot(sys diskprep.System, cfg Config) error {
	if !cfg.Reboot {
		log.Info("not rebooting")
		return nil
	}

	log.Info("rebooting")

	return sys.Reboot()
}
