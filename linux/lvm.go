//go:build linux
// +build linux

package linux

import (
	"fmt"
	"path"

	"github.com/pkg/errors"
	"machinerun.io/diskprep"
)

// VolumeManager returns the linux implementation of diskprep.VolumeManager interface.
func VolumeManager() diskprep.VolumeManager {
	return &linuxLVM{}
}

type linuxLVM struct {
}

func (d *lvmPVData) toPV() diskprep.PV {
	return diskprep.PV{
		Path:     d.Path,
		Name:     path.Base(d.Path),
		Size:     d.Size,
		VGName:   d.VGName,
		FreeSize: d.Free,
	}
}

func (ls *linuxLVM) HasVG(vgName string) (bool, error) {
	vgdatum, err := getVgReport()
	if err != nil {
		return false, err
	}

	for _, vgd := range vgdatum {
		if vgd.Name == vgName {
			return true, nil
		}
	}

	return false, nil
}

func (ls *linuxLVM) ScanPVs(filter diskprep.PVFilter) (diskprep.PVSet, error) {
	pvdatum, err := getPvReport()
	if err != nil {
		return diskprep.PVSet{}, err
	}

	return filterPVs(pvdatum, filter), nil
}

// filterPVs returns the PVs accepted by filter. A nil filter accepts all.
func filterPVs(pvdatum []lvmPVData, filter diskprep.PVFilter) diskprep.PVSet {
	pvs := diskprep.PVSet{}

	for _, pvd := range pvdatum {
		pv := pvd.toPV()
		if filter == nil || filter(pv) {
			pvs[pv.Name] = pv
		}
	}

	return pvs
}

func (ls *linuxLVM) CreatePV(devPath string) (diskprep.PV, error) {
	if err := runCommand("lvm", "pvcreate", "--yes", "--zero=y", devPath); err != nil {
		return diskprep.PV{}, err
	}

	pvdatum, err := getPvReport(devPath)
	if err != nil {
		return diskprep.PV{}, errors.Wrapf(err, "pvcreate %s succeeded but report failed", devPath)
	}

	if len(pvdatum) != 1 {
		return diskprep.PV{}, fmt.Errorf("expected 1 pv for %s, found %d", devPath, len(pvdatum))
	}

	return pvdatum[0].toPV(), nil
}

func (ls *linuxLVM) CreateVG(name string, pvs ...diskprep.PV) (diskprep.VG, error) {
	if len(pvs) == 0 {
		return diskprep.VG{}, fmt.Errorf("cannot create vg %s without pvs", name)
	}

	cmd := []string{"lvm", "vgcreate", "--yes", name}
	for _, pv := range pvs {
		cmd = append(cmd, pv.Path)
	}

	if err := runCommand(cmd...); err != nil {
		return diskprep.VG{}, err
	}

	vgdatum, err := getVgReport(name)
	if err != nil {
		return diskprep.VG{}, errors.Wrapf(err, "vgcreate %s succeeded but report failed", name)
	}

	if len(vgdatum) != 1 {
		return diskprep.VG{}, fmt.Errorf("expected 1 vg named %s, found %d", name, len(vgdatum))
	}

	vg := diskprep.VG{
		Name:      vgdatum[0].Name,
		UUID:      vgdatum[0].UUID,
		Size:      vgdatum[0].Size,
		FreeSpace: vgdatum[0].Free,
		PVs:       diskprep.PVSet{},
	}

	for _, pv := range pvs {
		pv.VGName = name
		vg.PVs[pv.Name] = pv
	}

	return vg, nil
}
