package mockos

import (
	"fmt"
	"path"

	"machinerun.io/diskprep"
)

// MockLVM implements diskprep.VolumeManager on top of a MockSystem. Operations
// are recorded in the system's journal.
type MockLVM struct {
	sys *MockSystem

	PVs diskprep.PVSet
	VGs map[string]diskprep.VG
}

// LVM returns a mock volume manager whose block devices are those of sys.
func LVM(sys *MockSystem) *MockLVM {
	return &MockLVM{
		sys: sys,
		PVs: diskprep.PVSet{},
		VGs: map[string]diskprep.VG{},
	}
}

// AddVG records an existing volume group built on the devices in paths.
func (lm *MockLVM) AddVG(name string, paths ...string) diskprep.VG {
	vg := diskprep.VG{Name: name, UUID: diskprep.GUIDToString(diskprep.GenGUID()), PVs: diskprep.PVSet{}}

	for _, p := range paths {
		pv := diskprep.PV{Name: p, Path: p, VGName: name}
		lm.PVs[p] = pv
		vg.PVs[p] = pv
	}

	lm.VGs[name] = vg

	return vg
}

func (lm *MockLVM) HasVG(vgName string) (bool, error) {
	if err := lm.sys.record("hasvg", vgName); err != nil {
		return false, err
	}

	_, ok := lm.VGs[vgName]

	return ok, nil
}

func (lm *MockLVM) ScanPVs(filter diskprep.PVFilter) (diskprep.PVSet, error) {
	if err := lm.sys.record("scanpvs"); err != nil {
		return nil, err
	}

	pvs := diskprep.PVSet{}

	for name, pv := range lm.PVs {
		if filter == nil || filter(pv) {
			pvs[name] = pv
		}
	}

	return pvs, nil
}

func (lm *MockLVM) CreatePV(devPath string) (diskprep.PV, error) {
	if err := lm.sys.record("pvcreate", path.Base(devPath)); err != nil {
		return diskprep.PV{}, err
	}

	if _, ok := lm.PVs[devPath]; ok {
		return diskprep.PV{}, fmt.Errorf("can't initialize physical volume %q: already a PV", devPath)
	}

	kname := path.Base(devPath)

	d, p, ok := lm.sys.findPartition(kname)
	if !ok {
		return diskprep.PV{}, fmt.Errorf("device %s not found", devPath)
	}

	if remaining := lm.sys.pending[kname]; remaining != 0 {
		return diskprep.PV{}, fmt.Errorf("device %s not found", devPath)
	}

	size := p.Size() * uint64(d.SectorSize)
	pv := diskprep.PV{Name: devPath, Path: devPath, Size: size, FreeSize: size}
	lm.PVs[devPath] = pv

	return pv, nil
}

func (lm *MockLVM) CreateVG(name string, pvs ...diskprep.PV) (diskprep.VG, error) {
	if err := lm.sys.record("vgcreate", name); err != nil {
		return diskprep.VG{}, err
	}

	if _, ok := lm.VGs[name]; ok {
		return diskprep.VG{}, fmt.Errorf("a volume group called %s already exists", name)
	}

	if len(pvs) == 0 {
		return diskprep.VG{}, fmt.Errorf("no physical volume given for %s", name)
	}

	vg := diskprep.VG{Name: name, UUID: diskprep.GUIDToString(diskprep.GenGUID()), PVs: diskprep.PVSet{}}

	for _, pv := range pvs {
		known, ok := lm.PVs[pv.Path]
		if !ok {
			return diskprep.VG{}, fmt.Errorf("%s is not a physical volume", pv.Path)
		}

		if known.VGName != "" {
			return diskprep.VG{}, fmt.Errorf("physical volume %s is already in volume group %s", pv.Path, known.VGName)
		}

		known.VGName = name
		lm.PVs[pv.Path] = known
		vg.PVs[pv.Path] = known
		vg.Size += known.Size
		vg.FreeSpace += known.FreeSize
	}

	lm.VGs[name] = vg

	return vg, nil
}
